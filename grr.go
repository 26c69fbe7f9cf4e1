//go:build gui

package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"github.com/metcalfc/sdreader/internal/reader"
	"github.com/metcalfc/sdreader/internal/state"
)

type model struct {
	*session
	fontSize   float32
	tocVisible bool
}

func createWordDisplay(word string, fontSize float32, windowWidth float32) *fyne.Container {
	runes := []rune(word)
	if len(runes) == 0 {
		return container.NewWithoutLayout()
	}
	orp := min(reader.GetORPPosition(word), len(runes)-1)

	before := string(runes[:orp])
	focus := string(runes[orp])
	after := string(runes[orp+1:])

	beforeText := canvas.NewText(before, color.White)
	beforeText.TextSize = fontSize
	beforeText.TextStyle.Bold = true

	focusText := canvas.NewText(focus, color.RGBA{R: 255, G: 0, B: 0, A: 255})
	focusText.TextSize = fontSize
	focusText.TextStyle.Bold = true

	afterText := canvas.NewText(after, color.White)
	afterText.TextSize = fontSize
	afterText.TextStyle.Bold = true

	beforeSize := beforeText.MinSize()
	focusSize := focusText.MinSize()

	// Horizontal: anchor ORP at center
	centerX := windowWidth / 2
	beforeX := max(centerX-beforeSize.Width, 0)
	focusX := centerX
	afterX := centerX + focusSize.Width

	c := &fyne.Container{
		Layout:  &centerVerticalLayout{},
		Objects: []fyne.CanvasObject{beforeText, focusText, afterText},
	}
	beforeText.Move(fyne.NewPos(beforeX, 0))
	focusText.Move(fyne.NewPos(focusX, 0))
	afterText.Move(fyne.NewPos(afterX, 0))
	return c
}

type centerVerticalLayout struct{}

func (l *centerVerticalLayout) MinSize(objects []fyne.CanvasObject) fyne.Size {
	var maxH float32
	for _, o := range objects {
		maxH = max(maxH, o.MinSize().Height)
	}
	return fyne.NewSize(0, maxH)
}

func (l *centerVerticalLayout) Layout(objects []fyne.CanvasObject, size fyne.Size) {
	var maxH float32
	for _, o := range objects {
		maxH = max(maxH, o.MinSize().Height)
	}

	// Center vertically; X was set when the word was laid out
	y := max((size.Height-maxH)/2, 0)
	for _, o := range objects {
		o.Move(fyne.NewPos(o.Position().X, y))
		o.Resize(o.MinSize())
	}
}

func statusText(snap snapshot, fontSize float32) string {
	pause := ""
	if snap.Paused {
		pause = " [PAUSED]"
	}
	label := snap.ChapterLabel
	switch {
	case snap.Done:
		label = "complete"
	case snap.Waiting && snap.Word == "":
		label = "loading…"
	}
	return fmt.Sprintf("%s | Ch %d/%d: %s | ¶ %d/%d | %d WPM | Font: %.0f%s",
		snap.Title, snap.Chapter+1, snap.ChapterCount, label,
		snap.Paragraph, snap.Paragraphs, snap.WPM, fontSize, pause)
}

func newFileLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(slog.NewTextHandler(f, nil)), func() { f.Close() }, nil
}

func main() {
	wpm := flag.Int("w", 300, "Words per minute")
	root := flag.String("root", defaultRoot(), "Directory holding BOOKS/ (default: $SDREADER_ROOT or .)")
	logPath := flag.String("log", "", "Write logs to this file")
	showVersion := flag.Bool("v", false, "Show version information")
	showVersionLong := flag.Bool("version", false, "Show version information")
	showTOC := flag.Bool("toc", false, "Show the chapter list at startup")
	freshStart := flag.Bool("fresh", false, "Ignore saved reading position")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "sdreader-gui - GUI EPUB Speed Reader\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  sdreader-gui [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  sdreader-gui -root /media/sd     Read the books in /media/sd/BOOKS\n")
		fmt.Fprintf(os.Stderr, "  sdreader-gui -w 500 notes.md     Read a single file at 500 WPM\n")
		fmt.Fprintf(os.Stderr, "  sdreader-gui --toc               Show the chapter list at startup\n")
	}
	flag.Parse()

	if *showVersion || *showVersionLong {
		fmt.Printf("sdreader-gui %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	logger, closeLog, err := newFileLogger(*logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := openSession(ctx, flag.Arg(0), *root, *wpm, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if store, err := state.NewStore(); err != nil {
		logger.Warn("progress store unavailable", "err", err)
	} else {
		s.withStore(store)
	}

	m := &model{session: s, fontSize: 72, tocVisible: *showTOC}
	m.setPaused(true) // GUI starts paused
	if err := m.open(0, *freshStart); err != nil {
		logger.Warn("open book", "err", err)
	}

	a := app.New()
	w := a.NewWindow("sdreader - Speed Reader")

	statusLabel := widget.NewLabel("")
	statusLabel.Alignment = fyne.TextAlignCenter

	controlsLabel := widget.NewLabel("SPACE: pause  ↑/↓: speed  +/-: font  ←/→: paragraph  [/]: chapter  R: restart  T: chapters  F: fullscreen  Q: quit")
	controlsLabel.Alignment = fyne.TextAlignCenter

	wordContainer := container.NewStack()
	bar := widget.NewProgressBar()

	var chapterList *widget.List
	var tocPanel *container.Split
	var chapterLabels []string

	updateDisplay := func() {
		canvasWidth := w.Canvas().Size().Width
		if canvasWidth <= 0 {
			canvasWidth = 800
		}
		snap := m.snapshot()
		wordContainer.Objects = []fyne.CanvasObject{createWordDisplay(snap.Word, m.fontSize, canvasWidth)}
		wordContainer.Refresh()
		statusLabel.SetText(statusText(snap, m.fontSize))
		bar.SetValue(float64(snap.Chapter+1) / float64(snap.ChapterCount))
	}

	refreshChapters := func() {
		chapterLabels = m.chapters()
		chapterList.Refresh()
	}

	// refill services pending requests off the UI goroutine.
	refill := func() {
		go func() {
			for m.refill(ctx) {
			}
			fyne.Do(func() {
				updateDisplay()
				if m.tocVisible {
					refreshChapters()
				}
			})
		}()
	}

	chapterList = widget.NewList(
		func() int { return len(chapterLabels) },
		func() fyne.CanvasObject { return widget.NewLabel("Chapter") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			obj.(*widget.Label).SetText(chapterLabels[id])
		},
	)
	chapterList.OnSelected = func(id widget.ListItemID) {
		if err := m.jumpToChapter(id); err != nil {
			logger.Warn("chapter jump", "chapter", id+1, "err", err)
		}
		m.tocVisible = false
		tocPanel.Leading.Hide()
		tocPanel.Refresh()
		chapterList.UnselectAll()
		refill()
	}

	bookTitles := m.titles()
	bookList := widget.NewList(
		func() int { return len(bookTitles) },
		func() fyne.CanvasObject { return widget.NewLabel("Book") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			title := bookTitles[id]
			if m.hasCover(id) {
				title += " ▣"
			}
			obj.(*widget.Label).SetText(title)
		},
	)
	bookList.OnSelected = func(id widget.ListItemID) {
		if err := m.save(); err != nil {
			logger.Warn("save progress", "err", err)
		}
		if err := m.open(id, false); err != nil {
			logger.Warn("open book", "book", id, "err", err)
		}
		m.setPaused(true)
		refreshChapters()
		refill()
	}

	readingContent := container.NewBorder(
		statusLabel,
		container.NewVBox(bar, controlsLabel),
		nil, nil,
		wordContainer,
	)
	sidebar := container.NewVSplit(
		container.NewBorder(widget.NewLabel("Books"), nil, nil, nil, bookList),
		container.NewBorder(widget.NewLabel("Chapters"), widget.NewLabel("Click to jump • T to close"), nil, nil, chapterList),
	)
	tocPanel = container.NewHSplit(sidebar, readingContent)
	tocPanel.Offset = 0.33
	if m.tocVisible {
		refreshChapters()
	} else {
		sidebar.Hide()
	}

	ticker := time.NewTicker(m.wordDelay())
	done := make(chan bool)
	var closeOnce sync.Once

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if m.paused() {
					continue
				}
				ok, waiting, finished, err := m.advance()
				switch {
				case err != nil:
					logger.Warn("advance", "err", err)
					m.setPaused(true)
				case ok:
					ticker.Reset(m.wordDelay())
				case waiting:
					m.refill(ctx)
				case finished:
					m.setPaused(true)
					if err := m.save(); err != nil {
						logger.Warn("save progress", "err", err)
					}
				}
				fyne.Do(updateDisplay)
			}
		}
	}()

	w.Canvas().SetOnTypedKey(func(key *fyne.KeyEvent) {
		switch key.Name {
		case fyne.KeySpace:
			m.togglePause()
			updateDisplay()

		case fyne.KeyUp:
			m.changeWPM(stepWPM)
			ticker.Reset(m.wordDelay())
			updateDisplay()

		case fyne.KeyDown:
			m.changeWPM(-stepWPM)
			ticker.Reset(m.wordDelay())
			updateDisplay()

		case fyne.KeyLeft, fyne.KeyRight:
			dir := 1
			if key.Name == fyne.KeyLeft {
				dir = -1
			}
			m.setPaused(true)
			if err := m.paragraph(dir); err != nil {
				logger.Warn("paragraph jump", "err", err)
			}
			updateDisplay()

		case fyne.KeyF:
			w.SetFullScreen(!w.FullScreen())

		case fyne.KeyQ:
			if err := m.save(); err != nil {
				logger.Warn("save progress", "err", err)
			}
			closeOnce.Do(func() {
				close(done)
			})
			a.Quit()
		}
	})

	w.Canvas().SetOnTypedRune(func(r rune) {
		switch r {
		case 't', 'T':
			m.tocVisible = !m.tocVisible
			if m.tocVisible {
				m.setPaused(true)
				refreshChapters()
				sidebar.Show()
			} else {
				sidebar.Hide()
			}
			tocPanel.Refresh()
			updateDisplay()

		case '[', ']':
			dir := 1
			if r == '[' {
				dir = -1
			}
			if err := m.chapter(dir); err != nil {
				logger.Warn("chapter jump", "err", err)
			}
			refill()

		case 'r', 'R':
			if err := m.restart(); err != nil {
				logger.Warn("restart", "err", err)
			}
			refill()

		case '+', '=':
			if m.fontSize < 200 {
				m.fontSize += 5
				updateDisplay()
			}
		case '-':
			if m.fontSize > 20 {
				m.fontSize -= 5
				updateDisplay()
			}
		}
	})

	w.Resize(fyne.NewSize(800, 600))
	w.SetContent(container.NewStack(tocPanel))

	// Handle window resize - pause and redraw
	lastWidth := float32(800)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(100 * time.Millisecond):
				currentWidth := w.Canvas().Size().Width
				if currentWidth > 0 && currentWidth != lastWidth {
					lastWidth = currentWidth
					m.setPaused(true)
					fyne.Do(updateDisplay)
				}
			}
		}
	}()

	w.SetOnClosed(func() {
		if err := m.save(); err != nil {
			logger.Warn("save progress", "err", err)
		}
		closeOnce.Do(func() {
			close(done)
		})
	})

	// Initialize first word after window shows
	go func() {
		time.Sleep(100 * time.Millisecond)
		refill()
		fyne.Do(updateDisplay)
	}()

	w.ShowAndRun()
}
