//go:build !gui

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/metcalfc/sdreader/internal/reader"
	"github.com/metcalfc/sdreader/internal/state"
)

var (
	erpStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF0000"))

	wordBeforeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	wordAfterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	controlsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00")).
			Bold(true)

	completeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))
)

type keyMap struct {
	Pause       key.Binding
	Faster      key.Binding
	Slower      key.Binding
	PrevPara    key.Binding
	NextPara    key.Binding
	PrevChapter key.Binding
	NextChapter key.Binding
	Restart     key.Binding
	Library     key.Binding
	Open        key.Binding
	Quit        key.Binding
}

var keys = keyMap{
	Pause:       key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause/play")),
	Faster:      key.NewBinding(key.WithKeys("up", "+", "="), key.WithHelp("↑", "faster")),
	Slower:      key.NewBinding(key.WithKeys("down", "-"), key.WithHelp("↓", "slower")),
	PrevPara:    key.NewBinding(key.WithKeys("left"), key.WithHelp("←", "paragraph")),
	NextPara:    key.NewBinding(key.WithKeys("right"), key.WithHelp("→", "paragraph")),
	PrevChapter: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev chapter")),
	NextChapter: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next chapter")),
	Restart:     key.NewBinding(key.WithKeys("r", "R"), key.WithHelp("r", "restart")),
	Library:     key.NewBinding(key.WithKeys("b", "esc"), key.WithHelp("b", "books")),
	Open:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "read")),
	Quit:        key.NewBinding(key.WithKeys("q", "Q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) controls() string {
	var parts []string
	for _, b := range []key.Binding{k.Pause, k.Faster, k.Slower, k.PrevPara, k.NextPara, k.PrevChapter, k.NextChapter, k.Library, k.Quit} {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return strings.Join(parts, "  ")
}

// bookItem is one row of the book picker.
type bookItem struct {
	index int
	title string
	cover bool
}

func (b bookItem) Title() string       { return b.title }
func (b bookItem) FilterValue() string { return b.title }
func (b bookItem) Description() string {
	if b.cover {
		return fmt.Sprintf("#%d  with cover", b.index+1)
	}
	return fmt.Sprintf("#%d", b.index+1)
}

type model struct {
	s        *session
	ctx      context.Context
	books    list.Model
	bar      progress.Model
	picking  bool
	fresh    bool
	quitting bool
	err      error
	gen      int
	width    int
	height   int
}

type tickMsg struct{ gen int }

type refillMsg struct{ served, resume bool }

func newModel(ctx context.Context, s *session, fresh bool) model {
	titles := s.titles()
	items := make([]list.Item, len(titles))
	for i, t := range titles {
		items[i] = bookItem{index: i, title: t, cover: s.hasCover(i)}
	}
	books := list.New(items, list.NewDefaultDelegate(), 80, 22)
	books.Title = "Books"

	m := model{
		s:       s,
		ctx:     ctx,
		books:   books,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		picking: len(titles) > 1,
		fresh:   fresh,
		width:   80,
		height:  24,
	}
	if !m.picking {
		m.err = s.open(0, fresh)
	}
	return m
}

func (m model) Init() tea.Cmd {
	if m.picking {
		return nil
	}
	return tick(m.gen, m.s.wordDelay())
}

// start begins a new tick chain. Ticks from an older chain are dropped.
func (m *model) start() tea.Cmd {
	m.gen++
	return tick(m.gen, m.s.wordDelay())
}

// refill services one refill request in the background. resume restarts
// the tick chain that stopped to wait for it.
func (m *model) refill(resume bool) tea.Cmd {
	s, ctx := m.s, m.ctx
	return func() tea.Msg {
		return refillMsg{served: s.refill(ctx), resume: resume}
	}
}

// jumped follows a jump that may have left the source waiting for a
// refill.
func (m *model) jumped() tea.Cmd {
	if m.s.paused() {
		return m.refill(false)
	}
	return tea.Batch(m.refill(false), m.start())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.books.SetSize(msg.Width, msg.Height-1)
		m.bar.Width = max(min(msg.Width-4, 60), 10)
		return m, nil

	case tea.KeyMsg:
		if m.picking {
			return m.updatePicker(msg)
		}
		return m.updateReading(msg)

	case tickMsg:
		if msg.gen != m.gen || m.picking || m.s.paused() {
			return m, nil
		}
		ok, waiting, done, err := m.s.advance()
		switch {
		case err != nil:
			m.err = err
			m.s.setPaused(true)
			return m, nil
		case ok:
			return m, tick(m.gen, m.s.wordDelay())
		case waiting:
			return m, m.refill(true)
		case done:
			if err := m.s.save(); err != nil {
				m.err = err
			}
		}
		return m, nil

	case refillMsg:
		if !msg.resume || m.picking || m.s.paused() {
			return m, nil
		}
		if msg.served {
			return m, tick(m.gen, 0)
		}
		return m, tick(m.gen, m.s.wordDelay())
	}
	return m, nil
}

func (m model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.books.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Open):
			item, ok := m.books.SelectedItem().(bookItem)
			if !ok {
				return m, nil
			}
			if err := m.s.open(item.index, m.fresh); err != nil {
				m.err = err
				return m, nil
			}
			m.picking = false
			m.err = nil
			m.s.setPaused(false)
			return m, m.start()
		}
	}
	var cmd tea.Cmd
	m.books, cmd = m.books.Update(msg)
	return m, cmd
}

func (m model) updateReading(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		if err := m.s.save(); err != nil {
			m.err = err
		}
		return m, tea.Quit

	case key.Matches(msg, keys.Pause):
		if !m.s.togglePause() {
			return m, m.start()
		}
		return m, nil

	case key.Matches(msg, keys.Faster):
		m.s.changeWPM(stepWPM)
		return m, nil

	case key.Matches(msg, keys.Slower):
		m.s.changeWPM(-stepWPM)
		return m, nil

	case key.Matches(msg, keys.PrevPara), key.Matches(msg, keys.NextPara):
		dir := 1
		if key.Matches(msg, keys.PrevPara) {
			dir = -1
		}
		m.s.setPaused(true)
		m.err = m.s.paragraph(dir)
		return m, nil

	case key.Matches(msg, keys.PrevChapter), key.Matches(msg, keys.NextChapter):
		dir := 1
		if key.Matches(msg, keys.PrevChapter) {
			dir = -1
		}
		m.err = m.s.chapter(dir)
		return m, m.jumped()

	case key.Matches(msg, keys.Restart):
		m.err = m.s.restart()
		return m, m.jumped()

	case key.Matches(msg, keys.Library):
		if len(m.books.Items()) < 2 {
			return m, nil
		}
		if err := m.s.save(); err != nil {
			m.err = err
		}
		m.s.setPaused(true)
		m.picking = true
		return m, nil
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	if m.picking {
		if m.err != nil {
			return m.books.View() + "\n" + errorStyle.Render(m.err.Error())
		}
		return m.books.View()
	}

	snap := m.s.snapshot()

	pause := ""
	if snap.Paused {
		pause = pausedStyle.Render(" [PAUSED]")
	}
	chapter := fmt.Sprintf("Ch %d/%d", snap.Chapter+1, snap.ChapterCount)
	if snap.ChapterLabel != "" {
		chapter += ": " + snap.ChapterLabel
	}
	status := statusStyle.Render(
		fmt.Sprintf("%s | %s | ¶ %d/%d | %d WPM%s",
			snap.Title,
			chapter,
			snap.Paragraph,
			snap.Paragraphs,
			snap.WPM,
			pause,
		),
	)

	var line string
	switch {
	case snap.Done:
		line = centerText(completeStyle.Render("Reading complete!"), "Reading complete!", m.width)
	case snap.Word == "" && snap.Waiting:
		line = centerText(statusStyle.Render("Loading…"), "Loading…", m.width)
	case snap.Word != "":
		line = anchorORPText(formatWord(snap.Word), snap.Word, m.width)
	}

	bar := m.bar.ViewAs(float64(snap.Chapter+1) / float64(snap.ChapterCount))
	controls := controlsStyle.Render(keys.controls())
	footer := "  " + bar + "\n" + controls
	if m.err != nil {
		footer = errorStyle.Render(m.err.Error()) + "\n" + footer
	}

	// Reserve the status line at the top and the footer at the bottom
	avail := max(m.height-1-lipgloss.Height(footer), 1)
	vPad := avail / 2

	var sb strings.Builder
	sb.WriteString(status)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("\n", vPad))
	sb.WriteString(line)
	sb.WriteString(strings.Repeat("\n", max(avail-vPad, 0)))
	sb.WriteString(footer)
	return sb.String()
}

// formatWord highlights the ORP rune of word.
func formatWord(word string) string {
	runes := []rune(word)
	if len(runes) == 0 {
		return ""
	}
	orp := min(reader.GetORPPosition(word), len(runes)-1)

	return wordBeforeStyle.Render(string(runes[:orp])) +
		erpStyle.Render(string(runes[orp])) +
		wordAfterStyle.Render(string(runes[orp+1:]))
}

// anchorORPText pads text so the ORP rune of word sits at the middle
// column.
func anchorORPText(text string, word string, width int) string {
	pad := max(width/2-reader.GetORPPosition(word), 0)
	return strings.Repeat(" ", pad) + text
}

func centerText(text, plain string, width int) string {
	pad := max((width-lipgloss.Width(plain))/2, 0)
	return strings.Repeat(" ", pad) + text
}

func tick(gen int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}

// newLogger logs to path through tea.LogToFile, or nowhere when path is
// empty.
func newLogger(path string, verbose bool) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := tea.LogToFile(path, "sdreader")
	if err != nil {
		return nil, nil, err
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, func() { f.Close() }, nil
}

func main() {
	wpm := flag.Int("w", 300, "Words per minute (default: 300)")
	root := flag.String("root", defaultRoot(), "Directory holding BOOKS/ (default: $SDREADER_ROOT or .)")
	logPath := flag.String("log", "", "Write logs to this file")
	debug := flag.Bool("debug", false, "Log chunk-level detail")
	fresh := flag.Bool("fresh", false, "Ignore saved reading position")
	showVersion := flag.Bool("v", false, "Show version information")
	showVersionLong := flag.Bool("version", false, "Show version information")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "sdreader - Terminal EPUB Speed Reader\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  sdreader [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  sdreader                      Pick a book from ./BOOKS\n")
		fmt.Fprintf(os.Stderr, "  sdreader -root /media/sd      Pick a book from /media/sd/BOOKS\n")
		fmt.Fprintf(os.Stderr, "  sdreader -w 500 notes.md      Read a single file at 500 WPM\n")
		fmt.Fprintf(os.Stderr, "  cat file.txt | sdreader       Read from stdin\n")
		if formats := reader.SupportedFormats(); len(formats) > 0 {
			fmt.Fprintf(os.Stderr, "\nSingle-file formats: %s, plain text\n", strings.Join(formats, ", "))
		}
		fmt.Fprintf(os.Stderr, "\nControls:\n")
		fmt.Fprintf(os.Stderr, "  SPACE    Pause/play\n")
		fmt.Fprintf(os.Stderr, "  ↑/↓      Increase/decrease speed by %d WPM\n", stepWPM)
		fmt.Fprintf(os.Stderr, "  ←/→      Jump to previous/next paragraph\n")
		fmt.Fprintf(os.Stderr, "  [/]      Jump to previous/next chapter\n")
		fmt.Fprintf(os.Stderr, "  R        Restart the book\n")
		fmt.Fprintf(os.Stderr, "  B        Back to the book list\n")
		fmt.Fprintf(os.Stderr, "  Q        Quit\n")
	}
	flag.Parse()

	if *showVersion || *showVersionLong {
		fmt.Printf("sdreader %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	logger, closeLog, err := newLogger(*logPath, *debug)
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
		fmt.Fprintln(os.Stderr, "Try: sdreader -h")
		os.Exit(1)
	}
	if store, err := state.NewStore(); err != nil {
		logger.Warn("progress store unavailable", "err", err)
	} else {
		s.withStore(store)
	}

	p := tea.NewProgram(newModel(ctx, s, *fresh), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
