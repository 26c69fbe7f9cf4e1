package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/metcalfc/sdreader/internal/catalog"
	"github.com/metcalfc/sdreader/internal/reader"
	"github.com/metcalfc/sdreader/internal/state"
	"github.com/metcalfc/sdreader/internal/storage"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	minWPM  = 100
	maxWPM  = 1500
	stepWPM = 50
)

var errNoBooks = errors.New("no books found")

// session is one reading session over a books root or a single file. The
// UI goroutine and the refill goroutine share it, so every access to the
// source goes through mu.
type session struct {
	mu       sync.Mutex
	r        *reader.Reader
	refiller *storage.Refiller
	cat      *catalog.Catalog
	store    *state.Store
	hashes   []string
	logger   *slog.Logger
}

// openLibrary scans root/BOOKS and primes a streaming catalog with every
// book found.
func openLibrary(ctx context.Context, root string, wpm int, logger *slog.Logger) (*session, error) {
	probe := storage.NewProbe(root, logger)
	res, err := probe.ScanWithRetry(ctx)
	if err != nil {
		return nil, err
	}
	if !res.DirFound {
		return nil, fmt.Errorf("%s: %w", probe.Dir(), os.ErrNotExist)
	}
	if len(res.Books) == 0 {
		return nil, fmt.Errorf("%s: %w", probe.Dir(), errNoBooks)
	}

	return openBooks(probe, res.Books, wpm, logger), nil
}

// openBooks primes a streaming catalog with books served by probe.
func openBooks(probe *storage.Probe, books []storage.Book, wpm int, logger *slog.Logger) *session {
	cat := catalog.New(logger)
	refiller := storage.NewRefiller(probe, logger)
	refiller.Prime(cat, books)

	s := &session{
		r:        reader.NewReader(cat, wpm),
		refiller: refiller,
		cat:      cat,
		logger:   logger,
	}
	for _, b := range books {
		hash, err := state.ComputeHash(filepath.Join(probe.Dir(), b.Name))
		if err != nil {
			logger.Warn("book hash", "short_name", b.Name, "err", err)
		}
		s.hashes = append(s.hashes, hash)
	}
	return s
}

// openFile opens a single file. An archive streams like a library book;
// anything else is read whole into a static session.
func openFile(path string, wpm int, logger *slog.Logger) (*session, error) {
	probe := storage.NewProbeDir(filepath.Dir(path), logger)
	archived, isArchive, err := probe.Describe(filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if isArchive {
		return openBooks(probe, []storage.Book{archived}, wpm, logger), nil
	}

	book, err := reader.LoadStaticBook(path)
	if err != nil {
		return nil, err
	}
	if len(book.Paragraphs) == 0 {
		return nil, fmt.Errorf("%s: no text to read", path)
	}
	hash, err := state.ComputeHash(path)
	if err != nil {
		logger.Warn("book hash", "path", path, "err", err)
	}
	return &session{
		r:      reader.NewReader(reader.NewStaticSource(book), wpm),
		hashes: []string{hash},
		logger: logger,
	}, nil
}

// withStore attaches a progress store. A nil store disables resume.
func (s *session) withStore(store *state.Store) *session {
	s.store = store
	return s
}

func (s *session) titles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.r.Source
	out := make([]string, 0, src.TitleCount())
	for i := range src.TitleCount() {
		t, _ := src.TitleAt(i)
		out = append(out, t)
	}
	return out
}

func (s *session) hasCover(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Source.HasCoverAt(i)
}

// open selects book i and moves to its saved progress, unless fresh is
// set.
func (s *session) open(i int, fresh bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.r.SelectBook(i); err != nil {
		return err
	}
	hash := s.hash(i)
	if s.store == nil || hash == "" {
		return nil
	}
	if fresh {
		return s.store.Clear(hash)
	}
	p, ok := s.store.Get(hash)
	if !ok {
		return nil
	}
	s.logger.Info("resuming", "book", i, "chapter", p.Chapter+1, "paragraph", p.Paragraph+1)
	if s.cat != nil {
		if i := min(p.Chapter, s.r.Source.ChapterCount()-1); i > 0 {
			return s.r.JumpToChapter(i)
		}
		return nil
	}
	return s.r.Source.SeekParagraph(p.Paragraph)
}

func (s *session) hash(i int) string {
	if i < 0 || i >= len(s.hashes) {
		return ""
	}
	return s.hashes[i]
}

// save records the progress of the selected book.
func (s *session) save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash := s.hash(s.r.Source.SelectedIndex())
	if s.store == nil || hash == "" {
		return nil
	}
	return s.store.Set(hash, state.Progress{
		Chapter:   s.r.CurrentChapter(),
		Paragraph: max(s.r.Source.ParagraphIndex()-1, 0),
	})
}

// advance moves to the next word. It reports whether a word is on display;
// when not, the reader is either done or waiting for a refill.
func (s *session) advance() (ok, waiting, done bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err = s.r.Advance()
	return ok, s.r.Waiting(), s.r.Done, err
}

// refill answers one pending refill request. Static sessions never have
// one.
func (s *session) refill(ctx context.Context) bool {
	if s.refiller == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refiller.Service(ctx, s.cat)
}

// snapshot is what a view needs to draw one frame.
type snapshot struct {
	Word         string
	WPM          int
	Paused       bool
	Done         bool
	Waiting      bool
	Title        string
	Chapter      int
	ChapterCount int
	ChapterLabel string
	Paragraph    int
	Paragraphs   int
}

func (s *session) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.r.Source
	title, _ := src.TitleAt(src.SelectedIndex())
	current, total := s.r.Progress()
	return snapshot{
		Word:         s.r.CurrentWord(),
		WPM:          s.r.WPM,
		Paused:       s.r.Paused,
		Done:         s.r.Done,
		Waiting:      s.r.Waiting(),
		Title:        title,
		Chapter:      s.r.CurrentChapter(),
		ChapterCount: max(src.ChapterCount(), 1),
		ChapterLabel: s.r.CurrentChapterTitle(),
		Paragraph:    current,
		Paragraphs:   total,
	}
}

// wordDelay is how long the word on display stays up.
func (s *session) wordDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.WordDelay()
}

func (s *session) togglePause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.r.Paused = !s.r.Paused
	return s.r.Paused
}

func (s *session) setPaused(p bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.r.Paused = p
}

func (s *session) paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Paused
}

// changeWPM adjusts the speed by delta, within the supported range.
func (s *session) changeWPM(delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.r.WPM = min(max(s.r.WPM+delta, minWPM), maxWPM)
	return s.r.WPM
}

// paragraph jumps to the previous (dir < 0) or next paragraph.
func (s *session) paragraph(dir int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dir < 0 {
		return s.r.JumpToPrevParagraph()
	}
	return s.r.JumpToNextParagraph()
}

// chapter jumps dir chapters from the current one, staying within the
// book.
func (s *session) chapter(dir int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := max(s.r.Source.ChapterCount()-1, 0)
	i := min(max(s.r.CurrentChapter()+dir, 0), last)
	return s.r.JumpToChapter(i)
}

// restart goes back to the top of the selected book and forgets its
// progress.
func (s *session) restart() error {
	s.mu.Lock()
	hash := s.hash(s.r.Source.SelectedIndex())
	err := s.r.JumpToChapter(0)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if s.store == nil || hash == "" {
		return nil
	}
	return s.store.Clear(hash)
}

// openText wraps piped text in a one-book static session. It has no file
// behind it, so progress is not kept.
func openText(text string, wpm int, logger *slog.Logger) (*session, error) {
	paragraphs := reader.Paragraphs(text)
	if len(paragraphs) == 0 {
		return nil, errors.New("no text to read")
	}
	book := reader.StaticBook{Title: "stdin", Paragraphs: paragraphs}
	return &session{
		r:      reader.NewReader(reader.NewStaticSource(book), wpm),
		logger: logger,
	}, nil
}

// openSession picks the session for the command line: a named file, piped
// text, or the library under root.
func openSession(ctx context.Context, file, root string, wpm int, logger *slog.Logger) (*session, error) {
	if file != "" {
		return openFile(file, wpm, logger)
	}
	if stat, err := os.Stdin.Stat(); err == nil && stat.Mode()&os.ModeCharDevice == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		if len(data) > 0 {
			return openText(string(data), wpm, logger)
		}
	}
	return openLibrary(ctx, root, wpm, logger)
}

// defaultRoot is $SDREADER_ROOT, or the working directory.
func defaultRoot() string {
	if root := os.Getenv("SDREADER_ROOT"); root != "" {
		return root
	}
	return "."
}

// chapters lists the chapters of the selected book. Streaming books only
// know labels of chapters already visited; the rest read "Chapter N".
func (s *session) chapters() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.r.Source
	out := make([]string, src.ChapterCount())
	for i := range out {
		out[i] = fmt.Sprintf("Chapter %d", i+1)
		if info, ok := src.ChapterAt(i); ok && info.Label != "" && info.Label != "Chapter" {
			out[i] = info.Label
		}
	}
	return out
}

// jumpToChapter seeks chapter i of the selected book.
func (s *session) jumpToChapter(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.JumpToChapter(i)
}
