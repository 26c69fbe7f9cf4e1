// Package catalog holds the books of a library as streaming slots. Each slot
// owns the sanitized window of the resource it is reading, and the selected
// slot is read word by word through the reader interfaces. When the window
// runs dry the catalog raises a refill request that a producer (see
// storage.Refiller) answers with the next chunk.
package catalog

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/metcalfc/sdreader/internal/reader"
	"github.com/metcalfc/sdreader/internal/sanitize"
)

const (
	// MaxTitles is the number of slots a catalog holds.
	MaxTitles = 16
	// TitleBytes bounds a display title.
	TitleBytes = 48
	// PathBytes bounds a resource path.
	PathBytes = 192
	// LabelBytes bounds a chapter label.
	LabelBytes = 48
)

const defaultLabel = "Section"

// LoadResult reports whether content arrived and whether any of it was cut
// to fit a capacity.
type LoadResult struct {
	Loaded    bool
	Truncated bool
}

// Entry is a book as seen by a library scan.
type Entry struct {
	Title    string
	HasCover bool
}

// RefillRequest asks the producer for more text for Book. A nil Chapter
// continues where the last chunk ended; otherwise the producer should seek
// to that chapter.
type RefillRequest struct {
	Book    int
	Chapter *int
}

type slot struct {
	title    string
	hasCover bool

	stream     sanitize.Stream
	paragraphs []string

	path       string
	streamMode bool
	streamEnd  bool
	terminal   bool

	chapter      int
	chapterTotal int
	label        string

	refill     bool
	seekTarget *int
}

func newSlot(title string, hasCover bool) *slot {
	return &slot{
		title:        title,
		hasCover:     hasCover,
		streamEnd:    true,
		terminal:     true,
		chapterTotal: 1,
		label:        defaultLabel,
	}
}

// Catalog is not safe for concurrent use.
type Catalog struct {
	slots    []*slot
	selected int
	cur      reader.Cursor
	waiting  bool
	logger   *slog.Logger
}

var _ reader.Library = (*Catalog)(nil)

// New returns an empty catalog. A nil logger means slog.Default().
func New(logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{logger: logger}
	c.cur.Clear()
	return c
}

// SetTitles replaces the catalog with one slot per file name, titled from
// the name.
func (c *Catalog) SetTitles(names []string) LoadResult {
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		entries = append(entries, Entry{Title: reader.FileTitle(name)})
	}
	return c.SetEntries(entries)
}

// SetDisplayTitles replaces the catalog with one slot per title.
func (c *Catalog) SetDisplayTitles(titles []string) LoadResult {
	entries := make([]Entry, len(titles))
	for i, t := range titles {
		entries[i] = Entry{Title: t}
	}
	return c.SetEntries(entries)
}

// SetEntries replaces the catalog with one slot per entry. Blank titles are
// skipped and entries beyond MaxTitles are dropped.
func (c *Catalog) SetEntries(entries []Entry) LoadResult {
	var res LoadResult
	c.slots = c.slots[:0]
	for _, e := range entries {
		if strings.TrimSpace(e.Title) == "" {
			continue
		}
		if len(c.slots) == MaxTitles {
			res.Truncated = true
			break
		}
		title, cut := clampText(e.Title, TitleBytes)
		res.Truncated = res.Truncated || cut
		c.slots = append(c.slots, newSlot(title, e.HasCover))
	}
	res.Loaded = len(c.slots) > 0

	c.selected = min(c.selected, max(len(c.slots)-1, 0))
	c.waiting = false
	c.cur.Reset(c.paragraphs())
	c.logger.Debug("catalog loaded", "titles", len(c.slots), "truncated", res.Truncated)
	return res
}

func (c *Catalog) slot(i int) (*slot, error) {
	if i < 0 || i >= len(c.slots) {
		return nil, reader.ErrInvalidTextIndex
	}
	return c.slots[i], nil
}

func (c *Catalog) current() *slot {
	if c.selected >= len(c.slots) {
		return nil
	}
	return c.slots[c.selected]
}

func (c *Catalog) paragraphs() []string {
	if s := c.current(); s != nil {
		return s.paragraphs
	}
	return nil
}

// ApplyChunk sanitizes the next window of book's current resource and makes
// it the slot's text. An empty resourcePath loads a static text; anything
// else puts the slot in stream mode, and a path different from the last one
// starts the next chapter. endOfStream marks the last window of the
// resource.
func (c *Catalog) ApplyChunk(book int, chunk []byte, endOfStream bool, resourcePath string) (LoadResult, error) {
	s, err := c.slot(book)
	if err != nil {
		return LoadResult{}, err
	}
	path, pathCut := clampBytes(resourcePath, PathBytes)

	if path != s.path {
		s.stream.Reset()
		if path != "" {
			if s.path != "" {
				s.chapter++
			}
			s.label = ResourceLabel(path)
		}
	}

	text, cut := s.stream.Feed(chunk, isPlainResource(path), endOfStream)
	s.paragraphs = reader.Paragraphs(text)

	s.streamMode = path != ""
	s.streamEnd = endOfStream
	s.terminal = !s.streamMode
	s.refill = false
	if s.streamMode {
		s.chapterTotal = max(s.chapterTotal, s.chapter+1)
	} else {
		s.chapter, s.chapterTotal, s.label = 0, 1, defaultLabel
	}
	s.path = path

	if book == c.selected {
		c.cur.Reset(s.paragraphs)
		if s.streamMode && !s.terminal && len(s.paragraphs) == 0 {
			s.refill = true
			c.waiting = true
		} else {
			c.waiting = false
		}
	}

	c.logger.Debug("chunk applied",
		"book", book, "resource", path, "chapter", s.chapter,
		"bytes_read", len(chunk), "paragraphs", len(s.paragraphs), "end", endOfStream)
	return LoadResult{Loaded: len(s.paragraphs) > 0, Truncated: cut || pathCut}, nil
}

func isPlainResource(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".txt") || strings.HasSuffix(lower, ".text")
}

// MarkStreamExhausted ends book's stream: no further refills are requested
// and the reader sees the end of the text once the window is used up.
func (c *Catalog) MarkStreamExhausted(book int) error {
	s, err := c.slot(book)
	if err != nil {
		return err
	}
	s.streamEnd = true
	s.terminal = true
	s.chapterTotal = max(s.chapterTotal, s.chapter+1)
	s.refill = false
	s.seekTarget = nil
	s.stream.Reset()
	if book == c.selected {
		c.waiting = false
	}
	c.logger.Debug("stream exhausted", "book", book, "resource", s.path)
	return nil
}

// TakeRefillRequest returns the pending request of the selected book, if
// any, and clears it.
func (c *Catalog) TakeRefillRequest() (RefillRequest, bool) {
	s := c.current()
	if s == nil || !s.streamMode || !s.refill {
		return RefillRequest{}, false
	}
	req := RefillRequest{Book: c.selected, Chapter: s.seekTarget}
	s.refill = false
	s.seekTarget = nil
	return req, true
}

// SetChapterMetadata records where book's current resource sits in the
// book. index is clamped below total, and a blank label keeps the current
// one.
func (c *Catalog) SetChapterMetadata(book, index, total int, label string) error {
	s, err := c.slot(book)
	if err != nil {
		return err
	}
	s.chapterTotal = max(total, 1)
	s.chapter = min(max(index, 0), s.chapterTotal-1)
	if strings.TrimSpace(label) != "" {
		s.label, _ = clampText(label, LabelBytes)
	}
	return nil
}

// SetChapterHint is SetChapterMetadata without a label.
func (c *Catalog) SetChapterHint(book, index, total int) error {
	return c.SetChapterMetadata(book, index, total, "")
}

// StreamResourcePath returns the resource book is streaming, or "" for a
// static slot.
func (c *Catalog) StreamResourcePath(book int) (string, error) {
	s, err := c.slot(book)
	if err != nil {
		return "", err
	}
	return s.path, nil
}

func (c *Catalog) requestRefill(s *slot) {
	s.refill = true
	c.waiting = true
}

func (c *Catalog) TitleCount() int { return len(c.slots) }

func (c *Catalog) TitleAt(i int) (string, bool) {
	s, err := c.slot(i)
	if err != nil {
		return "", false
	}
	return s.title, true
}

func (c *Catalog) HasCoverAt(i int) bool {
	s, err := c.slot(i)
	return err == nil && s.hasCover
}

func (c *Catalog) SelectText(i int) error {
	s, err := c.slot(i)
	if err != nil {
		return err
	}
	c.selected = i
	c.waiting = false
	s.refill = false
	s.seekTarget = nil
	c.cur.Reset(s.paragraphs)
	return nil
}

func (c *Catalog) SelectedIndex() int { return c.selected }

func (c *Catalog) Reset() {
	c.waiting = false
	c.cur.Reset(c.paragraphs())
}

// NextWord returns the next word of the selected book. A nil word with
// IsWaitingForRefill set means more text has been requested; a nil word
// without it is the end of the book.
func (c *Catalog) NextWord() (*reader.WordToken, error) {
	s := c.current()
	if s == nil {
		return nil, nil
	}
	if len(s.paragraphs) == 0 {
		if s.streamMode && !s.terminal {
			c.requestRefill(s)
		}
		return nil, nil
	}
	if tok := c.cur.Next(s.paragraphs); tok != nil {
		return tok, nil
	}
	if s.streamMode && !s.terminal {
		c.requestRefill(s)
		s.paragraphs = nil
		c.cur.Clear()
	}
	return nil, nil
}

func (c *Catalog) ParagraphProgress() (int, int) { return c.cur.Progress() }
func (c *Catalog) ParagraphIndex() int           { return c.cur.Index(c.paragraphs()) }
func (c *Catalog) ParagraphTotal() int           { return len(c.paragraphs()) }
func (c *Catalog) IsWaitingForRefill() bool      { return c.waiting }

// SeekParagraph moves within the window currently loaded.
func (c *Catalog) SeekParagraph(i int) error {
	if err := c.cur.Seek(c.paragraphs(), i); err != nil {
		return err
	}
	c.waiting = false
	return nil
}

func (c *Catalog) ParagraphPreview(i int) (string, bool) {
	ps := c.paragraphs()
	if i < 0 || i >= len(ps) {
		return "", false
	}
	return ps[i], true
}

func (c *Catalog) ChapterCount() int {
	s := c.current()
	switch {
	case s == nil:
		return 1
	case s.streamMode:
		return s.chapterTotal
	default:
		return reader.PseudoChapterCount(len(s.paragraphs))
	}
}

// ChapterAt describes chapter i. In stream mode only the current chapter
// is known in detail; the rest are placeholders until sought.
func (c *Catalog) ChapterAt(i int) (reader.ChapterInfo, bool) {
	s := c.current()
	if s == nil {
		return reader.ChapterInfo{}, false
	}
	if !s.streamMode {
		return reader.PseudoChapterAt(s.paragraphs, i)
	}
	if i < 0 || i >= s.chapterTotal {
		return reader.ChapterInfo{}, false
	}
	if i == s.chapter {
		label := s.label
		if label == "" {
			label = defaultLabel
		}
		return reader.ChapterInfo{Label: label, ParagraphCount: max(len(s.paragraphs), 1)}, true
	}
	return reader.ChapterInfo{Label: "Chapter", ParagraphCount: 1}, true
}

func (c *Catalog) CurrentChapterIndex() (int, bool) {
	s := c.current()
	if s == nil || !s.streamMode {
		return 0, false
	}
	return min(s.chapter, s.chapterTotal-1), true
}

// SeekChapter asks for chapter i of the selected book. It returns false for
// a static book, which has no chapters to seek. Seeking the current chapter
// rewinds it in place; any other chapter drops the window and raises a
// refill request carrying the target. A chapter still being fetched is
// requested again.
func (c *Catalog) SeekChapter(i int) (bool, error) {
	s := c.current()
	if s == nil || !s.streamMode {
		return false, nil
	}
	if i < 0 || i >= s.chapterTotal {
		return false, reader.ErrInvalidChapterIndex
	}
	if i == s.chapter && s.path != "" {
		c.waiting = false
		s.refill = false
		s.seekTarget = nil
		c.cur.Reset(s.paragraphs)
		return true, nil
	}

	s.chapter = i
	s.label = "Chapter " + strconv.Itoa(i+1)
	s.paragraphs = nil
	s.stream.Reset()
	s.path = ""
	s.streamEnd = false
	s.terminal = false
	target := i
	s.seekTarget = &target
	c.requestRefill(s)
	c.cur.Clear()
	c.logger.Debug("chapter seek", "book", c.selected, "chapter", i)
	return true, nil
}

// ChapterDataReady reports whether chapter i can be read right now.
func (c *Catalog) ChapterDataReady(i int) bool {
	s := c.current()
	if s == nil || !s.streamMode {
		return true
	}
	if i < 0 || i >= s.chapterTotal {
		return false
	}
	return i == s.chapter && !c.waiting && (len(s.paragraphs) > 0 || s.terminal)
}
