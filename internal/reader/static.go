package reader

const (
	// ParagraphsPerChapter is how many paragraphs make a pseudo-chapter
	// when a text has no chapter structure of its own.
	ParagraphsPerChapter = 2
	// ChapterLabelWords is how many words of a paragraph label it.
	ChapterLabelWords = 6
)

// StaticBook is a text held entirely in memory.
type StaticBook struct {
	Title      string
	Paragraphs []string
	HasCover   bool
}

// StaticSource serves in-memory books. Chapters are pseudo-chapters of
// ParagraphsPerChapter paragraphs and cannot be sought directly.
type StaticSource struct {
	books    []StaticBook
	selected int
	cur      Cursor
}

var _ Library = (*StaticSource)(nil)

// NewStaticSource returns a source over books with the first one selected.
func NewStaticSource(books ...StaticBook) *StaticSource {
	s := &StaticSource{books: books}
	s.cur.Reset(s.paragraphs())
	return s
}

func (s *StaticSource) paragraphs() []string {
	if s.selected >= len(s.books) {
		return nil
	}
	return s.books[s.selected].Paragraphs
}

func (s *StaticSource) TitleCount() int { return len(s.books) }

func (s *StaticSource) TitleAt(i int) (string, bool) {
	if i < 0 || i >= len(s.books) {
		return "", false
	}
	return s.books[i].Title, true
}

func (s *StaticSource) HasCoverAt(i int) bool {
	return i >= 0 && i < len(s.books) && s.books[i].HasCover
}

func (s *StaticSource) SelectText(i int) error {
	if i < 0 || i >= len(s.books) {
		return ErrInvalidTextIndex
	}
	s.selected = i
	s.cur.Reset(s.paragraphs())
	return nil
}

func (s *StaticSource) SelectedIndex() int { return s.selected }

func (s *StaticSource) Reset() { s.cur.Reset(s.paragraphs()) }

// NextWord returns nil at the end of the last paragraph.
func (s *StaticSource) NextWord() (*WordToken, error) {
	return s.cur.Next(s.paragraphs()), nil
}

func (s *StaticSource) ParagraphProgress() (int, int) { return s.cur.Progress() }
func (s *StaticSource) ParagraphIndex() int           { return s.cur.Index(s.paragraphs()) }
func (s *StaticSource) ParagraphTotal() int           { return len(s.paragraphs()) }
func (s *StaticSource) IsWaitingForRefill() bool      { return false }

// SeekParagraph clamps i to the last paragraph.
func (s *StaticSource) SeekParagraph(i int) error {
	ps := s.paragraphs()
	if len(ps) > 0 {
		i = min(max(i, 0), len(ps)-1)
	}
	return s.cur.Seek(ps, i)
}

func (s *StaticSource) ParagraphPreview(i int) (string, bool) {
	ps := s.paragraphs()
	if i < 0 || i >= len(ps) {
		return "", false
	}
	return ps[i], true
}

func (s *StaticSource) ChapterCount() int { return PseudoChapterCount(len(s.paragraphs())) }

func (s *StaticSource) ChapterAt(i int) (ChapterInfo, bool) {
	return PseudoChapterAt(s.paragraphs(), i)
}

func (s *StaticSource) CurrentChapterIndex() (int, bool) { return 0, false }
func (s *StaticSource) SeekChapter(int) (bool, error)    { return false, nil }
func (s *StaticSource) ChapterDataReady(int) bool        { return true }

// PseudoChapterCount is the number of pseudo-chapters over n paragraphs,
// never less than one.
func PseudoChapterCount(n int) int {
	if n == 0 {
		return 1
	}
	return (n + ParagraphsPerChapter - 1) / ParagraphsPerChapter
}

// PseudoChapterAt describes pseudo-chapter i, labeled with the first words
// of its first paragraph. With no paragraphs there is a single "Empty"
// chapter.
func PseudoChapterAt(paragraphs []string, i int) (ChapterInfo, bool) {
	if len(paragraphs) == 0 {
		return ChapterInfo{Label: "Empty", ParagraphCount: 1}, true
	}
	if i < 0 || i >= PseudoChapterCount(len(paragraphs)) {
		return ChapterInfo{}, false
	}
	start := i * ParagraphsPerChapter
	return ChapterInfo{
		Label:          FirstWordsExcerpt(paragraphs[start], ChapterLabelWords),
		StartParagraph: start,
		ParagraphCount: min(len(paragraphs)-start, ParagraphsPerChapter),
	}, true
}
