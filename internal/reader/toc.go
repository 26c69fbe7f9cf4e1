package reader

import "errors"

// Errors returned by word sources. They report a stale or out-of-range
// index from the caller and are never retried.
var (
	ErrInvalidTextIndex      = errors.New("reader: invalid text index")
	ErrInvalidParagraphIndex = errors.New("reader: invalid paragraph index")
	ErrInvalidChapterIndex   = errors.New("reader: invalid chapter index")
)

// ChapterInfo describes one chapter of the selected text
type ChapterInfo struct {
	Label          string
	StartParagraph int
	ParagraphCount int
}

// TextCatalog lists the texts a source can read.
type TextCatalog interface {
	TitleCount() int
	TitleAt(i int) (string, bool)
	HasCoverAt(i int) bool
}

// WordSource yields the words of the selected text one at a time.
//
// NextWord returns nil with a nil error when no word is available. That is
// the end of the text unless IsWaitingForRefill reports true, in which case
// the caller must supply more bytes and poll again.
type WordSource interface {
	Reset()
	NextWord() (*WordToken, error)
	// ParagraphProgress is the 1-based index of the last word returned and
	// the word count of the current paragraph.
	ParagraphProgress() (word, total int)
	// ParagraphIndex is 1-based, or 0 when there is no paragraph.
	ParagraphIndex() int
	ParagraphTotal() int
	IsWaitingForRefill() bool
}

// SelectableWordSource switches between the texts of a catalog.
type SelectableWordSource interface {
	WordSource
	SelectText(i int) error
	SelectedIndex() int
}

// ParagraphNavigator jumps between paragraphs of the buffered text.
type ParagraphNavigator interface {
	WordSource
	SeekParagraph(i int) error
	ParagraphPreview(i int) (string, bool)
}

// NavigationCatalog exposes chapters. SeekChapter reports false when the
// source cannot seek by chapter; callers then fall back to paragraphs.
type NavigationCatalog interface {
	WordSource
	ChapterCount() int
	ChapterAt(i int) (ChapterInfo, bool)
	CurrentChapterIndex() (int, bool)
	SeekChapter(i int) (bool, error)
	ChapterDataReady(i int) bool
}

// Library is everything a reading UI needs from a source.
type Library interface {
	TextCatalog
	SelectableWordSource
	ParagraphNavigator
	NavigationCatalog
}
