// Package reader provides core RSVP (Rapid Serial Visual Presentation) speed reading logic.
package reader

import (
	"time"
	"unicode/utf8"
)

// Pacing multipliers applied to the base word delay.
const (
	SentencePause = 2.0
	ClausePause   = 1.5
)

// Reader holds the state for an RSVP speed reading session over a Library.
type Reader struct {
	Source         Library
	Word           WordToken
	WPM            int
	Paused         bool
	Done           bool
	LastArrowPress time.Time
}

// NewReader creates a new Reader over src at the given words-per-minute setting.
func NewReader(src Library, wpm int) *Reader {
	return &Reader{
		Source: src,
		WPM:    wpm,
	}
}

// GetORPPosition returns the Optimal Recognition Point index for a word.
// This is the character (rune) position where the eye should focus for fastest recognition.
func GetORPPosition(word string) int {
	length := utf8.RuneCountInString(word)
	if length <= 1 {
		return 0
	} else if length <= 5 {
		return 1
	}
	return length / 3
}

// Advance fetches the next word. It returns false when no word is
// available; Done tells the end of the text apart from a pending refill.
func (r *Reader) Advance() (bool, error) {
	tok, err := r.Source.NextWord()
	if err != nil {
		return false, err
	}
	if tok == nil {
		r.Done = !r.Source.IsWaitingForRefill()
		return false, nil
	}
	r.Word = *tok
	r.Done = false
	return true, nil
}

// Waiting reports whether the source needs a refill before it can continue.
func (r *Reader) Waiting() bool { return r.Source.IsWaitingForRefill() }

// GetDelay returns the base duration to display each word based on WPM.
func (r *Reader) GetDelay() time.Duration {
	return time.Duration(60.0/float64(r.WPM)*1000) * time.Millisecond
}

// WordDelay returns how long the current word stays up: longer after the
// end of a sentence or clause.
func (r *Reader) WordDelay() time.Duration {
	d := r.GetDelay()
	switch {
	case r.Word.EndsSentence:
		return time.Duration(float64(d) * SentencePause)
	case r.Word.EndsClause:
		return time.Duration(float64(d) * ClausePause)
	}
	return d
}

// CurrentWord returns the word on display.
func (r *Reader) CurrentWord() string { return r.Word.Text }

// Progress returns the current paragraph and the paragraph count of the
// buffered text.
func (r *Reader) Progress() (current, total int) {
	return r.Source.ParagraphIndex(), r.Source.ParagraphTotal()
}

// SelectBook switches to text i and starts it from the top.
func (r *Reader) SelectBook(i int) error {
	if err := r.Source.SelectText(i); err != nil {
		return err
	}
	r.Word, r.Done = WordToken{}, false
	return nil
}

// JumpToPrevParagraph restarts the current paragraph, or moves to the
// previous one when the current one has barely started.
func (r *Reader) JumpToPrevParagraph() error {
	i := r.Source.ParagraphIndex() - 1
	if word, _ := r.Source.ParagraphProgress(); word <= 1 {
		i--
	}
	r.Done = false
	return r.Source.SeekParagraph(max(i, 0))
}

// JumpToNextParagraph moves to the next paragraph, staying put on the
// last one.
func (r *Reader) JumpToNextParagraph() error {
	i := r.Source.ParagraphIndex()
	if i >= r.Source.ParagraphTotal() {
		return nil
	}
	return r.Source.SeekParagraph(i)
}

// CurrentChapter returns the index of the chapter being read. Sources
// without chapter seeking report the pseudo-chapter of the current
// paragraph.
func (r *Reader) CurrentChapter() int {
	if i, ok := r.Source.CurrentChapterIndex(); ok {
		return i
	}
	p := max(r.Source.ParagraphIndex()-1, 0)
	return p / ParagraphsPerChapter
}

// JumpToChapter seeks to chapter i. A source that cannot seek by chapter is
// moved to the chapter's first paragraph instead.
func (r *Reader) JumpToChapter(i int) error {
	r.Done = false
	ok, err := r.Source.SeekChapter(i)
	if err != nil || ok {
		return err
	}
	info, found := r.Source.ChapterAt(i)
	if !found {
		return ErrInvalidChapterIndex
	}
	return r.Source.SeekParagraph(info.StartParagraph)
}

// CurrentChapterTitle returns the label of the current chapter.
func (r *Reader) CurrentChapterTitle() string {
	if info, ok := r.Source.ChapterAt(r.CurrentChapter()); ok {
		return info.Label
	}
	return ""
}
