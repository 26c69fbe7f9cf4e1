package reader

import (
	"testing"
	"time"
)

func TestGetORPPosition(t *testing.T) {
	tests := []struct {
		word string
		want int
	}{
		{"", 0},
		{"a", 0},
		{"to", 1},
		{"hello", 1},
		{"reading", 2},
		{"extraordinary", 4},
		{"señor", 1},
		{"canción", 2},
	}
	for _, tt := range tests {
		if got := GetORPPosition(tt.word); got != tt.want {
			t.Errorf("GetORPPosition(%q) = %d, want %d", tt.word, got, tt.want)
		}
	}
}

func TestReaderPacing(t *testing.T) {
	r := NewReader(NewStaticSource(StaticBook{Paragraphs: []string{"one, two three."}}), 300)
	base := 200 * time.Millisecond
	if r.GetDelay() != base {
		t.Fatalf("GetDelay = %v, want %v", r.GetDelay(), base)
	}

	want := []time.Duration{300 * time.Millisecond, base, 400 * time.Millisecond}
	for i, d := range want {
		ok, err := r.Advance()
		if err != nil || !ok {
			t.Fatalf("Advance %d = %v %v", i, ok, err)
		}
		if got := r.WordDelay(); got != d {
			t.Errorf("word %q delay = %v, want %v", r.CurrentWord(), got, d)
		}
	}
	if ok, _ := r.Advance(); ok || !r.Done {
		t.Errorf("Advance at end = %v, Done = %v", ok, r.Done)
	}
}

func TestReaderParagraphJumps(t *testing.T) {
	src := NewStaticSource(StaticBook{Paragraphs: []string{"a b", "c d", "e f"}})
	r := NewReader(src, 300)
	r.Advance()

	if err := r.JumpToNextParagraph(); err != nil {
		t.Fatal(err)
	}
	r.Advance()
	if r.CurrentWord() != "c" {
		t.Fatalf("after next paragraph word = %q", r.CurrentWord())
	}

	// One word in: jumping back goes to the previous paragraph.
	if err := r.JumpToPrevParagraph(); err != nil {
		t.Fatal(err)
	}
	r.Advance()
	r.Advance()
	if r.CurrentWord() != "b" {
		t.Fatalf("after prev paragraph word = %q", r.CurrentWord())
	}

	// Two words in: jumping back restarts the paragraph.
	if err := r.JumpToPrevParagraph(); err != nil {
		t.Fatal(err)
	}
	r.Advance()
	if r.CurrentWord() != "a" {
		t.Errorf("after restart word = %q", r.CurrentWord())
	}

	r.JumpToNextParagraph()
	r.JumpToNextParagraph()
	r.JumpToNextParagraph()
	if cur, total := r.Progress(); cur != 3 || total != 3 {
		t.Errorf("Progress = %d/%d, want 3/3", cur, total)
	}
}

func TestReaderChaptersOnStaticSource(t *testing.T) {
	src := NewStaticSource(StaticBook{Paragraphs: []string{"uno", "dos", "tres cuatro", "cinco"}})
	r := NewReader(src, 300)

	if err := r.JumpToChapter(1); err != nil {
		t.Fatalf("JumpToChapter: %v", err)
	}
	r.Advance()
	if r.CurrentWord() != "tres" || r.CurrentChapter() != 1 {
		t.Errorf("word %q in chapter %d", r.CurrentWord(), r.CurrentChapter())
	}
	if got := r.CurrentChapterTitle(); got != "tres cuatro" {
		t.Errorf("CurrentChapterTitle = %q", got)
	}
	if err := r.JumpToChapter(7); err != ErrInvalidChapterIndex {
		t.Errorf("JumpToChapter(7) = %v", err)
	}
}

func TestReaderSelectBook(t *testing.T) {
	src := NewStaticSource(
		StaticBook{Title: "A", Paragraphs: []string{"first"}},
		StaticBook{Title: "B", Paragraphs: []string{"second"}},
	)
	r := NewReader(src, 300)
	r.Advance()
	r.Advance()
	if !r.Done {
		t.Fatal("reader not done after the only word")
	}
	if err := r.SelectBook(1); err != nil {
		t.Fatal(err)
	}
	if r.Done || r.CurrentWord() != "" {
		t.Errorf("SelectBook kept state: done=%v word=%q", r.Done, r.CurrentWord())
	}
	r.Advance()
	if r.CurrentWord() != "second" {
		t.Errorf("word = %q", r.CurrentWord())
	}
}
