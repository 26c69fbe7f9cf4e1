//go:build !gui

package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm, cmd
}

func TestFormatWord(t *testing.T) {
	tests := []struct {
		name  string
		word  string
		parts []string
	}{
		{"simple word", "hello", []string{"h", "e", "llo"}},
		{"single char", "a", []string{"a"}},
		{"with punctuation", "hello,", []string{"he", "l", "lo,"}},
		{"multibyte", "niño", []string{"n", "i", "ño"}},
		{"long word", "capítulos", []string{"cap", "í", "tulos"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatWord(tt.word)
			for _, p := range tt.parts {
				if !strings.Contains(result, p) {
					t.Errorf("formatWord(%q) = %q, missing %q", tt.word, result, p)
				}
			}
		})
	}
	if formatWord("") != "" {
		t.Error("formatWord of an empty word is not empty")
	}
}

func TestAnchorORPText(t *testing.T) {
	tests := []struct {
		word  string
		width int
		pad   int
	}{
		{"hello", 80, 39},
		{"a", 80, 40},
		{"extraordinary", 80, 36},
		{"hello", 0, 0},
	}
	for _, tt := range tests {
		got := anchorORPText(tt.word, tt.word, tt.width)
		if pad := len(got) - len(strings.TrimLeft(got, " ")); pad != tt.pad {
			t.Errorf("anchorORPText(%q, %d) pads %d, want %d", tt.word, tt.width, pad, tt.pad)
		}
	}
}

func TestModelSingleBook(t *testing.T) {
	s, err := openText("Hello world. This is a test, of the reader.", 300, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	m := newModel(t.Context(), s, false)
	if m.picking {
		t.Fatal("a single book opened the picker")
	}
	if m.Init() == nil {
		t.Fatal("Init did not start ticking")
	}

	m, cmd := update(t, m, tickMsg{gen: m.gen})
	if cmd == nil || s.snapshot().Word != "Hello" {
		t.Fatalf("first tick shows %q", s.snapshot().Word)
	}
	if _, cmd := update(t, m, tickMsg{gen: m.gen + 1}); cmd != nil {
		t.Error("a stale tick was not dropped")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if !s.paused() {
		t.Error("space did not pause")
	}
	if _, cmd := update(t, m, tickMsg{gen: m.gen}); cmd != nil {
		t.Error("paused model kept ticking")
	}
	gen := m.gen
	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if s.paused() || cmd == nil || m.gen != gen+1 {
		t.Error("space did not resume with a new tick chain")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	if s.snapshot().WPM != 350 {
		t.Errorf("WPM after up = %d", s.snapshot().WPM)
	}

	view := m.View()
	for _, want := range []string{"stdin", "350 WPM", "Ch 1/1"} {
		if !strings.Contains(view, want) {
			t.Errorf("view is missing %q:\n%s", want, view)
		}
	}

	m, cmd = update(t, m, runeKey('q'))
	if !m.quitting || cmd == nil {
		t.Error("q did not quit")
	}
	if m.View() != "" {
		t.Error("quitting model still renders")
	}
}

func TestModelReadsToTheEnd(t *testing.T) {
	s, _ := openText("one two three", 300, quietLogger())
	m := newModel(t.Context(), s, false)
	for range 3 {
		var cmd tea.Cmd
		if m, cmd = update(t, m, tickMsg{gen: m.gen}); cmd == nil {
			t.Fatalf("tick stopped early at %q", s.snapshot().Word)
		}
	}
	m, cmd := update(t, m, tickMsg{gen: m.gen})
	if cmd != nil {
		t.Error("tick chain continued past the end")
	}
	if !strings.Contains(m.View(), "Reading complete!") {
		t.Errorf("end view:\n%s", m.View())
	}
}

func TestModelPicker(t *testing.T) {
	s, err := openLibrary(t.Context(), newLibraryRoot(t), 300, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	m := newModel(t.Context(), s, false)
	if !m.picking {
		t.Fatal("a library did not open the picker")
	}
	if m.Init() != nil {
		t.Error("picker started ticking")
	}
	if !strings.Contains(m.View(), "The Test Book") {
		t.Errorf("picker view:\n%s", m.View())
	}

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.picking || cmd == nil {
		t.Fatal("enter did not open the book")
	}
	m, _ = update(t, m, tickMsg{gen: m.gen})
	if got := s.snapshot().Word; got != "I" {
		t.Errorf("first word = %q", got)
	}

	m, _ = update(t, m, runeKey('b'))
	if !m.picking || !s.paused() {
		t.Error("b did not go back to the books")
	}
}

func TestModelChapterJumpRefills(t *testing.T) {
	s, err := openLibrary(t.Context(), newLibraryRoot(t), 300, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	m := newModel(t.Context(), s, false)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})

	m, cmd := update(t, m, runeKey(']'))
	if cmd == nil {
		t.Fatal("chapter jump issued no refill")
	}
	msg, ok := cmd().(refillMsg)
	if !ok || !msg.served || msg.resume {
		t.Fatalf("refill message = %+v", msg)
	}
	if snap := s.snapshot(); snap.Chapter != 1 || snap.ChapterLabel != "II" {
		t.Errorf("after ] chapter = %d %q", snap.Chapter, snap.ChapterLabel)
	}
	if _, cmd := update(t, m, msg); cmd != nil {
		t.Error("refill without resume restarted ticking")
	}
}
