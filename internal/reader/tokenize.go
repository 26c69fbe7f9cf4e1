package reader

import (
	"strings"
	"unicode"
)

// WordToken is one word handed to the presentation layer. The flags come
// from the word's last byte and only affect pacing.
type WordToken struct {
	Text         string
	EndsSentence bool
	EndsClause   bool
}

// NewWordToken builds a token for word, setting its punctuation flags.
func NewWordToken(word string) WordToken {
	tok := WordToken{Text: word}
	if word == "" {
		return tok
	}
	switch word[len(word)-1] {
	case '.', '!', '?':
		tok.EndsSentence = true
	case ',':
		tok.EndsClause = true
	}
	return tok
}

func isASCIISpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// NextWordBounds skips whitespace from cursor and returns the bounds of the
// next run of non-whitespace bytes along with the cursor after it. Only
// ASCII whitespace separates words, so multi-byte characters stay whole.
func NextWordBounds(text string, cursor int) (start, end, next int, ok bool) {
	n := len(text)
	for cursor < n && isASCIISpace(text[cursor]) {
		cursor++
	}
	if cursor >= n {
		return 0, 0, cursor, false
	}
	start = cursor
	for cursor < n && !isASCIISpace(text[cursor]) {
		cursor++
	}
	return start, cursor, cursor, true
}

// CountWords counts the words NextWordBounds would yield for text.
func CountWords(text string) int {
	count := 0
	for cursor := 0; ; {
		_, _, next, ok := NextWordBounds(text, cursor)
		if !ok {
			return count
		}
		count++
		cursor = next
	}
}

// Paragraphs splits a sanitized chunk into its non-empty trimmed lines.
func Paragraphs(chunk string) []string {
	chunk = strings.TrimSpace(chunk)
	if chunk == "" {
		return nil
	}
	var out []string
	for _, line := range strings.Split(chunk, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// FirstWordsExcerpt returns text up to the end of its n-th word.
func FirstWordsExcerpt(text string, n int) string {
	if text == "" || n <= 0 {
		return ""
	}
	words := 0
	inWord := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			if inWord {
				words++
				if words >= n {
					return text[:i]
				}
			}
			inWord = false
			continue
		}
		inWord = true
	}
	return strings.TrimRightFunc(text, unicode.IsSpace)
}
