package catalog

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ResourceLabel derives a chapter label from a resource file name. Names
// like "book-h-3.xhtml", "0007.xhtml" and "capitulo12.html" give numbered
// labels; anything else is title-cased, and "Section" is the last resort.
func ResourceLabel(resourcePath string) string {
	stem := resourcePath
	if i := strings.LastIndexByte(stem, '/'); i >= 0 {
		stem = stem[i+1:]
	}
	if i := strings.LastIndexByte(stem, '.'); i >= 0 {
		stem = stem[:i]
	}
	stem = strings.TrimSpace(stem)

	if n, ok := chapterNumber(stem); ok {
		return "Chapter " + strconv.FormatUint(max(n, 1), 10)
	}

	var sb strings.Builder
	wordStart := true
	for i := 0; i < len(stem); i++ {
		b := stem[i]
		switch {
		case b == '_' || b == '-' || b == '.' || b == ' ':
			if sb.Len() > 0 && !wordStart {
				sb.WriteByte(' ')
				wordStart = true
			}
		case isASCIILetter(b):
			if wordStart {
				sb.WriteByte(upper(b))
			} else {
				sb.WriteByte(lower(b))
			}
			wordStart = false
		case b >= '0' && b <= '9':
			sb.WriteByte(b)
			wordStart = false
		}
	}
	label := strings.TrimRight(sb.String(), " ")
	if label == "" {
		return "Section"
	}
	return label
}

func chapterNumber(stem string) (uint64, bool) {
	if stem == "" {
		return 0, false
	}
	lowered := strings.ToLower(stem)
	if i := strings.Index(lowered, "-h-"); i >= 0 {
		if n, ok := leadingNumber(stem[i+3:]); ok {
			return n + 1, true
		}
	}
	if n, ok := parseDigits(stem); ok {
		return n, true
	}
	if strings.Contains(lowered, "chapter") || strings.Contains(lowered, "capitulo") || strings.Contains(lowered, "cap") {
		end := len(stem)
		for end > 0 && isDigit(stem[end-1]) {
			end--
		}
		if end < len(stem) {
			return parseDigits(stem[end:])
		}
	}
	return 0, false
}

func leadingNumber(s string) (uint64, bool) {
	n := 0
	for n < len(s) && isDigit(s[n]) {
		n++
	}
	return parseDigits(s[:n])
}

// parseDigits saturates instead of overflowing.
func parseDigits(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	var v uint64
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return 0, false
		}
		v = min(v*10+uint64(s[i]-'0'), math.MaxUint32)
	}
	return v, true
}

// clampText normalizes s to NFC and cuts it to at most limit bytes on a
// rune boundary.
func clampText(s string, limit int) (string, bool) {
	s, cut := clampBytes(norm.NFC.String(strings.TrimSpace(s)), limit)
	if cut {
		s = strings.TrimRight(s, " ")
	}
	return s, cut
}

// clampBytes cuts s to at most limit bytes on a rune boundary and leaves
// the kept bytes untouched. Resource paths go through it so they still
// match archive entry names.
func clampBytes(s string, limit int) (string, bool) {
	if len(s) <= limit {
		return s, false
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}

func isDigit(b byte) bool       { return b >= '0' && b <= '9' }
func isASCIILetter(b byte) bool { return b|0x20 >= 'a' && b|0x20 <= 'z' }
func upper(b byte) byte         { return b &^ 0x20 }
func lower(b byte) byte         { return b | 0x20 }
