// Package sanitize turns raw HTML, XHTML or plain-text bytes into visible
// text with collapsed whitespace and paragraph breaks. It works on bounded
// windows of a resource and reports where an unfinished tag, entity or
// character begins so the caller can feed those bytes again with the next
// window.
package sanitize

import (
	"bytes"
	"unicode/utf8"
)

const (
	// TextBytes caps the sanitized output of one call.
	TextBytes = 480
	// TailBytes caps the bytes carried into the next call.
	TailBytes = 96
)

// Result is the outcome of one Sanitize call.
type Result struct {
	Text      string
	Truncated bool
	// TailStart is the input offset of an unfinished construct, or -1.
	TailStart int
}

// Sanitize scans input once, left to right, updating st as tags open and
// close. Output stops at TextBytes and sets Truncated.
func Sanitize(input []byte, st *ParseState, plain bool) Result {
	w := writer{lastSpace: true}
	res := Result{TailStart: -1}

	i := 0
	for i < len(input) && !w.truncated {
		b := input[i]

		if b == '<' {
			end := bytes.IndexByte(input[i+1:], '>')
			if end < 0 {
				res.TailStart = i
				break
			}
			t, ok := parseTag(input[i+1 : i+1+end])
			if ok {
				st.apply(t)
			}
			i += end + 2
			if st.ShouldEmit(plain) {
				if ok && t.isBlock() {
					w.paragraphBreak()
				} else {
					w.push(' ')
				}
			}
			continue
		}

		if b == '&' {
			n, r, complete := scanEntity(input[i:])
			if !complete {
				res.TailStart = i
				break
			}
			if st.ShouldEmit(plain) {
				w.push(r)
			}
			i += n
			continue
		}

		if !st.ShouldEmit(plain) {
			i++
			continue
		}

		switch {
		case b == '\r' || b == '\n' || b == '\t' || b == ' ':
			w.push(' ')
			i++
		case b < utf8.RuneSelf && (b < 0x20 || b == 0x7f):
			i++
		case b < utf8.RuneSelf:
			w.push(rune(b))
			i++
		default:
			r, size, state := decodeRune(input[i:])
			switch state {
			case runeIncomplete:
				res.TailStart = i
			case runeInvalid:
				w.push(fallbackByte(b))
				i++
			default:
				w.push(r)
				i += size
			}
		}
		if res.TailStart >= 0 {
			break
		}
	}

	res.Text = string(bytes.TrimRight(w.out, " \n"))
	res.Truncated = w.truncated
	return res
}

// scanEntity parses "&name;" at the start of in. It returns how many bytes
// to consume and the character to emit. complete is false when in ends
// before the entity could be classified.
func scanEntity(in []byte) (n int, r rune, complete bool) {
	for j := 1; j < len(in); j++ {
		c := in[j]
		if c == ';' {
			return j + 1, DecodeEntity(string(in[1:j])), true
		}
		if !isEntityByte(c) || j > maxEntityBytes {
			return 1, ' ', true
		}
	}
	return 0, 0, false
}

type runeState int

const (
	runeOK runeState = iota
	runeIncomplete
	runeInvalid
)

// decodeRune validates one multi-byte sequence by its lead byte class.
func decodeRune(in []byte) (rune, int, runeState) {
	lead := in[0]
	var size int
	switch {
	case lead >= 0xC2 && lead <= 0xDF:
		size = 2
	case lead >= 0xE0 && lead <= 0xEF:
		size = 3
	case lead >= 0xF0 && lead <= 0xF4:
		size = 4
	default:
		return 0, 0, runeInvalid
	}
	if len(in) < size {
		return 0, 0, runeIncomplete
	}
	for _, c := range in[1:size] {
		if c&0xC0 != 0x80 {
			return 0, 0, runeInvalid
		}
	}
	b1 := in[1]
	switch {
	case lead == 0xE0 && b1 < 0xA0,
		lead == 0xED && b1 >= 0xA0,
		lead == 0xF0 && b1 < 0x90,
		lead == 0xF4 && b1 > 0x8F:
		return 0, 0, runeInvalid
	}
	r, n := utf8.DecodeRune(in[:size])
	if r == utf8.RuneError && n <= 1 {
		return 0, 0, runeInvalid
	}
	return r, n, runeOK
}

// CarryStart walks back from tailStart over bytes that belong to a word, so
// a word cut by the end of the window is fed again whole.
func CarryStart(input []byte, tailStart int) int {
	if tailStart <= 0 || tailStart > len(input) {
		return min(max(tailStart, 0), len(input))
	}
	start := tailStart
	for start > 0 && isWordByte(input[start-1]) {
		start--
	}
	return start
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' ||
		b == '_' || b == '-' || b >= 0x80
}

type writer struct {
	out       []byte
	lastSpace bool
	truncated bool
}

func (w *writer) push(r rune) {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' {
		if len(w.out) == 0 || w.lastSpace {
			return
		}
		if len(w.out)+1 > TextBytes {
			w.truncated = true
			return
		}
		w.out = append(w.out, ' ')
		w.lastSpace = true
		return
	}
	if len(w.out)+utf8.RuneLen(r) > TextBytes {
		w.truncated = true
		return
	}
	w.out = utf8.AppendRune(w.out, r)
	w.lastSpace = false
}

func (w *writer) paragraphBreak() {
	w.out = bytes.TrimRight(w.out, " ")
	w.lastSpace = true
	if len(w.out) == 0 || w.out[len(w.out)-1] == '\n' {
		return
	}
	if len(w.out)+1 > TextBytes {
		w.truncated = true
		return
	}
	w.out = append(w.out, '\n')
}
