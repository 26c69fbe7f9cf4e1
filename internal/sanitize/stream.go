package sanitize

import "strings"

// Stream sanitizes consecutive windows of one resource. It owns the parse
// state and the tail carried between windows.
type Stream struct {
	State ParseState
	tail  []byte
}

// Reset forgets the parse state and any carried bytes. Call it when the
// resource changes.
func (s *Stream) Reset() {
	s.State = ParseState{}
	s.tail = s.tail[:0]
}

// Tail returns the bytes that will be prepended to the next window.
func (s *Stream) Tail() []byte { return s.tail }

// Feed sanitizes chunk after the carried tail. Unless final is set, the
// word at the end of the window is held back as well, so a word split
// between two windows comes out whole in the second one. A final window
// keeps every word it emitted. truncated reports that output or carried
// bytes were dropped, including an unfinished construct at the end of a
// final window.
func (s *Stream) Feed(chunk []byte, plain, final bool) (text string, truncated bool) {
	input := make([]byte, 0, TextBytes+TailBytes)
	input = append(input, s.tail...)
	room := cap(input) - len(input)
	if len(chunk) > room {
		chunk = chunk[:room]
		truncated = true
	}
	input = append(input, chunk...)

	res := Sanitize(input, &s.State, plain)
	text = res.Text
	truncated = truncated || res.Truncated
	s.tail = s.tail[:0]

	tailStart := res.TailStart
	if final {
		// Nothing follows, so an unfinished construct is lost but the
		// words before it stay.
		return text, truncated || tailStart >= 0
	}
	if tailStart < 0 {
		if res.Truncated {
			return text, truncated
		}
		tailStart = len(input)
	}

	carry := CarryStart(input, tailStart)
	if carry < tailStart {
		word := s.wordText(input[carry:tailStart], plain)
		if res.Truncated || len(input)-carry > TailBytes || !strings.HasSuffix(text, word) {
			carry = tailStart
		} else {
			text = strings.TrimRight(text[:len(text)-len(word)], " \n")
		}
	}

	rest := input[carry:]
	if len(rest) > TailBytes {
		rest = rest[:TailBytes]
		truncated = true
	}
	s.tail = append(s.tail, rest...)
	return text, truncated
}

// wordText is what Sanitize emitted for a run of word bytes. Word bytes
// never open a tag or entity, so the current state still applies.
func (s *Stream) wordText(word []byte, plain bool) string {
	st := s.State
	return Sanitize(word, &st, plain).Text
}
