package epub

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// The OPF, container and TOC documents are scanned as bytes rather than
// decoded, so a document cut at its capacity still yields every element
// that fits.

func equalFoldASCII(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if lowerASCII(a[i]) != lowerASCII(b[i]) {
			return false
		}
	}
	return true
}

func lowerASCII(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}

// indexFold returns the first index at or after from where needle occurs in
// haystack, comparing ASCII letters without case, or -1.
func indexFold(haystack, needle []byte, from int) int {
	if len(needle) == 0 || from < 0 {
		return -1
	}
	for i := from; i+len(needle) <= len(haystack); i++ {
		if equalFoldASCII(haystack[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

// lastIndexFold is indexFold searching backward from before.
func lastIndexFold(haystack, needle []byte, before int) int {
	end := min(before, len(haystack))
	for i := end - len(needle); i >= 0 && len(needle) > 0; i-- {
		if equalFoldASCII(haystack[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

func containsFold(haystack []byte, needle string) bool {
	return indexFold(haystack, []byte(needle), 0) >= 0
}

func containsFoldString(haystack, needle string) bool {
	return containsFold([]byte(haystack), needle)
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}

func isASCIISpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// FindElement locates the next start tag whose local name (the part after
// any namespace prefix) equals name, searching xml[from:end]. It returns the
// bounds of the tag including its angle brackets. Closing tags, comments,
// doctypes and processing instructions never match.
func FindElement(xml []byte, name string, from, end int) (start, stop int, ok bool) {
	if end > len(xml) {
		end = len(xml)
	}
	local := []byte(name)
	cursor := from
	for cursor < end {
		lt := bytes.IndexByte(xml[cursor:end], '<')
		if lt < 0 {
			return 0, 0, false
		}
		start = cursor + lt
		nameStart := start + 1
		if nameStart >= end {
			return 0, 0, false
		}
		switch xml[nameStart] {
		case '/', '!', '?':
			cursor = nameStart + 1
			continue
		}
		for nameStart < end && isASCIISpace(xml[nameStart]) {
			nameStart++
		}
		nameEnd := nameStart
		for nameEnd < end && !isASCIISpace(xml[nameEnd]) && xml[nameEnd] != '/' && xml[nameEnd] != '>' {
			nameEnd++
		}
		if nameEnd == nameStart {
			cursor = start + 1
			continue
		}

		full := xml[nameStart:nameEnd]
		if i := bytes.LastIndexByte(full, ':'); i >= 0 {
			full = full[i+1:]
		}
		if equalFoldASCII(full, local) {
			gt := bytes.IndexByte(xml[nameEnd:end], '>')
			if gt < 0 {
				return 0, 0, false
			}
			return start, nameEnd + gt + 1, true
		}
		cursor = nameEnd + 1
	}
	return 0, 0, false
}

// eachElement calls fn with every start tag named name, in document order,
// until fn returns false.
func eachElement(xml []byte, name string, fn func(tag []byte, start, stop int) bool) {
	cursor := 0
	for {
		start, stop, ok := FindElement(xml, name, cursor, len(xml))
		if !ok || !fn(xml[start:stop], start, stop) {
			return
		}
		cursor = stop
	}
}

// AttrValue returns the value of attribute attr inside a start tag. The
// attribute name must follow whitespace, '<' or '/', so "id" never matches
// inside "idref". Quoted and bare values are accepted; an empty value is
// reported as missing.
func AttrValue(tag []byte, attr string) ([]byte, bool) {
	needle := []byte(attr)
	from := 0
	for {
		pos := indexFold(tag, needle, from)
		if pos < 0 {
			return nil, false
		}
		from = pos + 1
		if pos > 0 {
			prev := tag[pos-1]
			if !isASCIISpace(prev) && prev != '<' && prev != '/' {
				continue
			}
		}

		i := pos + len(needle)
		for i < len(tag) && isASCIISpace(tag[i]) {
			i++
		}
		if i >= len(tag) || tag[i] != '=' {
			continue
		}
		i++
		for i < len(tag) && isASCIISpace(tag[i]) {
			i++
		}
		if i >= len(tag) {
			return nil, false
		}

		if q := tag[i]; q == '"' || q == '\'' {
			i++
			end := bytes.IndexByte(tag[i:], q)
			if end <= 0 {
				return nil, false
			}
			return tag[i : i+end], true
		}
		start := i
		for i < len(tag) && !isASCIISpace(tag[i]) && tag[i] != '>' {
			i++
		}
		if i == start {
			return nil, false
		}
		return tag[start:i], true
	}
}

func attrString(tag []byte, attr string) (string, bool) {
	v, ok := AttrValue(tag, attr)
	return string(v), ok
}

// elementText returns the trimmed text directly after the first open tag
// that begins with prefix (for example "<dc:title") and has non-empty text.
func elementText(xml []byte, prefix string) (string, bool) {
	needle := []byte(prefix)
	from := 0
	for {
		pos := indexFold(xml, needle, from)
		if pos < 0 {
			return "", false
		}
		gt := bytes.IndexByte(xml[pos+len(needle):], '>')
		if gt < 0 {
			return "", false
		}
		textStart := pos + len(needle) + gt + 1
		lt := bytes.IndexByte(xml[textStart:], '<')
		if lt < 0 {
			return "", false
		}
		if s := textOrLossy(xml[textStart : textStart+lt]); s != "" {
			return s, true
		}
		from = textStart + lt + 1
	}
}

// textOrLossy trims ASCII whitespace and returns the bytes as a string when
// they are valid UTF-8, or with every non-ASCII byte replaced by '?'.
func textOrLossy(b []byte) string {
	b = bytes.TrimFunc(b, func(r rune) bool { return r < utf8.RuneSelf && isASCIISpace(byte(r)) })
	if utf8.Valid(b) {
		return string(b)
	}
	return asciiLossy(b)
}

// asciiLossy replaces every non-ASCII byte with '?'.
func asciiLossy(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if c >= utf8.RuneSelf {
			c = '?'
		}
		sb.WriteByte(c)
	}
	return sb.String()
}
