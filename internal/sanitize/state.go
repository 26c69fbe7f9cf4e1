package sanitize

import (
	"bytes"

	"golang.org/x/net/html/atom"
)

// ParseState records where in an HTML document the scan currently is. It
// carries over between calls for the same resource and is reset when the
// resource changes.
type ParseState struct {
	InHead   bool
	InBody   bool
	BodySeen bool
	InScript bool
	InStyle  bool
}

// ShouldEmit reports whether text at the current position is visible.
// Plain-text resources are always visible outside script and style.
func (s ParseState) ShouldEmit(plain bool) bool {
	if s.InScript || s.InStyle {
		return false
	}
	if plain {
		return true
	}
	if s.BodySeen {
		return s.InBody
	}
	return !s.InHead
}

func (s *ParseState) apply(t tagInfo) {
	open := !t.closing && !t.selfClosing
	switch t.atom {
	case atom.Head:
		s.InHead = open
	case atom.Body:
		if t.closing {
			s.InBody = false
			return
		}
		s.BodySeen = true
		s.InHead = false
		s.InBody = !t.selfClosing
	case atom.Script:
		s.InScript = open
	case atom.Style:
		s.InStyle = open
	}
}

type tagInfo struct {
	atom        atom.Atom
	closing     bool
	selfClosing bool
}

var blockTags = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.Aside: true, atom.Header: true, atom.Footer: true, atom.Nav: true,
	atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Pre: true, atom.Table: true, atom.Tr: true,
	atom.Br: true, atom.Hr: true,
}

func (t tagInfo) isBlock() bool {
	return blockTags[t.atom]
}

// parseTag reads the text between '<' and '>'. Comments, doctypes and
// processing instructions are reported as not ok.
func parseTag(raw []byte) (tagInfo, bool) {
	tag := bytes.TrimSpace(raw)
	if len(tag) == 0 || tag[0] == '!' || tag[0] == '?' {
		return tagInfo{}, false
	}

	var t tagInfo
	if tag[0] == '/' {
		t.closing = true
		tag = bytes.TrimSpace(tag[1:])
	}
	if len(tag) == 0 {
		return tagInfo{}, false
	}
	t.selfClosing = tag[len(tag)-1] == '/'

	end := 0
	for end < len(tag) && !isSpace(tag[end]) && tag[end] != '/' && tag[end] != '>' {
		end++
	}
	if end == 0 {
		return tagInfo{}, false
	}

	name := tag[:end]
	if i := bytes.LastIndexByte(name, ':'); i >= 0 {
		name = name[i+1:]
	}
	t.atom = atom.Lookup(bytes.ToLower(name))
	return t, true
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}
