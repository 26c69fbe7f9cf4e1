package reader

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Format defines a file format reader for extracting text. EPUB archives
// are streamed by the catalog instead and have no Format.
type Format interface {
	Name() string
	Extensions() []string
	Extract(filename string) (string, error)
}

var registry []Format

// Register adds a format reader to the registry.
func Register(f Format) {
	registry = append(registry, f)
}

// ExtractText extracts text from a file, using a registered format or plain text fallback.
func ExtractText(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, f := range registry {
		for _, e := range f.Extensions() {
			if ext == e {
				return f.Extract(filename)
			}
		}
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SupportedFormats returns registered format names with their extensions.
func SupportedFormats() []string {
	var out []string
	for _, f := range registry {
		out = append(out, f.Name()+" ("+strings.Join(f.Extensions(), ", ")+")")
	}
	return out
}

// LoadStaticBook reads a whole file into an in-memory book titled after
// the file name.
func LoadStaticBook(filename string) (StaticBook, error) {
	text, err := ExtractText(filename)
	if err != nil {
		return StaticBook{}, err
	}
	return StaticBook{
		Title:      FileTitle(filepath.Base(filename)),
		Paragraphs: Paragraphs(text),
	}, nil
}

// FileTitle turns a file name into a display title: the extension is
// dropped, '_' and '-' separate words, and ASCII words are title-cased.
// A name with nothing left is returned unchanged.
func FileTitle(name string) string {
	stem := name
	if i := strings.LastIndexByte(stem, '.'); i >= 0 {
		stem = stem[:i]
	}
	stem = strings.TrimSpace(stem)

	var sb strings.Builder
	wordStart := true
	for _, r := range stem {
		if r == '_' || r == '-' || r == ' ' {
			if sb.Len() > 0 && !wordStart {
				sb.WriteByte(' ')
			}
			wordStart = true
			continue
		}
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			if wordStart {
				r = unicode.ToUpper(r)
			} else {
				r = unicode.ToLower(r)
			}
		}
		sb.WriteRune(r)
		wordStart = false
	}
	if title := strings.TrimRight(sb.String(), " "); title != "" {
		return title
	}
	return name
}
