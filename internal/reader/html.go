package reader

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/metcalfc/sdreader/internal/sanitize"
)

// HTMLFormat implements Format for loose HTML and XHTML documents. The
// file is sanitized window by window, the same way EPUB resources are.
type HTMLFormat struct{}

func init() {
	Register(&HTMLFormat{})
}

func (f *HTMLFormat) Name() string         { return "HTML" }
func (f *HTMLFormat) Extensions() []string { return []string{".html", ".htm", ".xhtml"} }

func (f *HTMLFormat) Extract(filename string) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()
	return sanitizeAll(file)
}

// sanitizeAll feeds r through a sanitize.Stream in TextBytes windows.
func sanitizeAll(r io.Reader) (string, error) {
	var (
		s   sanitize.Stream
		out strings.Builder
	)
	buf := make([]byte, sanitize.TextBytes-sanitize.TailBytes)
	for {
		n, err := io.ReadFull(r, buf)
		final := errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
		if err != nil && !final {
			return "", err
		}
		text, _ := s.Feed(buf[:n], false, final)
		if text = strings.TrimSpace(text); text != "" {
			if out.Len() > 0 {
				out.WriteByte(' ')
			}
			out.WriteString(text)
		}
		if final {
			return out.String(), nil
		}
	}
}
