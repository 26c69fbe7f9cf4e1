package epub

import (
	"bytes"
	"errors"
	"io"

	"github.com/metcalfc/sdreader/internal/archive"
)

const (
	anchorChunkBytes = 320
	anchorCarryBytes = PathBytes + 48
	anchorAttrWindow = 20
	anchorTagBack    = 192
	anchorNoTagBack  = 24
)

// AnchorScanner finds the element that carries a given id in a document fed
// to it chunk by chunk.
type AnchorScanner struct {
	fragment []byte
	carry    []byte
	consumed int64
}

// NewAnchorScanner returns a scanner for fragment, or nil when the
// fragment is empty after normalization.
func NewAnchorScanner(fragment string) *AnchorScanner {
	f := normalizeFragment(fragment)
	if f == "" {
		return nil
	}
	return &AnchorScanner{fragment: []byte(f)}
}

// Feed scans the next chunk of the document. It returns the offset of the
// start of the tag that declares the fragment as its id or name.
func (s *AnchorScanner) Feed(chunk []byte) (int64, bool) {
	if len(chunk) == 0 {
		return 0, false
	}
	merged := make([]byte, 0, len(s.carry)+len(chunk))
	merged = append(merged, s.carry...)
	merged = append(merged, bytes.ToLower(chunk)...)

	for from := 0; ; {
		i := bytes.Index(merged[from:], s.fragment)
		if i < 0 {
			break
		}
		i += from
		if isAnchorAttribute(merged, i, len(s.fragment)) {
			base := s.consumed - int64(len(s.carry))
			return base + int64(nearestTagStart(merged, i)), true
		}
		from = i + 1
	}

	s.consumed += int64(len(chunk))
	keep := min(anchorCarryBytes, len(merged))
	s.carry = append(s.carry[:0], merged[len(merged)-keep:]...)
	return 0, false
}

// isAnchorAttribute reports whether the match at i is a quoted attribute
// value preceded closely by id=, xml:id= or name=.
func isAnchorAttribute(doc []byte, i, n int) bool {
	if i == 0 || i+n >= len(doc) {
		return false
	}
	q := doc[i-1]
	if q != '"' && q != '\'' || doc[i+n] != q {
		return false
	}
	attr := doc[max(i-anchorAttrWindow, 0):i]
	return bytes.Contains(attr, []byte("id=")) || bytes.Contains(attr, []byte("name="))
}

// nearestTagStart backs up from i to the '<' that opens its tag.
func nearestTagStart(doc []byte, i int) int {
	start := max(i-anchorTagBack, 0)
	if lt := bytes.LastIndexByte(doc[start:i], '<'); lt >= 0 {
		return start + lt
	}
	return max(i-anchorNoTagBack, 0)
}

// FragmentOffset returns the decoded byte offset in e of the element whose
// id or name is fragment, or 0 when it cannot be found.
func (b *Book) FragmentOffset(e archive.Entry, fragment string) (int64, error) {
	scanner := NewAnchorScanner(fragment)
	if scanner == nil {
		return 0, nil
	}
	if e.Compression != archive.Store && e.Compression != archive.Deflate {
		return 0, nil
	}

	r := b.a.EntryReader(e)
	buf := make([]byte, anchorChunkBytes)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if off, ok := scanner.Feed(buf[:n]); ok {
				return off, nil
			}
		}
		switch {
		case err == io.EOF:
			return 0, nil
		case errors.Is(err, archive.ErrDecodeFailed), errors.Is(err, io.ErrUnexpectedEOF):
			return 0, nil
		case err != nil:
			return 0, err
		}
	}
}
