// Package epub answers structural questions about an EPUB held in an
// archive.Reader: where the package document is, which resources make up
// the reading order, what the table of contents says, and which chapter a
// resource belongs to. Nothing is cached beyond the package document; every
// answer comes from a fresh walk over bounded byte windows.
package epub

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/metcalfc/sdreader/internal/archive"
)

const (
	containerPath = "META-INF/container.xml"

	// ContainerBytes caps how much of container.xml is read.
	ContainerBytes = 1024
	// OPFBytes caps how much of the package document is read.
	OPFBytes = 8192
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Book is an archive together with its package document, if it has one.
type Book struct {
	a       *archive.Reader
	opf     []byte
	opfPath string
}

// Open locates and reads the package document of a. An archive without
// one is still usable; only the central-directory fallbacks apply.
func Open(a *archive.Reader) (*Book, error) {
	b := &Book{a: a}
	entry, path, ok, err := LocatePackage(a)
	if err != nil {
		return nil, err
	}
	if !ok {
		return b, nil
	}

	opf, err := readPrefix(a, entry, OPFBytes)
	if err != nil {
		return nil, fmt.Errorf("epub: read package %s: %w", path, err)
	}
	if len(opf) == 0 {
		return b, nil
	}
	b.opf = bytes.TrimPrefix(opf, utf8BOM)
	b.opfPath = path
	return b, nil
}

// Archive returns the underlying archive.
func (b *Book) Archive() *archive.Reader { return b.a }

// PackagePath returns the archive path of the package document, or "".
func (b *Book) PackagePath() string { return b.opfPath }

// Manifest returns a lookup over the package document's manifest.
func (b *Book) Manifest() *Manifest { return &Manifest{opf: b.opf} }

// LocatePackage finds the package document named by container.xml, falling
// back to the first .opf member of the archive.
func LocatePackage(a *archive.Reader) (archive.Entry, string, bool, error) {
	if container, ok, err := a.EntryByPath(containerPath); err != nil {
		return archive.Entry{}, "", false, err
	} else if ok {
		buf, err := readPrefix(a, container, ContainerBytes)
		if err != nil {
			return archive.Entry{}, "", false, fmt.Errorf("epub: read container.xml: %w", err)
		}
		if full, ok := containerFullPath(buf); ok {
			entry, found, err := a.EntryByPath(full)
			if err != nil {
				return archive.Entry{}, "", false, err
			}
			if found {
				return entry, entry.Name, true, nil
			}
		}
	}

	entry, ok, err := a.FirstWithSuffix(".opf")
	if err != nil || !ok {
		return archive.Entry{}, "", false, err
	}
	return entry, entry.Name, true, nil
}

// readPrefix reads up to limit decoded bytes of e. A member the archive
// cannot decode reads as empty; only I/O failures are returned.
func readPrefix(a *archive.Reader, e archive.Entry, limit int) ([]byte, error) {
	buf := make([]byte, limit)
	n, err := a.ReadPrefix(e, buf)
	switch {
	case errors.Is(err, archive.ErrUnsupportedCompression), errors.Is(err, archive.ErrDecodeFailed):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return buf[:n], nil
}

// containerFullPath returns the first non-empty quoted full-path value.
func containerFullPath(xml []byte) (string, bool) {
	needle := []byte("full-path")
	from := 0
	for {
		pos := indexFold(xml, needle, from)
		if pos < 0 {
			return "", false
		}
		i := pos + len(needle)
		from = i
		for i < len(xml) && isASCIISpace(xml[i]) {
			i++
		}
		if i >= len(xml) || xml[i] != '=' {
			continue
		}
		i++
		for i < len(xml) && isASCIISpace(xml[i]) {
			i++
		}
		if i >= len(xml) {
			return "", false
		}
		q := xml[i]
		if q != '"' && q != '\'' {
			continue
		}
		i++
		end := bytes.IndexByte(xml[i:], q)
		if end < 0 {
			return "", false
		}
		if end > 0 {
			return string(xml[i : i+end]), true
		}
	}
}
