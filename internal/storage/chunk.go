package storage

import (
	"errors"

	"github.com/metcalfc/sdreader/internal/archive"
	"github.com/metcalfc/sdreader/internal/epub"
)

// Status is the outcome of a chunk probe that reached the book file.
type Status int

const (
	ReadOk Status = iota
	NotZip
	NoTextResource
	UnsupportedCompression
	DecodeFailed
)

func (s Status) String() string {
	switch s {
	case ReadOk:
		return "read_ok"
	case NotZip:
		return "not_zip"
	case NoTextResource:
		return "no_text_resource"
	case UnsupportedCompression:
		return "unsupported_compression"
	case DecodeFailed:
		return "decode_failed"
	default:
		return "unknown"
	}
}

// ChunkResult describes one chunk read from a book. The bytes themselves
// are in the caller's buffer.
type ChunkResult struct {
	Resource      string
	ChapterIndex  int
	ChapterTotal  int
	ChapterLabel  string
	StartOffset   int64
	Compression   uint16
	BytesRead     int
	EndOfResource bool
	Status        Status
}

// ChunkReader is the read side of a Probe.
type ChunkReader interface {
	ReadFirst(name string, out []byte) (ChunkResult, error)
	ReadFromResource(name, resource string, offset int64, out []byte) (ChunkResult, error)
	ReadNext(name, current string, out []byte) (ChunkResult, error)
	ReadAtChapter(name string, chapter int, out []byte) (ChunkResult, error)
}

var _ ChunkReader = (*Probe)(nil)

// ReadFirst reads the first chunk of the resource reading starts from.
func (p *Probe) ReadFirst(name string, out []byte) (ChunkResult, error) {
	return p.ReadFromResource(name, "", 0, out)
}

// ReadFromResource reads resource from offset. An empty resource means the
// first text resource of the book.
func (p *Probe) ReadFromResource(name, resource string, offset int64, out []byte) (ChunkResult, error) {
	return p.withBook(name, func(b *epub.Book, res *ChunkResult) error {
		var (
			e   archive.Entry
			ok  bool
			err error
		)
		if resource == "" {
			e, ok, err = b.FirstTextEntry()
			resource = e.Name
		} else {
			e, ok, err = b.Resource(resource)
		}
		if err != nil || !ok {
			return err
		}
		res.Resource = resource
		p.locate(b, res)
		return readChunk(b, e, offset, out, res)
	})
}

// ReadNext reads the first chunk of the resource after current.
func (p *Probe) ReadNext(name, current string, out []byte) (ChunkResult, error) {
	return p.withBook(name, func(b *epub.Book, res *ChunkResult) error {
		e, ok, err := b.NextTextEntry(current)
		if err != nil || !ok {
			return err
		}
		res.Resource = e.Name
		p.locate(b, res)
		return readChunk(b, e, 0, out, res)
	})
}

// ReadAtChapter reads the first chunk of chapter, starting at its anchor
// when the table of contents points inside a resource. A chapter past the
// end reads the last one.
func (p *Probe) ReadAtChapter(name string, chapter int, out []byte) (ChunkResult, error) {
	return p.withBook(name, func(b *epub.Book, res *ChunkResult) error {
		ce, ok, err := b.EntryAtIndex(chapter)
		if err != nil || !ok {
			return err
		}
		res.Resource = ce.Path
		res.ChapterIndex = ce.Index
		res.ChapterTotal = max(ce.Total, 1)
		res.ChapterLabel = ce.Label
		return readChunk(b, ce.Entry, ce.StartOffset, out, res)
	})
}

// withBook opens the named book and runs fn on it. Archive-shape failures
// come back as statuses; only I/O failures are errors.
func (p *Probe) withBook(name string, fn func(*epub.Book, *ChunkResult) error) (ChunkResult, error) {
	res := ChunkResult{ChapterTotal: 1, Status: NoTextResource}
	f, a, ok, err := p.openArchive(name)
	if err == nil && ok {
		defer f.Close()
		var b *epub.Book
		if b, err = epub.Open(a); err == nil {
			err = fn(b, &res)
		}
	}
	switch {
	case err == nil:
	case errors.Is(err, archive.ErrNotAnArchive):
		res.Status = NotZip
	case errors.Is(err, archive.ErrUnsupportedCompression):
		res.Status = UnsupportedCompression
	case errors.Is(err, archive.ErrDecodeFailed), errors.Is(err, archive.ErrIoStalled):
		res.Status = DecodeFailed
	default:
		return res, err
	}
	if res.Status != ReadOk {
		p.logger.Debug("chunk probe", "short_name", name, "status", res.Status, "resource", res.Resource)
	}
	return res, nil
}

// locate fills in the chapter position of res.Resource.
func (p *Probe) locate(b *epub.Book, res *ChunkResult) {
	pos, ok, err := b.PositionForResource(res.Resource)
	if err != nil {
		p.logger.Debug("chapter position", "resource", res.Resource, "err", err)
		return
	}
	if ok {
		res.ChapterIndex = pos.Index
		res.ChapterTotal = max(pos.Total, 1)
		res.ChapterLabel = pos.Label
	}
}

func readChunk(b *epub.Book, e archive.Entry, offset int64, out []byte, res *ChunkResult) error {
	res.Compression = e.Compression
	res.StartOffset = offset
	n, end, err := b.Archive().ReadEntry(e, offset, out)
	if err != nil {
		return err
	}
	res.BytesRead = n
	res.EndOfResource = end
	if n > 0 || end {
		res.Status = ReadOk
	} else {
		res.Status = DecodeFailed
	}
	return nil
}
