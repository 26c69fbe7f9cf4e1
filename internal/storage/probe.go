// Package storage reads books from a books root on disk. Each probe opens
// the book file, reads what it needs through the archive and epub packages,
// and closes the file before returning.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/metcalfc/sdreader/internal/archive"
	"github.com/metcalfc/sdreader/internal/sanitize"
)

const (
	// BooksDir is the directory under the root that holds the books.
	BooksDir = "BOOKS"
	// ChunkBytes is the size of one text chunk handed to the catalog. It
	// leaves room for the tail carried from the previous chunk.
	ChunkBytes = sanitize.TextBytes - sanitize.TailBytes

	streamTTL     = 10 * time.Minute
	streamCleanup = 15 * time.Minute
)

// FileInfo is one regular file in the books directory.
type FileInfo struct {
	Name string
	Size int64
}

// Probe serves the books under root/BOOKS.
type Probe struct {
	dir    string
	logger *slog.Logger

	// streams keeps one archive.Streamer per book file, so a deflated
	// resource read in consecutive chunks is decoded only once.
	streams *cache.Cache
}

// NewProbe returns a probe for root. A nil logger means slog.Default().
func NewProbe(root string, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{
		dir:     filepath.Join(root, BooksDir),
		logger:  logger,
		streams: cache.New(streamTTL, streamCleanup),
	}
}

// NewProbeDir returns a probe serving dir itself, for a book opened outside
// a books root.
func NewProbeDir(dir string, logger *slog.Logger) *Probe {
	p := NewProbe("", logger)
	p.dir = dir
	return p
}

// Dir returns the books directory.
func (p *Probe) Dir() string { return p.dir }

// List returns the regular files of the books directory in name order. A
// missing directory lists nothing.
func (p *Probe) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(p.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", p.dir, err)
	}
	var files []FileInfo
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{Name: e.Name(), Size: info.Size()})
	}
	return files, nil
}

// ReadFileRegion reads up to len(out) bytes of the named book starting at
// offset. Reading past the end is not an error.
func (p *Probe) ReadFileRegion(name string, offset int64, out []byte) (int, error) {
	f, err := os.Open(filepath.Join(p.dir, name))
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n, err := f.ReadAt(out, offset)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

// streamer returns the cached Streamer for a book file. The key includes
// size and modification time so a replaced file starts over.
func (p *Probe) streamer(name string, info fs.FileInfo) *archive.Streamer {
	key := fmt.Sprintf("%s:%d:%d", name, info.Size(), info.ModTime().UnixNano())
	if s, ok := p.streams.Get(key); ok {
		return s.(*archive.Streamer)
	}
	s := archive.NewStreamer()
	p.streams.SetDefault(key, s)
	return s
}

// openArchive opens the named book. ok is false when the file does not
// exist.
func (p *Probe) openArchive(name string) (f *os.File, a *archive.Reader, ok bool, err error) {
	f, err = os.Open(filepath.Join(p.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, false, err
	}
	a, err = archive.Open(f, info.Size(), p.streamer(name, info))
	if err != nil {
		f.Close()
		return nil, nil, false, err
	}
	return f, a, true, nil
}
