package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	goepub "github.com/taylorskalyo/goreader/epub"

	"github.com/metcalfc/sdreader/internal/archive"
	"github.com/metcalfc/sdreader/internal/catalog"
	"github.com/metcalfc/sdreader/internal/epub"
	"github.com/metcalfc/sdreader/internal/reader"
)

const (
	// MaxCandidates bounds how many files a scan opens.
	MaxCandidates = 48
	// MaxBooks bounds how many books a scan lists.
	MaxBooks = catalog.MaxTitles

	ScanAttempts   = 3
	ScanRetryDelay = 120 * time.Millisecond
)

// Book is one archive found by Scan.
type Book struct {
	Name     string
	Title    string
	HasCover bool
	Size     int64
}

// ScanResult is what a library scan found.
type ScanResult struct {
	DirFound bool
	// Scanned counts regular files seen, Total the archives among them.
	Scanned   int
	Total     int
	Books     []Book
	Truncated bool
}

// Entries returns the books as catalog entries.
func (r ScanResult) Entries() []catalog.Entry {
	entries := make([]catalog.Entry, len(r.Books))
	for i, b := range r.Books {
		entries[i] = catalog.Entry{Title: b.Title, HasCover: b.HasCover}
	}
	return entries
}

// Scan lists the archives in the books directory with their display titles.
func (p *Probe) Scan() (ScanResult, error) {
	var res ScanResult
	if _, err := os.Stat(p.dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return res, nil
		}
		return res, err
	}
	res.DirFound = true

	files, err := p.List()
	if err != nil {
		return res, err
	}
	res.Scanned = len(files)
	if len(files) > MaxCandidates {
		files = files[:MaxCandidates]
		res.Truncated = true
	}

	for _, fi := range files {
		book, isArchive, err := p.scanFile(fi)
		if err != nil {
			return res, err
		}
		if !isArchive {
			continue
		}
		res.Total++
		if len(res.Books) == MaxBooks {
			res.Truncated = true
			continue
		}
		res.Books = append(res.Books, book)
	}
	p.logger.Info("library scanned",
		"dir", p.dir, "scanned", res.Scanned, "archives", res.Total,
		"listed", len(res.Books), "truncated", res.Truncated)
	return res, nil
}

// ScanWithRetry retries Scan, waiting ScanRetryDelay between attempts.
func (p *Probe) ScanWithRetry(ctx context.Context) (ScanResult, error) {
	var err error
	for attempt := 1; attempt <= ScanAttempts; attempt++ {
		var res ScanResult
		if res, err = p.Scan(); err == nil {
			return res, nil
		}
		p.logger.Info("library scan failed", "attempt", attempt, "err", err)
		if attempt < ScanAttempts {
			if werr := sleep(ctx, ScanRetryDelay); werr != nil {
				return ScanResult{}, werr
			}
		}
	}
	return ScanResult{}, fmt.Errorf("scan %s: %w", p.dir, err)
}

// Describe reads the title and cover flag of one file. isArchive is false
// for a file without a ZIP signature.
func (p *Probe) Describe(name string) (book Book, isArchive bool, err error) {
	info, err := os.Stat(filepath.Join(p.dir, name))
	if err != nil {
		return Book{}, false, err
	}
	return p.scanFile(FileInfo{Name: name, Size: info.Size()})
}

func (p *Probe) scanFile(fi FileInfo) (Book, bool, error) {
	book := Book{Name: fi.Name, Title: reader.FileTitle(fi.Name), Size: fi.Size}

	var head [4]byte
	n, err := p.ReadFileRegion(fi.Name, 0, head[:])
	if err != nil {
		return book, false, err
	}
	if !archive.HasSignature(head[:n]) {
		return book, false, nil
	}

	title, fromPackage := packageTitle(filepath.Join(p.dir, fi.Name))
	md, err := p.metadata(fi.Name)
	if err != nil {
		p.logger.Debug("book metadata", "short_name", fi.Name, "err", err)
	}
	if !fromPackage && md.Title != "" {
		title, fromPackage = md.Title, true
	}
	if fromPackage {
		book.Title = title
	}
	book.HasCover = md.HasCover
	return book, true, nil
}

// packageTitle asks goreader for the title in the package metadata.
func packageTitle(path string) (string, bool) {
	rc, err := goepub.OpenReader(path)
	if err != nil {
		return "", false
	}
	defer rc.Close()
	if len(rc.Rootfiles) == 0 {
		return "", false
	}
	title := strings.TrimSpace(rc.Rootfiles[0].Metadata.Title)
	return title, title != ""
}

func (p *Probe) metadata(name string) (epub.Metadata, error) {
	f, a, ok, err := p.openArchive(name)
	if err != nil || !ok {
		return epub.Metadata{}, err
	}
	defer f.Close()
	b, err := epub.Open(a)
	if err != nil {
		return epub.Metadata{}, err
	}
	return b.Metadata(), nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
