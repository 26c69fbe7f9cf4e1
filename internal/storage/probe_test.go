package storage

import (
	"archive/zip"
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/metcalfc/sdreader/internal/epubtest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newLibrary writes the sample book and a plain note under root/BOOKS.
func newLibrary(t *testing.T) *Probe {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, BooksDir)
	epubtest.Write(t, dir, "sample.epub", epubtest.Sample(t))
	epubtest.Write(t, dir, "notes.txt", []byte("not a book, only a note"))
	return NewProbe(root, quietLogger())
}

func readFirst(t *testing.T, p *Probe, name string) ChunkResult {
	t.Helper()
	res, err := p.ReadFirst(name, make([]byte, ChunkBytes))
	if err != nil {
		t.Fatalf("ReadFirst(%s): %v", name, err)
	}
	return res
}

func TestList(t *testing.T) {
	p := newLibrary(t)
	files, err := p.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 2 || files[0].Name != "notes.txt" || files[1].Name != "sample.epub" {
		t.Fatalf("List = %+v", files)
	}
	if files[0].Size != int64(len("not a book, only a note")) {
		t.Errorf("notes.txt size = %d", files[0].Size)
	}

	buf := make([]byte, 8)
	n, err := p.ReadFileRegion("notes.txt", 4, buf)
	if err != nil || string(buf[:n]) != "a book, " {
		t.Errorf("ReadFileRegion = %q %v", buf[:n], err)
	}
	n, err = p.ReadFileRegion("notes.txt", 20, buf)
	if err != nil || string(buf[:n]) != "ote" {
		t.Errorf("ReadFileRegion at the end = %q %v", buf[:n], err)
	}
	if _, err := p.ReadFileRegion("missing.epub", 0, buf); err == nil {
		t.Error("ReadFileRegion of a missing file succeeded")
	}
}

func TestListMissingDir(t *testing.T) {
	p := NewProbe(t.TempDir(), quietLogger())
	files, err := p.List()
	if err != nil || files != nil {
		t.Errorf("List = %v %v, want nothing", files, err)
	}
}

func TestScan(t *testing.T) {
	p := newLibrary(t)
	dir := p.Dir()
	epubtest.Write(t, dir, "bare_notes.zip", epubtest.Zip(t, []epubtest.File{
		{Name: "part1.html", Body: epubtest.Page("1", epubtest.Paragraphs("a", 3))},
	}))

	res, err := p.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !res.DirFound || res.Scanned != 3 || res.Total != 2 || res.Truncated {
		t.Errorf("Scan = %+v", res)
	}
	want := []Book{
		{Name: "bare_notes.zip", Title: "Bare Notes"},
		{Name: "sample.epub", Title: epubtest.SampleTitle, HasCover: true},
	}
	if len(res.Books) != len(want) {
		t.Fatalf("Books = %+v", res.Books)
	}
	for i, w := range want {
		got := res.Books[i]
		if got.Name != w.Name || got.Title != w.Title || got.HasCover != w.HasCover || got.Size == 0 {
			t.Errorf("Books[%d] = %+v, want %+v", i, got, w)
		}
	}
	entries := res.Entries()
	if entries[1].Title != epubtest.SampleTitle || !entries[1].HasCover {
		t.Errorf("Entries = %+v", entries)
	}
}

func TestScanMissingDir(t *testing.T) {
	p := NewProbe(t.TempDir(), quietLogger())
	res, err := p.ScanWithRetry(t.Context())
	if err != nil {
		t.Fatalf("ScanWithRetry: %v", err)
	}
	if res.DirFound || len(res.Books) != 0 {
		t.Errorf("Scan = %+v", res)
	}
}

func TestScanLimitsBooks(t *testing.T) {
	p := NewProbe(t.TempDir(), quietLogger())
	book := epubtest.Sample(t)
	for i := range MaxBooks + 2 {
		epubtest.Write(t, p.Dir(), "book"+string(rune('a'+i))+".epub", book)
	}
	res, err := p.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Books) != MaxBooks || res.Total != MaxBooks+2 || !res.Truncated {
		t.Errorf("Scan listed %d of %d, truncated %v", len(res.Books), res.Total, res.Truncated)
	}
}

func TestReadFirst(t *testing.T) {
	p := newLibrary(t)
	res := readFirst(t, p, "sample.epub")
	if res.Status != ReadOk || res.Resource != epubtest.Chapter1 {
		t.Fatalf("ReadFirst = %+v", res)
	}
	if res.ChapterIndex != 0 || res.ChapterTotal != 4 || res.ChapterLabel != "I" {
		t.Errorf("chapter = %d of %d %q", res.ChapterIndex, res.ChapterTotal, res.ChapterLabel)
	}
	if res.Compression != zip.Deflate || res.BytesRead != ChunkBytes || res.EndOfResource {
		t.Errorf("chunk = method %d, %d bytes, end %v", res.Compression, res.BytesRead, res.EndOfResource)
	}
}

func TestReadFromResourceInChunks(t *testing.T) {
	p := newLibrary(t)
	want := epubtest.Page("One", "<h1>I</h1>\n"+epubtest.Paragraphs("first", 12))

	buf := make([]byte, ChunkBytes)
	var got bytes.Buffer
	var offset int64
	for range 100 {
		res, err := p.ReadFromResource("sample.epub", epubtest.Chapter1, offset, buf)
		if err != nil || res.Status != ReadOk {
			t.Fatalf("ReadFromResource at %d = %+v %v", offset, res, err)
		}
		if res.StartOffset != offset {
			t.Fatalf("StartOffset = %d, want %d", res.StartOffset, offset)
		}
		got.Write(buf[:res.BytesRead])
		offset += int64(res.BytesRead)
		if res.EndOfResource {
			break
		}
	}
	if got.String() != want {
		t.Errorf("reassembled resource differs:\n%s", got.String())
	}
}

func TestReadNext(t *testing.T) {
	p := newLibrary(t)
	buf := make([]byte, ChunkBytes)

	res, err := p.ReadNext("sample.epub", epubtest.Chapter1, buf)
	if err != nil || res.Status != ReadOk || res.Resource != epubtest.Chapter2 {
		t.Fatalf("ReadNext(ch1) = %+v %v", res, err)
	}
	if res.ChapterIndex != 1 || res.ChapterLabel != "II" || res.StartOffset != 0 {
		t.Errorf("ReadNext(ch1) chapter = %d %q start %d", res.ChapterIndex, res.ChapterLabel, res.StartOffset)
	}

	res, err = p.ReadNext("sample.epub", epubtest.Chapter2, buf)
	if err != nil || res.Resource != epubtest.Chapter3 || res.Compression != zip.Store {
		t.Errorf("ReadNext(ch2) = %+v %v", res, err)
	}

	res, err = p.ReadNext("sample.epub", epubtest.Chapter3, buf)
	if err != nil || res.Status != NoTextResource {
		t.Errorf("ReadNext(ch3) = %+v %v, want no_text_resource", res, err)
	}
}

func TestReadAtChapter(t *testing.T) {
	p := newLibrary(t)
	page := epubtest.Page("Two", epubtest.Chapter2Body)
	sec3 := strings.Index(page, `<h2 id="Sec3"`)
	buf := make([]byte, ChunkBytes)

	res, err := p.ReadAtChapter("sample.epub", 2, buf)
	if err != nil || res.Status != ReadOk {
		t.Fatalf("ReadAtChapter(2) = %+v %v", res, err)
	}
	if res.Resource != epubtest.Chapter2 || res.ChapterIndex != 2 || res.ChapterLabel != "III" || res.ChapterTotal != 4 {
		t.Errorf("ReadAtChapter(2) = %+v", res)
	}
	if res.StartOffset != int64(sec3) {
		t.Errorf("StartOffset = %d, want %d", res.StartOffset, sec3)
	}
	if !strings.HasPrefix(string(buf[:res.BytesRead]), `<h2 id="Sec3">Three</h2>`) {
		t.Errorf("chunk starts with %q", buf[:min(res.BytesRead, 40)])
	}

	res, err = p.ReadAtChapter("sample.epub", 42, buf)
	if err != nil || res.Resource != epubtest.Chapter3 || res.ChapterIndex != 3 || res.ChapterLabel != "IV" {
		t.Errorf("ReadAtChapter(42) = %+v %v", res, err)
	}
}

func TestReadStatuses(t *testing.T) {
	p := newLibrary(t)

	var odd bytes.Buffer
	zw := zip.NewWriter(&odd)
	zw.RegisterCompressor(12, func(w io.Writer) (io.WriteCloser, error) {
		return nopWriteCloser{w}, nil
	})
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: "chapter.html", Method: 12})
	if err != nil {
		t.Fatal(err)
	}
	io.WriteString(fw, epubtest.Page("1", epubtest.Paragraphs("odd", 4)))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	epubtest.Write(t, p.Dir(), "odd.epub", odd.Bytes())

	tests := []struct {
		name string
		want Status
	}{
		{"notes.txt", NotZip},
		{"missing.epub", NoTextResource},
		{"odd.epub", UnsupportedCompression},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := readFirst(t, p, tt.name)
			if res.Status != tt.want || res.BytesRead != 0 {
				t.Errorf("ReadFirst = %+v, want %v", res, tt.want)
			}
		})
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func TestStatusString(t *testing.T) {
	if got := UnsupportedCompression.String(); got != "unsupported_compression" {
		t.Errorf("String = %q", got)
	}
	if got := Status(99).String(); got != "unknown" {
		t.Errorf("String = %q", got)
	}
}
