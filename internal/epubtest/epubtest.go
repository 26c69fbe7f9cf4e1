// Package epubtest builds small EPUB archives in memory for tests.
package epubtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// File is one archive member. Members are deflated unless Store is set.
type File struct {
	Name  string
	Body  string
	Store bool
}

// Zip writes files in order and returns the archive bytes.
func Zip(t testing.TB, files []File) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, f := range files {
		method := zip.Deflate
		if f.Store {
			method = zip.Store
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: method})
		if err != nil {
			t.Fatalf("epubtest: create %s: %v", f.Name, err)
		}
		if _, err := io.WriteString(fw, f.Body); err != nil {
			t.Fatalf("epubtest: write %s: %v", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("epubtest: close: %v", err)
	}
	return buf.Bytes()
}

// Write stores data as dir/name and returns the full path.
func Write(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("epubtest: mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("epubtest: write %s: %v", path, err)
	}
	return path
}

// Container returns a container.xml pointing at opfPath.
func Container(opfPath string) string {
	return `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="` + opfPath + `" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`
}

// Paragraphs returns n HTML paragraphs of body text tagged with word.
func Paragraphs(word string, n int) string {
	var sb strings.Builder
	for i := range n {
		fmt.Fprintf(&sb, "<p>The %s river runs past stone number %d, and the quiet town sleeps.</p>\n", word, i+1)
	}
	return sb.String()
}

// Page wraps body in an XHTML document with a head that must never be
// shown.
func Page(title, body string) string {
	return `<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>` + title + `</title><style>p { margin: 0 }</style></head>
<body>
` + body + `</body>
</html>`
}

// Sample book layout.
const (
	SampleTitle = "The Test Book"
	OPFPath     = "OEBPS/content.opf"
	Chapter1    = "OEBPS/text/ch1.xhtml"
	Chapter2    = "OEBPS/text/ch2.xhtml"
	Chapter3    = "OEBPS/text/ch3.xhtml"
	TitlePage   = "OEBPS/titlepage.xhtml"
	CoverImage  = "OEBPS/images/cover.jpg"
	// Section3ID is the anchor inside Chapter2 where the third TOC entry
	// starts.
	Section3ID = "Sec3"
)

const sampleOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>The Test Book</dc:title>
    <meta name="cover" content="cover-img"/>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="cover-img" href="images/cover.jpg" media-type="image/jpeg"/>
    <item id="titlepage" href="titlepage.xhtml" media-type="application/xhtml+xml"/>
    <item id="c1" href="text/ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="text/ch2.xhtml" media-type="application/xhtml+xml"/>
    <item id="c3" href="text/ch3.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="titlepage"/>
    <itemref idref="c1"/>
    <itemref idref="c2"/>
    <itemref idref="c3"/>
  </spine>
</package>`

const sampleNCX = `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
    <navPoint id="n0"><navLabel><text>Title Page</text></navLabel><content src="titlepage.xhtml"/></navPoint>
    <navPoint id="n1"><navLabel><text>Contents</text></navLabel><content src="text/ch1.xhtml#toc"/></navPoint>
    <navPoint id="n2"><navLabel><text>I</text></navLabel><content src="text/ch1.xhtml"/></navPoint>
    <navPoint id="n3"><navLabel><text>II</text></navLabel><content src="text/ch2.xhtml"/></navPoint>
    <navPoint id="n4"><navLabel><text>III</text></navLabel><content src="text/ch2.xhtml#Sec3"/></navPoint>
    <navPoint id="n5"><navLabel><text>IV</text></navLabel><content src="text/ch3.xhtml"/></navPoint>
  </navMap>
</ncx>`

const sampleNav = `<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<body><nav epub:type="toc"><ol>
  <li><a href="text/ch1.xhtml">I</a></li>
  <li><a href="text/ch2.xhtml">II</a></li>
</ol></nav></body>
</html>`

// Chapter2Body is the body of Chapter2; Section3ID starts inside it.
var Chapter2Body = Paragraphs("second", 12) +
	`<h2 id="` + Section3ID + `">Three</h2>` + "\n" + Paragraphs("third", 12)

// SampleFiles is the member list of the sample book, in archive order.
func SampleFiles() []File {
	return []File{
		{Name: "mimetype", Body: "application/epub+zip", Store: true},
		{Name: "META-INF/container.xml", Body: Container(OPFPath)},
		{Name: OPFPath, Body: sampleOPF},
		{Name: "OEBPS/toc.ncx", Body: sampleNCX},
		{Name: "OEBPS/nav.xhtml", Body: sampleNav},
		{Name: TitlePage, Body: Page("Title", "<h1>The Test Book</h1>")},
		{Name: Chapter1, Body: Page("One", "<h1>I</h1>\n"+Paragraphs("first", 12))},
		{Name: Chapter2, Body: Page("Two", Chapter2Body)},
		{Name: Chapter3, Body: Page("Four", "<h1>IV</h1>\n"+Paragraphs("fourth", 12)), Store: true},
		{Name: CoverImage, Body: "\xff\xd8\xff\xe0 not really a jpeg", Store: true},
	}
}

// Sample returns the bytes of a small book with a title page, an NCX that
// lists four chapters over three files, and a cover image.
func Sample(t testing.TB) []byte {
	t.Helper()
	return Zip(t, SampleFiles())
}
