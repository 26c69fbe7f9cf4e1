package epub

import (
	"bytes"
	"strings"
	"testing"

	"github.com/metcalfc/sdreader/internal/archive"
	"github.com/metcalfc/sdreader/internal/epubtest"
)

func openBook(t *testing.T, files []epubtest.File) *Book {
	t.Helper()
	data := epubtest.Zip(t, files)
	a, err := archive.Open(bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		t.Fatalf("archive.Open: %v", err)
	}
	b, err := Open(a)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return b
}

func TestOpenSample(t *testing.T) {
	b := openBook(t, epubtest.SampleFiles())
	if b.PackagePath() != epubtest.OPFPath {
		t.Errorf("PackagePath = %q, want %q", b.PackagePath(), epubtest.OPFPath)
	}
	md := b.Metadata()
	if md.Title != epubtest.SampleTitle {
		t.Errorf("Title = %q, want %q", md.Title, epubtest.SampleTitle)
	}
	if !md.HasCover || md.CoverPath != epubtest.CoverImage {
		t.Errorf("cover = %v %q, want true %q", md.HasCover, md.CoverPath, epubtest.CoverImage)
	}
}

func TestLocatePackage(t *testing.T) {
	opf := `<package><manifest/></package>`
	tests := []struct {
		name  string
		files []epubtest.File
		want  string
		found bool
	}{
		{
			name: "container",
			files: []epubtest.File{
				{Name: "a/first.opf", Body: opf},
				{Name: "META-INF/container.xml", Body: epubtest.Container("b/second.opf")},
				{Name: "b/second.opf", Body: opf},
			},
			want:  "b/second.opf",
			found: true,
		},
		{
			name: "container points nowhere",
			files: []epubtest.File{
				{Name: "META-INF/container.xml", Body: epubtest.Container("missing.opf")},
				{Name: "x/pkg.OPF", Body: opf},
			},
			want:  "x/pkg.OPF",
			found: true,
		},
		{
			name: "no container",
			files: []epubtest.File{
				{Name: "chapter.html", Body: "<p>hi</p>"},
				{Name: "root.opf", Body: opf},
			},
			want:  "root.opf",
			found: true,
		},
		{
			name:  "no package",
			files: []epubtest.File{{Name: "chapter.html", Body: "<p>hi</p>"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := openBook(t, tt.files)
			_, path, ok, err := LocatePackage(b.Archive())
			if err != nil {
				t.Fatalf("LocatePackage: %v", err)
			}
			if ok != tt.found || path != tt.want {
				t.Errorf("LocatePackage = %q %v, want %q %v", path, ok, tt.want, tt.found)
			}
		})
	}
}

func TestOpenWithoutPackage(t *testing.T) {
	b := openBook(t, []epubtest.File{
		{Name: "notes/readme.txt", Body: "short"},
		{Name: "book/part1.html", Body: epubtest.Page("1", epubtest.Paragraphs("a", 15))},
		{Name: "book/part2.html", Body: epubtest.Page("2", epubtest.Paragraphs("b", 15))},
	})
	if b.PackagePath() != "" {
		t.Fatalf("PackagePath = %q, want empty", b.PackagePath())
	}
	if _, ok, _ := b.ReadTOC(); ok {
		t.Fatal("ReadTOC found a table of contents in a book without a package")
	}

	e, ok, err := b.FirstTextEntry()
	if err != nil || !ok || e.Name != "book/part1.html" {
		t.Fatalf("FirstTextEntry = %q %v %v, want book/part1.html", e.Name, ok, err)
	}
	pos, ok, err := b.PositionForResource("book/part2.html")
	if err != nil || !ok {
		t.Fatalf("PositionForResource: %v %v", ok, err)
	}
	// readme.txt matches the "note" keyword and is skipped.
	if pos.Index != 1 || pos.Total != 2 {
		t.Errorf("position = %+v, want 1 of 2", pos)
	}
}

func TestResolveHref(t *testing.T) {
	tests := []struct {
		base, href string
		want       string
		ok         bool
	}{
		{"OEBPS/content.opf", "text/ch1.xhtml", "OEBPS/text/ch1.xhtml", true},
		{"OEBPS/text/ch1.xhtml", "../images/a.png", "OEBPS/images/a.png", true},
		{"OEBPS/content.opf", "./a/./b.html#frag", "OEBPS/a/b.html", true},
		{"OEBPS/content.opf", "../../../x.html", "x.html", true},
		{"content.opf", "ch1.html?x=1", "ch1.html", true},
		{"OEBPS/content.opf", "/abs/ch.html", "abs/ch.html", true},
		{"OEBPS/content.opf", "#only", "", false},
		{"OEBPS/content.opf", "  ", "", false},
		{"OEBPS/content.opf", "..", "", false},
		{"OEBPS/content.opf", strings.Repeat("a", PathBytes), "", false},
		{"OEBPS/content.opf", strings.Repeat("d/", maxPathSegments) + "x.html", "", false},
	}
	for _, tt := range tests {
		got, ok := ResolveHref(tt.base, tt.href)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ResolveHref(%q, %q) = %q %v, want %q %v", tt.base, tt.href, got, ok, tt.want, tt.ok)
		}
	}
}

func TestResolveHrefNonASCII(t *testing.T) {
	got, ok := ResolveHref("OEBPS/content.opf", "capítulo.xhtml")
	if !ok || got != "OEBPS/cap??tulo.xhtml" {
		t.Errorf("ResolveHref = %q %v", got, ok)
	}
}

func TestNormalizeFragment(t *testing.T) {
	tests := map[string]string{
		"":            "",
		"#Chapter_1":  "chapter_1",
		"Part%20Two":  "part two",
		"a+b":         "a b",
		"bad%zz+c":    "bad%zz c",
		"  Sec3  ":    "sec3",
		"%C3%A1ngulo": "??ngulo",
	}
	for in, want := range tests {
		if got := normalizeFragment(in); got != want {
			t.Errorf("normalizeFragment(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsFrontMatter(t *testing.T) {
	for _, s := range []string{
		"cover.xhtml", "Portada.html", "TitlePage", "toc.ncx", "nav.xhtml",
		"OEBPS/Text/Prologo.html", "dedication", "copyright.html", "acknowledgements",
	} {
		if !IsFrontMatter(s) {
			t.Errorf("IsFrontMatter(%q) = false", s)
		}
	}
	for _, s := range []string{"ch01.xhtml", "OEBPS/text/chapter-2.html", "part3"} {
		if IsFrontMatter(s) {
			t.Errorf("IsFrontMatter(%q) = true", s)
		}
	}
}

func TestIsTextResourceName(t *testing.T) {
	tests := map[string]bool{
		"a.xhtml":                true,
		"B.HTML":                 true,
		"c.htm":                  true,
		"d.txt":                  true,
		"e.css":                  false,
		"dir/":                   false,
		"META-INF/container.xml": false,
		"META-INF/x.html":        false,
		"":                       false,
	}
	for name, want := range tests {
		if got := IsTextResourceName(name); got != want {
			t.Errorf("IsTextResourceName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestAttrValue(t *testing.T) {
	tag := []byte(`<item idref="wrong" id="c1" href='text/a.html' media-type=application/xhtml+xml empty="">`)
	tests := []struct {
		attr string
		want string
		ok   bool
	}{
		{"id", "c1", true},
		{"idref", "wrong", true},
		{"href", "text/a.html", true},
		{"media-type", "application/xhtml+xml", true},
		{"ID", "c1", true},
		{"empty", "", false},
		{"missing", "", false},
		{"ref", "", false},
	}
	for _, tt := range tests {
		got, ok := AttrValue(tag, tt.attr)
		if string(got) != tt.want || ok != tt.ok {
			t.Errorf("AttrValue(%q) = %q %v, want %q %v", tt.attr, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFindElement(t *testing.T) {
	doc := []byte(`<?xml version="1.0"?><!-- manifest follows --><opf:manifest></item><opf:item id="a"/><itemref idref="x"/><ITEM id="b">`)
	var ids []string
	eachElement(doc, "item", func(tag []byte, _, _ int) bool {
		id, _ := AttrValue(tag, "id")
		ids = append(ids, string(id))
		return true
	})
	// Closing tags and itemref never match.
	if strings.Join(ids, ",") != "a,b" {
		t.Errorf("items = %v, want [a b]", ids)
	}

	start, stop, ok := FindElement(doc, "manifest", 0, len(doc))
	if !ok || string(doc[start:stop]) != "<opf:manifest>" {
		t.Errorf("FindElement(manifest) = %q %v", doc[start:stop], ok)
	}
	if _, _, ok := FindElement(doc, "item", 0, start); ok {
		t.Error("FindElement found an item before the manifest")
	}
}

func TestElementText(t *testing.T) {
	opf := []byte("<metadata><dc:title id=\"t\">  </dc:title><dc:title>\n  Real Title \n</dc:title></metadata>")
	got, ok := elementText(opf, "<dc:title")
	if !ok || got != "Real Title" {
		t.Errorf("elementText = %q %v", got, ok)
	}
	if got := textOrLossy([]byte("caf\xe9 ok")); got != "caf? ok" {
		t.Errorf("textOrLossy = %q", got)
	}
}

func TestManifestLookupWraps(t *testing.T) {
	m := &Manifest{opf: []byte(`<manifest>
		<item id="a" href="a.html" media-type="text/html"/>
		<item id="b" href="b.html" media-type="text/html"/>
		<item id="nohref" media-type="text/html"/>
		<item id="c" href="c.html" media-type="text/html" properties="nav"/>
	</manifest>`)}

	for _, id := range []string{"c", "a", "B", "c"} {
		item, ok := m.ItemByID(id)
		if !ok || !strings.EqualFold(item.ID, id) {
			t.Fatalf("ItemByID(%q) = %+v %v", id, item, ok)
		}
	}
	if _, ok := m.ItemByID("nohref"); ok {
		t.Error("ItemByID returned an item without href")
	}
	if _, ok := m.ItemByID("zzz"); ok {
		t.Error("ItemByID found a missing id")
	}

	var hrefs []string
	m.Items(func(it ManifestItem) bool {
		hrefs = append(hrefs, it.Href)
		return true
	})
	if strings.Join(hrefs, " ") != "a.html b.html c.html" {
		t.Errorf("Items = %v", hrefs)
	}
}

func TestWalkSpine(t *testing.T) {
	opf := `<package><manifest>
  <item id="cover" href="cover.xhtml" media-type="application/xhtml+xml"/>
  <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
  <item id="img" href="pic.png" media-type="image/png"/>
  <item id="one" href="text/one.xhtml" media-type="application/xhtml+xml"/>
  <item id="aside" href="text/aside.xhtml" media-type="application/xhtml+xml"/>
  <item id="two" href="text/two.xhtml" media-type="application/xhtml+xml"/>
</manifest><spine>
  <itemref idref="cover"/>
  <itemref idref="nav"/>
  <itemref idref="img"/>
  <itemref idref="ghost"/>
  <itemref/>
  <itemref idref="one"/>
  <itemref idref="aside" linear="no"/>
  <itemref idref="two"/>
</spine></package>`
	b := openBook(t, []epubtest.File{
		{Name: "META-INF/container.xml", Body: epubtest.Container("OPS/book.opf")},
		{Name: "OPS/book.opf", Body: opf},
	})

	collect := func(skip bool) string {
		var paths []string
		b.WalkSpine(skip, func(it SpineItem) bool {
			paths = append(paths, it.Path)
			return true
		})
		return strings.Join(paths, " ")
	}
	if got := collect(true); got != "OPS/text/one.xhtml OPS/text/two.xhtml" {
		t.Errorf("filtered spine = %q", got)
	}
	if got := collect(false); got != "OPS/cover.xhtml OPS/text/one.xhtml OPS/text/two.xhtml" {
		t.Errorf("unfiltered spine = %q", got)
	}

	if next, ok := b.spineNextText("OPS/cover.xhtml"); !ok || next != "OPS/text/one.xhtml" {
		t.Errorf("spineNextText = %q %v", next, ok)
	}
	if _, ok := b.spineNextText("OPS/text/two.xhtml"); ok {
		t.Error("spineNextText found a successor to the last item")
	}
	path, index, total, ok := b.spineEntryAt(7)
	if !ok || path != "OPS/text/two.xhtml" || index != 1 || total != 2 {
		t.Errorf("spineEntryAt(7) = %q %d %d %v", path, index, total, ok)
	}
	index, total, ok = b.spinePosition("OPS/cover.xhtml")
	if !ok || index != 0 || total != 3 {
		t.Errorf("spinePosition(cover) = %d %d %v, want 0 3 true", index, total, ok)
	}
}

func TestTextEntries(t *testing.T) {
	b := openBook(t, epubtest.SampleFiles())

	e, ok, err := b.FirstTextEntry()
	if err != nil || !ok || e.Name != epubtest.Chapter1 {
		t.Fatalf("FirstTextEntry = %q %v %v, want %q", e.Name, ok, err, epubtest.Chapter1)
	}
	steps := []struct{ from, want string }{
		{"", epubtest.Chapter1},
		{epubtest.TitlePage, epubtest.Chapter1},
		{epubtest.Chapter1, epubtest.Chapter2},
		{epubtest.Chapter2, epubtest.Chapter3},
	}
	for _, s := range steps {
		e, ok, err := b.NextTextEntry(s.from)
		if err != nil || !ok || e.Name != s.want {
			t.Errorf("NextTextEntry(%q) = %q %v %v, want %q", s.from, e.Name, ok, err, s.want)
		}
	}
	if e, ok, _ := b.NextTextEntry(epubtest.Chapter3); ok {
		t.Errorf("NextTextEntry(last) = %q, want none", e.Name)
	}
}

func TestFirstTextEntrySmallSpine(t *testing.T) {
	opf := `<package><manifest>
  <item id="s" href="stub.html" media-type="text/html"/>
</manifest><spine><itemref idref="s"/></spine></package>`
	b := openBook(t, []epubtest.File{
		{Name: "content.opf", Body: opf},
		{Name: "stub.html", Body: "<p>tiny</p>"},
		{Name: "cover.html", Body: epubtest.Page("c", epubtest.Paragraphs("c", 20))},
		{Name: "long.html", Body: epubtest.Page("l", epubtest.Paragraphs("l", 20))},
	})
	e, ok, err := b.FirstTextEntry()
	if err != nil || !ok || e.Name != "long.html" {
		t.Errorf("FirstTextEntry = %q %v %v, want long.html", e.Name, ok, err)
	}
}

func TestMetadataFallbacks(t *testing.T) {
	tests := []struct {
		name      string
		opf       string
		title     string
		cover     bool
		coverPath string
	}{
		{
			name:  "title element",
			opf:   `<package><metadata><title>Plain</title></metadata></package>`,
			title: "Plain",
		},
		{
			name:  "meta property",
			opf:   `<package><metadata><meta property="dcterms:title" content="From Meta"/></metadata></package>`,
			title: "From Meta",
		},
		{
			name:      "cover by id",
			opf:       `<package><manifest><item id="x" href="a.png" media-type="image/png"/><item id="my-cover" href="img/b.png" media-type="image/png"/></manifest></package>`,
			cover:     true,
			coverPath: "img/b.png",
		},
		{
			name:      "any image",
			opf:       `<package><manifest><item id="x" href="art/plate.gif"/></manifest></package>`,
			cover:     true,
			coverPath: "art/plate.gif",
		},
		{
			name:  "cover mentioned only",
			opf:   `<package><metadata><meta name='cover' content='missing'/></metadata></package>`,
			cover: true,
		},
		{
			name: "nothing",
			opf:  `<package><manifest><item id="c" href="c.html" media-type="text/html"/></manifest></package>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := openBook(t, []epubtest.File{{Name: "book.opf", Body: tt.opf}})
			md := b.Metadata()
			if md.Title != tt.title || md.HasCover != tt.cover || md.CoverPath != tt.coverPath {
				t.Errorf("Metadata = %+v, want title %q cover %v %q", md, tt.title, tt.cover, tt.coverPath)
			}
		})
	}
}

func TestFragmentOffset(t *testing.T) {
	b := openBook(t, epubtest.SampleFiles())
	e, ok, err := b.Resource(epubtest.Chapter2)
	if err != nil || !ok {
		t.Fatalf("Resource: %v %v", ok, err)
	}
	page := epubtest.Page("Two", epubtest.Chapter2Body)
	want := int64(strings.Index(page, `<h2 id="Sec3"`))

	for _, frag := range []string{epubtest.Section3ID, "#sec3", "SEC3"} {
		off, err := b.FragmentOffset(e, frag)
		if err != nil || off != want {
			t.Errorf("FragmentOffset(%q) = %d %v, want %d", frag, off, err, want)
		}
	}
	for _, frag := range []string{"", "nowhere"} {
		if off, err := b.FragmentOffset(e, frag); err != nil || off != 0 {
			t.Errorf("FragmentOffset(%q) = %d %v, want 0", frag, off, err)
		}
	}
}

func TestAnchorScannerAcrossChunks(t *testing.T) {
	doc := strings.Repeat("<p>filler text</p>", 40) + `<div class="x"><a id="target">here</a></div>`
	want := int64(strings.Index(doc, `<a id="target"`))
	for _, size := range []int{1, 7, 64, 320, len(doc)} {
		s := NewAnchorScanner("Target")
		var got int64
		found := false
		for off := 0; off < len(doc) && !found; off += size {
			got, found = s.Feed([]byte(doc[off:min(off+size, len(doc))]))
		}
		if !found || got != want {
			t.Errorf("chunk %d: offset = %d %v, want %d", size, got, found, want)
		}
	}

	if NewAnchorScanner("  #  ") != nil {
		t.Error("NewAnchorScanner accepted an empty fragment")
	}
	// A bare mention in text is not an anchor.
	s := NewAnchorScanner("target")
	if _, ok := s.Feed([]byte(`<p>the target is "target" here</p>`)); ok {
		t.Error("Feed matched a quoted word outside an attribute")
	}
}
