package epub

import (
	"bytes"
	"strings"
)

const (
	// TOCBytes caps how much of the TOC document is read.
	TOCBytes = 12288
	// ncxLabelWindow is how far before a <content> tag its label is looked
	// for when no enclosing navPoint is found.
	ncxLabelWindow = 1536
	// LabelBytes caps a chapter label.
	LabelBytes = 48
)

// TOCFormat is the dialect of a table of contents document.
type TOCFormat int

const (
	FormatNCX TOCFormat = iota
	FormatNav
)

func (f TOCFormat) String() string {
	if f == FormatNCX {
		return "ncx"
	}
	return "nav"
}

// ChapterTarget is one accepted TOC entry.
type ChapterTarget struct {
	Path     string
	Fragment string
	Label    string
	Ordinal  int
}

// tocSource is where a TOC document was found.
type tocSource struct {
	path   string
	format TOCFormat
}

// tocLocators are tried in order; each reports false to pass to the next.
var tocLocators = []func(b *Book) (tocSource, bool){
	locateSpineTOC,
	manifestTOC(func(it ManifestItem) bool { return containsFoldString(it.Properties, "nav") }),
	manifestTOC(func(it ManifestItem) bool { return containsFoldString(it.MediaType, "ncx") }),
	manifestTOC(func(it ManifestItem) bool {
		return containsFoldString(it.Href, "toc") || containsFoldString(it.Href, "nav") ||
			containsFoldString(it.MediaType, "ncx") || hasSuffixFold(it.Href, ".ncx")
	}),
}

func locateSpineTOC(b *Book) (tocSource, bool) {
	start, stop, ok := FindElement(b.opf, "spine", 0, len(b.opf))
	if !ok {
		return tocSource{}, false
	}
	id, ok := AttrValue(b.opf[start:stop], "toc")
	if !ok {
		return tocSource{}, false
	}
	item, ok := b.Manifest().ItemByID(textOrLossy(id))
	if !ok {
		return tocSource{}, false
	}
	path, ok := ResolveHref(b.opfPath, item.Href)
	if !ok {
		return tocSource{}, false
	}
	return tocSource{path: path, format: formatOf(path, item)}, true
}

func manifestTOC(match func(ManifestItem) bool) func(b *Book) (tocSource, bool) {
	return func(b *Book) (tocSource, bool) {
		var src tocSource
		found := false
		b.Manifest().Items(func(it ManifestItem) bool {
			if !match(it) {
				return true
			}
			path, ok := ResolveHref(b.opfPath, it.Href)
			if !ok {
				return true
			}
			src, found = tocSource{path: path, format: formatOf(path, it)}, true
			return false
		})
		return src, found
	}
}

func formatOf(path string, it ManifestItem) TOCFormat {
	if containsFoldString(it.MediaType, "ncx") || hasSuffixFold(path, ".ncx") ||
		containsFoldString(it.Properties, "ncx") {
		return FormatNCX
	}
	return FormatNav
}

// TOC is a table of contents document read from the archive.
type TOC struct {
	Path   string
	Format TOCFormat
	doc    []byte
}

// ReadTOC finds and reads the table of contents. It reports false when the
// book has none or it cannot be read.
func (b *Book) ReadTOC() (*TOC, bool, error) {
	if len(b.opf) == 0 {
		return nil, false, nil
	}
	var src tocSource
	found := false
	for _, locate := range tocLocators {
		if src, found = locate(b); found {
			break
		}
	}
	if !found {
		return nil, false, nil
	}

	entry, ok, err := b.a.EntryByPath(src.path)
	if err != nil || !ok {
		return nil, false, err
	}
	doc, err := readPrefix(b.a, entry, TOCBytes)
	if err != nil || len(doc) == 0 {
		return nil, false, err
	}
	return &TOC{Path: src.path, Format: src.format, doc: doc}, true, nil
}

// WalkTargets calls fn with every link in the document, before any
// filtering, until fn returns false.
func (t *TOC) WalkTargets(fn func(ChapterTarget) bool) {
	switch t.Format {
	case FormatNCX:
		t.walkNCX(fn)
	default:
		t.walkNav(fn)
	}
}

// WalkChapters calls fn with every TOC target that looks like a chapter,
// numbering them from 0. Consecutive duplicates are dropped.
func (t *TOC) WalkChapters(fn func(ChapterTarget) bool) {
	var lastPath, lastFragment string
	ordinal := 0
	t.WalkTargets(func(ct ChapterTarget) bool {
		if !IsProbableChapter(ct) {
			return true
		}
		if strings.EqualFold(ct.Path, lastPath) && strings.EqualFold(ct.Fragment, lastFragment) {
			return true
		}
		lastPath, lastFragment = ct.Path, ct.Fragment
		ct.Ordinal = ordinal
		ordinal++
		return fn(ct)
	})
}

func (t *TOC) walkNCX(fn func(ChapterTarget) bool) {
	eachElement(t.doc, "content", func(tag []byte, start, _ int) bool {
		src, ok := attrString(tag, "src")
		if !ok {
			return true
		}
		ct, ok := t.target(src)
		if !ok {
			return true
		}
		ct.Label = ncxLabel(t.doc, start)
		if strings.TrimSpace(ct.Label) == "" {
			ct.Label = fallbackLabel(ct.Path, ct.Fragment)
		}
		return fn(ct)
	})
}

func (t *TOC) walkNav(fn func(ChapterTarget) bool) {
	eachElement(t.doc, "a", func(tag []byte, _, stop int) bool {
		href, ok := attrString(tag, "href")
		if !ok {
			return true
		}
		ct, ok := t.target(href)
		if !ok {
			return true
		}
		end := indexFold(t.doc, []byte("</a"), stop)
		if end < 0 {
			end = len(t.doc)
		}
		ct.Label = inlineText(t.doc[stop:end])
		if strings.TrimSpace(ct.Label) == "" {
			ct.Label = fallbackLabel(ct.Path, ct.Fragment)
		}
		return fn(ct)
	})
}

// target resolves an href found in the TOC document. An href with only a
// fragment points into the TOC document itself.
func (t *TOC) target(href string) (ChapterTarget, bool) {
	path, fragment := splitHref(href)
	ct := ChapterTarget{Fragment: normalizeFragment(fragment)}
	if path == "" {
		ct.Path = t.Path
		return ct, t.Path != ""
	}
	resolved, ok := ResolveHref(t.Path, path)
	ct.Path = resolved
	return ct, ok
}

// ncxLabel returns the last <text> before contentStart inside the
// enclosing navPoint.
func ncxLabel(doc []byte, contentStart int) string {
	from := lastIndexFold(doc, []byte("<navpoint"), contentStart)
	if from < 0 {
		from = max(contentStart-ncxLabelWindow, 0)
	}
	label := ""
	for cursor := from; ; {
		start, stop, ok := FindElement(doc, "text", cursor, contentStart)
		if !ok {
			break
		}
		end := contentStart
		if lt := bytes.IndexByte(doc[stop:contentStart], '<'); lt >= 0 {
			end = stop + lt
		}
		if end > stop {
			if s := textOrLossy(doc[stop:end]); s != "" {
				label = s
			}
		}
		cursor = max(start+1, stop)
	}
	return truncateLabel(label)
}

// inlineText strips tags, collapses whitespace and replaces non-ASCII
// bytes with '?'.
func inlineText(b []byte) string {
	var sb strings.Builder
	inTag, pendingSpace := false, false
	for _, c := range b {
		switch {
		case c == '<':
			inTag = true
			continue
		case c == '>':
			inTag, pendingSpace = false, true
			continue
		case inTag:
			continue
		case isASCIISpace(c):
			pendingSpace = true
			continue
		}
		if sb.Len() >= LabelBytes {
			break
		}
		if pendingSpace && sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		pendingSpace = false
		if c >= 0x80 {
			c = '?'
		}
		sb.WriteByte(c)
	}
	return truncateLabel(sb.String())
}

// fallbackLabel builds a label from the fragment, or from the file name
// without its extension, title-casing each word. It never returns "".
func fallbackLabel(path, fragment string) string {
	source := fragment
	if strings.TrimSpace(source) == "" {
		source = path[strings.LastIndexByte(path, '/')+1:]
	}
	if i := strings.LastIndexByte(source, '.'); i >= 0 {
		source = source[:i]
	}
	if label := titleWords(source); label != "" {
		return truncateLabel(label)
	}
	return "Chapter"
}

// titleWords turns "_", "-" and "." into word breaks, keeps ASCII letters
// and digits, and capitalizes the first letter of each word.
func titleWords(s string) string {
	var sb strings.Builder
	wordStart := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' || c == '-' || c == '.' || c == ' ' {
			if sb.Len() > 0 && !wordStart {
				sb.WriteByte(' ')
				wordStart = true
			}
			continue
		}
		switch {
		case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
			if wordStart {
				c = c &^ 0x20
			} else {
				c = lowerASCII(c)
			}
		case c >= '0' && c <= '9':
		default:
			continue
		}
		sb.WriteByte(c)
		wordStart = false
	}
	return strings.TrimRight(sb.String(), " ")
}

func truncateLabel(s string) string {
	if len(s) <= LabelBytes {
		return s
	}
	cut := LabelBytes
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}

var (
	nonChapterFragments = []string{"pgepubid", "toc", "contents", "footer", "license", "copyright"}
	nonChapterLabels    = []string{
		"title page", "contents", "table of", "copyright", "license",
		"gutenberg", "colophon", "about", "front matter",
	}
)

// IsProbableChapter reports whether a TOC target points at body text
// rather than front matter or a notice.
func IsProbableChapter(ct ChapterTarget) bool {
	if strings.TrimSpace(ct.Path) == "" || !IsTextResourceName(ct.Path) || IsFrontMatter(ct.Path) {
		return false
	}
	for _, kw := range nonChapterFragments {
		if containsFoldString(ct.Fragment, kw) {
			return false
		}
	}
	for _, kw := range nonChapterLabels {
		if containsFoldString(ct.Label, kw) {
			return false
		}
	}
	return true
}
