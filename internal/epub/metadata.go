package epub

import (
	"strings"
)

// Metadata is what the package document says about the book as a whole.
type Metadata struct {
	Title    string
	HasCover bool
	// CoverPath is the resolved cover image, when the manifest names one.
	CoverPath string
}

// titleSources are tried in order until one yields a non-empty title.
var titleSources = []func(opf []byte) (string, bool){
	func(opf []byte) (string, bool) { return elementText(opf, "<dc:title") },
	func(opf []byte) (string, bool) { return elementText(opf, "<title") },
	func(opf []byte) (string, bool) { return metaTitle(opf, "property") },
	func(opf []byte) (string, bool) { return metaTitle(opf, "name") },
}

// Metadata reads the title and cover hints from the package document.
func (b *Book) Metadata() Metadata {
	var md Metadata
	for _, source := range titleSources {
		if t, ok := source(b.opf); ok {
			md.Title = t
			break
		}
	}
	md.CoverPath, md.HasCover = b.CoverResource()
	if !md.HasCover {
		md.HasCover = containsFold(b.opf, "cover-image") ||
			containsFold(b.opf, `name="cover"`) ||
			containsFold(b.opf, `name='cover'`)
	}
	return md
}

// metaTitle returns the content of the first <meta> whose attr value
// mentions "title".
func metaTitle(opf []byte, attr string) (string, bool) {
	var title string
	eachElement(opf, "meta", func(tag []byte, _, _ int) bool {
		name, ok := AttrValue(tag, attr)
		if !ok || !containsFold(name, "title") {
			return true
		}
		content, ok := AttrValue(tag, "content")
		if !ok {
			return true
		}
		title = textOrLossy(content)
		return title == ""
	})
	return title, title != ""
}

// coverMatchers select a cover image among the manifest's images, most
// specific first.
var coverMatchers = []func(ManifestItem) bool{
	func(it ManifestItem) bool { return containsFoldString(it.Properties, "cover-image") },
	func(it ManifestItem) bool { return containsFoldString(it.ID, "cover") },
	func(it ManifestItem) bool { return containsFoldString(it.Href, "cover") },
	func(ManifestItem) bool { return true },
}

// CoverResource returns the archive path of the cover image. The
// <meta name="cover"> reference wins over manifest heuristics.
func (b *Book) CoverResource() (string, bool) {
	if id, ok := metaCoverID(b.opf); ok {
		if item, ok := b.Manifest().ItemByID(id); ok {
			if path, ok := ResolveHref(b.opfPath, item.Href); ok {
				return path, true
			}
		}
	}
	for _, match := range coverMatchers {
		var path string
		b.Manifest().Items(func(it ManifestItem) bool {
			if !isImageItem(it) || !match(it) {
				return true
			}
			p, ok := ResolveHref(b.opfPath, it.Href)
			if !ok {
				return true
			}
			path = p
			return false
		})
		if path != "" {
			return path, true
		}
	}
	return "", false
}

func metaCoverID(opf []byte) (string, bool) {
	var id string
	eachElement(opf, "meta", func(tag []byte, _, _ int) bool {
		name, ok := AttrValue(tag, "name")
		if !ok || !strings.EqualFold(strings.TrimSpace(string(name)), "cover") {
			return true
		}
		if content, ok := AttrValue(tag, "content"); ok {
			id = textOrLossy(content)
		}
		return id == ""
	})
	return id, id != ""
}

var (
	imageExtensions = []string{
		".pbm", ".png", ".jpg", ".jpeg", ".jpe", ".jfif", ".gif", ".webp", ".svg", ".bmp", ".tif", ".tiff",
	}
	imagePathHints = []string{
		"/images/", "/image/", "/img/", "illustration", "artwork",
		"cover", "portada", "front", "titlepage", "jacket",
	}
)

// isImageItem reports whether a manifest item is an image, by media type
// or by the look of its href.
func isImageItem(it ManifestItem) bool {
	if containsFoldString(it.MediaType, "image/") {
		return true
	}
	href := it.Href
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	for _, ext := range imageExtensions {
		if hasSuffixFold(href, ext) {
			return true
		}
	}
	for _, hint := range imagePathHints {
		if containsFoldString(href, hint) {
			return true
		}
	}
	return false
}
