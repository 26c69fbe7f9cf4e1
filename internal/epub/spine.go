package epub

import (
	"strings"
)

// SpineItem is a readable entry of the spine with its manifest item and
// resolved archive path.
type SpineItem struct {
	IDRef string
	Item  ManifestItem
	Path  string
}

// WalkSpine calls fn for each linear text itemref in reading order until fn
// returns false. Navigation documents are never visited. With
// skipFrontMatter set, items whose idref, href or path look like front
// matter are skipped too.
func (b *Book) WalkSpine(skipFrontMatter bool, fn func(SpineItem) bool) {
	m := b.Manifest()
	eachElement(b.opf, "itemref", func(tag []byte, _, _ int) bool {
		idref, ok := attrString(tag, "idref")
		if !ok {
			return true
		}
		if linear, ok := AttrValue(tag, "linear"); ok && strings.EqualFold(strings.TrimSpace(string(linear)), "no") {
			return true
		}
		item, ok := m.ItemByID(idref)
		if !ok || !IsTextMediaType(item.MediaType) || containsFoldString(item.Properties, "nav") {
			return true
		}
		path, ok := ResolveHref(b.opfPath, item.Href)
		if !ok {
			return true
		}
		if skipFrontMatter && (IsFrontMatter(idref) || IsFrontMatter(item.Href) || IsFrontMatter(path)) {
			return true
		}
		return fn(SpineItem{IDRef: idref, Item: item, Path: path})
	})
}

// spineFirstText returns the first spine document that is not front
// matter.
func (b *Book) spineFirstText() (string, bool) {
	var first string
	b.WalkSpine(true, func(it SpineItem) bool {
		first = it.Path
		return false
	})
	return first, first != ""
}

// spineNextText returns the spine document after current.
func (b *Book) spineNextText(current string) (string, bool) {
	if current == "" {
		return "", false
	}
	var next string
	seen := false
	b.WalkSpine(false, func(it SpineItem) bool {
		if !seen {
			seen = strings.EqualFold(it.Path, current)
			return true
		}
		next = it.Path
		return false
	})
	return next, next != ""
}

// spineEntryAt returns the path of spine document i, or of the last one
// when i is out of range. Front matter is skipped unless nothing else is
// left.
func (b *Book) spineEntryAt(i int) (path string, index, total int, ok bool) {
	for _, skip := range []bool{true, false} {
		total = 0
		path, index = "", 0
		found := false
		b.WalkSpine(skip, func(it SpineItem) bool {
			if !found {
				path, index = it.Path, total
				found = total == i
			}
			total++
			return true
		})
		if total > 0 {
			return path, index, total, true
		}
	}
	return "", 0, 0, false
}

// spinePosition returns where path sits in the spine. The last matching
// itemref wins.
func (b *Book) spinePosition(path string) (index, total int, ok bool) {
	if path == "" {
		return 0, 0, false
	}
	for _, skip := range []bool{true, false} {
		index, total, ok = 0, 0, false
		b.WalkSpine(skip, func(it SpineItem) bool {
			if strings.EqualFold(it.Path, path) {
				index, ok = total, true
			}
			total++
			return true
		})
		if ok {
			return index, max(total, 1), true
		}
	}
	return 0, 0, false
}
