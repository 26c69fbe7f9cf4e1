package epub

// ManifestItem is one <item> of the package manifest.
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties string
}

// Manifest looks items up by id. Lookups start where the previous hit
// ended, so walking the spine in order scans the manifest about once.
type Manifest struct {
	opf  []byte
	hint int
}

// ItemByID returns the item whose id equals id, ignoring ASCII case. The
// search starts at the last hit and wraps around to the beginning once.
func (m *Manifest) ItemByID(id string) (ManifestItem, bool) {
	hint := min(m.hint, len(m.opf))
	if item, next, ok := m.itemInRange(id, hint, len(m.opf)); ok {
		m.hint = next
		return item, true
	}
	if hint > 0 {
		if item, next, ok := m.itemInRange(id, 0, hint); ok {
			m.hint = next
			return item, true
		}
	}
	return ManifestItem{}, false
}

func (m *Manifest) itemInRange(id string, from, end int) (ManifestItem, int, bool) {
	want := []byte(id)
	for cursor := from; ; {
		start, stop, ok := FindElement(m.opf, "item", cursor, end)
		if !ok {
			return ManifestItem{}, 0, false
		}
		cursor = stop
		tag := m.opf[start:stop]
		itemID, ok := AttrValue(tag, "id")
		if !ok || !equalFoldASCII(itemID, want) {
			continue
		}
		item, ok := parseItem(tag)
		if !ok {
			return ManifestItem{}, 0, false
		}
		return item, stop, true
	}
}

// Items calls fn with every manifest item that has an href, in document
// order, until fn returns false.
func (m *Manifest) Items(fn func(ManifestItem) bool) {
	eachElement(m.opf, "item", func(tag []byte, _, _ int) bool {
		item, ok := parseItem(tag)
		if !ok {
			return true
		}
		return fn(item)
	})
}

func parseItem(tag []byte) (ManifestItem, bool) {
	href, ok := attrString(tag, "href")
	if !ok {
		return ManifestItem{}, false
	}
	item := ManifestItem{Href: href}
	item.ID, _ = attrString(tag, "id")
	item.MediaType, _ = attrString(tag, "media-type")
	item.Properties, _ = attrString(tag, "properties")
	return item, true
}
