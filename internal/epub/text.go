package epub

import (
	"strings"

	"github.com/metcalfc/sdreader/internal/archive"
)

// MinPrimaryTextBytes is the uncompressed size from which a text resource
// is taken to hold real body text rather than a stub page.
const MinPrimaryTextBytes = 900

// walkTextEntries calls fn for each member whose name looks like a text
// document, in archive order.
func (b *Book) walkTextEntries(fn func(archive.Entry) bool) error {
	return b.a.Walk(func(e archive.Entry) bool {
		if !IsTextResourceName(e.Name) {
			return true
		}
		return fn(e)
	})
}

// candidates keeps the first entry seen for each preference level.
type candidates struct {
	entries [3]archive.Entry
	set     [3]bool
}

func (c *candidates) offer(level int, e archive.Entry) {
	if !c.set[level] {
		c.entries[level], c.set[level] = e, true
	}
}

func (c *candidates) best() (archive.Entry, bool) {
	for i, ok := range c.set {
		if ok {
			return c.entries[i], true
		}
	}
	return archive.Entry{}, false
}

// FirstTextEntry picks the resource reading starts from: the first spine
// document if it is large enough, else the first sizeable body document in
// archive order, else the best smaller candidate.
func (b *Book) FirstTextEntry() (archive.Entry, bool, error) {
	var spine archive.Entry
	haveSpine := false
	if path, ok := b.spineFirstText(); ok {
		e, found, err := b.a.EntryByPath(path)
		if err != nil {
			return archive.Entry{}, false, err
		}
		if found && e.UncompressedSize >= MinPrimaryTextBytes {
			return e, true, nil
		}
		spine, haveSpine = e, found
	}

	const (
		preferred = iota
		body
		front
	)
	var c candidates
	err := b.walkTextEntries(func(e archive.Entry) bool {
		if IsFrontMatter(e.Name) {
			c.offer(front, e)
			return true
		}
		c.offer(body, e)
		if e.UncompressedSize >= MinPrimaryTextBytes {
			c.offer(preferred, e)
		}
		return true
	})
	if err != nil {
		return archive.Entry{}, false, err
	}

	if c.set[preferred] {
		return c.entries[preferred], true, nil
	}
	if haveSpine {
		return spine, true, nil
	}
	e, ok := c.best()
	return e, ok, nil
}

// NextTextEntry returns the resource that follows current in reading
// order. With no spine successor it takes the next text member of the
// archive, preferring sizeable body documents.
func (b *Book) NextTextEntry(current string) (archive.Entry, bool, error) {
	if current == "" {
		return b.FirstTextEntry()
	}
	if path, ok := b.spineNextText(current); ok {
		e, found, err := b.a.EntryByPath(path)
		if err != nil || found {
			return e, found, err
		}
	}

	const (
		preferred = iota
		body
		anyText
	)
	var c candidates
	seen := false
	err := b.a.Walk(func(e archive.Entry) bool {
		if !seen {
			seen = strings.EqualFold(e.Name, current)
			return true
		}
		if !IsTextResourceName(e.Name) {
			return true
		}
		c.offer(anyText, e)
		if !IsFrontMatter(e.Name) {
			c.offer(body, e)
			if e.UncompressedSize >= MinPrimaryTextBytes {
				c.offer(preferred, e)
			}
		}
		return true
	})
	if err != nil {
		return archive.Entry{}, false, err
	}
	e, ok := c.best()
	return e, ok, nil
}

// Resource returns the member at path.
func (b *Book) Resource(path string) (archive.Entry, bool, error) {
	return b.a.EntryByPath(path)
}
