package epub

import (
	"strings"

	"github.com/metcalfc/sdreader/internal/archive"
)

// Position is where a resource sits among a book's chapters. Label is set
// only when the answer came from the table of contents.
type Position struct {
	Index int
	Total int
	Label string
}

// ChapterEntry is the resource that starts a chapter.
type ChapterEntry struct {
	Entry       archive.Entry
	Path        string
	Index       int
	Total       int
	Label       string
	StartOffset int64
}

// positionSources are consulted in order, each a weaker source of truth
// than the one before.
var positionSources = []func(b *Book, path string) (Position, bool, error){
	(*Book).tocPosition,
	(*Book).spinePositionSource,
	(*Book).archivePosition,
}

// PositionForResource maps a resource path to its chapter index and the
// chapter count of the source that knew about it.
func (b *Book) PositionForResource(path string) (Position, bool, error) {
	if path == "" {
		return Position{}, false, nil
	}
	for _, source := range positionSources {
		pos, ok, err := source(b, path)
		if err != nil || ok {
			return pos, ok, err
		}
	}
	return Position{}, false, nil
}

func (b *Book) tocPosition(path string) (Position, bool, error) {
	toc, ok, err := b.ReadTOC()
	if err != nil || !ok {
		return Position{}, false, err
	}
	pos := Position{}
	found := false
	toc.WalkChapters(func(ct ChapterTarget) bool {
		if !found && strings.EqualFold(ct.Path, path) {
			pos.Index, pos.Label, found = ct.Ordinal, ct.Label, true
		}
		pos.Total++
		return true
	})
	pos.Total = max(pos.Total, 1)
	return pos, found, nil
}

func (b *Book) spinePositionSource(path string) (Position, bool, error) {
	index, total, ok := b.spinePosition(path)
	return Position{Index: index, Total: total}, ok, nil
}

func (b *Book) archivePosition(path string) (Position, bool, error) {
	for _, skip := range []bool{true, false} {
		var pos Position
		found := false
		err := b.walkTextEntries(func(e archive.Entry) bool {
			if skip && IsFrontMatter(e.Name) {
				return true
			}
			if strings.EqualFold(e.Name, path) {
				pos.Index, found = pos.Total, true
			}
			pos.Total++
			return true
		})
		if err != nil {
			return Position{}, false, err
		}
		if found {
			pos.Total = max(pos.Total, 1)
			return pos, true, nil
		}
	}
	return Position{}, false, nil
}

// entrySources select the i-th chapter, in the same order as
// positionSources.
var entrySources = []func(b *Book, i int) (ChapterEntry, bool, error){
	(*Book).tocEntryAt,
	(*Book).spineEntrySource,
	(*Book).archiveEntryAt,
}

// EntryAtIndex returns the resource that starts chapter i. An index past
// the end selects the last chapter.
func (b *Book) EntryAtIndex(i int) (ChapterEntry, bool, error) {
	for _, source := range entrySources {
		ce, ok, err := source(b, i)
		if err != nil || ok {
			return ce, ok, err
		}
	}
	return ChapterEntry{}, false, nil
}

func (b *Book) tocEntryAt(i int) (ChapterEntry, bool, error) {
	toc, ok, err := b.ReadTOC()
	if err != nil || !ok {
		return ChapterEntry{}, false, err
	}
	var chosen ChapterTarget
	total := 0
	found := false
	toc.WalkChapters(func(ct ChapterTarget) bool {
		if !found {
			chosen = ct
			found = ct.Ordinal == i
		}
		total++
		return true
	})
	if total == 0 {
		return ChapterEntry{}, false, nil
	}

	e, ok, err := b.a.EntryByPath(chosen.Path)
	if err != nil || !ok {
		return ChapterEntry{}, false, err
	}
	start, err := b.FragmentOffset(e, chosen.Fragment)
	if err != nil {
		return ChapterEntry{}, false, err
	}
	return ChapterEntry{
		Entry:       e,
		Path:        chosen.Path,
		Index:       chosen.Ordinal,
		Total:       total,
		Label:       chosen.Label,
		StartOffset: start,
	}, true, nil
}

func (b *Book) spineEntrySource(i int) (ChapterEntry, bool, error) {
	path, index, total, ok := b.spineEntryAt(i)
	if !ok {
		return ChapterEntry{}, false, nil
	}
	e, found, err := b.a.EntryByPath(path)
	if err != nil || !found {
		return ChapterEntry{}, false, err
	}
	return ChapterEntry{Entry: e, Path: path, Index: index, Total: max(total, 1)}, true, nil
}

func (b *Book) archiveEntryAt(i int) (ChapterEntry, bool, error) {
	for _, skip := range []bool{true, false} {
		var ce ChapterEntry
		found := false
		err := b.walkTextEntries(func(e archive.Entry) bool {
			if skip && IsFrontMatter(e.Name) {
				return true
			}
			if !found {
				ce.Entry, ce.Path, ce.Index = e, e.Name, ce.Total
				found = ce.Total == i
			}
			ce.Total++
			return true
		})
		if err != nil {
			return ChapterEntry{}, false, err
		}
		if ce.Total > 0 {
			return ce, true, nil
		}
	}
	return ChapterEntry{}, false, nil
}
