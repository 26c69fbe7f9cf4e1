package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/metcalfc/sdreader/internal/catalog"
)

const (
	SeekAttempts   = 3
	SeekRetryDelay = 24 * time.Millisecond

	// continueProbes bounds how many empty resources a continue request
	// skips before giving up.
	continueProbes = 4
)

// Sink is the catalog side of the refill protocol.
type Sink interface {
	SetEntries(entries []catalog.Entry) catalog.LoadResult
	TakeRefillRequest() (catalog.RefillRequest, bool)
	ApplyChunk(book int, chunk []byte, endOfStream bool, resourcePath string) (catalog.LoadResult, error)
	SetChapterMetadata(book, index, total int, label string) error
	MarkStreamExhausted(book int) error
	SeekChapter(i int) (bool, error)
}

var _ Sink = (*catalog.Catalog)(nil)

// BookStream is where the next chunk of a book comes from.
type BookStream struct {
	Name          string
	Resource      string
	NextOffset    int64
	EndOfResource bool
	Ready         bool

	requeued bool
}

// Refiller answers the catalog's refill requests with chunks read through a
// ChunkReader. It keeps one BookStream per catalog slot.
type Refiller struct {
	probe   ChunkReader
	logger  *slog.Logger
	streams []BookStream
	buf     []byte
}

// NewRefiller returns a refiller reading through probe. A nil logger means
// slog.Default().
func NewRefiller(probe ChunkReader, logger *slog.Logger) *Refiller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refiller{probe: probe, logger: logger, buf: make([]byte, ChunkBytes)}
}

// Stream returns the stream state of book.
func (r *Refiller) Stream(book int) (BookStream, bool) {
	if book < 0 || book >= len(r.streams) {
		return BookStream{}, false
	}
	return r.streams[book], true
}

// Prime loads books into sink and applies the first chunk of each. Books
// whose first chunk cannot be read stay in the catalog without text.
func (r *Refiller) Prime(sink Sink, books []Book) catalog.LoadResult {
	entries := make([]catalog.Entry, len(books))
	for i, b := range books {
		entries[i] = catalog.Entry{Title: b.Title, HasCover: b.HasCover}
	}
	loaded := sink.SetEntries(entries)

	r.streams = r.streams[:0]
	for i, b := range books {
		if i >= catalog.MaxTitles {
			break
		}
		st := BookStream{Name: b.Name, EndOfResource: true}
		log := r.logger.With("short_name", b.Name)

		res, err := r.probe.ReadFirst(b.Name, r.buf)
		switch {
		case err != nil:
			log.Warn("initial text chunk failed", "err", err)
		case res.Status != ReadOk:
			log.Info("initial text chunk skipped", "status", res.Status, "resource", res.Resource, "compression", res.Compression)
		default:
			applied, err := sink.ApplyChunk(i, r.buf[:res.BytesRead], res.EndOfResource, res.Resource)
			if err != nil {
				log.Warn("initial text chunk ignored", "err", err)
				break
			}
			setMetadata(log, sink, i, res)
			st.Resource = res.Resource
			st.NextOffset = res.StartOffset + int64(res.BytesRead)
			st.EndOfResource = res.EndOfResource
			st.Ready = st.Resource != ""
			log.Debug("initial text chunk",
				"resource", res.Resource, "chapter", res.ChapterIndex+1, "total", res.ChapterTotal,
				"label", res.ChapterLabel, "bytes_read", res.BytesRead, "end", res.EndOfResource,
				"loaded", applied.Loaded, "truncated", applied.Truncated)
		}
		r.streams = append(r.streams, st)
	}
	return loaded
}

// Service takes one refill request from sink and answers it. It reports
// whether there was a request. A book that cannot be refilled is marked
// exhausted, so the reader reaches its end instead of waiting forever.
func (r *Refiller) Service(ctx context.Context, sink Sink) bool {
	req, ok := sink.TakeRefillRequest()
	if !ok {
		return false
	}
	book := req.Book
	log := r.logger.With("book", book)

	if book < 0 || book >= len(r.streams) {
		log.Info("refill marking exhausted", "reason", "stream_state_missing")
		exhaust(log, sink, book)
		return true
	}
	st := &r.streams[book]
	log = log.With("short_name", st.Name)
	if !st.Ready && req.Chapter == nil {
		log.Info("refill marking exhausted", "reason", "stream_state_not_ready",
			"resource", st.Resource, "offset", st.NextOffset)
		exhaust(log, sink, book)
		return true
	}

	var (
		res   ChunkResult
		moved bool
	)
	if req.Chapter != nil {
		target := *req.Chapter
		var err error
		res, err = r.seek(ctx, log, st.Name, target)
		if err != nil {
			log.Info("refill seek failed", "chapter", target+1, "err", err)
			if !st.requeued {
				ok, err := sink.SeekChapter(target)
				if err != nil {
					log.Warn("refill seek requeue failed", "chapter", target+1, "err", err)
				}
				if ok {
					st.requeued = true
					log.Info("refill seek deferred", "chapter", target+1)
					return true
				}
			}
			exhaust(log, sink, book)
			return true
		}
		moved = true
	} else {
		var found bool
		res, moved, found = r.continueStream(log, st)
		if !found {
			exhaust(log, sink, book)
			return true
		}
	}

	if res.Status != ReadOk {
		st.EndOfResource = true
		log.Info("refill stopped", "status", res.Status, "resource", res.Resource)
		exhaust(log, sink, book)
		return true
	}

	applied, err := sink.ApplyChunk(book, r.buf[:res.BytesRead], res.EndOfResource, res.Resource)
	if err != nil {
		log.Info("refill apply failed", "resource", res.Resource, "err", err)
		return true
	}
	setMetadata(log, sink, book, res)

	previous := st.Resource
	if moved {
		st.NextOffset = res.StartOffset + int64(res.BytesRead)
	} else {
		st.NextOffset += int64(res.BytesRead)
	}
	st.EndOfResource = res.EndOfResource
	st.Resource = res.Resource
	st.Ready = st.Resource != ""
	st.requeued = false

	log.Debug("refill apply",
		"resource", st.Resource, "chapter", res.ChapterIndex+1, "total", res.ChapterTotal,
		"label", res.ChapterLabel, "bytes_read", res.BytesRead, "end", res.EndOfResource,
		"offset", st.NextOffset, "loaded", applied.Loaded, "truncated", applied.Truncated)
	if moved && previous != st.Resource {
		log.Debug("refill advanced resource", "from", previous, "to", st.Resource)
	}
	return true
}

// seek reads the first chunk of chapter, retrying I/O failures.
func (r *Refiller) seek(ctx context.Context, log *slog.Logger, name string, chapter int) (ChunkResult, error) {
	var err error
	for attempt := 1; attempt <= SeekAttempts; attempt++ {
		var res ChunkResult
		if res, err = r.probe.ReadAtChapter(name, chapter, r.buf); err == nil {
			return res, nil
		}
		if attempt < SeekAttempts {
			log.Info("refill seek retry", "chapter", chapter+1, "attempt", attempt, "err", err)
			if werr := sleep(ctx, SeekRetryDelay); werr != nil {
				return ChunkResult{}, werr
			}
		}
	}
	return ChunkResult{}, err
}

// continueStream reads the chunk after the last one applied, moving to the
// next resource at the end of the current one and skipping empty
// resources. found is false when nothing usable was read.
func (r *Refiller) continueStream(log *slog.Logger, st *BookStream) (res ChunkResult, moved, found bool) {
	moved = st.EndOfResource
	current := st.Resource
	for range continueProbes {
		var err error
		if moved {
			res, err = r.probe.ReadNext(st.Name, current, r.buf)
		} else {
			res, err = r.probe.ReadFromResource(st.Name, current, st.NextOffset, r.buf)
		}
		if err != nil {
			log.Info("refill failed", "resource", current, "offset", st.NextOffset, "err", err)
			return res, moved, false
		}
		if res.Status == ReadOk && res.BytesRead == 0 && res.EndOfResource {
			log.Info("refill empty resource", "resource", res.Resource)
			moved = true
			current = res.Resource
			continue
		}
		return res, moved, true
	}
	log.Info("refill stopped", "reason", "no_next_resource_after_empty")
	return res, moved, false
}

func exhaust(log *slog.Logger, sink Sink, book int) {
	if err := sink.MarkStreamExhausted(book); err != nil {
		log.Warn("mark stream exhausted", "err", err)
	}
}

func setMetadata(log *slog.Logger, sink Sink, book int, res ChunkResult) {
	if err := sink.SetChapterMetadata(book, res.ChapterIndex, res.ChapterTotal, res.ChapterLabel); err != nil {
		log.Warn("chapter metadata", "chapter", res.ChapterIndex+1, "err", err)
	}
}
