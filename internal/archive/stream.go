package archive

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

const (
	deflateInBytes  = 320
	deflateOutBytes = 320
)

// Streamer decodes deflated entries and remembers where it stopped, so a
// read of the same entry at the offset it reached continues without
// decoding the entry again from its first byte.
//
// A Streamer is not tied to a file handle: every read rebinds it to the
// Reader it is called through. It must not be used by two goroutines.
type Streamer struct {
	src      source
	buf      *bufio.Reader
	fr       io.ReadCloser
	key      streamKey
	active   bool
	done     bool
	produced int64
}

type streamKey struct {
	name   string
	offset uint32
}

// NewStreamer returns an idle Streamer.
func NewStreamer() *Streamer {
	return &Streamer{}
}

// Offset reports how many decoded bytes of the current entry have been
// produced so far.
func (s *Streamer) Offset() int64 { return s.produced }

func (s *Streamer) read(a *Reader, e Entry, offset int64, out []byte) (int, bool, error) {
	size := int64(e.UncompressedSize)
	key := streamKey{name: e.Name, offset: e.LocalHeaderOffset}
	s.src.r = a.r

	if !s.active || s.key != key || offset < s.produced {
		if err := s.restart(a, e, key); err != nil {
			return 0, false, err
		}
	}

	var scratch [deflateOutBytes]byte
	for s.produced < offset && !s.done {
		want := min(int64(len(scratch)), offset-s.produced)
		if _, err := s.decode(scratch[:want]); err != nil {
			return 0, false, err
		}
	}
	if s.produced < offset {
		return 0, true, nil
	}

	n := 0
	for n < len(out) && !s.done {
		m, err := s.decode(out[n:])
		n += m
		if err != nil {
			return n, false, err
		}
	}
	return n, s.done || s.produced >= size, nil
}

func (s *Streamer) restart(a *Reader, e Entry, key streamKey) error {
	s.active = false
	start, err := a.dataOffset(e)
	if err != nil {
		return err
	}

	s.src = source{r: a.r, pos: start, end: start + int64(e.CompressedSize)}
	if s.buf == nil {
		s.buf = bufio.NewReaderSize(&s.src, deflateInBytes)
	} else {
		s.buf.Reset(&s.src)
	}
	if s.fr == nil {
		s.fr = flate.NewReader(s.buf)
	} else if err := s.fr.(flate.Resetter).Reset(s.buf, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	s.key = key
	s.active = true
	s.done = false
	s.produced = 0
	return nil
}

// decode pulls decoded bytes into p, retrying empty reads a bounded number
// of times.
func (s *Streamer) decode(p []byte) (int, error) {
	for stalls := 0; ; stalls++ {
		n, err := s.fr.Read(p)
		s.produced += int64(n)
		switch {
		case err == io.EOF:
			s.done = true
			return n, nil
		case errors.Is(err, ErrIoStalled):
			s.active = false
			return n, err
		case err != nil:
			s.active = false
			return n, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
		}
		if n > 0 {
			return n, nil
		}
		if stalls >= maxNoProgress {
			s.active = false
			return 0, ErrIoStalled
		}
	}
}

// source exposes the compressed bytes of one entry as an io.Reader over
// whichever handle the Streamer is currently bound to.
type source struct {
	r      io.ReaderAt
	pos    int64
	end    int64
	stalls int
}

func (c *source) Read(p []byte) (int, error) {
	if c.pos >= c.end {
		return 0, io.EOF
	}
	if rem := c.end - c.pos; int64(len(p)) > rem {
		p = p[:rem]
	}

	n, err := c.r.ReadAt(p, c.pos)
	c.pos += int64(n)
	if n > 0 {
		c.stalls = 0
		if err == io.EOF {
			err = nil
		}
		return n, err
	}
	if err == io.EOF {
		return 0, io.ErrUnexpectedEOF
	}
	if err != nil {
		return 0, err
	}
	c.stalls++
	if c.stalls > maxNoProgress {
		return 0, ErrIoStalled
	}
	return 0, nil
}
