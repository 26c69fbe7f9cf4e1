// Package archive reads ZIP central directories and streams entry bytes
// straight from an io.ReaderAt without loading the archive into memory.
package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

const (
	eocdMinBytes     = 22
	eocdSearchWindow = 2048
	cdirHeaderBytes  = 46
	localHeaderBytes = 30

	// MaxNameBytes is the longest entry name the index will match against.
	MaxNameBytes = 384
	// MaxEntries bounds how many central directory records are visited.
	MaxEntries = 512

	// maxNoProgress is how many consecutive empty reads are tolerated
	// before a read is reported as stalled.
	maxNoProgress = 8
)

// Compression methods understood by ReadEntry.
const (
	Store   uint16 = 0
	Deflate uint16 = 8
)

var (
	sigEOCD    = []byte{'P', 'K', 0x05, 0x06}
	sigCDIR    = []byte{'P', 'K', 0x01, 0x02}
	sigLocal   = []byte{'P', 'K', 0x03, 0x04}
	sigSpanned = []byte{'P', 'K', 0x07, 0x08}
)

// Entry locates one archive member. It is a plain value and never holds
// decoded bytes.
type Entry struct {
	Name              string
	Compression       uint16
	CompressedSize    uint32
	UncompressedSize  uint32
	LocalHeaderOffset uint32
}

// IsDir reports whether the entry names a directory.
func (e Entry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

// Reader is an opened archive. It keeps only the location of the central
// directory; entries are re-read on every lookup.
type Reader struct {
	r          io.ReaderAt
	size       int64
	cdirOffset uint32
	entries    uint16
	stream     *Streamer
}

// HasSignature reports whether header starts with one of the signatures a
// ZIP file may begin with.
func HasSignature(header []byte) bool {
	if len(header) < 4 {
		return false
	}
	h := header[:4]
	return bytes.Equal(h, sigLocal) || bytes.Equal(h, sigEOCD) || bytes.Equal(h, sigSpanned)
}

// Open validates the signature and locates the central directory of the
// archive held by r. Deflated entries are decoded through s, which may be
// shared across successive Opens of the same file so that sequential reads
// resume where the previous one stopped. A nil s gets a private Streamer.
func Open(r io.ReaderAt, size int64, s *Streamer) (*Reader, error) {
	var head [4]byte
	n, err := readFull(r, 0, head[:])
	if err != nil {
		return nil, err
	}
	if !HasSignature(head[:n]) {
		return nil, ErrNotAnArchive
	}

	off, err := FindEndOfCentralDirectory(r, size)
	if err != nil {
		return nil, err
	}

	var eocd [eocdMinBytes]byte
	n, err = readFull(r, off, eocd[:])
	if err != nil {
		return nil, err
	}
	if n < eocdMinBytes {
		return nil, ErrNotAnArchive
	}

	cdirOffset := binary.LittleEndian.Uint32(eocd[16:])
	if int64(cdirOffset) >= size {
		return nil, fmt.Errorf("%w: central directory offset %d beyond size %d", ErrNotAnArchive, cdirOffset, size)
	}

	if s == nil {
		s = NewStreamer()
	}
	return &Reader{
		r:          r,
		size:       size,
		cdirOffset: cdirOffset,
		entries:    binary.LittleEndian.Uint16(eocd[10:]),
		stream:     s,
	}, nil
}

// FindEndOfCentralDirectory scans the tail of the archive backward for the
// end-of-central-directory signature and returns its absolute offset.
func FindEndOfCentralDirectory(r io.ReaderAt, size int64) (int64, error) {
	window := min(size, eocdSearchWindow)
	if window < eocdMinBytes {
		return 0, ErrNotAnArchive
	}

	buf := make([]byte, window)
	base := size - window
	n, err := readFull(r, base, buf)
	if err != nil {
		return 0, err
	}
	buf = buf[:n]

	for i := len(buf) - eocdMinBytes; i >= 0; i-- {
		if bytes.Equal(buf[i:i+4], sigEOCD) {
			return base + int64(i), nil
		}
	}
	return 0, ErrNotAnArchive
}

// Size returns the archive size in bytes.
func (a *Reader) Size() int64 { return a.size }

// EntryCount returns the entry count declared by the end-of-central-directory record.
func (a *Reader) EntryCount() int { return int(a.entries) }

// Walk calls fn for each central directory entry in archive order until fn
// returns false. Entries whose names exceed MaxNameBytes are skipped. A
// malformed record ends the walk without an error.
func (a *Reader) Walk(fn func(Entry) bool) error {
	var hdr [cdirHeaderBytes]byte
	name := make([]byte, MaxNameBytes)
	cursor := int64(a.cdirOffset)

	for range min(int(a.entries), MaxEntries) {
		n, err := readFull(a.r, cursor, hdr[:])
		if err != nil {
			return err
		}
		if n < cdirHeaderBytes || !bytes.Equal(hdr[:4], sigCDIR) {
			return nil
		}

		nameLen := int(binary.LittleEndian.Uint16(hdr[28:]))
		extraLen := int(binary.LittleEndian.Uint16(hdr[30:]))
		commentLen := int(binary.LittleEndian.Uint16(hdr[32:]))
		next := cursor + cdirHeaderBytes + int64(nameLen+extraLen+commentLen)

		if nameLen == 0 || nameLen > MaxNameBytes {
			cursor = next
			continue
		}

		n, err = readFull(a.r, cursor+cdirHeaderBytes, name[:nameLen])
		if err != nil {
			return err
		}
		if n < nameLen {
			return nil
		}

		e := Entry{
			Name:              string(name[:nameLen]),
			Compression:       binary.LittleEndian.Uint16(hdr[10:]),
			CompressedSize:    binary.LittleEndian.Uint32(hdr[20:]),
			UncompressedSize:  binary.LittleEndian.Uint32(hdr[24:]),
			LocalHeaderOffset: binary.LittleEndian.Uint32(hdr[42:]),
		}
		if !fn(e) {
			return nil
		}
		cursor = next
	}
	return nil
}

// EntryByPath returns the first entry whose name equals path, ignoring case.
func (a *Reader) EntryByPath(path string) (Entry, bool, error) {
	var found Entry
	ok := false
	err := a.Walk(func(e Entry) bool {
		if strings.EqualFold(e.Name, path) {
			found, ok = e, true
			return false
		}
		return true
	})
	return found, ok, err
}

// FirstWithSuffix returns the first entry whose name ends with suffix,
// ignoring case.
func (a *Reader) FirstWithSuffix(suffix string) (Entry, bool, error) {
	var found Entry
	ok := false
	suffix = strings.ToLower(suffix)
	err := a.Walk(func(e Entry) bool {
		if strings.HasSuffix(strings.ToLower(e.Name), suffix) {
			found, ok = e, true
			return false
		}
		return true
	})
	return found, ok, err
}

// ReadEntry copies decoded bytes of e starting at offset into out. It
// reports how many bytes were written and whether the end of the entry was
// reached.
func (a *Reader) ReadEntry(e Entry, offset int64, out []byte) (int, bool, error) {
	switch e.Compression {
	case Store:
		return a.readStored(e, offset, out)
	case Deflate:
		return a.stream.read(a, e, offset, out)
	default:
		return 0, false, fmt.Errorf("%w: method %d in %s", ErrUnsupportedCompression, e.Compression, e.Name)
	}
}

// ReadPrefix fills out with the first bytes of e. Deflated entries are
// decoded with a throwaway decoder so the resumable state is left alone.
func (a *Reader) ReadPrefix(e Entry, out []byte) (int, error) {
	switch e.Compression {
	case Store:
		n, _, err := a.readStored(e, 0, out)
		return n, err
	case Deflate:
		n, _, err := NewStreamer().read(a, e, 0, out)
		return n, err
	default:
		return 0, fmt.Errorf("%w: method %d in %s", ErrUnsupportedCompression, e.Compression, e.Name)
	}
}

// EntryReader returns a sequential reader over the decoded bytes of e. It
// decodes with its own Streamer and leaves the one used by ReadEntry alone.
func (a *Reader) EntryReader(e Entry) io.Reader {
	return &entryReader{a: a, e: e, s: NewStreamer()}
}

type entryReader struct {
	a    *Reader
	e    Entry
	s    *Streamer
	off  int64
	done bool
}

func (r *entryReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	var (
		n   int
		end bool
		err error
	)
	switch r.e.Compression {
	case Store:
		n, end, err = r.a.readStored(r.e, r.off, p)
	case Deflate:
		n, end, err = r.s.read(r.a, r.e, r.off, p)
	default:
		return 0, fmt.Errorf("%w: method %d in %s", ErrUnsupportedCompression, r.e.Compression, r.e.Name)
	}
	r.off += int64(n)
	r.done = end
	if err != nil {
		return n, err
	}
	if n == 0 && !end {
		return 0, io.ErrUnexpectedEOF
	}
	return n, nil
}

func (a *Reader) readStored(e Entry, offset int64, out []byte) (int, bool, error) {
	size := int64(e.UncompressedSize)
	if offset >= size {
		return 0, true, nil
	}
	start, err := a.dataOffset(e)
	if err != nil {
		return 0, false, err
	}

	want := min(int64(len(out)), size-offset)
	n, err := readFull(a.r, start+offset, out[:want])
	if err != nil {
		return n, false, err
	}
	return n, offset+int64(n) >= size, nil
}

// dataOffset returns where the member's data begins, after its local header.
func (a *Reader) dataOffset(e Entry) (int64, error) {
	var local [localHeaderBytes]byte
	n, err := readFull(a.r, int64(e.LocalHeaderOffset), local[:])
	if err != nil {
		return 0, err
	}
	if n < localHeaderBytes || !bytes.Equal(local[:4], sigLocal) {
		return 0, fmt.Errorf("%w: bad local header for %s", ErrDecodeFailed, e.Name)
	}
	nameLen := int64(binary.LittleEndian.Uint16(local[26:]))
	extraLen := int64(binary.LittleEndian.Uint16(local[28:]))
	return int64(e.LocalHeaderOffset) + localHeaderBytes + nameLen + extraLen, nil
}

// readFull reads len(buf) bytes at off, stopping early only at end of file.
// Repeated empty reads fail with ErrIoStalled.
func readFull(r io.ReaderAt, off int64, buf []byte) (int, error) {
	total, stalls := 0, 0
	for total < len(buf) {
		n, err := r.ReadAt(buf[total:], off+int64(total))
		total += n
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			stalls++
			if stalls > maxNoProgress {
				return total, ErrIoStalled
			}
			continue
		}
		stalls = 0
	}
	return total, nil
}
