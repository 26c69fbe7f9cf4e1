package archive

import "errors"

// Sentinel errors returned by the archive package.
var (
	// ErrNotAnArchive indicates the file has no ZIP signature or no usable
	// end-of-central-directory record.
	ErrNotAnArchive = errors.New("archive: not a zip archive")

	// ErrUnsupportedCompression indicates an entry uses a method other than
	// store or deflate.
	ErrUnsupportedCompression = errors.New("archive: unsupported compression method")

	// ErrIoStalled indicates the underlying device kept returning no data.
	ErrIoStalled = errors.New("archive: read made no progress")

	// ErrDecodeFailed indicates an entry's local header or compressed
	// stream could not be decoded.
	ErrDecodeFailed = errors.New("archive: entry decode failed")
)
