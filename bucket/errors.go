package bucket

import (
	"errors"

	"github.com/docstream/gridbucket/store"
)

var (
	// ErrNotFound is returned when a name or identifier has no live
	// record. It is the same value the store package uses, re-exported
	// so most callers only need this package.
	ErrNotFound = store.ErrNotFound

	// ErrNotText is returned by the string read operations when the
	// stored bytes are not valid UTF-8.
	ErrNotText = errors.New("bucket: content is not valid UTF-8 text")

	// ErrCorrupt is returned when the stored chunks for an object cannot
	// reconstruct its content: a chunk is missing, out of sequence, fails
	// its checksum, or the total length disagrees with the record. Use
	// errors.Is to test for it.
	ErrCorrupt = errors.New("bucket: corrupt chunk stream")

	// ErrClosed is returned when using a Writer after Close or Abort.
	ErrClosed = errors.New("bucket: write stream is closed")
)
