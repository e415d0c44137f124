package bucket

import (
	"context"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"

	"github.com/docstream/gridbucket/store"
)

// A Reader streams the content of one stored object. Chunks are pulled from
// the store lazily as the caller reads, so an object never needs to fit in
// memory. A Reader checks the reconstruction invariant as it goes: chunk
// numbers must ascend with no gaps, each chunk must match its stored
// checksum, interior chunks must be exactly the record's chunk size, and the
// total byte count must equal the record's length. Any violation surfaces as
// an error wrapping ErrCorrupt.
//
// A Reader is not restartable; to read the object again open a new one. It
// is not safe for concurrent use.
type Reader struct {
	ctx  context.Context
	doc  store.FileDoc
	cur  store.ChunkCursor
	buf  []byte // unread remainder of the current chunk
	next int32  // chunk number we expect to see next
	got  int64  // content bytes consumed from the cursor so far
	err  error  // sticky
	done bool   // saw a clean end of stream
}

// Stat returns the metadata record of the object being read.
func (r *Reader) Stat() store.FileDoc { return r.doc }

func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	for len(r.buf) == 0 {
		if r.done {
			return 0, r.err
		}
		if err := r.advance(); err != nil {
			r.err = err
			return 0, err
		}
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// advance loads the next chunk into r.buf, or marks the stream finished.
func (r *Reader) advance() error {
	if r.got == r.doc.Length {
		// we have every byte the record promised. make sure the store
		// does not hold extra chunks beyond that.
		if r.cur.Next(r.ctx) {
			return fmt.Errorf("%w: %s: data beyond %d bytes", ErrCorrupt, r.doc.ID.Hex(), r.doc.Length)
		}
		if err := r.cur.Err(); err != nil {
			return err
		}
		r.done = true
		r.err = io.EOF
		return nil
	}
	if !r.cur.Next(r.ctx) {
		if err := r.cur.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s: truncated after %d of %d bytes",
			ErrCorrupt, r.doc.ID.Hex(), r.got, r.doc.Length)
	}
	chunk := r.cur.Chunk()
	if chunk.N != r.next {
		return fmt.Errorf("%w: %s: chunk %d where %d expected",
			ErrCorrupt, r.doc.ID.Hex(), chunk.N, r.next)
	}
	if int64(xxhash.Sum64(chunk.Data)) != chunk.Sum {
		return fmt.Errorf("%w: %s: chunk %d fails checksum", ErrCorrupt, r.doc.ID.Hex(), chunk.N)
	}
	remaining := r.doc.Length - r.got
	switch {
	case int64(len(chunk.Data)) > remaining:
		return fmt.Errorf("%w: %s: %d bytes where record promises %d",
			ErrCorrupt, r.doc.ID.Hex(), r.got+int64(len(chunk.Data)), r.doc.Length)
	case int64(len(chunk.Data)) < remaining && int32(len(chunk.Data)) != r.doc.ChunkSize:
		// every chunk except the last must be full sized
		return fmt.Errorf("%w: %s: interior chunk %d has %d bytes, want %d",
			ErrCorrupt, r.doc.ID.Hex(), chunk.N, len(chunk.Data), r.doc.ChunkSize)
	}
	r.next++
	r.got += int64(len(chunk.Data))
	r.buf = chunk.Data
	return nil
}

// Close releases the underlying cursor. It does not report validation
// errors; those come from Read.
func (r *Reader) Close() error {
	return r.cur.Close(r.ctx)
}
