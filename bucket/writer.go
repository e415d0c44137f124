package bucket

import (
	"context"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/docstream/gridbucket/store"
	"github.com/docstream/gridbucket/util"
)

// A Writer accumulates an upload. Bytes written to it are cut into chunks
// and sent to the store as they fill up; the metadata record is published
// only by a successful Close. Until then the upload is invisible to every
// lookup, so a half-written object can never be resolved.
//
// If a store call fails, or Abort is called, or the context the Writer was
// opened with is cancelled, the chunks inserted so far are deleted and no
// record is published.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	ctx       context.Context
	s         store.Store
	id        primitive.ObjectID
	name      string
	chunkSize int
	buf       []byte // partial chunk not yet sent
	n         int32  // number of the next chunk to send
	length    int64  // content bytes accepted so far
	md5       *util.MD5Writer
	err       error // sticky failure; chunks already reclaimed
	done      bool
}

func newWriter(ctx context.Context, s store.Store, name string, chunkSize int) *Writer {
	return &Writer{
		ctx:       ctx,
		s:         s,
		id:        primitive.NewObjectID(),
		name:      name,
		chunkSize: chunkSize,
		buf:       make([]byte, 0, chunkSize),
		md5:       util.NewMD5WriterPlain(),
	}
}

// ID returns the identifier this upload will publish under. It is assigned
// when the Writer is opened and does not change.
func (w *Writer) ID() primitive.ObjectID { return w.id }

func (w *Writer) Write(p []byte) (int, error) {
	if w.done {
		return 0, ErrClosed
	}
	if w.err != nil {
		return 0, w.err
	}
	w.md5.Write(p)
	w.length += int64(len(p))
	total := len(p)
	for len(p) > 0 {
		room := w.chunkSize - len(w.buf)
		if room > len(p) {
			room = len(p)
		}
		w.buf = append(w.buf, p[:room]...)
		p = p[room:]
		if len(w.buf) == w.chunkSize {
			if err := w.flush(); err != nil {
				w.fail(err)
				return 0, err
			}
		}
	}
	return total, nil
}

// flush sends the buffered chunk to the store.
func (w *Writer) flush() error {
	data := make([]byte, len(w.buf))
	copy(data, w.buf)
	w.buf = w.buf[:0]
	err := w.s.InsertChunk(w.ctx, store.Chunk{
		FilesID: w.id,
		N:       w.n,
		Data:    data,
		Sum:     int64(xxhash.Sum64(data)),
	})
	if err == nil {
		w.n++
	}
	return err
}

// Close flushes the final partial chunk and publishes the metadata record,
// making the object visible. If anything goes wrong the chunks written so
// far are reclaimed and the error returned; the name still resolves to
// whatever it resolved to before.
func (w *Writer) Close() error {
	if w.done {
		return ErrClosed
	}
	if w.err != nil {
		return w.err
	}
	w.done = true
	if len(w.buf) > 0 {
		if err := w.flush(); err != nil {
			w.cleanup()
			return err
		}
	}
	doc := store.FileDoc{
		ID:         w.id,
		Name:       w.name,
		Length:     w.length,
		ChunkSize:  int32(w.chunkSize),
		MD5:        w.md5.Sum(),
		UploadDate: time.Now().UTC(),
	}
	if err := w.s.Publish(w.ctx, doc); err != nil {
		w.cleanup()
		return err
	}
	return nil
}

// Abort drops the upload. The chunks inserted so far are deleted and no
// record is published. Aborting an already closed Writer does nothing.
func (w *Writer) Abort() error {
	if w.done || w.err != nil {
		return nil
	}
	w.done = true
	return w.cleanup()
}

// fail records a sticky error and reclaims the chunks written so far.
func (w *Writer) fail(err error) {
	w.err = err
	w.cleanup()
}

// cleanup deletes the chunks of this unpublished upload. It runs on a fresh
// context: the usual reason we are here is that w.ctx was cancelled, and a
// dead context must not stop the reclaim.
func (w *Writer) cleanup() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return w.s.DeleteChunks(ctx, w.id)
}
