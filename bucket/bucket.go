// Package bucket provides the client view of a chunked blob store kept in a
// document database. A Bucket composes name resolution and chunk streaming
// into simple read, write, and exists operations keyed by name or by
// identifier.
//
// A Bucket keeps no content cache. Every read goes to the store, so a write
// completed by any client is visible to every other one. There is no
// ordering between concurrent writers using the same name: the last upload
// to complete wins for subsequent Resolve calls. That race is inherited from
// the underlying store, which has no compare-and-swap on names.
package bucket

import (
	"bytes"
	"context"
	"io"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/docstream/gridbucket/store"
)

// DefaultChunkSize is the chunk size used for new objects unless changed
// with SetChunkSize. 255 KiB is the GridFS convention.
const DefaultChunkSize = 255 * 1024

// A Bucket is a client for one blob store. It can be shared between multiple
// goroutines.
type Bucket struct {
	s         store.Store
	chunkSize int
}

// New returns a Bucket using the given store.
func New(s store.Store) *Bucket {
	return &Bucket{s: s, chunkSize: DefaultChunkSize}
}

// SetChunkSize changes the chunk size used for subsequent writes. Sizes less
// than 1 are ignored. Objects already stored keep the chunk size they were
// written with. Do not call this concurrently with other Bucket calls.
func (b *Bucket) SetChunkSize(n int) {
	if n > 0 {
		b.chunkSize = n
	}
}

// Resolve returns the identifier for name. If more than one live record has
// that name, the most recently created record wins. Returns
// store.ErrNotFound if there is none.
func (b *Bucket) Resolve(ctx context.Context, name string) (primitive.ObjectID, error) {
	doc, err := b.s.FindName(ctx, name)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return doc.ID, nil
}

// Describe returns the metadata record for the given identifier.
func (b *Bucket) Describe(ctx context.Context, id primitive.ObjectID) (store.FileDoc, error) {
	return b.s.FindID(ctx, id)
}

// Exists reports whether name resolves to a live record. A missing name is
// (false, nil), never an error. Failures talking to the store are still
// returned.
func (b *Bucket) Exists(ctx context.Context, name string) (bool, error) {
	_, err := b.s.FindName(ctx, name)
	if err == store.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns the names of the live objects beginning with prefix, sorted.
// Pass "" to list everything.
func (b *Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	return b.s.ListNames(ctx, prefix)
}

// OpenRead opens the content of name for reading.
func (b *Bucket) OpenRead(ctx context.Context, name string) (*Reader, error) {
	doc, err := b.s.FindName(ctx, name)
	if err != nil {
		return nil, err
	}
	return b.openDoc(ctx, doc)
}

// OpenReadID opens the content of the object with the given identifier for
// reading.
func (b *Bucket) OpenReadID(ctx context.Context, id primitive.ObjectID) (*Reader, error) {
	doc, err := b.s.FindID(ctx, id)
	if err != nil {
		return nil, err
	}
	return b.openDoc(ctx, doc)
}

func (b *Bucket) openDoc(ctx context.Context, doc store.FileDoc) (*Reader, error) {
	cur, err := b.s.OpenChunks(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	return &Reader{ctx: ctx, doc: doc, cur: cur}, nil
}

// OpenWrite starts an upload that will be stored under name when the
// returned Writer is closed. Nothing is visible to readers until Close
// succeeds. The Writer keeps ctx and uses it for every store call it makes.
func (b *Bucket) OpenWrite(ctx context.Context, name string) (*Writer, error) {
	return newWriter(ctx, b.s, name, b.chunkSize), nil
}

// ReadBytes returns the entire content of name as one contiguous buffer. An
// object with no content yields an empty slice, not an error.
func (b *Bucket) ReadBytes(ctx context.Context, name string) ([]byte, error) {
	r, err := b.OpenRead(ctx, name)
	if err != nil {
		return nil, err
	}
	return drain(r)
}

// ReadBytesID is ReadBytes keyed by identifier.
func (b *Bucket) ReadBytesID(ctx context.Context, id primitive.ObjectID) ([]byte, error) {
	r, err := b.OpenReadID(ctx, id)
	if err != nil {
		return nil, err
	}
	return drain(r)
}

func drain(r *Reader) ([]byte, error) {
	defer r.Close()
	buf := bytes.Buffer{}
	// the record's length is unvalidated at this point, so cap the
	// preallocation hint; the buffer still grows as far as the chunks
	// actually reach
	hint := r.doc.Length
	if hint < 0 || hint > 1<<20 {
		hint = 1 << 20
	}
	buf.Grow(int(hint))
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadString returns the content of name decoded as UTF-8 text. Content that
// is not valid UTF-8 gives ErrNotText.
func (b *Bucket) ReadString(ctx context.Context, name string) (string, error) {
	data, err := b.ReadBytes(ctx, name)
	if err != nil {
		return "", err
	}
	return decodeText(data)
}

// ReadStringID is ReadString keyed by identifier.
func (b *Bucket) ReadStringID(ctx context.Context, id primitive.ObjectID) (string, error) {
	data, err := b.ReadBytesID(ctx, id)
	if err != nil {
		return "", err
	}
	return decodeText(data)
}

func decodeText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", ErrNotText
	}
	return string(data), nil
}

// WriteBytes stores data under name and returns the identifier of the new
// record. Writing to a name that already exists creates a new record; the
// chunks of the old record are left behind as orphans, to be reclaimed
// separately.
func (b *Bucket) WriteBytes(ctx context.Context, name string, data []byte) (primitive.ObjectID, error) {
	w, err := b.OpenWrite(ctx, name)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if _, err := w.Write(data); err != nil {
		w.Abort()
		return primitive.NilObjectID, err
	}
	if err := w.Close(); err != nil {
		return primitive.NilObjectID, err
	}
	return w.ID(), nil
}
