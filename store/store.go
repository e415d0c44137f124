// Package store provides access to the document database holding the blob
// metadata and chunk collections. Objects are kept as a metadata document in
// a "files" collection plus an ordered run of chunk documents in a "chunks"
// collection, in the GridFS manner.
//
// The Mongo implementation is the real one. Memory implements the same
// semantics in process and is intended mainly for testing.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is returned when a name or identifier has no live record.
var ErrNotFound = errors.New("not found")

// A FileDoc is the metadata record for one stored object. It is created once,
// when an upload completes, and never mutated. Storing a new object under an
// existing name creates a new FileDoc; the chunks of the old one become
// orphans.
type FileDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	Name       string             `bson:"filename"`
	Length     int64              `bson:"length"`
	ChunkSize  int32              `bson:"chunkSize"`
	MD5        string             `bson:"md5"`
	UploadDate time.Time          `bson:"uploadDate"`
}

// A Chunk is one bounded segment of an object's content. N gives its position
// in the object, starting from 0. Sum is the xxhash64 of Data, checked when
// the chunk is read back. It is held as the signed reinterpretation of the
// hash: the document encoding has no unsigned 64 bit type, and an unsigned
// value with the high bit set will not marshal.
type Chunk struct {
	FilesID primitive.ObjectID `bson:"files_id"`
	N       int32              `bson:"n"`
	Data    []byte             `bson:"data"`
	Sum     int64              `bson:"sum"`
}

// Store is the contract this client needs from the underlying document
// database: filter-based metadata lookup, ordered chunk delivery, and record
// publication that is atomic with respect to lookups. A record is visible to
// FindName and FindID only after Publish returns.
//
// Lookup misses are reported as ErrNotFound. Any other failure talking to the
// database is wrapped in a *RemoteError.
type Store interface {
	// FindName returns the record for name. If several live records share
	// the name, the most recently created one wins.
	FindName(ctx context.Context, name string) (FileDoc, error)

	// FindID returns the record with the given identifier.
	FindID(ctx context.Context, id primitive.ObjectID) (FileDoc, error)

	// ListNames returns the names of all live records beginning with
	// prefix, deduplicated and sorted.
	ListNames(ctx context.Context, prefix string) ([]string, error)

	// OpenChunks returns a cursor over the chunks for id, in ascending
	// chunk order. The cursor is finite and not restartable.
	OpenChunks(ctx context.Context, id primitive.ObjectID) (ChunkCursor, error)

	// InsertChunk saves one chunk of an in-progress upload.
	InsertChunk(ctx context.Context, chunk Chunk) error

	// Publish makes doc visible as a live record. Chunks for doc.ID must
	// already be inserted.
	Publish(ctx context.Context, doc FileDoc) error

	// DeleteChunks removes every chunk belonging to id. It is used to
	// reclaim the chunks of an upload that will never be published, and to
	// clean up orphans. Missing chunks are not an error.
	DeleteChunks(ctx context.Context, id primitive.ObjectID) error
}

// A ChunkCursor iterates over the stored chunks of one object. The usual
// pattern is
//
//	for cur.Next(ctx) {
//		c := cur.Chunk()
//		...
//	}
//	err := cur.Err()
//
// followed by Close. Close may be called at any point to release the cursor.
type ChunkCursor interface {
	Next(ctx context.Context) bool
	Chunk() Chunk
	Err() error
	Close(ctx context.Context) error
}

// A RemoteError wraps a failure from the underlying database or the network
// path to it. Op names the store operation that failed. Local filesystem
// errors are never wrapped in a RemoteError, so callers can use errors.As to
// tell "the store is unhappy" apart from "my disk is unhappy".
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("store: %s: %s", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }
