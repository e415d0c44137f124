package store

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory implements a simple in-memory version of a Store. It is intended
// mainly for testing. It follows the same visibility rule as the Mongo
// store: an object does not exist until Publish is called for it.
type Memory struct {
	m      sync.RWMutex
	docs   []FileDoc
	chunks map[primitive.ObjectID][]Chunk
}

var (
	// ensure Memory satisfies the Store interface
	_ Store = &Memory{}
)

// NewMemory returns a new, empty memory store.
func NewMemory() *Memory {
	return &Memory{chunks: make(map[primitive.ObjectID][]Chunk)}
}

// FindName returns the newest record with the given name, matching the sort
// the Mongo store uses: upload date first, identifier as tiebreak.
func (ms *Memory) FindName(ctx context.Context, name string) (FileDoc, error) {
	ms.m.RLock()
	defer ms.m.RUnlock()
	var best FileDoc
	var found bool
	for _, doc := range ms.docs {
		if doc.Name != name {
			continue
		}
		if !found || newer(doc, best) {
			best = doc
			found = true
		}
	}
	if !found {
		return FileDoc{}, ErrNotFound
	}
	return best, nil
}

// newer reports whether a was created after b.
func newer(a, b FileDoc) bool {
	if !a.UploadDate.Equal(b.UploadDate) {
		return a.UploadDate.After(b.UploadDate)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) > 0
}

// FindID returns the record with the given identifier.
func (ms *Memory) FindID(ctx context.Context, id primitive.ObjectID) (FileDoc, error) {
	ms.m.RLock()
	defer ms.m.RUnlock()
	for _, doc := range ms.docs {
		if doc.ID == id {
			return doc, nil
		}
	}
	return FileDoc{}, ErrNotFound
}

// ListNames returns all the record names which begin with the given prefix.
func (ms *Memory) ListNames(ctx context.Context, prefix string) ([]string, error) {
	ms.m.RLock()
	defer ms.m.RUnlock()
	seen := make(map[string]bool)
	for _, doc := range ms.docs {
		if strings.HasPrefix(doc.Name, prefix) {
			seen[doc.Name] = true
		}
	}
	result := make([]string, 0, len(seen))
	for name := range seen {
		result = append(result, name)
	}
	sort.Strings(result)
	return result, nil
}

// OpenChunks returns a cursor over the chunks saved for id, in chunk order.
func (ms *Memory) OpenChunks(ctx context.Context, id primitive.ObjectID) (ChunkCursor, error) {
	ms.m.RLock()
	source := ms.chunks[id]
	list := make([]Chunk, len(source))
	copy(list, source)
	ms.m.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].N < list[j].N })
	return &memoryCursor{list: list}, nil
}

// InsertChunk saves one chunk. A cancelled context is honored, the way a
// database round trip would fail.
func (ms *Memory) InsertChunk(ctx context.Context, chunk Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.m.Lock()
	ms.chunks[chunk.FilesID] = append(ms.chunks[chunk.FilesID], chunk)
	ms.m.Unlock()
	return nil
}

// Publish makes doc visible to the lookup methods.
func (ms *Memory) Publish(ctx context.Context, doc FileDoc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.m.Lock()
	ms.docs = append(ms.docs, doc)
	ms.m.Unlock()
	return nil
}

// DeleteChunks removes every chunk belonging to id. It is not an error if
// there are none.
func (ms *Memory) DeleteChunks(ctx context.Context, id primitive.ObjectID) error {
	ms.m.Lock()
	delete(ms.chunks, id)
	ms.m.Unlock()
	return nil
}

// NChunks returns how many chunks are stored for id. This is intended for
// testing and debugging.
func (ms *Memory) NChunks(id primitive.ObjectID) int {
	ms.m.RLock()
	defer ms.m.RUnlock()
	return len(ms.chunks[id])
}

// memoryCursor iterates over a snapshot of a chunk list.
type memoryCursor struct {
	list []Chunk
	cur  Chunk
	err  error
}

func (c *memoryCursor) Next(ctx context.Context) bool {
	if c.err = ctx.Err(); c.err != nil {
		return false
	}
	if len(c.list) == 0 {
		return false
	}
	c.cur = c.list[0]
	c.list = c.list[1:]
	return true
}

func (c *memoryCursor) Chunk() Chunk { return c.cur }

func (c *memoryCursor) Err() error { return c.err }

func (c *memoryCursor) Close(ctx context.Context) error { return nil }
