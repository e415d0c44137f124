// +build mongo

package store_test

// tests the Mongo store with an external database. Can use a real MongoDB or
// anything speaking the same protocol (e.g. FerretDB, DocumentDB).
//
// To run from the command line
//
//    env "MONGO_URL=mongodb://localhost:27017" go test -tags=mongo ./store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/docstream/gridbucket/bucket"
	"github.com/docstream/gridbucket/store"
)

const testDatabase = "gridbucket_test"

func dialMongo(t *testing.T) (*store.Mongo, func()) {
	t.Helper()
	uri := os.Getenv("MONGO_URL")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	ctx := context.Background()
	client, err := store.Dial(ctx, uri)
	if err != nil {
		t.Fatalf("dial %s: %s", uri, err)
	}
	// a fresh namespace per test keeps runs independent
	prefix := fmt.Sprintf("t%d", time.Now().UnixNano())
	db := client.Database(testDatabase)
	s := store.NewMongo(db, prefix)
	if err := s.EnsureIndexes(ctx); err != nil {
		t.Fatalf("ensure indexes: %s", err)
	}
	cleanup := func() {
		db.Collection(prefix + ".files").Drop(ctx)
		db.Collection(prefix + ".chunks").Drop(ctx)
		client.Disconnect(ctx)
	}
	return s, cleanup
}

func TestMongoRoundTrip(t *testing.T) {
	s, cleanup := dialMongo(t)
	defer cleanup()
	ctx := context.Background()
	b := bucket.New(s)

	id, err := b.WriteBytes(ctx, "a.txt", []byte("hello"))
	if err != nil {
		t.Fatalf("write: got %s, expected nil", err)
	}
	data, err := b.ReadBytes(ctx, "a.txt")
	if err != nil {
		t.Fatalf("read: got %s, expected nil", err)
	}
	if string(data) != "hello" {
		t.Errorf("read %q, expected %q", data, "hello")
	}
	rid, err := b.Resolve(ctx, "a.txt")
	if err != nil || rid != id {
		t.Errorf("Resolve = %v, %v, expected %v, nil", rid, err, id)
	}
	ok, err := b.Exists(ctx, "a.txt")
	if err != nil || !ok {
		t.Errorf("Exists(a.txt) = %v, %v, expected true, nil", ok, err)
	}
	ok, err = b.Exists(ctx, "b.txt")
	if err != nil || ok {
		t.Errorf("Exists(b.txt) = %v, %v, expected false, nil", ok, err)
	}
}

func TestMongoNotFound(t *testing.T) {
	s, cleanup := dialMongo(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := s.FindName(ctx, "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("FindName: got %v, expected ErrNotFound", err)
	}
}

func TestMongoOverwrite(t *testing.T) {
	s, cleanup := dialMongo(t)
	defer cleanup()
	ctx := context.Background()
	b := bucket.New(s)

	if _, err := b.WriteBytes(ctx, "item", []byte("one")); err != nil {
		t.Fatalf("got %s, expected nil", err)
	}
	second, err := b.WriteBytes(ctx, "item", []byte("two"))
	if err != nil {
		t.Fatalf("got %s, expected nil", err)
	}
	id, err := b.Resolve(ctx, "item")
	if err != nil {
		t.Fatalf("got %s, expected nil", err)
	}
	if id != second {
		t.Errorf("resolved %v, expected the newer record %v", id, second)
	}
}

func TestMongoLargeObject(t *testing.T) {
	s, cleanup := dialMongo(t)
	defer cleanup()
	ctx := context.Background()
	b := bucket.New(s)

	content := make([]byte, 2*1024*1024+99)
	rand.New(rand.NewSource(7)).Read(content)
	if _, err := b.WriteBytes(ctx, "big", content); err != nil {
		t.Fatalf("write: got %s, expected nil", err)
	}
	back, err := b.ReadBytes(ctx, "big")
	if err != nil {
		t.Fatalf("read: got %s, expected nil", err)
	}
	if len(back) != len(content) {
		t.Fatalf("read %d bytes, expected %d", len(back), len(content))
	}
	if !bytes.Equal(back, content) {
		t.Error("content differs after the round trip")
	}
}
