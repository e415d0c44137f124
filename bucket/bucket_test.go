package bucket

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/docstream/gridbucket/store"
)

func TestRoundTrip(t *testing.T) {
	// chunk size of 4 makes the boundary cases small
	var table = []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"short", "abc"},
		{"exactly-one-chunk", "abcd"},
		{"one-chunk-plus-one", "abcde"},
		{"exactly-two-chunks", "abcdefgh"},
		{"many-chunks", "abcdefghijklmnopqrstuvwxyz"},
	}
	ctx := context.Background()
	b := New(store.NewMemory())
	b.SetChunkSize(4)
	for _, test := range table {
		id, err := b.WriteBytes(ctx, test.name, []byte(test.data))
		if err != nil {
			t.Fatalf("%s: write: got %s, expected nil", test.name, err)
		}
		back, err := b.ReadBytes(ctx, test.name)
		if err != nil {
			t.Fatalf("%s: read: got %s, expected nil", test.name, err)
		}
		if !bytes.Equal(back, []byte(test.data)) {
			t.Errorf("%s: read %q, expected %q", test.name, back, test.data)
		}
		rid, err := b.Resolve(ctx, test.name)
		if err != nil {
			t.Fatalf("%s: resolve: got %s, expected nil", test.name, err)
		}
		if rid != id {
			t.Errorf("%s: resolved %v, expected %v", test.name, rid, id)
		}
		doc, err := b.Describe(ctx, id)
		if err != nil {
			t.Fatalf("%s: describe: got %s, expected nil", test.name, err)
		}
		if doc.Length != int64(len(test.data)) {
			t.Errorf("%s: length %d, expected %d", test.name, doc.Length, len(test.data))
		}
	}
}

func TestHelloExample(t *testing.T) {
	ctx := context.Background()
	b := New(store.NewMemory())
	if _, err := b.WriteBytes(ctx, "a.txt", []byte("hello")); err != nil {
		t.Fatalf("got %s, expected nil", err)
	}
	data, err := b.ReadBytes(ctx, "a.txt")
	if err != nil {
		t.Fatalf("got %s, expected nil", err)
	}
	if len(data) != 5 || string(data) != "hello" {
		t.Errorf("read %q (%d bytes), expected \"hello\" (5 bytes)", data, len(data))
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

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	b := New(store.NewMemory())
	if _, err := b.Resolve(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve: got %v, expected ErrNotFound", err)
	}
	if _, err := b.ReadBytes(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadBytes: got %v, expected ErrNotFound", err)
	}
	if _, err := b.ReadString(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadString: got %v, expected ErrNotFound", err)
	}
	if _, err := b.ReadBytesID(ctx, primitive.NewObjectID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadBytesID: got %v, expected ErrNotFound", err)
	}
	if _, err := b.Describe(ctx, primitive.NewObjectID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Describe: got %v, expected ErrNotFound", err)
	}
}

func TestReadString(t *testing.T) {
	ctx := context.Background()
	b := New(store.NewMemory())
	if _, err := b.WriteBytes(ctx, "greeting", []byte("héllo wörld")); err != nil {
		t.Fatalf("got %s, expected nil", err)
	}
	s, err := b.ReadString(ctx, "greeting")
	if err != nil {
		t.Fatalf("got %s, expected nil", err)
	}
	if s != "héllo wörld" {
		t.Errorf("read %q, expected %q", s, "héllo wörld")
	}

	// raw bytes that are not valid UTF-8
	if _, err := b.WriteBytes(ctx, "binary", []byte{0xff, 0xfe, 0x80}); err != nil {
		t.Fatalf("got %s, expected nil", err)
	}
	if _, err := b.ReadString(ctx, "binary"); !errors.Is(err, ErrNotText) {
		t.Errorf("got %v, expected ErrNotText", err)
	}
	// the same content is fine as bytes
	if _, err := b.ReadBytes(ctx, "binary"); err != nil {
		t.Errorf("got %v, expected nil", err)
	}
}

func TestOverwriteNewestWins(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemory()
	b := New(ms)
	first, err := b.WriteBytes(ctx, "item", []byte("version one"))
	if err != nil {
		t.Fatalf("got %s, expected nil", err)
	}
	second, err := b.WriteBytes(ctx, "item", []byte("version two"))
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
	data, _ := b.ReadBytes(ctx, "item")
	if string(data) != "version two" {
		t.Errorf("read %q, expected %q", data, "version two")
	}
	// the old record is still readable by identifier, and its chunks are
	// untouched (they are orphans for a cleanup pass, not this operation)
	old, err := b.ReadBytesID(ctx, first)
	if err != nil {
		t.Fatalf("got %s, expected nil", err)
	}
	if string(old) != "version one" {
		t.Errorf("read %q, expected %q", old, "version one")
	}
	if n := ms.NChunks(first); n == 0 {
		t.Errorf("old chunks were deleted, expected them kept")
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	b := New(store.NewMemory())
	for _, name := range []string{"logs/a", "logs/b", "data/c", "logs/a"} {
		if _, err := b.WriteBytes(ctx, name, []byte(name)); err != nil {
			t.Fatalf("got %s, expected nil", err)
		}
	}
	names, err := b.List(ctx, "logs/")
	if err != nil {
		t.Fatalf("got %s, expected nil", err)
	}
	if len(names) != 2 || names[0] != "logs/a" || names[1] != "logs/b" {
		t.Errorf("got %v, expected [logs/a logs/b]", names)
	}
	all, err := b.List(ctx, "")
	if err != nil {
		t.Fatalf("got %s, expected nil", err)
	}
	if len(all) != 3 {
		t.Errorf("got %v, expected 3 names", all)
	}
}
