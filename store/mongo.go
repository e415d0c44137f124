package store

import (
	"context"
	"log"
	"regexp"
	"sort"
	"time"

	raven "github.com/getsentry/raven-go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultPrefix is the collection namespace used when none is given, so the
// data lands in "fs.files" and "fs.chunks" following the GridFS convention.
const DefaultPrefix = "fs"

// A Mongo is a Store kept in a MongoDB (or DocumentDB) database. Do not
// change Prefix concurrently with calls using the structure.
type Mongo struct {
	Prefix string
	files  *mongo.Collection
	chunks *mongo.Collection
}

var (
	// ensure Mongo satisfies the Store interface
	_ Store = &Mongo{}
)

// NewMongo returns a Store using the given database. The prefix names the
// collection pair to use; pass "" for DefaultPrefix. This allows one database
// to hold more than one independent store.
func NewMongo(db *mongo.Database, prefix string) *Mongo {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Mongo{
		Prefix: prefix,
		files:  db.Collection(prefix + ".files"),
		chunks: db.Collection(prefix + ".chunks"),
	}
}

// Dial connects to the database at uri and verifies the connection with a
// ping. The caller owns the returned client and should Disconnect it when
// done.
func Dial(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &RemoteError{Op: "dial", Err: err}
	}
	pingctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, &RemoteError{Op: "dial", Err: err}
	}
	return client, nil
}

// EnsureIndexes creates the indexes the lookup paths rely on: files by
// (filename, uploadDate) and chunks by (files_id, n), the latter unique.
// It is safe to call more than once.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.files.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "filename", Value: 1}, {Key: "uploadDate", Value: 1}},
	})
	if err != nil {
		return m.remote("ensure indexes", err)
	}
	_, err = m.chunks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "files_id", Value: 1}, {Key: "n", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return m.remote("ensure indexes", err)
	}
	return nil
}

// FindName returns the live record for name. When several records share the
// name the newest wins: sort by uploadDate and then _id, both descending.
// (ObjectIDs are time ordered, so the _id tiebreak keeps the order stable
// when two uploads land within the same timestamp.)
func (m *Mongo) FindName(ctx context.Context, name string) (FileDoc, error) {
	var doc FileDoc
	opts := options.FindOne().SetSort(bson.D{
		{Key: "uploadDate", Value: -1},
		{Key: "_id", Value: -1},
	})
	err := m.files.FindOne(ctx, bson.M{"filename": name}, opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return FileDoc{}, ErrNotFound
	}
	if err != nil {
		return FileDoc{}, m.remote("find name", err)
	}
	return doc, nil
}

// FindID returns the record with the given identifier.
func (m *Mongo) FindID(ctx context.Context, id primitive.ObjectID) (FileDoc, error) {
	var doc FileDoc
	err := m.files.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return FileDoc{}, ErrNotFound
	}
	if err != nil {
		return FileDoc{}, m.remote("find id", err)
	}
	return doc, nil
}

// ListNames returns the names of the live records starting with prefix,
// deduplicated and in sorted order.
func (m *Mongo) ListNames(ctx context.Context, prefix string) ([]string, error) {
	filter := bson.M{}
	if prefix != "" {
		filter["filename"] = bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}
	}
	opts := options.Find().SetProjection(bson.M{"filename": 1})
	cur, err := m.files.Find(ctx, filter, opts)
	if err != nil {
		return nil, m.remote("list", err)
	}
	defer cur.Close(ctx)
	seen := make(map[string]bool)
	for cur.Next(ctx) {
		var doc FileDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, m.remote("list", err)
		}
		seen[doc.Name] = true
	}
	if err := cur.Err(); err != nil {
		return nil, m.remote("list", err)
	}
	result := make([]string, 0, len(seen))
	for name := range seen {
		result = append(result, name)
	}
	sort.Strings(result)
	return result, nil
}

// OpenChunks returns a cursor over the chunks for id in ascending n order.
// An id with no chunks yields a cursor that is immediately exhausted; it is
// the caller's business to decide whether that is an empty object or a
// missing one.
func (m *Mongo) OpenChunks(ctx context.Context, id primitive.ObjectID) (ChunkCursor, error) {
	opts := options.Find().SetSort(bson.D{{Key: "n", Value: 1}})
	cur, err := m.chunks.Find(ctx, bson.M{"files_id": id}, opts)
	if err != nil {
		return nil, m.remote("open chunks", err)
	}
	return &mongoCursor{cur: cur}, nil
}

// InsertChunk saves one chunk of an in-progress upload.
func (m *Mongo) InsertChunk(ctx context.Context, chunk Chunk) error {
	_, err := m.chunks.InsertOne(ctx, chunk)
	if err != nil {
		return m.remote("insert chunk", err)
	}
	return nil
}

// Publish inserts the metadata record, making the object visible to lookups.
func (m *Mongo) Publish(ctx context.Context, doc FileDoc) error {
	_, err := m.files.InsertOne(ctx, doc)
	if err != nil {
		return m.remote("publish", err)
	}
	return nil
}

// DeleteChunks removes every chunk belonging to id. Deleting chunks that do
// not exist is not an error.
func (m *Mongo) DeleteChunks(ctx context.Context, id primitive.ObjectID) error {
	_, err := m.chunks.DeleteMany(ctx, bson.M{"files_id": id})
	if err != nil {
		return m.remote("delete chunks", err)
	}
	return nil
}

// remote logs and reports a driver failure and wraps it for the caller.
func (m *Mongo) remote(op string, err error) error {
	log.Println("mongo", op+":", m.Prefix, err)
	raven.CaptureError(err, map[string]string{"Prefix": m.Prefix, "Op": op})
	return &RemoteError{Op: op, Err: err}
}

// mongoCursor adapts a *mongo.Cursor to the ChunkCursor interface.
type mongoCursor struct {
	cur   *mongo.Cursor
	chunk Chunk
	err   error
}

func (c *mongoCursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if !c.cur.Next(ctx) {
		if err := c.cur.Err(); err != nil {
			c.err = &RemoteError{Op: "read chunk", Err: err}
		}
		return false
	}
	if err := c.cur.Decode(&c.chunk); err != nil {
		c.err = &RemoteError{Op: "decode chunk", Err: err}
		return false
	}
	return true
}

func (c *mongoCursor) Chunk() Chunk { return c.chunk }

func (c *mongoCursor) Err() error { return c.err }

func (c *mongoCursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}
