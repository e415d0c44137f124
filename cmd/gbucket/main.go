package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"text/tabwriter"

	"github.com/BurntSushi/toml"
	raven "github.com/getsentry/raven-go"

	"github.com/docstream/gridbucket/bucket"
	"github.com/docstream/gridbucket/filesync"
	"github.com/docstream/gridbucket/store"
	"github.com/docstream/gridbucket/util"
)

var (
	configFile = flag.String("config", "gbucket.toml", "location of the configuration file")
	mongoURI   = flag.String("m", "", "mongodb connection string (overrides config)")
	database   = flag.String("db", "", "database name (overrides config)")
	prefix     = flag.String("prefix", "", "collection namespace (overrides config)")
	chunkSize  = flag.Int("chunk", 0, "chunk size in bytes (overrides config)")
	nworkers   = flag.Int("j", 4, "number of concurrent uploads for put")
	usage      = `
gbucket [flags] <command> <command arguments>

Possible commands:
    put <file list>

    get <name> [local path]

    cat <name>

    ls [prefix]

    stat <name>

    exists <name>
`
)

// Config is the on-disk configuration. Every field can be overridden on the
// command line.
type Config struct {
	MongoDB   string `toml:"mongodb"`
	Database  string `toml:"database"`
	Prefix    string `toml:"prefix"`
	ChunkSize int    `toml:"chunk_size"`
	SentryDSN string `toml:"sentry_dsn"`
}

func loadConfig() Config {
	conf := Config{
		MongoDB:  "mongodb://localhost:27017",
		Database: "gridbucket",
	}
	if _, err := os.Stat(*configFile); err == nil {
		if _, err := toml.DecodeFile(*configFile, &conf); err != nil {
			fmt.Fprintln(os.Stderr, "Error reading", *configFile+":", err)
			os.Exit(1)
		}
	}
	if *mongoURI != "" {
		conf.MongoDB = *mongoURI
	}
	if *database != "" {
		conf.Database = *database
	}
	if *prefix != "" {
		conf.Prefix = *prefix
	}
	if *chunkSize > 0 {
		conf.ChunkSize = *chunkSize
	}
	return conf
}

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		fmt.Println(usage)
		return
	}

	conf := loadConfig()
	if conf.SentryDSN != "" {
		raven.SetDSN(conf.SentryDSN)
	}

	ctx := context.Background()
	client, err := store.Dial(ctx, conf.MongoDB)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer client.Disconnect(ctx)

	s := store.NewMongo(client.Database(conf.Database), conf.Prefix)
	b := bucket.New(s)
	if conf.ChunkSize > 0 {
		b.SetChunkSize(conf.ChunkSize)
	}

	switch args[0] {
	case "put":
		if err := s.EnsureIndexes(ctx); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		doput(ctx, b, args[1:])
	case "get":
		doget(ctx, b, args[1:])
	case "cat":
		docat(ctx, b, args[1:])
	case "ls":
		dols(ctx, b, args[1:])
	case "stat":
		dostat(ctx, b, args[1:])
	case "exists":
		doexists(ctx, b, args[1:])
	default:
		fmt.Println(usage)
	}
}

// doput uploads each named file, a few at a time, storing it under its base
// name.
func doput(ctx context.Context, b *bucket.Bucket, files []string) {
	var (
		gate = util.NewGate(*nworkers)
		wg   sync.WaitGroup
		m    sync.Mutex
		nbad int
	)
	for _, fname := range files {
		wg.Add(1)
		go func(fname string) {
			defer wg.Done()
			gate.Enter()
			defer gate.Leave()
			name := filepath.Base(fname)
			id, err := filesync.UploadFrom(ctx, b, name, fname)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %s\n", fname, err)
				m.Lock()
				nbad++
				m.Unlock()
				return
			}
			fmt.Printf("%s %s\n", id.Hex(), name)
		}(fname)
	}
	wg.Wait()
	if nbad > 0 {
		os.Exit(1)
	}
}

func doget(ctx context.Context, b *bucket.Bucket, args []string) {
	if len(args) == 0 {
		fmt.Println(usage)
		return
	}
	name := args[0]
	local := name
	if len(args) > 1 {
		local = args[1]
	}
	id, err := filesync.DownloadTo(ctx, b, name, local)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", name, err)
		os.Exit(1)
	}
	fmt.Printf("%s %s\n", id.Hex(), local)
}

func docat(ctx context.Context, b *bucket.Bucket, args []string) {
	if len(args) == 0 {
		fmt.Println(usage)
		return
	}
	r, err := b.OpenRead(ctx, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", args[0], err)
		os.Exit(1)
	}
	defer r.Close()
	if _, err := io.Copy(os.Stdout, r); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", args[0], err)
		os.Exit(1)
	}
}

func dols(ctx context.Context, b *bucket.Bucket, args []string) {
	var pre string
	if len(args) > 0 {
		pre = args[0]
	}
	names, err := b.List(ctx, pre)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, name := range names {
		fmt.Println(name)
	}
}

func dostat(ctx context.Context, b *bucket.Bucket, args []string) {
	if len(args) == 0 {
		fmt.Println(usage)
		return
	}
	id, err := b.Resolve(ctx, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", args[0], err)
		os.Exit(1)
	}
	doc, err := b.Describe(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", args[0], err)
		os.Exit(1)
	}
	w := tabwriter.NewWriter(os.Stdout, 5, 1, 3, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", doc.ID.Hex())
	fmt.Fprintf(w, "Name:\t%s\n", doc.Name)
	fmt.Fprintf(w, "Length:\t%d\n", doc.Length)
	fmt.Fprintf(w, "ChunkSize:\t%d\n", doc.ChunkSize)
	fmt.Fprintf(w, "MD5:\t%s\n", doc.MD5)
	fmt.Fprintf(w, "UploadDate:\t%v\n", doc.UploadDate)
	w.Flush()
}

func doexists(ctx context.Context, b *bucket.Bucket, args []string) {
	if len(args) == 0 {
		fmt.Println(usage)
		return
	}
	ok, err := b.Exists(ctx, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", args[0], err)
		os.Exit(1)
	}
	fmt.Println(ok)
	if !ok {
		os.Exit(1)
	}
}
