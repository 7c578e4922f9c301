// Command fuzzysig computes fuzzy signatures for files, compares two
// files directly, builds a working catalog from a directory tree, or
// scans files against an existing catalog.
//
// Usage:
//
//	fuzzysig FILE                                   print FILE's signature
//	fuzzysig FILE1 FILE2                             print FILE1/FILE2 similarity
//	fuzzysig -db FOLDER [-out DB] [flags]             hash FOLDER into a working catalog
//	                                                  (default DB is <folder-basename>.db)
//	fuzzysig -scan PATH -against DB [flags]           scan PATH against an existing catalog
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/corvid-labs/fuzzysig/internal/batch"
	"github.com/corvid-labs/fuzzysig/internal/catalog"
	"github.com/corvid-labs/fuzzysig/internal/signature"
	"github.com/corvid-labs/fuzzysig/internal/similarity"
)

func main() {
	dbFolder := flag.String("db", "", "hash every file under this folder into a working catalog")
	out := flag.String("out", "", "working catalog path (sqlite) written by -db (default <folder-basename>.db)")
	scanPath := flag.String("scan", "", "scan this file or folder against an existing catalog")
	against := flag.String("against", "", "catalog path to scan against (used with -scan)")
	threshold := flag.Float64("threshold", batch.DefaultScanThreshold, "similarity threshold for -scan matches")
	threads := flag.Int("threads", runtime.NumCPU(), "worker count for -db and -scan")
	shards := flag.Int("shards", 1, "number of sqlite shards to split a -db working catalog across")
	backend := flag.String("backend", "sqlite", "catalog backend: sqlite or postgres")
	dsn := flag.String("dsn", getEnv("DATABASE_URL", ""), "connection string, required when -backend postgres (falls back to DATABASE_URL)")
	debug := flag.Bool("debug", false, "verbose per-file logging")
	flag.Parse()

	logf := func(format string, args ...any) {}
	if *debug {
		logf = func(format string, args ...any) { log.Printf(format, args...) }
	}

	if *out == "" && *dbFolder != "" {
		*out = filepath.Base(filepath.Clean(*dbFolder)) + ".db"
	}

	switch {
	case *dbFolder != "":
		runHashDirectory(*dbFolder, *out, *threads, *shards, *backend, *dsn, logf)
	case *scanPath != "":
		if *against == "" {
			log.Fatal("-scan requires -against DB")
		}
		runScan(*scanPath, *against, *threshold, *threads, *backend, *dsn, logf)
	default:
		runFileArgs(flag.Args())
	}
}

func runFileArgs(args []string) {
	switch len(args) {
	case 1:
		data, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatalf("read %s: %v", args[0], err)
		}
		sig, ok := signature.Build(data)
		if !ok {
			fmt.Println("file is empty after normalization; no signature")
			return
		}
		fmt.Printf("File: %s\nChunks: %d\n\n%s\n", args[0], signature.ChunkCount(sig), signature.Format(sig))
	case 2:
		sigA, okA := signatureForFile(args[0])
		sigB, okB := signatureForFile(args[1])
		if !okA || !okB {
			fmt.Println("one or both files produced no signature; nothing to compare")
			return
		}
		fmt.Printf("Similarity(%s, %s) = %.4f\n", args[0], args[1], similarity.Ratio(sigA, sigB))
	default:
		fmt.Fprintln(os.Stderr, "usage: fuzzysig FILE | fuzzysig FILE1 FILE2 | fuzzysig -db FOLDER | fuzzysig -scan PATH -against DB")
		os.Exit(2)
	}
}

func signatureForFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return signature.Build(data)
}

func runHashDirectory(dir, out string, threads, shards int, backend, dsn string, logf batch.Logf) {
	paths, err := walkFiles(dir)
	if err != nil {
		log.Fatalf("walk %s: %v", dir, err)
	}

	cat, closer := openWorkingCatalog(out, shards, backend, dsn)
	defer closer()

	summary, err := batch.HashDirectory(paths, cat, threads, 0, logf)
	if err != nil {
		log.Fatalf("hash directory: %v", err)
	}

	log.Printf("Hashed %d files (%d skipped, %d errors) into %s", summary.Hashed, summary.Skipped, summary.Errors, out)
}

func runScan(target, against string, threshold float64, threads int, backend, dsn string, logf batch.Logf) {
	paths, err := walkFiles(target)
	if err != nil {
		log.Fatalf("walk %s: %v", target, err)
	}

	cat, closer := openExistingCatalog(against, backend, dsn)
	defer closer()

	results, err := batch.ScanPath(paths, cat, threshold, threads, logf)
	if err != nil {
		log.Fatalf("scan: %v", err)
	}

	for _, r := range results {
		if !r.Matched {
			continue
		}
		for _, m := range r.Matches {
			fmt.Printf("%s ~ %s (%.4f)\n", r.Path, m.Key, m.Similarity)
		}
	}
}

func walkFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var paths []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

func openWorkingCatalog(out string, shards int, backend, dsn string) (catalog.Catalog, func()) {
	if backend == "postgres" {
		log.Fatal("-db only supports the sqlite backend; postgres is for master catalogs")
	}
	if shards <= 1 {
		cat, err := catalog.OpenSQLiteWorking(out)
		if err != nil {
			log.Fatalf("open working catalog %s: %v", out, err)
		}
		return cat, func() { cat.Close() }
	}

	shardCats := make([]catalog.Catalog, shards)
	for i := 0; i < shards; i++ {
		path := fmt.Sprintf("%s.shard%d", out, i)
		cat, err := catalog.OpenSQLiteWorking(path)
		if err != nil {
			log.Fatalf("open shard %s: %v", path, err)
		}
		shardCats[i] = cat
	}
	sharded, err := catalog.NewShardedCatalog(shardCats)
	if err != nil {
		log.Fatalf("build sharded catalog: %v", err)
	}
	return sharded, func() {
		for _, c := range shardCats {
			c.Close()
		}
	}
}

func openExistingCatalog(path, backend, dsn string) (catalog.Catalog, func()) {
	switch backend {
	case "postgres":
		cat, err := catalog.OpenPostgresMaster(dsn)
		if err != nil {
			log.Fatalf("open postgres catalog: %v", err)
		}
		return cat, func() { cat.Close() }
	default:
		cat, err := catalog.OpenSQLiteWorking(path)
		if err != nil {
			log.Fatalf("open catalog %s: %v", path, err)
		}
		return cat, func() { cat.Close() }
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
