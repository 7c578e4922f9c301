// Package batch drives the two-tier parallelism of spec.md §5: one
// worker per file computing a signature, funneled into a single writer
// that batches catalog inserts; a separate path scans files against an
// existing catalog.
package batch

import (
	"fmt"
	"os"
	"runtime"

	"github.com/corvid-labs/fuzzysig/internal/catalog"
	"github.com/corvid-labs/fuzzysig/internal/signature"
	"github.com/corvid-labs/fuzzysig/internal/similarity"
)

// DefaultBatchSize amortizes per-write overhead during catalog
// construction, per spec.md §5.
const DefaultBatchSize = 10000

// Logf is a printf-style logging hook; pass nil for silence.
type Logf func(format string, args ...any)

// Summary reports the outcome of a HashDirectory pass. Per-file failures
// (unreadable files, empty files) are counted, never raised, per
// spec.md §7.
type Summary struct {
	TotalFiles int
	Hashed     int
	Skipped    int
	Errors     int
}

type hashResult struct {
	path string
	sig  string
	ok   bool
	err  error
}

// HashDirectory computes a signature for every path, in parallel across a
// worker pool sized to workers (0 means runtime.NumCPU()), and writes the
// resulting (path, signature) pairs into cat in batches of batchSize (0
// means DefaultBatchSize). A worker failure on one file is isolated to
// that file; it never aborts the pass.
func HashDirectory(paths []string, cat catalog.Catalog, workers, batchSize int, log Logf) (Summary, error) {
	if log == nil {
		log = func(string, ...any) {}
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	jobs := make(chan string)
	results := make(chan hashResult)

	for i := 0; i < workers; i++ {
		go func() {
			for path := range jobs {
				sig, ok, err := hashFile(path)
				results <- hashResult{path: path, sig: sig, ok: ok, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, p := range paths {
			jobs <- p
		}
	}()

	var summary Summary
	summary.TotalFiles = len(paths)

	var pending []catalog.Entry
	var writeErr error

	flush := func() {
		if len(pending) == 0 || writeErr != nil {
			return
		}
		if err := cat.InsertBatch(pending); err != nil {
			writeErr = fmt.Errorf("flush batch to catalog: %w", err)
			return
		}
		log("Inserted %d / %d signatures...", summary.Hashed, summary.TotalFiles)
		pending = pending[:0]
	}

	for i := 0; i < len(paths); i++ {
		r := <-results
		switch {
		case r.err != nil:
			summary.Errors++
			log("Error processing %s: %v", r.path, r.err)
		case !r.ok:
			summary.Skipped++
		default:
			pending = append(pending, catalog.Entry{Key: r.path, Value: r.sig})
			summary.Hashed++
			if len(pending) >= batchSize {
				flush()
			}
		}
	}
	flush()

	if writeErr != nil {
		return summary, writeErr
	}
	return summary, nil
}

func hashFile(path string) (sig string, ok bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", false, nil // input absent: treated as skip, not error
	}
	if info.Size() == 0 {
		return "", false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, nil // transient I/O: treated as input absent
	}

	sig, ok = signature.Build(data)
	return sig, ok, nil
}

// Match is a single hit from ScanPath: a catalog key whose signature is
// more than threshold-similar to the scanned file's signature.
type Match struct {
	Key        string
	Similarity float64
}

// FileScanResult is one scanned file's outcome.
type FileScanResult struct {
	Path    string
	Matched bool
	Matches []Match
	Err     error
}

// DefaultScanThreshold is the default similarity threshold for ad hoc
// scan queries (looser than consolidation's default).
const DefaultScanThreshold = 0.5

// ScanPath computes a signature for every path and compares it against
// every entry already in cat, reporting matches above threshold (0 means
// DefaultScanThreshold). Aggregation happens over the returned slice, not
// a shared counter mutated by worker goroutines, closing spec.md §9's
// open question about racy outer-counter aggregation.
func ScanPath(paths []string, cat catalog.Catalog, threshold float64, workers int, log Logf) ([]FileScanResult, error) {
	if log == nil {
		log = func(string, ...any) {}
	}
	if threshold <= 0 {
		threshold = DefaultScanThreshold
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	catalogEntries, err := cat.Scan()
	if err != nil {
		return nil, fmt.Errorf("scan catalog: %w", err)
	}

	jobs := make(chan string)
	results := make(chan FileScanResult)

	worker := func() {
		for path := range jobs {
			sig, ok, hashErr := hashFile(path)
			if !ok {
				results <- FileScanResult{Path: path}
				continue
			}

			var matches []Match
			for _, entry := range catalogEntries {
				if r := similarity.Ratio(sig, entry.Value); r > threshold {
					matches = append(matches, Match{Key: entry.Key, Similarity: r})
				}
			}

			results <- FileScanResult{Path: path, Matched: len(matches) > 0, Matches: matches, Err: hashErr}
		}
	}

	for i := 0; i < workers; i++ {
		go worker()
	}

	go func() {
		defer close(jobs)
		for _, p := range paths {
			jobs <- p
		}
	}()

	out := make([]FileScanResult, 0, len(paths))
	for i := 0; i < len(paths); i++ {
		r := <-results
		if r.Matched {
			log("Match found: %s", r.Path)
		}
		out = append(out, r)
	}

	return out, nil
}
