// Package consolidate clusters a working catalog's signatures by
// similarity, elects one representative per cluster, and writes those
// representatives into a master catalog.
package consolidate

import (
	"crypto/rand"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/corvid-labs/fuzzysig/internal/catalog"
	"github.com/corvid-labs/fuzzysig/internal/similarity"
	"github.com/google/uuid"
)

// DefaultThreshold is the default similarity threshold used for
// consolidation (stricter than the 0.5 used for ad hoc scan queries).
const DefaultThreshold = 0.8

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Report summarizes one consolidation pass.
type Report struct {
	RunID            string
	Clusters         int
	TotalRemoved     int
	Ignored          int
	MasterEntryNames []string
}

// Options configures a consolidation pass.
type Options struct {
	Threshold float64
	// Auto selects the log phrasing used by the "-auto" CLI mode; it has
	// no effect on clustering semantics.
	Auto bool
}

// Run clusters every entry of working by pairwise similarity against a
// fixed pivot per spec.md §4.5: membership in cluster i requires
// similarity to the pivot's signature exceeding threshold, and this is
// NOT transitive closure. Entries that match an entry already present in
// existing (if non-nil) are dropped from working without forming a new
// cluster. One upsert per cluster is written to master, and every
// non-pivot member of a cluster is deleted from working.
func Run(working, master, existing catalog.Catalog, opts Options, log func(string, ...any)) (Report, error) {
	if log == nil {
		log = func(string, ...any) {}
	}

	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	entries, err := working.Scan()
	if err != nil {
		return Report{}, fmt.Errorf("scan working catalog: %w", err)
	}

	var existingSigs []string
	if existing != nil {
		existingEntries, err := existing.Scan()
		if err != nil {
			return Report{}, fmt.Errorf("scan existing master catalog: %w", err)
		}
		for _, e := range existingEntries {
			existingSigs = append(existingSigs, e.Value)
		}
	}

	report := Report{RunID: newRunID()}
	processed := make(map[string]bool, len(entries))
	var toDelete []string

	for i, pivot := range entries {
		if processed[pivot.Key] {
			continue
		}

		if matchesAny(pivot.Value, existingSigs, threshold) {
			processed[pivot.Key] = true
			toDelete = append(toDelete, pivot.Key)
			report.Ignored++
			continue
		}

		group := []catalog.Entry{pivot}
		for j := i + 1; j < len(entries); j++ {
			candidate := entries[j]
			if processed[candidate.Key] {
				continue
			}
			if similarity.Ratio(pivot.Value, candidate.Value) > threshold {
				group = append(group, candidate)
			}
		}

		if len(group) > 1 {
			name, err := autoName(groupPaths(group))
			if err != nil {
				return Report{}, fmt.Errorf("derive cluster name: %w", err)
			}

			if err := master.InsertOrReplace(name, group[0].Value); err != nil {
				return Report{}, fmt.Errorf("write master entry %q: %w", name, err)
			}

			for _, member := range group[1:] {
				toDelete = append(toDelete, member.Key)
			}

			report.Clusters++
			report.TotalRemoved += len(group) - 1
			report.MasterEntryNames = append(report.MasterEntryNames, name)

			if opts.Auto {
				log("Consolidated %s from %d signatures, keeping one.", name, len(group))
			} else {
				log("Group consolidated as: %s", name)
			}
		}

		for _, member := range group {
			processed[member.Key] = true
		}
	}

	if len(toDelete) > 0 {
		if err := working.DeleteMany(toDelete); err != nil {
			return Report{}, fmt.Errorf("delete consolidated entries: %w", err)
		}
	}

	if err := working.Compact(); err != nil {
		return Report{}, fmt.Errorf("compact working catalog: %w", err)
	}

	return report, nil
}

func newRunID() string {
	return uuid.New().String()
}

func matchesAny(sig string, pool []string, threshold float64) bool {
	for _, other := range pool {
		if similarity.Ratio(sig, other) > threshold {
			return true
		}
	}
	return false
}

func groupPaths(group []catalog.Entry) []string {
	paths := make([]string, len(group))
	for i, e := range group {
		paths[i] = e.Key
	}
	return paths
}

// autoName derives a representative name for a cluster of filepaths: the
// mode of each path's processed basename, plus a random 5-character
// suffix, so repeated consolidation runs never collide on name.
func autoName(filepaths []string) (string, error) {
	if len(filepaths) == 0 {
		return withSuffix("Consolidated.Signature")
	}

	counts := make(map[string]int, len(filepaths))
	order := make([]string, 0, len(filepaths))
	for _, fp := range filepaths {
		name := processName(filepath.Base(fp))
		if _, seen := counts[name]; !seen {
			order = append(order, name)
		}
		counts[name]++
	}

	base := order[0]
	best := counts[base]
	for _, name := range order[1:] {
		if counts[name] > best {
			base = name
			best = counts[name]
		}
	}

	return withSuffix(base)
}

// processName splits a basename on '.'; names with more than four
// dot-segments keep only the first four, otherwise the final segment
// (the extension) is stripped.
func processName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 4 {
		return strings.Join(parts[:4], ".")
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func withSuffix(base string) (string, error) {
	suffix, err := randomSuffix(5)
	if err != nil {
		return "", err
	}
	return base + "." + suffix, nil
}

func randomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random suffix: %w", err)
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return string(out), nil
}
