// Package signature normalizes file bytes, drives the chunker and chunk
// hasher, and assembles the resulting digests into a file signature.
package signature

import (
	"strings"
	"unicode/utf8"

	"github.com/corvid-labs/fuzzysig/internal/chunker"
	"github.com/corvid-labs/fuzzysig/internal/chunkhash"
)

// Normalize applies the wire-relevant normalization rule: if data decodes
// as UTF-8 text, CRLF becomes LF and then runs of whitespace collapse to a
// single space (the same whitespace class strings.Fields splits on),
// before being re-encoded as UTF-8. Non-UTF-8 data passes through
// unmodified. The rule is idempotent: normalizing twice is the same as
// normalizing once.
func Normalize(data []byte) []byte {
	if !utf8.Valid(data) {
		return data
	}

	text := string(data)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	fields := strings.Fields(text)
	return []byte(strings.Join(fields, " "))
}

// Build computes the signature for a normalized-on-the-fly byte buffer.
// Buffers shorter than chunker.MinChunk produce a single-chunk signature;
// empty buffers produce no signature (ok is false).
func Build(data []byte) (sig string, ok bool) {
	if len(data) == 0 {
		return "", false
	}

	normalized := Normalize(data)
	if len(normalized) == 0 {
		return "", false
	}

	if len(normalized) < chunker.MinChunk {
		return chunkhash.DigestHex(normalized), true
	}

	chunks := chunker.Split(normalized)
	digests := chunkhash.DigestAll(chunks)
	return strings.Join(digests, ""), true
}

// Format renders a signature as a human-readable grid: 8-char digest
// groups, four groups per row, matching the reference tool's
// show_signature layout.
func Format(sig string) string {
	if sig == "" {
		return ""
	}

	var rows []string
	for i := 0; i < len(sig); i += 32 {
		end := i + 32
		if end > len(sig) {
			end = len(sig)
		}
		row := sig[i:end]

		var groups []string
		for j := 0; j < len(row); j += 8 {
			gEnd := j + 8
			if gEnd > len(row) {
				gEnd = len(row)
			}
			groups = append(groups, row[j:gEnd])
		}
		rows = append(rows, strings.Join(groups, " "))
	}
	return strings.Join(rows, "\n")
}

// ChunkCount reports how many 8-char digests a signature contains.
func ChunkCount(sig string) int {
	if sig == "" {
		return 0
	}
	return len(sig) / 8
}
