// Package chunker implements content-defined chunking of a byte buffer
// using a rolling fingerprint's boundary predicate.
package chunker

import "github.com/corvid-labs/fuzzysig/internal/rolling"

// Default size bounds, in bytes.
const (
	MinChunk = 2048
	MaxChunk = 65536
)

// Chunk is a contiguous slice of a byte buffer.
type Chunk struct {
	Start int
	Data  []byte
}

// Split partitions data into an ordered, non-overlapping sequence of chunks
// covering it exactly. Every chunk except possibly the last satisfies
// MinChunk <= len(Data) <= MaxChunk; the last chunk may be shorter than
// MinChunk if it is the tail remainder.
//
// The rolling fingerprint runs continuously across the whole buffer and is
// never reset at a cut point, which is what makes boundaries shift only
// near a local edit rather than across the whole file.
func Split(data []byte) []Chunk {
	return SplitWithBounds(data, MinChunk, MaxChunk)
}

// SplitWithBounds is Split with caller-supplied size bounds, used by tests
// and by callers that need non-default chunk granularity.
func SplitWithBounds(data []byte, minChunk, maxChunk int) []Chunk {
	var chunks []Chunk

	fp := rolling.New()
	start := 0
	n := len(data)

	for i := 0; i < n; i++ {
		fp.Update(data[i])
		length := i - start + 1

		if length >= minChunk && (fp.IsBoundary() || length >= maxChunk) {
			chunks = append(chunks, Chunk{Start: start, Data: data[start : i+1]})
			start = i + 1
		}
	}

	if start < n {
		chunks = append(chunks, Chunk{Start: start, Data: data[start:n]})
	}

	return chunks
}
