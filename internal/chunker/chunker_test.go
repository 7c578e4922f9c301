package chunker

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestCoverage(t *testing.T) {
	src := rand.New(rand.NewSource(1))
	data := make([]byte, 500*1024)
	src.Read(data)

	chunks := Split(data)

	var total int
	var rebuilt []byte
	for _, c := range chunks {
		total += len(c.Data)
		rebuilt = append(rebuilt, c.Data...)
	}

	if total != len(data) {
		t.Fatalf("coverage mismatch: got %d bytes, want %d", total, len(data))
	}
	if !bytes.Equal(rebuilt, data) {
		t.Fatal("chunks do not reconstruct the original buffer in order")
	}
}

func TestChunkSizeBounds(t *testing.T) {
	src := rand.New(rand.NewSource(2))
	data := make([]byte, 1024*1024)
	src.Read(data)

	chunks := Split(data)
	for i, c := range chunks {
		isLast := i == len(chunks)-1
		if len(c.Data) > MaxChunk {
			t.Fatalf("chunk %d exceeds MaxChunk: %d", i, len(c.Data))
		}
		if len(c.Data) < MinChunk && !isLast {
			t.Fatalf("non-final chunk %d is below MinChunk: %d", i, len(c.Data))
		}
	}
}

func TestSmallBufferYieldsSingleChunk(t *testing.T) {
	data := []byte("hello world")
	chunks := Split(data)
	if len(chunks) != 1 {
		t.Fatalf("expected small buffer to stay unsplit, got %d chunks", len(chunks))
	}
}

func TestEmptyBufferYieldsNoChunks(t *testing.T) {
	if chunks := Split(nil); len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(chunks))
	}
}

func TestLocalEditShiftsFewBoundaries(t *testing.T) {
	src := rand.New(rand.NewSource(3))
	data := make([]byte, 200*1024)
	src.Read(data)

	modified := make([]byte, len(data))
	copy(modified, data)
	modified[100000] ^= 0xFF

	a := Split(data)
	b := Split(modified)

	starts := func(chunks []Chunk) map[int]bool {
		m := make(map[int]bool, len(chunks))
		for _, c := range chunks {
			m[c.Start] = true
		}
		return m
	}

	sa, sb := starts(a), starts(b)
	var differing int
	for s := range sa {
		if !sb[s] {
			differing++
		}
	}
	for s := range sb {
		if !sa[s] {
			differing++
		}
	}

	// A single-byte edit should only disturb a small, bounded number of
	// boundaries near the edit, not the whole file.
	if differing > 8 {
		t.Fatalf("single-byte edit disturbed %d boundaries, expected a small constant", differing)
	}
}
