// Package chunkhash reduces a chunk of bytes to a fixed-width digest.
package chunkhash

import (
	"encoding/binary"
	"encoding/hex"
	"sync"

	"github.com/corvid-labs/fuzzysig/internal/chunker"
)

// Digest computes the 32-bit polynomial digest of a chunk: a weak, fast
// hash that is sufficient because a file's signature concatenates many of
// them and the similarity metric tolerates sparse collisions.
func Digest(data []byte) uint32 {
	var h uint32
	for _, b := range data {
		h = h*31 + uint32(b)
	}
	return h
}

// Hex renders a digest as 8 lowercase hex characters, big-endian.
func Hex(d uint32) string {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], d)
	return hex.EncodeToString(buf[:])
}

// DigestHex is Digest followed by Hex, for the single-chunk (whole small
// file) signature path.
func DigestHex(data []byte) string {
	return Hex(Digest(data))
}

// DigestAll hashes every chunk concurrently but returns digests in the
// chunks' original order, since a signature's chunk digests must appear in
// chunk order regardless of how hashing was scheduled.
func DigestAll(chunks []chunker.Chunk) []string {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) == 1 {
		return []string{DigestHex(chunks[0].Data)}
	}

	out := make([]string, len(chunks))
	var wg sync.WaitGroup
	wg.Add(len(chunks))
	for i, c := range chunks {
		go func(i int, data []byte) {
			defer wg.Done()
			out[i] = DigestHex(data)
		}(i, c.Data)
	}
	wg.Wait()
	return out
}
