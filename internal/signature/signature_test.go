package signature

import (
	"testing"

	"github.com/corvid-labs/fuzzysig/internal/chunkhash"
)

func TestSmallFileSingleChunk(t *testing.T) {
	sig, ok := Build([]byte("hello world"))
	if !ok {
		t.Fatal("expected a signature for a non-empty small buffer")
	}
	want := chunkhash.DigestHex([]byte("hello world"))
	if sig != want {
		t.Fatalf("got %q, want %q", sig, want)
	}
	if len(sig) != 8 {
		t.Fatalf("expected 8-char signature, got %d chars", len(sig))
	}
}

func TestNormalizationEquivalence(t *testing.T) {
	a := []byte("a\r\nb  c\n")
	b := []byte("a b c")

	sigA, okA := Build(a)
	sigB, okB := Build(b)
	if !okA || !okB {
		t.Fatal("expected both buffers to produce a signature")
	}
	if sigA != sigB {
		t.Fatalf("normalization mismatch: %q != %q", sigA, sigB)
	}
}

func TestEmptyFileYieldsNoSignature(t *testing.T) {
	if _, ok := Build(nil); ok {
		t.Fatal("expected no signature for empty input")
	}
	if _, ok := Build([]byte{}); ok {
		t.Fatal("expected no signature for empty input")
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	data := []byte("line one\r\nline   two\r\n\r\nline three")
	once := Normalize(data)
	twice := Normalize(once)
	if string(once) != string(twice) {
		t.Fatalf("normalization is not idempotent: %q != %q", once, twice)
	}
}

func TestNonUTF8PassesThrough(t *testing.T) {
	data := []byte{0xff, 0xfe, 0x00, 0x01}
	if got := Normalize(data); string(got) != string(data) {
		t.Fatalf("expected non-UTF8 data to pass through unchanged, got %v", got)
	}
}

func TestDeterministic(t *testing.T) {
	data := make([]byte, 300*1024)
	for i := range data {
		data[i] = byte(i * 37)
	}

	sig1, _ := Build(data)
	sig2, _ := Build(data)
	if sig1 != sig2 {
		t.Fatal("two independent runs over the same buffer diverged")
	}
}

func TestFormatGrid(t *testing.T) {
	sig := "aaaaaaaabbbbbbbbccccccccdddddddd" + "eeeeeeee"
	formatted := Format(sig)
	want := "aaaaaaaa bbbbbbbb cccccccc dddddddd\neeeeeeee"
	if formatted != want {
		t.Fatalf("got:\n%s\nwant:\n%s", formatted, want)
	}
}

func TestChunkCount(t *testing.T) {
	if ChunkCount("") != 0 {
		t.Fatal("empty signature should have zero chunks")
	}
	if ChunkCount("aaaaaaaabbbbbbbb") != 2 {
		t.Fatal("expected two 8-char digests")
	}
}
