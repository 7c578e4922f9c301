// Package rolling implements the sliding-window polynomial fingerprint used
// to find content-defined chunk boundaries.
package rolling

// Window is the number of trailing bytes the fingerprint hashes over.
const Window = 64

// modulus is the Mersenne prime 2^61 - 1.
const modulus = (uint64(1) << 61) - 1

const base = 256

// boundaryMask selects the low 13 bits of the fingerprint.
const boundaryMask = (uint64(1) << 13) - 1

// multiplier is base^(Window-1) mod modulus, precomputed once.
var multiplier = powMod(base, Window-1, modulus)

func powMod(base, exp, mod uint64) uint64 {
	result := uint64(1)
	base %= mod
	for exp > 0 {
		if exp&1 == 1 {
			result = mulMod(result, base, mod)
		}
		base = mulMod(base, base, mod)
		exp >>= 1
	}
	return result
}

// mulMod computes (a*b) mod m without overflowing uint64, since both
// operands are bounded by 2^61-1 and a naive 64x64 multiply can overflow.
func mulMod(a, b, m uint64) uint64 {
	var result uint64
	a %= m
	for b > 0 {
		if b&1 == 1 {
			result = (result + a) % m
		}
		a = (a * 2) % m
		b >>= 1
	}
	return result
}

// Fingerprint maintains a rolling polynomial hash over the last Window
// bytes fed to it via Update. It is not safe for concurrent use; each
// chunking task owns its own instance.
type Fingerprint struct {
	hash   uint64
	window [Window]byte
	filled int // number of valid bytes in window, caps at Window
	head   int // index of the oldest byte in window
}

// New returns a Fingerprint with an empty window.
func New() *Fingerprint {
	return &Fingerprint{}
}

// Update advances the window by one byte and returns the new fingerprint.
// If the window was full, the byte that entered Window steps ago is
// evicted first (FIFO), matching the eviction order required by the
// canonical Mersenne-prime variant.
func (f *Fingerprint) Update(b byte) uint64 {
	if f.filled == Window {
		oldest := f.window[f.head]
		f.hash = (f.hash + modulus - mulMod(uint64(oldest), multiplier, modulus)) % modulus
		f.window[f.head] = b
		f.head = (f.head + 1) % Window
	} else {
		f.window[f.head+f.filled] = b
		f.filled++
	}

	f.hash = (mulMod(f.hash, base, modulus) + uint64(b)) % modulus
	return f.hash
}

// IsBoundary reports whether the current fingerprint marks a chunk
// boundary: the low 13 bits of the fingerprint are all zero.
func (f *Fingerprint) IsBoundary() bool {
	return f.hash&boundaryMask == 0
}

// Value returns the current fingerprint without advancing the window.
func (f *Fingerprint) Value() uint64 {
	return f.hash
}
