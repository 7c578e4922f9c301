package rolling

import "testing"

func TestUpdateDeterministic(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog, repeatedly, to fill the window past 64 bytes and then some more for good measure")

	f1 := New()
	f2 := New()

	var last1, last2 uint64
	for _, b := range data {
		last1 = f1.Update(b)
		last2 = f2.Update(b)
	}

	if last1 != last2 {
		t.Fatalf("two independent runs diverged: %d != %d", last1, last2)
	}
}

func TestUpdateBounded(t *testing.T) {
	f := New()
	for i := 0; i < 10000; i++ {
		h := f.Update(byte(i))
		if h >= modulus {
			t.Fatalf("fingerprint %d exceeds modulus", h)
		}
	}
}

func TestWindowEviction(t *testing.T) {
	// Feeding the same byte Window+1 times should produce the same
	// fingerprint as feeding it exactly Window times, since the window
	// only ever holds Window copies of that byte either way.
	f1 := New()
	for i := 0; i < Window; i++ {
		f1.Update('a')
	}

	f2 := New()
	for i := 0; i < Window+1; i++ {
		f2.Update('a')
	}

	if f1.Value() != f2.Value() {
		t.Fatalf("expected stable fingerprint once window is saturated with identical bytes")
	}
}

func TestIsBoundaryMatchesMask(t *testing.T) {
	f := New()
	for i := 0; i < 1000; i++ {
		f.Update(byte(i * 7))
		got := f.IsBoundary()
		want := f.Value()&boundaryMask == 0
		if got != want {
			t.Fatalf("IsBoundary() = %v, want %v", got, want)
		}
	}
}
