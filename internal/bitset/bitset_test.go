package bitset

import (
	"math/rand"
	"testing"
)

// reference is a plain bool-slice bitset used as the STL-bitset equivalent.
type reference []bool

func newReference(n int) reference { return make(reference, n) }

func refAnd(a, b reference) reference {
	out := newReference(len(a))
	for i := range a {
		out[i] = a[i] && b[i]
	}
	return out
}
func refOr(a, b reference) reference {
	out := newReference(len(a))
	for i := range a {
		out[i] = a[i] || b[i]
	}
	return out
}
func refXor(a, b reference) reference {
	out := newReference(len(a))
	for i := range a {
		out[i] = a[i] != b[i]
	}
	return out
}
func refAndNot(a, b reference) reference {
	out := newReference(len(a))
	for i := range a {
		out[i] = a[i] && !b[i]
	}
	return out
}
func refNot(a reference) reference {
	out := newReference(len(a))
	for i := range a {
		out[i] = !a[i]
	}
	return out
}
func refCardinality(a reference) int {
	c := 0
	for _, v := range a {
		if v {
			c++
		}
	}
	return c
}

func toFixed(r reference) *FixedBitset {
	fb := NewFixedBitset(len(r))
	for i, v := range r {
		if v {
			_ = fb.Set(i)
		}
	}
	return fb
}

func equalsReference(t *testing.T, fb *FixedBitset, r reference) {
	t.Helper()
	for i, v := range r {
		if fb.Test(i) != v {
			t.Fatalf("bit %d: got %v want %v", i, fb.Test(i), v)
		}
	}
}

// TestFixedBitsetEquivalence is testable property 1.
func TestFixedBitsetEquivalence(t *testing.T) {
	sizes := []int{1, 32, 64, 512, 1504, 2528, 3552}
	rng := rand.New(rand.NewSource(7))

	for _, n := range sizes {
		for _, density := range []float64{0.01, 0.3, 0.5, 0.9} {
			ra := newReference(n)
			rb := newReference(n)
			for i := 0; i < n; i++ {
				ra[i] = rng.Float64() < density
				rb[i] = rng.Float64() < density
			}
			a := toFixed(ra)
			b := toFixed(rb)

			andRes, _ := And(a, b)
			equalsReference(t, andRes, refAnd(ra, rb))
			orRes, _ := Or(a, b)
			equalsReference(t, orRes, refOr(ra, rb))
			xorRes, _ := Xor(a, b)
			equalsReference(t, xorRes, refXor(ra, rb))
			andNotRes, _ := AndNot(a, b)
			equalsReference(t, andNotRes, refAndNot(ra, rb))
			notRes := Not(a)
			equalsReference(t, notRes, refNot(ra))

			if andRes.Cardinality() != refCardinality(refAnd(ra, rb)) {
				t.Fatalf("n=%d density=%v: and cardinality mismatch", n, density)
			}

			andCard, _ := AndCardinality(a, b)
			orCard, _ := OrCardinality(a, b)
			xorCard, _ := XorCardinality(a, b)
			andNotAB, _ := AndNotCardinality(a, b)
			andNotBA, _ := AndNotCardinality(b, a)

			if xorCard != andNotAB+andNotBA {
				t.Fatalf("n=%d: xor_card(%d) != andnot(a,b)+andnot(b,a)(%d)", n, xorCard, andNotAB+andNotBA)
			}
			if xorCard != orCard-andCard {
				t.Fatalf("n=%d: xor_card(%d) != or_card-and_card(%d)", n, xorCard, orCard-andCard)
			}
		}
	}
}

// TestBitmapSetFlipRoundTrip is scenario (D).
func TestBitmapSetFlipRoundTrip(t *testing.T) {
	keys := []int{33, 66, 77, 100, 200, 300, 500, 1000, 2000, 3000, 4000,
		5000, 6000, 6100, 6200, 6300, 6400, 6410, 6420, 6430, 6440, 6450,
		6460, 6461, 6462, 6463, 6464, 6465, 6466, 6467, 6468, 7000, 8000,
		9000, 10000, 20000, 30000, 40000, 50000, 60000, 65535, 70000, 80000,
		90000, 100000, 131072, 131073, 200000, 300000, 400000, 500000, 1000000}
	if len(keys) != 52 {
		t.Fatalf("fixture must have 52 keys, has %d", len(keys))
	}

	bm := NewBitmap()
	for _, k := range keys {
		bm.Set(k)
	}

	cp := bm.Clone()

	// Reset an 11-key subset disjoint from the inserted keys: no bit changes.
	resetKeys := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	for _, k := range resetKeys {
		cp.Reset(k)
	}

	// Flip another disjoint 16-key subset (currently unset in cp).
	flipKeys := make([]int, 16)
	for i := range flipKeys {
		flipKeys[i] = 600000 + i
	}
	for _, k := range flipKeys {
		cp.Flip(k)
	}

	want := 52 - 0 + 16
	if got := cp.Cardinality(); got != want {
		t.Fatalf("cardinality: got %d want %d", got, want)
	}

	extracted := cp.Extract(nil)
	for i := 1; i < len(extracted); i++ {
		if extracted[i] <= extracted[i-1] {
			t.Fatalf("extract not strictly ascending at %d: %v", i, extracted)
		}
	}
}

func TestBitmapShrinkToFit(t *testing.T) {
	bm := NewBitmap()
	bm.Set(10)
	bm.Set(MaxSize + 10)
	bm.Reset(MaxSize + 10)
	if len(bm.buckets) != 2 {
		t.Fatalf("expected 2 buckets before shrink, got %d", len(bm.buckets))
	}
	bm.ShrinkToFit()
	if len(bm.buckets) != 1 {
		t.Fatalf("expected 1 bucket after shrink, got %d", len(bm.buckets))
	}
}

func TestBitmapAlignedOps(t *testing.T) {
	a := NewBitmap()
	a.Set(5)
	a.Set(MaxSize + 5)
	b := NewBitmap()
	b.Set(5)

	and := BitmapAnd(a, b)
	if and.Cardinality() != 1 || !and.Test(5) {
		t.Fatalf("unexpected and result: card=%d", and.Cardinality())
	}
	or := BitmapOr(a, b)
	if or.Cardinality() != 2 {
		t.Fatalf("unexpected or cardinality: %d", or.Cardinality())
	}
}
