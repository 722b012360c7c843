package bitset

import "sort"

// MaxSize is the number of bits per page bucket (§4.8 / §3).
const MaxSize = 65536

// Bitmap is a page-bucketed sparse bitmap: buckets of MaxSize bits, absent
// until first write. Any bit index is representable (Go ints are at least
// 64-bit), unlike FixedBitset which is sized up-front.
type Bitmap struct {
	buckets map[int]*FixedBitset
}

// NewBitmap returns an empty sparse bitmap.
func NewBitmap() *Bitmap {
	return &Bitmap{buckets: make(map[int]*FixedBitset)}
}

func bucketOf(i int) (bucket, offset int) {
	return i / MaxSize, i % MaxSize
}

// Set sets bit i, allocating its bucket on first write.
func (m *Bitmap) Set(i int) {
	b, off := bucketOf(i)
	fb, ok := m.buckets[b]
	if !ok {
		fb = NewFixedBitset(MaxSize)
		m.buckets[b] = fb
	}
	_ = fb.Set(off)
}

// Reset clears bit i. A reset on an unallocated bucket is a no-op.
func (m *Bitmap) Reset(i int) {
	b, off := bucketOf(i)
	if fb, ok := m.buckets[b]; ok {
		_ = fb.Reset(off)
	}
}

// Flip toggles bit i, allocating its bucket on first touch.
func (m *Bitmap) Flip(i int) {
	b, off := bucketOf(i)
	fb, ok := m.buckets[b]
	if !ok {
		fb = NewFixedBitset(MaxSize)
		m.buckets[b] = fb
	}
	_ = fb.Flip(off)
}

// Test reports whether bit i is set.
func (m *Bitmap) Test(i int) bool {
	b, off := bucketOf(i)
	fb, ok := m.buckets[b]
	if !ok {
		return false
	}
	return fb.Test(off)
}

// Clone returns an independent deep copy.
func (m *Bitmap) Clone() *Bitmap {
	out := NewBitmap()
	for k, fb := range m.buckets {
		out.buckets[k] = fb.Clone()
	}
	return out
}

// ShrinkToFit drops buckets above the highest bucket index that still has at
// least one set bit, and drops any all-zero bucket entirely, matching §4.8's
// "an empty bucket consumes no space".
func (m *Bitmap) ShrinkToFit() {
	for k, fb := range m.buckets {
		if fb.TestNone() {
			delete(m.buckets, k)
		}
	}
}

func (m *Bitmap) bucketKeys(other *Bitmap) []int {
	seen := make(map[int]struct{})
	for k := range m.buckets {
		seen[k] = struct{}{}
	}
	if other != nil {
		for k := range other.buckets {
			seen[k] = struct{}{}
		}
	}
	keys := make([]int, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	return keys
}

func (m *Bitmap) bucketOrEmpty(k int) *FixedBitset {
	if fb, ok := m.buckets[k]; ok {
		return fb
	}
	return NewFixedBitset(MaxSize)
}

// BitmapAnd, BitmapOr, BitmapXor, BitmapAndNot combine two sparse bitmaps,
// transparently treating an absent bucket on either side as all-zero
// ("align-pad both sides", §4.8).
func BitmapAnd(a, b *Bitmap) *Bitmap {
	out := NewBitmap()
	for _, k := range a.bucketKeys(b) {
		fb, _ := And(a.bucketOrEmpty(k), b.bucketOrEmpty(k))
		if fb.TestAny() {
			out.buckets[k] = fb
		}
	}
	return out
}

func BitmapOr(a, b *Bitmap) *Bitmap {
	out := NewBitmap()
	for _, k := range a.bucketKeys(b) {
		fb, _ := Or(a.bucketOrEmpty(k), b.bucketOrEmpty(k))
		if fb.TestAny() {
			out.buckets[k] = fb
		}
	}
	return out
}

func BitmapXor(a, b *Bitmap) *Bitmap {
	out := NewBitmap()
	for _, k := range a.bucketKeys(b) {
		fb, _ := Xor(a.bucketOrEmpty(k), b.bucketOrEmpty(k))
		if fb.TestAny() {
			out.buckets[k] = fb
		}
	}
	return out
}

func BitmapAndNot(a, b *Bitmap) *Bitmap {
	out := NewBitmap()
	for _, k := range a.bucketKeys(b) {
		fb, _ := AndNot(a.bucketOrEmpty(k), b.bucketOrEmpty(k))
		if fb.TestAny() {
			out.buckets[k] = fb
		}
	}
	return out
}

// BitmapNot complements a over the bucket range it currently occupies (there
// is no fixed universe size for a sparse bitmap, so NOT is scoped to the
// buckets already touched).
func BitmapNot(a *Bitmap) *Bitmap {
	out := NewBitmap()
	for k, fb := range a.buckets {
		out.buckets[k] = Not(fb)
	}
	return out
}

// Cardinality returns the total popcount across all buckets.
func (m *Bitmap) Cardinality() int {
	count := 0
	for _, fb := range m.buckets {
		count += fb.Cardinality()
	}
	return count
}

func pairCardinality(a, b *Bitmap, op func(x, y *FixedBitset) (int, error)) int {
	count := 0
	for _, k := range a.bucketKeys(b) {
		c, _ := op(a.bucketOrEmpty(k), b.bucketOrEmpty(k))
		count += c
	}
	return count
}

func BitmapAndCardinality(a, b *Bitmap) int    { return pairCardinality(a, b, AndCardinality) }
func BitmapOrCardinality(a, b *Bitmap) int     { return pairCardinality(a, b, OrCardinality) }
func BitmapXorCardinality(a, b *Bitmap) int    { return pairCardinality(a, b, XorCardinality) }
func BitmapAndNotCardinality(a, b *Bitmap) int { return pairCardinality(a, b, AndNotCardinality) }

// TestAll reports whether every bit across allocated buckets is set (an
// empty bitmap vacuously satisfies this, matching §4.8's STL-bitset parity
// requirement over whatever range has been touched).
func (m *Bitmap) TestAll() bool {
	for _, fb := range m.buckets {
		if !fb.TestAll() {
			return false
		}
	}
	return true
}

// TestAny reports whether any bit is set.
func (m *Bitmap) TestAny() bool {
	for _, fb := range m.buckets {
		if fb.TestAny() {
			return true
		}
	}
	return false
}

// TestNone reports whether no bit is set.
func (m *Bitmap) TestNone() bool { return !m.TestAny() }

// Extract appends the set bit indices, in ascending order, to out.
func (m *Bitmap) Extract(out []int) []int {
	keys := make([]int, 0, len(m.buckets))
	for k := range m.buckets {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		fb := m.buckets[k]
		local := fb.Extract(nil)
		for _, idx := range local {
			out = append(out, k*MaxSize+idx)
		}
	}
	return out
}
