package quantizer

import (
	"math"
	"math/rand"
	"testing"
)

func TestFeedRejectsEmptyBatch(t *testing.T) {
	q := New(Width8, true, false)
	if q.Feed(nil) {
		t.Fatal("expected Feed to reject an empty batch")
	}
}

func TestTrainRejectsEmptyHistogram(t *testing.T) {
	q := New(Width8, true, false)
	if err := q.Train(); err == nil {
		t.Fatal("expected Train to fail before any Feed")
	}
}

// TestQuantizerRoundTripBound is testable property 4.
func TestQuantizerRoundTripBound(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, width := range []Width{Width8, Width16} {
		for _, signed := range []bool{true, false} {
			q := New(width, signed, !signed)
			// Width16's natural histogram (derived from its 65534-wide code
			// range) is far larger than this test needs to resolve.
			// SetHistogramBins ignores counts at or below the code range, so
			// cap it just above that range to keep the threshold search short.
			if width == Width16 {
				q.SetHistogramBins(1 << 16)
			}
			vec := make([]float32, 4096)
			for i := range vec {
				vec[i] = float32(rng.NormFloat64() * 10)
			}
			if !q.Feed(vec) {
				t.Fatalf("width=%d signed=%v: feed failed", width, signed)
			}
			if err := q.Train(); err != nil {
				t.Fatalf("width=%d signed=%v: train failed: %v", width, signed, err)
			}
			if q.Scale() <= 0 {
				t.Fatalf("width=%d signed=%v: scale must be positive, got %v", width, signed, q.Scale())
			}

			code, err := q.Encode(vec)
			if err != nil {
				t.Fatalf("encode failed: %v", err)
			}
			decoded, err := q.Decode(code, len(vec))
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}

			bound := 1/q.Scale() + 1e-2
			for i := range vec {
				diff := math.Abs(float64(decoded[i] - vec[i]))
				clippedRegion := math.Abs(float64(vec[i])) > 30 // beyond ~3 sigma, clipping dominates
				if diff > bound && !clippedRegion {
					t.Fatalf("width=%d signed=%v idx=%d: |decode(encode(x))-x|=%v exceeds bound %v",
						width, signed, i, diff, bound)
				}
			}
		}
	}
}

func TestQuantizerInt4PackedRoundTrip(t *testing.T) {
	q := New(Width4, true, false)
	vec := make([]float32, 512)
	rng := rand.New(rand.NewSource(4))
	for i := range vec {
		vec[i] = float32(rng.NormFloat64())
	}
	if !q.Feed(vec) {
		t.Fatal("feed failed")
	}
	if err := q.Train(); err != nil {
		t.Fatalf("train failed: %v", err)
	}
	code, err := q.Encode(vec)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(code) != len(vec)/2 {
		t.Fatalf("expected %d packed bytes, got %d", len(vec)/2, len(code))
	}
	decoded, err := q.Decode(code, len(vec))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded) != len(vec) {
		t.Fatalf("expected %d decoded elements, got %d", len(vec), len(decoded))
	}
}

func TestMakeSmoothNoZeros(t *testing.T) {
	p := []float64{0, 5, 0, 3, 2, 0}
	q := []float64{1, 0, 0, 4, 2, 3}
	sp, sq := makeSmooth(p), makeSmooth(q)
	for i, v := range sp {
		if v <= 0 {
			t.Fatalf("smoothed p has non-positive bin at %d: %v", i, v)
		}
	}
	for i, v := range sq {
		if v <= 0 {
			t.Fatalf("smoothed q has non-positive bin at %d: %v", i, v)
		}
	}
}

func TestKlDivergenceMaxOnZeroBin(t *testing.T) {
	p := []float64{0.5, 0, 0.5}
	q := []float64{0.3, 0.4, 0.3}
	if got := klDivergence(p, q); got != math.MaxFloat64 {
		t.Fatalf("expected klDivergence to report MaxFloat64 on a zero p bin, got %v", got)
	}
}

func TestBiasedTrainProducesAsymmetricHistogram(t *testing.T) {
	q := New(Width8, true, true)
	vec := make([]float32, 2048)
	rng := rand.New(rand.NewSource(7))
	for i := range vec {
		vec[i] = float32(20 + rng.NormFloat64()*2) // positive-only cluster
	}
	if !q.Feed(vec) {
		t.Fatal("feed failed")
	}
	if err := q.Train(); err != nil {
		t.Fatalf("train failed: %v", err)
	}
	if q.Bias() == 0 {
		t.Fatal("expected a non-zero bias for a biased, positive-only distribution")
	}
	code, err := q.Encode(vec)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := q.Decode(code, len(vec))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	bound := 1/q.Scale() + 1e-2
	for i := range vec {
		if diff := math.Abs(float64(decoded[i] - vec[i])); diff > bound {
			t.Fatalf("idx=%d: |decode(encode(x))-x|=%v exceeds bound %v", i, diff, bound)
		}
	}
}
