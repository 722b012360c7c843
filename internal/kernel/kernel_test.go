package kernel

import (
	"math"
	"math/rand"
	"testing"
)

const epsilon = 1e-4

func almostEqual(a, b, eps float32) bool {
	return math.Abs(float64(a-b)) < float64(eps)
}

// TestINT8EuclideanAgreement is scenario (A) of SPEC_FULL / spec.md §8.
// The 16-value pattern is repeated twice (D=32): 16 coordinates differ by
// 254, so each distance is 16 * 254^2 = 1032256.
func TestINT8EuclideanAgreement(t *testing.T) {
	row := []int8{127, 127, 0, 0, -127, -127, 0, 0, 0, 0, 0, 0, -127, -127, 127, 127,
		127, 127, 0, 0, -127, -127, 0, 0, 0, 0, 0, 0, -127, -127, 127, 127}
	query := []int8{-127, -127, 0, 0, 127, 127, 0, 0, 0, 0, 0, 0, 127, 127, -127, -127,
		-127, -127, 0, 0, 127, 127, 0, 0, 0, 0, 0, 0, 127, 127, -127, -127}

	const m = 8
	stored := make([]int8, m*len(row))
	for i := 0; i < m; i++ {
		for c, v := range row {
			stored[c*m+i] = v
		}
	}

	out, err := DistanceINT8(SquaredEuclidean, stored, m, query, 1, len(row))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < m; i++ {
		if out[i] != 1032256.0 {
			t.Errorf("row %d: got %v, want 1032256.0", i, out[i])
		}
	}

	scalar, err := DistanceScalarINT8(SquaredEuclidean, row, query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scalar != 1032256.0 {
		t.Errorf("scalar got %v, want 1032256.0", scalar)
	}
}

// TestFP32SquaredEuclidean is scenario (B).
func TestFP32SquaredEuclidean(t *testing.T) {
	x := make([]float32, 11)
	y := make([]float32, 11)
	for i := range y {
		y[i] = float32(i) * 0.1
	}

	got, err := DistanceScalarFP32(SquaredEuclidean, x, y)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(got, 3.85, 1e-4) {
		t.Errorf("got %v, want 3.85", got)
	}
}

// TestMipsSphericalInjection is scenario (C).
func TestMipsSphericalInjection(t *testing.T) {
	x := make([]float32, 11)
	y := make([]float32, 11)
	for i := range y {
		y[i] = float32(i) * 0.1
	}
	uVal := float32(0.68)
	e2 := (uVal / 15.5) * (uVal / 15.5)

	got, err := MipsSquaredEuclideanSpherical(x, y, e2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(got, 0.00742372544, 1e-5) {
		t.Errorf("got %v, want 0.00742372544", got)
	}
}

// TestBatchedVsScalarAgreementFP32 is testable property 2 for FP32.
func TestBatchedVsScalarAgreementFP32(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	sizes := []int{1, 2, 3, 4, 8, 16, 32, 64, 128}

	for trial := 0; trial < 20; trial++ {
		d := 1 + rng.Intn(260)
		for _, m := range sizes {
			for _, n := range sizes {
				stored := randFP32BlockColMajor(rng, m, d)
				queries := randFP32RowMajor(rng, n, d)

				for _, metric := range []Metric{Euclidean, SquaredEuclidean, InnerProduct, MinusInnerProduct} {
					batched, err := DistanceFP32(metric, stored, m, queries, n, d)
					if err != nil {
						t.Fatalf("batched error (m=%d n=%d d=%d): %v", m, n, d, err)
					}
					for i := 0; i < m; i++ {
						for j := 0; j < n; j++ {
							a := extractColMajorRow(stored, m, d, i)
							b := queries[j*d : (j+1)*d]
							scalar, err := DistanceScalarFP32(metric, a, b)
							if err != nil {
								t.Fatalf("scalar error: %v", err)
							}
							if !almostEqual(batched[i*n+j], scalar, 1e-3) {
								t.Fatalf("mismatch m=%d n=%d d=%d i=%d j=%d metric=%d: batched=%v scalar=%v",
									m, n, d, i, j, metric, batched[i*n+j], scalar)
							}
						}
					}
				}
			}
		}
	}
}

// TestBatchedVsScalarAgreementINT4 is testable property 2 for packed INT4.
func TestBatchedVsScalarAgreementINT4(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	sizes := []int{1, 2, 4, 8, 16}

	for trial := 0; trial < 10; trial++ {
		d := 2 * (1 + rng.Intn(64))
		for _, m := range sizes {
			for _, n := range sizes {
				stored := randInt4PackedColMajor(rng, m, d)
				queries := randInt4PackedRowMajor(rng, n, d)
				bytesPerVec := d / 2

				for _, metric := range []Metric{SquaredEuclidean, InnerProduct} {
					batched, err := DistanceINT4Packed(metric, stored, m, queries, n, d)
					if err != nil {
						t.Fatalf("batched error: %v", err)
					}
					for i := 0; i < m; i++ {
						for j := 0; j < n; j++ {
							a := extractColMajorBytes(stored, m, bytesPerVec, i)
							b := queries[j*bytesPerVec : (j+1)*bytesPerVec]
							scalar, err := DistanceScalarINT4Packed(metric, a, b)
							if err != nil {
								t.Fatalf("scalar error: %v", err)
							}
							if batched[i*n+j] != scalar {
								t.Fatalf("mismatch m=%d n=%d d=%d i=%d j=%d: batched=%v scalar=%v",
									m, n, d, i, j, batched[i*n+j], scalar)
							}
						}
					}
				}
			}
		}
	}
}

func TestPackUnpackInt4RoundTrip(t *testing.T) {
	values := []int8{-8, -1, 0, 1, 7, -4, 3, 2}
	packed, err := PackInt4(values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := UnpackInt4(packed)
	for i := range values {
		if got[i] != values[i] {
			t.Errorf("index %d: got %v want %v", i, got[i], values[i])
		}
	}
}

func TestInnerProductSparse(t *testing.T) {
	a := TransformSparseFormat([]int32{5, 1, 3}, []float32{1, 2, 3})
	b := TransformSparseFormat([]int32{1, 3, 9}, []float32{10, 20, 30})
	// overlap on index 1 (2*10=20) and index 3 (3*20=60)
	got := InnerProductSparse(a, b)
	if !almostEqual(got, 80, 1e-6) {
		t.Errorf("got %v want 80", got)
	}
}

func TestTransformSparseFormatDedup(t *testing.T) {
	v := TransformSparseFormat([]int32{3, 1, 3}, []float32{1, 2, 4})
	if len(v.Indices) != 2 {
		t.Fatalf("expected 2 distinct indices, got %d", len(v.Indices))
	}
	if v.Indices[0] != 1 || v.Values[0] != 2 {
		t.Errorf("index 1 wrong: %+v", v)
	}
	if v.Indices[1] != 3 || v.Values[1] != 5 {
		t.Errorf("index 3 wrong: %+v", v)
	}
}

func randFP32RowMajor(rng *rand.Rand, n, d int) []float32 {
	out := make([]float32, n*d)
	for i := range out {
		out[i] = rng.Float32()*2 - 1
	}
	return out
}

func randFP32BlockColMajor(rng *rand.Rand, m, d int) []float32 {
	if m == 1 {
		return randFP32RowMajor(rng, 1, d)
	}
	out := make([]float32, m*d)
	for i := range out {
		out[i] = rng.Float32()*2 - 1
	}
	return out
}

func extractColMajorRow(stored []float32, m, d, i int) []float32 {
	if m == 1 {
		return stored
	}
	out := make([]float32, d)
	for c := 0; c < d; c++ {
		out[c] = stored[c*m+i]
	}
	return out
}

func randInt4PackedRowMajor(rng *rand.Rand, n, d int) []byte {
	out := make([]byte, n*d/2)
	rng.Read(out)
	return out
}

func randInt4PackedColMajor(rng *rand.Rand, m, d int) []byte {
	out := make([]byte, m*d/2)
	rng.Read(out)
	return out
}

func extractColMajorBytes(stored []byte, m, bytesPerVec, i int) []byte {
	if m == 1 {
		return stored
	}
	out := make([]byte, bytesPerVec)
	for bp := 0; bp < bytesPerVec; bp++ {
		out[bp] = stored[bp*m+i]
	}
	return out
}
