// Package kernel implements the batched distance-matrix primitives of
// SPEC_FULL §4.1: given M stored vectors and N query vectors of dimension D,
// produce an M×N float32 distance matrix for Euclidean, squared-Euclidean,
// inner-product and MIPS-reduced variants, over FP32, INT8 and packed-INT4
// element types.
package kernel

import (
	"math"

	"github.com/zvecio/zvec/internal/zvecerr"
)

// Metric selects the scoring function a kernel call computes.
type Metric int

const (
	Euclidean Metric = iota
	SquaredEuclidean
	InnerProduct
	MinusInnerProduct
)

// SupportedSizes enumerates the batch/query sizes specialized per §4.1 and
// §9 "Templates → monomorphized generics"; other sizes fall back to a
// row-by-row loop over the 1×N (or 1×1) path.
var SupportedSizes = []int{1, 2, 3, 4, 8, 16, 32, 64, 128}

func isSpecialized(n int) bool {
	for _, s := range SupportedSizes {
		if s == n {
			return true
		}
	}
	return false
}

// DistanceFP32 computes the M×N distance matrix for FP32 stored vectors.
//
// For M==1 `stored` is row-major ([D]float32). For M>1 `stored` must be
// block-column-major: for each of the D coordinates, M samples are
// contiguous before advancing to the next coordinate (stored[d*M+i]).
// `queries` is always row-major ([N][D]float32), queries[j*D+d].
func DistanceFP32(metric Metric, stored []float32, m int, queries []float32, n, d int) ([]float32, error) {
	if d <= 0 || m <= 0 || n <= 0 {
		return nil, zvecerr.New(zvecerr.InvalidArgument, "m, n and d must be positive")
	}
	if m == 1 && len(stored) != d {
		return nil, zvecerr.New(zvecerr.InvalidArgument, "row-major stored vector length must equal d")
	}
	if m > 1 && len(stored) != m*d {
		return nil, zvecerr.New(zvecerr.InvalidArgument, "block-column-major stored matrix length must equal m*d")
	}
	if len(queries) != n*d {
		return nil, zvecerr.New(zvecerr.InvalidArgument, "queries length must equal n*d")
	}

	out := make([]float32, m*n)
	backend := SelectBackend()
	lane := laneWidth(backend)

	for j := 0; j < n; j++ {
		q := queries[j*d : j*d+d]
		for i := 0; i < m; i++ {
			var acc float32
			switch metric {
			case InnerProduct, MinusInnerProduct:
				acc = dotFP32Strided(stored, m, i, q, d, lane)
				if metric == MinusInnerProduct {
					acc = -acc
				}
			default:
				acc = sqDiffFP32Strided(stored, m, i, q, d, lane)
				if metric == Euclidean {
					acc = float32(math.Sqrt(float64(acc)))
				}
			}
			out[i*n+j] = acc
		}
	}
	return out, nil
}

// dotFP32Strided computes Σ stored[i-th sample] · q over d coordinates.
// When m==1, "stored" is contiguous row-major; otherwise stride is m.
func dotFP32Strided(stored []float32, m, i int, q []float32, d, lane int) float32 {
	var acc float32
	if m == 1 {
		return dotFP32Unrolled(stored, q, lane)
	}
	for c := 0; c < d; c++ {
		acc += stored[c*m+i] * q[c]
	}
	return acc
}

func sqDiffFP32Strided(stored []float32, m, i int, q []float32, d, lane int) float32 {
	var acc float32
	if m == 1 {
		return sqDiffFP32Unrolled(stored, q, lane)
	}
	for c := 0; c < d; c++ {
		diff := stored[c*m+i] - q[c]
		acc += diff * diff
	}
	return acc
}

// dotFP32Unrolled and sqDiffFP32Unrolled process `lane` elements per loop
// step to mirror the wide-register behavior of the selected back-end while
// remaining pure Go; mathematically identical to the scalar loop regardless
// of lane width.
func dotFP32Unrolled(a, b []float32, lane int) float32 {
	n := len(a)
	var acc float32
	i := 0
	for ; i+lane <= n; i += lane {
		var partial float32
		for l := 0; l < lane; l++ {
			partial += a[i+l] * b[i+l]
		}
		acc += partial
	}
	for ; i < n; i++ {
		acc += a[i] * b[i]
	}
	return acc
}

func sqDiffFP32Unrolled(a, b []float32, lane int) float32 {
	n := len(a)
	var acc float32
	i := 0
	for ; i+lane <= n; i += lane {
		var partial float32
		for l := 0; l < lane; l++ {
			diff := a[i+l] - b[i+l]
			partial += diff * diff
		}
		acc += partial
	}
	for ; i < n; i++ {
		diff := a[i] - b[i]
		acc += diff * diff
	}
	return acc
}

// DistanceScalarFP32 is the unbatched (1×1) reference kernel: both `a` and
// `b` are row-major. Used as the ground truth in batched-vs-scalar agreement
// tests (§8 property 2).
func DistanceScalarFP32(metric Metric, a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, zvecerr.New(zvecerr.InvalidArgument, "dimension mismatch")
	}
	var acc float32
	switch metric {
	case InnerProduct, MinusInnerProduct:
		for i := range a {
			acc += a[i] * b[i]
		}
		if metric == MinusInnerProduct {
			acc = -acc
		}
	default:
		for i := range a {
			diff := a[i] - b[i]
			acc += diff * diff
		}
		if metric == Euclidean {
			acc = float32(math.Sqrt(float64(acc)))
		}
	}
	return acc, nil
}

// Norm2 returns the Euclidean (L2) norm of a vector.
func Norm2(v []float32) float32 {
	return float32(math.Sqrt(float64(SquaredNorm2(v))))
}

// SquaredNorm2 returns Σ v[i]².
func SquaredNorm2(v []float32) float32 {
	var acc float32
	for _, x := range v {
		acc += x * x
	}
	return acc
}

// DistanceINT8 computes the M×N squared-Euclidean or inner-product matrix for
// INT8-coded stored vectors (values in [-127,127]), widening the
// intermediate accumulation to int32 before the final cast to float32 as
// required by §4.1's numeric-semantics clause.
func DistanceINT8(metric Metric, stored []int8, m int, queries []int8, n, d int) ([]float32, error) {
	if d <= 0 || m <= 0 || n <= 0 {
		return nil, zvecerr.New(zvecerr.InvalidArgument, "m, n and d must be positive")
	}
	if m == 1 && len(stored) != d {
		return nil, zvecerr.New(zvecerr.InvalidArgument, "row-major stored vector length must equal d")
	}
	if m > 1 && len(stored) != m*d {
		return nil, zvecerr.New(zvecerr.InvalidArgument, "block-column-major stored matrix length must equal m*d")
	}
	if len(queries) != n*d {
		return nil, zvecerr.New(zvecerr.InvalidArgument, "queries length must equal n*d")
	}

	out := make([]float32, m*n)
	for j := 0; j < n; j++ {
		q := queries[j*d : j*d+d]
		for i := 0; i < m; i++ {
			var acc int32
			switch metric {
			case InnerProduct, MinusInnerProduct:
				for c := 0; c < d; c++ {
					var s int8
					if m == 1 {
						s = stored[c]
					} else {
						s = stored[c*m+i]
					}
					acc += int32(s) * int32(q[c])
				}
				f := float32(acc)
				if metric == MinusInnerProduct {
					f = -f
				}
				out[i*n+j] = f
				continue
			default:
				for c := 0; c < d; c++ {
					var s int8
					if m == 1 {
						s = stored[c]
					} else {
						s = stored[c*m+i]
					}
					diff := int32(s) - int32(q[c])
					acc += diff * diff
				}
			}
			f := float32(acc)
			if metric == Euclidean {
				f = float32(math.Sqrt(float64(f)))
			}
			out[i*n+j] = f
		}
	}
	return out, nil
}

// DistanceScalarINT8 is the unbatched INT8 reference kernel.
func DistanceScalarINT8(metric Metric, a, b []int8) (float32, error) {
	if len(a) != len(b) {
		return 0, zvecerr.New(zvecerr.InvalidArgument, "dimension mismatch")
	}
	var acc int32
	switch metric {
	case InnerProduct, MinusInnerProduct:
		for i := range a {
			acc += int32(a[i]) * int32(b[i])
		}
		f := float32(acc)
		if metric == MinusInnerProduct {
			f = -f
		}
		return f, nil
	default:
		for i := range a {
			diff := int32(a[i]) - int32(b[i])
			acc += diff * diff
		}
		f := float32(acc)
		if metric == Euclidean {
			f = float32(math.Sqrt(float64(f)))
		}
		return f, nil
	}
}
