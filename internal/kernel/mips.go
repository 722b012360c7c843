package kernel

import (
	"math"

	"github.com/zvecio/zvec/internal/zvecerr"
)

// SphericalInject implements the single-coordinate MIPS injection of §4.1:
// scale v by √e², then append √(1 − ‖v·√e²‖²) as one synthetic dimension so
// that maximum-inner-product search over v reduces to nearest-neighbor
// search by squared Euclidean distance over the injected vectors.
func SphericalInject(v []float32, e2 float32) []float32 {
	scaleFactor := float32(math.Sqrt(float64(e2)))
	out := make([]float32, len(v)+1)
	var sqNorm float32
	for i, x := range v {
		s := x * scaleFactor
		out[i] = s
		sqNorm += s * s
	}
	remainder := float32(1) - sqNorm
	if remainder < 0 {
		remainder = 0
	}
	out[len(v)] = float32(math.Sqrt(float64(remainder)))
	return out
}

// MipsSquaredEuclideanSpherical reduces a maximum-inner-product query between
// x and y to squared-Euclidean distance via SphericalInject, per §4.1 and
// testable property 3 / scenario (C).
func MipsSquaredEuclideanSpherical(x, y []float32, e2 float32) (float32, error) {
	if len(x) != len(y) {
		return 0, zvecerr.New(zvecerr.InvalidArgument, "dimension mismatch")
	}
	ix := SphericalInject(x, e2)
	iy := SphericalInject(y, e2)
	return DistanceScalarFP32(SquaredEuclidean, ix, iy)
}

// RepeatedQuadraticInject implements the m-synthetic-dimension form of §4.1:
// the D dimensions of v are split into m (as-even-as-possible) consecutive
// chunks; each synthetic coordinate is the running (prefix) sum of
// (v[c]·√e²)² up to the end of its chunk. Appending these m running sums to
// both sides telescopes the norm difference across chunks, reducing MIPS to
// nearest-neighbor by squared Euclidean the same way the single-coordinate
// form does for the whole vector at once.
func RepeatedQuadraticInject(v []float32, m int, e2 float32) ([]float32, error) {
	if m <= 0 {
		return nil, zvecerr.New(zvecerr.InvalidArgument, "m must be positive")
	}
	d := len(v)
	scaleFactor := float32(math.Sqrt(float64(e2)))
	out := make([]float32, d+m)
	copy(out, v)

	chunkSize := (d + m - 1) / m
	var running float32
	idx := 0
	for k := 0; k < m; k++ {
		end := idx + chunkSize
		if end > d {
			end = d
		}
		for ; idx < end; idx++ {
			s := v[idx] * scaleFactor
			running += s * s
		}
		out[d+k] = running
	}
	return out, nil
}

// MipsSquaredEuclideanRepeated reduces a MIPS query using the m-dimension
// repeated-injection form.
func MipsSquaredEuclideanRepeated(x, y []float32, m int, e2 float32) (float32, error) {
	if len(x) != len(y) {
		return 0, zvecerr.New(zvecerr.InvalidArgument, "dimension mismatch")
	}
	ix, err := RepeatedQuadraticInject(x, m, e2)
	if err != nil {
		return 0, err
	}
	iy, err := RepeatedQuadraticInject(y, m, e2)
	if err != nil {
		return 0, err
	}
	return DistanceScalarFP32(SquaredEuclidean, ix, iy)
}
