package kernel

import (
	"math"

	"github.com/zvecio/zvec/internal/zvecerr"
)

// productTable4 and sqDiffTable4 are the 256-entry precomputed tables of
// §4.1: indexed by ((a&0xF)<<4 | (b&0xF)) where a and b are the two signed
// 4-bit operands being paired, they replace a decode-then-multiply (or
// decode-then-subtract-then-square) with a single lookup per dimension.
var productTable4 [256]int16
var sqDiffTable4 [256]int16

func init() {
	for idx := 0; idx < 256; idx++ {
		a := signExtend4(byte(idx >> 4))
		b := signExtend4(byte(idx))
		productTable4[idx] = int16(a) * int16(b)
		diff := int16(a) - int16(b)
		sqDiffTable4[idx] = diff * diff
	}
}

// signExtend4 sign-extends the low nibble of b, per §4.1/§4.2: "sign-extended
// from the lower nibble" via (int8<<4)>>4.
func signExtend4(b byte) int8 {
	return int8(b<<4) >> 4
}

// unpack4 splits one packed byte into its low (bits 0..3) and high
// (bits 4..7) signed 4-bit lanes.
func unpack4(b byte) (lo, hi int8) {
	lo = signExtend4(b)
	hi = signExtend4(b >> 4)
	return
}

// PackInt4 packs a sequence of signed values in [-8,7] into bytes, two per
// byte, low lane first. len(values) must be even.
func PackInt4(values []int8) ([]byte, error) {
	if len(values)%2 != 0 {
		return nil, zvecerr.New(zvecerr.InvalidArgument, "int4 packing requires an even element count")
	}
	out := make([]byte, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		lo := byte(values[i]) & 0x0F
		hi := byte(values[i+1]) & 0x0F
		out[i/2] = lo | (hi << 4)
	}
	return out, nil
}

// UnpackInt4 expands packed INT4 bytes back into signed values.
func UnpackInt4(packed []byte) []int8 {
	out := make([]int8, 0, len(packed)*2)
	for _, b := range packed {
		lo, hi := unpack4(b)
		out = append(out, lo, hi)
	}
	return out
}

// DistanceINT4Packed computes the M×N distance matrix over packed-INT4
// vectors. D must be even (§4.1 "D must be a multiple of 2"); stored/queries
// carry D/2 bytes per vector. For M>1, stored is block-column-major at byte
// granularity: stored[bytePos*M+i].
func DistanceINT4Packed(metric Metric, stored []byte, m int, queries []byte, n, d int) ([]float32, error) {
	if d <= 0 || d%2 != 0 || m <= 0 || n <= 0 {
		return nil, zvecerr.New(zvecerr.InvalidArgument, "d must be a positive even number; m, n must be positive")
	}
	bytesPerVec := d / 2
	if m == 1 && len(stored) != bytesPerVec {
		return nil, zvecerr.New(zvecerr.InvalidArgument, "row-major stored length mismatch")
	}
	if m > 1 && len(stored) != bytesPerVec*m {
		return nil, zvecerr.New(zvecerr.InvalidArgument, "block-column-major stored length mismatch")
	}
	if len(queries) != bytesPerVec*n {
		return nil, zvecerr.New(zvecerr.InvalidArgument, "queries length mismatch")
	}

	out := make([]float32, m*n)
	for j := 0; j < n; j++ {
		q := queries[j*bytesPerVec : (j+1)*bytesPerVec]
		for i := 0; i < m; i++ {
			var acc int32
			for bp := 0; bp < bytesPerVec; bp++ {
				var sb byte
				if m == 1 {
					sb = stored[bp]
				} else {
					sb = stored[bp*m+i]
				}
				qb := q[bp]
				switch metric {
				case InnerProduct, MinusInnerProduct:
					acc += int32(productTable4[(uint16(sb&0x0F)<<4)|uint16(qb&0x0F)])
					acc += int32(productTable4[(uint16((sb>>4)&0x0F)<<4)|uint16((qb>>4)&0x0F)])
				default:
					acc += int32(sqDiffTable4[(uint16(sb&0x0F)<<4)|uint16(qb&0x0F)])
					acc += int32(sqDiffTable4[(uint16((sb>>4)&0x0F)<<4)|uint16((qb>>4)&0x0F)])
				}
			}
			f := float32(acc)
			switch metric {
			case MinusInnerProduct:
				f = -f
			case Euclidean:
				f = float32(math.Sqrt(float64(f)))
			}
			out[i*n+j] = f
		}
	}
	return out, nil
}

// DistanceScalarINT4Packed is the unbatched (1×1) reference kernel.
func DistanceScalarINT4Packed(metric Metric, a, b []byte) (float32, error) {
	if len(a) != len(b) {
		return 0, zvecerr.New(zvecerr.InvalidArgument, "dimension mismatch")
	}
	var acc int32
	for bp := range a {
		switch metric {
		case InnerProduct, MinusInnerProduct:
			acc += int32(productTable4[(uint16(a[bp]&0x0F)<<4)|uint16(b[bp]&0x0F)])
			acc += int32(productTable4[(uint16((a[bp]>>4)&0x0F)<<4)|uint16((b[bp]>>4)&0x0F)])
		default:
			acc += int32(sqDiffTable4[(uint16(a[bp]&0x0F)<<4)|uint16(b[bp]&0x0F)])
			acc += int32(sqDiffTable4[(uint16((a[bp]>>4)&0x0F)<<4)|uint16((b[bp]>>4)&0x0F)])
		}
	}
	f := float32(acc)
	switch metric {
	case MinusInnerProduct:
		f = -f
	case Euclidean:
		f = float32(math.Sqrt(float64(f)))
	}
	return f, nil
}
