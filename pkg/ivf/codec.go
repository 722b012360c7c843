package ivf

import (
	"encoding/binary"
	"math"

	"github.com/zvecio/zvec/internal/kernel"
)

func decodeFloat32Array(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

func encodeFloat32Array(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeInt8Array(buf []byte) []int8 {
	out := make([]int8, len(buf))
	for i, b := range buf {
		out[i] = int8(b)
	}
	return out
}

func decodeUint64Array(buf []byte) []uint64 {
	out := make([]uint64, len(buf)/8)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(buf[i*8:])
	}
	return out
}

func encodeUint64Array(v []uint64) []byte {
	buf := make([]byte, len(v)*8)
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], x)
	}
	return buf
}

func decodeUint32Array(buf []byte) []uint32 {
	out := make([]uint32, len(buf)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return out
}

func encodeUint32Array(v []uint32) []byte {
	buf := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], x)
	}
	return buf
}

// floatToInt8Round performs a plain round-to-[-127,127] cast, used only when
// a query must be compared against INT8-stored vectors outside the
// reformer's scaled path (e.g. already-calibrated inputs).
func floatToInt8Round(v []float32) []int8 {
	out := make([]int8, len(v))
	for i, f := range v {
		r := math.Round(float64(f))
		if r > 127 {
			r = 127
		}
		if r < -127 {
			r = -127
		}
		out[i] = int8(r)
	}
	return out
}

// packQueryInt4 packs an already-int4-ranged float query into the kernel's
// packed representation.
func packQueryInt4(v []float32) ([]byte, error) {
	vals := make([]int8, len(v))
	for i, f := range v {
		r := math.Round(float64(f))
		if r > 7 {
			r = 7
		}
		if r < -8 {
			r = -8
		}
		vals[i] = int8(r)
	}
	return kernel.PackInt4(vals)
}
