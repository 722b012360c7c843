package quantizer

import (
	"encoding/binary"
	"math"

	"github.com/zvecio/zvec/internal/zvecerr"
)

// Encode applies round(clip((x+bias)*scale)) to every element, packing the
// result according to Width: one byte per element for Width8, two
// little-endian bytes per element for Width16, and two signed nibbles per
// byte (low lane first) for Width4.
func (q *Quantizer) Encode(vec []float32) ([]byte, error) {
	if !q.trained {
		return nil, zvecerr.New(zvecerr.StatusError, "quantizer has not been trained")
	}
	minLevelInt, maxLevelInt := q.levels()
	minLevel, maxLevel := float64(minLevelInt), float64(maxLevelInt)

	codes := make([]int64, len(vec))
	for i, v := range vec {
		scaled := (float64(v) + q.bias) * q.scale
		scaled = math.Round(scaled)
		if scaled < minLevel {
			scaled = minLevel
		}
		if scaled > maxLevel {
			scaled = maxLevel
		}
		codes[i] = int64(scaled)
	}

	switch q.width {
	case Width8:
		out := make([]byte, len(codes))
		for i, c := range codes {
			out[i] = byte(int8(c))
		}
		return out, nil
	case Width16:
		out := make([]byte, len(codes)*2)
		for i, c := range codes {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(c)))
		}
		return out, nil
	case Width4:
		if len(codes)%2 != 0 {
			return nil, zvecerr.New(zvecerr.InvalidArgument, "width-4 encode requires an even element count")
		}
		out := make([]byte, len(codes)/2)
		for i := 0; i < len(codes); i += 2 {
			lo := byte(codes[i]) & 0x0F
			hi := byte(codes[i+1]) & 0x0F
			out[i/2] = lo | (hi << 4)
		}
		return out, nil
	default:
		return nil, zvecerr.New(zvecerr.Unsupported, "unsupported quantization width")
	}
}

// Decode applies x*(1/scale) - bias to n packed elements, sign-extending
// 4-bit lanes as (int8<<4)>>4 in signed mode.
func (q *Quantizer) Decode(code []byte, n int) ([]float32, error) {
	if !q.trained {
		return nil, zvecerr.New(zvecerr.StatusError, "quantizer has not been trained")
	}

	out := make([]float32, n)
	switch q.width {
	case Width8:
		if len(code) != n {
			return nil, zvecerr.New(zvecerr.InvalidArgument, "code length mismatch")
		}
		for i := 0; i < n; i++ {
			var v float64
			if q.signed {
				v = float64(int8(code[i]))
			} else {
				v = float64(code[i])
			}
			out[i] = float32(v*q.scaleReciprocal - q.bias)
		}
	case Width16:
		if len(code) != n*2 {
			return nil, zvecerr.New(zvecerr.InvalidArgument, "code length mismatch")
		}
		for i := 0; i < n; i++ {
			raw := binary.LittleEndian.Uint16(code[i*2:])
			var v float64
			if q.signed {
				v = float64(int16(raw))
			} else {
				v = float64(raw)
			}
			out[i] = float32(v*q.scaleReciprocal - q.bias)
		}
	case Width4:
		if n%2 != 0 || len(code) != n/2 {
			return nil, zvecerr.New(zvecerr.InvalidArgument, "code length mismatch")
		}
		for i := 0; i < n; i += 2 {
			b := code[i/2]
			lo, hi := unpackNibble(b, q.signed)
			out[i] = float32(float64(lo)*q.scaleReciprocal - q.bias)
			out[i+1] = float32(float64(hi)*q.scaleReciprocal - q.bias)
		}
	default:
		return nil, zvecerr.New(zvecerr.Unsupported, "unsupported quantization width")
	}
	return out, nil
}

func unpackNibble(b byte, signed bool) (lo, hi int) {
	loNib := b & 0x0F
	hiNib := (b >> 4) & 0x0F
	if !signed {
		return int(loNib), int(hiNib)
	}
	return int(int8(loNib<<4) >> 4), int(int8(hiNib<<4) >> 4)
}
