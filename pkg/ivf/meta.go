// Package ivf implements the on-disk/in-memory IVF index entity of
// SPEC_FULL §4.3 and §6: header + inverted-list bodies + per-list metadata +
// key array + sorted key→id mapping, exposing search over one list or all
// lists with an optional filter.
package ivf

import (
	"encoding/binary"
	"math"

	"github.com/zvecio/zvec/internal/kernel"
	"github.com/zvecio/zvec/internal/zvecerr"
)

// ElementType is the on-disk scalar type of one stored vector's components.
type ElementType int

const (
	ElementFP32 ElementType = iota
	ElementINT8
	ElementINT4 // two signed 4-bit lanes packed per byte
)

// Size returns the byte size of dim components of this element type;
// ElementINT4 requires dim to be even.
func (t ElementType) Size(dim int) int {
	switch t {
	case ElementFP32:
		return dim * 4
	case ElementINT8:
		return dim
	case ElementINT4:
		return dim / 2
	default:
		return 0
	}
}

func (t ElementType) String() string {
	switch t {
	case ElementFP32:
		return "fp32"
	case ElementINT8:
		return "int8"
	case ElementINT4:
		return "int4"
	default:
		return "unknown"
	}
}

// Reformer names recognized at load time, per §3 "reformer name matches one
// of {"", INT8-reformer, INT4-reformer, default}".
const (
	ReformerNone    = ""
	ReformerInt8    = "int8"
	ReformerInt4    = "int4"
	ReformerDefault = "default"
)

// Metric names recognized at load time (§3).
const (
	MetricEuclidean    = "Euclidean"
	MetricManhattan    = "Manhattan"
	MetricInnerProduct = "InnerProduct"
)

// ParseMetric maps a metric name to its kernel.Metric and reports whether
// the metric is distance-like (Euclidean/Manhattan), which determines score
// normalization (§4.3).
func ParseMetric(name string) (m kernel.Metric, isDistanceLike bool, err error) {
	switch name {
	case MetricEuclidean:
		return kernel.SquaredEuclidean, true, nil
	case MetricManhattan:
		return kernel.SquaredEuclidean, true, nil
	case MetricInnerProduct:
		return kernel.MinusInnerProduct, false, nil
	default:
		return 0, false, zvecerr.New(zvecerr.NoExist, "ivf: unknown metric: "+name)
	}
}

// IndexMeta is the immutable, index-creation-time configuration of one IVF
// entity: metric, element type/dimension, and reformer identity (§3).
type IndexMeta struct {
	MetricName    string
	Element       ElementType
	Dim           int
	ReformerName  string
	ReformerScale float64 // global fallback scale, see convert_to_normalize_value (§4.3, §9)
}

// Marshal serializes the meta as a small fixed-plus-strings record.
func (m IndexMeta) Marshal() []byte {
	buf := make([]byte, 0, 64)
	buf = appendString(buf, m.MetricName)
	buf = appendUint32(buf, uint32(m.Element))
	buf = appendUint32(buf, uint32(m.Dim))
	buf = appendString(buf, m.ReformerName)
	buf = appendFloat64(buf, m.ReformerScale)
	return buf
}

// UnmarshalIndexMeta parses a record produced by Marshal.
func UnmarshalIndexMeta(buf []byte) (IndexMeta, error) {
	var m IndexMeta
	var ok bool
	m.MetricName, buf, ok = readString(buf)
	if !ok {
		return m, zvecerr.New(zvecerr.InvalidFormat, "ivf: truncated index meta (metric name)")
	}
	var elem uint32
	elem, buf, ok = readUint32(buf)
	if !ok {
		return m, zvecerr.New(zvecerr.InvalidFormat, "ivf: truncated index meta (element type)")
	}
	m.Element = ElementType(elem)
	var dim uint32
	dim, buf, ok = readUint32(buf)
	if !ok {
		return m, zvecerr.New(zvecerr.InvalidFormat, "ivf: truncated index meta (dim)")
	}
	m.Dim = int(dim)
	m.ReformerName, buf, ok = readString(buf)
	if !ok {
		return m, zvecerr.New(zvecerr.InvalidFormat, "ivf: truncated index meta (reformer name)")
	}
	m.ReformerScale, _, ok = readFloat64(buf)
	if !ok {
		return m, zvecerr.New(zvecerr.InvalidFormat, "ivf: truncated index meta (reformer scale)")
	}
	return m, nil
}

func appendString(buf []byte, s string) []byte {
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(s)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, s...)
}

func readString(buf []byte) (string, []byte, bool) {
	if len(buf) < 2 {
		return "", buf, false
	}
	n := int(binary.LittleEndian.Uint16(buf[:2]))
	buf = buf[2:]
	if len(buf) < n {
		return "", buf, false
	}
	return string(buf[:n]), buf[n:], true
}

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func readUint32(buf []byte) (uint32, []byte, bool) {
	if len(buf) < 4 {
		return 0, buf, false
	}
	return binary.LittleEndian.Uint32(buf[:4]), buf[4:], true
}

func appendFloat64(buf []byte, v float64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	return append(buf, b[:]...)
}

func readFloat64(buf []byte) (float64, []byte, bool) {
	if len(buf) < 8 {
		return 0, buf, false
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:8])), buf[8:], true
}
