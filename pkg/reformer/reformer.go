// Package reformer implements the per-query data-type adapter of SPEC_FULL
// §4.4: it converts a float32 query into the element type stored on disk and
// restores the original score scale on the way back out.
package reformer

import (
	"math"

	"github.com/zvecio/zvec/internal/kernel"
	"github.com/zvecio/zvec/internal/quantizer"
	"github.com/zvecio/zvec/internal/zvecerr"
	"github.com/zvecio/zvec/pkg/ivf"
)

// Kind is the reformer's five-way tagged variant (§4.4), decided once at
// init from (reformer_name, metric_name) and fixed for the entity's life.
type Kind int

const (
	None Kind = iota
	InnerProductInt8
	InnerProductInt4
	Int8
	Int4
	Default
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case InnerProductInt8:
		return "inner_product_int8"
	case InnerProductInt4:
		return "inner_product_int4"
	case Int8:
		return "int8"
	case Int4:
		return "int4"
	case Default:
		return "default"
	default:
		return "unknown"
	}
}

// Select decides the reformer variant from the index meta's reformer and
// metric names, per the §4.4 state table.
func Select(reformerName, metricName string) (Kind, error) {
	isIP := metricName == ivf.MetricInnerProduct
	switch reformerName {
	case ivf.ReformerNone:
		return None, nil
	case ivf.ReformerInt8:
		if isIP {
			return InnerProductInt8, nil
		}
		return Int8, nil
	case ivf.ReformerInt4:
		if isIP {
			return InnerProductInt4, nil
		}
		return Int4, nil
	case ivf.ReformerDefault:
		return Default, nil
	default:
		return 0, zvecerr.New(zvecerr.NoExist, "reformer: unknown reformer name: "+reformerName)
	}
}

// Plugin is the delegate for the Int8/Int4/Default variants, satisfied by
// *quantizer.Quantizer.
type Plugin interface {
	Encode(vec []float32) ([]byte, error)
	ScaleReciprocal() float64
}

// Reformer holds per-invocation scratch state (buffer, scale); per §4.5 it
// is not safe to share across goroutines — one Reformer per searcher
// context.
type Reformer struct {
	kind   Kind
	plugin Plugin

	buffer []byte
	scale  float64
}

// New builds a Reformer of the given kind. plugin is required for
// Int8/Int4/Default and ignored otherwise.
func New(kind Kind, plugin Plugin) (*Reformer, error) {
	switch kind {
	case Int8, Int4, Default:
		if plugin == nil {
			return nil, zvecerr.New(zvecerr.InvalidArgument, "reformer: plugin required for "+kind.String())
		}
	}
	return &Reformer{kind: kind, plugin: plugin}, nil
}

// Transform converts query into the bytes the kernel expects and records
// the per-invocation scale needed to denormalize the resulting score.
func (r *Reformer) Transform(query []float32) ([]byte, error) {
	switch r.kind {
	case None:
		r.scale = 1
		r.buffer = encodeFloat32(query)
		return r.buffer, nil

	case InnerProductInt8:
		absMax := maxAbs(query)
		if absMax == 0 {
			r.scale = 1
			r.buffer = make([]byte, len(query))
			return r.buffer, nil
		}
		scale := absMax / 127
		r.scale = scale
		codes := make([]byte, len(query))
		for i, v := range query {
			codes[i] = byte(int8(clampRound(float64(v)/scale, -127, 127)))
		}
		r.buffer = codes
		return r.buffer, nil

	case InnerProductInt4:
		absMax, signedMax := rangeStats(query)
		if absMax == 0 {
			r.scale = 1
			packed, _ := kernel.PackInt4(make([]int8, len(query)))
			r.buffer = packed
			return r.buffer, nil
		}
		// §4.4: picks the 8-wide (full negative) range over the 7-wide
		// positive-symmetric range when the asymmetry warrants it.
		divisor := 7.0
		if 7*absMax > 8*signedMax {
			divisor = 8.0
		}
		scale := divisor / absMax
		r.scale = scale
		codes := make([]int8, len(query))
		for i, v := range query {
			codes[i] = int8(clampRound(float64(v)*scale, -8, 7))
		}
		packed, err := kernel.PackInt4(codes)
		if err != nil {
			return nil, err
		}
		r.buffer = packed
		return r.buffer, nil

	case Int8, Int4, Default:
		buf, err := r.plugin.Encode(query)
		if err != nil {
			return nil, err
		}
		r.scale = r.plugin.ScaleReciprocal()
		r.buffer = buf
		return r.buffer, nil

	default:
		return nil, zvecerr.New(zvecerr.Unsupported, "reformer: unknown kind")
	}
}

// DenormalizeScore restores raw (computed against the reformed query) to
// the original metric's scale, per §4.4's per-variant denormalize column.
func (r *Reformer) DenormalizeScore(raw float32) float32 {
	switch r.kind {
	case None:
		return raw
	case InnerProductInt8, InnerProductInt4:
		if r.scale == 0 {
			return raw
		}
		return raw / float32(r.scale)
	case Int8, Int4, Default:
		return raw * float32(r.scale)
	default:
		return raw
	}
}

// TransformGPU mirrors the GPU backend's per-list INT8 path, which routes
// kReformerTpInnerProductInt4 through an INT8 intermediate buffer before
// the kernel repacks to INT4. This is intentional for the GPU backend and
// must be preserved verbatim even though it costs an extra pass on the
// int4 path.
func (r *Reformer) TransformGPU(query []float32) ([]byte, error) {
	if r.kind != InnerProductInt4 {
		return r.Transform(query)
	}
	absMax, signedMax := rangeStats(query)
	if absMax == 0 {
		r.scale = 1
		packed, _ := kernel.PackInt4(make([]int8, len(query)))
		r.buffer = packed
		return r.buffer, nil
	}
	divisor := 7.0
	if 7*absMax > 8*signedMax {
		divisor = 8.0
	}
	scale := divisor / absMax
	r.scale = scale

	int8Buf := make([]int8, len(query))
	for i, v := range query {
		int8Buf[i] = int8(clampRound(float64(v)*scale, -8, 7))
	}
	packed, err := kernel.PackInt4(int8Buf)
	if err != nil {
		return nil, err
	}
	r.buffer = packed
	return r.buffer, nil
}

// Kind reports the resolved variant.
func (r *Reformer) Kind() Kind { return r.kind }

func maxAbs(v []float32) float64 {
	var m float64
	for _, f := range v {
		a := math.Abs(float64(f))
		if a > m {
			m = a
		}
	}
	return m
}

func rangeStats(v []float32) (absMax, signedMax float64) {
	for _, f := range v {
		a := math.Abs(float64(f))
		if a > absMax {
			absMax = a
		}
		if float64(f) > signedMax {
			signedMax = float64(f)
		}
	}
	return absMax, signedMax
}

func clampRound(v, lo, hi float64) float64 {
	r := math.Round(v)
	if r < lo {
		return lo
	}
	if r > hi {
		return hi
	}
	return r
}

func encodeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		bits := math.Float32bits(f)
		buf[i*4] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return buf
}

// compile-time interface satisfaction check for the quantizer delegate.
var _ Plugin = (*quantizer.Quantizer)(nil)
