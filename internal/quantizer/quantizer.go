// Package quantizer implements an entropy-based integer calibrator: a
// per-tensor affine (scale, bias) search that minimizes KL divergence
// between the pre- and post-quantization bin distributions, producing
// INT4/INT8/INT16 codes (signed or unsigned) that round-trip a bounded
// float32 tensor.
package quantizer

import (
	"math"
)

// Width is the representable bit width of the quantized codes.
type Width int

const (
	Width4  Width = 4
	Width8  Width = 8
	Width16 Width = 16
)

// Quantizer accumulates a histogram across one or more Feed calls and
// searches the clip threshold that minimizes KL divergence on Train.
type Quantizer struct {
	width  Width
	signed bool
	biased bool // asymmetric (bias != 0) vs symmetric calibration

	initialized   bool
	histogramBins int // explicit override; 0 means derive from the code range
	hist          []float64
	zeroIdx       int
	histMin       float64
	histMax       float64
	interval      float64 // value span covered by one histogram bin

	globalMin float64
	globalMax float64

	scale           float64
	scaleReciprocal float64
	bias            float64
	trained         bool
}

// New creates a calibrator for the given width, signedness and bias mode.
func New(width Width, signed, biased bool) *Quantizer {
	return &Quantizer{width: width, signed: signed, biased: biased}
}

// SetHistogramBins overrides the accumulation histogram's bin count ahead of
// the first Feed call; values at or below the quantizer's own code range are
// ignored since the histogram couldn't usefully resolve individual codes.
func (q *Quantizer) SetHistogramBins(bins int) {
	min, max := q.levels()
	if bins > max-min {
		q.histogramBins = bins
	}
}

// levels returns the (min, max) integer code endpoints for this quantizer's
// width and signedness. INT8/INT16 use a symmetric range that drops the
// most-negative two's-complement value (matching the entropy calibrator's
// own EntropyInt8Quantizer/EntropyInt16Quantizer ranges); the 4-bit codes
// keep the full asymmetric two's-complement range since they pack two codes
// per byte and have no spare slot to give up.
func (q *Quantizer) levels() (min, max int) {
	switch q.width {
	case Width16:
		if q.signed {
			return -32767, 32767
		}
		return 0, 65535
	case Width4:
		if q.signed {
			return -8, 7
		}
		return 0, 15
	default: // Width8
		if q.signed {
			return -127, 127
		}
		return 0, 255
	}
}

// targetBins is the histogram merge width used during threshold search:
// the code range rounded up to an even count.
func (q *Quantizer) targetBins() int {
	min, max := q.levels()
	r := max - min
	if r%2 != 0 {
		r++
	}
	return r
}

// histogramBinCount sizes the accumulation histogram from the quantizer's
// code range alone (not the observed data): max(4096, 8*range), rounded up
// to even, where range is the symmetric magnitude for unbiased calibration
// or the full span for biased calibration.
func (q *Quantizer) histogramBinCount() int {
	bins := q.histogramBins
	if bins == 0 {
		min, max := q.levels()
		var rng int
		if q.biased {
			rng = max - min
		} else {
			rng = absInt(min)
			if absInt(max) > rng {
				rng = absInt(max)
			}
		}
		bins = rng * 8
		if bins < 4096 {
			bins = 4096
		}
	}
	if bins%2 != 0 {
		bins++
	}
	return bins
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Feed accumulates dim samples into the running histogram. On the first call
// the histogram is sized by histogramBinCount and placed either symmetric
// about zero (unbiased calibration, matching the float range
// [-max(|min|,|max|), max(|min|,|max|)]) or directly over the observed
// [min,max] span (biased calibration, which also seeds the first half of the
// affine bias term here). Returns false if the batch is empty or malformed
// (observed max < min).
func (q *Quantizer) Feed(vec []float32) bool {
	if len(vec) == 0 {
		return false
	}
	batchMin, batchMax := float64(vec[0]), float64(vec[0])
	for _, v := range vec[1:] {
		fv := float64(v)
		if fv < batchMin {
			batchMin = fv
		}
		if fv > batchMax {
			batchMax = fv
		}
	}
	if batchMax < batchMin {
		return false
	}

	if !q.initialized {
		bins := q.histogramBinCount()
		q.hist = make([]float64, bins)
		q.zeroIdx = bins / 2
		if q.biased {
			q.histMin = batchMin
			q.histMax = batchMax
			q.interval = (batchMax - batchMin) / float64(bins)
			q.bias = -(batchMin + (batchMax-batchMin)*0.5)
		} else {
			absMax := math.Abs(batchMin)
			if math.Abs(batchMax) > absMax {
				absMax = math.Abs(batchMax)
			}
			if absMax == 0 {
				absMax = 1
			}
			q.histMin = -absMax
			q.histMax = absMax
			q.interval = (2 * absMax) / float64(bins)
			q.bias = 0
		}
		q.globalMin = batchMin
		q.globalMax = batchMax
		q.initialized = true
	} else {
		if batchMin < q.globalMin {
			q.globalMin = batchMin
		}
		if batchMax > q.globalMax {
			q.globalMax = batchMax
		}
	}

	for _, v := range vec {
		idx := q.binIndex(float64(v))
		q.hist[idx]++
	}
	return true
}

// binIndex maps a value to its histogram bin, clamping out-of-range values
// into the endpoint bins so their mass still participates as "outlier mass"
// during Train.
func (q *Quantizer) binIndex(v float64) int {
	idx := 0
	if q.interval > 0 {
		idx = int(math.Floor((v - q.histMin) / q.interval))
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(q.hist) {
		idx = len(q.hist) - 1
	}
	return idx
}

// Scale returns the trained affine scale (valid only after a successful Train).
func (q *Quantizer) Scale() float64 { return q.scale }

// ScaleReciprocal returns 1/Scale.
func (q *Quantizer) ScaleReciprocal() float64 { return q.scaleReciprocal }

// Bias returns the trained affine bias (0 in symmetric mode).
func (q *Quantizer) Bias() float64 { return q.bias }

// Trained reports whether Train has completed successfully.
func (q *Quantizer) Trained() bool { return q.trained }
