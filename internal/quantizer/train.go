package quantizer

import (
	"math"

	"github.com/zvecio/zvec/internal/zvecerr"
)

// float32Epsilon is the machine epsilon for float32, used by makeSmooth the
// same way the entropy calibrator's C++ ancestor tests a bin against
// std::numeric_limits<float>::epsilon() rather than an arbitrary cutoff.
const float32Epsilon = 1.1920929e-7

// Train searches the clip threshold t minimizing KL(P‖Q_expanded) over
// t ∈ [targetBins/2, histBins/2], then derives (scale, bias) from the
// winning threshold. Returns an error if Feed was never called or the
// histogram is empty.
func (q *Quantizer) Train() error {
	if !q.initialized || sum(q.hist) == 0 {
		return zvecerr.New(zvecerr.InvalidArgument, "histogram is empty; call Feed before Train")
	}

	target := q.targetBins()
	thresholdBins := q.computeThreshold(target)
	threshold := (float64(thresholdBins) + 0.5) * q.interval

	q.scale = float64(target) / 2 / threshold
	q.scaleReciprocal = 1 / q.scale
	if q.biased {
		min, max := q.levels()
		q.bias += (float64(max) + float64(min)) * 0.5 / q.scale
	}
	q.trained = true
	return nil
}

// computeThreshold finds the clip radius t (in histogram bins, counted from
// the center) that minimizes the KL divergence between the raw distribution
// folded into [-t, t] and that same window requantized to targetBins and
// expanded back out, per the TensorRT INT8-calibration search
// (http://on-demand.gputechconf.com/gtc/2017/presentation/s7310-8-bit-inference-with-tensorrt.pdf).
func (q *Quantizer) computeThreshold(targetBins int) int {
	histBins := len(q.hist)
	zeroIdx := histBins / 2
	endBin := histBins / 2
	startBin := targetBins / 2
	if startBin < 1 {
		startBin = 1
	}
	if startBin > endBin {
		startBin = endBin
	}

	minDivergence := math.MaxFloat64
	targetThreshold := endBin

	for t := startBin; t <= endBin; t++ {
		p := q.clippedDistribution(t)
		leftBoundary := zeroIdx - t
		qd := quantizeFromHist(q.hist, leftBoundary, t, targetBins)
		qExpanded := expandCandidateDistribution(q.hist, leftBoundary, qd, t)

		pSmooth := makeSmooth(p)
		qSmooth := makeSmooth(qExpanded)
		divergence := klDivergence(pSmooth, qSmooth)
		if divergence < minDivergence {
			minDivergence = divergence
			targetThreshold = t
		}
	}
	return targetThreshold
}

// clippedDistribution builds P[0..2t) from hist[zero-t..zero+t), folding the
// mass outside that window into the two endpoint bins.
func (q *Quantizer) clippedDistribution(t int) []float64 {
	n := 2 * t
	p := make([]float64, n)
	start := q.zeroIdx - t
	end := q.zeroIdx + t

	var leftOutlier, rightOutlier float64
	for i := 0; i < start; i++ {
		leftOutlier += q.hist[i]
	}
	for i := end; i < len(q.hist); i++ {
		rightOutlier += q.hist[i]
	}
	for i := start; i < end; i++ {
		if i < 0 || i >= len(q.hist) {
			continue
		}
		p[i-start] = q.hist[i]
	}
	p[0] += leftOutlier
	p[n-1] += rightOutlier
	return p
}

// quantizeFromHist merges the raw histogram window [leftBoundary,
// leftBoundary+2t) into targetBins bins, splitting a boundary source bin's
// mass proportionally between the destination bin it overlaps and the one
// just outside the window.
func quantizeFromHist(hist []float64, leftBoundary, t, targetBins int) []float64 {
	q := make([]float64, targetBins)
	mergedCnt := float64(2*t) / float64(targetBins)

	for i := 0; i < targetBins; i++ {
		start := float64(i) * mergedCnt
		end := start + mergedCnt
		startCeil := int(math.Ceil(start))
		endFloor := int(math.Floor(end))

		if leftBoundary+startCeil > 0 {
			q[i] += (float64(startCeil) - start) * hist[leftBoundary+startCeil-1]
		}
		if leftBoundary+endFloor < len(hist) {
			q[i] += (end - float64(endFloor)) * hist[leftBoundary+endFloor]
		}
		for j := startCeil; j < endFloor; j++ {
			q[i] += hist[leftBoundary+j]
		}
	}
	return q
}

// expandCandidateDistribution spreads the targetBins-wide quantized
// distribution back over the raw 2t-bin histogram window it was merged
// from, splitting each quantized bin's mass evenly across the non-zero raw
// bins (fractional at the two edges) it covers instead of weighting by
// their original mass, so information lost to merging isn't reintroduced.
func expandCandidateDistribution(hist []float64, leftBoundary int, quantized []float64, t int) []float64 {
	n := 2 * t
	out := make([]float64, n)
	mergedCnt := float64(n) / float64(len(quantized))

	for i := 0; i < len(quantized); i++ {
		start := float64(i) * mergedCnt
		end := start + mergedCnt
		startCeil := int(math.Ceil(start))
		endFloor := int(math.Floor(end))
		leftRatio := float64(startCeil) - start
		rightRatio := end - float64(endFloor)

		var nonzero float64
		if leftRatio > 0 && leftBoundary+startCeil > 0 {
			if hist[leftBoundary+startCeil-1] != 0 {
				nonzero += leftRatio
			}
		}
		if rightRatio > 0 && leftBoundary+endFloor < len(hist) {
			if hist[leftBoundary+endFloor] != 0 {
				nonzero += rightRatio
			}
		}
		for j := startCeil; j < endFloor; j++ {
			if hist[leftBoundary+j] != 0 {
				nonzero++
			}
		}
		if nonzero == 0 {
			continue
		}

		value := quantized[i] / nonzero
		if leftRatio > 0 && startCeil > 0 {
			out[startCeil-1] += value * leftRatio
		}
		if rightRatio > 0 && endFloor < n {
			out[endFloor] += value * rightRatio
		}
		for j := startCeil; j < endFloor; j++ {
			if hist[leftBoundary+j] != 0 {
				out[j] = value
			}
		}
	}
	return out
}

// makeSmooth L1-normalizes dist, then nudges every zero bin up by one
// machine epsilon and removes the equivalent flat mass from the non-zero
// bins, so KL divergence never compares against a literal zero.
func makeSmooth(dist []float64) []float64 {
	out := make([]float64, len(dist))
	copy(out, dist)

	total := sum(out)
	if total != 0 {
		for i := range out {
			out[i] /= total
		}
	}

	var zeroCount int
	for _, v := range out {
		if math.Abs(v) < float32Epsilon {
			zeroCount++
		}
	}
	nonZeroCount := len(out) - zeroCount
	if nonZeroCount == 0 || zeroCount == 0 {
		return out
	}

	y := float32Epsilon * float64(zeroCount) / float64(nonZeroCount)
	for i, v := range out {
		if math.Abs(v) < float32Epsilon {
			out[i] = v + float32Epsilon
		} else {
			out[i] = v - y
		}
	}
	return out
}

// klDivergence returns the Kullback-Leibler divergence of p from q,
// matching the reference calibrator's contract of returning the maximum
// representable value (so the candidate threshold loses) rather than
// skipping a comparison against an exact zero.
func klDivergence(p, q []float64) float64 {
	if len(p) != len(q) || len(p) == 0 {
		return math.MaxFloat64
	}
	var v float64
	for i := range p {
		if p[i] == 0 || q[i] == 0 {
			return math.MaxFloat64
		}
		v += p[i] * math.Log(p[i]/q[i])
	}
	return v
}

func sum(d []float64) float64 {
	var s float64
	for _, v := range d {
		s += v
	}
	return s
}
