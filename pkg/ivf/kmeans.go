package ivf

import (
	"math/rand"

	"github.com/zvecio/zvec/internal/kernel"
	"github.com/zvecio/zvec/internal/zvecerr"
)

// TrainCentroids runs k-means++ initialization followed by Lloyd iteration
// to produce numCentroids centroids over vectors, the clustering step that
// feeds AssignRecords and ultimately Build (§2 "IVF entity builder consumes
// centroid assignments").
func TrainCentroids(vectors [][]float32, numCentroids int, metric kernel.Metric, iterations int) ([][]float32, error) {
	if len(vectors) == 0 {
		return nil, zvecerr.New(zvecerr.InvalidArgument, "ivf: no training vectors provided")
	}
	if len(vectors) < numCentroids {
		return nil, zvecerr.New(zvecerr.InvalidArgument, "ivf: fewer vectors than requested centroids")
	}
	dim := len(vectors[0])

	centroids := kmeansPlusPlusInit(vectors, numCentroids, dim, metric)

	if iterations <= 0 {
		iterations = 10
	}
	assign := make([]int, len(vectors))
	for iter := 0; iter < iterations; iter++ {
		changed := false
		for i, v := range vectors {
			c := nearestCentroid(v, centroids, metric)
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
		}

		sums := make([][]float64, numCentroids)
		counts := make([]int, numCentroids)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, v := range vectors {
			c := assign[i]
			counts[c]++
			for d := 0; d < dim; d++ {
				sums[c][d] += float64(v[d])
			}
		}
		for c := 0; c < numCentroids; c++ {
			if counts[c] == 0 {
				continue // keep the previous centroid; empty clusters are rare with ++ init
			}
			for d := 0; d < dim; d++ {
				centroids[c][d] = float32(sums[c][d] / float64(counts[c]))
			}
		}
		if !changed && iter > 0 {
			break
		}
	}
	return centroids, nil
}

func kmeansPlusPlusInit(vectors [][]float32, k, dim int, metric kernel.Metric) [][]float32 {
	centroids := make([][]float32, 0, k)
	first := vectors[rand.Intn(len(vectors))]
	centroids = append(centroids, append([]float32(nil), first...))

	distSq := make([]float32, len(vectors))
	for len(centroids) < k {
		var total float64
		for i, v := range vectors {
			d := distanceToNearest(v, centroids, metric)
			distSq[i] = d * d
			total += float64(distSq[i])
		}
		if total == 0 {
			// all remaining points coincide with a chosen centroid; pad with copies
			centroids = append(centroids, append([]float32(nil), vectors[rand.Intn(len(vectors))]...))
			continue
		}
		target := rand.Float64() * total
		var acc float64
		chosen := len(vectors) - 1
		for i, d := range distSq {
			acc += float64(d)
			if acc >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, append([]float32(nil), vectors[chosen]...))
		_ = dim
	}
	return centroids
}

func distanceToNearest(v []float32, centroids [][]float32, metric kernel.Metric) float32 {
	best := float32(0)
	for i, c := range centroids {
		d := pairDistance(v, c, metric)
		if i == 0 || d < best {
			best = d
		}
	}
	return best
}

func nearestCentroid(v []float32, centroids [][]float32, metric kernel.Metric) int {
	best := 0
	bestDist := pairDistance(v, centroids[0], metric)
	for i := 1; i < len(centroids); i++ {
		d := pairDistance(v, centroids[i], metric)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func pairDistance(a, b []float32, metric kernel.Metric) float32 {
	out, err := kernel.DistanceFP32(metric, a, 1, b, 1, len(a))
	if err != nil || len(out) == 0 {
		return 0
	}
	return out[0]
}

// AssignRecords buckets (key, vector) pairs into one Record slice per
// centroid, the shape Build expects for its Lists field.
func AssignRecords(keys []uint64, vectors [][]float32, centroids [][]float32, metric kernel.Metric) [][]Record {
	lists := make([][]Record, len(centroids))
	for i, v := range vectors {
		c := nearestCentroid(v, centroids, metric)
		lists[c] = append(lists[c], Record{Key: keys[i], Vector: v})
	}
	return lists
}
