package searcher

import (
	"sort"

	"github.com/zvecio/zvec/internal/kernel"
)

// CentroidIndex is the "centroid sub-searcher" of §2/§3: an in-memory
// ranking of inverted lists by distance from their centroid to a query.
// Centroids are produced by ivf.TrainCentroids/AssignRecords at build time
// and are not part of the on-disk IVF image (§6 lists no centroids
// segment), so they travel alongside the loaded Entity rather than
// through it.
type CentroidIndex struct {
	centroids [][]float32
	metric    kernel.Metric
}

// NewCentroidIndex wraps a set of per-list centroids.
func NewCentroidIndex(centroids [][]float32, metric kernel.Metric) *CentroidIndex {
	return &CentroidIndex{centroids: centroids, metric: metric}
}

// RankLists returns every list index in ascending order of centroid
// distance to query.
func (c *CentroidIndex) RankLists(query []float32) []int {
	type ranked struct {
		id   int
		dist float32
	}
	rs := make([]ranked, len(c.centroids))
	for i, centroid := range c.centroids {
		out, err := kernel.DistanceFP32(c.metric, centroid, 1, query, 1, len(query))
		d := float32(0)
		if err == nil && len(out) > 0 {
			d = out[0]
		}
		rs[i] = ranked{id: i, dist: d}
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].dist < rs[j].dist })

	ids := make([]int, len(rs))
	for i, r := range rs {
		ids[i] = r.id
	}
	return ids
}

// ListCount reports how many centroids (and therefore inverted lists) this
// index covers.
func (c *CentroidIndex) ListCount() int { return len(c.centroids) }
