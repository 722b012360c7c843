// Package searcher implements the IVF searcher context of SPEC_FULL §3/§9:
// centroid-list selection, the bounded top-k heap, the reformer round-trip,
// and the brute-force / scan-ratio policy that governs how many inverted
// lists a query visits.
package searcher

import (
	"math"

	"github.com/zvecio/zvec/internal/zvecerr"
	"github.com/zvecio/zvec/pkg/ivf"
	"github.com/zvecio/zvec/pkg/reformer"
)

// Config holds the two PARAM_IVF_SEARCHER_* tunables from §6.
type Config struct {
	BruteForceThreshold uint32
	ScanRatio           float32
}

// DefaultConfig returns the §6 documented defaults.
func DefaultConfig() Config {
	return Config{BruteForceThreshold: 1000, ScanRatio: 0.1}
}

// Context is one query's mutable search state: heap, stats, and the
// reformer scratch buffer. Not safe for concurrent use; each caller owns
// its own Context against a shared, immutable *ivf.Entity (§5).
type Context struct {
	entity    *ivf.Entity
	centroids *CentroidIndex
	reformer  *reformer.Reformer
	cfg       Config
	filter    ivf.Filter

	topk      int
	threshold float32

	stats ivf.Stats
}

// New builds a search context. topk must be positive; threshold <= 0
// disables score filtering.
func New(entity *ivf.Entity, centroids *CentroidIndex, rf *reformer.Reformer, cfg Config, topk int, threshold float32, filter ivf.Filter) (*Context, error) {
	if topk <= 0 {
		return nil, zvecerr.New(zvecerr.InvalidArgument, "searcher: topk must be positive")
	}
	if cfg.ScanRatio <= 0 {
		return nil, zvecerr.New(zvecerr.InvalidArgument, "searcher: scan_ratio must be > 0")
	}
	return &Context{entity: entity, centroids: centroids, reformer: rf, cfg: cfg, topk: topk, threshold: threshold, filter: filter}, nil
}

// Search runs one query end to end: list selection, batched scan per
// selected list, reformer denormalization, and final (score asc, key asc)
// sort (§3 testable property 6). On a partial failure it returns whatever
// candidates were gathered from lists that succeeded, alongside the error.
func (c *Context) Search(query []float32) ([]ivf.Candidate, error) {
	if _, err := c.reformer.Transform(query); err != nil {
		return nil, err
	}

	listIDs := c.selectLists(query)
	heap := NewTopKHeap(c.topk, c.threshold)
	c.stats = ivf.Stats{}

	var firstErr error
	for _, id := range listIDs {
		if err := c.entity.Search(id, query, c.filter, heap, &c.stats); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
	}

	results := heap.Sort()
	out := make([]ivf.Candidate, len(results))
	for i, r := range results {
		r.Score = c.reformer.DenormalizeScore(r.Score)
		out[i] = r
	}
	return out, firstErr
}

// selectLists implements §6's brute-force / scan-ratio policy: below the
// brute-force threshold every list is scanned; otherwise the centroid
// index ranks lists by distance and the scan proceeds list-by-list until
// either the scan-ratio topk count or the accumulated max_scan_count is
// reached.
func (c *Context) selectLists(query []float32) []int {
	total := c.entity.TotalVectorCount()
	listCount := c.entity.ListCount()

	if total < int(c.cfg.BruteForceThreshold) || c.centroids == nil {
		all := make([]int, listCount)
		for i := range all {
			all[i] = i
		}
		return all
	}

	nTopLists := int(math.Round(float64(listCount) * float64(c.cfg.ScanRatio)))
	if nTopLists < 1 {
		nTopLists = 1
	}
	maxScan := int(math.Ceil(float64(total) * float64(c.cfg.ScanRatio)))
	if maxScan < int(c.cfg.BruteForceThreshold) {
		maxScan = int(c.cfg.BruteForceThreshold)
	}

	ranked := c.centroids.RankLists(query)
	selected := make([]int, 0, nTopLists)
	scanned := 0
	for _, id := range ranked {
		if len(selected) >= nTopLists {
			break
		}
		selected = append(selected, id)
		scanned += c.entity.ListVectorCount(id)
		if scanned >= maxScan {
			break
		}
	}
	return selected
}

// Stats returns the accumulated scan statistics for the most recent Search.
func (c *Context) Stats() ivf.Stats { return c.stats }
