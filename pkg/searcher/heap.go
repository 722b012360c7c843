package searcher

import (
	"container/heap"
	"sort"

	"github.com/zvecio/zvec/pkg/ivf"
)

// maxHeap is a bounded max-heap over ivf.Candidate keyed by score, used to
// keep the topk smallest-scoring candidates seen so far: when full, a new
// candidate only survives if it beats the current worst (root) entry.
// Grounded on the teacher's container/heap min/max-heap pair in
// pkg/hnsw/insert.go.
type maxHeap []ivf.Candidate

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].Score > h[j].Score }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(ivf.Candidate)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// TopKHeap bounds candidates to at most topk entries, each no worse than
// threshold, and exposes them sorted by (score asc, key asc) per §3
// testable property 6. Not safe for concurrent use.
type TopKHeap struct {
	topk      int
	threshold float32
	hasThresh bool
	h         maxHeap
	sorted    []ivf.Candidate
}

// NewTopKHeap builds a heap bounded to topk entries. If threshold > 0 it is
// applied as an inclusive upper bound on score.
func NewTopKHeap(topk int, threshold float32) *TopKHeap {
	return &TopKHeap{topk: topk, threshold: threshold, hasThresh: threshold > 0}
}

// Insert implements ivf.Heap.
func (t *TopKHeap) Insert(c ivf.Candidate) {
	if t.hasThresh && c.Score > t.threshold {
		return
	}
	if t.topk <= 0 {
		return
	}
	if len(t.h) < t.topk {
		heap.Push(&t.h, c)
		return
	}
	if len(t.h) > 0 && c.Score < t.h[0].Score {
		heap.Pop(&t.h)
		heap.Push(&t.h, c)
	}
}

// Sort finalizes the heap into ascending (score, key) order and caches the
// result; safe to call multiple times.
func (t *TopKHeap) Sort() []ivf.Candidate {
	if t.sorted != nil {
		return t.sorted
	}
	out := make([]ivf.Candidate, len(t.h))
	copy(out, t.h)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Key < out[j].Key
	})
	t.sorted = out
	return out
}

// Len reports how many candidates currently survive (pre-Sort).
func (t *TopKHeap) Len() int { return len(t.h) }
