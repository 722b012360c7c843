package ivf

// Stats accumulates per-search counters threaded through search() (§4.3,
// §8 property 5): dist_calced_count and filtered_count increase
// monotonically; scan_count receives each visited list's logical vector
// count.
type Stats struct {
	DistCalcedCount uint64
	FilteredCount   uint64
	ScanCount       uint64
}

// Add merges other's counters into s.
func (s *Stats) Add(other Stats) {
	s.DistCalcedCount += other.DistCalcedCount
	s.FilteredCount += other.FilteredCount
	s.ScanCount += other.ScanCount
}
