package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics exported by the engine core.
type Metrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestErrors   *prometheus.CounterVec

	// Vector operation metrics
	VectorsInserted prometheus.Counter
	VectorsDeleted  prometheus.Counter
	VectorsSearched prometheus.Counter

	// IVF index metrics
	IndexSize        *prometheus.GaugeVec
	IndexMemoryBytes *prometheus.GaugeVec
	IVFListCount     *prometheus.GaugeVec

	// Search metrics (§4.3 Stats: dist_calced_count, filtered_count, scan_count)
	SearchLatency    prometheus.Histogram
	SearchResultSize prometheus.Histogram
	SearchDistCalced prometheus.Counter
	SearchFiltered   prometheus.Counter
	SearchScanCount  prometheus.Counter
	SearchBruteForce prometheus.Counter

	// WAL metrics
	WALAppendsTotal  prometheus.Counter
	WALBytesWritten  prometheus.Counter
	WALFlushesTotal  prometheus.Counter
	WALReplayRecords prometheus.Counter
	WALCorruptStops  prometheus.Counter

	// Quantizer metrics
	QuantizerTrainSeconds prometheus.Histogram
	QuantizerKLDivergence prometheus.Histogram

	// Worker pool metrics
	WorkerPoolQueueDepth  prometheus.Gauge
	WorkerPoolActive      prometheus.Gauge
	WorkerPoolTasksTotal  prometheus.Counter
	WorkerPoolTaskSeconds prometheus.Histogram

	// Forward store metrics
	StoreRowsBuffered prometheus.Gauge
	StoreFlushesTotal prometheus.Counter

	// System metrics
	GoroutinesCount prometheus.Gauge
	MemoryUsage     prometheus.Gauge
	CPUUsage        prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zvec_requests_total",
				Help: "Total number of requests by method and status",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zvec_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),
		RequestErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zvec_request_errors_total",
				Help: "Total number of request errors by method and error type",
			},
			[]string{"method", "error_type"},
		),

		VectorsInserted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "zvec_vectors_inserted_total",
				Help: "Total number of vectors inserted",
			},
		),
		VectorsDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "zvec_vectors_deleted_total",
				Help: "Total number of vectors deleted",
			},
		),
		VectorsSearched: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "zvec_vectors_searched_total",
				Help: "Total number of search operations",
			},
		),

		IndexSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zvec_ivf_index_size",
				Help: "Number of vectors in the IVF index by segment",
			},
			[]string{"segment"},
		),
		IndexMemoryBytes: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zvec_ivf_index_memory_bytes",
				Help: "Memory usage of the IVF index in bytes by segment",
			},
			[]string{"segment"},
		),
		IVFListCount: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zvec_ivf_list_count",
				Help: "Number of inverted lists by segment",
			},
			[]string{"segment"},
		),

		SearchLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "zvec_search_latency_seconds",
				Help:    "Search latency in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		SearchResultSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "zvec_search_result_size",
				Help:    "Number of results returned by search",
				Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
			},
		),
		SearchDistCalced: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "zvec_search_dist_calced_total",
				Help: "Total number of distance computations performed across all searches",
			},
		),
		SearchFiltered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "zvec_search_filtered_total",
				Help: "Total number of candidates skipped by the filter bitset across all searches",
			},
		),
		SearchScanCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "zvec_search_scan_total",
				Help: "Total number of inverted-list entries scanned across all searches",
			},
		),
		SearchBruteForce: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "zvec_search_brute_force_total",
				Help: "Total number of searches that fell back to brute-force scan",
			},
		),

		WALAppendsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "zvec_wal_appends_total",
				Help: "Total number of records appended to the write-ahead log",
			},
		),
		WALBytesWritten: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "zvec_wal_bytes_written_total",
				Help: "Total number of payload bytes written to the write-ahead log",
			},
		),
		WALFlushesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "zvec_wal_flushes_total",
				Help: "Total number of WAL fsync flushes",
			},
		),
		WALReplayRecords: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "zvec_wal_replay_records_total",
				Help: "Total number of records replayed from the WAL",
			},
		),
		WALCorruptStops: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "zvec_wal_corrupt_stops_total",
				Help: "Total number of times WAL replay stopped early due to corruption",
			},
		),

		QuantizerTrainSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "zvec_quantizer_train_seconds",
				Help:    "Time spent searching the KL-minimizing clip threshold",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30},
			},
		),
		QuantizerKLDivergence: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "zvec_quantizer_kl_divergence",
				Help:    "KL divergence of the winning clip threshold",
				Buckets: []float64{.0001, .001, .01, .05, .1, .5, 1},
			},
		),

		WorkerPoolQueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "zvec_workerpool_queue_depth",
				Help: "Current number of tasks waiting in the worker pool queue",
			},
		),
		WorkerPoolActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "zvec_workerpool_active_workers",
				Help: "Current number of worker goroutines running a task",
			},
		),
		WorkerPoolTasksTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "zvec_workerpool_tasks_total",
				Help: "Total number of tasks executed by the worker pool",
			},
		),
		WorkerPoolTaskSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "zvec_workerpool_task_seconds",
				Help:    "Task execution duration in seconds",
				Buckets: []float64{.0001, .001, .01, .1, 1, 10},
			},
		),

		StoreRowsBuffered: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "zvec_store_rows_buffered",
				Help: "Current number of rows buffered in the forward store before flush",
			},
		),
		StoreFlushesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "zvec_store_flushes_total",
				Help: "Total number of forward-store flushes to segmented storage",
			},
		),

		GoroutinesCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "zvec_goroutines",
				Help: "Current number of goroutines",
			},
		),
		MemoryUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "zvec_memory_bytes",
				Help: "Memory usage in bytes",
			},
		),
		CPUUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "zvec_cpu_usage",
				Help: "CPU usage percentage",
			},
		),
	}

	return m
}

// RecordRequest records a request with duration and status.
func (m *Metrics) RecordRequest(method, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, status).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordError records an error.
func (m *Metrics) RecordError(method, errorType string) {
	m.RequestErrors.WithLabelValues(method, errorType).Inc()
}

// RecordInsert records a vector insertion.
func (m *Metrics) RecordInsert(count int) {
	m.VectorsInserted.Add(float64(count))
}

// RecordDelete records a vector deletion.
func (m *Metrics) RecordDelete(count int) {
	m.VectorsDeleted.Add(float64(count))
}

// RecordSearch records a completed search along with its Stats counters
// (§4.3: dist_calced_count, filtered_count, scan_count).
func (m *Metrics) RecordSearch(duration time.Duration, resultSize int, distCalced, filtered, scanned int, bruteForce bool) {
	m.VectorsSearched.Inc()
	m.SearchLatency.Observe(duration.Seconds())
	m.SearchResultSize.Observe(float64(resultSize))
	m.SearchDistCalced.Add(float64(distCalced))
	m.SearchFiltered.Add(float64(filtered))
	m.SearchScanCount.Add(float64(scanned))
	if bruteForce {
		m.SearchBruteForce.Inc()
	}
}

// UpdateIndexSize updates the IVF index size metric.
func (m *Metrics) UpdateIndexSize(segment string, size int) {
	m.IndexSize.WithLabelValues(segment).Set(float64(size))
}

// UpdateIndexMemory updates the IVF index memory metric.
func (m *Metrics) UpdateIndexMemory(segment string, bytes int64) {
	m.IndexMemoryBytes.WithLabelValues(segment).Set(float64(bytes))
}

// UpdateIVFListCount updates the inverted-list count metric.
func (m *Metrics) UpdateIVFListCount(segment string, count int) {
	m.IVFListCount.WithLabelValues(segment).Set(float64(count))
}

// RecordWALAppend records one WAL record append.
func (m *Metrics) RecordWALAppend(payloadBytes int) {
	m.WALAppendsTotal.Inc()
	m.WALBytesWritten.Add(float64(payloadBytes))
}

// RecordWALFlush records one WAL fsync.
func (m *Metrics) RecordWALFlush() {
	m.WALFlushesTotal.Inc()
}

// RecordWALReplay records progress of a WAL replay pass.
func (m *Metrics) RecordWALReplay(records int, stoppedOnCorruption bool) {
	m.WALReplayRecords.Add(float64(records))
	if stoppedOnCorruption {
		m.WALCorruptStops.Inc()
	}
}

// RecordQuantizerTrain records one Train() call's duration and winning KL divergence.
func (m *Metrics) RecordQuantizerTrain(duration time.Duration, kl float64) {
	m.QuantizerTrainSeconds.Observe(duration.Seconds())
	m.QuantizerKLDivergence.Observe(kl)
}

// UpdateWorkerPoolState updates the worker pool's live queue depth and active worker count.
func (m *Metrics) UpdateWorkerPoolState(queueDepth, active int) {
	m.WorkerPoolQueueDepth.Set(float64(queueDepth))
	m.WorkerPoolActive.Set(float64(active))
}

// RecordWorkerPoolTask records one completed worker pool task.
func (m *Metrics) RecordWorkerPoolTask(duration time.Duration) {
	m.WorkerPoolTasksTotal.Inc()
	m.WorkerPoolTaskSeconds.Observe(duration.Seconds())
}

// UpdateStoreRowsBuffered updates the forward store's buffered row count.
func (m *Metrics) UpdateStoreRowsBuffered(rows int) {
	m.StoreRowsBuffered.Set(float64(rows))
}

// RecordStoreFlush records one forward-store flush to segmented storage.
func (m *Metrics) RecordStoreFlush() {
	m.StoreFlushesTotal.Inc()
}

// UpdateGoroutineCount updates goroutine count.
func (m *Metrics) UpdateGoroutineCount(count int) {
	m.GoroutinesCount.Set(float64(count))
}

// UpdateMemoryUsage updates memory usage.
func (m *Metrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

// UpdateCPUUsage updates CPU usage.
func (m *Metrics) UpdateCPUUsage(percentage float64) {
	m.CPUUsage.Set(percentage)
}
