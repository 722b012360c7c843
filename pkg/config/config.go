package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all engine-core configuration.
type Config struct {
	Metrics      MetricsConfig
	Storage      StorageConfig
	WAL          WALConfig
	WorkerPool   WorkerPoolConfig
	IVFSearcher  IVFSearcherConfig
	ForwardStore ForwardStoreConfig
}

// MetricsConfig holds the Prometheus metrics listener configuration.
type MetricsConfig struct {
	Host string // Metrics listener host (default: "0.0.0.0")
	Port int    // Metrics listener port (default: 9090)
}

// StorageConfig holds on-disk data placement configuration.
type StorageConfig struct {
	DataDir    string // Data directory path
	SyncWrites bool   // fsync container writes before returning
}

// WALConfig holds write-ahead log configuration (§4.6).
type WALConfig struct {
	Enabled         bool // Enable the write-ahead log
	MaxDocsWALFlush int  // Flush once this many records are buffered
}

// WorkerPoolConfig holds the shared worker pool's sizing (§4.7).
type WorkerPoolConfig struct {
	Size int  // Number of worker goroutines (default: runtime.NumCPU())
	Bind bool // Pin each worker to a CPU core
}

// IVFSearcherConfig holds the PARAM_IVF_SEARCHER_* tunables of §6.
type IVFSearcherConfig struct {
	BruteForceThreshold int     // below this vector count, switch to full scan
	ScanRatio           float64 // fraction of inverted lists to visit (must be > 0)
}

// ForwardStoreConfig holds the columnar forward store's flush policy (§4.8).
type ForwardStoreConfig struct {
	FlushBytes int // buffer this many bytes before flushing a record batch
}

// HNSW related constants referenced by collection wiring outside the IVF
// core (§6): not part of this module's index type, kept so callers that
// still reference HNSW defaults compile against the same values the
// original engine used.
const (
	KDefaultHnswEfConstruction = 500
	KDefaultHnswNeighborCnt    = 50
	KDefaultHnswEfSearch       = 300
)

// Default returns the documented default configuration.
func Default() *Config {
	return &Config{
		Metrics: MetricsConfig{
			Host: "0.0.0.0",
			Port: 9090,
		},
		Storage: StorageConfig{
			DataDir:    "./data",
			SyncWrites: true,
		},
		WAL: WALConfig{
			Enabled:         true,
			MaxDocsWALFlush: 1000,
		},
		WorkerPool: WorkerPoolConfig{
			Size: 0, // 0 means runtime.NumCPU()
			Bind: false,
		},
		IVFSearcher: IVFSearcherConfig{
			BruteForceThreshold: 1000,
			ScanRatio:           0.1,
		},
		ForwardStore: ForwardStoreConfig{
			FlushBytes: 4 << 20,
		},
	}
}

// LoadFromEnv loads configuration from environment variables, falling back
// to Default() for anything unset or malformed.
func LoadFromEnv() *Config {
	cfg := Default()

	if host := os.Getenv("ZVEC_METRICS_HOST"); host != "" {
		cfg.Metrics.Host = host
	}
	if port := os.Getenv("ZVEC_METRICS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Metrics.Port = p
		}
	}

	if dataDir := os.Getenv("ZVEC_DATA_DIR"); dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if sync := os.Getenv("ZVEC_SYNC_WRITES"); sync == "false" {
		cfg.Storage.SyncWrites = false
	}

	if wal := os.Getenv("ZVEC_ENABLE_WAL"); wal == "false" {
		cfg.WAL.Enabled = false
	}
	if flush := os.Getenv("ZVEC_WAL_MAX_DOCS_FLUSH"); flush != "" {
		if f, err := strconv.Atoi(flush); err == nil {
			cfg.WAL.MaxDocsWALFlush = f
		}
	}

	if size := os.Getenv("ZVEC_WORKER_POOL_SIZE"); size != "" {
		if s, err := strconv.Atoi(size); err == nil {
			cfg.WorkerPool.Size = s
		}
	}
	if bind := os.Getenv("ZVEC_WORKER_POOL_BIND"); bind == "true" {
		cfg.WorkerPool.Bind = true
	}

	if threshold := os.Getenv("PARAM_IVF_SEARCHER_BRUTE_FORCE_THRESHOLD"); threshold != "" {
		if t, err := strconv.Atoi(threshold); err == nil {
			cfg.IVFSearcher.BruteForceThreshold = t
		}
	}
	if ratio := os.Getenv("PARAM_IVF_SEARCHER_SCAN_RATIO"); ratio != "" {
		if r, err := strconv.ParseFloat(ratio, 64); err == nil {
			cfg.IVFSearcher.ScanRatio = r
		}
	}

	if flushBytes := os.Getenv("ZVEC_FORWARD_STORE_FLUSH_BYTES"); flushBytes != "" {
		if fb, err := strconv.Atoi(flushBytes); err == nil {
			cfg.ForwardStore.FlushBytes = fb
		}
	}

	return cfg
}

// Validate checks if the configuration is self-consistent.
func (c *Config) Validate() error {
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d (must be 1-65535)", c.Metrics.Port)
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("data directory not specified")
	}
	if c.WAL.Enabled && c.WAL.MaxDocsWALFlush < 1 {
		return fmt.Errorf("invalid wal max_docs_wal_flush: %d (must be > 0)", c.WAL.MaxDocsWALFlush)
	}
	if c.WorkerPool.Size < 0 {
		return fmt.Errorf("invalid worker pool size: %d (must be >= 0)", c.WorkerPool.Size)
	}
	if c.IVFSearcher.BruteForceThreshold < 0 {
		return fmt.Errorf("invalid brute_force_threshold: %d (must be >= 0)", c.IVFSearcher.BruteForceThreshold)
	}
	if c.IVFSearcher.ScanRatio <= 0 {
		return fmt.Errorf("invalid scan_ratio: %v (must be > 0)", c.IVFSearcher.ScanRatio)
	}
	if c.ForwardStore.FlushBytes < 1 {
		return fmt.Errorf("invalid forward store flush_bytes: %d (must be > 0)", c.ForwardStore.FlushBytes)
	}
	return nil
}

// Address returns the metrics listener address (host:port).
func (c *MetricsConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RequestTimeout is a package-level default request timeout.
const RequestTimeout = 30 * time.Second
