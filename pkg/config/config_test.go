package config

import (
	"os"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Metrics.Host != "0.0.0.0" {
		t.Errorf("Expected metrics host 0.0.0.0, got %s", cfg.Metrics.Host)
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected metrics port 9090, got %d", cfg.Metrics.Port)
	}

	if cfg.Storage.DataDir != "./data" {
		t.Errorf("Expected data dir ./data, got %s", cfg.Storage.DataDir)
	}
	if !cfg.Storage.SyncWrites {
		t.Error("Expected sync writes enabled by default")
	}

	if !cfg.WAL.Enabled {
		t.Error("Expected WAL enabled by default")
	}
	if cfg.WAL.MaxDocsWALFlush != 1000 {
		t.Errorf("Expected max_docs_wal_flush 1000, got %d", cfg.WAL.MaxDocsWALFlush)
	}

	if cfg.WorkerPool.Bind {
		t.Error("Expected worker pool binding disabled by default")
	}

	if cfg.IVFSearcher.BruteForceThreshold != 1000 {
		t.Errorf("Expected brute_force_threshold 1000, got %d", cfg.IVFSearcher.BruteForceThreshold)
	}
	if cfg.IVFSearcher.ScanRatio != 0.1 {
		t.Errorf("Expected scan_ratio 0.1, got %v", cfg.IVFSearcher.ScanRatio)
	}

	if cfg.ForwardStore.FlushBytes != 4<<20 {
		t.Errorf("Expected flush_bytes %d, got %d", 4<<20, cfg.ForwardStore.FlushBytes)
	}
}

func TestLoadFromEnv(t *testing.T) {
	envVars := []string{
		"ZVEC_METRICS_HOST", "ZVEC_METRICS_PORT",
		"ZVEC_DATA_DIR", "ZVEC_SYNC_WRITES",
		"ZVEC_ENABLE_WAL", "ZVEC_WAL_MAX_DOCS_FLUSH",
		"ZVEC_WORKER_POOL_SIZE", "ZVEC_WORKER_POOL_BIND",
		"PARAM_IVF_SEARCHER_BRUTE_FORCE_THRESHOLD", "PARAM_IVF_SEARCHER_SCAN_RATIO",
		"ZVEC_FORWARD_STORE_FLUSH_BYTES",
	}
	original := make(map[string]string)
	for _, key := range envVars {
		original[key] = os.Getenv(key)
	}
	defer func() {
		for key, value := range original {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	}()

	os.Setenv("ZVEC_METRICS_HOST", "127.0.0.1")
	os.Setenv("ZVEC_METRICS_PORT", "8080")
	os.Setenv("ZVEC_DATA_DIR", "/var/lib/zvec")
	os.Setenv("ZVEC_SYNC_WRITES", "false")
	os.Setenv("ZVEC_ENABLE_WAL", "false")
	os.Setenv("ZVEC_WAL_MAX_DOCS_FLUSH", "5000")
	os.Setenv("ZVEC_WORKER_POOL_SIZE", "8")
	os.Setenv("ZVEC_WORKER_POOL_BIND", "true")
	os.Setenv("PARAM_IVF_SEARCHER_BRUTE_FORCE_THRESHOLD", "500")
	os.Setenv("PARAM_IVF_SEARCHER_SCAN_RATIO", "0.25")
	os.Setenv("ZVEC_FORWARD_STORE_FLUSH_BYTES", "1048576")

	cfg := LoadFromEnv()

	if cfg.Metrics.Host != "127.0.0.1" {
		t.Errorf("Expected metrics host 127.0.0.1, got %s", cfg.Metrics.Host)
	}
	if cfg.Metrics.Port != 8080 {
		t.Errorf("Expected metrics port 8080, got %d", cfg.Metrics.Port)
	}
	if cfg.Storage.DataDir != "/var/lib/zvec" {
		t.Errorf("Expected data dir /var/lib/zvec, got %s", cfg.Storage.DataDir)
	}
	if cfg.Storage.SyncWrites {
		t.Error("Expected sync writes disabled")
	}
	if cfg.WAL.Enabled {
		t.Error("Expected WAL disabled")
	}
	if cfg.WAL.MaxDocsWALFlush != 5000 {
		t.Errorf("Expected max_docs_wal_flush 5000, got %d", cfg.WAL.MaxDocsWALFlush)
	}
	if cfg.WorkerPool.Size != 8 {
		t.Errorf("Expected worker pool size 8, got %d", cfg.WorkerPool.Size)
	}
	if !cfg.WorkerPool.Bind {
		t.Error("Expected worker pool binding enabled")
	}
	if cfg.IVFSearcher.BruteForceThreshold != 500 {
		t.Errorf("Expected brute_force_threshold 500, got %d", cfg.IVFSearcher.BruteForceThreshold)
	}
	if cfg.IVFSearcher.ScanRatio != 0.25 {
		t.Errorf("Expected scan_ratio 0.25, got %v", cfg.IVFSearcher.ScanRatio)
	}
	if cfg.ForwardStore.FlushBytes != 1048576 {
		t.Errorf("Expected flush_bytes 1048576, got %d", cfg.ForwardStore.FlushBytes)
	}
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	original := os.Getenv("ZVEC_METRICS_PORT")
	defer func() {
		if original == "" {
			os.Unsetenv("ZVEC_METRICS_PORT")
		} else {
			os.Setenv("ZVEC_METRICS_PORT", original)
		}
	}()

	os.Setenv("ZVEC_METRICS_PORT", "not-a-number")
	cfg := LoadFromEnv()

	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default port 9090 for invalid value, got %d", cfg.Metrics.Port)
	}
}

func TestLoadFromEnv_DefaultsWhenNotSet(t *testing.T) {
	envVars := []string{
		"ZVEC_METRICS_HOST", "ZVEC_METRICS_PORT",
		"ZVEC_DATA_DIR", "ZVEC_SYNC_WRITES",
		"ZVEC_ENABLE_WAL", "ZVEC_WAL_MAX_DOCS_FLUSH",
		"ZVEC_WORKER_POOL_SIZE", "ZVEC_WORKER_POOL_BIND",
		"PARAM_IVF_SEARCHER_BRUTE_FORCE_THRESHOLD", "PARAM_IVF_SEARCHER_SCAN_RATIO",
		"ZVEC_FORWARD_STORE_FLUSH_BYTES",
	}
	original := make(map[string]string)
	for _, key := range envVars {
		original[key] = os.Getenv(key)
		os.Unsetenv(key)
	}
	defer func() {
		for key, value := range original {
			if value != "" {
				os.Setenv(key, value)
			}
		}
	}()

	cfg := LoadFromEnv()
	defaults := Default()

	if cfg.Metrics.Host != defaults.Metrics.Host {
		t.Errorf("Expected default metrics host, got %s", cfg.Metrics.Host)
	}
	if cfg.IVFSearcher.ScanRatio != defaults.IVFSearcher.ScanRatio {
		t.Errorf("Expected default scan_ratio, got %v", cfg.IVFSearcher.ScanRatio)
	}
	if cfg.Storage.DataDir != defaults.Storage.DataDir {
		t.Errorf("Expected default data dir, got %s", cfg.Storage.DataDir)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "Valid default config",
			config:  Default(),
			wantErr: false,
		},
		{
			name: "Invalid metrics port (too low)",
			config: &Config{
				Metrics: MetricsConfig{Port: 0},
				Storage: StorageConfig{DataDir: "./data"},
				IVFSearcher: IVFSearcherConfig{ScanRatio: 0.1},
				ForwardStore: ForwardStoreConfig{FlushBytes: 1},
			},
			wantErr: true,
		},
		{
			name: "Missing data dir",
			config: &Config{
				Metrics: MetricsConfig{Port: 9090},
				IVFSearcher: IVFSearcherConfig{ScanRatio: 0.1},
				ForwardStore: ForwardStoreConfig{FlushBytes: 1},
			},
			wantErr: true,
		},
		{
			name: "Invalid scan ratio",
			config: &Config{
				Metrics:      MetricsConfig{Port: 9090},
				Storage:      StorageConfig{DataDir: "./data"},
				IVFSearcher:  IVFSearcherConfig{ScanRatio: 0},
				ForwardStore: ForwardStoreConfig{FlushBytes: 1},
			},
			wantErr: true,
		},
		{
			name: "Invalid flush bytes",
			config: &Config{
				Metrics:      MetricsConfig{Port: 9090},
				Storage:      StorageConfig{DataDir: "./data"},
				IVFSearcher:  IVFSearcherConfig{ScanRatio: 0.1},
				ForwardStore: ForwardStoreConfig{FlushBytes: 0},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMetricsConfig_Address(t *testing.T) {
	cfg := MetricsConfig{Host: "localhost", Port: 8080}

	addr := cfg.Address()
	if addr != "localhost:8080" {
		t.Errorf("Expected address localhost:8080, got %s", addr)
	}

	defaultCfg := Default()
	if got := defaultCfg.Metrics.Address(); got != "0.0.0.0:9090" {
		t.Errorf("Expected default address 0.0.0.0:9090, got %s", got)
	}
}
