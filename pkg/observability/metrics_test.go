package observability

import (
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	// Create metrics once for all subtests
	m := NewMetrics()

	t.Run("NewMetrics", func(t *testing.T) {
		if m == nil {
			t.Fatal("NewMetrics returned nil")
		}

		// Verify all metrics are initialized
		if m.RequestsTotal == nil {
			t.Error("RequestsTotal not initialized")
		}
		if m.RequestDuration == nil {
			t.Error("RequestDuration not initialized")
		}
		if m.VectorsInserted == nil {
			t.Error("VectorsInserted not initialized")
		}
		if m.SearchDistCalced == nil {
			t.Error("SearchDistCalced not initialized")
		}
	})

	t.Run("RecordRequest", func(t *testing.T) {
		// Test recording a successful request
		duration := 100 * time.Millisecond
		m.RecordRequest("Search", "success", duration)

		// Test recording a failed request
		m.RecordRequest("Search", "error", 50*time.Millisecond)

		// Test various methods
		methods := []string{"Search", "Insert", "Delete", "Build"}
		statuses := []string{"success", "error", "timeout"}

		for _, method := range methods {
			for _, status := range statuses {
				m.RecordRequest(method, status, duration)
			}
		}
	})

	t.Run("RecordError", func(t *testing.T) {
		// Test recording different error types
		m.RecordError("Search", "validation_error")
		m.RecordError("Build", "timeout")
		m.RecordError("Insert", "not_found")
	})

	t.Run("RecordInsert", func(t *testing.T) {
		// Test single insert
		m.RecordInsert(1)

		// Test multiple inserts
		for i := 0; i < 100; i++ {
			m.RecordInsert(1)
		}

		// Test batch insert
		m.RecordInsert(1000)
	})

	t.Run("RecordDelete", func(t *testing.T) {
		// Test single delete
		m.RecordDelete(1)

		// Test multiple deletes
		for i := 0; i < 50; i++ {
			m.RecordDelete(1)
		}

		// Test batch delete
		m.RecordDelete(100)
	})

	t.Run("RecordSearch", func(t *testing.T) {
		// Test search recording with Stats (dist_calced_count, filtered_count, scan_count)
		m.RecordSearch(50*time.Millisecond, 10, 4096, 128, 2000, false)
		m.RecordSearch(100*time.Millisecond, 25, 8192, 0, 10000, false)
		m.RecordSearch(5*time.Millisecond, 5, 50000, 0, 50000, true)

		// Test with various result sizes
		for i := 1; i <= 100; i += 10 {
			m.RecordSearch(time.Millisecond*time.Duration(i), i, i*100, i, i*10, false)
		}
	})

	t.Run("UpdateIndexSize", func(t *testing.T) {
		// Test updating index size for different segments
		m.UpdateIndexSize("seg-0", 1000)
		m.UpdateIndexSize("seg-1", 50000)

		// Test updating same segment
		m.UpdateIndexSize("seg-0", 1500)
		m.UpdateIndexSize("seg-0", 2000)
	})

	t.Run("UpdateIndexMemory", func(t *testing.T) {
		// Test memory updates
		m.UpdateIndexMemory("seg-0", 1024*1024*100) // 100 MB
		m.UpdateIndexMemory("seg-1", 1024*1024*1024) // 1 GB
	})

	t.Run("UpdateIVFListCount", func(t *testing.T) {
		m.UpdateIVFListCount("seg-0", 256)
		m.UpdateIVFListCount("seg-1", 1024)
	})

	t.Run("WAL", func(t *testing.T) {
		m.RecordWALAppend(128)
		m.RecordWALAppend(4096)
		m.RecordWALFlush()
		m.RecordWALReplay(10, false)
		m.RecordWALReplay(3, true)
	})

	t.Run("Quantizer", func(t *testing.T) {
		m.RecordQuantizerTrain(250*time.Millisecond, 0.0012)
		m.RecordQuantizerTrain(1*time.Second, 0.0008)
	})

	t.Run("WorkerPool", func(t *testing.T) {
		m.UpdateWorkerPoolState(12, 4)
		m.RecordWorkerPoolTask(2 * time.Millisecond)
		m.RecordWorkerPoolTask(15 * time.Millisecond)
	})

	t.Run("Store", func(t *testing.T) {
		m.UpdateStoreRowsBuffered(4096)
		m.RecordStoreFlush()
	})

	t.Run("UpdateSystemMetrics", func(t *testing.T) {
		// Test system metrics updates
		m.UpdateGoroutineCount(100)
		m.UpdateMemoryUsage(1024 * 1024 * 512) // 512 MB
		m.UpdateCPUUsage(45.5)

		// Test multiple updates
		for i := 0; i < 10; i++ {
			m.UpdateGoroutineCount(100 + i*10)
			m.UpdateMemoryUsage(uint64(1024 * 1024 * (500 + i*100)))
			m.UpdateCPUUsage(40.0 + float64(i)*2.5)
		}
	})
}

func TestConcurrentMetricUpdates(t *testing.T) {
	done := make(chan bool, 10)
	m := NewMetrics()

	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 10; j++ {
				m.RecordInsert(1)
				m.UpdateWorkerPoolState(j, j%4)
			}
			done <- true
		}()
	}

	// Wait for all goroutines
	for i := 0; i < 10; i++ {
		<-done
	}
}

func BenchmarkRecordSearch(b *testing.B) {
	b.Skip("Skipping benchmark due to global metric registry conflicts")
}

func BenchmarkUpdateIndexSize(b *testing.B) {
	b.Skip("Skipping benchmark due to global metric registry conflicts")
}

func BenchmarkConcurrentMetricUpdates(b *testing.B) {
	b.Skip("Skipping benchmark due to global metric registry conflicts")
}
