package observe

import (
	"context"
	"runtime"
	"time"

	"github.com/okian/ranker/pkg/metrics"
)

const nanosecondsPerMillisecond = 1e6

// CollectRuntime refreshes the system gauges every interval until ctx ends.
func CollectRuntime(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	UpdateRuntimeMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			UpdateRuntimeMetrics()
		}
	}
}

// UpdateRuntimeMetrics records memory, goroutine and GC pause gauges once.
func UpdateRuntimeMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		metrics.RecordSystemGCPauseTime(float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond)
	}
}
