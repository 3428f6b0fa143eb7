// Package metrics collects resilience telemetry for guarded upstream
// calls.
//
// It uses a channel-based event pipeline to asynchronously record:
//   - Call outcomes per service (successes, failures)
//   - Circuit rejections and open transitions
//   - Rate limit denials and fail-open decisions
//   - Retry attempts
//   - Upstream health transitions
//   - Response times with percentile calculations (P50, P95, P99)
//
// The collector runs in a dedicated goroutine and processes events
// without blocking the call path. Emit is non-blocking: under
// backpressure events are dropped rather than stalling a caller.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:     metrics.EventCallSucceeded,
//		Service:  "market-data",
//		Duration: 150 * time.Millisecond,
//	})
//
//	snapshot := collector.Snapshot()
//
// The store is guarded by a sync.RWMutex and the collector drains its
// channel on shutdown so late events are not lost.
package metrics
