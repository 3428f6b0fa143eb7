// Package circuitbreaker gates calls to unreliable upstream services.
//
// A circuit breaker stops hammering a failing dependency and lets
// callers fail fast once failure is likely. It has three states:
//
//   - CLOSED: calls execute normally, consecutive failures are counted
//   - OPEN: calls are rejected immediately with *CircuitOpenError
//   - HALF-OPEN: the next call runs as a probe to test recovery
//
// The OPEN to HALF-OPEN transition is lazy: it is evaluated whenever
// state is read, once the recovery timeout has elapsed since the last
// failure. There is no background timer.
//
// The breaker's mutex is held only across bookkeeping, never across the
// wrapped operation, so a slow upstream call does not serialize other
// callers. A consequence is that several callers may each observe
// HALF-OPEN and each run a probe concurrently. That race is accepted
// deliberately: the cost is a few extra calls to an already-recovering
// service, and funneling probes through a token would change observable
// behavior for no practical gain.
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry()
//	cb := registry.GetBreaker("market-data", 5, 30*time.Second)
//	err := cb.Call(func() error {
//	    return client.FetchQuotes(ctx)
//	})
//	if circuitbreaker.IsOpen(err) {
//	    // Serve a cached or degraded response.
//	}
package circuitbreaker
