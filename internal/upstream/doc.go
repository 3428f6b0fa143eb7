// Package upstream is the guarded HTTP client for third-party services.
// Every fetch passes the rate limiter, then a retry loop whose each
// attempt is gated by the service's circuit breaker. Open circuits
// serve a cached body when available so callers degrade instead of
// failing outright.
package upstream
