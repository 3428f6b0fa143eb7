// Package cache stores upstream response bodies in Redis with a TTL.
// Entries back degraded responses while a service's circuit is open.
package cache
