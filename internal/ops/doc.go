// Package ops exposes the diagnostics HTTP surface: health, breaker
// states and administrative resets.
package ops
