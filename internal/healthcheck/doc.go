// Package healthcheck probes upstream health endpoints on an interval
// and feeds transitions to the metrics collector.
package healthcheck
