package metrics

import (
	"sort"
	"sync"
	"time"
)

type Metrics struct {
	mutex         sync.RWMutex
	successes     map[string]int64
	failures      map[string]int64
	rejections    map[string]int64
	rateLimited   map[string]int64
	failOpens     map[string]int64
	retries       map[string]int64
	opens         map[string]int64
	lastState     map[string]string
	healthStatus  map[string]bool
	responseTimes map[string][]time.Duration
	startTime     time.Time
}

type Snapshot struct {
	TotalCalls int64                     `json:"total_calls"`
	Uptime     time.Duration             `json:"uptime"`
	Services   map[string]ServiceMetrics `json:"services"`
}

type ServiceMetrics struct {
	Successes   int64         `json:"successes"`
	Failures    int64         `json:"failures"`
	Rejections  int64         `json:"rejections"`
	RateLimited int64         `json:"rate_limited"`
	FailOpens   int64         `json:"fail_opens"`
	Retries     int64         `json:"retries"`
	Opens       int64         `json:"opens"`
	State       string        `json:"state,omitempty"`
	Healthy     bool          `json:"healthy"`
	AvgResponse time.Duration `json:"avg_response"`
	P50Response time.Duration `json:"p50_response"`
	P95Response time.Duration `json:"p95_response"`
	P99Response time.Duration `json:"p99_response"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		successes:     make(map[string]int64),
		failures:      make(map[string]int64),
		rejections:    make(map[string]int64),
		rateLimited:   make(map[string]int64),
		failOpens:     make(map[string]int64),
		retries:       make(map[string]int64),
		opens:         make(map[string]int64),
		lastState:     make(map[string]string),
		healthStatus:  make(map[string]bool),
		responseTimes: make(map[string][]time.Duration),
		startTime:     time.Now(),
	}
}

func (m *Metrics) RecordSuccess(service string, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.successes[service]++
	m.recordResponse(service, duration)
}

func (m *Metrics) RecordFailure(service string, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failures[service]++
	m.recordResponse(service, duration)
}

func (m *Metrics) RecordRejection(service string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rejections[service]++
}

func (m *Metrics) RecordRateLimited(service string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rateLimited[service]++
}

func (m *Metrics) RecordFailOpen(service string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failOpens[service]++
}

func (m *Metrics) RecordRetry(service string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.retries[service]++
}

func (m *Metrics) RecordStateChange(service, from, to string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.lastState[service] = to
	if to == "OPEN" {
		m.opens[service]++
	}
}

func (m *Metrics) UpdateHealthStatus(service string, healthy bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.healthStatus[service] = healthy
}

// recordResponse keeps a bounded window of recent durations. Caller
// must hold m.mutex.
func (m *Metrics) recordResponse(service string, duration time.Duration) {
	m.responseTimes[service] = append(m.responseTimes[service], duration)
	if len(m.responseTimes[service]) > 1000 {
		m.responseTimes[service] = m.responseTimes[service][1:]
	}
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:   time.Since(m.startTime),
		Services: make(map[string]ServiceMetrics),
	}

	// Collect all service names seen by any counter
	services := make(map[string]bool)
	for _, counters := range []map[string]int64{
		m.successes, m.failures, m.rejections, m.rateLimited, m.failOpens, m.retries,
	} {
		for service := range counters {
			services[service] = true
		}
	}
	for service := range m.lastState {
		services[service] = true
	}
	for service := range m.healthStatus {
		services[service] = true
	}

	for service := range services {
		snap.TotalCalls += m.successes[service] + m.failures[service] + m.rejections[service]

		sm := ServiceMetrics{
			Successes:   m.successes[service],
			Failures:    m.failures[service],
			Rejections:  m.rejections[service],
			RateLimited: m.rateLimited[service],
			FailOpens:   m.failOpens[service],
			Retries:     m.retries[service],
			Opens:       m.opens[service],
			State:       m.lastState[service],
			Healthy:     m.healthStatus[service],
		}

		durations := m.responseTimes[service]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			sm.AvgResponse = average(sorted)
			sm.P50Response = percentile(sorted, 0.50)
			sm.P95Response = percentile(sorted, 0.95)
			sm.P99Response = percentile(sorted, 0.99)
		}

		snap.Services[service] = sm
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
