package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventCallSucceeded     EventType = "call_succeeded"
	EventCallFailed        EventType = "call_failed"
	EventCallRejected      EventType = "call_rejected"
	EventStateChanged      EventType = "state_changed"
	EventRateLimited       EventType = "rate_limited"
	EventRateLimitFailOpen EventType = "rate_limit_fail_open"
	EventRetryScheduled    EventType = "retry_scheduled"
	EventHealthChanged     EventType = "health_changed"
)

type MetricEvent struct {
	Type      EventType
	Timestamp time.Time
	Service   string
	Duration  time.Duration
	FromState string
	ToState   string
	Healthy   bool
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit sends an event without blocking; under backpressure the event
// is dropped rather than stalling the caller.
func (c *Collector) Emit(event MetricEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventCallSucceeded:
		c.metrics.RecordSuccess(event.Service, event.Duration)

	case EventCallFailed:
		c.metrics.RecordFailure(event.Service, event.Duration)

	case EventCallRejected:
		c.metrics.RecordRejection(event.Service)

	case EventStateChanged:
		c.metrics.RecordStateChange(event.Service, event.FromState, event.ToState)

	case EventRateLimited:
		c.metrics.RecordRateLimited(event.Service)

	case EventRateLimitFailOpen:
		c.metrics.RecordFailOpen(event.Service)

	case EventRetryScheduled:
		c.metrics.RecordRetry(event.Service)

	case EventHealthChanged:
		c.metrics.UpdateHealthStatus(event.Service, event.Healthy)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
