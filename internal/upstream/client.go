package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quotegate/guardian/internal/circuitbreaker"
	"github.com/quotegate/guardian/internal/metrics"
	"github.com/quotegate/guardian/internal/ratelimit"
	"github.com/quotegate/guardian/internal/retry"
)

const maxResponseSize = 10 << 20 // 10MB

// Service describes one guarded upstream dependency.
type Service struct {
	Name             string
	BaseURL          string
	HealthPath       string
	FailureThreshold int
	RecoveryTimeout  time.Duration
	CacheTTL         time.Duration
}

// StatusError reports a non-success HTTP status from an upstream.
// Server errors (>= 500) count as breaker failures and are retried;
// client errors are returned to the caller untouched.
type StatusError struct {
	Service string
	Code    int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Service, e.Code)
}

// Cache is the slice of the response cache the client needs. Nil-able
// via config; cache.Store satisfies it.
type Cache interface {
	Get(ctx context.Context, service, path string) ([]byte, error)
	Set(ctx context.Context, service, path string, body []byte, ttl time.Duration) error
}

// Client fetches from upstream services through the full resilience
// stack: rate limiter, then retry loop, then circuit breaker, then a
// single HTTP request. When a circuit is open and a cached body exists,
// the cached body is served as a degraded response.
type Client struct {
	httpClient *http.Client
	breakers   *circuitbreaker.Registry
	limiter    ratelimit.Limiter
	policy     retry.Policy
	sleeper    retry.Sleeper
	store      Cache
	collector  *metrics.Collector
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCache enables the degraded-response cache.
func WithCache(store Cache) ClientOption {
	return func(c *Client) {
		c.store = store
	}
}

// WithCollector wires call outcomes into the metrics pipeline.
func WithCollector(collector *metrics.Collector) ClientOption {
	return func(c *Client) {
		c.collector = collector
	}
}

// WithSleeper replaces the retry sleeper. Useful for testing.
func WithSleeper(sleeper retry.Sleeper) ClientOption {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(breakers *circuitbreaker.Registry, limiter ratelimit.Limiter, policy retry.Policy, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		breakers:   breakers,
		limiter:    limiter,
		policy:     policy,
		sleeper:    retry.NewSleeper(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type response struct {
	status int
	body   []byte
}

// Fetch GETs path from svc through the resilience stack and returns
// the response body. An open circuit yields the cached body when one
// exists, otherwise the *circuitbreaker.CircuitOpenError.
func (c *Client) Fetch(ctx context.Context, svc Service, path string) ([]byte, error) {
	if err := c.pace(ctx, svc); err != nil {
		return nil, err
	}

	cb := c.breakers.GetBreaker(svc.Name, svc.FailureThreshold, svc.RecoveryTimeout)

	body, err := retry.DoValue(ctx, c.policy, c.sleeper, c.retryable(svc), func() ([]byte, error) {
		return c.fetchOnce(ctx, cb, svc, path)
	})
	if err == nil {
		c.cacheBody(ctx, svc, path, body)
		return body, nil
	}

	if circuitbreaker.IsOpen(err) {
		if cached, ok := c.cachedBody(ctx, svc, path); ok {
			c.logger.Warn("circuit open, serving cached response",
				slog.String("upstream", svc.Name),
				slog.String("path", path))
			return cached, nil
		}
	}

	return nil, err
}

func (c *Client) fetchOnce(ctx context.Context, cb *circuitbreaker.CircuitBreaker, svc Service, path string) ([]byte, error) {
	start := time.Now()

	resp, err := circuitbreaker.Do(cb, func() (response, error) {
		return c.get(ctx, svc, path)
	})
	if err != nil {
		if circuitbreaker.IsOpen(err) {
			c.emit(metrics.MetricEvent{Type: metrics.EventCallRejected, Service: svc.Name})
		} else {
			c.emit(metrics.MetricEvent{
				Type:     metrics.EventCallFailed,
				Service:  svc.Name,
				Duration: time.Since(start),
			})
			c.logger.Warn("upstream call failed",
				slog.String("upstream", svc.Name),
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return nil, err
	}

	// Client errors pass through the breaker as successes: a 404 says
	// nothing about the upstream's health.
	if resp.status >= http.StatusBadRequest {
		c.emit(metrics.MetricEvent{
			Type:     metrics.EventCallFailed,
			Service:  svc.Name,
			Duration: time.Since(start),
		})
		return nil, &StatusError{Service: svc.Name, Code: resp.status}
	}

	c.emit(metrics.MetricEvent{
		Type:     metrics.EventCallSucceeded,
		Service:  svc.Name,
		Duration: time.Since(start),
	})
	return resp.body, nil
}

// get performs the single HTTP request. Server errors surface as
// errors so the breaker counts them; anything below 500 is a completed
// exchange from the breaker's point of view.
func (c *Client) get(ctx context.Context, svc Service, path string) (response, error) {
	url := strings.TrimSuffix(svc.BaseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return response{}, fmt.Errorf("build request for %s: %w", svc.Name, err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("call %s: %w", svc.Name, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusInternalServerError {
		return response{}, &StatusError{Service: svc.Name, Code: res.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return response{}, fmt.Errorf("read %s response: %w", svc.Name, err)
	}

	return response{status: res.StatusCode, body: body}, nil
}

func (c *Client) pace(ctx context.Context, svc Service) error {
	allowed, err := c.limiter.Allow(ctx, svc.Name)
	if err != nil {
		return err
	}
	if allowed {
		return nil
	}

	c.emit(metrics.MetricEvent{Type: metrics.EventRateLimited, Service: svc.Name})
	return c.limiter.Wait(ctx, svc.Name)
}

// retryable wraps the default classification to also stop on client
// errors and to surface retry attempts as metric events.
func (c *Client) retryable(svc Service) retry.Retryable {
	return func(err error) bool {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code < http.StatusInternalServerError {
			return false
		}
		if !retry.Default(err) {
			return false
		}
		c.emit(metrics.MetricEvent{Type: metrics.EventRetryScheduled, Service: svc.Name})
		return true
	}
}

func (c *Client) cacheBody(ctx context.Context, svc Service, path string, body []byte) {
	if c.store == nil || svc.CacheTTL <= 0 {
		return
	}
	if err := c.store.Set(ctx, svc.Name, path, body, svc.CacheTTL); err != nil {
		c.logger.Warn("failed to cache response",
			slog.String("upstream", svc.Name),
			slog.String("error", err.Error()))
	}
}

func (c *Client) cachedBody(ctx context.Context, svc Service, path string) ([]byte, bool) {
	if c.store == nil {
		return nil, false
	}
	body, err := c.store.Get(ctx, svc.Name, path)
	if err != nil {
		return nil, false
	}
	return body, true
}

func (c *Client) emit(event metrics.MetricEvent) {
	if c.collector == nil {
		return
	}
	c.collector.Emit(event)
}
