package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/quotegate/guardian/internal/circuitbreaker"
)

// ErrRetriesExhausted wraps the last attempt's error once every retry
// has been spent.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Policy controls how attempts are spaced. Waits grow by Factor per
// attempt, capped at MaxWait, with jitter applied.
type Policy struct {
	MaxRetries int
	BaseWait   time.Duration
	MaxWait    time.Duration
	Factor     float64
}

// DefaultPolicy returns production-ready defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseWait:   500 * time.Millisecond,
		MaxWait:    10 * time.Second,
		Factor:     2.0,
	}
}

// Sleeper abstracts time-based waiting so tests can run without real
// delays.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// NewSleeper returns a Sleeper backed by real time.
func NewSleeper() Sleeper {
	return realSleeper{}
}

// Retryable decides whether an error is worth another attempt.
type Retryable func(error) bool

// Default never retries context cancellation or an open-circuit
// rejection: the breaker has already decided the service is down and
// retrying would just hammer the cooldown. Everything else is retried.
func Default(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if circuitbreaker.IsOpen(err) {
		return false
	}
	return true
}

// Do runs fn, retrying per policy while retryable approves the error.
// A non-retryable error is returned as-is; exhausting all retries
// returns the last error wrapped in ErrRetriesExhausted.
func Do(ctx context.Context, policy Policy, sleeper Sleeper, retryable Retryable, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !retryable(err) {
			return err
		}

		if attempt >= policy.MaxRetries {
			break
		}

		if err := sleeper.Sleep(ctx, backoff(policy, attempt+1)); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
}

// DoValue is Do for operations that produce a result.
func DoValue[T any](ctx context.Context, policy Policy, sleeper Sleeper, retryable Retryable, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, policy, sleeper, retryable, func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func backoff(policy Policy, attempt int) time.Duration {
	wait := float64(policy.BaseWait) * math.Pow(policy.Factor, float64(attempt-1))
	if wait > float64(policy.MaxWait) {
		wait = float64(policy.MaxWait)
	}

	// ±20% jitter so synchronized callers spread out.
	jitterRange := int64(wait * 0.2)
	if jitterRange > 0 {
		jitter, err := rand.Int(rand.Reader, big.NewInt(jitterRange*2))
		if err == nil {
			wait += float64(jitter.Int64()) - float64(jitterRange)
		}
	}

	return time.Duration(wait)
}
