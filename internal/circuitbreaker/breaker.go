package circuitbreaker

import (
	"sync"
	"time"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Rejecting calls
	StateHalfOpen              // Probing for recovery
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// StateChangeFunc is notified whenever a breaker transitions between states.
type StateChangeFunc func(service string, from, to State)

type CircuitBreaker struct {
	service          string
	failureThreshold int
	recoveryTimeout  time.Duration

	mutex       sync.Mutex
	state       State
	failures    int
	lastFailure time.Time

	now           func() time.Time
	onStateChange StateChangeFunc
}

// Option configures a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithClock replaces the breaker's time source. Useful for testing
// cooldown expiry without sleeping.
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) {
		cb.now = now
	}
}

// WithStateChange registers a hook called on every state transition.
// The hook runs while the breaker's lock is held and must not call
// back into the breaker.
func WithStateChange(fn StateChangeFunc) Option {
	return func(cb *CircuitBreaker) {
		cb.onStateChange = fn
	}
}

func NewCircuitBreaker(service string, threshold int, timeout time.Duration, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		service:          service,
		failureThreshold: threshold,
		recoveryTimeout:  timeout,
		state:            StateClosed,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Call executes op if the circuit permits it. When the circuit is open
// the call fails immediately with *CircuitOpenError and op is never
// invoked. Otherwise op runs with no lock held, so a slow call does not
// serialize other callers, and its error is returned unchanged after
// the breaker records the outcome.
func (cb *CircuitBreaker) Call(op func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}

	err := op()

	if err != nil {
		cb.recordFailure()
	} else {
		cb.recordSuccess()
	}

	return err
}

func (cb *CircuitBreaker) allow() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.resolveState() != StateOpen {
		return nil
	}

	remaining := cb.recoveryTimeout - cb.now().Sub(cb.lastFailure)
	if remaining < 0 {
		remaining = 0
	}

	return &CircuitOpenError{Service: cb.service, RetryAfter: remaining}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures++
	cb.lastFailure = cb.now()

	// A single failed probe re-opens the circuit; the threshold only
	// applies while closed.
	if cb.state == StateHalfOpen {
		cb.transition(StateOpen)
		return
	}

	if cb.failures >= cb.failureThreshold {
		cb.transition(StateOpen)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures = 0
	cb.transition(StateClosed)
}

// State reports the current state, applying the lazy OPEN to HALF-OPEN
// transition when the recovery timeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.resolveState()
}

// FailureCount reports consecutive failures since the last success or reset.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.failures
}

// Service returns the name of the service this breaker guards.
func (cb *CircuitBreaker) Service() string {
	return cb.service
}

// Reset forces the breaker back to CLOSED with a zero failure count.
// Intended for administrative endpoints and tests.
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures = 0
	cb.transition(StateClosed)
}

// resolveState recomputes OPEN to HALF-OPEN eligibility at read time
// rather than via a background timer. Caller must hold cb.mutex.
func (cb *CircuitBreaker) resolveState() State {
	if cb.state == StateOpen && cb.now().Sub(cb.lastFailure) >= cb.recoveryTimeout {
		cb.transition(StateHalfOpen)
	}
	return cb.state
}

// transition moves to the target state, firing the hook on an actual
// change. Caller must hold cb.mutex.
func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to

	if cb.onStateChange != nil {
		cb.onStateChange(cb.service, from, to)
	}
}
