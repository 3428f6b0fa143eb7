package circuitbreaker

import (
	"sync"
	"time"
)

// Registry hands out one shared CircuitBreaker per service name, so
// every call site for the same logical dependency observes the same
// circuit state. Entries are created lazily and never evicted.
//
// The registry's lock only guards the map. Each breaker carries its own
// mutex, so registry lookups never contend with breaker bookkeeping.
type Registry struct {
	mutex    sync.RWMutex
	breakers map[string]*CircuitBreaker
	opts     []Option
}

// NewRegistry creates an empty registry. The given options are applied
// to every breaker the registry constructs.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		opts:     opts,
	}
}

// GetBreaker returns the breaker registered under service, constructing
// one with the given parameters on first use. Parameters passed for an
// already-registered name are ignored; the existing instance wins.
func (r *Registry) GetBreaker(service string, threshold int, timeout time.Duration) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[service]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[service]; exists {
		return cb
	}

	cb = NewCircuitBreaker(service, threshold, timeout, r.opts...)
	r.breakers[service] = cb
	return cb
}

// Lookup returns the breaker registered under service without
// creating one.
func (r *Registry) Lookup(service string) (*CircuitBreaker, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	cb, exists := r.breakers[service]
	return cb, exists
}

// AllStates maps every registered service name to its current state
// name. Reading the state applies each breaker's lazy transition check,
// so the result reflects cooldown expiry. Backs the /breakers endpoint.
func (r *Registry) AllStates() map[string]string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	states := make(map[string]string, len(r.breakers))
	for service, cb := range r.breakers {
		states[service] = cb.State().String()
	}
	return states
}

// Reset forces every registered breaker back to CLOSED. Breakers stay
// registered; only their state is cleared.
func (r *Registry) Reset() {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, cb := range r.breakers {
		cb.Reset()
	}
}
