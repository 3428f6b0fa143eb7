package circuitbreaker

import (
	"errors"
	"fmt"
	"time"
)

// CircuitOpenError is returned by Call when the circuit is open and the
// operation was rejected without being invoked. RetryAfter is the
// remaining cooldown before the breaker will allow a probe, floored at
// zero. Callers should treat it as "service unavailable" and fall back
// or wait, rather than as a generic failure.
type CircuitOpenError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit for %s is open, retry after %s", e.Service, e.RetryAfter)
}

// IsOpen reports whether err is a rejection from an open circuit.
func IsOpen(err error) bool {
	var openErr *CircuitOpenError
	return errors.As(err, &openErr)
}
