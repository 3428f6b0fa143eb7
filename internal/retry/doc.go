// Package retry re-attempts failed operations with exponential backoff
// and jitter. It is a deliberate collaborator of the circuit breaker
// rather than part of it: the breaker decides whether a call may be
// attempted, retry decides whether to attempt again, and an
// open-circuit rejection is never retried.
package retry
