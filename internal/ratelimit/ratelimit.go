package ratelimit

import "context"

// Limiter paces operations per service key using a token bucket.
type Limiter interface {
	// Allow reports whether one token is available for key, consuming
	// it if so. It never blocks.
	Allow(ctx context.Context, key string) (bool, error)

	// Wait blocks until a token is available for key or ctx is done.
	Wait(ctx context.Context, key string) error
}
