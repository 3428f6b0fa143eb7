package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Local is an in-process token bucket limiter. Each key gets its own
// bucket, created lazily on first use and kept for the process
// lifetime.
type Local struct {
	mutex    sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func NewLocal(rps float64, burst int) *Local {
	return &Local{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (l *Local) Allow(_ context.Context, key string) (bool, error) {
	return l.limiter(key).Allow(), nil
}

func (l *Local) Wait(ctx context.Context, key string) error {
	return l.limiter(key).Wait(ctx)
}

func (l *Local) limiter(key string) *rate.Limiter {
	l.mutex.RLock()
	lim, exists := l.limiters[key]
	l.mutex.RUnlock()

	if exists {
		return lim
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if lim, exists = l.limiters[key]; exists {
		return lim
	}

	lim = rate.NewLimiter(l.rps, l.burst)
	l.limiters[key] = lim
	return lim
}
