package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "guardian:ratelimit:"

// tokenBucketScript refills and consumes atomically so concurrent
// instances sharing one Redis agree on the bucket contents.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local bucket = redis.call('HMGET', key, 'tokens', 'last')
local tokens = tonumber(bucket[1]) or capacity
local last = tonumber(bucket[2]) or now
local delta = math.max(0, now - last)
local new_tokens = math.min(capacity, tokens + delta * refill_rate)
if new_tokens < 1 then
  redis.call('HMSET', key, 'tokens', new_tokens, 'last', now)
  redis.call('EXPIRE', key, 60)
  return 0
end
redis.call('HMSET', key, 'tokens', new_tokens - 1, 'last', now)
redis.call('EXPIRE', key, 60)
return 1
`)

// Distributed is a token bucket limiter backed by Redis, so every
// instance of the service shares one bucket per key.
//
// It fails open: when Redis is unreachable the call is allowed rather
// than blocking all traffic on a broken supporting resource. Fail-open
// decisions are logged and reported through the optional hook.
type Distributed struct {
	client     *redis.Client
	rps        float64
	burst      int
	logger     *slog.Logger
	onFailOpen func(key string)

	// pollInterval controls how often Wait re-checks the bucket.
	pollInterval time.Duration
}

// DistributedOption configures a Distributed limiter.
type DistributedOption func(*Distributed)

// OnFailOpen registers a hook called each time a Redis failure causes
// a fail-open allow. Intended for metrics.
func OnFailOpen(fn func(key string)) DistributedOption {
	return func(d *Distributed) {
		d.onFailOpen = fn
	}
}

func NewDistributed(client *redis.Client, rps float64, burst int, logger *slog.Logger, opts ...DistributedOption) *Distributed {
	d := &Distributed{
		client:       client,
		rps:          rps,
		burst:        burst,
		logger:       logger,
		pollInterval: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Distributed) Allow(ctx context.Context, key string) (bool, error) {
	now := float64(time.Now().UnixNano()) / float64(time.Second)

	res, err := tokenBucketScript.Run(ctx, d.client,
		[]string{keyPrefix + key}, d.burst, d.rps, now).Result()
	if err != nil {
		d.failOpen(key, err)
		return true, nil
	}

	allowed, ok := res.(int64)
	if !ok {
		d.failOpen(key, fmt.Errorf("unexpected script result %v", res))
		return true, nil
	}

	return allowed == 1, nil
}

func (d *Distributed) Wait(ctx context.Context, key string) error {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		allowed, err := d.Allow(ctx, key)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Distributed) failOpen(key string, err error) {
	d.logger.Warn("rate limit store unavailable, failing open",
		slog.String("key", key),
		slog.String("error", err.Error()))

	if d.onFailOpen != nil {
		d.onFailOpen(key)
	}
}
