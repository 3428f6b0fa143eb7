package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when no entry exists for the key.
var ErrCacheMiss = errors.New("cache miss")

const keyPrefix = "guardian:cache:"

// Store is a Redis-backed response cache with per-entry TTLs. The
// upstream client uses it both to avoid repeated provider calls and to
// serve a stale body when a circuit is open.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Get returns the cached body for service and path, or ErrCacheMiss.
func (s *Store) Get(ctx context.Context, service, path string) ([]byte, error) {
	val, err := s.client.Get(ctx, cacheKey(service, path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", service, err)
	}
	return val, nil
}

// Set stores body under service and path for ttl. A non-positive ttl
// stores nothing.
func (s *Store) Set(ctx context.Context, service, path string, body []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, cacheKey(service, path), body, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", service, err)
	}
	return nil
}

// Invalidate drops the entry for service and path, if any.
func (s *Store) Invalidate(ctx context.Context, service, path string) error {
	if err := s.client.Del(ctx, cacheKey(service, path)).Err(); err != nil {
		return fmt.Errorf("cache invalidate %s: %w", service, err)
	}
	return nil
}

func cacheKey(service, path string) string {
	return keyPrefix + service + ":" + path
}
