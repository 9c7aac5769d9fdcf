// Package ratelimit implements a per-key fixed-window counter used to
// throttle checkout-session initiation. The limiter is advisory, not a
// correctness mechanism: it blunts client retry storms. The counter
// store is injected so single-instance deployments can use process
// memory while multi-instance deployments share a Redis window.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Store counts hits per key within a TTL window.
type Store interface {
	// Incr increments the counter for key, creating it with the given
	// TTL if absent, and returns the new count.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Limiter throttles to limit hits per key per window.
type Limiter struct {
	store  Store
	limit  int64
	window time.Duration
	logger zerolog.Logger
}

// New creates a limiter over the given store.
func New(store Store, limit int, window time.Duration, logger zerolog.Logger) *Limiter {
	return &Limiter{
		store:  store,
		limit:  int64(limit),
		window: window,
		logger: logger.With().Str("component", "rate-limiter").Logger(),
	}
}

// Allow reports whether the caller identified by key may proceed. A
// store failure fails open: throttling is advisory and must never take
// checkout down with it.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	count, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		l.logger.Warn().Err(err).Str("key", key).Msg("rate limit store unavailable, failing open")
		return true
	}

	if count > l.limit {
		l.logger.Info().
			Str("key", key).
			Int64("count", count).
			Int64("limit", l.limit).
			Msg("rate limit exceeded")
		return false
	}

	return true
}

// memoryStore is the in-process store for single-instance deployments.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory counter store with lazy TTL eviction.
func NewMemoryStore() Store {
	return &memoryStore{entries: make(map[string]*memoryEntry)}
}

func (s *memoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.evictLocked(now)

	e, ok := s.entries[key]
	if !ok || now.After(e.expiresAt) {
		e = &memoryEntry{expiresAt: now.Add(ttl)}
		s.entries[key] = e
	}

	e.count++
	return e.count, nil
}

// evictLocked drops expired windows so the map does not grow without bound.
func (s *memoryStore) evictLocked(now time.Time) {
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// redisStore shares one window across instances.
type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed counter store.
func NewRedisStore(client *redis.Client, prefix string) Store {
	return &redisStore{client: client, prefix: prefix}
}

func (s *redisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	fullKey := fmt.Sprintf("%s:%s", s.prefix, key)

	count, err := s.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	// First hit in the window sets the TTL.
	if count == 1 {
		if err := s.client.Expire(ctx, fullKey, ttl).Err(); err != nil {
			return count, fmt.Errorf("failed to set rate limit ttl: %w", err)
		}
	}

	return count, nil
}
