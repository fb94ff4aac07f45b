package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/quentinv/tenantguard/internal/cache"
)

// RedisStore backs counters with redis so concurrent processes share one
// view. The INCR+EXPIRE pipeline in cache.CountWindow is atomic, so no
// two admissions can overshoot the quota.
type RedisStore struct {
	cache *cache.Cache
}

func NewRedisStore(c *cache.Cache) *RedisStore {
	return &RedisStore{cache: c}
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	return s.cache.CountWindow(ctx, "ratelimit:"+key, window)
}

// MemoryStore is a single-process counter store guarded by a mutex.
// Used in tests and when redis is not configured.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
	now      func() time.Time
}

type windowCounter struct {
	start time.Time
	count int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*windowCounter),
		now:      time.Now,
	}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.counters[key]
	if !ok || now.Sub(c.start) >= window {
		c = &windowCounter{start: now}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

// Sweep drops counters whose window ended before the cutoff. Callers run
// it periodically to bound memory.
func (s *MemoryStore) Sweep(maxWindow time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-maxWindow)
	for key, c := range s.counters {
		if c.start.Before(cutoff) {
			delete(s.counters, key)
		}
	}
}
