package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, store CounterStore, exempt ...string) *Limiter {
	t.Helper()
	l, err := New(store, QuotasPerMinute(10, 30, 20, 200), exempt)
	require.NoError(t, err)
	return l
}

func TestNewRequiresDefaultQuota(t *testing.T) {
	_, err := New(NewMemoryStore(), map[Class]Quota{ClassAuth: {Limit: 10, Window: time.Minute}}, nil)
	assert.Error(t, err)
}

func TestAdmitDeniesBeyondQuota(t *testing.T) {
	l := newTestLimiter(t, NewMemoryStore())

	for i := 0; i < 10; i++ {
		d := l.Admit(context.Background(), "203.0.113.1", ClassAuth)
		assert.True(t, d.Allowed, "attempt %d should be admitted", i+1)
		assert.Equal(t, 10-(i+1), d.Remaining)
	}

	d := l.Admit(context.Background(), "203.0.113.1", ClassAuth)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)
}

func TestAdmitKeysAreIndependent(t *testing.T) {
	l := newTestLimiter(t, NewMemoryStore())

	for i := 0; i < 10; i++ {
		l.Admit(context.Background(), "203.0.113.1", ClassAuth)
	}
	assert.False(t, l.Admit(context.Background(), "203.0.113.1", ClassAuth).Allowed)

	// Other clients and other classes keep their own counters.
	assert.True(t, l.Admit(context.Background(), "203.0.113.2", ClassAuth).Allowed)
	assert.True(t, l.Admit(context.Background(), "203.0.113.1", ClassMutate).Allowed)
}

func TestAdmitWindowElapses(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	l := newTestLimiter(t, store)

	for i := 0; i < 11; i++ {
		l.Admit(context.Background(), "c", ClassAuth)
	}
	assert.False(t, l.Admit(context.Background(), "c", ClassAuth).Allowed)

	now = now.Add(time.Minute + time.Second)
	assert.True(t, l.Admit(context.Background(), "c", ClassAuth).Allowed)
}

func TestAdmitUnknownClassFallsBackToDefault(t *testing.T) {
	l := newTestLimiter(t, NewMemoryStore())

	d := l.Admit(context.Background(), "c", Class("mystery"))
	assert.True(t, d.Allowed)
	assert.Equal(t, 199, d.Remaining)
}

func TestAdmitExemptKey(t *testing.T) {
	l := newTestLimiter(t, NewMemoryStore(), "10.0.0.5")

	for i := 0; i < 100; i++ {
		d := l.Admit(context.Background(), "10.0.0.5", ClassAuth)
		assert.True(t, d.Allowed)
	}
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("store down")
}

func TestAdmitStoreFailureDenies(t *testing.T) {
	l := newTestLimiter(t, failingStore{})

	d := l.Admit(context.Background(), "c", ClassAuth)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)
}

func TestAdmitConcurrentNoOvershoot(t *testing.T) {
	l := newTestLimiter(t, NewMemoryStore())

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Admit(context.Background(), "c", ClassAuth).Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, admitted)
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	_, err := store.Incr(context.Background(), "a", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	store.Sweep(time.Minute)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.counters)
}
