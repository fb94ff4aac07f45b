package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Class names an action class with its own quota and window.
type Class string

const (
	ClassAuth    Class = "auth"
	ClassMutate  Class = "mutate"
	ClassExport  Class = "export"
	ClassDefault Class = "default"
)

type Quota struct {
	Limit  int
	Window time.Duration
}

// CounterStore increments the hit counter for a key inside its current
// window and returns the count including this hit. Implementations must
// be safe for concurrent use and must not lose updates.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter admits or denies attempts per (client key, action class).
type Limiter struct {
	store  CounterStore
	quotas map[Class]Quota
	exempt map[string]struct{}
}

// New builds a limiter. quotas must contain ClassDefault; unknown classes
// fall back to it. exemptKeys is an explicit allow-list of client keys
// (typically IPs) admitted without quota lookup; an empty list exempts
// nothing.
func New(store CounterStore, quotas map[Class]Quota, exemptKeys []string) (*Limiter, error) {
	if _, ok := quotas[ClassDefault]; !ok {
		return nil, fmt.Errorf("quota for class %q is required", ClassDefault)
	}
	exempt := make(map[string]struct{}, len(exemptKeys))
	for _, k := range exemptKeys {
		exempt[k] = struct{}{}
	}
	return &Limiter{store: store, quotas: quotas, exempt: exempt}, nil
}

// Decision is the outcome of an admission check. A denial is a distinct
// outcome, not an error: callers surface it as retry-later.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Admit counts one attempt for key under class and decides admission.
// A counter-store failure denies: admission never widens on error.
func (l *Limiter) Admit(ctx context.Context, key string, class Class) Decision {
	if _, ok := l.exempt[key]; ok {
		return Decision{Allowed: true, Remaining: -1}
	}

	q, ok := l.quotas[class]
	if !ok {
		class, q = ClassDefault, l.quotas[ClassDefault]
	}

	count, err := l.store.Incr(ctx, string(class)+":"+key, q.Window)
	if err != nil {
		return Decision{Allowed: false, RetryAfter: q.Window}
	}

	if count > int64(q.Limit) {
		return Decision{Allowed: false, RetryAfter: q.Window}
	}
	return Decision{Allowed: true, Remaining: q.Limit - int(count)}
}

// QuotasPerMinute builds the quota table from per-minute limits.
func QuotasPerMinute(auth, mutate, export, def int) map[Class]Quota {
	return map[Class]Quota{
		ClassAuth:    {Limit: auth, Window: time.Minute},
		ClassMutate:  {Limit: mutate, Window: time.Minute},
		ClassExport:  {Limit: export, Window: time.Minute},
		ClassDefault: {Limit: def, Window: time.Minute},
	}
}
