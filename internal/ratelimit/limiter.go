// Package ratelimit implements fixed-window admission control keyed by a
// client identifier.
package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Store counts hits per key within a fixed window.
type Store interface {
	// Hit records one request for key at now. If the key has no live window,
	// a new one of length window starts at now. It returns the count within
	// the current window and the time the window resets.
	Hit(ctx context.Context, key string, now time.Time, window time.Duration) (count int, resetAt time.Time, err error)
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	Count      int
	RetryAfter time.Duration
}

// RetryAfterSeconds returns the retry hint in whole seconds, rounded up.
func (d Decision) RetryAfterSeconds() int {
	return int((d.RetryAfter + time.Second - 1) / time.Second)
}

// Limiter admits at most budget requests per key in each window.
type Limiter struct {
	store  Store
	window time.Duration
	budget int
	now    func() time.Time
}

// New creates a Limiter backed by store.
func New(store Store, window time.Duration, budget int) *Limiter {
	return &Limiter{
		store:  store,
		window: window,
		budget: budget,
		now:    time.Now,
	}
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Allow checks key against the budget at the current time.
func (l *Limiter) Allow(ctx context.Context, key string) Decision {
	return l.AllowAt(ctx, key, l.now())
}

// AllowAt checks key against the budget at the given time. A store failure
// admits the request.
func (l *Limiter) AllowAt(ctx context.Context, key string, now time.Time) Decision {
	count, resetAt, err := l.store.Hit(ctx, key, now, l.window)
	if err != nil {
		slog.Warn("rate limit store unavailable, admitting request", "key", key, "error", err)
		return Decision{Allowed: true}
	}

	if count <= l.budget {
		return Decision{Allowed: true, Count: count}
	}

	retry := resetAt.Sub(now)
	if retry < time.Second {
		retry = time.Second
	}
	if retry > l.window {
		retry = l.window
	}
	return Decision{Count: count, RetryAfter: retry}
}
