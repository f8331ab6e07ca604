package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func TestLimiter_FourthRequestDenied(t *testing.T) {
	l := New(NewMemoryStore(), time.Minute, 3)
	ctx := context.Background()

	for i := range 3 {
		d := l.AllowAt(ctx, "ip:1.2.3.4", t0.Add(time.Duration(i)*time.Second))
		require.True(t, d.Allowed, "request %d should be admitted", i+1)
	}

	d := l.AllowAt(ctx, "ip:1.2.3.4", t0.Add(10*time.Second))
	assert.False(t, d.Allowed)
	assert.Equal(t, 50*time.Second, d.RetryAfter)
	assert.Equal(t, 50, d.RetryAfterSeconds())
}

func TestLimiter_WindowResets(t *testing.T) {
	l := New(NewMemoryStore(), time.Minute, 1)
	ctx := context.Background()

	require.True(t, l.AllowAt(ctx, "k", t0).Allowed)
	require.False(t, l.AllowAt(ctx, "k", t0.Add(59*time.Second)).Allowed)
	assert.True(t, l.AllowAt(ctx, "k", t0.Add(60*time.Second)).Allowed, "a new window starts once the old one elapses")
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := New(NewMemoryStore(), time.Minute, 1)
	ctx := context.Background()

	require.True(t, l.AllowAt(ctx, "a", t0).Allowed)
	require.False(t, l.AllowAt(ctx, "a", t0).Allowed)
	assert.True(t, l.AllowAt(ctx, "b", t0).Allowed)
}

func TestLimiter_RetryAfterBounds(t *testing.T) {
	l := New(NewMemoryStore(), time.Minute, 1)
	ctx := context.Background()

	l.AllowAt(ctx, "k", t0)
	d := l.AllowAt(ctx, "k", t0.Add(59*time.Second+900*time.Millisecond))
	require.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter, "retry hint is at least one second")
	assert.LessOrEqual(t, d.RetryAfter, l.Window())
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Time, time.Duration) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("connection refused")
}

func TestLimiter_StoreFailureAdmits(t *testing.T) {
	l := New(failingStore{}, time.Minute, 1)
	for range 5 {
		assert.True(t, l.Allow(context.Background(), "k").Allowed)
	}
}

func TestLimiter_ConcurrentBudget(t *testing.T) {
	l := New(NewMemoryStore(), time.Minute, 10)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.AllowAt(ctx, "shared", t0).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
}

func TestMemoryStore_Sweep(t *testing.T) {
	s := NewMemoryStore()
	s.sweepOdds = 0
	ctx := context.Background()

	for i := range 5 {
		_, _, err := s.Hit(ctx, fmt.Sprintf("k%d", i), t0, time.Minute)
		require.NoError(t, err)
	}
	_, _, _ = s.Hit(ctx, "late", t0.Add(30*time.Second), time.Minute)
	require.Equal(t, 6, s.Len())

	s.Sweep(t0.Add(time.Minute), time.Minute)
	assert.Equal(t, 1, s.Len(), "only the record whose window is still open survives")
}
