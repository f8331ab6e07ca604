package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedisStore_FixedWindow(t *testing.T) {
	s, mr := newRedisStore(t)
	l := New(s, time.Minute, 3)
	ctx := context.Background()

	for range 3 {
		require.True(t, l.AllowAt(ctx, "ip:10.0.0.1", t0).Allowed)
	}
	d := l.AllowAt(ctx, "ip:10.0.0.1", t0)
	require.False(t, d.Allowed)
	assert.Equal(t, 4, d.Count)
	assert.Positive(t, d.RetryAfter)
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)

	mr.FastForward(61 * time.Second)
	assert.True(t, l.AllowAt(ctx, "ip:10.0.0.1", t0.Add(61*time.Second)).Allowed)
}

func TestRedisStore_SetsExpiry(t *testing.T) {
	s, mr := newRedisStore(t)

	_, _, err := s.Hit(context.Background(), "k", t0, 30*time.Second)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, mr.TTL(keyPrefix+"k"))
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "not a url")
	assert.Error(t, err)
}
