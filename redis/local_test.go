package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalLockerExclusive(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()

	release, ok, err := l.Acquire(ctx, "lock:order:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.Acquire(ctx, "lock:order:1", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	release()
	_, ok, err = l.Acquire(ctx, "lock:order:1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLocalLockerExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLocalLocker()
	l.now = func() time.Time { return now }

	_, ok, _ := l.Acquire(ctx, "k", 30*time.Second)
	require.True(t, ok)

	now = now.Add(31 * time.Second)
	_, ok, _ = l.Acquire(ctx, "k", 30*time.Second)
	require.True(t, ok)
}

func TestLocalCooldown(t *testing.T) {
	ctx := context.Background()
	c := NewLocalCooldown()

	ok, err := c.Allow(ctx, "a@example.com", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.Allow(ctx, "a@example.com", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = c.Allow(ctx, "b@example.com", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}
