package redis

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is an in-process Locker used when no redis address is
// configured. It only serializes callers within one process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time), now: time.Now}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if exp, ok := l.held[key]; ok && now.Before(exp) {
		return nil, false, nil
	}
	exp := now.Add(ttl)
	l.held[key] = exp
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key].Equal(exp) {
			delete(l.held, key)
		}
	}, true, nil
}

// LocalCooldown is the in-process counterpart of Cooldown.
type LocalCooldown struct {
	locker *LocalLocker
}

func NewLocalCooldown() *LocalCooldown {
	return &LocalCooldown{locker: NewLocalLocker()}
}

func (c *LocalCooldown) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	_, ok, err := c.locker.Acquire(ctx, "cooldown:"+key, window)
	return ok, err
}
