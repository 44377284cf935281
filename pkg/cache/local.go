package cache

import (
	"context"
	"sync"
	"time"
)

// LocalLocker is an in-process Locker for tests and single-node tooling.
// Acquire blocks until the key frees up instead of failing fast; ttl is
// ignored since an in-process lock cannot outlive its holder.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	owner map[string]string
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		slots: make(map[string]chan struct{}),
		owner: make(map[string]string),
	}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *LocalLocker) AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		l.mu.Lock()
		l.owner[key] = value
		l.mu.Unlock()
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (l *LocalLocker) ReleaseLock(ctx context.Context, key, value string) error {
	l.mu.Lock()
	if l.owner[key] != value {
		l.mu.Unlock()
		return nil
	}
	delete(l.owner, key)
	ch := l.slots[key]
	l.mu.Unlock()
	<-ch
	return nil
}
