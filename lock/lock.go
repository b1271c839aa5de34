// Package lock provides the exclusive per-vault lock that serializes
// deposits, withdrawals and balance reads.
package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrNotHeld is returned when a handle is released twice or after expiry.
var ErrNotHeld = errors.New("lock: not held")

// Locker acquires exclusive locks by key.
type Locker interface {
	// Lock blocks until the lock for key is held or ctx is done.
	Lock(ctx context.Context, key string) (Handle, error)
}

// Handle is a held lock.
type Handle interface {
	// Held returns ErrNotHeld once the lock has been released or has lapsed.
	// Callers check it before committing work that relies on exclusivity.
	Held(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// Local is an in-process Locker. It is enough when a single process owns the
// vault's store. Services only exclude each other when they share the same
// Local.
type Local struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocal creates an in-process locker.
func NewLocal() *Local {
	return &Local{slots: make(map[string]chan struct{})}
}

func (l *Local) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Lock implements Locker.
func (l *Local) Lock(ctx context.Context, key string) (Handle, error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		return &localHandle{ch: ch}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type localHandle struct {
	once     sync.Once
	ch       chan struct{}
	released atomic.Bool
}

func (h *localHandle) Held(context.Context) error {
	if h.released.Load() {
		return ErrNotHeld
	}
	return nil
}

func (h *localHandle) Unlock(context.Context) error {
	released := false
	h.once.Do(func() {
		h.released.Store(true)
		<-h.ch
		released = true
	})
	if !released {
		return ErrNotHeld
	}
	return nil
}
