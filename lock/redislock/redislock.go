// Package redislock implements lock.Locker on Redis with the RedLock
// algorithm, for vaults served by more than one process.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	redsyncredis "github.com/go-redsync/redsync/v4/redis"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"

	"github.com/xraph/vault/lock"
)

// Compile-time interface check.
var _ lock.Locker = (*Locker)(nil)

var errReleased = errors.New("released")

// Options configures lock acquisition.
type Options struct {
	// Expiry is the lifetime of the lock in Redis. A held lock is extended
	// every Expiry/3 until it is released, so Expiry only bounds how long a
	// crashed holder blocks the vault.
	Expiry      time.Duration
	Tries       int
	RetryDelay  time.Duration
	DriftFactor float64
	// Prefix is prepended to every key.
	Prefix string
}

// DefaultOptions returns settings suited to vault operations.
func DefaultOptions() Options {
	return Options{
		Expiry:      time.Minute,
		Tries:       32,
		RetryDelay:  100 * time.Millisecond,
		DriftFactor: 0.01,
		Prefix:      "lock:",
	}
}

// Locker is a Redis-backed distributed lock.
type Locker struct {
	rs   *redsync.Redsync
	opts Options
}

// New creates a Locker over the given clients. One client is a plain Redis
// lock; several independent clients form a RedLock quorum.
func New(opts Options, clients ...goredislib.UniversalClient) (*Locker, error) {
	if len(clients) == 0 {
		return nil, errors.New("redislock: at least one redis client is required")
	}
	if opts.Expiry <= 0 {
		return nil, errors.New("redislock: expiry must be greater than 0")
	}
	if opts.Tries < 1 {
		return nil, errors.New("redislock: tries must be at least 1")
	}

	pools := make([]redsyncredis.Pool, 0, len(clients))
	for _, c := range clients {
		pools = append(pools, goredis.NewPool(c))
	}

	return &Locker{rs: redsync.New(pools...), opts: opts}, nil
}

// Lock implements lock.Locker.
func (l *Locker) Lock(ctx context.Context, key string) (lock.Handle, error) {
	mutex := l.rs.NewMutex(
		l.opts.Prefix+key,
		redsync.WithExpiry(l.opts.Expiry),
		redsync.WithTries(l.opts.Tries),
		redsync.WithRetryDelay(l.opts.RetryDelay),
		redsync.WithDriftFactor(l.opts.DriftFactor),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("redislock: acquire %s: %w", key, err)
	}

	h := &handle{
		mutex: mutex,
		until: mutex.Until(),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go h.keepAlive(context.WithoutCancel(ctx), max(l.opts.Expiry/3, time.Millisecond))
	return h, nil
}

// handle owns a held mutex. Only the keep-alive goroutine touches the mutex
// until Unlock has stopped it.
type handle struct {
	mutex *redsync.Mutex

	mu    sync.Mutex
	until time.Time
	lost  error

	once sync.Once
	stop chan struct{}
	done chan struct{}
}

// keepAlive extends the lock until stopped. The first failed extension marks
// the lock lost; nothing after that can prove it is still exclusive.
func (h *handle) keepAlive(ctx context.Context, every time.Duration) {
	defer close(h.done)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
		}

		ok, err := h.mutex.ExtendContext(ctx)
		if err == nil && !ok {
			err = redsync.ErrExtendFailed
		}

		h.mu.Lock()
		if err != nil {
			h.lost = err
			h.mu.Unlock()
			return
		}
		h.until = h.mutex.Until()
		h.mu.Unlock()
	}
}

// Held implements lock.Handle.
func (h *handle) Held(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.lost != nil {
		return fmt.Errorf("%w: %s: %w", lock.ErrNotHeld, h.mutex.Name(), h.lost)
	}
	if !time.Now().Before(h.until) {
		return fmt.Errorf("%w: %s expired", lock.ErrNotHeld, h.mutex.Name())
	}
	return nil
}

// Unlock implements lock.Handle.
func (h *handle) Unlock(ctx context.Context) error {
	h.once.Do(func() { close(h.stop) })
	<-h.done

	h.mu.Lock()
	if h.lost == nil {
		h.lost = errReleased
	}
	h.mu.Unlock()

	ok, err := h.mutex.UnlockContext(ctx)
	if errors.Is(err, redsync.ErrLockAlreadyExpired) {
		return lock.ErrNotHeld
	}
	if err != nil {
		return fmt.Errorf("redislock: release %s: %w", h.mutex.Name(), err)
	}
	if !ok {
		return lock.ErrNotHeld
	}
	return nil
}
