package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrLocked is returned when a lock cannot be acquired within its
// configured retries.
var ErrLocked = errors.New("store: lock is held")

const defaultLockKey = ".LOCK"

// Lock is a cooperative store-keyed lock built on Touch/Exists/Delete.
// The check-then-touch sequence is not atomic; concurrent acquirers can
// race, so this coordinates cooperating processes rather than enforcing
// mutual exclusion.
type Lock struct {
	store   *Store
	key     string
	retries int
	wait    time.Duration
}

// LockOption configures a Lock.
type LockOption func(*Lock)

// WithLockName scopes the lock key under .LOCK/<name>, so independent
// locks can share one store.
func WithLockName(name string) LockOption {
	return func(l *Lock) {
		if name != "" {
			l.key = defaultLockKey + "/" + name
		}
	}
}

// WithLockRetries sets how many times Acquire re-checks a held lock
// before giving up.
func WithLockRetries(n int) LockOption {
	return func(l *Lock) { l.retries = n }
}

// WithLockWait sets the pause between acquisition attempts.
func WithLockWait(d time.Duration) LockOption {
	return func(l *Lock) { l.wait = d }
}

// NewLock builds a lock on the store's .LOCK key.
func NewLock(s *Store, opts ...LockOption) *Lock {
	l := &Lock{store: s, key: defaultLockKey, retries: 15, wait: time.Second}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire takes the lock, retrying while it is held elsewhere. Fails
// with ErrLocked once the retries are exhausted.
func (l *Lock) Acquire(ctx context.Context) error {
	for attempt := 0; attempt <= l.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(l.wait):
			}
		}
		held, err := l.store.Exists(ctx, l.key)
		if err != nil {
			return err
		}
		if held {
			continue
		}
		if _, err := l.store.Touch(ctx, l.key); err != nil {
			return err
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrLocked, l.key)
}

// Release drops the lock. Releasing an unheld lock is not an error.
func (l *Lock) Release(ctx context.Context) error {
	if err := l.store.Delete(ctx, l.key); err != nil && !errors.Is(err, ErrDoesNotExist) {
		return err
	}
	return nil
}

// Do runs fn while holding the lock, releasing it on every exit path.
func (l *Lock) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	err := fn(ctx)
	if rerr := l.Release(ctx); rerr != nil && err == nil {
		err = rerr
	}
	return err
}
