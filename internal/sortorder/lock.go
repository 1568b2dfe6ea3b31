package sortorder

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultLockTimeout bounds how long a mutation waits for the lock.
const DefaultLockTimeout = 30 * time.Second

// Lock is a non-reentrant mutual exclusion with a bounded wait.
//
// Expiry is a hard failure and is never retried here; waiting this long
// means another holder is stuck.
type Lock struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

// NewLock creates a lock. A non-positive timeout uses DefaultLockTimeout.
func NewLock(timeout time.Duration) *Lock {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &Lock{sem: semaphore.NewWeighted(1), timeout: timeout}
}

// Timeout returns the configured wait bound.
func (l *Lock) Timeout() time.Duration { return l.timeout }

// Acquire waits for the lock. The returned release func is safe to call
// more than once.
//
// A context that is already done fails fast without waiting. If the wait
// ends because the caller cancelled, the error satisfies IsCancelled;
// otherwise an expired wait satisfies IsLockTimeout.
func (l *Lock) Acquire(ctx context.Context) (release func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, NewCancelledError(err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, NewCancelledError(ctxErr)
		}
		return nil, NewLockTimeoutError(l.timeout)
	}

	var once sync.Once
	return func() { once.Do(func() { l.sem.Release(1) }) }, nil
}

// Do runs fn while holding the lock and releases it on every exit path.
// A context error returned by fn is reported as OPERATION_CANCELLED.
func (l *Lock) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	release, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return asCancelled(fn(ctx))
}

func asCancelled(err error) error {
	if err == nil || IsCancelled(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewCancelledError(err)
	}
	return err
}
