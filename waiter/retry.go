package waiter

import (
	"context"
	"time"

	"github.com/enclavekernel/libos/errno"
)

// Retry implements the waiter_loop! idiom: repeatedly evaluate cond; if it
// reports a value, return it; otherwise park on q and block until woken,
// the context is done, or deadline expires, then re-evaluate. cond is
// called with no lock held by Retry itself, callers are responsible for
// any locking cond needs internally.
//
// Mirrors longpoll.Channel's discipline of checking ctx.Err() both before
// and after every blocking step, so a context already canceled on entry
// never blocks at all.
func Retry[T any](ctx context.Context, q *Queue, cond func() (T, bool)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	for {
		if v, ok := cond(); ok {
			return v, nil
		}

		w := q.Enqueue()
		select {
		case <-w.Done():
		case <-ctx.Done():
			q.Remove(w)
			return zero, ctx.Err()
		}

		if err := ctx.Err(); err != nil {
			return zero, err
		}
	}
}

// RetryTimeout is Retry with an additional wheel-driven deadline: if
// timeout elapses before cond succeeds or the context is done, it returns
// errno.ETIMEDOUT rather than a bare context error, per spec.md's
// ETIMEDOUT vs EINTR vs ECANCELED disambiguation.
func RetryTimeout[T any](ctx context.Context, wheel *TimerWheel, timeout time.Duration, q *Queue, cond func() (T, bool)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, translateCtxErr(err)
	}
	deadline := wheel.now().Add(timeout)
	for {
		if v, ok := cond(); ok {
			return v, nil
		}

		w := q.Enqueue()
		fire := wheel.Schedule(deadline)

		select {
		case <-w.Done():
			fire.Cancel()
		case <-fire.Done():
			q.Remove(w)
			return zero, errno.ETIMEDOUT
		case <-ctx.Done():
			q.Remove(w)
			fire.Cancel()
			return zero, translateCtxErr(ctx.Err())
		}

		if err := ctx.Err(); err != nil {
			return zero, translateCtxErr(err)
		}
	}
}

func translateCtxErr(err error) error {
	if err == context.Canceled {
		return errno.ECANCELED
	}
	if err == context.DeadlineExceeded {
		return errno.ETIMEDOUT
	}
	return err
}
