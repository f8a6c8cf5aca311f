package mergebounce

import (
	"context"
	"sync"
)

// Future is the result of one invocation cycle of a promise mode Mergebouncer.
// Every call made between two invocations receives the same Future, which is
// settled exactly once, when the invocation that consumed those calls returns.
type Future[R any] struct {
	once   sync.Once
	done   chan struct{}
	result R
	err    error
}

func newFuture[R any]() *Future[R] {
	return &Future[R]{done: make(chan struct{})}
}

// Done returns a channel that is closed once the future is settled.
func (f *Future[R]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future is settled or ctx is done.
func (f *Future[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero R

		return zero, ctx.Err()
	}
}

// Result returns the settled result without blocking. The boolean is false if
// the future has not been settled yet, or if it was settled with an error.
func (f *Future[R]) Result() (R, bool) {
	select {
	case <-f.done:
		return f.result, f.err == nil
	default:
		var zero R

		return zero, false
	}
}

// Err returns the error the future was settled with, or nil if it has not been
// settled or was settled successfully.
func (f *Future[R]) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// settle stores the outcome and wakes up waiters. Only the first settle has any
// effect.
func (f *Future[R]) settle(result R, err error) {
	f.once.Do(func() {
		f.result = result
		f.err = err
		close(f.done)
	})
}
