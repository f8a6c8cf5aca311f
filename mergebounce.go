// Package mergebounce provides a debounce that merges the arguments of
// suppressed calls instead of discarding them.
//
// Every call deep merges its arguments into the arguments buffered since the
// last invocation, position by position. When wait time has elapsed since the
// last call, the wrapped function is invoked once with the merged arguments.
//
// Invocation only ever happens on the trailing edge, since invoking on the
// leading edge would discard arguments that have not been merged yet. With a
// max wait configured, a continuous stream of calls still invokes the function
// at least once every max wait.
package mergebounce

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotCallable is returned by the constructors when the function to
	// wrap is nil.
	ErrNotCallable = errors.New("mergebounce: expected a function")

	// ErrCanceled settles the pending Future of a promise mode Mergebouncer
	// when its pending calls are canceled.
	ErrCanceled = errors.New("mergebounce: pending calls canceled")
)

// Func is the function wrapped by a Mergebouncer. It receives the context of
// the most recent call, and the merged arguments of all calls since the
// previous invocation.
type Func[R any] func(ctx context.Context, args []any) (R, error)

// InvocationError wraps an error returned by the wrapped function, along with
// the merged arguments it was invoked with.
type InvocationError struct {
	Args []any
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("mergebounce: invocation failed: %v", e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Mergebouncer delays invoking a function until wait time has elapsed since
// the last call, merging the arguments of every call into the arguments of the
// eventual invocation.
//
// All methods are safe for concurrent use. The wrapped function is called
// without any lock held, and may be invoked again before a previous invocation
// returns, so it needs to be safe for concurrent use too.
type Mergebouncer[R any] struct {
	c *controller[R]
}

// New returns a Mergebouncer wrapping fn. A wait of zero or less invokes fn on
// the next timer turn after the last call, never synchronously.
func New[R any](
	fn Func[R],
	wait time.Duration,
	opts ...Option,
) (*Mergebouncer[R], error) {
	c, err := newController(fn, wait, false, opts)
	if err != nil {
		return nil, err
	}

	return &Mergebouncer[R]{c: c}, nil
}

// Call is CallContext with context.Background.
func (m *Mergebouncer[R]) Call(args ...any) (R, error) {
	return m.CallContext(context.Background(), args...)
}

// CallContext merges args into the pending arguments and schedules an
// invocation. ctx replaces the context of earlier pending calls.
//
// It returns the result of the most recent invocation, or the zero value of R
// if there has been none. An error is only returned when the call itself
// invoked fn because max wait was exceeded, and fn failed.
func (m *Mergebouncer[R]) CallContext(
	ctx context.Context,
	args ...any,
) (R, error) {
	inv, _, result := m.c.call(ctx, args)
	if inv == nil {
		return result, nil
	}

	return m.c.run(inv, false)
}

// Flush immediately invokes a scheduled invocation, and returns its result.
// When nothing is scheduled it returns the result of the most recent
// invocation without invoking anything.
func (m *Mergebouncer[R]) Flush() (R, error) {
	inv, _, result := m.c.flush()
	if inv == nil {
		return result, nil
	}

	return m.c.run(inv, false)
}

// Cancel discards the pending arguments and stops the timer without invoking.
func (m *Mergebouncer[R]) Cancel() {
	m.c.cancel()
}

// Wait blocks until every invocation that has already started returns,
// including invocations triggered by the timer. It does not wait for calls
// that are still pending; use Flush first to invoke those. Wait must not be
// called from the wrapped function.
func (m *Mergebouncer[R]) Wait() {
	m.c.waitIdle()
}

// Last returns the result of the invocation started most recently among
// those that succeeded. The
// boolean is false if there has been none.
func (m *Mergebouncer[R]) Last() (R, bool) {
	return m.c.last()
}

// Pending reports whether calls have been made since the last invocation.
func (m *Mergebouncer[R]) Pending() bool {
	return m.c.isPending()
}

// Promised is a Mergebouncer whose calls return a Future for the result of the
// invocation their arguments end up in.
type Promised[R any] struct {
	c *controller[R]
}

// NewPromise returns a promise mode Mergebouncer wrapping fn.
func NewPromise[R any](
	fn Func[R],
	wait time.Duration,
	opts ...Option,
) (*Promised[R], error) {
	c, err := newController(fn, wait, true, opts)
	if err != nil {
		return nil, err
	}

	return &Promised[R]{c: c}, nil
}

// Call is CallContext with context.Background.
func (p *Promised[R]) Call(args ...any) *Future[R] {
	return p.CallContext(context.Background(), args...)
}

// CallContext merges args into the pending arguments and schedules an
// invocation. All calls up to the next invocation return the same Future.
//
// If max wait was exceeded, fn is invoked before CallContext returns, and the
// returned Future is already settled.
func (p *Promised[R]) CallContext(ctx context.Context, args ...any) *Future[R] {
	inv, future, _ := p.c.call(ctx, args)
	if inv != nil {
		_, _ = p.c.run(inv, false)
	}

	return future
}

// Flush immediately invokes a scheduled invocation and returns its settled
// Future. When nothing is scheduled it returns the Future of the pending cycle
// without invoking anything.
func (p *Promised[R]) Flush() *Future[R] {
	inv, future, _ := p.c.flush()
	if inv != nil {
		_, _ = p.c.run(inv, false)
	}

	return future
}

// Cancel discards the pending arguments and stops the timer without invoking.
// If calls were pending, their Future is settled with ErrCanceled.
func (p *Promised[R]) Cancel() {
	p.c.cancel()
}

// Wait blocks until every invocation that has already started returns. See
// Mergebouncer.Wait.
func (p *Promised[R]) Wait() {
	p.c.waitIdle()
}

// Pending reports whether calls have been made since the last invocation.
func (p *Promised[R]) Pending() bool {
	return p.c.isPending()
}
