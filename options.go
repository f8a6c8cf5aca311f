package mergebounce

import (
	"log/slog"
	"time"
)

// Option is a function that can be used to configure a Mergebouncer.
type Option func(*config)

type config struct {
	maxing  bool
	maxWait time.Duration
	concat  bool
	dedupe  bool
	clock   Clock
	logger  *slog.Logger
	onError func(error)
}

func (c *config) arrayMode() ArrayMode {
	switch {
	case c.dedupe:
		return ArraysDedupe
	case c.concat:
		return ArraysConcat
	default:
		return ArraysOverlay
	}
}

// MaxWait returns an option that bounds how long invocation can be delayed
// while calls keep coming in. Values below the wait duration are raised to it.
//
// For example, with a wait of 100ms and a max wait of 500ms, calling the
// function non-stop every 10ms still invokes it every 500ms.
func MaxWait(maxWait time.Duration) Option {
	return func(c *config) {
		c.maxing = true
		c.maxWait = maxWait
	}
}

// ConcatArrays returns an option that appends incoming sequences to buffered
// ones, instead of overlaying them index by index.
func ConcatArrays() Option {
	return func(c *config) {
		c.concat = true
	}
}

// DedupeArrays returns an option like ConcatArrays, except that incoming
// elements deeply equal to an element of the buffered sequence are dropped.
func DedupeArrays() Option {
	return func(c *config) {
		c.dedupe = true
	}
}

// WithClock returns an option that sets the clock used to read the time and
// schedule timers. Defaults to RealClock.
func WithClock(clock Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithLogger returns an option that sets the logger. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// OnError returns an option that sets a handler for errors from invocations
// triggered by the timer, which have no caller to return them to. Without a
// handler, such errors are logged.
func OnError(f func(error)) Option {
	return func(c *config) {
		c.onError = f
	}
}
