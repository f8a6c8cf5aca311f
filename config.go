package mergebounce

import (
	"time"
)

// Config is a plain value form of the options, for use when the settings come
// from a configuration file or command line flags.
type Config struct {
	Wait         time.Duration
	MaxWait      *time.Duration
	ConcatArrays bool
	DedupeArrays bool
}

// Options returns the options described by c.
func (c *Config) Options() []Option {
	var opts []Option
	if c == nil {
		return opts
	}

	if c.MaxWait != nil {
		opts = append(opts, MaxWait(*c.MaxWait))
	}
	if c.ConcatArrays {
		opts = append(opts, ConcatArrays())
	}
	if c.DedupeArrays {
		opts = append(opts, DedupeArrays())
	}

	return opts
}

// NewFromConfig returns a Mergebouncer configured by c, with opts applied after
// the options from c.
func NewFromConfig[R any](c *Config, fn Func[R], opts ...Option) (*Mergebouncer[R], error) {
	var wait time.Duration
	if c != nil {
		wait = c.Wait
	}

	return New(fn, wait, append(c.Options(), opts...)...)
}

// NewPromiseFromConfig is NewFromConfig for promise mode.
func NewPromiseFromConfig[R any](c *Config, fn Func[R], opts ...Option) (*Promised[R], error) {
	var wait time.Duration
	if c != nil {
		wait = c.Wait
	}

	return NewPromise(fn, wait, append(c.Options(), opts...)...)
}
