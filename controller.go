package mergebounce

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// controller holds the configuration and state shared by Mergebouncer and
// Promised. All state is guarded by mux; the wrapped function is always called
// with mux released.
type controller[R any] struct {
	// Configuration
	fn        Func[R]
	wait      time.Duration
	maxWait   time.Duration
	maxing    bool
	arrayMode ArrayMode
	promise   bool
	clock     Clock
	logger    *slog.Logger
	onError   func(error)

	// State
	mux        sync.Mutex
	pending    bool
	args       []any
	ctx        context.Context
	called     bool
	lastCall   time.Time
	lastInvoke time.Time
	timer      Timer
	timerSeq   uint64
	hasResult  bool
	result     R
	future     *Future[R]

	// Invocation bookkeeping. cycle numbers invocations in the order they
	// were taken; resultCycle is the cycle c.result came from.
	cycle       uint64
	resultCycle uint64
	running     int
	idle        *sync.Cond
}

// invocation is a snapshot of the pending call taken under lock, to be run
// after the lock is released.
type invocation[R any] struct {
	ctx    context.Context
	args   []any
	future *Future[R]
	cycle  uint64
}

func newController[R any](
	fn Func[R],
	wait time.Duration,
	promise bool,
	opts []Option,
) (*controller[R], error) {
	if fn == nil {
		return nil, ErrNotCallable
	}

	conf := &config{}
	for _, opt := range opts {
		opt(conf)
	}

	if wait < 0 {
		wait = 0
	}

	c := &controller[R]{
		fn:        fn,
		wait:      wait,
		maxing:    conf.maxing,
		arrayMode: conf.arrayMode(),
		promise:   promise,
		clock:     conf.clock,
		logger:    conf.logger,
		onError:   conf.onError,
	}

	// maxWait is never shorter than wait.
	if c.maxing {
		c.maxWait = conf.maxWait
		if c.maxWait < wait {
			c.maxWait = wait
		}
	}

	if c.clock == nil {
		c.clock = RealClock
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if promise {
		c.future = newFuture[R]()
	}
	c.idle = sync.NewCond(&c.mux)

	return c, nil
}

// call records a call and merges args into the pending arguments. It returns
// a non-nil invocation when the call is due to invoke right away, which only
// happens in the max wait tight loop case.
func (c *controller[R]) call(
	ctx context.Context,
	args []any,
) (*invocation[R], *Future[R], R) {
	c.mux.Lock()
	defer c.mux.Unlock()

	now := c.clock.Now()
	invoking := c.shouldInvoke(now)

	if len(args) > 0 {
		c.args = MergeArgs(c.args, args, c.arrayMode)
	}
	c.pending = true
	c.ctx = ctx
	c.called = true
	c.lastCall = now

	if invoking {
		if c.timer == nil {
			// Start of a new burst. Invoking here would drop arguments merged
			// later in the burst, so only the max wait window is reset.
			c.lastInvoke = now
			c.arm(c.wait)

			return nil, c.future, c.result
		}

		if c.maxing {
			c.logger.Debug("mergebounce: max wait exceeded, invoking",
				"max_wait", c.maxWait,
			)
			c.stop()
			c.arm(c.wait)
			inv := c.take(now)

			return inv, inv.future, c.result
		}
	}

	if c.timer == nil {
		c.arm(c.wait)
	}

	return nil, c.future, c.result
}

// timerExpired is called by the clock when the timer armed with sequence
// number seq fires.
func (c *controller[R]) timerExpired(seq uint64) {
	c.mux.Lock()

	if c.timer == nil || seq != c.timerSeq {
		// Stopped or superseded after the clock already started the callback.
		c.mux.Unlock()

		return
	}

	now := c.clock.Now()
	if !c.shouldInvoke(now) {
		c.arm(c.remainingWait(now))
		c.mux.Unlock()

		return
	}

	inv := c.trailingEdge(now)
	c.mux.Unlock()

	if inv == nil {
		return
	}

	_, _ = c.run(inv, true)
}

// flush invokes the pending call right away if a timer is armed. The returned
// invocation is nil when there was nothing to invoke.
func (c *controller[R]) flush() (*invocation[R], *Future[R], R) {
	c.mux.Lock()
	defer c.mux.Unlock()

	if c.timer == nil {
		return nil, c.future, c.result
	}

	inv := c.trailingEdge(c.clock.Now())
	if inv == nil {
		return nil, c.future, c.result
	}

	return inv, inv.future, c.result
}

func (c *controller[R]) cancel() {
	c.mux.Lock()

	c.stop()
	wasPending := c.pending
	c.pending = false
	c.args = nil
	c.ctx = nil
	c.called = false
	c.lastCall = time.Time{}
	c.lastInvoke = time.Time{}

	var canceled *Future[R]
	if c.promise && wasPending {
		canceled = c.future
		c.future = newFuture[R]()
	}
	c.mux.Unlock()

	c.logger.Debug("mergebounce: canceled", "pending", wasPending)

	if canceled != nil {
		var zero R
		canceled.settle(zero, ErrCanceled)
	}
}

// run calls the wrapped function for inv and records its outcome. With report
// set, a failure is also passed to reportError before the invocation counts as
// finished.
func (c *controller[R]) run(inv *invocation[R], report bool) (R, error) {
	defer c.done()

	c.logger.Debug("mergebounce: invoking", "args", len(inv.args))

	result, err := c.fn(inv.ctx, inv.args)
	if err != nil {
		err = &InvocationError{Args: inv.args, Err: err}
	}

	c.mux.Lock()
	// An older cycle finishing late must not replace a newer result.
	if err == nil && inv.cycle > c.resultCycle {
		c.result = result
		c.resultCycle = inv.cycle
		c.hasResult = true
	}
	c.mux.Unlock()

	if inv.future != nil {
		inv.future.settle(result, err)
	}
	if err != nil && report {
		c.reportError(err)
	}

	return result, err
}

// done marks one invocation taken by take as finished.
func (c *controller[R]) done() {
	c.mux.Lock()
	defer c.mux.Unlock()

	c.running--
	if c.running == 0 {
		c.idle.Broadcast()
	}
}

func (c *controller[R]) reportError(err error) {
	if c.onError != nil {
		c.onError(err)

		return
	}

	c.logger.Error("mergebounce: invocation failed", "error", err)
}

// trailingEdge clears the timer and takes the pending call, if any. It should
// only be called while the mutex is already locked.
func (c *controller[R]) trailingEdge(now time.Time) *invocation[R] {
	c.stop()

	if !c.pending {
		return nil
	}

	return c.take(now)
}

// take consumes the pending arguments and context, and swaps in a fresh future
// for the next cycle. It should only be called while the mutex is already
// locked.
func (c *controller[R]) take(now time.Time) *invocation[R] {
	c.cycle++
	c.running++
	inv := &invocation[R]{
		ctx:    c.ctx,
		args:   c.args,
		future: c.future,
		cycle:  c.cycle,
	}
	if inv.ctx == nil {
		inv.ctx = context.Background()
	}
	if inv.args == nil {
		inv.args = []any{}
	}

	c.pending = false
	c.args = nil
	c.ctx = nil
	c.lastInvoke = now

	if c.promise {
		c.future = newFuture[R]()
	}

	return inv
}

func (c *controller[R]) shouldInvoke(now time.Time) bool {
	if !c.called {
		return true
	}

	sinceCall := now.Sub(c.lastCall)
	sinceInvoke := now.Sub(c.lastInvoke)

	// Activity stopped, the clock went backwards, or max wait was reached.
	return sinceCall >= c.wait ||
		sinceCall < 0 ||
		(c.maxing && sinceInvoke >= c.maxWait)
}

func (c *controller[R]) remainingWait(now time.Time) time.Duration {
	remaining := c.wait - now.Sub(c.lastCall)
	if c.maxing {
		if maxRemaining := c.maxWait - now.Sub(c.lastInvoke); maxRemaining < remaining {
			remaining = maxRemaining
		}
	}

	return remaining
}

// arm schedules the timer to fire after d. It should only be called while the
// mutex is already locked, and with no live timer.
func (c *controller[R]) arm(d time.Duration) {
	c.timerSeq++
	seq := c.timerSeq
	c.timer = c.clock.AfterFunc(d, func() {
		c.timerExpired(seq)
	})
}

// stop stops and forgets the live timer, if any. It should only be called
// while the mutex is already locked.
func (c *controller[R]) stop() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerSeq++
}

// waitIdle blocks until no invocation is running.
func (c *controller[R]) waitIdle() {
	c.mux.Lock()
	defer c.mux.Unlock()

	for c.running > 0 {
		c.idle.Wait()
	}
}

func (c *controller[R]) last() (R, bool) {
	c.mux.Lock()
	defer c.mux.Unlock()

	return c.result, c.hasResult
}

func (c *controller[R]) isPending() bool {
	c.mux.Lock()
	defer c.mux.Unlock()

	return c.pending
}
