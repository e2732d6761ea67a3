// Package clock implements the centisecond stopwatch counter.
package clock

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTick is one centisecond.
const DefaultTick = 10 * time.Millisecond

// Clock counts ticks while running. The elapsed counter has a single writer,
// the scheduled tick callback; Read is safe from any goroutine.
type Clock struct {
	period time.Duration
	sched  Scheduler
	onTick func(elapsed uint64)

	mu      sync.Mutex // serializes Start/Stop
	stop    func()
	running atomic.Bool
	elapsed atomic.Uint64
}

// Option configures a Clock.
type Option func(*Clock)

// WithScheduler replaces the default TickerScheduler.
func WithScheduler(s Scheduler) Option {
	return func(c *Clock) {
		c.sched = s
	}
}

// WithPeriod overrides the tick period.
func WithPeriod(d time.Duration) Option {
	return func(c *Clock) {
		if d > 0 {
			c.period = d
		}
	}
}

// OnTick registers an observer called after every increment and after Reset.
// It runs on the ticking goroutine and must not block for long.
func OnTick(fn func(elapsed uint64)) Option {
	return func(c *Clock) {
		c.onTick = fn
	}
}

// New returns a stopped clock at zero.
func New(opts ...Option) *Clock {
	c := &Clock{
		period: DefaultTick,
		sched:  TickerScheduler{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins counting. It returns false and does nothing if the clock is
// already running.
func (c *Clock) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running.Load() {
		return false
	}
	c.running.Store(true)
	c.stop = c.sched.Every(c.period, c.tick)
	return true
}

// Stop halts counting and waits for the periodic activity to end. It returns
// false if the clock was not running.
func (c *Clock) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running.Load() {
		return false
	}
	c.stop()
	c.stop = nil
	c.running.Store(false)
	return true
}

// Reset sets elapsed to zero. Legal while running or stopped.
func (c *Clock) Reset() {
	c.elapsed.Store(0)
	if c.onTick != nil {
		c.onTick(0)
	}
}

// Read returns elapsed centiseconds without side effects.
func (c *Clock) Read() uint64 {
	return c.elapsed.Load()
}

// IsRunning reports whether the clock is counting.
func (c *Clock) IsRunning() bool {
	return c.running.Load()
}

// Period returns the tick period.
func (c *Clock) Period() time.Duration {
	return c.period
}

func (c *Clock) tick() {
	v := c.elapsed.Add(1)
	if c.onTick != nil {
		c.onTick(v)
	}
}
