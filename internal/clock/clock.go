// Package clock implements the session countdown that enforces the
// server-issued attempt deadline.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// Ticker is the subset of *time.Ticker the clock needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Option configures a Clock.
type Option func(*Clock)

// WithNow replaces the wall-clock source.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) { c.now = now }
}

// WithTicker replaces the ticker factory.
func WithTicker(newTicker func(time.Duration) Ticker) Option {
	return func(c *Clock) { c.newTicker = newTicker }
}

// Clock counts down whole seconds to a deadline and fires an expiry
// callback exactly once. A Clock is single-use.
type Clock struct {
	now       func() time.Time
	newTicker func(time.Duration) Ticker

	mu        sync.Mutex
	endTime   time.Time
	remaining int
	started   bool
	finished  bool // expired or cancelled
	onExpire  func()

	done     chan struct{}
	stopOnce sync.Once
}

// New returns an unstarted clock.
func New(opts ...Option) *Clock {
	c := &Clock{
		now: time.Now,
		newTicker: func(d time.Duration) Ticker {
			return realTicker{t: time.NewTicker(d)}
		},
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins ticking towards endTime. onExpire runs on the ticking
// goroutine when the remaining time reaches zero. Calling Start again
// returns the same cancel func without restarting.
func (c *Clock) Start(endTime time.Time, onExpire func()) (cancel func()) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return c.cancel
	}
	c.started = true
	c.endTime = endTime
	c.onExpire = onExpire
	c.remaining = c.secondsLeft()
	t := c.newTicker(time.Second)
	c.mu.Unlock()

	go c.run(t)
	return c.cancel
}

// secondsLeft is floor((endTime-now)/1s) clamped at zero. Caller holds mu.
func (c *Clock) secondsLeft() int {
	d := c.endTime.Sub(c.now())
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

func (c *Clock) run(t Ticker) {
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C():
			if c.tick() {
				return
			}
		}
	}
}

// tick advances the countdown by one step and reports whether the clock
// is finished.
func (c *Clock) tick() bool {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return true
	}
	next := c.remaining - 1
	// A stalled process may miss ticks; never show more time than the
	// deadline allows.
	if wall := c.secondsLeft(); wall < next {
		next = wall
	}
	if next > 0 {
		c.remaining = next
		c.mu.Unlock()
		return false
	}
	c.remaining = 0
	c.finished = true
	fn := c.onExpire
	c.mu.Unlock()

	c.stop()
	if fn != nil {
		fn()
	}
	return true
}

func (c *Clock) cancel() {
	c.mu.Lock()
	c.finished = true
	c.mu.Unlock()
	c.stop()
}

func (c *Clock) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// Remaining returns the seconds left and whether the clock was started.
func (c *Clock) Remaining() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining, c.started
}

// Expired reports whether the countdown reached zero or was cancelled.
func (c *Clock) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

// Format renders the remaining time as HH:MM:SS, or --:--:-- before Start.
func (c *Clock) Format() string {
	secs, started := c.Remaining()
	if !started {
		return "--:--:--"
	}
	return FormatSeconds(secs)
}

// FormatSeconds renders secs as HH:MM:SS. Negative input renders as zero.
func FormatSeconds(secs int) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
