package clock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualTicker never fires on its own; tests drive the clock through tick
// or by sending on ch.
type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.stopped.Store(true) }

func newManualClock(now time.Time) (*Clock, *manualTicker) {
	mt := &manualTicker{ch: make(chan time.Time)}
	c := New(
		WithNow(func() time.Time { return now }),
		WithTicker(func(time.Duration) Ticker { return mt }),
	)
	return c, mt
}

func TestFormatBeforeStart(t *testing.T) {
	c, _ := newManualClock(time.Now())
	assert.Equal(t, "--:--:--", c.Format())
	_, started := c.Remaining()
	assert.False(t, started)
}

func TestInitialRemainingFloors(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	c, _ := newManualClock(now)
	cancel := c.Start(now.Add(10*time.Minute+900*time.Millisecond), func() {})
	defer cancel()

	secs, started := c.Remaining()
	assert.True(t, started)
	assert.Equal(t, 600, secs)
	assert.Equal(t, "00:10:00", c.Format())
}

func TestCountdownIsMonotonicAndExpiresOnce(t *testing.T) {
	now := time.Now()
	c, _ := newManualClock(now)
	var fired atomic.Int32
	cancel := c.Start(now.Add(5*time.Second), func() { fired.Add(1) })

	prev, _ := c.Remaining()
	for i := 0; i < 5; i++ {
		done := c.tick()
		cur, _ := c.Remaining()
		assert.LessOrEqual(t, cur, prev)
		prev = cur
		assert.Equal(t, i == 4, done)
	}
	assert.Equal(t, 0, prev)
	assert.Equal(t, int32(1), fired.Load())

	// Keep running after expiry: nothing more happens.
	for i := 0; i < 3; i++ {
		assert.True(t, c.tick())
	}
	cancel()
	assert.Equal(t, int32(1), fired.Load())
	assert.True(t, c.Expired())
}

func TestPastDeadlineClampsAndExpiresOnNextTick(t *testing.T) {
	now := time.Now()
	c, _ := newManualClock(now)
	var fired atomic.Int32
	c.Start(now.Add(-time.Hour), func() { fired.Add(1) })

	secs, _ := c.Remaining()
	assert.Equal(t, 0, secs)
	assert.Equal(t, int32(0), fired.Load())

	assert.True(t, c.tick())
	assert.Equal(t, int32(1), fired.Load())
	secs, _ = c.Remaining()
	assert.Equal(t, 0, secs)
}

func TestCancelPreventsExpiry(t *testing.T) {
	now := time.Now()
	c, mt := newManualClock(now)
	var fired atomic.Int32
	cancel := c.Start(now.Add(time.Second), func() { fired.Add(1) })

	cancel()
	cancel()
	assert.True(t, c.tick())
	assert.Equal(t, int32(0), fired.Load())
	require.Eventually(t, mt.stopped.Load, time.Second, 5*time.Millisecond)
}

func TestTicksThroughTickerChannel(t *testing.T) {
	now := time.Now()
	c, mt := newManualClock(now)
	expired := make(chan struct{})
	c.Start(now.Add(2*time.Second), func() { close(expired) })

	mt.ch <- now
	mt.ch <- now

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("clock did not expire")
	}
	require.Eventually(t, mt.stopped.Load, time.Second, 5*time.Millisecond)
}

func TestConcurrentTickAndCancelFireAtMostOnce(t *testing.T) {
	for round := 0; round < 50; round++ {
		now := time.Now()
		c, _ := newManualClock(now)
		var fired atomic.Int32
		cancel := c.Start(now, func() { fired.Add(1) })

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(2)
			go func() { defer wg.Done(); c.tick() }()
			go func() { defer wg.Done(); cancel() }()
		}
		wg.Wait()
		assert.LessOrEqual(t, fired.Load(), int32(1))
	}
}

func TestWallClockCatchUp(t *testing.T) {
	start := time.Now()
	now := start
	mt := &manualTicker{ch: make(chan time.Time)}
	c := New(
		WithNow(func() time.Time { return now }),
		WithTicker(func(time.Duration) Ticker { return mt }),
	)
	c.Start(start.Add(time.Minute), func() {})

	// Process slept for 30s: the next tick jumps to the real remainder.
	now = start.Add(30 * time.Second)
	c.tick()
	secs, _ := c.Remaining()
	assert.Equal(t, 30, secs)
}

func TestStartTwiceKeepsFirstDeadline(t *testing.T) {
	now := time.Now()
	c, _ := newManualClock(now)
	c.Start(now.Add(time.Minute), func() {})
	c.Start(now.Add(time.Hour), func() {})
	secs, _ := c.Remaining()
	assert.Equal(t, 60, secs)
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatSeconds(-5))
	assert.Equal(t, "00:01:05", FormatSeconds(65))
	assert.Equal(t, "02:00:01", FormatSeconds(7201))
}
