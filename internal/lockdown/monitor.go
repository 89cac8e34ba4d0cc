package lockdown

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/clock"
)

// Category groups violations. The monitor counts all categories together.
type Category string

const (
	CategoryKeyboard       Category = "keyboard"
	CategoryContextMenu    Category = "context_menu"
	CategoryVisibility     Category = "visibility"
	CategoryFullscreenExit Category = "fullscreen_exit"
	CategoryClipboard      Category = "clipboard"
	CategoryBlur           Category = "window_blur"
	CategoryDevTools       Category = "devtools"
)

// Violation is one reported occurrence. Count is the running total
// including this one.
type Violation struct {
	Category Category
	Reason   string
	Count    int
	At       time.Time
}

const (
	DefaultDevToolsGap  = 160
	DefaultPollInterval = time.Second

	adapterCallTimeout = 5 * time.Second
)

// Options tunes a Monitor. Zero values take the defaults.
type Options struct {
	Policy       KeyPolicy
	DevToolsGap  int
	PollInterval time.Duration
	NewTicker    func(time.Duration) clock.Ticker
	Now          func() time.Time
}

// Monitor installs the lockdown guards through an Adapter and reports
// violations. A Monitor is single-use.
type Monitor struct {
	adapter  Adapter
	log      zerolog.Logger
	policy   KeyPolicy
	gap      int
	interval time.Duration
	ticker   func(time.Duration) clock.Ticker
	now      func() time.Time

	mu          sync.Mutex
	count       int
	active      bool
	activated   bool
	onViolation func(Violation)
	unsubscribe func()
	stopPoll    chan struct{}
	wg          sync.WaitGroup

	deactivateOnce sync.Once
}

// NewMonitor builds a monitor over adapter.
func NewMonitor(adapter Adapter, log zerolog.Logger, opts Options) *Monitor {
	m := &Monitor{
		adapter:  adapter,
		log:      log.With().Str("component", "lockdown").Logger(),
		policy:   opts.Policy,
		gap:      opts.DevToolsGap,
		interval: opts.PollInterval,
		ticker:   opts.NewTicker,
		now:      opts.Now,
		stopPoll: make(chan struct{}),
	}
	if m.policy.Denied == nil && m.policy.Allowed == nil && !m.policy.BlockModifiers {
		m.policy = DefaultKeyPolicy()
	}
	if m.gap <= 0 {
		m.gap = DefaultDevToolsGap
	}
	if m.interval <= 0 {
		m.interval = DefaultPollInterval
	}
	if m.ticker == nil {
		m.ticker = func(d time.Duration) clock.Ticker { return stdTicker{time.NewTicker(d)} }
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// Policy returns the keyboard policy so the shell can block keys without a
// round trip.
func (m *Monitor) Policy() KeyPolicy {
	return m.policy
}

// Count returns the number of violations reported so far.
func (m *Monitor) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Activate claims fullscreen, installs every guard and starts the devtools
// poll. onViolation is called for every violation, possibly from several
// goroutines, never while the monitor holds its lock.
func (m *Monitor) Activate(onViolation func(Violation)) (deactivate func()) {
	m.mu.Lock()
	if m.activated {
		m.mu.Unlock()
		return m.deactivate
	}
	m.activated = true
	m.active = true
	m.onViolation = onViolation
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), adapterCallTimeout)
	if err := m.adapter.RequestFullscreen(ctx); err != nil {
		m.log.Warn().Err(err).Msg("Fullscreen request rejected, continuing without fullscreen")
	}
	cancel()

	unsubscribe := m.adapter.Subscribe(m.handle)
	m.mu.Lock()
	m.unsubscribe = unsubscribe
	stillActive := m.active
	m.mu.Unlock()
	if !stillActive {
		// Deactivated while we were subscribing.
		unsubscribe()
		return m.deactivate
	}

	m.wg.Add(1)
	go m.pollDevTools()

	m.log.Info().Msg("Lockdown active")
	return m.deactivate
}

func (m *Monitor) deactivate() {
	m.deactivateOnce.Do(func() {
		m.mu.Lock()
		m.active = false
		unsubscribe := m.unsubscribe
		m.unsubscribe = nil
		m.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		close(m.stopPoll)
		m.wg.Wait()

		if m.adapter.IsFullscreen() {
			ctx, cancel := context.WithTimeout(context.Background(), adapterCallTimeout)
			if err := m.adapter.ExitFullscreen(ctx); err != nil {
				m.log.Warn().Err(err).Msg("Exit fullscreen failed")
			}
			cancel()
		}
		m.log.Info().Int("violations", m.Count()).Msg("Lockdown released")
	})
}

// handle is the adapter callback for every browser event.
func (m *Monitor) handle(ev Event) Verdict {
	switch ev.Kind {
	case EventKeyDown:
		if m.policy.Blocks(ev) {
			return Verdict{Prevent: true, Violation: m.report(CategoryKeyboard, "Blocked key "+Describe(ev))}
		}
	case EventContextMenu:
		return Verdict{Prevent: true, Violation: m.report(CategoryContextMenu, "Right-click")}
	case EventVisibilityChange:
		if ev.Hidden {
			return Verdict{Violation: m.report(CategoryVisibility, "Tab switched or window minimized")}
		}
	case EventFullscreenChange:
		if !ev.Fullscreen {
			reported := m.report(CategoryFullscreenExit, "Exited fullscreen")
			if reported {
				go m.reenterFullscreen()
			}
			return Verdict{Violation: reported}
		}
	case EventCopy, EventCut, EventPaste:
		return Verdict{Prevent: true, Violation: m.report(CategoryClipboard, "Clipboard "+string(ev.Kind))}
	case EventBlur:
		return Verdict{Violation: m.report(CategoryBlur, "Window lost focus")}
	}
	return Verdict{}
}

// report counts a violation and forwards it. It returns false once the
// monitor is deactivated.
func (m *Monitor) report(cat Category, reason string) bool {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return false
	}
	m.count++
	v := Violation{Category: cat, Reason: reason, Count: m.count, At: m.now()}
	fn := m.onViolation
	m.mu.Unlock()

	m.log.Warn().
		Str("category", string(cat)).
		Str("reason", reason).
		Int("count", v.Count).
		Msg("Violation")

	if fn != nil {
		fn(v)
	}
	return true
}

// reenterFullscreen makes a single re-entry attempt after an exit.
func (m *Monitor) reenterFullscreen() {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()
	if !active {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), adapterCallTimeout)
	defer cancel()
	if err := m.adapter.RequestFullscreen(ctx); err != nil {
		m.log.Warn().Err(err).Msg("Fullscreen re-entry failed")
	}
}

func (m *Monitor) pollDevTools() {
	defer m.wg.Done()
	t := m.ticker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-m.stopPoll:
			return
		case <-t.C():
			m.checkDevTools()
		}
	}
}

func (m *Monitor) checkDevTools() {
	ctx, cancel := context.WithTimeout(context.Background(), adapterCallTimeout)
	defer cancel()
	metrics, err := m.adapter.WindowMetrics(ctx)
	if err != nil {
		m.log.Debug().Err(err).Msg("Window metrics unavailable")
		return
	}
	if metrics.OuterWidth-metrics.InnerWidth > m.gap || metrics.OuterHeight-metrics.InnerHeight > m.gap {
		m.report(CategoryDevTools, "Developer tools detected")
	}
}
