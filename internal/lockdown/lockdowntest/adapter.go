// Package lockdowntest provides an in-memory lockdown.Adapter for tests.
package lockdowntest

import (
	"context"
	"errors"
	"sync"

	"github.com/stemsi/exstem-proctor/internal/lockdown"
)

// ErrNoMetrics is returned by WindowMetrics until SetMetrics is called.
var ErrNoMetrics = errors.New("no metrics")

// Adapter records every call and lets tests emit browser events.
type Adapter struct {
	mu              sync.Mutex
	handler         func(lockdown.Event) lockdown.Verdict
	fullscreen      bool
	fullscreenErr   error
	metrics         *lockdown.Metrics
	requests        int
	exits           int
	subscribes      int
	unsubscribes    int
	fullscreenCalls chan struct{}
	metricsReads    chan struct{}
}

// New returns an adapter whose fullscreen requests succeed.
func New() *Adapter {
	return &Adapter{
		fullscreenCalls: make(chan struct{}, 64),
		metricsReads:    make(chan struct{}, 64),
	}
}

// FailFullscreen makes RequestFullscreen return err.
func (a *Adapter) FailFullscreen(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fullscreenErr = err
}

// SetMetrics sets the window sizes returned by WindowMetrics.
func (a *Adapter) SetMetrics(m lockdown.Metrics) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics = &m
}

// Emit delivers ev to the subscribed handler. It returns the zero Verdict
// when nothing is subscribed.
func (a *Adapter) Emit(ev lockdown.Event) lockdown.Verdict {
	a.mu.Lock()
	h := a.handler
	if ev.Kind == lockdown.EventFullscreenChange {
		a.fullscreen = ev.Fullscreen
	}
	a.mu.Unlock()
	if h == nil {
		return lockdown.Verdict{}
	}
	return h(ev)
}

// FullscreenRequested is signalled on every RequestFullscreen call.
func (a *Adapter) FullscreenRequested() <-chan struct{} {
	return a.fullscreenCalls
}

// MetricsRead is signalled after every WindowMetrics call.
func (a *Adapter) MetricsRead() <-chan struct{} {
	return a.metricsReads
}

// Stats returns call counters.
func (a *Adapter) Stats() (requests, exits, subscribes, unsubscribes int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests, a.exits, a.subscribes, a.unsubscribes
}

// Subscribed reports whether a handler is installed.
func (a *Adapter) Subscribed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handler != nil
}

func (a *Adapter) RequestFullscreen(context.Context) error {
	a.mu.Lock()
	a.requests++
	err := a.fullscreenErr
	if err == nil {
		a.fullscreen = true
	}
	a.mu.Unlock()
	select {
	case a.fullscreenCalls <- struct{}{}:
	default:
	}
	return err
}

func (a *Adapter) ExitFullscreen(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.exits++
	a.fullscreen = false
	return nil
}

func (a *Adapter) IsFullscreen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fullscreen
}

func (a *Adapter) Subscribe(handler func(lockdown.Event) lockdown.Verdict) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subscribes++
	a.handler = handler
	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.unsubscribes++
			a.handler = nil
		})
	}
}

func (a *Adapter) WindowMetrics(context.Context) (lockdown.Metrics, error) {
	a.mu.Lock()
	m := a.metrics
	a.mu.Unlock()
	defer func() {
		select {
		case a.metricsReads <- struct{}{}:
		default:
		}
	}()
	if m == nil {
		return lockdown.Metrics{}, ErrNoMetrics
	}
	return *m, nil
}
