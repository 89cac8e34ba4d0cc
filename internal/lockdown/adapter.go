// Package lockdown watches the exam window for actions that break the
// exam environment and reports each one as a violation.
package lockdown

import (
	"context"
)

// EventKind names a raw browser event relayed by an Adapter.
type EventKind string

const (
	EventKeyDown          EventKind = "keydown"
	EventContextMenu      EventKind = "contextmenu"
	EventVisibilityChange EventKind = "visibilitychange"
	EventFullscreenChange EventKind = "fullscreenchange"
	EventCopy             EventKind = "copy"
	EventCut              EventKind = "cut"
	EventPaste            EventKind = "paste"
	EventBlur             EventKind = "blur"
)

// Event is a browser event as observed by the kiosk shell.
type Event struct {
	Kind EventKind `json:"kind"`

	// keydown
	Key   string `json:"key,omitempty"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	Shift bool   `json:"shift,omitempty"`
	Meta  bool   `json:"meta,omitempty"`

	// visibilitychange: document.hidden after the change
	Hidden bool `json:"hidden,omitempty"`
	// fullscreenchange: whether fullscreen is active after the change
	Fullscreen bool `json:"fullscreen,omitempty"`
}

// Verdict tells the adapter what to do with the event.
type Verdict struct {
	Prevent   bool `json:"prevent"`
	Violation bool `json:"violation"`
}

// Metrics are the outer (browser window) and inner (viewport) sizes.
type Metrics struct {
	OuterWidth  int `json:"outerWidth"`
	OuterHeight int `json:"outerHeight"`
	InnerWidth  int `json:"innerWidth"`
	InnerHeight int `json:"innerHeight"`
}

// Adapter abstracts the browser. Implementations must deliver events to the
// subscribed handler one at a time.
type Adapter interface {
	RequestFullscreen(ctx context.Context) error
	ExitFullscreen(ctx context.Context) error
	IsFullscreen() bool
	Subscribe(handler func(Event) Verdict) (unsubscribe func())
	WindowMetrics(ctx context.Context) (Metrics, error)
}
