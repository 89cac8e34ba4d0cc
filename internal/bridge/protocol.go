package bridge

import (
	"encoding/json"

	"github.com/stemsi/exstem-proctor/internal/lockdown"
	"github.com/stemsi/exstem-proctor/internal/session"
)

// ─── Actions (Shell → Agent) ────────────────────────────────────────

type Action string

const (
	ActionEvent         Action = "event"
	ActionMetrics       Action = "metrics"
	ActionResult        Action = "result"
	ActionAnswer        Action = "answer"
	ActionNext          Action = "next"
	ActionPrev          Action = "prev"
	ActionJump          Action = "jump"
	ActionSubmit        Action = "submit"
	ActionConfirm       Action = "confirm"
	ActionCancelConfirm Action = "cancel_confirm"
	ActionPing          Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
	Seq    int64  `json:"seq,omitempty"`
}

// EventRequest carries one browser event. Seq is echoed in the verdict.
type EventRequest struct {
	Action Action         `json:"action"`
	Seq    int64          `json:"seq"`
	Event  lockdown.Event `json:"event"`
}

// MetricsReply answers a metrics request.
type MetricsReply struct {
	Action  Action           `json:"action"`
	ID      string           `json:"id" validate:"required"`
	Metrics lockdown.Metrics `json:"metrics"`
}

// ResultReply answers a fullscreen command.
type ResultReply struct {
	Action Action `json:"action"`
	ID     string `json:"id" validate:"required"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// AnswerRequest selects an option for a question.
type AnswerRequest struct {
	Action Action `json:"action"`
	Index  *int   `json:"index" validate:"required,gte=0"`
	Option *int   `json:"option" validate:"required,gte=0"`
}

// JumpRequest moves the cursor to a question.
type JumpRequest struct {
	Action Action `json:"action"`
	Index  *int   `json:"index" validate:"required"`
}

// ─── Events (Agent → Shell) ─────────────────────────────────────────

type Event string

const (
	EventHello      Event = "hello"
	EventState      Event = "state"
	EventConfirm    Event = "confirm"
	EventError      Event = "error"
	EventNavigate   Event = "navigate"
	EventVerdict    Event = "verdict"
	EventFullscreen Event = "fullscreen"
	EventMetrics    Event = "metrics_request"
	EventTick       Event = "tick"
	EventPong       Event = "pong"
)

// HelloMessage is the first message on every connection. The shell
// applies Policy locally so blocked keys are prevented synchronously.
type HelloMessage struct {
	Event  Event              `json:"event"`
	ConnID string             `json:"connId"`
	Policy lockdown.KeyPolicy `json:"policy"`
}

type StateMessage struct {
	Event Event            `json:"event"`
	State session.Snapshot `json:"state"`
}

type ConfirmMessage struct {
	Event   Event                `json:"event"`
	Confirm session.Confirmation `json:"confirm"`
}

type ErrorMessage struct {
	Event Event  `json:"event"`
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error"`
}

type NavigateMessage struct {
	Event  Event           `json:"event"`
	View   session.View    `json:"view"`
	Reason string          `json:"reason,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

type VerdictMessage struct {
	Event     Event `json:"event"`
	Seq       int64 `json:"seq"`
	Prevent   bool  `json:"prevent"`
	Violation bool  `json:"violation"`
}

// FullscreenCommand asks the shell to enter or leave fullscreen and reply
// with a ResultReply carrying the same ID.
type FullscreenCommand struct {
	Event Event  `json:"event"`
	ID    string `json:"id"`
	Enter bool   `json:"enter"`
}

// MetricsCommand asks the shell for a MetricsReply carrying the same ID.
type MetricsCommand struct {
	Event Event  `json:"event"`
	ID    string `json:"id"`
}

type TickMessage struct {
	Event     Event  `json:"event"`
	Remaining int    `json:"remaining"`
	Display   string `json:"display"`
}

type PongMessage struct {
	Event Event `json:"event"`
}
