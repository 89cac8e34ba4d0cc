// Package bridge connects the kiosk browser shell to the agent. The shell
// forwards raw browser events and student commands over a WebSocket; the
// agent answers with verdicts, fullscreen and metrics requests, and
// session updates.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/lockdown"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/session"
)

var (
	ErrNoShell     = errors.New("kiosk shell not connected")
	ErrShellClosed = errors.New("kiosk shell disconnected")
)

// Commands is the session surface the shell may drive.
type Commands interface {
	SetAnswer(index, option int) error
	Next() error
	Prev() error
	JumpTo(index int) error
	Submit() error
	ConfirmSubmit() error
	CancelConfirm()
	Snapshot() session.Snapshot
}

// reply is the shell's answer to a request sent by the agent.
type reply struct {
	result  *ResultReply
	metrics *MetricsReply
	err     error
}

// Bridge holds at most one shell connection. A new connection replaces
// the previous one. It implements lockdown.Adapter and session.Listener.
type Bridge struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader
	policy   lockdown.KeyPolicy

	mu         sync.Mutex
	conn       *client
	connected  chan struct{}
	handler    func(lockdown.Event) lockdown.Verdict
	commands   Commands
	fullscreen bool
	pending    map[string]chan reply
	lastState  *session.Snapshot
	lastNav    *NavigateMessage
}

// New creates a Bridge. allowedOrigins restricts WebSocket origins; empty
// permits all.
func New(policy lockdown.KeyPolicy, allowedOrigins []string, log zerolog.Logger) *Bridge {
	return &Bridge{
		log:       log.With().Str("component", "bridge").Logger(),
		upgrader:  buildUpgrader(allowedOrigins),
		policy:    policy,
		connected: make(chan struct{}),
		pending:   make(map[string]chan reply),
	}
}

// buildUpgrader creates a WebSocket upgrader with origin validation.
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// Attach routes shell commands to cmds.
func (b *Bridge) Attach(cmds Commands) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = cmds
}

// WaitForShell blocks until the first shell connects or ctx is done.
func (b *Bridge) WaitForShell(ctx context.Context) error {
	select {
	case <-b.connected:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connected reports whether a shell is currently attached.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// LastState returns the most recent snapshot pushed to the shell.
func (b *Bridge) LastState() (session.Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lastState == nil {
		return session.Snapshot{}, false
	}
	return *b.lastState, true
}

// ─── Connection lifecycle ───────────────────────────────────────────

func (b *Bridge) attach(cl *client) {
	b.mu.Lock()
	prev := b.conn
	b.conn = cl
	b.fullscreen = false
	pending := b.takePendingLocked()
	state, nav := b.lastState, b.lastNav
	first := false
	select {
	case <-b.connected:
	default:
		close(b.connected)
		first = true
	}
	b.mu.Unlock()

	failPending(pending)
	if prev != nil {
		b.log.Warn().Str("old", prev.id).Str("new", cl.id).Msg("Shell reconnected, replacing previous connection")
		prev.close()
	}

	cl.enqueue(HelloMessage{Event: EventHello, ConnID: cl.id, Policy: b.policy})
	if state != nil {
		cl.enqueue(StateMessage{Event: EventState, State: *state})
	}
	if nav != nil {
		cl.enqueue(*nav)
	}
	b.log.Info().Str("conn_id", cl.id).Bool("first", first).Msg("Shell connected")
}

func (b *Bridge) detach(cl *client) {
	b.mu.Lock()
	if b.conn != cl {
		b.mu.Unlock()
		return
	}
	b.conn = nil
	b.fullscreen = false
	pending := b.takePendingLocked()
	b.mu.Unlock()

	failPending(pending)
	b.log.Warn().Str("conn_id", cl.id).Msg("Shell disconnected")
}

func (b *Bridge) takePendingLocked() map[string]chan reply {
	pending := b.pending
	b.pending = make(map[string]chan reply)
	return pending
}

func failPending(pending map[string]chan reply) {
	for _, ch := range pending {
		ch <- reply{err: ErrShellClosed}
	}
}

func (b *Bridge) current() *client {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn
}

func (b *Bridge) send(v interface{}) {
	if cl := b.current(); cl != nil {
		cl.enqueue(v)
	}
}

// ─── Requests to the shell ──────────────────────────────────────────

func (b *Bridge) request(ctx context.Context, build func(id string) interface{}) (reply, error) {
	id := uuid.NewString()
	ch := make(chan reply, 1)

	b.mu.Lock()
	cl := b.conn
	if cl == nil {
		b.mu.Unlock()
		return reply{}, ErrNoShell
	}
	b.pending[id] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	if !cl.enqueue(build(id)) {
		return reply{}, ErrShellClosed
	}
	select {
	case r := <-ch:
		return r, r.err
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

func (b *Bridge) resolve(id string, r reply) {
	b.mu.Lock()
	ch, ok := b.pending[id]
	delete(b.pending, id)
	b.mu.Unlock()
	if !ok {
		b.log.Debug().Str("id", id).Msg("Reply for unknown request")
		return
	}
	ch <- r
}

// ─── lockdown.Adapter ───────────────────────────────────────────────

func (b *Bridge) RequestFullscreen(ctx context.Context) error {
	return b.setFullscreen(ctx, true)
}

func (b *Bridge) ExitFullscreen(ctx context.Context) error {
	return b.setFullscreen(ctx, false)
}

func (b *Bridge) setFullscreen(ctx context.Context, enter bool) error {
	r, err := b.request(ctx, func(id string) interface{} {
		return FullscreenCommand{Event: EventFullscreen, ID: id, Enter: enter}
	})
	if err != nil {
		return fmt.Errorf("fullscreen request: %w", err)
	}
	if r.result == nil || !r.result.OK {
		msg := "rejected by browser"
		if r.result != nil && r.result.Error != "" {
			msg = r.result.Error
		}
		return fmt.Errorf("fullscreen request: %s", msg)
	}
	b.mu.Lock()
	b.fullscreen = enter
	b.mu.Unlock()
	return nil
}

func (b *Bridge) IsFullscreen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fullscreen
}

func (b *Bridge) Subscribe(handler func(lockdown.Event) lockdown.Verdict) func() {
	b.mu.Lock()
	b.handler = handler
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.handler = nil
			b.mu.Unlock()
		})
	}
}

func (b *Bridge) WindowMetrics(ctx context.Context) (lockdown.Metrics, error) {
	r, err := b.request(ctx, func(id string) interface{} {
		return MetricsCommand{Event: EventMetrics, ID: id}
	})
	if err != nil {
		return lockdown.Metrics{}, fmt.Errorf("window metrics: %w", err)
	}
	if r.metrics == nil {
		return lockdown.Metrics{}, errors.New("window metrics: empty reply")
	}
	return r.metrics.Metrics, nil
}

// ─── session.Listener ───────────────────────────────────────────────

// OnState stores and pushes s unless a newer snapshot was already seen.
func (b *Bridge) OnState(s session.Snapshot) {
	b.mu.Lock()
	if last := b.lastState; last != nil && s.Seq < last.Seq {
		lastSeq := last.Seq
		b.mu.Unlock()
		b.log.Debug().Uint64("seq", s.Seq).Uint64("last", lastSeq).Msg("Dropping stale snapshot")
		return
	}
	b.lastState = &s
	cl := b.conn
	b.mu.Unlock()
	if cl != nil {
		cl.enqueue(StateMessage{Event: EventState, State: s})
	}
}

func (b *Bridge) OnConfirm(c session.Confirmation) {
	b.send(ConfirmMessage{Event: EventConfirm, Confirm: c})
}

func (b *Bridge) OnError(f *session.Failure) {
	b.send(ErrorMessage{Event: EventError, Kind: string(f.Kind), Error: f.Err.Error()})
}

func (b *Bridge) OnNavigate(n session.Navigation) {
	msg := NavigateMessage{Event: EventNavigate, View: n.View, Reason: n.Reason, Result: n.Result}
	b.mu.Lock()
	b.lastNav = &msg
	cl := b.conn
	b.mu.Unlock()
	if cl != nil {
		cl.enqueue(msg)
	}
}

// ─── Clock ──────────────────────────────────────────────────────────

// ClockSource is the read side of the session clock.
type ClockSource interface {
	Remaining() (seconds int, started bool)
	Format() string
}

// RunTicker pushes the remaining time to the shell every interval until
// ctx is done. Ticks stop once the session has reached a terminal state.
func (b *Bridge) RunTicker(ctx context.Context, src ClockSource, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if s, ok := b.LastState(); ok && s.State.Terminal() {
				continue
			}
			secs, started := src.Remaining()
			if !started {
				continue
			}
			b.send(TickMessage{Event: EventTick, Remaining: secs, Display: src.Format()})
		}
	}
}

// ─── Incoming messages ──────────────────────────────────────────────

func (b *Bridge) dispatch(cl *client, raw []byte) {
	var env RequestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		cl.fail(response.ErrInvalidPayload, "malformed message")
		return
	}

	switch env.Action {
	case ActionPing:
		cl.enqueue(PongMessage{Event: EventPong})
	case ActionEvent:
		b.handleEvent(cl, raw)
	case ActionMetrics:
		var msg MetricsReply
		if cl.decode(raw, &msg) {
			b.resolve(msg.ID, reply{metrics: &msg})
		}
	case ActionResult:
		var msg ResultReply
		if cl.decode(raw, &msg) {
			b.resolve(msg.ID, reply{result: &msg})
		}
	default:
		b.handleCommand(cl, env.Action, raw)
	}
}

func (b *Bridge) handleEvent(cl *client, raw []byte) {
	var msg EventRequest
	if !cl.decode(raw, &msg) {
		return
	}

	b.mu.Lock()
	if msg.Event.Kind == lockdown.EventFullscreenChange {
		b.fullscreen = msg.Event.Fullscreen
	}
	h := b.handler
	b.mu.Unlock()

	var v lockdown.Verdict
	if h != nil {
		v = h(msg.Event)
	}
	cl.enqueue(VerdictMessage{Event: EventVerdict, Seq: msg.Seq, Prevent: v.Prevent, Violation: v.Violation})
}

func (b *Bridge) handleCommand(cl *client, action Action, raw []byte) {
	b.mu.Lock()
	cmds := b.commands
	b.mu.Unlock()

	var err error
	switch action {
	case ActionAnswer:
		var msg AnswerRequest
		if !cl.decode(raw, &msg) {
			return
		}
		if cmds == nil {
			break
		}
		err = cmds.SetAnswer(*msg.Index, *msg.Option)
	case ActionJump:
		var msg JumpRequest
		if !cl.decode(raw, &msg) {
			return
		}
		if cmds == nil {
			break
		}
		err = cmds.JumpTo(*msg.Index)
	case ActionNext, ActionPrev, ActionSubmit, ActionConfirm, ActionCancelConfirm:
		if cmds == nil {
			break
		}
		err = runSimple(cmds, action)
	default:
		cl.fail(response.ErrUnknownAction, string(action))
		return
	}

	if cmds == nil {
		cl.fail(response.ErrSessionNotReady, "")
		return
	}
	if err != nil {
		b.log.Debug().Err(err).Str("action", string(action)).Msg("Command rejected")
		cl.fail(response.ErrCommandRejected, err.Error())
	}
}

func runSimple(cmds Commands, action Action) error {
	switch action {
	case ActionNext:
		return cmds.Next()
	case ActionPrev:
		return cmds.Prev()
	case ActionSubmit:
		return cmds.Submit()
	case ActionConfirm:
		return cmds.ConfirmSubmit()
	case ActionCancelConfirm:
		cmds.CancelConfirm()
	}
	return nil
}
