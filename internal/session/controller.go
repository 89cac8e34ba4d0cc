// Package session drives one exam attempt from loading to submission.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/api"
	"github.com/stemsi/exstem-proctor/internal/ledger"
	"github.com/stemsi/exstem-proctor/internal/lockdown"
	"github.com/stemsi/exstem-proctor/internal/model"
)

var (
	ErrNotInProgress    = errors.New("exam is not in progress")
	ErrNothingToConfirm = errors.New("no submission is waiting for confirmation")
	ErrAlreadyLoaded    = errors.New("session already loaded")
	ErrClosed           = errors.New("session closed")

	// ErrInvalidOption is returned for an option the question does not have.
	ErrInvalidOption = fmt.Errorf("option out of range: %w", ledger.ErrInvalidOption)
)

const (
	DefaultViolationThreshold = 3

	draftTimeout = 3 * time.Second
)

// trigger is a request to submit that arrived before the session went live.
type trigger struct {
	forced bool
	reason model.ForcedReason
}

// Controller owns the state machine of a single attempt. All exported
// methods are safe for concurrent use.
type Controller struct {
	examID    string
	backend   Backend
	timer     Timer
	guard     Guard
	reporter  Reporter
	drafts    DraftStore
	listener  Listener
	threshold int
	log       zerolog.Logger

	mu            sync.Mutex
	state         State
	loaded        bool
	closed        bool
	exam          *model.ExamDefinition
	attempt       *model.AttemptSession
	answers       *ledger.Ledger
	cursor        int
	confirming    bool
	early         *trigger
	seq           uint64
	violations    int
	lastViolation string
	pending       *model.SubmitRequest
	forced        bool
	reason        model.ForcedReason
	failure       *Failure
	cancelClock   func()
	deactivate    func()

	inflight sync.WaitGroup
	done     chan struct{}
	doneOnce sync.Once
}

// New builds a controller for examID. A threshold below 1 uses
// DefaultViolationThreshold.
func New(examID string, deps Deps, threshold int, log zerolog.Logger) *Controller {
	if threshold < 1 {
		threshold = DefaultViolationThreshold
	}
	c := &Controller{
		examID:    examID,
		backend:   deps.Backend,
		timer:     deps.Timer,
		guard:     deps.Guard,
		reporter:  deps.Reporter,
		drafts:    deps.Drafts,
		listener:  deps.Listener,
		threshold: threshold,
		log:       log.With().Str("component", "session").Str("exam_id", examID).Logger(),
		state:     StateLoading,
		done:      make(chan struct{}),
	}
	if c.reporter == nil {
		c.reporter = nopReporter{}
	}
	if c.drafts == nil {
		c.drafts = nopDrafts{}
	}
	if c.listener == nil {
		c.listener = NopListener{}
	}
	return c
}

// Done is closed once the session reaches a terminal state or is closed.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Load fetches the exam, starts the attempt, prepares the answers and arms
// the clock and the lockdown. Any failure moves the session to
// StateLoadError and is returned as a *Failure. An already-completed
// attempt is not an error: the session moves to StateCompleted and the
// listener is sent to the completion view.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.loaded {
		c.mu.Unlock()
		return ErrAlreadyLoaded
	}
	c.loaded = true
	c.mu.Unlock()
	c.emit()

	exam, err := c.backend.GetExam(ctx, c.examID)
	if err != nil {
		return c.failLoad(fmt.Errorf("fetch exam: %w", err))
	}

	attempt, err := c.backend.StartAttempt(ctx, c.examID)
	if err != nil {
		var completed *api.AlreadyCompletedError
		if errors.As(err, &completed) {
			c.alreadyCompleted(completed)
			return nil
		}
		return c.failLoad(fmt.Errorf("start attempt: %w", err))
	}

	answers := ledger.New(exam.QuestionIDs())
	c.restoreDraft(ctx, attempt, answers)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.log.Warn().Msg("Session closed while loading, discarding attempt")
		return ErrClosed
	}
	c.exam = exam
	c.attempt = attempt
	c.answers = answers
	c.mu.Unlock()

	cancel := c.timer.Start(attempt.EndTime.Time, c.onExpire)
	deactivate := c.guard.Activate(c.onViolation)

	c.mu.Lock()
	c.deactivate = deactivate
	c.cancelClock = cancel
	if c.closed {
		c.mu.Unlock()
		cancel()
		deactivate()
		return ErrClosed
	}
	c.state = StateInProgress
	var req *model.SubmitRequest
	if t := c.early; t != nil {
		r := c.beginLocked(t.forced, t.reason)
		req = &r
	}
	c.mu.Unlock()

	c.log.Info().
		Int("questions", len(exam.Questions)).
		Time("end_time", attempt.EndTime.Time).
		Msg("Exam started")

	c.emit()
	if req != nil {
		c.dispatch(*req)
	}
	return nil
}

func (c *Controller) failLoad(err error) error {
	f := &Failure{Kind: FailureLoad, Err: err}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return f
	}
	c.state = StateLoadError
	c.failure = f
	c.mu.Unlock()

	c.log.Error().Err(err).Msg("Exam failed to load")
	c.emit()
	c.listener.OnError(f)
	c.listener.OnNavigate(Navigation{View: ViewLoadError, Reason: err.Error()})
	c.finish()
	return f
}

func (c *Controller) alreadyCompleted(completed *api.AlreadyCompletedError) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = StateCompleted
	c.mu.Unlock()

	c.log.Info().Msg("Attempt already completed, redirecting")
	c.emit()
	c.listener.OnNavigate(Navigation{View: ViewCompletion, Result: completed.Result})
	c.finish()
}

func (c *Controller) restoreDraft(ctx context.Context, attempt *model.AttemptSession, answers *ledger.Ledger) {
	ctx, cancel := context.WithTimeout(ctx, draftTimeout)
	defer cancel()
	saved, err := c.drafts.Load(ctx, attempt)
	if err != nil {
		c.log.Warn().Err(err).Msg("Draft unavailable, starting with empty answers")
		return
	}
	if n := answers.Restore(saved); n > 0 {
		c.log.Info().Int("restored", n).Msg("Draft answers restored")
	}
}

// SetAnswer records option for the question at index.
func (c *Controller) SetAnswer(index, option int) error {
	c.mu.Lock()
	if c.state != StateInProgress {
		c.mu.Unlock()
		return ErrNotInProgress
	}
	if index >= 0 && index < len(c.exam.Questions) && option >= len(c.exam.Questions[index].Options) {
		c.mu.Unlock()
		return fmt.Errorf("set answer: question %d has %d options: %w", index, len(c.exam.Questions[index].Options), ErrInvalidOption)
	}
	if err := c.answers.SetAnswer(index, option); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("set answer: %w", err)
	}
	attempt := c.attempt
	entries := c.answers.Entries()
	c.mu.Unlock()

	c.saveDraft(attempt, entries)
	c.emit()
	return nil
}

func (c *Controller) saveDraft(attempt *model.AttemptSession, entries []model.AnswerEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), draftTimeout)
	defer cancel()
	if err := c.drafts.Save(ctx, attempt, entries); err != nil {
		c.log.Warn().Err(err).Msg("Draft save failed")
	}
}

// Next moves the cursor forward, stopping at the last question.
func (c *Controller) Next() error {
	return c.move(func(cur, n int) int { return min(cur+1, n-1) })
}

// Prev moves the cursor back, stopping at the first question.
func (c *Controller) Prev() error {
	return c.move(func(cur, _ int) int { return max(cur-1, 0) })
}

// JumpTo sets the cursor to index. Out-of-range indexes are ignored.
func (c *Controller) JumpTo(index int) error {
	return c.move(func(cur, n int) int {
		if index < 0 || index >= n {
			return cur
		}
		return index
	})
}

func (c *Controller) move(next func(cur, n int) int) error {
	c.mu.Lock()
	if c.state != StateInProgress {
		c.mu.Unlock()
		return ErrNotInProgress
	}
	n := c.answers.Len()
	if n == 0 {
		c.mu.Unlock()
		return nil
	}
	cursor := next(c.cursor, n)
	changed := cursor != c.cursor
	c.cursor = cursor
	c.mu.Unlock()

	if changed {
		c.emit()
	}
	return nil
}

// Submit is the student's submit action. From StateInProgress it asks for
// confirmation while questions are unanswered, otherwise it submits. From
// StateSubmitFailed it resends the failed submission. While a submission is
// in flight it does nothing.
func (c *Controller) Submit() error {
	c.mu.Lock()
	switch c.state {
	case StateSubmitting:
		c.mu.Unlock()
		return nil
	case StateSubmitFailed:
		req := c.retryLocked()
		c.mu.Unlock()
		c.log.Info().Msg("Retrying submission")
		c.emit()
		c.dispatch(req)
		return nil
	case StateInProgress:
	default:
		c.mu.Unlock()
		return ErrNotInProgress
	}

	if unanswered := c.answers.UnansweredCount(); unanswered > 0 {
		c.confirming = true
		prompt := Confirmation{Unanswered: unanswered, Total: c.answers.Len()}
		c.mu.Unlock()
		c.emit()
		c.listener.OnConfirm(prompt)
		return nil
	}

	req := c.beginLocked(false, c.manualReasonLocked())
	c.mu.Unlock()
	c.emit()
	c.dispatch(req)
	return nil
}

// ConfirmSubmit acknowledges a pending confirmation and submits.
func (c *Controller) ConfirmSubmit() error {
	c.mu.Lock()
	if c.state == StateSubmitting {
		c.mu.Unlock()
		return nil
	}
	if c.state != StateInProgress || !c.confirming {
		c.mu.Unlock()
		return ErrNothingToConfirm
	}
	req := c.beginLocked(false, c.manualReasonLocked())
	c.mu.Unlock()
	c.emit()
	c.dispatch(req)
	return nil
}

// CancelConfirm dismisses a pending confirmation.
func (c *Controller) CancelConfirm() {
	c.mu.Lock()
	was := c.confirming
	c.confirming = false
	c.mu.Unlock()
	if was {
		c.emit()
	}
}

func (c *Controller) manualReasonLocked() model.ForcedReason {
	if c.violations > 0 {
		return model.ReasonManualWithViolation
	}
	return model.ReasonNone
}

// onExpire is the clock callback.
func (c *Controller) onExpire() {
	c.mu.Lock()
	switch c.state {
	case StateLoading:
		if c.early == nil {
			c.early = &trigger{}
		}
		c.mu.Unlock()
		return
	case StateInProgress:
	default:
		c.mu.Unlock()
		return
	}
	req := c.beginLocked(false, model.ReasonNone)
	c.mu.Unlock()

	c.log.Info().Msg("Time is up, submitting")
	c.emit()
	c.dispatch(req)
}

// onViolation is the lockdown callback.
func (c *Controller) onViolation(v lockdown.Violation) {
	c.reporter.Report(c.examID, v)

	c.mu.Lock()
	// Callbacks may arrive out of order; the count only moves forward.
	advanced := v.Count > c.violations
	if advanced {
		c.violations = v.Count
		c.lastViolation = v.Reason
	}
	crossed := advanced && v.Count >= c.threshold
	reason := ForcedReasonFor(v.Category)
	switch {
	case crossed && c.state == StateLoading:
		if c.early == nil {
			c.early = &trigger{forced: true, reason: reason}
		}
		c.mu.Unlock()
		return
	case crossed && c.state == StateInProgress:
	default:
		c.mu.Unlock()
		c.emit()
		return
	}
	req := c.beginLocked(true, reason)
	c.mu.Unlock()

	c.log.Warn().
		Int("violations", v.Count).
		Str("reason", reason.Display()).
		Msg("Violation threshold reached, forcing submission")
	c.emit()
	c.dispatch(req)
}

// ForcedReasonFor maps the category that crossed the threshold to the
// reason attached to the forced submission.
func ForcedReasonFor(cat lockdown.Category) model.ForcedReason {
	switch cat {
	case lockdown.CategoryVisibility, lockdown.CategoryBlur:
		return model.ReasonTabSwitch
	case lockdown.CategoryFullscreenExit:
		return model.ReasonFullscreenExit
	case lockdown.CategoryDevTools:
		return model.ReasonDevToolsDetected
	default:
		return model.ReasonProhibitedInput
	}
}

// beginLocked moves to StateSubmitting with a request built from the
// current answers. c.mu must be held.
func (c *Controller) beginLocked(forced bool, reason model.ForcedReason) model.SubmitRequest {
	req := model.SubmitRequest{
		Answers:          c.answers.Entries(),
		ForcedSubmission: forced,
		Reason:           reason.Display(),
	}
	c.state = StateSubmitting
	c.confirming = false
	c.failure = nil
	c.forced = forced
	c.reason = reason
	c.pending = &req
	return req
}

// retryLocked moves from StateSubmitFailed back to StateSubmitting with
// the request that failed. c.mu must be held.
func (c *Controller) retryLocked() model.SubmitRequest {
	c.state = StateSubmitting
	c.failure = nil
	return *c.pending
}

func (c *Controller) dispatch(req model.SubmitRequest) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.send(req)
	}()
}

// send performs the submit call. The call is never cancelled; a result
// that arrives after Close is dropped.
func (c *Controller) send(req model.SubmitRequest) {
	err := c.backend.Submit(context.Background(), c.examID, req)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.log.Warn().Err(err).Msg("Ignoring submit result after close")
		return
	}
	if err != nil {
		f := &Failure{Kind: FailureSubmit, Err: err}
		c.state = StateSubmitFailed
		c.failure = f
		c.mu.Unlock()

		c.log.Error().Err(err).Int("status", api.StatusOf(err)).Msg("Submit failed")
		c.emit()
		c.listener.OnError(f)
		return
	}
	c.state = StateSubmitted
	c.answers.Freeze()
	cancel, deactivate := c.cancelClock, c.deactivate
	attempt := c.attempt
	c.mu.Unlock()

	c.release(cancel, deactivate)
	c.clearDraft(attempt)

	c.log.Info().
		Bool("forced", req.ForcedSubmission).
		Str("reason", req.Reason).
		Msg("Exam submitted")
	c.emit()
	c.listener.OnNavigate(Navigation{View: ViewCompletion})
	c.finish()
}

func (c *Controller) clearDraft(attempt *model.AttemptSession) {
	ctx, cancel := context.WithTimeout(context.Background(), draftTimeout)
	defer cancel()
	if err := c.drafts.Clear(ctx, attempt); err != nil {
		c.log.Warn().Err(err).Msg("Draft cleanup failed")
	}
}

func (c *Controller) release(cancel, deactivate func()) {
	if cancel != nil {
		cancel()
	}
	if deactivate != nil {
		deactivate()
	}
}

// Close stops the clock and releases the lockdown regardless of state.
// A submission in flight keeps running but its result is ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cancel, deactivate := c.cancelClock, c.deactivate
	c.mu.Unlock()

	c.release(cancel, deactivate)
	c.finish()
	c.log.Debug().Msg("Session closed")
}

// Wait blocks until every submit call has returned.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

func (c *Controller) finish() {
	c.doneOnce.Do(func() { close(c.done) })
}

// Snapshot returns the current view of the session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	c.seq++
	s := Snapshot{
		Seq:           c.seq,
		State:         c.state,
		ExamID:        c.examID,
		Cursor:        c.cursor,
		Violations:    c.violations,
		LastViolation: c.lastViolation,
		Confirming:    c.confirming,
		Forced:        c.forced,
		Reason:        c.reason.Display(),
	}
	if c.failure != nil {
		s.Error = c.failure.Err.Error()
	}
	if c.exam != nil {
		s.Title = c.exam.Title
		if c.cursor < len(c.exam.Questions) {
			q := c.exam.Questions[c.cursor]
			s.Question = &q
		}
	}
	if c.answers != nil {
		s.Total = c.answers.Len()
		s.Answered = c.answers.AnsweredCount()
		s.Unanswered = s.Total - s.Answered
		s.Answers = c.answers.Entries()
		if s.Cursor < len(s.Answers) {
			s.Selected = s.Answers[s.Cursor].SelectedOption
		}
	}
	if c.attempt != nil {
		s.Remaining, s.ClockStarted = c.timer.Remaining()
	}
	return s
}

func (c *Controller) emit() {
	c.listener.OnState(c.Snapshot())
}
