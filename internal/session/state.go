package session

import (
	"encoding/json"
	"fmt"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// State is the controller's position in the exam lifecycle.
type State string

const (
	StateLoading      State = "LOADING"
	StateInProgress   State = "IN_PROGRESS"
	StateSubmitting   State = "SUBMITTING"
	StateSubmitted    State = "SUBMITTED"
	StateSubmitFailed State = "SUBMIT_FAILED"

	// StateLoadError is terminal: the exam never started.
	StateLoadError State = "LOAD_ERROR"
	// StateCompleted means the backend reported the attempt as already
	// finished and the student was sent to the completion view.
	StateCompleted State = "ALREADY_COMPLETED"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	switch s {
	case StateSubmitted, StateLoadError, StateCompleted:
		return true
	}
	return false
}

// FailureKind classifies errors the session can run into. Only
// FailureLoad and FailureSubmit ever reach the student.
type FailureKind string

const (
	FailureLoad             FailureKind = "LOAD_FAILURE"
	FailureAlreadyCompleted FailureKind = "ALREADY_COMPLETED"
	FailureSubmit           FailureKind = "SUBMIT_FAILURE"
	FailureViolationLog     FailureKind = "VIOLATION_LOG_FAILURE"
	FailureGuardActivation  FailureKind = "GUARD_ACTIVATION_FAILURE"
)

// Failure is an error tagged with its kind.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// View is a navigation target outside the exam screen.
type View string

const (
	ViewCompletion   View = "completion"
	ViewAccessDenied View = "access_denied"
	ViewLoadError    View = "load_error"
)

// Navigation asks the shell to leave the exam screen.
type Navigation struct {
	View   View            `json:"view"`
	Reason string          `json:"reason,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Confirmation is raised when a manual submit leaves questions unanswered.
type Confirmation struct {
	Unanswered int `json:"unanswered"`
	Total      int `json:"total"`
}

// Snapshot is a read-only view of the session for the shell.
type Snapshot struct {
	// Seq increases with every snapshot taken; a listener may drop one
	// older than what it already holds.
	Seq           uint64              `json:"seq"`
	State         State               `json:"state"`
	ExamID        string              `json:"examId"`
	Title         string              `json:"title,omitempty"`
	Cursor        int                 `json:"cursor"`
	Total         int                 `json:"total"`
	Answered      int                 `json:"answered"`
	Unanswered    int                 `json:"unanswered"`
	Question      *model.Question     `json:"question,omitempty"`
	Selected      *int                `json:"selected,omitempty"`
	Answers       []model.AnswerEntry `json:"answers,omitempty"`
	Remaining     int                 `json:"remaining"`
	ClockStarted  bool                `json:"clockStarted"`
	Violations    int                 `json:"violations"`
	LastViolation string              `json:"lastViolation,omitempty"`
	Confirming    bool                `json:"confirming"`
	Forced        bool                `json:"forced"`
	Reason        string              `json:"reason,omitempty"`
	Error         string              `json:"error,omitempty"`
}

// Listener receives everything the shell has to render. Calls are made
// outside the controller's lock and may come from several goroutines.
type Listener interface {
	OnState(Snapshot)
	OnConfirm(Confirmation)
	OnError(*Failure)
	OnNavigate(Navigation)
}

// NopListener ignores every notification.
type NopListener struct{}

func (NopListener) OnState(Snapshot)       {}
func (NopListener) OnConfirm(Confirmation) {}
func (NopListener) OnError(*Failure)       {}
func (NopListener) OnNavigate(Navigation)  {}
