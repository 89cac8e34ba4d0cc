package session

import (
	"context"
	"time"

	"github.com/stemsi/exstem-proctor/internal/lockdown"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// Backend is the part of the exam API the controller drives.
type Backend interface {
	GetExam(ctx context.Context, examID string) (*model.ExamDefinition, error)
	StartAttempt(ctx context.Context, examID string) (*model.AttemptSession, error)
	Submit(ctx context.Context, examID string, req model.SubmitRequest) error
}

// Timer is a single-use countdown to the attempt deadline.
type Timer interface {
	Start(endTime time.Time, onExpire func()) (cancel func())
	Remaining() (seconds int, started bool)
}

// Guard is a single-use lockdown monitor.
type Guard interface {
	Activate(onViolation func(lockdown.Violation)) (deactivate func())
	Count() int
}

// Reporter forwards violations to the backend without blocking.
type Reporter interface {
	Report(examID string, v lockdown.Violation)
}

// DraftStore keeps in-progress answers for an attempt so a restarted agent
// can pick them up again.
type DraftStore interface {
	Load(ctx context.Context, attempt *model.AttemptSession) ([]model.AnswerEntry, error)
	Save(ctx context.Context, attempt *model.AttemptSession, answers []model.AnswerEntry) error
	Clear(ctx context.Context, attempt *model.AttemptSession) error
}

type nopReporter struct{}

func (nopReporter) Report(string, lockdown.Violation) {}

type nopDrafts struct{}

func (nopDrafts) Load(context.Context, *model.AttemptSession) ([]model.AnswerEntry, error) {
	return nil, nil
}

func (nopDrafts) Save(context.Context, *model.AttemptSession, []model.AnswerEntry) error {
	return nil
}

func (nopDrafts) Clear(context.Context, *model.AttemptSession) error {
	return nil
}

// Deps are the collaborators of a Controller. Backend, Timer and Guard are
// required.
type Deps struct {
	Backend  Backend
	Timer    Timer
	Guard    Guard
	Reporter Reporter
	Drafts   DraftStore
	Listener Listener
}
