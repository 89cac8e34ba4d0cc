// Package access decides whether the student may open an exam at all.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// DefaultDeniedReason is shown when the backend gives no reason or the
// check itself fails.
const DefaultDeniedReason = "You do not have access to this exam."

// ErrDenied is returned by Gate when the exam was not mounted.
var ErrDenied = errors.New("exam access denied")

// Checker is the access endpoint of the exam API.
type Checker interface {
	CheckAccess(ctx context.Context, examID string) (model.AccessDecision, error)
}

// Decision is the outcome of an access check.
type Decision struct {
	Accessible bool
	Reason     string
}

// Guard runs the access check before an exam session may be built.
type Guard struct {
	checker Checker
	log     zerolog.Logger
}

// NewGuard builds a Guard over checker.
func NewGuard(checker Checker, log zerolog.Logger) *Guard {
	return &Guard{
		checker: checker,
		log:     log.With().Str("component", "access").Logger(),
	}
}

// CheckAccess asks the backend whether examID is open to the student. A
// failed call is a denial with the default reason, never an error.
func (g *Guard) CheckAccess(ctx context.Context, examID string) Decision {
	res, err := g.checker.CheckAccess(ctx, examID)
	if err != nil {
		g.log.Warn().Err(err).Str("exam_id", examID).Msg("Access check failed, denying")
		return Decision{Reason: DefaultDeniedReason}
	}
	if !res.Accessible {
		reason := res.Message
		if reason == "" {
			reason = DefaultDeniedReason
		}
		g.log.Info().Str("exam_id", examID).Str("reason", reason).Msg("Access denied")
		return Decision{Reason: reason}
	}
	return Decision{Accessible: true}
}

// Gate calls mount only when examID is accessible. Otherwise deny receives
// the reason and Gate returns ErrDenied; mount is never called.
func (g *Guard) Gate(ctx context.Context, examID string, mount func() error, deny func(reason string)) error {
	d := g.CheckAccess(ctx, examID)
	if !d.Accessible {
		if deny != nil {
			deny(d.Reason)
		}
		return fmt.Errorf("%w: %s", ErrDenied, d.Reason)
	}
	return mount()
}
