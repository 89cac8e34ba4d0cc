package access

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/model"
)

type stubChecker struct {
	res   model.AccessDecision
	err   error
	calls int
}

func (s *stubChecker) CheckAccess(context.Context, string) (model.AccessDecision, error) {
	s.calls++
	return s.res, s.err
}

func TestCheckAccess(t *testing.T) {
	tests := []struct {
		name string
		res  model.AccessDecision
		err  error
		want Decision
	}{
		{"allowed", model.AccessDecision{Accessible: true}, nil, Decision{Accessible: true}},
		{"denied with message", model.AccessDecision{Message: "Exam not started yet"}, nil, Decision{Reason: "Exam not started yet"}},
		{"denied without message", model.AccessDecision{}, nil, Decision{Reason: DefaultDeniedReason}},
		{"call failed", model.AccessDecision{Accessible: true}, errors.New("offline"), Decision{Reason: DefaultDeniedReason}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGuard(&stubChecker{res: tt.res, err: tt.err}, zerolog.Nop())
			assert.Equal(t, tt.want, g.CheckAccess(context.Background(), "e1"))
		})
	}
}

func TestGateMountsWhenAccessible(t *testing.T) {
	g := NewGuard(&stubChecker{res: model.AccessDecision{Accessible: true}}, zerolog.Nop())
	mounted := false
	err := g.Gate(context.Background(), "e1", func() error {
		mounted = true
		return nil
	}, func(string) { t.Fatal("deny called") })
	require.NoError(t, err)
	assert.True(t, mounted)
}

func TestGatePropagatesMountError(t *testing.T) {
	g := NewGuard(&stubChecker{res: model.AccessDecision{Accessible: true}}, zerolog.Nop())
	boom := errors.New("boom")
	err := g.Gate(context.Background(), "e1", func() error { return boom }, nil)
	assert.ErrorIs(t, err, boom)
}

func TestGateNeverMountsWhenDenied(t *testing.T) {
	checker := &stubChecker{res: model.AccessDecision{Message: "Not in target class"}}
	g := NewGuard(checker, zerolog.Nop())

	var reason string
	err := g.Gate(context.Background(), "e1", func() error {
		t.Fatal("mount called")
		return nil
	}, func(r string) { reason = r })

	assert.ErrorIs(t, err, ErrDenied)
	assert.Equal(t, "Not in target class", reason)
	assert.Equal(t, 1, checker.calls)
}
