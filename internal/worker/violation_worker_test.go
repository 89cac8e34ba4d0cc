package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/lockdown"
	"github.com/stemsi/exstem-proctor/internal/model"
)

type fakeSender struct {
	mu      sync.Mutex
	reports []model.ViolationReport
	err     error
}

func (f *fakeSender) ReportViolation(_ context.Context, _ string, r model.ViolationReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return f.err
}

func (f *fakeSender) sent() []model.ViolationReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ViolationReport(nil), f.reports...)
}

func violation(count int) lockdown.Violation {
	return lockdown.Violation{
		Category: lockdown.CategoryVisibility,
		Count:    count,
		At:       time.Date(2026, 3, 2, 8, 0, count, 0, time.UTC),
	}
}

func TestReportsAreForwarded(t *testing.T) {
	sender := &fakeSender{}
	w := NewViolationWorker(sender, 8, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	for i := 1; i <= 3; i++ {
		w.Report("e1", violation(i))
	}
	require.Eventually(t, func() bool { return len(sender.sent()) == 3 }, time.Second, 5*time.Millisecond)

	got := sender.sent()
	assert.Equal(t, "visibility", got[0].Type)
	assert.Equal(t, 3, got[2].Count)
	assert.True(t, got[1].Timestamp.Equal(violation(2).At))
}

func TestFailuresAreSwallowed(t *testing.T) {
	sender := &fakeSender{err: errors.New("503")}
	w := NewViolationWorker(sender, 8, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	w.Report("e1", violation(1))
	w.Report("e1", violation(2))
	require.Eventually(t, func() bool { return len(sender.sent()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestReportNeverBlocks(t *testing.T) {
	sender := &fakeSender{}
	w := NewViolationWorker(sender, 2, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		for i := 1; i <= 10; i++ {
			w.Report("e1", violation(i))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Report blocked on a full queue")
	}
	assert.Len(t, w.queue, 2)
}

func TestShutdownDrainsQueue(t *testing.T) {
	sender := &fakeSender{}
	w := NewViolationWorker(sender, 8, zerolog.Nop())
	for i := 1; i <= 4; i++ {
		w.Report("e1", violation(i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stopped := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Len(t, sender.sent(), 4)
}
