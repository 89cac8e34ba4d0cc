package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/lockdown"
	"github.com/stemsi/exstem-proctor/internal/model"
)

const (
	DefaultQueueSize = 64
	SendTimeout      = 10 * time.Second
	DrainTimeout     = 5 * time.Second
)

// ViolationSender is the violation endpoint of the exam API.
type ViolationSender interface {
	ReportViolation(ctx context.Context, examID string, report model.ViolationReport) error
}

type violationJob struct {
	examID string
	report model.ViolationReport
}

// ViolationWorker forwards lockdown violations to the backend in the
// background. Failures are logged and dropped; nothing here ever reaches
// the student.
type ViolationWorker struct {
	api   ViolationSender
	queue chan violationJob
	log   zerolog.Logger
}

// NewViolationWorker creates a worker with a queue of size entries.
func NewViolationWorker(api ViolationSender, size int, log zerolog.Logger) *ViolationWorker {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &ViolationWorker{
		api:   api,
		queue: make(chan violationJob, size),
		log:   log.With().Str("component", "violation_worker").Logger(),
	}
}

// Report enqueues v without blocking. When the queue is full the report is
// dropped.
func (w *ViolationWorker) Report(examID string, v lockdown.Violation) {
	job := violationJob{
		examID: examID,
		report: model.ViolationReport{
			Type:      string(v.Category),
			Timestamp: model.NewTimestamp(v.At),
			Count:     v.Count,
		},
	}
	select {
	case w.queue <- job:
	default:
		w.log.Warn().
			Str("failure", "VIOLATION_LOG_FAILURE").
			Str("type", job.report.Type).
			Int("count", v.Count).
			Msg("Violation queue full, dropping report")
	}
}

// Start runs the worker loop until ctx is cancelled. Call in a goroutine.
func (w *ViolationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")
	for {
		select {
		case <-ctx.Done():
			w.shutdown()
			return
		case job := <-w.queue:
			w.send(ctx, job)
		}
	}
}

func (w *ViolationWorker) send(ctx context.Context, job violationJob) {
	ctx, cancel := context.WithTimeout(ctx, SendTimeout)
	defer cancel()
	if err := w.api.ReportViolation(ctx, job.examID, job.report); err != nil {
		w.log.Warn().Err(err).
			Str("failure", "VIOLATION_LOG_FAILURE").
			Str("exam_id", job.examID).
			Str("type", job.report.Type).
			Int("count", job.report.Count).
			Msg("Violation log failed")
	}
}

// shutdown flushes whatever is still queued, bounded by DrainTimeout.
func (w *ViolationWorker) shutdown() {
	w.log.Info().Msg("Worker stopping, flushing remaining reports...")

	drainCtx, cancel := context.WithTimeout(context.Background(), DrainTimeout)
	defer cancel()

	sent := 0
	for {
		select {
		case job := <-w.queue:
			if drainCtx.Err() != nil {
				w.log.Warn().Int("sent", sent).Int("left", len(w.queue)+1).Msg("Drain timed out")
				return
			}
			w.send(drainCtx, job)
			sent++
		default:
			w.log.Info().Int("sent", sent).Msg("Worker stopped")
			return
		}
	}
}
