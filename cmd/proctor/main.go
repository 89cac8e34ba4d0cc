package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/access"
	"github.com/stemsi/exstem-proctor/internal/api"
	"github.com/stemsi/exstem-proctor/internal/auth"
	"github.com/stemsi/exstem-proctor/internal/bridge"
	"github.com/stemsi/exstem-proctor/internal/clock"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/draft"
	"github.com/stemsi/exstem-proctor/internal/lockdown"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/session"
	"github.com/stemsi/exstem-proctor/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("exam_id", cfg.ExamID).
		Str("api", cfg.APIBaseURL).
		Str("bridge", cfg.BridgeAddr).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Proctor")

	if cfg.ExamID == "" {
		log.Fatal().Msg("EXAM_ID is required")
	}
	if cfg.BridgeToken == "" {
		log.Warn().Msg("BRIDGE_TOKEN is empty, the bridge accepts any local client")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Exam API Client ───────────────────────────────────────────────
	var tokens api.TokenSource = api.StaticToken(cfg.StudentToken)
	if cfg.StudentToken == "" {
		tokens = auth.NewPrompt(api.New(cfg.APIBaseURL, nil, cfg.HTTPTimeout), cfg.StudentLogin, log)
	}
	client := api.New(cfg.APIBaseURL, tokens, cfg.HTTPTimeout)

	// ─── Answer Drafts (optional) ──────────────────────────────────────
	var drafts session.DraftStore
	if cfg.RedisURL != "" {
		rdb, err := draft.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, answer drafts disabled")
		} else {
			defer rdb.Close()
			drafts = draft.NewRedisStore(rdb, cfg.DraftTTL, auth.StudentID(ctx, tokens), log)
		}
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	violations := worker.NewViolationWorker(client, cfg.ViolationQueueSize, log)
	go func() {
		violations.Start(workerCtx)
		close(workerDone)
	}()

	// ─── Shell Bridge ──────────────────────────────────────────────────
	shell := bridge.New(lockdown.DefaultKeyPolicy(), cfg.AllowedOrigins, log)
	r := bridge.SetupRouter(ctx, shell, bridge.RouterConfig{
		GinMode:        cfg.GinMode,
		Token:          cfg.BridgeToken,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	srv := bridge.NewServer(cfg.BridgeAddr, r)

	go func() {
		log.Info().Str("addr", cfg.BridgeAddr).Msg("Bridge listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Bridge server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// ─── Exam Session ──────────────────────────────────────────────────
	var ctrl *session.Controller
	sessionDone := make(chan struct{})

	go func() {
		defer close(sessionDone)

		log.Info().Msg("Waiting for kiosk shell")
		if err := shell.WaitForShell(ctx); err != nil {
			return
		}

		guard := access.NewGuard(client, log)
		mount := func() error {
			clk := clock.New()
			monitor := lockdown.NewMonitor(shell, log, lockdown.Options{
				DevToolsGap:  cfg.DevToolsGapPx,
				PollInterval: cfg.DevToolsPoll,
			})
			ctrl = session.New(cfg.ExamID, session.Deps{
				Backend:  client,
				Timer:    clk,
				Guard:    monitor,
				Reporter: violations,
				Drafts:   drafts,
				Listener: shell,
			}, cfg.ViolationThreshold, log)

			shell.Attach(ctrl)
			go shell.RunTicker(ctx, clk, time.Second)
			return ctrl.Load(ctx)
		}
		deny := func(reason string) {
			shell.OnNavigate(session.Navigation{View: session.ViewAccessDenied, Reason: reason})
		}

		if err := guard.Gate(ctx, cfg.ExamID, mount, deny); err != nil {
			log.Error().Err(err).Msg("Exam not started")
			return
		}

		select {
		case <-ctrl.Done():
			log.Info().Str("state", string(ctrl.State())).Msg("Exam session finished")
		case <-ctx.Done():
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	// The agent keeps serving the shell after the session ends so the
	// completion view stays up until the kiosk stops us.
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// 1. Release the session. An in-flight submission is allowed to finish.
	cancel()
	<-sessionDone
	if ctrl != nil {
		ctrl.Close()
		waitOrTimeout(shutdownCtx, ctrl.Wait)
	}

	// 2. Stop the bridge.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Bridge shutdown error")
	}

	// 3. Flush queued violation reports.
	workerCancel()
	<-workerDone

	log.Info().Msg("Shutdown complete")
}

func waitOrTimeout(ctx context.Context, wait func()) {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
