package ingest

// scheduler.go runs invocations on demand and on a fixed interval.
//
// Runner shares one core.RunLimiter between the scheduler and manual
// triggers, so at most one invocation runs per process. A scheduler tick
// that finds a run active is skipped; a manual trigger gets
// core.ErrRunInProgress.

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/landingzone/internal/core"
)

// Runner serialises invocations of an Orchestrator and remembers the last
// result.
type Runner struct {
	orch    *Orchestrator
	limiter *core.RunLimiter

	mu   sync.RWMutex
	last *RunResult
}

// RunResult is a finished invocation.
type RunResult struct {
	Summary Summary
	Err     error
}

// NewRunner creates a Runner.
func NewRunner(orch *Orchestrator, limiter *core.RunLimiter) *Runner {
	if limiter == nil {
		limiter = core.NewRunLimiter()
	}
	return &Runner{orch: orch, limiter: limiter}
}

// Limiter returns the limiter guarding invocations.
func (r *Runner) Limiter() *core.RunLimiter { return r.limiter }

// RunOnce runs one invocation and waits for it.
// Returns core.ErrRunInProgress if one is already running.
func (r *Runner) RunOnce(ctx context.Context) (Summary, error) {
	if err := r.limiter.TryAcquire(); err != nil {
		return Summary{}, err
	}
	defer r.limiter.Release()
	return r.run(ctx)
}

// Start begins an invocation in the background. ctx must outlive the
// caller's request; cancelling it stops the run between files.
// Returns core.ErrRunInProgress if one is already running.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.limiter.TryAcquire(); err != nil {
		return err
	}
	go func() {
		defer r.limiter.Release()
		_, _ = r.run(ctx)
	}()
	return nil
}

// Last returns the most recent invocation result, if any.
func (r *Runner) Last() (RunResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return RunResult{}, false
	}
	return *r.last, true
}

func (r *Runner) run(ctx context.Context) (Summary, error) {
	summary, err := r.orch.Run(ctx)
	r.mu.Lock()
	r.last = &RunResult{Summary: summary, Err: err}
	r.mu.Unlock()
	return summary, err
}

// StartScheduler runs an invocation immediately, then every interval,
// until ctx is cancelled.
func (r *Runner) StartScheduler(ctx context.Context, interval time.Duration) {
	slog.Info("ingest scheduler started", "interval", interval.String())

	r.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("ingest scheduler stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	summary, err := r.RunOnce(ctx)
	switch {
	case errors.Is(err, core.ErrRunInProgress):
		slog.Info("scheduled run skipped, previous run still active")
	case err != nil:
		slog.Error("scheduled run failed",
			"invocation_id", summary.InvocationID,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	default:
		slog.Debug("scheduled run completed",
			"invocation_id", summary.InvocationID,
			"files", len(summary.Files),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
