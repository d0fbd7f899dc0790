package core

// run_limiter.go keeps invocations from overlapping inside one process.
//
// The scheduler and the manual HTTP trigger share a single slot. A trigger
// that finds the slot taken fails fast with ErrRunInProgress; the scheduler
// simply skips its tick. WaitForDrain lets shutdown wait for the active run.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRunInProgress is returned when an invocation is already running.
var ErrRunInProgress = errors.New("an ingestion run is already in progress")

// RunLimiter guards invocations with a one-slot semaphore.
type RunLimiter struct {
	slot chan struct{}

	mu      sync.RWMutex
	started time.Time
}

// NewRunLimiter creates an idle limiter.
func NewRunLimiter() *RunLimiter {
	return &RunLimiter{slot: make(chan struct{}, 1)}
}

// TryAcquire takes the slot without blocking.
// Returns ErrRunInProgress if another run holds it.
// The caller MUST call Release when the run completes (use defer).
func (l *RunLimiter) TryAcquire() error {
	select {
	case l.slot <- struct{}{}:
		l.mu.Lock()
		l.started = time.Now()
		l.mu.Unlock()
		return nil
	default:
		return ErrRunInProgress
	}
}

// Release frees the slot.
// Must be called exactly once for each successful TryAcquire.
func (l *RunLimiter) Release() {
	l.mu.Lock()
	l.started = time.Time{}
	l.mu.Unlock()
	<-l.slot
}

// Running reports whether a run holds the slot, and since when.
func (l *RunLimiter) Running() (bool, time.Time) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.slot) == 1, l.started
}

// WaitForDrain blocks until the active run completes or ctx is cancelled.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if running, _ := l.Running(); !running {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
