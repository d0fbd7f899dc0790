package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunLimiter_SingleSlot(t *testing.T) {
	limiter := NewRunLimiter()

	if err := limiter.TryAcquire(); err != nil {
		t.Fatalf("first TryAcquire failed: %v", err)
	}
	if running, started := limiter.Running(); !running || started.IsZero() {
		t.Errorf("Running() = %v, %v after acquire", running, started)
	}
	if err := limiter.TryAcquire(); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("second TryAcquire = %v, want ErrRunInProgress", err)
	}

	limiter.Release()

	if running, _ := limiter.Running(); running {
		t.Error("Running() = true after release")
	}
	if err := limiter.TryAcquire(); err != nil {
		t.Errorf("TryAcquire after release failed: %v", err)
	}
	limiter.Release()
}

func TestRunLimiter_WaitForDrain(t *testing.T) {
	limiter := NewRunLimiter()
	if err := limiter.TryAcquire(); err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		limiter.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := limiter.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain = %v", err)
	}
}
