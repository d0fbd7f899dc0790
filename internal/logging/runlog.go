package logging

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Sink receives the captured log of an invocation.
type Sink interface {
	WriteLog(ctx context.Context, name string, data []byte) error
}

// RunLog captures every record logged during one invocation so it can be
// uploaded as a single file. Records still reach the process handler.
type RunLog struct {
	id      string
	started time.Time
	buf     *lockedBuffer
	logger  *slog.Logger

	mu      sync.Mutex
	flushed bool
}

// NewRunLog creates a run log tagged with invocationID. started is used to
// name the flushed file and should already be in the desired time zone.
func NewRunLog(invocationID string, started time.Time, level string) *RunLog {
	buf := &lockedBuffer{}
	capture := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: parseLevel(level)})
	handler := &teeHandler{primary: slog.Default().Handler(), capture: capture}

	return &RunLog{
		id:      invocationID,
		started: started,
		buf:     buf,
		logger:  slog.New(handler).With("invocation_id", invocationID),
	}
}

// Logger returns the run's logger.
func (l *RunLog) Logger() *slog.Logger { return l.logger }

// Attach returns ctx carrying the run's logger.
func (l *RunLog) Attach(ctx context.Context) context.Context {
	return NewContext(ctx, l.logger)
}

// Name is the object name the log is flushed under.
func (l *RunLog) Name() string {
	return fmt.Sprintf("log_%s.log", l.started.Format("2006-01-02_15-04-05"))
}

// Bytes returns a copy of everything captured so far.
func (l *RunLog) Bytes() []byte { return l.buf.Bytes() }

// Flush uploads the captured log once. Later calls are no-ops.
func (l *RunLog) Flush(ctx context.Context, sink Sink) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.flushed {
		return nil
	}
	l.flushed = true

	if err := sink.WriteLog(ctx, l.Name(), l.buf.Bytes()); err != nil {
		return fmt.Errorf("flush run log %s: %w", l.Name(), err)
	}
	return nil
}

// teeHandler forwards each record to the process handler and the capture
// buffer.
type teeHandler struct {
	primary slog.Handler
	capture slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level) || h.capture.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	if h.primary.Enabled(ctx, r.Level) {
		firstErr = h.primary.Handle(ctx, r.Clone())
	}
	if h.capture.Enabled(ctx, r.Level) {
		if err := h.capture.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{primary: h.primary.WithAttrs(attrs), capture: h.capture.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{primary: h.primary.WithGroup(name), capture: h.capture.WithGroup(name)}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}
