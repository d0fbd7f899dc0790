package audit

import (
	"context"
	"fmt"
	"sync"
)

// Run is one recorded activity run.
type Run struct {
	ID        int64
	Start     Start
	End       *End
	ErrorCode string
	ErrorText string
}

// MemRecorder keeps activity runs in memory.
type MemRecorder struct {
	mu   sync.Mutex
	runs []*Run
}

// NewMemRecorder creates an empty recorder.
func NewMemRecorder() *MemRecorder {
	return &MemRecorder{}
}

// Start implements Recorder.
func (m *MemRecorder) Start(_ context.Context, s Start) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.runs) + 1)
	m.runs = append(m.runs, &Run{ID: id, Start: s})
	return id, nil
}

// End implements Recorder.
func (m *MemRecorder) End(_ context.Context, runID int64, e End) error {
	run, err := m.run(runID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	run.End = &e
	return nil
}

// Error implements Recorder.
func (m *MemRecorder) Error(_ context.Context, runID int64, code, text string) error {
	run, err := m.run(runID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ErrorCode, run.ErrorText = code, text
	return nil
}

func (m *MemRecorder) run(id int64) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 1 || int(id) > len(m.runs) {
		return nil, fmt.Errorf("unknown activity run %d", id)
	}
	return m.runs[id-1], nil
}

// Runs returns recorded runs, optionally filtered by activity.
func (m *MemRecorder) Runs(activity ActivityType) []Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Run
	for _, r := range m.runs {
		if activity == "" || r.Start.Activity == activity {
			out = append(out, *r)
		}
	}
	return out
}
