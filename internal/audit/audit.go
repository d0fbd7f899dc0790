// Package audit records one activity run per pipeline stage invocation:
// a start record returning a run id, an end record with the status and
// reference details, and an error record when the stage failed.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/landingzone/internal/core"
	"github.com/JonMunkholm/landingzone/internal/logging"
)

// ActivityType names a pipeline stage.
type ActivityType string

const (
	ActivityDecryption   ActivityType = "decryption"
	ActivityValidations  ActivityType = "validations"
	ActivityProcessCSV   ActivityType = "process_csv"
	ActivityProcessExcel ActivityType = "process_excel"
	ActivityWrite        ActivityType = "write"
	ActivityRouting      ActivityType = "routing"
)

// Status is the state of an activity run.
type Status string

const (
	StatusStarted Status = "started"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Start describes the subject of an activity run.
type Start struct {
	Activity       ActivityType
	InvocationID   string
	SourceName     string
	SourceType     string
	SourceFileName string
	ZipFileName    string
}

// End completes an activity run.
type End struct {
	Status     Status
	Details    map[string]any
	TargetFile string
}

// Recorder persists activity runs.
type Recorder interface {
	Start(ctx context.Context, s Start) (int64, error)
	End(ctx context.Context, runID int64, e End) error
	Error(ctx context.Context, runID int64, code, text string) error
}

// Activity is an open activity run.
type Activity struct {
	rec     Recorder
	runID   int64
	start   Start
	began   time.Time
	details map[string]any
}

// Begin opens an activity run. The invocation id is taken from ctx when the
// start record does not carry one.
func Begin(ctx context.Context, rec Recorder, s Start) (*Activity, error) {
	if s.InvocationID == "" {
		s.InvocationID = core.InvocationIDFromContext(ctx)
	}
	if s.SourceType == "" {
		s.SourceType = string(core.OriginFromContext(ctx))
	}
	id, err := rec.Start(ctx, s)
	if err != nil {
		return nil, err
	}
	return &Activity{rec: rec, runID: id, start: s, began: time.Now(), details: map[string]any{}}, nil
}

// RunID returns the run identifier.
func (a *Activity) RunID() int64 { return a.runID }

// Set adds a reference detail written with the end record.
func (a *Activity) Set(key string, value any) {
	a.details[key] = value
}

// Finish closes the run. A nil stageErr marks success; otherwise the run
// is failed and an error record carries the stage error's code. The
// returned error is stageErr joined with any recording failure.
func (a *Activity) Finish(ctx context.Context, stageErr error, target string) error {
	status := StatusSuccess
	if stageErr != nil {
		status = StatusFailed
		if f, ok := core.AsFailure(stageErr); ok {
			a.details["failure_kind"] = string(f.Kind)
			for k, v := range f.Details {
				a.details[k] = v
			}
		}
	}

	err := a.rec.End(ctx, a.runID, End{Status: status, Details: a.details, TargetFile: target})
	if stageErr != nil {
		msg := core.MapError(stageErr)
		if recErr := a.rec.Error(ctx, a.runID, msg.Code, stageErr.Error()); recErr != nil {
			err = errors.Join(err, recErr)
		}
	}
	if err != nil {
		logging.FromContext(ctx).Error("record activity end failed",
			"activity", a.start.Activity,
			"run_id", a.runID,
			"error", err,
		)
		return errors.Join(stageErr, err)
	}
	return stageErr
}
