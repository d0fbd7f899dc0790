package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/landingzone/internal/core"
	"github.com/JonMunkholm/landingzone/internal/logging"
)

func TestActivity_FinishSuccess(t *testing.T) {
	rec := NewMemRecorder()
	ctx := core.ContextWithInvocationID(context.Background(), "inv-1")
	ctx = core.ContextWithOrigin(ctx, core.OriginSFTP)

	a, err := Begin(ctx, rec, Start{Activity: ActivityProcessCSV, SourceName: "acme", SourceFileName: "a.csv"})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	a.Set("row_count", 3)
	if err := a.Finish(ctx, nil, "a_1.parquet"); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	runs := rec.Runs(ActivityProcessCSV)
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	run := runs[0]
	if run.Start.InvocationID != "inv-1" || run.Start.SourceType != "sftp" {
		t.Errorf("start = %+v", run.Start)
	}
	if run.End == nil || run.End.Status != StatusSuccess || run.End.TargetFile != "a_1.parquet" {
		t.Errorf("end = %+v", run.End)
	}
	if run.ErrorCode != "" {
		t.Errorf("ErrorCode = %q, want empty", run.ErrorCode)
	}
}

func TestActivity_FinishFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantKind any
	}{
		{"classified", core.Fail(core.InvalidDelimiter, "mismatch", map[string]any{"detected": ","}), "FILE006", "InvalidDelimiter"},
		{"unclassified", errors.New("connection refused"), "SYS001", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewMemRecorder()
			a, err := Begin(context.Background(), rec, Start{Activity: ActivityValidations})
			if err != nil {
				t.Fatal(err)
			}
			if got := a.Finish(context.Background(), tt.err, ""); !errors.Is(got, tt.err) {
				t.Errorf("Finish returned %v, want the stage error", got)
			}

			run := rec.Runs("")[0]
			if run.End.Status != StatusFailed {
				t.Errorf("Status = %q", run.End.Status)
			}
			if run.ErrorCode != tt.wantCode {
				t.Errorf("ErrorCode = %q, want %q", run.ErrorCode, tt.wantCode)
			}
			if run.End.Details["failure_kind"] != tt.wantKind {
				t.Errorf("failure_kind = %v, want %v", run.End.Details["failure_kind"], tt.wantKind)
			}
		})
	}
}

func TestMemRecorder_UnknownRun(t *testing.T) {
	rec := NewMemRecorder()
	if err := rec.End(context.Background(), 7, End{Status: StatusSuccess}); err == nil {
		t.Error("expected error for unknown run")
	}
}

type endFailingRecorder struct {
	*MemRecorder
}

func (endFailingRecorder) End(context.Context, int64, End) error {
	return errors.New("connection reset by peer")
}

func TestActivity_FinishRecordFailureLogged(t *testing.T) {
	runLog := logging.NewRunLog("inv-3", time.Now(), "info")
	ctx := runLog.Attach(context.Background())
	rec := endFailingRecorder{NewMemRecorder()}

	a, err := Begin(ctx, rec, Start{Activity: ActivityRouting})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Finish(ctx, nil, "archive/a.csv"); err == nil {
		t.Fatal("expected the recording failure")
	}
	if !strings.Contains(string(runLog.Bytes()), "record activity end failed") {
		t.Errorf("run log = %q, want the recording failure", runLog.Bytes())
	}
}
