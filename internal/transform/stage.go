// Package transform turns a validated payload into a Parquet artifact in
// the output location and announces it downstream.
//
// The steps run in a fixed order: load, metadata, count validation, fill
// rules, audit columns, column normalisation, column check, write, notify.
// A classified failure at any step rejects the source file.
package transform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/landingzone/internal/audit"
	"github.com/JonMunkholm/landingzone/internal/catalog"
	"github.com/JonMunkholm/landingzone/internal/core"
	"github.com/JonMunkholm/landingzone/internal/logging"
	"github.com/JonMunkholm/landingzone/internal/metrics"
	"github.com/JonMunkholm/landingzone/internal/notify"
	"github.com/JonMunkholm/landingzone/internal/storage"
	"github.com/JonMunkholm/landingzone/internal/tabular"
)

// Job is one payload to transform.
type Job struct {
	File core.SourceFile
	// Name is the payload's own name: the logical file name, or the member
	// name inside an archive.
	Name    string
	ZipName string
	Path    string
	Kind    core.PayloadKind
	// Pattern is the matched pattern; for members, the member pattern.
	Pattern catalog.Pattern
	// Container is the archive pattern for members, nil otherwise.
	Container *catalog.Pattern
	Output    storage.Location
}

// Member reports whether the job is an archive member.
func (j Job) Member() bool { return j.ZipName != "" }

// Output describes the written artifact.
type Output struct {
	Ref           storage.Ref
	Name          string
	Rows          int
	Condition     string
	ExpectedCount *int64
}

// Config wires a Stage.
type Config struct {
	Store     storage.Store
	Scenarios catalog.Scenarios
	Publisher notify.Publisher
	Recorder  audit.Recorder
	// PositionalSource is the source whose rule-less workbooks are loaded
	// without a header and written without audit columns.
	PositionalSource string
	SampleSize       int64
	Metrics          *metrics.Metrics
}

// Stage runs transform jobs.
type Stage struct {
	cfg Config
}

// NewStage creates a Stage.
func NewStage(cfg Config) *Stage {
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = core.SampleSize
	}
	if cfg.Scenarios == nil {
		cfg.Scenarios = catalog.Scenarios{}
	}
	return &Stage{cfg: cfg}
}

// Run transforms one payload and publishes its notification.
func (s *Stage) Run(ctx context.Context, job Job) (Output, error) {
	out, err := s.Transform(ctx, job)
	if err != nil {
		return out, err
	}
	return out, s.Publish(ctx, job, out)
}

// Transform writes the Parquet artifact of one payload without announcing
// it. Callers that transform several payloads as one unit publish once all
// of them succeeded, and Discard the written outputs otherwise.
func (s *Stage) Transform(ctx context.Context, job Job) (Output, error) {
	activity := audit.ActivityProcessCSV
	if job.Kind.IsExcel() {
		activity = audit.ActivityProcessExcel
	}
	act, err := audit.Begin(ctx, s.cfg.Recorder, audit.Start{
		Activity:       activity,
		SourceName:     job.File.SourceName,
		SourceFileName: job.Name,
		ZipFileName:    job.ZipName,
	})
	if err != nil {
		return Output{}, fmt.Errorf("begin %s for %s: %w", activity, job.Name, err)
	}

	out, runErr := s.run(ctx, job)

	act.Set("zip_file_name", job.ZipName)
	act.Set("file_name", job.Name)
	act.Set("parquet_file_name", out.Ref.Key)
	act.Set("validation_condition", nullable(out.Condition))
	act.Set("summary_count", countFor(out, catalog.ConditionSummaryCount))
	act.Set("header_count", countFor(out, catalog.ConditionHeaderCount))
	act.Set("row_count", out.Rows)
	act.Set("is_split_file", out.Condition == catalog.ConditionSummaryCount)
	if err := act.Finish(ctx, runErr, out.Ref.Key); err != nil {
		return out, err
	}
	return out, nil
}

// Publish announces a written artifact downstream.
func (s *Stage) Publish(ctx context.Context, job Job, out Output) error {
	msg := notify.Message{
		SourceFileName:   out.Ref.Key,
		SourceFilePrefix: filePrefix(job),
		SourceName:       job.File.SourceName,
		SplitFile:        out.Condition == catalog.ConditionSummaryCount,
		SummaryCount:     countFor(out, catalog.ConditionSummaryCount),
	}
	if err := s.cfg.Publisher.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish notification for %s: %w", out.Ref.Key, err)
	}

	s.cfg.Metrics.RecordRows(job.File.SourceName, out.Rows)
	logging.WithFields(ctx, "file", job.Name, "zip", job.ZipName).
		Info("payload transformed", "output", out.Ref.String(), "rows", out.Rows)
	return nil
}

// Discard removes unpublished outputs. Missing objects are ignored.
func (s *Stage) Discard(ctx context.Context, outs ...Output) error {
	var errs []error
	for _, out := range outs {
		if out.Ref.Key == "" {
			continue
		}
		err := s.cfg.Store.Delete(ctx, out.Ref.Bucket, out.Ref.Key)
		if err != nil && !storage.IsNotFound(err) {
			errs = append(errs, fmt.Errorf("discard %s: %w", out.Ref, err))
			continue
		}
		logging.FromContext(ctx).Info("unpublished output discarded", "output", out.Ref.String())
	}
	return errors.Join(errs...)
}

func (s *Stage) run(ctx context.Context, job Job) (Output, error) {
	out := Output{Name: OutputName(job.Name, job.File.Timestamp, job.Member())}
	out.Ref = job.Output.Ref(job.File.SourceName, "current", frequency(job), out.Name)

	rules := job.Pattern.Rules
	positional := rules == nil && job.Kind.IsExcel() && job.File.SourceName == s.cfg.PositionalSource

	t, err := s.load(job, rules.OrDefault(), positional)
	if err != nil {
		return out, err
	}

	if !positional {
		if err := s.shape(t, job, rules.OrDefault(), &out); err != nil {
			return out, err
		}
		NewAuditColumns(job.File, job.Name, job.ZipName, out.Ref.Key).Apply(t)
		t.RenameColumns(NormalizeColumn)
	}
	if err := CheckColumns(t, job.Name); err != nil {
		return out, err
	}

	if err := ctx.Err(); err != nil {
		return out, err
	}
	if err := s.write(ctx, job, t, &out); err != nil {
		return out, err
	}
	return out, nil
}

// shape applies metadata, count validation and fill rules.
func (s *Stage) shape(t *tabular.Table, job Job, rules *catalog.Rules, out *Output) error {
	md := Metadata{}
	if rules.MetadataKey != "" {
		sc, err := s.cfg.Scenarios.Lookup(rules.MetadataKey)
		if err != nil {
			return err
		}
		if md, err = ExtractMetadata(t.Raw, sc, job.Name); err != nil {
			return err
		}
		ApplyMetadata(t, md, sc)
	}

	if rules.Count != nil {
		out.Condition = rules.Count.Condition
		expected, ok := md.ExpectedCount()
		if !ok {
			return core.Fail(core.ConfigMismatch,
				fmt.Sprintf("no expected count found in %s", job.Name),
				map[string]any{"file_name": job.Name, "condition": rules.Count.Condition})
		}
		out.ExpectedCount = &expected
		if err := ValidateCount(rules.Count.Condition, expected, t.Len(), job.Name); err != nil {
			return err
		}
	}

	return ApplyFills(t, rules.Fill)
}

func (s *Stage) load(job Job, rules *catalog.Rules, positional bool) (*tabular.Table, error) {
	if job.Kind.IsExcel() {
		opts := tabular.ExcelOptions{Positional: positional, SkipEmptyRows: rules.SkipEmptyRows}
		if rules.HeaderRow != nil {
			opts.HeaderRow = *rules.HeaderRow
		} else {
			opts.DataStartRow = rules.DataStartRow
		}
		return tabular.ReadExcel(job.Path, job.Kind, opts)
	}

	f, err := os.Open(job.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", job.Name, err)
	}
	defer f.Close()

	sample, err := core.ReadSample(f, s.cfg.SampleSize)
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", job.Name, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind %s: %w", job.Name, err)
	}
	return tabular.ReadCSV(f, sample, tabular.CSVOptions{
		Delimiter:     rules.Delimiter,
		HeaderRow:     rules.HeaderRow,
		DataStartRow:  rules.DataStartRow,
		SkipEmptyRows: rules.SkipEmptyRows,
	})
}

func (s *Stage) write(ctx context.Context, job Job, t *tabular.Table, out *Output) error {
	act, err := audit.Begin(ctx, s.cfg.Recorder, audit.Start{
		Activity:       audit.ActivityWrite,
		SourceName:     job.File.SourceName,
		SourceFileName: job.Name,
		ZipFileName:    job.ZipName,
	})
	if err != nil {
		return fmt.Errorf("begin write for %s: %w", job.Name, err)
	}

	data, err := EncodeParquet(t)
	if err == nil {
		err = storage.PutBytes(ctx, s.cfg.Store, out.Ref, data)
	}
	if err == nil {
		out.Rows = t.Len()
	}
	act.Set("parquet_file_name", out.Ref.Key)
	act.Set("row_count", out.Rows)
	act.Set("bytes", len(data))
	if err != nil {
		err = fmt.Errorf("write %s: %w", out.Ref, err)
	}
	return act.Finish(ctx, err, out.Ref.Key)
}

func frequency(job Job) string {
	if job.Pattern.Frequency == "" && job.Container != nil {
		return job.Container.Frequency
	}
	return job.Pattern.Frequency
}

func filePrefix(job Job) string {
	if job.Pattern.FilePrefix == "" && job.Container != nil {
		return job.Container.FilePrefix
	}
	return job.Pattern.FilePrefix
}

func countFor(out Output, condition string) *int64 {
	if out.Condition != condition {
		return nil
	}
	return out.ExpectedCount
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
