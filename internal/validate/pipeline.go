// Package validate runs ordered validation checks against a payload before
// it is transformed, and expands archives into their valid members.
//
// A check either passes with a value or returns an error. A *core.Failure
// rejects the file; any other error leaves it in place for retry. The
// pipeline stops at the first error.
package validate

import (
	"context"
	"fmt"
	"os"

	"github.com/JonMunkholm/landingzone/internal/audit"
	"github.com/JonMunkholm/landingzone/internal/catalog"
	"github.com/JonMunkholm/landingzone/internal/core"
	"github.com/JonMunkholm/landingzone/internal/logging"
	"github.com/JonMunkholm/landingzone/internal/metrics"
)

// Subject is the payload under validation.
type Subject struct {
	// Name is matched against the pattern catalog.
	Name string
	// ZipName is the containing archive for members, empty otherwise.
	ZipName    string
	SourceName string
	// Path is the plaintext working copy on local disk.
	Path string
	Size int64
	Kind core.PayloadKind
}

// Check is one named validation step.
type Check struct {
	Name string
	// When reports whether the check applies; nil means always.
	When func(s *State) bool
	Run  func(ctx context.Context, s *State) (any, error)
}

// CheckResult is the recorded result of one check.
type CheckResult struct {
	Name    string `json:"name"`
	Value   any    `json:"value"`
	Success bool   `json:"success"`
}

// Result is the outcome of a passing pipeline run.
type Result struct {
	Pattern catalog.Pattern
	Checks  []CheckResult
}

// State is shared by the checks of one run. Name checks set Pattern; later
// checks read the rules from it.
type State struct {
	Subject Subject
	Pattern catalog.Pattern

	sampleSize int64
	sample     []byte
	sampled    bool
}

// Rules returns the matched pattern's rules, or the defaults.
func (s *State) Rules() *catalog.Rules {
	return s.Pattern.Rules.OrDefault()
}

// Sample returns the leading bytes of the payload, read once.
func (s *State) Sample() ([]byte, error) {
	if s.sampled {
		return s.sample, nil
	}
	f, err := os.Open(s.Subject.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s for sampling: %w", s.Subject.Name, err)
	}
	defer f.Close()

	s.sample, err = core.ReadSample(f, s.sampleSize)
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", s.Subject.Name, err)
	}
	s.sampled = true
	return s.sample, nil
}

// Pipeline runs check chains and records each run as a validations
// activity.
type Pipeline struct {
	recorder   audit.Recorder
	sampleSize int64
	metrics    *metrics.Metrics
}

// NewPipeline creates a pipeline. A sampleSize <= 0 uses core.SampleSize.
func NewPipeline(recorder audit.Recorder, sampleSize int64, m *metrics.Metrics) *Pipeline {
	if sampleSize <= 0 {
		sampleSize = core.SampleSize
	}
	return &Pipeline{recorder: recorder, sampleSize: sampleSize, metrics: m}
}

// Run executes checks in order, stopping at the first error.
func (p *Pipeline) Run(ctx context.Context, subj Subject, checks []Check) (Result, error) {
	act, err := audit.Begin(ctx, p.recorder, audit.Start{
		Activity:       audit.ActivityValidations,
		SourceName:     subj.SourceName,
		SourceFileName: subj.Name,
		ZipFileName:    subj.ZipName,
	})
	if err != nil {
		return Result{}, fmt.Errorf("begin validations for %s: %w", subj.Name, err)
	}

	state := &State{Subject: subj, sampleSize: p.sampleSize}
	res, runErr := runChecks(ctx, state, checks)

	act.Set("activity_type", string(audit.ActivityValidations))
	act.Set("zip_file_name", subj.ZipName)
	act.Set("file_name", subj.Name)
	act.Set("validations", res.Checks)
	if runErr != nil {
		logging.WithFields(ctx, "file", subj.Name, "zip", subj.ZipName).
			Warn("validation failed", "error", runErr)
	}
	return res, act.Finish(ctx, runErr, "")
}

func runChecks(ctx context.Context, state *State, checks []Check) (Result, error) {
	res := Result{Checks: make([]CheckResult, 0, len(checks))}
	for _, c := range checks {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if c.When != nil && !c.When(state) {
			continue
		}
		v, err := c.Run(ctx, state)
		if err != nil {
			if f, ok := core.AsFailure(err); ok {
				v = f.Message
			}
			res.Checks = append(res.Checks, CheckResult{Name: c.Name, Value: v, Success: false})
			return res, fmt.Errorf("%s: %w", c.Name, err)
		}
		res.Checks = append(res.Checks, CheckResult{Name: c.Name, Value: v, Success: true})
	}
	res.Pattern = state.Pattern
	return res, nil
}
