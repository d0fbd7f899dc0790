package core

import (
	"errors"
	"fmt"
)

// FailureKind tags a classified validation failure.
type FailureKind string

const (
	// Naming and structural failures.
	InvalidFileName    FailureKind = "InvalidFileName"
	InvalidZipFileName FailureKind = "InvalidZipFileName"
	EmptyFile          FailureKind = "EmptyFile"
	CorruptFile        FailureKind = "CorruptFile"
	InvalidCompression FailureKind = "InvalidCompression"
	InvalidDelimiter   FailureKind = "InvalidDelimiter"
	InvalidEncoding    FailureKind = "InvalidEncoding"

	// Content and configuration mismatches.
	ConfigMismatch          FailureKind = "ConfigMismatch"
	InvalidSummaryCount     FailureKind = "InvalidSummaryCount"
	InvalidHeaderCount      FailureKind = "InvalidHeaderCount"
	InvalidCountCondition   FailureKind = "InvalidCountCondition"
	NoValidMembersInArchive FailureKind = "NoValidMembersInArchive"
)

// Failure is a classified validation failure. Returning one from a stage
// routes the original file to its reject location.
type Failure struct {
	Kind    FailureKind
	Message string
	Details map[string]any
}

// Fail builds a classified failure.
func Fail(kind FailureKind, message string, details map[string]any) *Failure {
	return &Failure{Kind: kind, Message: message, Details: details}
}

// Failf builds a classified failure with a formatted message.
func Failf(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// With returns a copy of f carrying an extra detail.
func (f *Failure) With(key string, value any) *Failure {
	details := make(map[string]any, len(f.Details)+1)
	for k, v := range f.Details {
		details[k] = v
	}
	details[key] = value
	return &Failure{Kind: f.Kind, Message: f.Message, Details: details}
}

// AsFailure reports whether err is, or wraps, a classified failure.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Outcome is the routing decision derived from a stage result.
type Outcome struct {
	Passed     bool
	Kind       FailureKind
	RejectFile bool
	Details    map[string]any
	Err        error
}

// OutcomeOf converts a stage error into an Outcome. A nil error passes, a
// classified failure is rejected, anything else is left for retry.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return Outcome{Passed: true}
	}
	if f, ok := AsFailure(err); ok {
		return Outcome{Kind: f.Kind, RejectFile: true, Details: f.Details, Err: err}
	}
	return Outcome{Err: err}
}

// Disposition is the terminal state a source file reaches in one invocation.
type Disposition string

const (
	Archived    Disposition = "archived"
	Rejected    Disposition = "rejected"
	Quarantined Disposition = "quarantined"
	LeftInPlace Disposition = "left_in_place"
	Skipped     Disposition = "skipped"
)
