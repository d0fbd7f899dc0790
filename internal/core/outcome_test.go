package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantPassed bool
		wantReject bool
		wantKind   FailureKind
	}{
		{"nil passes", nil, true, false, ""},
		{"classified rejects", Fail(EmptyFile, "size 0", nil), false, true, EmptyFile},
		{"wrapped classified rejects", fmt.Errorf("member a.csv: %w", Fail(CorruptFile, "", nil)), false, true, CorruptFile},
		{"unclassified stays in place", errors.New("connection refused"), false, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OutcomeOf(tt.err)
			if got.Passed != tt.wantPassed {
				t.Errorf("Passed = %v, want %v", got.Passed, tt.wantPassed)
			}
			if got.RejectFile != tt.wantReject {
				t.Errorf("RejectFile = %v, want %v", got.RejectFile, tt.wantReject)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", got.Kind, tt.wantKind)
			}
		})
	}
}

func TestFailure_WithCopiesDetails(t *testing.T) {
	base := Fail(InvalidDelimiter, "mismatch", map[string]any{"expected": ";"})
	derived := base.With("detected", ",")

	if _, ok := base.Details["detected"]; ok {
		t.Error("With mutated the original failure")
	}
	if derived.Details["expected"] != ";" || derived.Details["detected"] != "," {
		t.Errorf("derived details = %v", derived.Details)
	}
}
