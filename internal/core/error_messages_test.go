package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "nil error returns empty",
			err:      nil,
			wantCode: "",
		},
		{
			name:     "classified failure maps by kind",
			err:      Fail(InvalidDelimiter, "detected ','", nil),
			wantCode: "FILE006",
		},
		{
			name:     "wrapped classified failure maps by kind",
			err:      fmt.Errorf("validate: %w", Fail(InvalidSummaryCount, "", nil)),
			wantCode: "CNT002",
		},
		{
			name:     "connection refused maps correctly",
			err:      errors.New("dial tcp 10.0.0.1:5432: connection refused"),
			wantCode: "SYS001",
		},
		{
			name:     "deadline maps to timeout",
			err:      errors.New("context deadline exceeded"),
			wantCode: "SYS003",
		},
		{
			name:     "decryption failure",
			err:      errors.New("pgp decrypt: openpgp: incorrect key"),
			wantCode: "SYS020",
		},
		{
			name:     "case insensitive matching",
			err:      errors.New("CONNECTION RESET by peer"),
			wantCode: "SYS002",
		},
		{
			name:     "unknown error returns default",
			err:      errors.New("some random internal error"),
			wantCode: "SYS000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestCodeFor_EveryKindHasCode(t *testing.T) {
	kinds := []FailureKind{
		InvalidFileName, InvalidZipFileName, EmptyFile, CorruptFile,
		InvalidCompression, InvalidDelimiter, InvalidEncoding,
		ConfigMismatch, InvalidSummaryCount, InvalidHeaderCount,
		InvalidCountCondition, NoValidMembersInArchive,
	}

	seen := make(map[string]FailureKind)
	for _, k := range kinds {
		code := CodeFor(k)
		if code == defaultMessage.Code {
			t.Errorf("CodeFor(%s) fell back to default", k)
		}
		if other, dup := seen[code]; dup {
			t.Errorf("code %s shared by %s and %s", code, k, other)
		}
		seen[code] = k
	}
}
