package core

import (
	"testing"
	"time"
)

func isPGP(ext string) bool { return ext == "pgp" || ext == "gpg" }

func TestParseSourceKey(t *testing.T) {
	tests := []struct {
		name           string
		key            string
		wantSource     string
		wantLogical    string
		wantEncryption string
		wantKind       PayloadKind
		wantErr        bool
	}{
		{
			name:        "plain csv",
			key:         "20240131120000123456/acme/orders_20240131.csv",
			wantSource:  "acme",
			wantLogical: "orders_20240131.csv",
			wantKind:    KindCSV,
		},
		{
			name:           "encrypted zip",
			key:            "20240131120000123456/acme/bundle.zip.pgp",
			wantSource:     "acme",
			wantLogical:    "bundle.zip",
			wantEncryption: "pgp",
			wantKind:       KindZIP,
		},
		{
			name:        "unknown extension keeps empty kind",
			key:         "20240131120000/acme/readme.txt",
			wantSource:  "acme",
			wantLogical: "readme.txt",
		},
		{
			name:    "too few segments",
			key:     "acme/orders.csv",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSourceKey(tt.key, 10, OriginSFTP, isPGP)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.SourceName != tt.wantSource {
				t.Errorf("SourceName = %q, want %q", got.SourceName, tt.wantSource)
			}
			if got.LogicalName != tt.wantLogical {
				t.Errorf("LogicalName = %q, want %q", got.LogicalName, tt.wantLogical)
			}
			if got.Encryption != tt.wantEncryption {
				t.Errorf("Encryption = %q, want %q", got.Encryption, tt.wantEncryption)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", got.Kind, tt.wantKind)
			}
		})
	}
}

func TestHasExtension(t *testing.T) {
	tests := map[string]bool{
		"20240131/acme/orders.csv": true,
		"20240131/acme/":           false,
		"20240131/acme/README":     false,
	}
	for key, want := range tests {
		if got := HasExtension(key); got != want {
			t.Errorf("HasExtension(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestIngestionTime(t *testing.T) {
	f := SourceFile{Timestamp: "20240131120501123456"}
	got, err := f.IngestionTime()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 1, 31, 12, 5, 1, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("IngestionTime = %v, want %v", got, want)
	}

	if _, err := (SourceFile{Timestamp: "2024"}).IngestionTime(); err == nil {
		t.Error("expected error for short timestamp")
	}
}

func TestKindRegistry(t *testing.T) {
	reg := NewKindRegistry[string]()
	reg.Register(KindCSV, "csv-handler")
	reg.Register(KindZIP, "zip-handler")

	if h, ok := reg.Get(KindCSV); !ok || h != "csv-handler" {
		t.Errorf("Get(csv) = %q, %v", h, ok)
	}
	if _, ok := reg.Get(KindXLS); ok {
		t.Error("Get(xls) found an unregistered kind")
	}
	if kinds := reg.Kinds(); len(kinds) != 2 || kinds[0] != KindCSV {
		t.Errorf("Kinds() = %v", kinds)
	}

	defer func() {
		if recover() == nil {
			t.Error("duplicate Register did not panic")
		}
	}()
	reg.Register(KindCSV, "again")
}
