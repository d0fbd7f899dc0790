package tracker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/landingzone/internal/logging"
	"github.com/JonMunkholm/landingzone/internal/storage"
)

func TestLoad_CreatesMissingLedger(t *testing.T) {
	store := storage.NewMemStore()
	ref := storage.Ref{Bucket: "state", Key: "tracker/sftp/processed_files.txt"}

	l, err := Load(context.Background(), store, ref)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if l.Len() != 0 {
		t.Errorf("Len = %d, want 0", l.Len())
	}
	if _, ok := store.Bytes(ref.Bucket, ref.Key); !ok {
		t.Error("ledger object was not created")
	}
}

func TestLedger_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	ref := storage.Ref{Bucket: "state", Key: "tracker/sftp/processed_files.txt"}
	store.PutBytes(ref.Bucket, ref.Key, []byte("20240101/acme/a.csv\n\n20240101/acme/a.csv\n"), nil)

	l, err := Load(ctx, store, ref)
	if err != nil {
		t.Fatal(err)
	}
	if l.Len() != 1 || !l.Contains("20240101/acme/a.csv") {
		t.Fatalf("keys = %v", l.Keys())
	}

	l.Add("20240102/acme/b.csv")
	l.Add("20240102/acme/b.csv")
	if err := l.Persist(ctx); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	data, _ := store.Bytes(ref.Bucket, ref.Key)
	want := "20240101/acme/a.csv\n20240102/acme/b.csv\n"
	if string(data) != want {
		t.Errorf("ledger = %q, want %q", data, want)
	}

	reloaded, err := Load(ctx, store, ref)
	if err != nil {
		t.Fatal(err)
	}
	if !reloaded.Contains("20240102/acme/b.csv") {
		t.Error("added key lost after reload")
	}
}

func TestLedger_PersistUnchangedIsNoop(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	ref := storage.Ref{Bucket: "state", Key: "ledger.txt"}
	store.PutBytes(ref.Bucket, ref.Key, []byte("x\n"), nil)

	l, err := Load(ctx, store, ref)
	if err != nil {
		t.Fatal(err)
	}
	store.PutBytes(ref.Bucket, ref.Key, []byte("changed elsewhere\n"), nil)
	if err := l.Persist(ctx); err != nil {
		t.Fatal(err)
	}
	if data, _ := store.Bytes(ref.Bucket, ref.Key); string(data) != "changed elsewhere\n" {
		t.Errorf("unchanged ledger was rewritten: %q", data)
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	ref := storage.Ref{Bucket: "state", Key: "tracker/sftp/processed_files.txt"}
	store.PutBytes(ref.Bucket, ref.Key, []byte("a\nb\n"), nil)

	n, err := Reset(ctx, store, ref)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if n != 2 {
		t.Errorf("dropped = %d, want 2", n)
	}
	l, err := Load(ctx, store, ref)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if l.Len() != 0 {
		t.Errorf("Len = %d after reset, want 0", l.Len())
	}
}

func TestLoad_LogsToInvocationLog(t *testing.T) {
	runLog := logging.NewRunLog("inv-7", time.Now(), "info")
	ctx := runLog.Attach(context.Background())
	ref := storage.Ref{Bucket: "state", Key: "tracker/sftp/processed_files.txt"}

	if _, err := Load(ctx, storage.NewMemStore(), ref); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.Contains(string(runLog.Bytes()), "tracker ledger not found") {
		t.Errorf("run log = %q, want the ledger creation record", runLog.Bytes())
	}
}
