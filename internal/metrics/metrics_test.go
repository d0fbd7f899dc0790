package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/JonMunkholm/landingzone/internal/core"
)

func TestMetrics_Record(t *testing.T) {
	m := New()
	m.RecordFile(core.OriginSFTP, core.KindCSV, core.Archived, time.Second)
	m.RecordFile(core.OriginSFTP, core.KindCSV, core.Archived, time.Second)
	m.RecordFile(core.OriginManualUpload, core.KindZIP, core.Rejected, time.Second)
	m.RecordExcludedMember()
	m.RecordRows("acme", 42)
	m.RecordRun(errors.New("boom"))

	if got := testutil.ToFloat64(m.FilesTotal.WithLabelValues("sftp", "archived")); got != 2 {
		t.Errorf("archived = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.MembersExcluded); got != 1 {
		t.Errorf("excluded = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RowsWritten.WithLabelValues("acme")); got != 42 {
		t.Errorf("rows = %v, want 42", got)
	}
	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("runs = %v, want 1", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordFile(core.OriginSFTP, core.KindCSV, core.Archived, time.Second)
	m.RecordExcludedMember()
	m.RecordRows("acme", 1)
	m.RecordRun(nil)
	if m.Registry() != nil {
		t.Error("nil metrics should have no registry")
	}
}
