package transform

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/JonMunkholm/landingzone/internal/core"
	"github.com/JonMunkholm/landingzone/internal/tabular"
)

// Audit column names appended to every output.
const (
	ColIngestionTime = "da_ingestion_time"
	ColSrcFilename   = "da_src_filename"
	ColSrcZip        = "da_src_zip_filename"
	ColFilename      = "da_filename"
)

var (
	leadingJunk  = regexp.MustCompile(`^[^A-Za-z0-9]+`)
	trailingJunk = regexp.MustCompile(`[^A-Za-z0-9]+$`)
	innerJunk    = regexp.MustCompile(`[^A-Za-z0-9]+`)
)

// NormalizeColumn turns a header into a lower_snake identifier.
func NormalizeColumn(name string) string {
	name = leadingJunk.ReplaceAllString(name, "")
	name = trailingJunk.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, "'", "")
	name = innerJunk.ReplaceAllString(name, "_")
	return strings.ToLower(name)
}

// AuditColumns are the lineage values stamped on every row.
type AuditColumns struct {
	IngestionTime string
	SrcFilename   string
	SrcZip        string
	Filename      string
}

// NewAuditColumns derives lineage values. payloadName is the name of the
// loaded payload (the member name inside an archive), zipName the
// containing archive or empty, and outputKey the Parquet object key.
func NewAuditColumns(file core.SourceFile, payloadName, zipName, outputKey string) AuditColumns {
	ts := file.Timestamp
	if t, err := file.IngestionTime(); err == nil {
		ts = t.Format(core.IngestionTimeLayout)
	}
	return AuditColumns{
		IngestionTime: ts,
		SrcFilename:   payloadName,
		SrcZip:        zipName,
		Filename:      outputKey,
	}
}

// Apply appends the audit columns to t.
func (a AuditColumns) Apply(t *tabular.Table) {
	t.SetConst(ColIngestionTime, tabular.Value(a.IngestionTime))
	t.SetConst(ColSrcFilename, tabular.Value(a.SrcFilename))
	t.SetConst(ColSrcZip, tabular.Value(a.SrcZip))
	t.SetConst(ColFilename, tabular.Value(a.Filename))
}

// CheckColumns fails when a final column name is empty or repeated, which
// happens when distinct headers normalise to the same identifier or a
// source column shadows an audit column.
func CheckColumns(t *tabular.Table, fileName string) error {
	seen := make(map[string]int, len(t.Columns))
	var empty []int
	var dupes []string
	for i, c := range t.Columns {
		if c == "" {
			empty = append(empty, i)
			continue
		}
		seen[c]++
		if seen[c] == 2 {
			dupes = append(dupes, c)
		}
	}
	if len(empty) == 0 && len(dupes) == 0 {
		return nil
	}
	return core.Fail(core.CorruptFile,
		fmt.Sprintf("%s has empty or duplicate column names after normalisation", fileName),
		map[string]any{"file_name": fileName, "duplicate_columns": dupes, "empty_columns": empty})
}
