package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/JonMunkholm/landingzone/internal/catalog"
	"github.com/JonMunkholm/landingzone/internal/core"
	"github.com/JonMunkholm/landingzone/internal/tabular"
)

// ExpectedCountKey is the metadata field holding the declared row count.
const ExpectedCountKey = "expected_count"

var firstNumber = regexp.MustCompile(`\d+`)

// Metadata holds values lifted from a payload's preamble rows.
type Metadata map[string]string

// ExtractMetadata reads the rows named by sc from raw, the payload's
// records before header handling. A row or column the payload does not
// have, or a missing expected keyword, is a ConfigMismatch.
func ExtractMetadata(raw [][]string, sc catalog.Scenario, fileName string) (Metadata, error) {
	switch sc.Type {
	case catalog.ScenarioSingleRow:
		return singleRow(raw, sc.SingleRow, fileName)
	case catalog.ScenarioMultipleRows:
		return multipleRows(raw, sc.MultipleRows, fileName)
	}
	return nil, fmt.Errorf("scenario type %q is not supported", sc.Type)
}

func singleRow(raw [][]string, cfg *catalog.SingleRow, fileName string) (Metadata, error) {
	idx := cfg.Row - 1
	if idx < 0 || idx >= len(raw) {
		return nil, core.Fail(core.ConfigMismatch,
			fmt.Sprintf("metadata row %d not present in %s", cfg.Row, fileName),
			map[string]any{"file_name": fileName, "row": cfg.Row})
	}
	row := raw[idx]

	md := make(Metadata, len(cfg.Mapping))
	for key, col := range cfg.Mapping {
		if col < 0 || col >= len(row) {
			return nil, core.Fail(core.ConfigMismatch,
				fmt.Sprintf("metadata column %d for %q not present in row %d of %s", col, key, cfg.Row, fileName),
				map[string]any{"file_name": fileName, "row": cfg.Row, "column": col})
		}
		md[key] = strings.TrimSpace(row[col])
	}
	return md, nil
}

func multipleRows(raw [][]string, cfg *catalog.MultipleRows, fileName string) (Metadata, error) {
	md := Metadata{}
	var missing []string
	for _, spec := range cfg.Rows {
		idx := spec.Row - 1
		if idx < 0 || idx >= len(raw) {
			return nil, core.Fail(core.ConfigMismatch,
				fmt.Sprintf("metadata row %d not present in %s", spec.Row, fileName),
				map[string]any{"file_name": fileName, "row": spec.Row})
		}
		text := joinCells(raw[idx])
		lower := strings.ToLower(text)

		for _, kw := range spec.ExpectedKeywords {
			kw = strings.ToLower(kw)
			if !strings.Contains(lower, kw) {
				missing = append(missing, kw)
				continue
			}
			key := spec.Include
			if key == "" {
				key = strings.ReplaceAll(kw, " ", "_")
			}
			switch {
			case spec.ExtractionType == catalog.ExtractExpectedCount:
				if n := firstNumber.FindString(text); n != "" {
					md[ExpectedCountKey] = n
				}
			case spec.ExtractionType == catalog.ExtractSuffix || kw == "as of month":
				md[key] = afterLastColon(text)
			}
		}
	}
	if len(missing) > 0 {
		return nil, core.Fail(core.ConfigMismatch,
			fmt.Sprintf("expected keywords %v not found in %s", missing, fileName),
			map[string]any{"file_name": fileName, "missing_keywords": missing})
	}
	return md, nil
}

// ApplyMetadata adds the scenario's included metadata keys to t as constant
// columns.
func ApplyMetadata(t *tabular.Table, md Metadata, sc catalog.Scenario) {
	var keys []string
	switch sc.Type {
	case catalog.ScenarioSingleRow:
		keys = sc.SingleRow.Include
	case catalog.ScenarioMultipleRows:
		for _, spec := range sc.MultipleRows.Rows {
			if spec.Include != "" {
				keys = append(keys, spec.Include)
			}
		}
	}
	for _, k := range keys {
		if v, ok := md[k]; ok {
			t.SetConst(k, tabular.Value(v))
		}
	}
}

// ExpectedCount parses the declared row count.
func (md Metadata) ExpectedCount() (int64, bool) {
	v, ok := md[ExpectedCountKey]
	if !ok {
		return 0, false
	}
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		if f, ferr := strconv.ParseFloat(v, 64); ferr == nil {
			return int64(f), true
		}
		return 0, false
	}
	return n, true
}

func joinCells(row []string) string {
	parts := make([]string, 0, len(row))
	for _, c := range row {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " ")
}

func afterLastColon(s string) string {
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
