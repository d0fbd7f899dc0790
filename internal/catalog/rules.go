package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	DefaultDelimiter    = ","
	DefaultHeaderRow    = 1
	DefaultDataStartRow = 2
)

// Count conditions.
const (
	ConditionSummaryCount = "summary_count"
	ConditionHeaderCount  = "header_count"
)

// Fill methods.
const (
	FillForward  = "forward_fill"
	FillBackward = "backward_fill"
	FillConstant = "constant"
)

// Rules are the parsing and content rules of a pattern.
type Rules struct {
	Delimiter string
	// HeaderRow is the 1-based header line; nil means the file has no
	// header and columns are named by position.
	HeaderRow     *int
	DataStartRow  int
	SkipEmptyRows bool
	MetadataKey   string
	Count         *CountRule
	Fill          []FillRule
	RequireUTF8   bool
}

// CountRule declares record count validation.
type CountRule struct {
	Condition string `json:"condition"`
	Source    string `json:"source"`
}

// FillRule fills missing values of one column.
type FillRule struct {
	Column string  `json:"column"`
	Method string  `json:"method"`
	Value  *string `json:"value"`
}

// DefaultRules returns the rules used when a pattern declares none.
func DefaultRules() *Rules {
	h := DefaultHeaderRow
	return &Rules{Delimiter: DefaultDelimiter, HeaderRow: &h, DataStartRow: DefaultDataStartRow}
}

// OrDefault returns r, or the defaults when r is nil.
func (r *Rules) OrDefault() *Rules {
	if r == nil {
		return DefaultRules()
	}
	return r
}

// SkipLines is how many leading lines precede the table: the lines before
// the header row, or before the data start row when there is no header.
func (r *Rules) SkipLines() int {
	if r.HeaderRow != nil {
		return max(*r.HeaderRow-1, 0)
	}
	return max(r.DataStartRow-1, 0)
}

// SplitFile reports whether output may be one part of a larger delivery.
func (r *Rules) SplitFile() bool {
	return r != nil && r.Count != nil && r.Count.Condition == ConditionSummaryCount
}

// rawRules mirrors the JSON stored with a pattern. Both the legacy keys
// (metadata, validate_count, fill_missing_values) and the structured ones
// are accepted.
type rawRules struct {
	Delimiter     *string         `json:"delimiter"`
	HeaderRow     json.RawMessage `json:"header_row"`
	DataStartRow  *int            `json:"data_start_row"`
	SkipEmptyRows bool            `json:"skip_empty_rows"`

	Metadata            string `json:"metadata"`
	MetadataScenarioKey string `json:"metadata_scenario_key"`

	ValidateCount   bool       `json:"validate_count"`
	Condition       string     `json:"condition"`
	CountValidation *CountRule `json:"count_validation"`

	FillMissingValues []FillRule `json:"fill_missing_values"`
	FillRules         []FillRule `json:"fill_rules"`

	RequireUTF8 bool `json:"require_utf8"`
}

// ParseRules decodes the JSON rules of a pattern. Single-quoted JSON, as
// written by hand into the catalog table, is accepted. Empty input yields
// nil rules.
func ParseRules(data string) (*Rules, error) {
	data = strings.TrimSpace(data)
	if data == "" || data == "null" || data == "{}" {
		return nil, nil
	}
	if !strings.Contains(data, `"`) {
		data = strings.ReplaceAll(data, "'", `"`)
	}

	var raw rawRules
	dec := json.NewDecoder(strings.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	r := DefaultRules()
	if raw.Delimiter != nil && *raw.Delimiter != "" {
		r.Delimiter = *raw.Delimiter
	}
	if raw.DataStartRow != nil {
		r.DataStartRow = *raw.DataStartRow
	}
	switch {
	case len(raw.HeaderRow) == 0:
	case bytes.Equal(raw.HeaderRow, []byte("null")):
		r.HeaderRow = nil
	default:
		var h int
		if err := json.Unmarshal(raw.HeaderRow, &h); err != nil {
			return nil, fmt.Errorf("parse rules: header_row: %w", err)
		}
		r.HeaderRow = &h
	}
	r.SkipEmptyRows = raw.SkipEmptyRows
	r.RequireUTF8 = raw.RequireUTF8

	r.MetadataKey = raw.MetadataScenarioKey
	if r.MetadataKey == "" {
		r.MetadataKey = raw.Metadata
	}

	switch {
	case raw.CountValidation != nil:
		r.Count = raw.CountValidation
	case raw.ValidateCount:
		r.Count = &CountRule{Condition: raw.Condition}
	}
	if r.Count != nil {
		if r.Count.Condition == "" {
			r.Count.Condition = ConditionSummaryCount
		}
		if r.Count.Source == "" {
			r.Count.Source = "metadata"
		}
	}

	r.Fill = append(raw.FillMissingValues, raw.FillRules...)

	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	return r, nil
}

func (r *Rules) validate() error {
	if len([]rune(r.Delimiter)) != 1 {
		return fmt.Errorf("delimiter %q must be a single character", r.Delimiter)
	}
	if r.HeaderRow != nil && *r.HeaderRow < 1 {
		return fmt.Errorf("header_row %d must be >= 1", *r.HeaderRow)
	}
	if r.HeaderRow == nil && r.DataStartRow < 1 {
		return fmt.Errorf("data_start_row %d must be >= 1", r.DataStartRow)
	}
	return nil
}

// MarshalJSON encodes the rules with the structured keys ParseRules reads.
func (r *Rules) MarshalJSON() ([]byte, error) {
	out := struct {
		Delimiter           string     `json:"delimiter"`
		HeaderRow           *int       `json:"header_row"`
		DataStartRow        int        `json:"data_start_row"`
		SkipEmptyRows       bool       `json:"skip_empty_rows,omitempty"`
		MetadataScenarioKey string     `json:"metadata_scenario_key,omitempty"`
		CountValidation     *CountRule `json:"count_validation,omitempty"`
		FillRules           []FillRule `json:"fill_rules,omitempty"`
		RequireUTF8         bool       `json:"require_utf8,omitempty"`
	}{
		Delimiter:           r.Delimiter,
		HeaderRow:           r.HeaderRow,
		DataStartRow:        r.DataStartRow,
		SkipEmptyRows:       r.SkipEmptyRows,
		MetadataScenarioKey: r.MetadataKey,
		CountValidation:     r.Count,
		FillRules:           r.Fill,
		RequireUTF8:         r.RequireUTF8,
	}
	return json.Marshal(out)
}
