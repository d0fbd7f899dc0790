package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario types.
const (
	ScenarioSingleRow    = "single_row"
	ScenarioMultipleRows = "multiple_rows"
)

// Extraction types of a multiple-rows spec.
const (
	ExtractExpectedCount = "expected_count"
	ExtractSuffix        = "suffix"
)

// Scenario declares where header or footer metadata lives in the raw rows
// of a file.
type Scenario struct {
	Type         string        `yaml:"type"`
	SingleRow    *SingleRow    `yaml:"single_row"`
	MultipleRows *MultipleRows `yaml:"multiple_rows"`
}

// SingleRow maps columns of one fixed row to metadata fields.
type SingleRow struct {
	Row     int            `yaml:"row"`
	Mapping map[string]int `yaml:"mapping"`
	Include []string       `yaml:"include_in_dataframe"`
}

// MultipleRows declares rows that must each carry their keywords.
type MultipleRows struct {
	Rows []RowSpec `yaml:"rows"`
}

// RowSpec is one metadata row of a multiple-rows scenario.
type RowSpec struct {
	Row              int      `yaml:"row"`
	ExpectedKeywords []string `yaml:"expected_keywords"`
	Include          string   `yaml:"include_in_dataframe"`
	ExtractionType   string   `yaml:"extraction_type"`
}

// Scenarios maps scenario keys to scenarios.
type Scenarios map[string]Scenario

// LoadScenarios reads a YAML (or JSON) scenario file. An empty path yields
// no scenarios.
func LoadScenarios(path string) (Scenarios, error) {
	if path == "" {
		return Scenarios{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return ParseScenarios(data)
}

// ParseScenarios decodes and checks scenario definitions.
func ParseScenarios(data []byte) (Scenarios, error) {
	var s Scenarios
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario file: %w", err)
	}
	if s == nil {
		s = Scenarios{}
	}
	for key, sc := range s {
		if err := sc.validate(); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", key, err)
		}
	}
	return s, nil
}

// Lookup returns the scenario for key.
func (s Scenarios) Lookup(key string) (Scenario, error) {
	sc, ok := s[key]
	if !ok {
		return Scenario{}, fmt.Errorf("scenario %q is not configured", key)
	}
	return sc, nil
}

func (sc Scenario) validate() error {
	switch sc.Type {
	case ScenarioSingleRow:
		if sc.SingleRow == nil {
			return fmt.Errorf("type %s without single_row block", sc.Type)
		}
		if sc.SingleRow.Row < 1 {
			return fmt.Errorf("single_row.row %d must be >= 1", sc.SingleRow.Row)
		}
	case ScenarioMultipleRows:
		if sc.MultipleRows == nil || len(sc.MultipleRows.Rows) == 0 {
			return fmt.Errorf("type %s without rows", sc.Type)
		}
		for i, r := range sc.MultipleRows.Rows {
			if r.Row < 1 {
				return fmt.Errorf("multiple_rows.rows[%d].row %d must be >= 1", i, r.Row)
			}
			if len(r.ExpectedKeywords) == 0 {
				return fmt.Errorf("multiple_rows.rows[%d] declares no expected_keywords", i)
			}
		}
	default:
		return fmt.Errorf("unknown type %q", sc.Type)
	}
	return nil
}
