// Package tabular loads delimited and workbook payloads into an in-memory
// table of nullable strings. Empty cells are null.
package tabular

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Table is a named-column table. Every row has len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]sql.NullString
	// Raw holds the payload's records, preamble included, for metadata
	// extraction. Blank delimited lines are not kept.
	Raw [][]string
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// SetConst sets column name to v in every row, appending the column when
// it does not exist.
func (t *Table) SetConst(name string, v sql.NullString) {
	i := t.Index(name)
	if i < 0 {
		t.Columns = append(t.Columns, name)
		for r := range t.Rows {
			t.Rows[r] = append(t.Rows[r], v)
		}
		return
	}
	for r := range t.Rows {
		t.Rows[r][i] = v
	}
}

// RenameColumns replaces every column name with fn(name).
func (t *Table) RenameColumns(fn func(string) string) {
	for i, c := range t.Columns {
		t.Columns[i] = fn(c)
	}
}

// DropEmptyRows removes rows whose cells are all null.
func (t *Table) DropEmptyRows() {
	kept := t.Rows[:0]
	for _, row := range t.Rows {
		for _, c := range row {
			if c.Valid {
				kept = append(kept, row)
				break
			}
		}
	}
	t.Rows = kept
}

// Text returns a cell value; null and out of range cells are empty.
func Text(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return v.String
}

// Value wraps s as a cell, empty strings as null.
func Value(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// HeaderNames turns a raw header record into unique column names. Blank
// names become "Unnamed: i" and repeats get a ".n" suffix.
func HeaderNames(header []string, width int) []string {
	names := make([]string, width)
	used := make(map[string]bool, width)
	suffix := make(map[string]int)
	for i := 0; i < width; i++ {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i])
		}
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if used[name] {
			base := name
			for used[name] {
				suffix[base]++
				name = fmt.Sprintf("%s.%d", base, suffix[base])
			}
		}
		used[name] = true
		names[i] = name
	}
	return names
}

// PositionalNames returns prefix+i names, numbered from start.
func PositionalNames(prefix string, start, width int) []string {
	names := make([]string, width)
	for i := range names {
		names[i] = prefix + strconv.Itoa(start+i)
	}
	return names
}

func toRow(record []string, width int) []sql.NullString {
	row := make([]sql.NullString, width)
	for i := 0; i < width && i < len(record); i++ {
		row[i] = Value(record[i])
	}
	return row
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
