package tabular

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/JonMunkholm/landingzone/internal/core"
)

// CSVOptions control how a delimited payload is loaded.
type CSVOptions struct {
	Delimiter string
	// HeaderRow is the 1-based line of the header; nil means no header.
	HeaderRow *int
	// DataStartRow is the 1-based first data line when there is no header.
	DataStartRow int
	SkipEmptyRows bool
}

// ReadCSV loads a delimited payload. sample is the leading bytes of the
// payload and decides the text encoding.
//
// Lines before the header (or before the data start row) are skipped by
// physical line number. Without a header, columns are column1..N. Data
// rows wider than the header are a CorruptFile failure.
func ReadCSV(r io.Reader, sample []byte, opts CSVOptions) (*Table, error) {
	delim, err := delimiterRune(opts.Delimiter)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(core.OpenText(r, sample))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	skip := max(opts.DataStartRow-1, 0)
	if opts.HeaderRow != nil {
		skip = max(*opts.HeaderRow-1, 0)
	}

	t := &Table{}
	var (
		header []string
		body   [][]string
	)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.Failf(core.CorruptFile, "parse delimited payload: %v", err)
		}
		line, _ := cr.FieldPos(0)
		if isBlank(record) && len(record) <= 1 {
			continue
		}
		t.Raw = append(t.Raw, record)
		if line <= skip {
			continue
		}
		if opts.HeaderRow != nil && header == nil {
			header = record
			continue
		}
		body = append(body, record)
	}

	width := len(header)
	if opts.HeaderRow == nil {
		for _, rec := range body {
			width = max(width, len(rec))
		}
		t.Columns = PositionalNames("column", 1, width)
	} else {
		t.Columns = HeaderNames(header, width)
	}

	t.Rows = make([][]sql.NullString, 0, len(body))
	for i, rec := range body {
		if len(rec) > width {
			return nil, core.Fail(core.CorruptFile,
				fmt.Sprintf("expected %d fields, saw %d in data row %d", width, len(rec), i+1),
				map[string]any{"row": i + 1, "expected_fields": width, "fields": len(rec)})
		}
		t.Rows = append(t.Rows, toRow(rec, width))
	}
	if opts.SkipEmptyRows {
		t.DropEmptyRows()
	}
	return t, nil
}

func delimiterRune(d string) (rune, error) {
	if d == "" {
		return ',', nil
	}
	r, size := utf8.DecodeRuneInString(d)
	if size != len(d) || r == utf8.RuneError {
		return 0, fmt.Errorf("delimiter %q must be a single character", d)
	}
	return r, nil
}
