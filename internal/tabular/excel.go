package tabular

import (
	"fmt"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/landingzone/internal/core"
)

// ExcelOptions control how the first sheet of a workbook is loaded.
type ExcelOptions struct {
	// HeaderRow is the 1-based header row; 0 loads without a header from
	// DataStartRow, naming columns column1..N.
	HeaderRow    int
	DataStartRow int
	// Positional loads the sheet without a header, naming columns _c0.._cN.
	Positional    bool
	SkipEmptyRows bool
}

// ReadExcel loads the first sheet of the workbook at path.
func ReadExcel(path string, kind core.PayloadKind, opts ExcelOptions) (*Table, error) {
	var (
		records [][]string
		err     error
	)
	switch kind {
	case core.KindXLSX:
		records, err = xlsxRecords(path)
	case core.KindXLS:
		records, err = xlsRecords(path)
	default:
		return nil, fmt.Errorf("read workbook: unsupported kind %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return fromRecords(records, opts), nil
}

// SheetRecords returns the raw cell text of the first sheet.
func SheetRecords(path string, kind core.PayloadKind) ([][]string, error) {
	if kind == core.KindXLS {
		return xlsRecords(path)
	}
	return xlsxRecords(path)
}

func fromRecords(records [][]string, opts ExcelOptions) *Table {
	t := &Table{Raw: records}

	width := 0
	if opts.Positional {
		for _, rec := range records {
			width = max(width, len(rec))
		}
		t.Columns = PositionalNames("_c", 0, width)
		for _, rec := range records {
			t.Rows = append(t.Rows, toRow(rec, width))
		}
	} else if opts.HeaderRow <= 0 {
		var body [][]string
		if start := max(opts.DataStartRow-1, 0); start < len(records) {
			body = records[start:]
		}
		for _, rec := range body {
			width = max(width, len(rec))
		}
		t.Columns = PositionalNames("column", 1, width)
		for _, rec := range body {
			t.Rows = append(t.Rows, toRow(rec, width))
		}
	} else {
		headerIdx := opts.HeaderRow - 1
		var header []string
		if headerIdx < len(records) {
			header = records[headerIdx]
		}
		width = len(header)
		var body [][]string
		if headerIdx+1 < len(records) {
			body = records[headerIdx+1:]
		}
		for _, rec := range body {
			width = max(width, len(rec))
		}
		t.Columns = HeaderNames(header, width)
		for _, rec := range body {
			t.Rows = append(t.Rows, toRow(rec, width))
		}
	}

	if opts.SkipEmptyRows {
		t.DropEmptyRows()
	}
	return t
}

func xlsxRecords(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, core.Failf(core.CorruptFile, "open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, core.Failf(core.CorruptFile, "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, core.Failf(core.CorruptFile, "read sheet %q: %v", sheets[0], err)
	}
	return rows, nil
}

func xlsRecords(path string) (records [][]string, err error) {
	// The legacy reader panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = core.Failf(core.CorruptFile, "read legacy workbook: %v", r)
		}
	}()

	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, core.Failf(core.CorruptFile, "open legacy workbook: %v", err)
	}
	if wb == nil || wb.NumSheets() == 0 {
		return nil, core.Failf(core.CorruptFile, "legacy workbook has no sheets")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, core.Failf(core.CorruptFile, "legacy workbook has no sheets")
	}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := xlsRow(sheet, i)
		if row == nil {
			records = append(records, nil)
			continue
		}
		rec := make([]string, row.LastCol())
		for c := range rec {
			rec[c] = row.Col(c)
		}
		records = append(records, rec)
	}
	return records, nil
}

// xlsRow returns row i, or nil when the sheet does not define it.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}
