package transform

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/JonMunkholm/landingzone/internal/tabular"
)

// EncodeParquet serialises t as a single Parquet row group of nullable
// string columns.
func EncodeParquet(t *tabular.Table) ([]byte, error) {
	pool := memory.NewGoAllocator()

	fields := make([]arrow.Field, len(t.Columns))
	for i, c := range t.Columns {
		fields[i] = arrow.Field{Name: c, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	builders := make([]*array.StringBuilder, len(t.Columns))
	for i := range builders {
		builders[i] = array.NewStringBuilder(pool)
		defer builders[i].Release()
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if cell.Valid {
				builders[i].Append(cell.String)
			} else {
				builders[i].AppendNull()
			}
		}
	}

	cols := make([]arrow.Array, len(builders))
	for i, b := range builders {
		cols[i] = b.NewArray()
		defer cols[i].Release()
	}
	record := array.NewRecord(schema, cols, int64(len(t.Rows)))
	defer record.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithCreatedBy("landingzone"),
	)

	var buf bytes.Buffer
	writer, err := pqarrow.NewFileWriter(schema, &buf, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	if err := writer.Write(record); err != nil {
		writer.Close()
		return nil, fmt.Errorf("write parquet record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
