package output

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/dataset"
)

// encodeTableParquet writes one optional leaf per table column, typed by the
// column's inferred kind. Nested and mixed columns are stored as JSON text.
// Leaves are ordered by name.
func encodeTableParquet(w io.Writer, table *dataset.Table) error {
	columns := table.Columns()
	if len(columns) == 0 {
		return fmt.Errorf("parquet output needs at least one column")
	}

	kinds := make(map[string]dataset.Kind, len(columns))
	group := parquet.Group{}
	for _, col := range columns {
		kind := table.ColumnKind(col)
		kinds[col] = kind
		group[col] = parquet.Optional(parquetNode(kind))
	}
	schema := parquet.NewSchema("dataset", group)

	leafIndex := make(map[string]int, len(columns))
	for _, col := range columns {
		leaf, ok := schema.Lookup(col)
		if !ok {
			return fmt.Errorf("column %q missing from parquet schema", col)
		}
		leafIndex[col] = leaf.ColumnIndex
	}

	rows := make([]parquet.Row, 0, table.Len())
	for row := 0; row < table.Len(); row++ {
		out := make(parquet.Row, len(columns))
		for _, col := range columns {
			idx := leafIndex[col]
			out[idx] = parquetValue(kinds[col], table.Value(row, col), idx)
		}
		rows = append(rows, out)
	}

	writer := parquet.NewWriter(w, schema)
	if _, err := writer.WriteRows(rows); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func parquetNode(kind dataset.Kind) parquet.Node {
	switch kind {
	case dataset.KindInt:
		return parquet.Int(64)
	case dataset.KindFloat:
		return parquet.Leaf(parquet.DoubleType)
	case dataset.KindBool:
		return parquet.Leaf(parquet.BooleanType)
	default:
		return parquet.String()
	}
}

func parquetValue(kind dataset.Kind, v any, columnIndex int) parquet.Value {
	if v == nil {
		return parquet.NullValue().Level(0, 0, columnIndex)
	}

	var value parquet.Value
	switch kind {
	case dataset.KindInt:
		n, ok := dataset.ToInt64(v)
		if !ok {
			return parquet.NullValue().Level(0, 0, columnIndex)
		}
		value = parquet.Int64Value(n)
	case dataset.KindFloat:
		f, ok := dataset.ToFloat(v)
		if !ok {
			return parquet.NullValue().Level(0, 0, columnIndex)
		}
		value = parquet.DoubleValue(f)
	case dataset.KindBool:
		b, ok := v.(bool)
		if !ok {
			return parquet.NullValue().Level(0, 0, columnIndex)
		}
		value = parquet.BooleanValue(b)
	default:
		value = parquet.ByteArrayValue([]byte(dataset.FormatCell(v)))
	}
	return value.Level(0, 1, columnIndex)
}
