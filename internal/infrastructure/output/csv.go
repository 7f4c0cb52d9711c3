package output

import (
	"encoding/csv"
	"io"

	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/dataset"
)

// encodeTableCSV writes a header row and one record per row, no index
// column. A table without columns produces an empty file.
func encodeTableCSV(w io.Writer, table *dataset.Table) error {
	columns := table.Columns()
	if len(columns) == 0 {
		return nil
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	record := make([]string, len(columns))
	for row := 0; row < table.Len(); row++ {
		for i, col := range columns {
			record[i] = dataset.FormatCell(table.Value(row, col))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
