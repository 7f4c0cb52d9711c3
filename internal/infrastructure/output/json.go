package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/dataset"
)

// encodeDocument re-indents raw without decoding it, so key order and number
// spelling stay exactly as the upstream sent them.
func encodeDocument(w io.Writer, raw []byte) error {
	var indented bytes.Buffer
	if err := json.Indent(&indented, bytes.TrimSpace(raw), "", "  "); err != nil {
		return fmt.Errorf("indent document: %w", err)
	}
	indented.WriteByte('\n')
	_, err := indented.WriteTo(w)
	return err
}

// encodeTableJSON writes a JSON array with one object per row, keys in
// column order. Missing cells are null.
func encodeTableJSON(w io.Writer, table *dataset.Table) error {
	columns := table.Columns()
	keys := make([][]byte, len(columns))
	for i, col := range columns {
		key, err := sonic.ConfigStd.Marshal(col)
		if err != nil {
			return fmt.Errorf("encode column name %q: %w", col, err)
		}
		keys[i] = key
	}

	if _, err := io.WriteString(w, "["); err != nil {
		return err
	}
	for row := 0; row < table.Len(); row++ {
		sep := ",\n  {"
		if row == 0 {
			sep = "\n  {"
		}
		if _, err := io.WriteString(w, sep); err != nil {
			return err
		}
		for i, col := range columns {
			if i > 0 {
				if _, err := io.WriteString(w, ","); err != nil {
					return err
				}
			}
			value, err := sonic.ConfigStd.Marshal(table.Value(row, col))
			if err != nil {
				return fmt.Errorf("encode row %d column %q: %w", row, col, err)
			}
			if _, err := w.Write(keys[i]); err != nil {
				return err
			}
			if _, err := io.WriteString(w, ":"); err != nil {
				return err
			}
			if _, err := w.Write(value); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "}"); err != nil {
			return err
		}
	}
	if table.Len() > 0 {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "]\n")
	return err
}
