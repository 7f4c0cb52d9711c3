package dataset

// Table is a column-ordered set of records. Column order follows first
// appearance across appended records, the way a DataFrame built from a list
// of dicts orders its columns.
type Table struct {
	columns []string
	index   map[string]int
	rows    []map[string]any
}

func New(columns ...string) *Table {
	t := &Table{index: make(map[string]int, len(columns))}
	for _, col := range columns {
		t.addColumn(col)
	}
	return t
}

func FromRecords(records []Record) *Table {
	t := New()
	t.rows = make([]map[string]any, 0, len(records))
	for _, record := range records {
		t.AppendRecord(record)
	}
	return t
}

// Append adds a record, registering unseen keys as new columns in sorted
// order. Use AppendRecord when the upstream key order is known.
func (t *Table) Append(values map[string]any) {
	t.AppendRecord(Record{Values: values})
}

// AppendRecord registers unseen keys in r.Keys order first, then any keys of
// r.Values that r.Keys does not mention, sorted.
func (t *Table) AppendRecord(r Record) {
	if r.Values == nil {
		r.Values = map[string]any{}
	}
	for _, col := range r.Keys {
		if _, ok := r.Values[col]; ok {
			t.addColumn(col)
		}
	}
	if len(r.Keys) != len(r.Values) {
		for _, col := range sortedKeys(r.Values) {
			t.addColumn(col)
		}
	}
	t.rows = append(t.rows, r.Values)
}

func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

func (t *Table) HasColumn(col string) bool {
	_, ok := t.index[col]
	return ok
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Value returns nil for missing cells.
func (t *Table) Value(row int, col string) any {
	if row < 0 || row >= len(t.rows) {
		return nil
	}
	return t.rows[row][col]
}

func (t *Table) Row(row int) map[string]any {
	if row < 0 || row >= len(t.rows) {
		return nil
	}
	return t.rows[row]
}

func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n > len(t.rows) {
		n = len(t.rows)
	}
	out := New(t.columns...)
	out.rows = append(out.rows, t.rows[:n]...)
	return out
}

// Select projects the named columns; unknown names are kept as empty columns.
func (t *Table) Select(cols ...string) *Table {
	out := New(cols...)
	out.rows = make([]map[string]any, 0, len(t.rows))
	for _, row := range t.rows {
		projected := make(map[string]any, len(cols))
		for _, col := range cols {
			if v, ok := row[col]; ok {
				projected[col] = v
			}
		}
		out.rows = append(out.rows, projected)
	}
	return out
}

// CoerceNumeric converts every cell of the named columns to float64, or nil
// when the value has no numeric reading. Columns the table lacks are skipped.
func (t *Table) CoerceNumeric(cols ...string) {
	for _, col := range cols {
		if !t.HasColumn(col) {
			continue
		}
		for _, row := range t.rows {
			v, ok := row[col]
			if !ok {
				continue
			}
			if f, ok := ToFloat(v); ok {
				row[col] = f
			} else {
				row[col] = nil
			}
		}
	}
}

func (t *Table) addColumn(col string) {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if _, ok := t.index[col]; ok {
		return
	}
	t.index[col] = len(t.columns)
	t.columns = append(t.columns, col)
}
