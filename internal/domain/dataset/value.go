package dataset

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// Kind is the storage type a writer should use for a column.
type Kind string

const (
	KindNull   Kind = "null"
	KindBool   Kind = "bool"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
	KindJSON   Kind = "json"
)

// ColumnKind infers the narrowest kind holding every non-nil cell of col.
// Integers widen to float; any other mix falls back to string.
func (t *Table) ColumnKind(col string) Kind {
	kind := KindNull
	for _, row := range t.rows {
		next := kindOf(row[col])
		if next == KindNull {
			continue
		}
		kind = widen(kind, next)
	}
	return kind
}

func kindOf(v any) Kind {
	switch x := v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return KindInt
		}
		return KindFloat
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInt
	case float32, float64:
		return KindFloat
	case string:
		return KindString
	default:
		return KindJSON
	}
}

func widen(current, next Kind) Kind {
	switch {
	case current == KindNull || current == next:
		return next
	case (current == KindInt && next == KindFloat) || (current == KindFloat && next == KindInt):
		return KindFloat
	default:
		return KindString
	}
}

// ToFloat is the lenient numeric reading of a cell: numbers pass through,
// numeric strings parse, booleans map to 1/0. NaN and infinities count as
// missing, since JSON and most readers cannot carry them.
func ToFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func ToInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
	case int:
		return int64(x), true
	case int64:
		return x, true
	case int32:
		return int64(x), true
	}
	f, ok := ToFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// FormatCell renders a cell as text: nil is empty, nested values are compact
// JSON, booleans are spelled True/False.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "True"
		}
		return "False"
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		raw, err := sonic.ConfigStd.Marshal(x)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}
