package dataset

import (
	"fmt"
	"sort"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/ast"
)

// Record is one upstream JSON object with its key order preserved.
type Record struct {
	Keys   []string
	Values map[string]any
}

// Set assigns key, appending it to the key order when new.
func (r *Record) Set(key string, value any) {
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
	if _, ok := r.Values[key]; !ok {
		r.Keys = append(r.Keys, key)
	}
	r.Values[key] = value
}

// DecodeRecords reads the JSON array found at path inside raw. Numbers are
// kept as json.Number so integer-ness survives to the writers. Non-object
// array items are skipped.
func DecodeRecords(raw []byte, path ...any) ([]Record, error) {
	if !sonic.Valid(raw) {
		return nil, fmt.Errorf("invalid JSON payload")
	}
	node, err := sonic.Get(raw, path...)
	if err != nil {
		return nil, fmt.Errorf("locate records at %v: %w", path, err)
	}
	if node.TypeSafe() != ast.V_ARRAY {
		return nil, fmt.Errorf("records at %v are not a JSON array", path)
	}

	var out []Record
	var walkErr error
	err = node.ForEach(func(_ ast.Sequence, item *ast.Node) bool {
		if item.TypeSafe() != ast.V_OBJECT {
			return true
		}
		record, recErr := decodeObject(item)
		if recErr != nil {
			walkErr = recErr
			return false
		}
		out = append(out, record)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("walk records: %w", err)
	}
	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}

func decodeObject(node *ast.Node) (Record, error) {
	record := Record{Values: make(map[string]any)}
	var fieldErr error
	err := node.ForEach(func(seq ast.Sequence, field *ast.Node) bool {
		if seq.Key == nil {
			return true
		}
		value, err := field.InterfaceUseNumber()
		if err != nil {
			fieldErr = fmt.Errorf("decode field %q: %w", *seq.Key, err)
			return false
		}
		record.Set(*seq.Key, value)
		return true
	})
	if err != nil {
		return Record{}, fmt.Errorf("walk object: %w", err)
	}
	if fieldErr != nil {
		return Record{}, fieldErr
	}
	return record, nil
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
