package aggregate

import (
	"cmp"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/johnwards/insights/internal/domain"
)

// toFloat coerces native numbers, json.Number and numeric strings.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

// isNumber reports whether v is a native numeric value (not a numeric string).
func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return true
	}
	return false
}

// toInt returns v as an integer when it is a whole number.
func toInt(v any) (int, bool) {
	if !isNumber(v) {
		return 0, false
	}
	f, _ := toFloat(v)
	if f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// equalValues is the equality used by match. Numbers compare numerically, and
// a numeric string equals a number with the same value so records read back
// from string-typed stores still match numeric filters.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumber(a) || isNumber(b) {
		fa, okA := toFloat(a)
		fb, okB := toFloat(b)
		return okA && okB && fa == fb
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return reflect.DeepEqual(normalize(a), normalize(b))
}

// compareValues is the total order used by sort and $min/$max: nil first,
// then numerically when both sides coerce to numbers, then booleans, then by
// string form.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return cmp.Compare(fa, fb)
	}
	ba, okA := a.(bool)
	bb, okB := b.(bool)
	if okA && okB {
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		default:
			return 1
		}
	}
	return strings.Compare(stringOf(a), stringOf(b))
}

// rangeCompare orders two values for $gt/$gte/$lt/$lte. Only values of the
// same kind are ordered: two numbers (numeric strings count as numbers), two
// strings or two booleans. Anything else, nil included, is incomparable.
func rangeCompare(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	switch {
	case okA && okB:
		return cmp.Compare(fa, fb), true
	case okA != okB && (isNumber(a) || isNumber(b)):
		return 0, false
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		return strings.Compare(sa, sb), ok
	}
	ba, okA := a.(bool)
	bb, okB := b.(bool)
	if okA && okB {
		return compareValues(ba, bb), true
	}
	return 0, false
}

func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	}
	return fmt.Sprint(v)
}

// groupKey maps a grouping value to a comparable key. Numbers share a key
// regardless of their Go type.
func groupKey(v any) string {
	switch t := v.(type) {
	case nil:
		return "nil"
	case string:
		return "s:" + t
	case bool:
		return "b:" + strconv.FormatBool(t)
	}
	if isNumber(v) {
		f, _ := toFloat(v)
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%T:%v", v, v)
	}
	return "j:" + string(data)
}

// lookup resolves a field name against a record. Dotted paths walk nested
// mappings when the record has no literal key of that name.
func lookup(rec domain.Record, path string) (any, bool) {
	if v, ok := rec[path]; ok {
		return v, true
	}
	if !strings.Contains(path, ".") {
		return nil, false
	}
	var cur any = map[string]any(rec)
	for _, part := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case map[string]any:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		case domain.Record:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

// normalize turns Documents and Records into plain maps so literals built in
// Go code compare and evaluate like decoded JSON.
func normalize(v any) any {
	switch t := v.(type) {
	case domain.Document:
		m := t.Map()
		for k, val := range m {
			m[k] = normalize(val)
		}
		return m
	case domain.Record:
		return map[string]any(t)
	}
	return v
}

// asMap returns v as a mapping when it is one.
func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case domain.Document:
		return t.Map(), true
	case domain.Record:
		return map[string]any(t), true
	}
	return nil, false
}

// asSlice returns the elements of any slice or array value.
func asSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
