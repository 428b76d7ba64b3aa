// Package serialize converts prediction outputs into values every JSON encoder accepts.
package serialize

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/pharmalnet/dti/dataset"
)

// ToTransportSafe returns nil, float64, int64, bool or string for v.
//
// NaN and ±Inf become nil. Numeric values of any kind, named numeric types, json.Number,
// 1×1 matrices and one-element slices or arrays become plain numbers. Strings pass through
// and anything else is formatted with fmt.Sprint. It never panics.
func ToTransportSafe(v any) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = fallback(v)
		}
	}()
	return convert(v, 0)
}

const maxDepth = 8

func convert(v any, depth int) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case bool:
		return x
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return finite(f)
		}
		return x.String()
	case *mat.VecDense:
		if x != nil && x.Len() == 1 {
			return finite(x.AtVec(0))
		}
	case mat.Matrix:
		if r, c := x.Dims(); r == 1 && c == 1 {
			return finite(x.At(0, 0))
		}
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return float64(u)
		}
		return int64(u)
	case reflect.Float32, reflect.Float64:
		return finite(rv.Float())
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		if depth < maxDepth {
			return convert(rv.Elem().Interface(), depth+1)
		}
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		if rv.Len() == 1 && depth < maxDepth {
			return convert(rv.Index(0).Interface(), depth+1)
		}
	}
	return fallback(v)
}

func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func fallback(v any) (s string) {
	defer func() {
		if recover() != nil {
			s = fmt.Sprintf("%T", v)
		}
	}()
	return fmt.Sprint(v)
}

// Cell parses a CSV cell the way a dataframe would: missing tokens become nil, integers
// and floats become numbers, everything else stays a string.
func Cell(s string) any {
	if dataset.IsMissing(s) {
		return nil
	}
	t := strings.TrimSpace(s)
	if i, err := strconv.ParseInt(t, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return finite(f)
	}
	return s
}

// Records turns table rows into JSON-safe records keyed by column name. extra adds
// columns aligned with the table rows; a shorter extra column leaves later records
// without that key.
func Records(table *dataset.Table, extra map[string][]any) []map[string]any {
	if table == nil {
		return []map[string]any{}
	}
	out := make([]map[string]any, len(table.Rows))
	for i, row := range table.Rows {
		rec := make(map[string]any, len(table.Columns)+len(extra))
		for j, col := range table.Columns {
			if j < len(row) {
				rec[col] = Cell(row[j])
			} else {
				rec[col] = nil
			}
		}
		for col, values := range extra {
			if i < len(values) {
				rec[col] = ToTransportSafe(values[i])
			}
		}
		out[i] = rec
	}
	return out
}
