package table

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// NormalizedItem maps each column key to its display-ready value
type NormalizedItem map[string]string

// Value returns the value for key, or FallbackValue when the key is absent
func (i NormalizedItem) Value(key string) string {
	if v, ok := i[key]; ok {
		return v
	}
	return FallbackValue
}

// Normalize projects every row into a NormalizedItem, in row order.
//
// A cell contributes its value only when it is present and truthy. Absent
// cells, nil values, empty strings, numeric zero, NaN and false all become
// FallbackValue. Columns sharing a key overwrite each other left to right.
func Normalize(data TableData) []NormalizedItem {
	items := make([]NormalizedItem, 0, len(data.Rows))
	for rowIdx := range data.Rows {
		item := make(NormalizedItem, len(data.Columns))
		for colIdx, col := range data.Columns {
			cell := data.CellAt(rowIdx, colIdx)
			if cell == nil || IsFalsy(cell.Value) {
				item[col.Key] = FallbackValue
				continue
			}
			item[col.Key] = DisplayValue(cell.Value)
		}
		items = append(items, item)
	}
	return items
}

// IsFalsy reports whether v is one of the values treated as missing
func IsFalsy(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case json.Number:
		f, err := x.Float64()
		return err == nil && (f == 0 || math.IsNaN(f))
	case decimal.Decimal:
		return x.IsZero()
	}
	if f, ok := asFloat(v); ok {
		return f == 0 || math.IsNaN(f)
	}
	return false
}

// DisplayValue formats a cell value for display. Numbers are printed in plain
// decimal notation without trailing zeros.
func DisplayValue(v any) string {
	switch x := v.(type) {
	case nil:
		return FallbackValue
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return formatFloat(float64(x))
	case float64:
		return formatFloat(x)
	case json.Number:
		if d, err := decimal.NewFromString(x.String()); err == nil {
			return d.String()
		}
		return x.String()
	case decimal.Decimal:
		return x.String()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return decimal.NewFromFloat(f).String()
}

// asFloat converts the numeric kinds produced by decoders to float64
func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}
