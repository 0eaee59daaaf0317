package table

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func revenueTable() TableData {
	return TableData{
		Columns: []Column{
			{Key: "ca2024", Header: "CA 2024"},
			{Key: "ca2025", Header: "CA 2025"},
		},
		Rows: [][]*Cell{
			{NewCell(1000), NewCell(1200)},
			{NewCell(0), nil},
		},
	}
}

func TestNormalize_RevenueExample(t *testing.T) {
	items := Normalize(revenueTable())

	require.Len(t, items, 2)
	assert.Equal(t, NormalizedItem{"ca2024": "1000", "ca2025": "1200"}, items[0])
	assert.Equal(t, NormalizedItem{"ca2024": FallbackValue, "ca2025": FallbackValue}, items[1])
}

func TestNormalize_Shape(t *testing.T) {
	tests := []struct {
		name    string
		columns int
		rows    int
	}{
		{"empty", 0, 0},
		{"columns only", 3, 0},
		{"rows without columns", 0, 4},
		{"square", 3, 3},
		{"wide", 7, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := TableData{}
			for c := 0; c < tt.columns; c++ {
				data.Columns = append(data.Columns, Column{Key: string(rune('a' + c))})
			}
			for r := 0; r < tt.rows; r++ {
				row := make([]*Cell, 0, tt.columns)
				for c := 0; c < tt.columns; c++ {
					row = append(row, NewCell(r*10+c+1))
				}
				data.Rows = append(data.Rows, row)
			}

			items := Normalize(data)

			assert.Len(t, items, tt.rows)
			for _, item := range items {
				assert.Len(t, item, tt.columns)
			}
		})
	}
}

func TestNormalize_FalsyValuesFallBack(t *testing.T) {
	falsy := []any{0, 0.0, int64(0), "", false, nil, math.NaN(), json.Number("0"), decimal.Zero}

	for _, v := range falsy {
		data := TableData{
			Columns: []Column{{Key: "v"}},
			Rows:    [][]*Cell{{NewCell(v)}},
		}
		items := Normalize(data)
		require.Len(t, items, 1)
		assert.Equal(t, FallbackValue, items[0]["v"], "value %#v should fall back", v)
	}
}

func TestNormalize_TruthyValuesKept(t *testing.T) {
	tests := []struct {
		value    any
		expected string
	}{
		{"Paris", "Paris"},
		{true, "true"},
		{1000.0, "1000"},
		{12.5, "12.5"},
		{-3, "-3"},
		{0.1, "0.1"},
		{json.Number("1200.50"), "1200.5"},
		{"0", "0"},
	}

	for _, tt := range tests {
		data := TableData{
			Columns: []Column{{Key: "v"}},
			Rows:    [][]*Cell{{NewCell(tt.value)}},
		}
		items := Normalize(data)
		assert.Equal(t, tt.expected, items[0]["v"])
	}
}

func TestNormalize_ShortRows(t *testing.T) {
	data := TableData{
		Columns: []Column{{Key: "a"}, {Key: "b"}, {Key: "c"}},
		Rows: [][]*Cell{
			{NewCell("x")},
			{},
		},
	}

	items := Normalize(data)

	require.Len(t, items, 2)
	assert.Equal(t, NormalizedItem{"a": "x", "b": FallbackValue, "c": FallbackValue}, items[0])
	assert.Equal(t, NormalizedItem{"a": FallbackValue, "b": FallbackValue, "c": FallbackValue}, items[1])
}

func TestNormalize_ExtraCellsIgnored(t *testing.T) {
	data := TableData{
		Columns: []Column{{Key: "a"}},
		Rows:    [][]*Cell{{NewCell("x"), NewCell("ignored")}},
	}

	items := Normalize(data)

	assert.Equal(t, NormalizedItem{"a": "x"}, items[0])
}

func TestNormalize_FromJSON(t *testing.T) {
	raw := `{
		"columns": [{"key": "shop", "header": "Shop"}, {"key": "total"}],
		"rows": [[{"value": "Paris"}, {"value": 1500}], [null, {"value": false}]]
	}`

	var data TableData
	require.NoError(t, json.Unmarshal([]byte(raw), &data))

	items := Normalize(data)

	require.Len(t, items, 2)
	assert.Equal(t, "Paris", items[0]["shop"])
	assert.Equal(t, "1500", items[0]["total"])
	assert.Equal(t, FallbackValue, items[1]["shop"])
	assert.Equal(t, FallbackValue, items[1]["total"])
}

func TestNormalizedItem_Value(t *testing.T) {
	item := NormalizedItem{"a": "1"}

	assert.Equal(t, "1", item.Value("a"))
	assert.Equal(t, FallbackValue, item.Value("missing"))
}

func TestDisplayValue_NonFinite(t *testing.T) {
	assert.Equal(t, "Infinity", DisplayValue(math.Inf(1)))
	assert.Equal(t, "-Infinity", DisplayValue(math.Inf(-1)))
	assert.Equal(t, "NaN", DisplayValue(math.NaN()))
}
