package table

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumn_Label(t *testing.T) {
	assert.Equal(t, "CA 2024", Column{Key: "ca2024", Header: "CA 2024"}.Label())
	assert.Equal(t, "ca2024", Column{Key: "ca2024"}.Label())
}

func TestTableData_CellAt(t *testing.T) {
	data := TableData{
		Columns: []Column{{Key: "a"}, {Key: "b"}},
		Rows:    [][]*Cell{{NewCell(1), nil}, {NewCell(2)}},
	}

	assert.Equal(t, 1, data.CellAt(0, 0).Value)
	assert.Nil(t, data.CellAt(0, 1))
	assert.Nil(t, data.CellAt(1, 1))
	assert.Nil(t, data.CellAt(5, 0))
	assert.Nil(t, data.CellAt(-1, 0))
}

func TestTableData_Shape(t *testing.T) {
	data := TableData{
		Columns: []Column{{Key: "a"}, {Key: "b"}},
		Rows:    [][]*Cell{{}, {}, {}},
	}

	cols, rows := data.Shape()
	assert.Equal(t, 2, cols)
	assert.Equal(t, 3, rows)
	assert.False(t, data.IsEmpty())
	assert.True(t, TableData{}.IsEmpty())
}

func TestCell_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
	}{
		{name: "string value", raw: `{"value":"Paris"}`, want: "Paris"},
		{name: "number keeps precision", raw: `{"value":1234.50}`, want: json.Number("1234.50")},
		{name: "boolean value", raw: `{"value":true}`, want: true},
		{name: "bare scalar", raw: `7`, want: nil},
		{name: "bare string", raw: `"x"`, want: nil},
		{name: "array", raw: `["x"]`, want: nil},
		{name: "object without value", raw: `{"other":1}`, want: nil},
		{name: "null value", raw: `{"value":null}`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Cell
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &c))
			assert.Equal(t, tt.want, c.Value)
		})
	}
}

func TestRenderTarget(t *testing.T) {
	t.Run("extensions", func(t *testing.T) {
		assert.Equal(t, "png", RenderTargetRaster.Extension())
		assert.Equal(t, "pdf", RenderTargetDocument.Extension())
		assert.Equal(t, "image/png", RenderTargetRaster.ContentType())
		assert.Equal(t, "application/pdf", RenderTargetDocument.ContentType())
	})

	t.Run("validity", func(t *testing.T) {
		for _, target := range AllRenderTargets() {
			assert.True(t, target.IsValid())
		}
		assert.False(t, RenderTarget("gif").IsValid())
		assert.False(t, RenderTarget("").IsValid())
		assert.Equal(t, RenderTargetRaster, RenderTarget("").OrDefault())
	})

	t.Run("parse", func(t *testing.T) {
		tests := map[string]RenderTarget{
			"":         RenderTargetRaster,
			"png":      RenderTargetRaster,
			"raster":   RenderTargetRaster,
			"image":    RenderTargetRaster,
			"pdf":      RenderTargetDocument,
			"document": RenderTargetDocument,
		}
		for in, expected := range tests {
			got, err := ParseRenderTarget(in)
			assert.NoError(t, err)
			assert.Equal(t, expected, got)
		}

		_, err := ParseRenderTarget("svg")
		assert.Error(t, err)
	})
}
