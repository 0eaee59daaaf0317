package table

import (
	"bytes"
	"encoding/json"
)

// FallbackValue is substituted for every missing or falsy cell
const FallbackValue = "N/A"

// Column describes one column of a dataset
type Column struct {
	// Key addresses the cell slot in a normalized item
	Key string `json:"key"`
	// Header is the display label (optional, falls back to Key)
	Header string `json:"header,omitempty"`
}

// Label returns the header to display for the column
func (c Column) Label() string {
	if c.Header != "" {
		return c.Header
	}
	return c.Key
}

// Cell holds a single value: string, number or boolean
type Cell struct {
	Value any `json:"value"`
}

// UnmarshalJSON decodes {"value": ...}. Any other shape yields a cell without
// a value, which normalizes to FallbackValue. Numbers decode as json.Number.
func (c *Cell) UnmarshalJSON(data []byte) error {
	c.Value = nil
	var raw struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil || len(raw.Value) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw.Value))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	c.Value = v
	return nil
}

// NewCell creates a cell holding the given value
func NewCell(value any) *Cell {
	return &Cell{Value: value}
}

// TableData is a two-dimensional dataset. Position i of a row corresponds to
// Columns[i]; rows may be shorter than the column list and may contain nil cells.
type TableData struct {
	Columns []Column  `json:"columns"`
	Rows    [][]*Cell `json:"rows"`
}

// Shape returns the number of columns and rows
func (t TableData) Shape() (columns, rows int) {
	return len(t.Columns), len(t.Rows)
}

// IsEmpty returns true if the dataset has neither columns nor rows
func (t TableData) IsEmpty() bool {
	return len(t.Columns) == 0 && len(t.Rows) == 0
}

// CellAt returns the cell at the given position, or nil when the row is too
// short or the slot is empty
func (t TableData) CellAt(row, col int) *Cell {
	if row < 0 || row >= len(t.Rows) {
		return nil
	}
	cells := t.Rows[row]
	if col < 0 || col >= len(cells) {
		return nil
	}
	return cells[col]
}
