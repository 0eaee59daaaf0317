package rendering

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dilly/tablebot/internal/domain/table"
)

func TestBuildMarkup_RevenueExample(t *testing.T) {
	data := table.TableData{
		Columns: []table.Column{{Key: "ca_2024", Header: "CA 2024"}, {Key: "ca_2025", Header: "CA 2025"}},
		Rows:    [][]*table.Cell{{table.NewCell(1000), table.NewCell(1200)}},
	}

	html := markupFor(data, MarkupOptions{})

	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "<title>Dilly Comparison Table</title>")
	assert.Contains(t, html, "<h1>Dilly Comparison Table</h1>")
	assert.Contains(t, html, "border-collapse: collapse")
	assert.Contains(t, html, "border: 1px solid black")
	assert.Contains(t, html, "padding: 8px")
	assert.Contains(t, html, "background-color: #f2f2f2")
	assert.Contains(t, html, "<tr><th>CA 2024</th><th>CA 2025</th></tr>")
	assert.Contains(t, html, "<tr><td>1000</td><td>1200</td></tr>")
}

func TestBuildMarkup_Fallbacks(t *testing.T) {
	data := table.TableData{
		Columns: []table.Column{{Key: "a"}, {Key: "b", Header: "B"}},
		Rows:    [][]*table.Cell{{table.NewCell(0)}},
	}

	html := markupFor(data, MarkupOptions{})
	assert.Contains(t, html, "<tr><th>a</th><th>B</th></tr>")
	assert.Contains(t, html, "<tr><td>N/A</td><td>N/A</td></tr>")

	t.Run("item missing a key", func(t *testing.T) {
		items := []table.NormalizedItem{{"a": "x"}}
		html := BuildMarkup(data, items, MarkupOptions{})
		assert.Contains(t, html, "<tr><td>x</td><td>N/A</td></tr>")
	})
}

func TestBuildMarkup_RowCount(t *testing.T) {
	data := table.TableData{
		Columns: []table.Column{{Key: "k"}},
		Rows: [][]*table.Cell{
			{table.NewCell("one")},
			{table.NewCell("two")},
			{nil},
		},
	}

	html := markupFor(data, MarkupOptions{})
	assert.Equal(t, 1, strings.Count(html, "<th>"))
	assert.Equal(t, 3, strings.Count(html, "<td>"))
	assert.Equal(t, 4, strings.Count(html, "<tr>"))
}

func TestBuildMarkup_Escaping(t *testing.T) {
	data := table.TableData{
		Columns: []table.Column{{Key: "k", Header: "<b>Shop</b>"}},
		Rows:    [][]*table.Cell{{table.NewCell("<script>x</script>")}},
	}

	t.Run("raw by default", func(t *testing.T) {
		html := markupFor(data, MarkupOptions{})
		assert.Contains(t, html, "<th><b>Shop</b></th>")
		assert.Contains(t, html, "<td><script>x</script></td>")
	})

	t.Run("escaped when enabled", func(t *testing.T) {
		html := markupFor(data, MarkupOptions{EscapeValues: true, Title: "A & B"})
		assert.Contains(t, html, "<th>&lt;b&gt;Shop&lt;/b&gt;</th>")
		assert.Contains(t, html, "<td>&lt;script&gt;x&lt;/script&gt;</td>")
		assert.Contains(t, html, "<h1>A &amp; B</h1>")
	})
}

func TestBuildMarkup_ExtraCSS(t *testing.T) {
	html := markupFor(table.TableData{}, MarkupOptions{ExtraCSS: "body { font-family: sans-serif; }"})
	assert.Contains(t, html, "body { font-family: sans-serif; }\n</style>")
}

func markupFor(data table.TableData, opts MarkupOptions) string {
	return BuildMarkup(data, table.Normalize(data), opts)
}
