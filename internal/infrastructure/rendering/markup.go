package rendering

import (
	"bytes"
	"html"

	"github.com/dilly/tablebot/internal/domain/table"
)

// DefaultTitle is the caption rendered above every table
const DefaultTitle = "Dilly Comparison Table"

const tableStyle = `table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid black; padding: 8px; text-align: left; }
th { background-color: #f2f2f2; }`

// MarkupOptions controls the generated HTML document
type MarkupOptions struct {
	// Title is the document title and heading (default: DefaultTitle)
	Title string
	// EscapeValues HTML-escapes the title, headers and cell values.
	// Off by default: values are interpolated as-is and callers must
	// sanitize anything markup-significant.
	EscapeValues bool
	// ExtraCSS is appended to the inline style block
	ExtraCSS string
}

// BuildMarkup builds the self-contained HTML document for a table
func BuildMarkup(data table.TableData, items []table.NormalizedItem, opts MarkupOptions) string {
	title := opts.Title
	if title == "" {
		title = DefaultTitle
	}
	text := func(s string) string {
		if opts.EscapeValues {
			return html.EscapeString(s)
		}
		return s
	}

	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	buf.WriteString("<meta charset=\"UTF-8\">\n")
	buf.WriteString("<title>" + text(title) + "</title>\n")
	buf.WriteString("<style>\n" + tableStyle + "\n")
	if opts.ExtraCSS != "" {
		buf.WriteString(opts.ExtraCSS + "\n")
	}
	buf.WriteString("</style>\n</head>\n<body>\n")
	buf.WriteString("<h1>" + text(title) + "</h1>\n")
	buf.WriteString("<table>\n<tr>")
	for _, col := range data.Columns {
		buf.WriteString("<th>" + text(col.Label()) + "</th>")
	}
	buf.WriteString("</tr>\n")
	for _, item := range items {
		buf.WriteString("<tr>")
		for _, col := range data.Columns {
			buf.WriteString("<td>" + text(item.Value(col.Key)) + "</td>")
		}
		buf.WriteString("</tr>\n")
	}
	buf.WriteString("</table>\n</body>\n</html>\n")

	return buf.String()
}
