package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// resultSet is a rendered query result: ordered columns and rows.
type resultSet struct {
	cols []string
	rows [][]any
}

func renderResults(w io.Writer, rs resultSet, format string) error {
	switch format {
	case "json":
		return renderJSON(w, rs)
	case "csv":
		return renderCSV(w, rs)
	case "md", "markdown":
		if len(rs.rows) == 0 {
			_, _ = fmt.Fprintln(w, "(0 rows)")
			return nil
		}
		return renderTabular(w, rs, table.StyleDefault, func(t table.Writer) { t.RenderMarkdown() })
	default:
		return renderTable(w, rs)
	}
}

func renderTable(w io.Writer, rs resultSet) error {
	if len(rs.rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}
	if err := renderTabular(w, rs, table.StyleLight, func(t table.Writer) { t.Render() }); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rs.rows))
	return nil
}

// renderTabular renders rs through go-pretty. Column names are paths and
// keep their case.
func renderTabular(w io.Writer, rs resultSet, style table.Style, render func(table.Writer)) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(style)
	t.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(rs.cols))
	for i, col := range rs.cols {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, vals := range rs.rows {
		row := make(table.Row, len(vals))
		for i, v := range vals {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}
	render(t)
	return nil
}

func renderCSV(w io.Writer, rs resultSet) error {
	_, _ = fmt.Fprintln(w, strings.Join(rs.cols, ","))
	for _, vals := range rs.rows {
		values := make([]string, len(vals))
		for i, v := range vals {
			values[i] = escapeCSV(formatValue(v))
		}
		_, _ = fmt.Fprintln(w, strings.Join(values, ","))
	}
	return nil
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\r\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

func renderJSON(w io.Writer, rs resultSet) error {
	results := make([]map[string]any, 0, len(rs.rows))
	for _, vals := range rs.rows {
		row := make(map[string]any, len(rs.cols))
		for i, col := range rs.cols {
			v := vals[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		results = append(results, row)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
