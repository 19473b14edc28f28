// File: internal/reporting/table.go
package reporting

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	maxColumnWidth = 20
	noResults      = "No results found."
)

// Table renders rows as markdown. A single row becomes "**key**: value"
// lines; several rows become an aligned table followed by numeric totals
// and the row count. columns fixes the column order; when empty, the keys
// of the first row are used in sorted order.
func Table(columns []string, rows []map[string]any) string {
	if len(rows) == 0 {
		return noResults
	}
	columns = resolveColumns(columns, rows)
	if len(columns) == 0 {
		return noResults
	}

	var out []string
	if len(rows) == 1 {
		for _, key := range columns {
			out = append(out, fmt.Sprintf("**%s**: %s", key, display(rows[0][key])))
		}
		return strings.Join(out, "\n")
	}

	widths := make([]int, len(columns))
	for i, key := range columns {
		w := utf8.RuneCountInString(key)
		for _, row := range rows {
			w = max(w, utf8.RuneCountInString(display(row[key])))
		}
		widths[i] = min(w, maxColumnWidth)
	}

	header := make([]string, len(columns))
	sep := make([]string, len(columns))
	for i, key := range columns {
		header[i] = fmt.Sprintf("%-*s", widths[i], key)
		sep[i] = ":" + strings.Repeat("-", widths[i]) + ":"
	}
	out = append(out, "| "+strings.Join(header, " | ")+" |")
	out = append(out, "|"+strings.Join(sep, "|")+"|")

	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, key := range columns {
			v := truncateRunes(display(row[key]), widths[i], widths[i]-3)
			cells[i] = fmt.Sprintf("%-*s", widths[i], v)
		}
		out = append(out, "| "+strings.Join(cells, " | ")+" |")
	}

	var totals []string
	for _, key := range columns {
		var total float64
		for _, row := range rows {
			if f, ok := numeric(row[key]); ok {
				total += f
			}
		}
		if total > 0 {
			formatted := groupThousands(total, 2)
			if isWhole(total) {
				formatted = groupThousands(total, 0)
			}
			totals = append(totals, fmt.Sprintf("- Total %s: %s", key, formatted))
		}
	}
	if len(totals) > 0 {
		out = append(out, "", "**Summary:**")
		out = append(out, totals...)
	}
	out = append(out, "", fmt.Sprintf("*Total rows: %d*", len(rows)))
	return strings.Join(out, "\n")
}

func resolveColumns(columns []string, rows []map[string]any) []string {
	if len(columns) > 0 {
		return columns
	}
	keys := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
