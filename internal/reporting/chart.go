// File: internal/reporting/chart.go
package reporting

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
)

const (
	DefaultChartTitle = "Data Visualization"

	barWidth      = 40
	labelWidth    = 15
	barGlyph      = "█"
	noChartData   = "No data to visualize"
	noChartFields = "Cannot create chart - need label and numeric columns"
)

var (
	valueColumnPriority = []string{"count", "total", "amount", "sum", "value", "number"}
	labelColumnPriority = []string{"year", "name", "label", "category", "type"}
)

type bar struct {
	label string
	value float64
}

// BarChart renders rows as a horizontal ASCII bar chart. It picks a numeric
// value column (preferring count, total, amount, sum, value, number) and a
// label column (preferring year, name, label, category, type).
func BarChart(columns []string, rows []map[string]any, title string) string {
	if len(rows) == 0 {
		return noChartData
	}
	if title == "" {
		title = DefaultChartTitle
	}
	columns = resolveColumns(columns, rows)

	valueKey := pickValueColumn(columns, rows)
	labelKey := pickLabelColumn(columns, valueKey)
	if valueKey == "" || labelKey == "" {
		return noChartFields
	}

	bars := make([]bar, len(rows))
	var maxValue, total float64
	for i, row := range rows {
		label := "Unknown"
		if v, ok := row[labelKey]; ok {
			label = display(v)
		}
		f, _ := numeric(row[valueKey])
		bars[i] = bar{label: label, value: f}
		maxValue = max(maxValue, f)
		total += f
	}
	sortBars(bars)

	out := []string{title, strings.Repeat("=", len([]rune(title))), ""}
	for _, b := range bars {
		n := 0
		if maxValue > 0 {
			n = max(int(b.value/maxValue*barWidth), 0)
		}
		line := fmt.Sprintf("%-*s : %s%s %s",
			labelWidth, truncateRunes(b.label, labelWidth, 12),
			strings.Repeat(barGlyph, n), strings.Repeat(" ", barWidth-n),
			chartNumber(b.value))
		out = append(out, line)
	}
	out = append(out, "", fmt.Sprintf("%-*s : %s", labelWidth, "Total", chartNumber(total)))
	return strings.Join(out, "\n")
}

func pickValueColumn(columns []string, rows []map[string]any) string {
	allNumeric := func(key string) bool {
		for _, row := range rows {
			if _, ok := numeric(row[key]); !ok {
				return false
			}
		}
		return true
	}
	for _, p := range valueColumnPriority {
		if slices.Contains(columns, p) && allNumeric(p) {
			return p
		}
	}
	for _, key := range columns {
		if allNumeric(key) {
			return key
		}
	}
	return ""
}

func pickLabelColumn(columns []string, valueKey string) string {
	for _, p := range labelColumnPriority {
		if p != valueKey && slices.Contains(columns, p) {
			return p
		}
	}
	for _, key := range columns {
		if key != valueKey {
			return key
		}
	}
	return ""
}

// sortBars orders numeric labels (years) numerically and text labels
// alphabetically. A mix of both keeps the query's own order.
func sortBars(bars []bar) {
	digits, text := 0, 0
	for _, b := range bars {
		if _, err := strconv.ParseUint(b.label, 10, 64); err == nil {
			digits++
		} else {
			text++
		}
	}
	switch {
	case text == 0:
		sort.SliceStable(bars, func(i, j int) bool {
			a, _ := strconv.ParseUint(bars[i].label, 10, 64)
			b, _ := strconv.ParseUint(bars[j].label, 10, 64)
			return a < b
		})
	case digits == 0:
		sort.SliceStable(bars, func(i, j int) bool { return bars[i].label < bars[j].label })
	}
}

func chartNumber(f float64) string {
	if isWhole(f) {
		return groupThousands(f, 0)
	}
	return strconv.FormatFloat(f, 'f', 1, 64)
}
