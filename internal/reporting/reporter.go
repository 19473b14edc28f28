// File: internal/reporting/reporter.go

// Package reporting renders query results as text for people: markdown
// tables, ASCII bar charts or indented JSON.
package reporting

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/xkilldash9x/cypherguard/internal/graphdb"
)

// Reporter defines the interface for writing query results to an output.
type Reporter interface {
	// Write renders a single result.
	Write(result *graphdb.QueryResult) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// Formats lists the accepted output formats.
var Formats = []string{"table", "chart", "json"}

// CheckFormat reports an error for a format New would not accept.
func CheckFormat(format string) error {
	if !slices.Contains(Formats, format) {
		return fmt.Errorf("unsupported output format: %s", format)
	}
	return nil
}

// New creates a new reporter based on the specified format and output path.
// title is only used by the chart format.
func New(format, outputPath, title string) (Reporter, error) {
	if err := CheckFormat(format); err != nil {
		return nil, err
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}
	return NewWriter(format, writer, title), nil
}

// NewWriter builds a reporter over an existing writer. It takes ownership of w.
func NewWriter(format string, w io.WriteCloser, title string) Reporter {
	return &textReporter{format: format, w: w, title: title}
}

type textReporter struct {
	format string
	title  string
	w      io.WriteCloser
}

func (r *textReporter) Write(result *graphdb.QueryResult) error {
	if result == nil {
		return fmt.Errorf("nil result")
	}
	var out string
	switch r.format {
	case "table":
		out = Table(result.Columns, result.Rows)
		if result.Truncated {
			out += fmt.Sprintf("\n\n*Results truncated at %d rows.*", result.RowCount)
		}
	case "chart":
		out = BarChart(result.Columns, result.Rows, r.title)
	default:
		b, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		out = string(b)
	}
	if _, err := io.WriteString(r.w, out+"\n"); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func (r *textReporter) Close() error {
	return r.w.Close()
}
