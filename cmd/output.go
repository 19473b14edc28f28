// File: cmd/output.go
package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/cypherguard/internal/mcp"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Exit codes returned by main.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitBlocked = 2
)

// responseError carries a non-success tool response out of a command.
type responseError struct {
	resp mcp.CommandResponse
}

func (e *responseError) Error() string {
	var b strings.Builder
	b.WriteString(e.resp.Status)
	if e.resp.ErrorKind != "" && e.resp.ErrorKind != e.resp.Status {
		b.WriteString(" (" + e.resp.ErrorKind + ")")
	}
	b.WriteString(": " + e.resp.Error)
	if e.resp.MatchedPattern != "" {
		fmt.Fprintf(&b, " [matched %q]", e.resp.MatchedPattern)
	}
	if e.resp.Hint != "" {
		b.WriteString("\nhint: " + e.resp.Hint)
	}
	return b.String()
}

func checkResponse(resp mcp.CommandResponse) error {
	if resp.Status == mcp.StatusSuccess {
		return nil
	}
	return &responseError{resp: resp}
}

// ExitCode maps a command error onto the process exit status. Refused
// statements exit with ExitBlocked so scripts can tell them apart.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var re *responseError
	if errors.As(err, &re) && re.resp.Status == mcp.StatusBlocked {
		return ExitBlocked
	}
	return ExitFailure
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// parseParams turns key=value flags into query parameters. Values that
// parse as JSON keep their JSON type; anything else is a string.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q; use key=value", pair)
		}
		params[key] = parseValue(raw)
	}
	return params, nil
}

func parseValue(raw string) any {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
