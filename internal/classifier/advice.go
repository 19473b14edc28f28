package classifier

import (
	"regexp"
	"strings"
)

var (
	reAnonymousMatch = regexp.MustCompile(`match\s*\(\s*\w*\s*\)`)
	reEqualityFilter = regexp.MustCompile(`where\s+\w+\.\w+\s*=`)
	reAggregate      = regexp.MustCompile(`\b(sum|avg|count|max|min|collect)\s*\(`)
)

// Suggest returns optimization hints for a read query. It never blocks.
func Suggest(query string) []string {
	q, ok := normalize(query, " ")
	if !ok {
		return nil
	}
	var out []string
	aggregates := reAggregate.MatchString(q)
	if !strings.Contains(q, "limit") && !aggregates {
		out = append(out, "Consider adding LIMIT clause to prevent large result sets")
	}
	if reAnonymousMatch.MatchString(q) && !strings.Contains(q, "where") {
		out = append(out, "Consider adding WHERE clause to filter results")
	}
	if reEqualityFilter.MatchString(q) {
		out = append(out, "Ensure indexes exist on filtered properties for better performance")
	}
	if aggregates && !strings.Contains(q, " with ") {
		out = append(out, "Consider using WITH clause for complex aggregations")
	}
	return out
}
