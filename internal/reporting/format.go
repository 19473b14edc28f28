// File: internal/reporting/format.go
package reporting

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// display renders a cell value the way a reader expects to see it in text.
func display(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		s, err := json.MarshalToString(x)
		if err != nil {
			return ""
		}
		return s
	}
}

// numeric reports v as a float when it is a number. Booleans are not numbers.
func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// groupThousands formats f with the given number of decimals and comma
// separated thousands.
func groupThousands(f float64, decimals int) string {
	s := strconv.FormatFloat(math.Abs(f), 'f', decimals, 64)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	if frac != "" {
		b.WriteString("." + frac)
	}
	if f < 0 && strings.ContainsAny(s, "123456789") {
		return "-" + b.String()
	}
	return b.String()
}

func isWhole(f float64) bool { return f == math.Trunc(f) }

// truncateRunes shortens s to limit runes, replacing the tail with "...".
func truncateRunes(s string, limit, keep int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	keep = min(max(keep, 0), len(r))
	return string(r[:keep]) + "..."
}
