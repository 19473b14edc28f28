// File: internal/reporting/format_test.go
package reporting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		keep  int
		want  string
	}{
		{"fits", "Alice", 5, 2, "Alice"},
		{"shortened", "Alexandria", 6, 3, "Ale..."},
		{"multibyte", "Zürich-Nord", 4, 2, "Zü..."},
		{"negative keep", "abcdef", 3, -1, "..."},
		{"keep past end", "abcdef", 3, 10, "abcdef..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncateRunes(tt.in, tt.limit, tt.keep))
		})
	}
}

func TestDisplayAndNumeric(t *testing.T) {
	assert.Equal(t, "", display(nil))
	assert.Equal(t, "12", display(int64(12)))
	assert.Equal(t, "1.5", display(1.5))
	assert.Equal(t, `["a"]`, display([]any{"a"}))

	f, ok := numeric(int64(3))
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)
	_, ok = numeric(true)
	assert.False(t, ok)
}
