// File: internal/graphdb/convert_test.go
package graphdb

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToJSONSafe_Temporal(t *testing.T) {
	plus2 := time.FixedZone("", 2*60*60)
	instant := time.Date(2024, time.March, 15, 10, 30, 45, 123000000, plus2)

	tests := []struct {
		name   string
		in     any
		want   string
		layout string // when set, the output must parse back to the same wall clock
	}{
		{"date", neo4j.DateOf(instant), "2024-03-15", layoutDate},
		{"local time", neo4j.LocalTimeOf(instant), "10:30:45.123", layoutLocalTime},
		{"time with offset", neo4j.OffsetTimeOf(instant), "10:30:45.123+02:00", layoutTime},
		{"local datetime", neo4j.LocalDateTimeOf(instant), "2024-03-15T10:30:45.123", layoutLocalDateTime},
		{"zoned datetime", instant, "2024-03-15T10:30:45.123+02:00", time.RFC3339Nano},
		{"whole seconds", neo4j.LocalTimeOf(time.Date(0, 1, 1, 8, 0, 0, 0, time.UTC)), "08:00:00", layoutLocalTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toJSONSafe(tt.in)
			s, ok := got.(string)
			require.True(t, ok, "temporal values must serialize as strings, got %T", got)
			assert.Equal(t, tt.want, s)

			parsed, err := time.Parse(tt.layout, s)
			require.NoError(t, err)
			assert.Equal(t, s, parsed.Format(tt.layout), "round trip must be lossless")
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name string
		in   neo4j.Duration
		want string
	}{
		{"zero", neo4j.DurationOf(0, 0, 0, 0), "PT0S"},
		{"months and days", neo4j.DurationOf(14, 3, 0, 0), "P14M3D"},
		{"full", neo4j.DurationOf(1, 2, 3600, 500000000), "P1M2DT3600.5S"},
		{"seconds only", neo4j.DurationOf(0, 0, 90, 0), "PT90S"},
		{"negative", neo4j.DurationOf(0, 0, -5, 0), "PT-5S"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toJSONSafe(tt.in))
		})
	}
}

func TestToJSONSafe_GraphEntities(t *testing.T) {
	alice := neo4j.Node{ElementId: "4:a:1", Labels: []string{"Person"}, Props: map[string]any{
		"name": "Alice",
		"born": neo4j.DateOf(time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC)),
	}}
	bob := neo4j.Node{ElementId: "4:a:2", Labels: []string{"Person"}, Props: map[string]any{"name": "Bob"}}
	knows := neo4j.Relationship{
		ElementId: "5:a:1", Type: "KNOWS",
		StartElementId: "4:a:1", EndElementId: "4:a:2",
		Props: map[string]any{"since": int64(2019)},
	}

	got := toJSONSafe(neo4j.Path{Nodes: []neo4j.Node{alice, bob}, Relationships: []neo4j.Relationship{knows}})
	want := map[string]any{
		"nodes": []any{
			map[string]any{
				"element_id": "4:a:1",
				"labels":     []any{"Person"},
				"properties": map[string]any{"name": "Alice", "born": "1990-01-02"},
			},
			map[string]any{
				"element_id": "4:a:2",
				"labels":     []any{"Person"},
				"properties": map[string]any{"name": "Bob"},
			},
		},
		"relationships": []any{
			map[string]any{
				"element_id":       "5:a:1",
				"type":             "KNOWS",
				"start_element_id": "4:a:1",
				"end_element_id":   "4:a:2",
				"properties":       map[string]any{"since": int64(2019)},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("path conversion mismatch (-want +got):\n%s", diff)
	}
}

func TestToJSONSafe_ScalarsAndCollections(t *testing.T) {
	in := map[string]any{
		"nan":    math.NaN(),
		"inf":    math.Inf(1),
		"ninf":   math.Inf(-1),
		"bytes":  []byte("hi"),
		"point":  neo4j.Point2D{X: 1.5, Y: -2, SpatialRefId: 4326},
		"point3": neo4j.Point3D{X: 1, Y: 2, Z: 3, SpatialRefId: 9157},
		"list":   []any{int64(1), "two", nil, neo4j.DateOf(time.Date(2020, 5, 6, 0, 0, 0, 0, time.UTC))},
		"flag":   true,
		"weird":  struct{ A int }{A: 7},
	}

	got := toJSONSafe(in).(map[string]any)
	assert.Equal(t, "NaN", got["nan"])
	assert.Equal(t, "Infinity", got["inf"])
	assert.Equal(t, "-Infinity", got["ninf"])
	assert.Equal(t, "aGk=", got["bytes"])
	assert.Equal(t, map[string]any{"srid": int64(4326), "x": 1.5, "y": -2.0}, got["point"])
	assert.Equal(t, map[string]any{"srid": int64(9157), "x": 1.0, "y": 2.0, "z": 3.0}, got["point3"])
	assert.Equal(t, []any{int64(1), "two", nil, "2020-05-06"}, got["list"])
	assert.Equal(t, true, got["flag"])
	assert.Equal(t, "{7}", got["weird"])

	// Everything converted must be encodable.
	_, err := json.Marshal(got)
	require.NoError(t, err)
}

func TestConvertRecord(t *testing.T) {
	rec := &neo4j.Record{Keys: []string{"name", "missing"}, Values: []any{"Alice"}}
	assert.Equal(t, map[string]any{"name": "Alice", "missing": nil}, convertRecord(rec))
	assert.Equal(t, map[string]any{}, convertRecord(nil))
}
