// File: internal/graphdb/convert.go
package graphdb

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Layouts for the temporal types. Fractional seconds are printed only to
// the precision stored.
const (
	layoutDate          = "2006-01-02"
	layoutLocalTime     = "15:04:05.999999999"
	layoutTime          = "15:04:05.999999999Z07:00"
	layoutLocalDateTime = "2006-01-02T15:04:05.999999999"
)

// convertRecord turns one driver record into a column->value row.
func convertRecord(rec *neo4j.Record) map[string]any {
	if rec == nil {
		return map[string]any{}
	}
	row := make(map[string]any, len(rec.Keys))
	for i, key := range rec.Keys {
		if i < len(rec.Values) {
			row[key] = toJSONSafe(rec.Values[i])
		} else {
			row[key] = nil
		}
	}
	return row
}

// toJSONSafe converts a driver value into strings, numbers, booleans, nil,
// []any and map[string]any. Temporal values become ISO-8601 strings and
// graph entities become plain maps, so nothing driver-specific escapes.
func toJSONSafe(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool, string, int64, int, int32:
		return x
	case float64:
		return safeFloat(x)
	case []byte:
		return base64.StdEncoding.EncodeToString(x)

	case neo4j.Date:
		return x.Time().Format(layoutDate)
	case neo4j.LocalTime:
		return x.Time().Format(layoutLocalTime)
	case neo4j.Time:
		return x.Time().Format(layoutTime)
	case neo4j.LocalDateTime:
		return x.Time().Format(layoutLocalDateTime)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case neo4j.Duration:
		return formatDuration(x)

	case neo4j.Point2D:
		return map[string]any{"srid": int64(x.SpatialRefId), "x": safeFloat(x.X), "y": safeFloat(x.Y)}
	case neo4j.Point3D:
		return map[string]any{"srid": int64(x.SpatialRefId), "x": safeFloat(x.X), "y": safeFloat(x.Y), "z": safeFloat(x.Z)}

	case neo4j.Node:
		return nodeMap(x)
	case neo4j.Relationship:
		return relationshipMap(x)
	case neo4j.Path:
		nodes := make([]any, len(x.Nodes))
		for i, n := range x.Nodes {
			nodes[i] = nodeMap(n)
		}
		rels := make([]any, len(x.Relationships))
		for i, r := range x.Relationships {
			rels[i] = relationshipMap(r)
		}
		return map[string]any{"nodes": nodes, "relationships": rels}

	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = toJSONSafe(item)
		}
		return out
	case map[string]any:
		return convertMap(x)
	default:
		return fmt.Sprint(x)
	}
}

func nodeMap(n neo4j.Node) map[string]any {
	labels := make([]any, len(n.Labels))
	for i, l := range n.Labels {
		labels[i] = l
	}
	return map[string]any{
		"element_id": n.ElementId,
		"labels":     labels,
		"properties": convertMap(n.Props),
	}
}

func relationshipMap(r neo4j.Relationship) map[string]any {
	return map[string]any{
		"element_id":       r.ElementId,
		"type":             r.Type,
		"start_element_id": r.StartElementId,
		"end_element_id":   r.EndElementId,
		"properties":       convertMap(r.Props),
	}
}

func convertMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = toJSONSafe(v)
	}
	return out
}

// safeFloat keeps NaN and the infinities representable in JSON.
func safeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return f
}

// formatDuration renders a duration as ISO-8601 "P{months}M{days}DT{seconds}S",
// the form the database itself prints. Zero components are omitted.
func formatDuration(d neo4j.Duration) string {
	var b strings.Builder
	b.WriteByte('P')
	if d.Months != 0 {
		b.WriteString(strconv.FormatInt(d.Months, 10) + "M")
	}
	if d.Days != 0 {
		b.WriteString(strconv.FormatInt(d.Days, 10) + "D")
	}

	totalNanos := d.Seconds*int64(time.Second) + int64(d.Nanos)
	if totalNanos != 0 || (d.Months == 0 && d.Days == 0) {
		b.WriteByte('T')
		if totalNanos < 0 {
			b.WriteByte('-')
			totalNanos = -totalNanos
		}
		secs := totalNanos / int64(time.Second)
		frac := totalNanos % int64(time.Second)
		b.WriteString(strconv.FormatInt(secs, 10))
		if frac != 0 {
			fs := strings.TrimRight(fmt.Sprintf("%09d", frac), "0")
			b.WriteString("." + fs)
		}
		b.WriteByte('S')
	}
	return b.String()
}
