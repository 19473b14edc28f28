// File: internal/mcp/params.go
package mcp

import (
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// numberJSON decodes JSON numbers as exact literals so integral query
// parameters reach Neo4j as integers (LIMIT $n rejects 5.0) and large IDs
// keep every digit.
var numberJSON = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// jsonNumber is satisfied by json.Number and jsoniter.Number.
type jsonNumber interface {
	String() string
	Int64() (int64, error)
	Float64() (float64, error)
}

// numberNormalizer is implemented by parameter structs carrying untyped values.
type numberNormalizer interface {
	normalizeNumbers()
}

// normalizeNumbers replaces decoded JSON numbers, recursively, with int64
// when the literal is integral and float64 otherwise.
func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case jsonNumber:
		if n, err := strconv.ParseInt(x.String(), 10, 64); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalizeNumbers(e)
		}
		return x
	default:
		return v
	}
}

func normalizeParamMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return normalizeNumbers(m).(map[string]any)
}

func (p *QueryParams) normalizeNumbers() { p.Params = normalizeParamMap(p.Params) }

func (p *ChartParams) normalizeNumbers() { p.Params = normalizeParamMap(p.Params) }

func (p *PathParams) normalizeNumbers() {
	p.StartValue = normalizeNumbers(p.StartValue)
	p.EndValue = normalizeNumbers(p.EndValue)
}

func (p *SimilarityParams) normalizeNumbers() { p.Value = normalizeNumbers(p.Value) }

// mapToStruct converts loosely typed tool parameters into T.
func mapToStruct[T any](m map[string]any) (T, error) {
	var result T
	if m == nil {
		return result, nil
	}
	data, err := numberJSON.Marshal(m)
	if err != nil {
		return result, err
	}
	if err := numberJSON.Unmarshal(data, &result); err != nil {
		return result, err
	}
	if n, ok := any(&result).(numberNormalizer); ok {
		n.normalizeNumbers()
	}
	return result, nil
}
