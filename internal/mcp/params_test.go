package mcp

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMapToStruct_KeepsIntegers(t *testing.T) {
	p, err := mapToStruct[QueryParams](map[string]any{
		"query": "MATCH (n) RETURN n SKIP $skip LIMIT $n",
		"params": map[string]any{
			"n":       float64(5),
			"skip":    int64(10),
			"ratio":   0.25,
			"ids":     []any{float64(1), float64(2)},
			"nested":  map[string]any{"depth": float64(3)},
			"name":    "Acme",
			"missing": nil,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"n":       int64(5),
		"skip":    int64(10),
		"ratio":   0.25,
		"ids":     []any{int64(1), int64(2)},
		"nested":  map[string]any{"depth": int64(3)},
		"name":    "Acme",
		"missing": nil,
	}, p.Params)
}

func TestMapToStruct_PathValues(t *testing.T) {
	p, err := mapToStruct[PathParams](map[string]any{"start_value": float64(42), "end_value": "Widget"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.StartValue)
	assert.Equal(t, "Widget", p.EndValue)
}

func TestNormalizeNumbers(t *testing.T) {
	var decoded map[string]any
	require.NoError(t, numberJSON.UnmarshalFromString(`{"a":9007199254740993,"b":1.5,"c":1e3,"d":-7}`, &decoded))
	got := normalizeParamMap(decoded)
	assert.Equal(t, int64(9007199254740993), got["a"])
	assert.Equal(t, 1.5, got["b"])
	assert.Equal(t, 1000.0, got["c"])
	assert.Equal(t, int64(-7), got["d"])
	assert.Nil(t, normalizeParamMap(nil))
}

func TestHandleCommand_IntegerParams(t *testing.T) {
	h := newHarness()
	router := NewServer(testServerConfig(), h.toolbox, zap.NewNop()).Router()

	res, resp := postCommand(t, router, `{"command":"execute_query","params":{
		"query":"MATCH (c:Customer) RETURN c.name AS name LIMIT $n",
		"params":{"n":5,"id":9007199254740993,"score":2.5}}}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, StatusSuccess, resp.Status)

	calls := h.exec.calls()
	require.Len(t, calls, 1)
	params := calls[0].Params()
	assert.IsType(t, int64(0), params["n"])
	assert.Equal(t, int64(5), params["n"])
	assert.Equal(t, int64(9007199254740993), params["id"])
	assert.Equal(t, 2.5, params["score"])
}
