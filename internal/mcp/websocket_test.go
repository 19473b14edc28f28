package mcp

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dialInteract(t *testing.T, h *harness, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	srv := httptest.NewServer(NewServer(testServerConfig(), h.toolbox, zap.NewNop()).Router())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/interact"
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	conn, res, err := websocket.DefaultDialer.Dial(url, header)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, res, err
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg WSMessage) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.WriteJSON(msg))
	var reply WSMessage
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func TestInteract(t *testing.T) {
	h := newHarness()
	h.exec.result = returning(customerRows())
	conn, _, err := dialInteract(t, h, "")
	require.NoError(t, err)

	t.Run("user prompt is classified", func(t *testing.T) {
		reply := roundTrip(t, conn, WSMessage{
			Type:      MsgTypeUserPrompt,
			RequestID: "req-1",
			Data:      map[string]any{"prompt": "delete the customer records"},
		})
		assert.Equal(t, MsgTypeAgentResponse, reply.Type)
		assert.Equal(t, "req-1", reply.RequestID)
		assert.NotEmpty(t, reply.Timestamp)

		data, ok := reply.Data["data"].(map[string]any)
		require.True(t, ok, "reply carries the command response")
		assert.Equal(t, false, data["allowed"])
		assert.Equal(t, "intent", data["pass"])
	})

	t.Run("prompt with query checks both", func(t *testing.T) {
		reply := roundTrip(t, conn, WSMessage{
			Type:      MsgTypeUserPrompt,
			RequestID: "req-2",
			Data: map[string]any{
				"prompt": "show me the customers",
				"query":  "MATCH (c:Customer) RETURN c.name AS name",
			},
		})
		data := reply.Data["data"].(map[string]any)
		assert.Equal(t, true, data["allowed"])
		assert.Equal(t, "query", data["pass"])
	})

	t.Run("commands are dispatched", func(t *testing.T) {
		reply := roundTrip(t, conn, WSMessage{
			Type:      MsgTypeCommand,
			RequestID: "req-3",
			Data: map[string]any{
				"command": "execute_query",
				"params":  map[string]any{"query": "MATCH (c:Customer) RETURN c.name AS name"},
			},
		})
		assert.Equal(t, MsgTypeAgentResponse, reply.Type)
		assert.Equal(t, StatusSuccess, reply.Data["status"])
		assert.Len(t, h.exec.calls(), 1)
	})

	t.Run("empty prompt is an error", func(t *testing.T) {
		reply := roundTrip(t, conn, WSMessage{Type: MsgTypeUserPrompt, RequestID: "req-4", Data: map[string]any{"prompt": "  "}})
		assert.Equal(t, MsgTypeSystemError, reply.Type)
		assert.Equal(t, "req-4", reply.RequestID)
	})

	t.Run("integer parameters stay integers", func(t *testing.T) {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(
			`{"type":"command","request_id":"req-5","data":{"command":"execute_query",`+
				`"params":{"query":"MATCH (c:Customer) RETURN c.name AS name LIMIT $n","params":{"n":5,"id":9007199254740993}}}}`)))
		var reply WSMessage
		require.NoError(t, conn.ReadJSON(&reply))
		require.Equal(t, StatusSuccess, reply.Data["status"])

		calls := h.exec.calls()
		params := calls[len(calls)-1].Params()
		assert.Equal(t, int64(5), params["n"])
		assert.Equal(t, int64(9007199254740993), params["id"])
	})

	t.Run("malformed frames are reported", func(t *testing.T) {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":`)))
		var reply WSMessage
		require.NoError(t, conn.ReadJSON(&reply))
		assert.Equal(t, MsgTypeSystemError, reply.Type)
	})

	t.Run("unknown message types are rejected", func(t *testing.T) {
		reply := roundTrip(t, conn, WSMessage{Type: "status_update"})
		assert.Equal(t, MsgTypeSystemError, reply.Type)
		assert.NotEmpty(t, reply.RequestID, "a request id is assigned when missing")
		assert.Contains(t, reply.Data["error"], "status_update")
	})
}

func TestInteract_RejectsForeignOrigins(t *testing.T) {
	_, res, err := dialInteract(t, newHarness(), "http://evil.example")
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}
