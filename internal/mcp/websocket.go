// File: internal/mcp/websocket.go
package mcp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType defines the kind of message sent over the interaction socket.
type MessageType string

const (
	MsgTypeUserPrompt    MessageType = "user_prompt"
	MsgTypeCommand       MessageType = "command"
	MsgTypeAgentResponse MessageType = "agent_response"
	MsgTypeSystemError   MessageType = "system_error"
)

// WSMessage is the envelope for every frame on the interaction socket.
type WSMessage struct {
	Type      MessageType    `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp string         `json:"timestamp"`
	// RequestID correlates a response with the message that caused it.
	RequestID string `json:"request_id,omitempty"`
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
	// Send buffer size
	sendChannelSize = 256
)

// wsClient represents a single active WebSocket connection.
type wsClient struct {
	server *Server
	conn   *websocket.Conn
	// Buffered channel of outgoing messages. The writePump reads from this.
	send chan WSMessage

	ctx     context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return s.originAllowed(r.Header.Get("Origin"))
		},
	}
}

// handleInteract upgrades the connection and runs its pumps until the peer
// goes away.
func (s *Server) handleInteract() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		up := s.upgrader()
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written an HTTP error.
			s.logger.Error("Failed to upgrade connection to WebSocket", zap.Error(err))
			return
		}
		s.logger.Info("WebSocket connection established", zap.String("remoteAddr", r.RemoteAddr))

		ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
		client := &wsClient{
			server: s,
			conn:   conn,
			send:   make(chan WSMessage, sendChannelSize),
			ctx:    ctx,
			cancel: cancel,
		}

		go client.writePump()
		client.readPump()

		// Stop in-flight work, then let the writer drain and close.
		client.cancel()
		client.pending.Wait()
		close(client.send)
		s.logger.Debug("WebSocket interaction finished", zap.String("remoteAddr", r.RemoteAddr))
	}
}

// readPump reads frames until the connection closes or times out.
func (c *wsClient) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.server.logger.Error("Failed to set initial read deadline", zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.logger.Warn("WebSocket closed unexpectedly", zap.Error(err))
			} else {
				c.server.logger.Info("WebSocket connection closed.")
			}
			return
		}
		var msg WSMessage
		if err := numberJSON.Unmarshal(frame, &msg); err != nil {
			c.sendError("", "Malformed message: expected a JSON object.")
			continue
		}
		c.server.logger.Debug("Received message from client",
			zap.String("type", string(msg.Type)), zap.String("requestID", msg.RequestID))
		c.processMessage(msg)
	}
}

// writePump owns every write to the connection and keeps it alive with pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.server.logger.Warn("Error writing message to WebSocket", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) processMessage(msg WSMessage) {
	if msg.RequestID == "" {
		msg.RequestID = uuid.NewString()
	}
	if c.server.limiter != nil && !c.server.limiter.Allow() {
		c.sendError(msg.RequestID, "rate limit exceeded")
		return
	}

	switch msg.Type {
	case MsgTypeUserPrompt:
		prompt, _ := msg.Data["prompt"].(string)
		query, _ := msg.Data["query"].(string)
		if strings.TrimSpace(prompt) == "" && strings.TrimSpace(query) == "" {
			c.sendError(msg.RequestID, "user_prompt requires a non-empty 'prompt' or 'query'.")
			return
		}
		c.async(msg.RequestID, func(ctx context.Context) CommandResponse {
			return c.server.toolbox.Classify(ctx, ClassifyParams{Prompt: prompt, Query: query})
		})

	case MsgTypeCommand:
		command, _ := msg.Data["command"].(string)
		params, _ := msg.Data["params"].(map[string]any)
		if command == "" {
			c.sendError(msg.RequestID, "command message requires a 'command' field.")
			return
		}
		command = strings.ToLower(strings.TrimSpace(command))
		c.async(msg.RequestID, func(ctx context.Context) CommandResponse {
			return c.server.handlers.Dispatch(ctx, command, params)
		})

	default:
		c.server.logger.Warn("Received unknown message type from client", zap.String("type", string(msg.Type)))
		c.sendError(msg.RequestID, fmt.Sprintf("Unknown or unsupported message type: %s", msg.Type))
	}
}

// async runs fn off the read loop so pongs and close frames keep flowing.
func (c *wsClient) async(requestID string, fn func(ctx context.Context) CommandResponse) {
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		resp := fn(c.ctx)
		data, err := toMap(resp)
		if err != nil {
			c.sendError(requestID, "failed to encode response")
			return
		}
		c.sendMessage(MsgTypeAgentResponse, requestID, data)
	}()
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// sendMessage queues a message for the writePump. A full buffer drops it.
func (c *wsClient) sendMessage(msgType MessageType, requestID string, data map[string]any) {
	msg := WSMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: requestID,
	}
	select {
	case c.send <- msg:
	default:
		c.server.logger.Error("WebSocket send buffer full, dropping message.",
			zap.String("requestID", requestID), zap.String("type", string(msgType)))
	}
}

func (c *wsClient) sendError(requestID, errorMessage string) {
	c.sendMessage(MsgTypeSystemError, requestID, map[string]any{"error": errorMessage})
}
