// File: internal/mcp/handlers.go
package mcp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cypherguard/internal/queryerr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const healthTimeout = 5 * time.Second

// Handlers manages the HTTP request handling for the tool bridge.
type Handlers struct {
	log     *zap.Logger
	toolbox *Toolbox
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(logger *zap.Logger, toolbox *Toolbox) *Handlers {
	return &Handlers{
		log:     logger.Named("mcp_handlers"),
		toolbox: toolbox,
	}
}

// RegisterRoutes sets up the HTTP routes. WebSocket routes are registered by the Server.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	// Unversioned operational endpoints
	r.Get("/healthz", h.HandleHealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/command", h.HandleCommand)
	})
}

// HandleHealthCheck reports whether the graph database is reachable.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := h.toolbox.Ping(ctx); err != nil {
		h.log.Warn("Health check failed", zap.String("error", queryerr.Mask(err.Error())))
		h.respond(w, http.StatusServiceUnavailable, CommandResponse{
			Status:    StatusError,
			Error:     "graph database unreachable",
			ErrorKind: string(queryerr.KindConnection),
			Retryable: true,
		})
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// HandleCommand is the main entry point for tool calls from the agent.
func (h *Handlers) HandleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := numberJSON.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, CommandResponse{
			Status:    StatusError,
			Error:     fmt.Sprintf("Invalid request body: %v", err),
			ErrorKind: KindInvalidParams,
		})
		return
	}

	command := strings.ToLower(strings.TrimSpace(req.Command))
	h.log.Info("Received command", zap.String("command", command))

	resp := h.Dispatch(r.Context(), command, req.Params)
	h.respond(w, httpStatusFor(resp), resp)
}

// Dispatch routes a tool call by name. It is shared by the HTTP and CLI surfaces.
func (h *Handlers) Dispatch(ctx context.Context, command string, params map[string]any) CommandResponse {
	tb := h.toolbox
	switch command {
	case ToolCheckSchemaCache:
		return tb.CheckSchemaCache(ctx)
	case ToolGetSchema:
		return tb.GetSchema(ctx)
	case ToolRefreshSchema:
		return tb.RefreshSchema(ctx)
	case ToolExecuteQuery:
		return withParams(params, command, func(p QueryParams) CommandResponse { return tb.ExecuteQuery(ctx, p) })
	case ToolAdvancedAggregate:
		return withParams(params, command, func(p QueryParams) CommandResponse { return tb.ExecuteAdvancedAggregation(ctx, p) })
	case ToolChart:
		return withParams(params, command, func(p ChartParams) CommandResponse { return tb.Chart(ctx, p) })
	case ToolAnalyzeGraphPaths:
		return withParams(params, command, func(p PathParams) CommandResponse { return tb.AnalyzeGraphPaths(ctx, p) })
	case ToolNodeCentrality:
		return withParams(params, command, func(p CentralityParams) CommandResponse { return tb.NodeCentrality(ctx, p) })
	case ToolDetectCommunities:
		return withParams(params, command, func(p CommunityParams) CommandResponse { return tb.DetectCommunities(ctx, p) })
	case ToolFindSimilarNodes:
		return withParams(params, command, func(p SimilarityParams) CommandResponse { return tb.FindSimilarNodes(ctx, p) })
	case ToolClassify:
		return withParams(params, command, func(p ClassifyParams) CommandResponse { return tb.Classify(ctx, p) })
	case ToolHistory:
		return withParams(params, command, func(p HistoryParams) CommandResponse { return tb.History(ctx, p) })
	case "ping":
		return CommandResponse{Status: StatusSuccess, Data: map[string]string{"message": "pong"}}
	default:
		return CommandResponse{
			Status:    StatusError,
			Error:     fmt.Sprintf("Unknown command: %s", command),
			ErrorKind: KindUnknownCommand,
		}
	}
}

func withParams[T any](m map[string]any, command string, fn func(T) CommandResponse) CommandResponse {
	p, err := mapToStruct[T](m)
	if err != nil {
		return CommandResponse{
			Status:    StatusError,
			Error:     fmt.Sprintf("Invalid parameters for %s: %v", command, err),
			ErrorKind: KindInvalidParams,
		}
	}
	return fn(p)
}

// httpStatusFor maps a response onto an HTTP status code.
func httpStatusFor(resp CommandResponse) int {
	if resp.Status == StatusSuccess {
		return http.StatusOK
	}
	switch resp.ErrorKind {
	case string(queryerr.KindBlocked):
		return http.StatusUnprocessableEntity
	case string(queryerr.KindMalformed), KindInvalidParams, KindUnknownCommand:
		return http.StatusBadRequest
	case string(queryerr.KindTimeout):
		return http.StatusGatewayTimeout
	case string(queryerr.KindConnection), string(queryerr.KindSchemaFetch):
		return http.StatusServiceUnavailable
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// respond sends a standardized JSON response.
func (h *Handlers) respond(w http.ResponseWriter, statusCode int, resp CommandResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}
