// File: internal/mcp/types.go
package mcp

import (
	"github.com/xkilldash9x/cypherguard/internal/classifier"
	"github.com/xkilldash9x/cypherguard/internal/graphdb"
	"github.com/xkilldash9x/cypherguard/internal/schema"
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusBlocked = "blocked"
	StatusError   = "error"
)

// Facade-level error kinds that are not query failures.
const (
	KindInvalidParams  = "invalid_params"
	KindUnknownCommand = "unknown_command"
	KindRateLimited    = "rate_limited"
	KindInternal       = "internal"
)

// CommandRequest defines the structure of the incoming JSON request from the agent.
type CommandRequest struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params"`
}

// CommandResponse defines the structure of the outgoing JSON response to the agent.
// Data and Error are never both set.
type CommandResponse struct {
	Status         string `json:"status"` // "success", "blocked", "error"
	Data           any    `json:"data,omitempty"`
	Error          string `json:"error,omitempty"`
	Hint           string `json:"hint,omitempty"`
	ErrorKind      string `json:"error_kind,omitempty"`
	Retryable      bool   `json:"retryable,omitempty"`
	MatchedPattern string `json:"matched_pattern,omitempty"`
	Message        string `json:"message,omitempty"`
}

// QueryParams defines parameters for "execute_query" and "execute_advanced_aggregation".
type QueryParams struct {
	Query  string         `json:"query"`
	Params map[string]any `json:"params,omitempty"`
	// Prompt is the natural-language request the query was generated from.
	Prompt string `json:"prompt,omitempty"`
}

// ChartParams defines parameters for the "chart" command.
type ChartParams struct {
	Query  string         `json:"query"`
	Params map[string]any `json:"params,omitempty"`
	Title  string         `json:"title,omitempty"`
}

// PathParams defines parameters for "analyze_graph_paths". Nodes are
// identified by label and a property value; values are bound as parameters.
type PathParams struct {
	StartLabel    string   `json:"start_label"`
	StartProperty string   `json:"start_property"`
	StartValue    any      `json:"start_value"`
	EndLabel      string   `json:"end_label"`
	EndProperty   string   `json:"end_property"`
	EndValue      any      `json:"end_value"`
	MaxHops       int      `json:"max_hops,omitempty"`
	RelTypes      []string `json:"relationship_types,omitempty"`
}

// CentralityParams defines parameters for "node_centrality".
type CentralityParams struct {
	Label   string `json:"label,omitempty"`
	RelType string `json:"relationship_type,omitempty"`
	// Type is one of degree, in_degree, out_degree, betweenness, pagerank.
	// Defaults to degree.
	Type  string `json:"type,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// CommunityParams defines parameters for "detect_communities".
type CommunityParams struct {
	Label string `json:"label,omitempty"`
	// Method is triangles (default) or density.
	Method  string `json:"method,omitempty"`
	MinSize int    `json:"min_community_size,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

// SimilarityParams defines parameters for "find_similar_nodes". The reference
// node is the first node with Label whose Property equals Value.
type SimilarityParams struct {
	Label    string `json:"label"`
	Property string `json:"property"`
	Value    any    `json:"value"`
	// TargetLabel restricts candidates. Defaults to Label.
	TargetLabel string `json:"target_label,omitempty"`
	// Type is one of properties (default), connections, neighborhood.
	Type  string `json:"type,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// ClassifyParams defines parameters for the "classify" command.
type ClassifyParams struct {
	Query  string `json:"query,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

// HistoryParams defines parameters for the "history" command.
type HistoryParams struct {
	Limit int `json:"limit,omitempty"`
}

// SchemaPayload is the data of the schema tools.
type SchemaPayload struct {
	schema.View
	Cached bool `json:"cached"`
}

// CacheStatus is the data of "check_schema_cache".
type CacheStatus struct {
	Cached bool         `json:"cached"`
	Schema *schema.View `json:"schema,omitempty"`
}

// QueryPayload is the data of a successful query tool call.
type QueryPayload struct {
	*graphdb.QueryResult
	Suggestions []string `json:"suggestions,omitempty"`
	Table       string   `json:"table,omitempty"`
	Chart       string   `json:"chart,omitempty"`
}

// ClassifyPayload reports both passes without executing anything.
type ClassifyPayload struct {
	Allowed     bool                `json:"allowed"`
	Pass        classifier.Pass     `json:"pass"`
	Verdict     classifier.Verdict  `json:"verdict"`
	Intent      *classifier.Verdict `json:"intent,omitempty"`
	Query       *classifier.Verdict `json:"query,omitempty"`
	Suggestions []string            `json:"suggestions,omitempty"`
}
