// File: internal/mcp/toolbox.go

// Package mcp is the tool-calling facade a language model drives. Every
// caller-supplied statement passes the classifier gate before it can reach
// the executor, and every outcome leaves as a CommandResponse.
package mcp

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cypherguard/internal/classifier"
	"github.com/xkilldash9x/cypherguard/internal/graphdb"
	"github.com/xkilldash9x/cypherguard/internal/queryerr"
	"github.com/xkilldash9x/cypherguard/internal/reporting"
	"github.com/xkilldash9x/cypherguard/internal/schema"
	"github.com/xkilldash9x/cypherguard/internal/store"
)

// Tool names accepted by the command bridge.
const (
	ToolCheckSchemaCache   = "check_schema_cache"
	ToolGetSchema          = "get_schema"
	ToolRefreshSchema      = "refresh_schema"
	ToolExecuteQuery       = "execute_query"
	ToolAdvancedAggregate  = "execute_advanced_aggregation"
	ToolChart              = "chart"
	ToolAnalyzeGraphPaths  = "analyze_graph_paths"
	ToolNodeCentrality     = "node_centrality"
	ToolDetectCommunities  = "detect_communities"
	ToolFindSimilarNodes   = "find_similar_nodes"
	ToolClassify           = "classify"
	ToolHistory            = "history"
	noResultsMessage       = "No results found."
	noPathMessage          = "No path found within the hop limit."
	schemaCachedMessage    = "Schema is cached. Use it directly without calling get_schema."
	schemaNotCachedMessage = "No schema cached. Call get_schema first."
)

// Executor runs approved statements. *graphdb.Executor satisfies it.
type Executor interface {
	Execute(ctx context.Context, q classifier.ApprovedQuery) (*graphdb.QueryResult, error)
	Ping(ctx context.Context) error
}

// SchemaCache is the process-wide schema cache. *schema.Cache satisfies it.
type SchemaCache interface {
	IsCached() bool
	Peek() *schema.Snapshot
	GetOrFetch(ctx context.Context) (*schema.Snapshot, error)
	InvalidateAndRefetch(ctx context.Context) (*schema.Snapshot, error)
}

// Recorder persists call history. *store.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, e store.Entry) error
	Recent(ctx context.Context, limit int) ([]store.Entry, error)
}

// Toolbox implements the tools. It is safe for concurrent use; the schema
// cache is the only state shared between calls.
type Toolbox struct {
	exec         Executor
	cache        SchemaCache
	recorder     Recorder
	table        *classifier.Table
	historyLimit int
	log          *zap.Logger
}

// NewToolbox wires the facade. recorder may be nil when auditing is off.
func NewToolbox(exec Executor, cache SchemaCache, recorder Recorder, logger *zap.Logger) *Toolbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Toolbox{
		exec:         exec,
		cache:        cache,
		recorder:     recorder,
		table:        classifier.DefaultTable(),
		historyLimit: store.DefaultRecentLimit,
		log:          logger.Named("toolbox"),
	}
}

// WithHistoryLimit sets the default number of entries "history" returns.
func (t *Toolbox) WithHistoryLimit(n int) *Toolbox {
	if n > 0 {
		t.historyLimit = n
	}
	return t
}

// Ping reports whether the database is reachable.
func (t *Toolbox) Ping(ctx context.Context) error {
	return t.exec.Ping(ctx)
}

// -- Schema tools --

// CheckSchemaCache reports whether a schema is cached without touching the
// database. When one is, it is returned too.
func (t *Toolbox) CheckSchemaCache(ctx context.Context) CommandResponse {
	c := newCall(ToolCheckSchemaCache, false, t.log)
	defer t.finish(ctx, c)

	_ = c.transition(StateExecuting)
	status := CacheStatus{Cached: false}
	msg := schemaNotCachedMessage
	if snap := t.cache.Peek(); snap != nil {
		view := snap.View()
		status = CacheStatus{Cached: true, Schema: &view}
		msg = schemaCachedMessage
	}
	_ = c.transition(StateCompleted)
	return CommandResponse{Status: StatusSuccess, Data: status, Message: msg}
}

// GetSchema returns the cached schema, discovering it on first use.
func (t *Toolbox) GetSchema(ctx context.Context) CommandResponse {
	c := newCall(ToolGetSchema, false, t.log)
	defer t.finish(ctx, c)

	_ = c.transition(StateExecuting)
	wasCached := t.cache.IsCached()
	snap, err := t.cache.GetOrFetch(ctx)
	if err != nil {
		return t.fail(c, err)
	}
	_ = c.transition(StateCompleted)
	return CommandResponse{Status: StatusSuccess, Data: SchemaPayload{View: snap.View(), Cached: wasCached}}
}

// RefreshSchema re-runs discovery. A failed refresh leaves the previous
// schema in place and reports a schema_fetch error.
func (t *Toolbox) RefreshSchema(ctx context.Context) CommandResponse {
	c := newCall(ToolRefreshSchema, false, t.log)
	defer t.finish(ctx, c)

	_ = c.transition(StateExecuting)
	snap, err := t.cache.InvalidateAndRefetch(ctx)
	if err != nil {
		return t.fail(c, err)
	}
	_ = c.transition(StateCompleted)
	return CommandResponse{
		Status:  StatusSuccess,
		Data:    SchemaPayload{View: snap.View(), Cached: false},
		Message: "Schema refreshed from the database.",
	}
}

// -- Query tools --

// emptyResult reports a zero-row success. The result keeps row_count,
// truncated and timing so it cannot be mistaken for a failure.
func emptyResult(res *graphdb.QueryResult, message string) CommandResponse {
	if res.Rows == nil {
		res.Rows = []map[string]any{}
	}
	if res.Columns == nil {
		res.Columns = []string{}
	}
	return CommandResponse{Status: StatusSuccess, Data: QueryPayload{QueryResult: res}, Message: message}
}

// ExecuteQuery classifies and, when allowed, runs a read query.
func (t *Toolbox) ExecuteQuery(ctx context.Context, p QueryParams) CommandResponse {
	c := newCall(ToolExecuteQuery, true, t.log)
	defer t.finish(ctx, c)

	res, resp, ok := t.gateAndRun(ctx, c, classifier.Request{Query: p.Query, Params: p.Params, Prompt: p.Prompt})
	if !ok {
		return resp
	}
	if res.RowCount == 0 {
		return emptyResult(res, noResultsMessage)
	}
	return CommandResponse{
		Status:  StatusSuccess,
		Data:    QueryPayload{QueryResult: res, Suggestions: classifier.Suggest(p.Query)},
		Message: "Query executed successfully.",
	}
}

// ExecuteAdvancedAggregation runs a query and adds a markdown table with
// numeric totals to the rows.
func (t *Toolbox) ExecuteAdvancedAggregation(ctx context.Context, p QueryParams) CommandResponse {
	c := newCall(ToolAdvancedAggregate, true, t.log)
	defer t.finish(ctx, c)

	res, resp, ok := t.gateAndRun(ctx, c, classifier.Request{Query: p.Query, Params: p.Params, Prompt: p.Prompt})
	if !ok {
		return resp
	}
	if res.RowCount == 0 {
		return emptyResult(res, noResultsMessage)
	}
	return CommandResponse{
		Status: StatusSuccess,
		Data: QueryPayload{
			QueryResult: res,
			Suggestions: classifier.Suggest(p.Query),
			Table:       reporting.Table(res.Columns, res.Rows),
		},
	}
}

// Chart runs a query and renders its rows as an ASCII bar chart.
func (t *Toolbox) Chart(ctx context.Context, p ChartParams) CommandResponse {
	c := newCall(ToolChart, true, t.log)
	defer t.finish(ctx, c)

	res, resp, ok := t.gateAndRun(ctx, c, classifier.Request{Query: p.Query, Params: p.Params})
	if !ok {
		return resp
	}
	return CommandResponse{
		Status: StatusSuccess,
		Data:   QueryPayload{QueryResult: res, Chart: reporting.BarChart(res.Columns, res.Rows, p.Title)},
	}
}

// Classify runs the gate without executing and reports what it decided.
func (t *Toolbox) Classify(ctx context.Context, p ClassifyParams) CommandResponse {
	c := newCall(ToolClassify, false, t.log)
	defer t.finish(ctx, c)
	c.query, c.prompt = p.Query, p.Prompt

	if p.Query == "" && p.Prompt == "" {
		return t.invalid(c, "classify requires a query or a prompt")
	}
	_ = c.transition(StateClassifying)

	var payload ClassifyPayload
	if p.Prompt != "" {
		v := t.table.ClassifyIntent(p.Prompt)
		payload.Intent = &v
		payload.Verdict, payload.Pass = v, classifier.PassIntent
	}
	if p.Query != "" {
		v := t.table.ClassifyQuery(p.Query)
		payload.Query = &v
		if payload.Intent == nil || payload.Intent.Allowed {
			payload.Verdict, payload.Pass = v, classifier.PassQuery
		}
		if v.Allowed {
			payload.Suggestions = classifier.Suggest(p.Query)
		}
	}
	payload.Allowed = payload.Verdict.Allowed
	c.classified(payload.Verdict, payload.Pass)

	if payload.Allowed {
		_ = c.transition(StateExecuting)
		_ = c.transition(StateCompleted)
	} else {
		_ = c.transition(StateBlocked)
	}
	return CommandResponse{Status: StatusSuccess, Data: payload}
}

// History returns the most recent audited calls.
func (t *Toolbox) History(ctx context.Context, p HistoryParams) CommandResponse {
	if t.recorder == nil {
		return CommandResponse{
			Status:    StatusError,
			Error:     "query history is not enabled",
			Hint:      "Set audit.enabled and audit.database_url to record call history.",
			ErrorKind: KindInvalidParams,
		}
	}
	limit := p.Limit
	if limit <= 0 {
		limit = t.historyLimit
	}
	entries, err := t.recorder.Recent(ctx, limit)
	if err != nil {
		t.log.Error("Failed to read history", zap.Error(err))
		return CommandResponse{Status: StatusError, Error: "failed to read query history", ErrorKind: KindInternal, Retryable: true}
	}
	return CommandResponse{Status: StatusSuccess, Data: entries}
}

// gateAndRun drives a gated call through CLASSIFYING and EXECUTING. On any
// refusal or failure it returns the response to send and ok=false.
func (t *Toolbox) gateAndRun(ctx context.Context, c *call, req classifier.Request) (*graphdb.QueryResult, CommandResponse, bool) {
	c.query, c.params, c.prompt = req.Query, req.Params, req.Prompt

	if err := c.transition(StateClassifying); err != nil {
		return nil, t.fail(c, err), false
	}
	approved, verdict, pass := t.table.Gate(req)
	c.classified(verdict, pass)
	if !verdict.Allowed {
		_ = c.transition(StateBlocked)
		c.errorKind = string(queryerr.KindBlocked)
		c.log.Info("Query blocked",
			zap.String("pass", string(pass)),
			zap.String("category", string(verdict.Category)),
			zap.String("matched", verdict.MatchedPattern))
		return nil, blockedResponse(verdict), false
	}

	if err := c.transition(StateExecuting); err != nil {
		return nil, t.fail(c, err), false
	}
	res, err := t.exec.Execute(ctx, approved)
	if err != nil {
		return nil, t.fail(c, err), false
	}
	c.rowCount, c.truncated = res.RowCount, res.Truncated
	_ = c.transition(StateCompleted)
	return res, CommandResponse{}, true
}

func blockedResponse(v classifier.Verdict) CommandResponse {
	return CommandResponse{
		Status:         StatusBlocked,
		Error:          v.BlockedReason,
		Hint:           v.Hint,
		ErrorKind:      string(queryerr.KindBlocked),
		MatchedPattern: v.MatchedPattern,
	}
}

// fail moves the call to FAILED and converts err into a response. Raw error
// text only leaves through queryerr's masked messages.
func (t *Toolbox) fail(c *call, err error) CommandResponse {
	if c.state != StateFailed {
		if terr := c.transition(StateFailed); terr != nil {
			c.state = StateFailed
		}
	}

	qe, ok := queryerr.As(err)
	if !ok {
		c.errorKind = KindInternal
		c.log.Error("Unexpected failure", zap.String("error", queryerr.Mask(err.Error())))
		return CommandResponse{Status: StatusError, Error: "internal error", ErrorKind: KindInternal}
	}

	c.errorKind = string(qe.Kind)
	c.log.Warn("Call failed", zap.String("kind", string(qe.Kind)), zap.String("error", qe.Message))
	resp := CommandResponse{
		Status:    StatusError,
		Error:     qe.Message,
		Hint:      qe.Hint,
		ErrorKind: string(qe.Kind),
		Retryable: qe.Retryable,
	}
	if qe.Kind == queryerr.KindBlocked {
		resp.Status = StatusBlocked
	}
	var inner *queryerr.Error
	if qe.Kind == queryerr.KindSchemaFetch && errors.As(qe.Err, &inner) && inner.Kind == queryerr.KindTimeout {
		resp.Message = "Schema discovery timed out."
	}
	return resp
}

func (t *Toolbox) invalid(c *call, msg string) CommandResponse {
	_ = c.transition(StateFailed)
	c.errorKind = KindInvalidParams
	return CommandResponse{Status: StatusError, Error: msg, ErrorKind: KindInvalidParams}
}
