// File: internal/mcp/state.go
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cypherguard/internal/classifier"
	"github.com/xkilldash9x/cypherguard/internal/observability"
	"github.com/xkilldash9x/cypherguard/internal/store"
)

// CallState is the lifecycle position of one tool call.
type CallState string

const (
	StateReceived    CallState = "RECEIVED"
	StateClassifying CallState = "CLASSIFYING"
	StateBlocked     CallState = "BLOCKED"
	StateExecuting   CallState = "EXECUTING"
	StateCompleted   CallState = "COMPLETED"
	StateFailed      CallState = "FAILED"
)

var transitions = map[CallState][]CallState{
	StateReceived:    {StateClassifying, StateExecuting, StateFailed},
	StateClassifying: {StateBlocked, StateExecuting, StateFailed},
	StateExecuting:   {StateCompleted, StateFailed},
}

func (s CallState) terminal() bool {
	return s == StateBlocked || s == StateCompleted || s == StateFailed
}

// call tracks one tool invocation from receipt to its terminal state.
// It is owned by a single goroutine.
type call struct {
	id    string
	tool  string
	state CallState
	// gated calls run caller-supplied statements and may only execute after
	// an allow verdict. Schema tools run constant statements and are not gated.
	gated   bool
	started time.Time
	log     *zap.Logger

	query   string
	params  map[string]any
	prompt  string
	pass    classifier.Pass
	verdict *classifier.Verdict

	rowCount  int
	truncated bool
	errorKind string
}

func newCall(tool string, gated bool, logger *zap.Logger) *call {
	id := uuid.NewString()
	return &call{
		id:      id,
		tool:    tool,
		state:   StateReceived,
		gated:   gated,
		started: time.Now(),
		log:     logger.With(zap.String("call_id", id), zap.String("tool", tool)),
	}
}

// transition moves the call to next. Illegal moves are refused and logged.
func (c *call) transition(next CallState) error {
	allowed := false
	for _, s := range transitions[c.state] {
		if s == next {
			allowed = true
			break
		}
	}
	if allowed && next == StateExecuting && c.gated && (c.verdict == nil || !c.verdict.Allowed) {
		allowed = false
	}
	if !allowed {
		c.log.Error("Refused illegal call state transition",
			zap.String("from", string(c.state)), zap.String("to", string(next)))
		return fmt.Errorf("illegal call state transition %s -> %s", c.state, next)
	}
	c.state = next
	return nil
}

func (c *call) classified(v classifier.Verdict, pass classifier.Pass) {
	c.verdict = &v
	c.pass = pass
	outcome := "allow"
	if !v.Allowed {
		outcome = "block"
	}
	observability.ClassifierVerdicts.WithLabelValues(string(pass), outcome).Inc()
}

func (c *call) entry() store.Entry {
	e := store.Entry{
		CallID:     c.id,
		CreatedAt:  c.started,
		Tool:       c.tool,
		State:      string(c.state),
		Pass:       string(c.pass),
		Query:      c.query,
		Prompt:     c.prompt,
		Allowed:    c.verdict == nil || c.verdict.Allowed,
		ErrorKind:  c.errorKind,
		RowCount:   c.rowCount,
		Truncated:  c.truncated,
		DurationMs: float64(time.Since(c.started).Microseconds()) / 1000.0,
	}
	if c.verdict != nil {
		e.Category = string(c.verdict.Category)
		e.MatchedPattern = c.verdict.MatchedPattern
		e.BlockedReason = c.verdict.BlockedReason
	}
	if len(c.params) > 0 {
		if b, err := json.Marshal(c.params); err == nil {
			e.Params = b
		}
	}
	return e
}

const auditTimeout = 5 * time.Second

// finish records the terminal state in metrics and, when configured, the
// audit store. Audit failures are logged and never change the response.
func (t *Toolbox) finish(ctx context.Context, c *call) {
	if !c.state.terminal() {
		c.log.Error("Call finished in a non-terminal state", zap.String("state", string(c.state)))
		c.errorKind = KindInternal
		c.state = StateFailed
	}
	observability.ToolCalls.WithLabelValues(c.tool, string(c.state)).Inc()
	c.log.Debug("Call finished", zap.String("state", string(c.state)), zap.Duration("elapsed", time.Since(c.started)))

	if t.recorder == nil {
		return
	}
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := t.recorder.Record(auditCtx, c.entry()); err != nil {
		c.log.Warn("Failed to record call in audit store", zap.Error(err))
	}
}
