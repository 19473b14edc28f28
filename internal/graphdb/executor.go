// File: internal/graphdb/executor.go
package graphdb

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cypherguard/internal/classifier"
	"github.com/xkilldash9x/cypherguard/internal/config"
	"github.com/xkilldash9x/cypherguard/internal/observability"
	"github.com/xkilldash9x/cypherguard/internal/queryerr"
)

const (
	DefaultRowCap         = 1000
	DefaultQueryTimeout   = 30 * time.Second
	DefaultAcquireTimeout = 10 * time.Second

	sessionCloseTimeout = 5 * time.Second
)

// Options bounds every statement the executor runs.
type Options struct {
	RowCap               int
	QueryTimeout         time.Duration
	AcquireTimeout       time.Duration
	MaxRetries           int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	SampleProperties     bool
}

// OptionsFromConfig collects executor options from the loaded configuration.
func OptionsFromConfig(cfg config.Interface) Options {
	return Options{
		RowCap:               cfg.Executor().RowCap,
		QueryTimeout:         cfg.Neo4j().QueryTimeout,
		AcquireTimeout:       cfg.Neo4j().AcquireTimeout,
		MaxRetries:           cfg.Executor().MaxRetries,
		RetryInitialInterval: cfg.Executor().RetryInitialInterval,
		RetryMaxInterval:     cfg.Executor().RetryMaxInterval,
		SampleProperties:     cfg.Schema().SampleProperties,
	}
}

func (o Options) withDefaults() Options {
	if o.RowCap <= 0 {
		o.RowCap = DefaultRowCap
	}
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = DefaultQueryTimeout
	}
	if o.AcquireTimeout <= 0 {
		o.AcquireTimeout = DefaultAcquireTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryInitialInterval <= 0 {
		o.RetryInitialInterval = 200 * time.Millisecond
	}
	if o.RetryMaxInterval < o.RetryInitialInterval {
		o.RetryMaxInterval = o.RetryInitialInterval
	}
	return o
}

// QueryResult is the serialized outcome of one statement.
type QueryResult struct {
	Columns         []string         `json:"columns"`
	Rows            []map[string]any `json:"rows"`
	RowCount        int              `json:"row_count"`
	ExecutionTimeMs float64          `json:"execution_time_ms"`
	Truncated       bool             `json:"truncated"`
}

// Executor runs approved statements against the pool in read mode.
type Executor struct {
	pool Pool
	opts Options
	log  *zap.Logger
}

// NewExecutor wraps pool. Zero-valued options fall back to the defaults.
func NewExecutor(pool Pool, opts Options, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		pool: pool,
		opts: opts.withDefaults(),
		log:  logger.Named("executor"),
	}
}

// Execute runs an approved statement and returns at most RowCap rows.
// Connection failures are retried with exponential backoff; every other
// failure is returned on the first occurrence as a *queryerr.Error.
func (e *Executor) Execute(ctx context.Context, q classifier.ApprovedQuery) (*QueryResult, error) {
	if !q.Valid() {
		return nil, queryerr.Blocked("query has not passed classification",
			classifier.DefaultTable().Hint(classifier.CategoryDefault))
	}
	return e.runWithRetry(ctx, q.Query(), q.Params(), e.opts.RowCap)
}

// Ping checks that the database is reachable.
func (e *Executor) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.opts.AcquireTimeout)
	defer cancel()
	return translateError(e.pool.VerifyConnectivity(ctx))
}

// Close releases the underlying pool.
func (e *Executor) Close(ctx context.Context) error {
	return e.pool.Close(ctx)
}

func (e *Executor) runWithRetry(ctx context.Context, cypher string, params map[string]any, rowCap int) (*QueryResult, error) {
	var result *QueryResult
	attempt := 0

	op := func() error {
		attempt++
		res, err := e.run(ctx, cypher, params, rowCap)
		if err != nil {
			if retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}

	notify := func(err error, wait time.Duration) {
		observability.QueryRetries.Inc()
		e.log.Warn("Retrying query after connection failure",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.String("error", queryerr.Mask(err.Error())))
	}

	if err := backoff.RetryNotify(op, e.newBackOff(ctx), notify); err != nil {
		// The retry loop returns a bare context error when the caller gives up
		// between attempts.
		if !errors.As(err, new(*queryerr.Error)) {
			err = translateError(err)
		}
		return nil, err
	}
	return result, nil
}

func (e *Executor) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = e.opts.RetryInitialInterval
	eb.MaxInterval = e.opts.RetryMaxInterval
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(e.opts.MaxRetries)), ctx)
}

// run executes cypher once. rowCap <= 0 reads every row. It is unexported:
// the only statements that reach it without an ApprovedQuery are the
// constant discovery queries.
func (e *Executor) run(ctx context.Context, cypher string, params map[string]any, rowCap int) (res *QueryResult, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(queryerr.KindOf(err))
		}
		observability.QueryDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	// 1. Acquire a read session.
	acquireCtx, cancelAcquire := context.WithTimeout(ctx, e.opts.AcquireTimeout)
	session, err := e.pool.Acquire(acquireCtx)
	cancelAcquire()
	if err != nil {
		return nil, translateError(err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionCloseTimeout)
		defer cancel()
		if cerr := session.Close(closeCtx); cerr != nil {
			e.log.Debug("Failed to close session", zap.Error(cerr))
		}
	}()

	// 2. Run with out-of-band parameters under the per-query timeout.
	queryCtx, cancel := context.WithTimeout(ctx, e.opts.QueryTimeout)
	defer cancel()
	e.log.Debug("Running query", zap.String("query", cypher), zap.Int("params", len(params)))

	cursor, err := session.Run(queryCtx, cypher, params, e.opts.QueryTimeout)
	if err != nil {
		return nil, translateError(err)
	}
	keys, err := cursor.Keys()
	if err != nil {
		return nil, translateError(err)
	}

	// 3. Collect up to the cap, peeking one record further to detect truncation.
	rows := make([]map[string]any, 0)
	truncated := false
	for cursor.Next(queryCtx) {
		if rowCap > 0 && len(rows) == rowCap {
			truncated = true
			break
		}
		rows = append(rows, convertRecord(cursor.Record()))
	}
	if !truncated {
		if err := cursor.Err(); err != nil {
			return nil, translateError(err)
		}
	}

	columns := keys
	if columns == nil {
		columns = []string{}
	}
	elapsed := time.Since(start)
	observability.RowsReturned.Observe(float64(len(rows)))
	if truncated {
		e.log.Info("Result truncated at row cap", zap.Int("row_cap", rowCap))
	}

	return &QueryResult{
		Columns:         columns,
		Rows:            rows,
		RowCount:        len(rows),
		ExecutionTimeMs: float64(elapsed.Microseconds()) / 1000.0,
		Truncated:       truncated,
	}, nil
}
