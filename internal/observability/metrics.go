package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cypherguard"

var (
	// ClassifierVerdicts counts classification outcomes.
	// Labels: pass (intent, query), verdict (allow, block).
	ClassifierVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "verdicts_total",
			Help:      "Classification verdicts by pass and outcome.",
		},
		[]string{"pass", "verdict"},
	)

	// QueryDuration tracks executor wall-clock time per query.
	// Labels: outcome (ok, or a failure kind).
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "query_duration_seconds",
			Help:      "Wall-clock duration of executed queries.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	// RowsReturned tracks result sizes after the row cap.
	RowsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "rows_returned",
			Help:      "Rows returned per successful query.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
		},
	)

	// QueryRetries counts connection retries inside the executor.
	QueryRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "retries_total",
			Help:      "Connection-level retries performed by the executor.",
		},
	)

	// SchemaFetches counts discovery runs.
	// Labels: mode (fetch, refresh), result (ok, error).
	SchemaFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schema",
			Name:      "fetch_total",
			Help:      "Schema discovery runs by mode and result.",
		},
		[]string{"mode", "result"},
	)

	// SchemaCacheHits counts schema reads served from the cache.
	SchemaCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schema",
			Name:      "cache_hits_total",
			Help:      "Schema reads served without discovery.",
		},
	)

	// ToolCalls counts facade calls by tool and terminal state.
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mcp",
			Name:      "tool_calls_total",
			Help:      "Tool calls by name and terminal state.",
		},
		[]string{"tool", "state"},
	)
)
