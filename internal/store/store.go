// File: internal/store/store.go

// Package store keeps an optional PostgreSQL history of every tool call the
// facade handles: what was asked, how it was classified and how it ended.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 500
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Entry is one row of query history.
type Entry struct {
	ID             string          `json:"id"`
	CreatedAt      time.Time       `json:"created_at"`
	CallID         string          `json:"call_id"`
	Tool           string          `json:"tool"`
	State          string          `json:"state"`
	Pass           string          `json:"pass,omitempty"`
	Query          string          `json:"query,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	Prompt         string          `json:"prompt,omitempty"`
	Allowed        bool            `json:"allowed"`
	Category       string          `json:"category,omitempty"`
	MatchedPattern string          `json:"matched_pattern,omitempty"`
	BlockedReason  string          `json:"blocked_reason,omitempty"`
	ErrorKind      string          `json:"error_kind,omitempty"`
	RowCount       int             `json:"row_count"`
	Truncated      bool            `json:"truncated"`
	DurationMs     float64         `json:"duration_ms"`
}

// Store is the PostgreSQL implementation of the history recorder.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// Connect opens a pgx pool for databaseURL and wraps it in a Store.
// The caller owns the returned pool and must close it.
func Connect(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create audit pool: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool, nil
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const sqlCreateHistory = `
    CREATE TABLE IF NOT EXISTS query_history (
        id              UUID PRIMARY KEY,
        created_at      TIMESTAMPTZ NOT NULL,
        call_id         TEXT NOT NULL,
        tool            TEXT NOT NULL,
        state           TEXT NOT NULL,
        pass            TEXT NOT NULL DEFAULT '',
        query           TEXT NOT NULL DEFAULT '',
        params          JSONB NOT NULL DEFAULT '{}',
        prompt          TEXT NOT NULL DEFAULT '',
        allowed         BOOLEAN NOT NULL,
        category        TEXT NOT NULL DEFAULT '',
        matched_pattern TEXT NOT NULL DEFAULT '',
        blocked_reason  TEXT NOT NULL DEFAULT '',
        error_kind      TEXT NOT NULL DEFAULT '',
        row_count       INTEGER NOT NULL DEFAULT 0,
        truncated       BOOLEAN NOT NULL DEFAULT FALSE,
        duration_ms     DOUBLE PRECISION NOT NULL DEFAULT 0
    );
    CREATE INDEX IF NOT EXISTS query_history_created_at_idx ON query_history (created_at DESC);
`

// EnsureSchema creates the history table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, sqlCreateHistory); err != nil {
		return fmt.Errorf("failed to create query_history table: %w", err)
	}
	return nil
}

const sqlInsertHistory = `
    INSERT INTO query_history (id, created_at, call_id, tool, state, pass, query, params, prompt,
        allowed, category, matched_pattern, blocked_reason, error_kind, row_count, truncated, duration_ms)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17);
`

// Record inserts e. A missing ID or timestamp is filled in.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	// Keep timestamps unambiguous across hosts.
	e.CreatedAt = e.CreatedAt.UTC()

	params := e.Params
	if len(params) == 0 || string(params) == "null" {
		params = json.RawMessage("{}")
	}

	_, err := s.pool.Exec(ctx, sqlInsertHistory,
		e.ID, e.CreatedAt, e.CallID, e.Tool, e.State, e.Pass, e.Query, params, e.Prompt,
		e.Allowed, e.Category, e.MatchedPattern, e.BlockedReason, e.ErrorKind,
		e.RowCount, e.Truncated, e.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	s.log.Debug("Recorded call", zap.String("call_id", e.CallID), zap.String("state", e.State))
	return nil
}

const sqlRecentHistory = `
    SELECT id, created_at, call_id, tool, state, pass, query, params, prompt,
        allowed, category, matched_pattern, blocked_reason, error_kind, row_count, truncated, duration_ms
    FROM query_history
    ORDER BY created_at DESC
    LIMIT $1;
`

// Recent returns the newest entries first. limit is clamped to 1..MaxRecentLimit.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	switch {
	case limit <= 0:
		limit = DefaultRecentLimit
	case limit > MaxRecentLimit:
		limit = MaxRecentLimit
	}

	rows, err := s.pool.Query(ctx, sqlRecentHistory, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var params []byte
		if err := rows.Scan(
			&e.ID, &e.CreatedAt, &e.CallID, &e.Tool, &e.State, &e.Pass, &e.Query, &params, &e.Prompt,
			&e.Allowed, &e.Category, &e.MatchedPattern, &e.BlockedReason, &e.ErrorKind,
			&e.RowCount, &e.Truncated, &e.DurationMs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Params = json.RawMessage(params)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return entries, nil
}

const sqlPruneHistory = `DELETE FROM query_history WHERE created_at < $1;`

// Prune removes entries older than cutoff and reports how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, sqlPruneHistory, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return tag.RowsAffected(), nil
}
