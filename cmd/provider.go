// File: cmd/provider.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cypherguard/internal/config"
	"github.com/xkilldash9x/cypherguard/internal/graphdb"
	"github.com/xkilldash9x/cypherguard/internal/mcp"
	"github.com/xkilldash9x/cypherguard/internal/schema"
	"github.com/xkilldash9x/cypherguard/internal/store"
)

const closeTimeout = 10 * time.Second

// historyStore is the audit store as the CLI sees it.
type historyStore interface {
	mcp.Recorder
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// runtime is everything a command needs to serve tool calls.
type runtime struct {
	Toolbox *mcp.Toolbox
	// History is nil when auditing is disabled.
	History historyStore
}

// toolboxProvider builds the runtime for a command. The abstraction lets
// tests inject fakes instead of live Neo4j and PostgreSQL connections.
type toolboxProvider interface {
	// Create returns the runtime and a cleanup function releasing its connections.
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*runtime, func(), error)
}

type defaultToolboxProvider struct{}

// NewToolboxProvider returns the production provider.
func NewToolboxProvider() toolboxProvider {
	return &defaultToolboxProvider{}
}

// Create connects to Neo4j and, when auditing is enabled, to PostgreSQL.
func (p *defaultToolboxProvider) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*runtime, func(), error) {
	pool, err := graphdb.Connect(ctx, cfg.Neo4j(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}
	exec := graphdb.NewExecutor(pool, graphdb.OptionsFromConfig(cfg), logger)
	cache := schema.NewCache(exec, cfg.Schema().FetchTimeout, logger)

	cleanups := []func(ctx context.Context){
		func(ctx context.Context) {
			if err := exec.Close(ctx); err != nil {
				logger.Warn("Failed to close neo4j driver", zap.Error(err))
			}
		},
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i](ctx)
		}
	}

	rt := &runtime{}
	var recorder mcp.Recorder
	if audit := cfg.Audit(); audit.Enabled {
		s, pgPool, err := store.Connect(ctx, audit.DatabaseURL, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to connect to audit database: %w", err)
		}
		cleanups = append(cleanups, func(context.Context) {
			pgPool.Close()
			logger.Debug("Audit connection pool closed.")
		})
		if err := s.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to prepare audit schema: %w", err)
		}
		recorder = s
		rt.History = s
	}

	rt.Toolbox = mcp.NewToolbox(exec, cache, recorder, logger).WithHistoryLimit(cfg.Audit().RecentLimit)
	return rt, cleanup, nil
}
