// File: internal/graphdb/driver.go

// Package graphdb is the only code that talks to the graph database. It runs
// approved statements and the constant schema discovery queries, converts
// driver values into JSON-safe ones and translates driver failures into the
// queryerr taxonomy.
package graphdb

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cypherguard/internal/config"
	"github.com/xkilldash9x/cypherguard/internal/queryerr"
)

// Cursor is the part of a driver result the executor reads.
// neo4j.ResultWithContext satisfies it.
type Cursor interface {
	Keys() ([]string, error)
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// Session runs one statement at a time against the configured database.
type Session interface {
	Run(ctx context.Context, cypher string, params map[string]any, timeout time.Duration) (Cursor, error)
	Close(ctx context.Context) error
}

// Pool hands out read sessions. It abstracts neo4j.DriverWithContext so the
// executor can be tested without a server.
type Pool interface {
	Acquire(ctx context.Context) (Session, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

type neo4jPool struct {
	driver   neo4j.DriverWithContext
	database string
}

type neo4jSession struct {
	session neo4j.SessionWithContext
}

// Connect creates a driver from cfg and verifies it can reach the server
// within the connect timeout.
func Connect(ctx context.Context, cfg config.Neo4jConfig, logger *zap.Logger) (Pool, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			c.MaxConnectionLifetime = cfg.MaxConnectionLifetime
			c.MaxConnectionPoolSize = cfg.MaxPoolSize
			c.ConnectionAcquisitionTimeout = cfg.AcquireTimeout
			c.SocketConnectTimeout = cfg.ConnectTimeout
			c.Log = newDriverLogger(logger)
		},
	)
	if err != nil {
		return nil, queryerr.Connection(fmt.Sprintf("failed to create driver for %s", cfg.URI), false, err)
	}

	pool := &neo4jPool{driver: driver, database: cfg.Database}
	verifyCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := pool.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(context.WithoutCancel(ctx))
		return nil, translateError(err)
	}
	return pool, nil
}

// Acquire opens a read-mode session on the configured database. The driver
// takes a pooled connection lazily when the first statement runs.
func (p *neo4jPool) Acquire(ctx context.Context) (Session, error) {
	s := p.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: p.database,
	})
	return &neo4jSession{session: s}, nil
}

func (p *neo4jPool) VerifyConnectivity(ctx context.Context) error {
	return p.driver.VerifyConnectivity(ctx)
}

func (p *neo4jPool) Close(ctx context.Context) error {
	return p.driver.Close(ctx)
}

func (s *neo4jSession) Run(ctx context.Context, cypher string, params map[string]any, timeout time.Duration) (Cursor, error) {
	res, err := s.session.Run(ctx, cypher, params, neo4j.WithTxTimeout(timeout))
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *neo4jSession) Close(ctx context.Context) error {
	return s.session.Close(ctx)
}

// driverLogger routes the driver's internal logging through zap.
type driverLogger struct {
	log *zap.SugaredLogger
}

func newDriverLogger(logger *zap.Logger) *driverLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &driverLogger{log: logger.Named("neo4j_driver").Sugar()}
}

func (l *driverLogger) Error(name, id string, err error) {
	l.log.Errorw(queryerr.Mask(err.Error()), "component", name, "id", id)
}

func (l *driverLogger) Warnf(name, id string, msg string, args ...any) {
	l.log.Warnw(queryerr.Mask(fmt.Sprintf(msg, args...)), "component", name, "id", id)
}

func (l *driverLogger) Infof(name, id string, msg string, args ...any) {
	l.log.Infow(fmt.Sprintf(msg, args...), "component", name, "id", id)
}

func (l *driverLogger) Debugf(name, id string, msg string, args ...any) {
	l.log.Debugw(fmt.Sprintf(msg, args...), "component", name, "id", id)
}
