// File: internal/graphdb/fakes_test.go
package graphdb

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// fakeResult is what the fake session returns for one statement.
type fakeResult struct {
	keys  []string
	rows  [][]any
	err   error // returned from Run
	iter  error // returned from Err after the rows
	block bool  // Next waits for the context to end
}

type fakePool struct {
	mu         sync.Mutex
	respond    func(cypher string, params map[string]any) fakeResult
	acquireErr []error // consumed one per Acquire call

	acquires atomic.Int32
	closes   atomic.Int32
	runs     atomic.Int32
	lastCtx  context.Context
	timeouts []time.Duration
}

func newFakePool(respond func(cypher string, params map[string]any) fakeResult) *fakePool {
	return &fakePool{respond: respond}
}

func rowsOf(keys []string, rows ...[]any) func(string, map[string]any) fakeResult {
	return func(string, map[string]any) fakeResult { return fakeResult{keys: keys, rows: rows} }
}

func (p *fakePool) Acquire(ctx context.Context) (Session, error) {
	p.acquires.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.acquireErr) > 0 {
		err := p.acquireErr[0]
		p.acquireErr = p.acquireErr[1:]
		if err != nil {
			return nil, err
		}
	}
	return &fakeSession{pool: p}, nil
}

func (p *fakePool) VerifyConnectivity(ctx context.Context) error { return nil }
func (p *fakePool) Close(ctx context.Context) error              { return nil }

type fakeSession struct {
	pool   *fakePool
	closed bool
}

func (s *fakeSession) Run(ctx context.Context, cypher string, params map[string]any, timeout time.Duration) (Cursor, error) {
	s.pool.runs.Add(1)
	s.pool.mu.Lock()
	s.pool.lastCtx = ctx
	s.pool.timeouts = append(s.pool.timeouts, timeout)
	s.pool.mu.Unlock()

	res := s.pool.respond(cypher, params)
	if res.err != nil {
		return nil, res.err
	}
	return &fakeCursor{res: res, idx: -1}, nil
}

func (s *fakeSession) Close(ctx context.Context) error {
	if !s.closed {
		s.closed = true
		s.pool.closes.Add(1)
	}
	return nil
}

type fakeCursor struct {
	res fakeResult
	idx int
	err error
}

func (c *fakeCursor) Keys() ([]string, error) { return c.res.keys, nil }

func (c *fakeCursor) Next(ctx context.Context) bool {
	if c.res.block {
		<-ctx.Done()
		c.err = ctx.Err()
		return false
	}
	if c.idx+1 >= len(c.res.rows) {
		c.err = c.res.iter
		return false
	}
	c.idx++
	return true
}

func (c *fakeCursor) Record() *neo4j.Record {
	if c.idx < 0 || c.idx >= len(c.res.rows) {
		return nil
	}
	return &neo4j.Record{Keys: c.res.keys, Values: c.res.rows[c.idx]}
}

func (c *fakeCursor) Err() error { return c.err }

// fastOptions keeps retry waits short in tests.
func fastOptions() Options {
	return Options{
		RowCap:               DefaultRowCap,
		QueryTimeout:         time.Second,
		AcquireTimeout:       time.Second,
		MaxRetries:           2,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     2 * time.Millisecond,
		SampleProperties:     true,
	}
}
