package mcp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cypherguard/internal/classifier"
	"github.com/xkilldash9x/cypherguard/internal/graphdb"
	"github.com/xkilldash9x/cypherguard/internal/schema"
	"github.com/xkilldash9x/cypherguard/internal/store"
)

// fakeExecutor records what reaches it. A call that is not approved here
// means the gate was bypassed.
type fakeExecutor struct {
	mu       sync.Mutex
	executed []classifier.ApprovedQuery
	result   func(q classifier.ApprovedQuery) (*graphdb.QueryResult, error)
	pingErr  error
}

func (f *fakeExecutor) Execute(_ context.Context, q classifier.ApprovedQuery) (*graphdb.QueryResult, error) {
	f.mu.Lock()
	f.executed = append(f.executed, q)
	f.mu.Unlock()
	if f.result == nil {
		return &graphdb.QueryResult{Columns: []string{}, Rows: []map[string]any{}}, nil
	}
	return f.result(q)
}

func (f *fakeExecutor) Ping(context.Context) error { return f.pingErr }

func (f *fakeExecutor) calls() []classifier.ApprovedQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]classifier.ApprovedQuery(nil), f.executed...)
}

func returning(res *graphdb.QueryResult) func(classifier.ApprovedQuery) (*graphdb.QueryResult, error) {
	return func(classifier.ApprovedQuery) (*graphdb.QueryResult, error) { return res, nil }
}

func failing(err error) func(classifier.ApprovedQuery) (*graphdb.QueryResult, error) {
	return func(classifier.ApprovedQuery) (*graphdb.QueryResult, error) { return nil, err }
}

// fakeCache is a SchemaCache with a fixed snapshot.
type fakeCache struct {
	mu         sync.Mutex
	snap       *schema.Snapshot
	cached     bool
	fetchErr   error
	fetches    int
	refetches  int
	refreshErr error
}

func (f *fakeCache) IsCached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cached
}

func (f *fakeCache) Peek() *schema.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.cached {
		return nil
	}
	return f.snap
}

func (f *fakeCache) GetOrFetch(context.Context) (*schema.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cached {
		return f.snap, nil
	}
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	f.cached = true
	return f.snap, nil
}

func (f *fakeCache) InvalidateAndRefetch(context.Context) (*schema.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refetches++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	f.cached = true
	return f.snap, nil
}

// fakeRecorder keeps entries in memory.
type fakeRecorder struct {
	mu        sync.Mutex
	entries   []store.Entry
	recordErr error
	recentErr error
	limits    []int
}

func (f *fakeRecorder) Record(_ context.Context, e store.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeRecorder) Recent(_ context.Context, limit int) ([]store.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	return append([]store.Entry{}, f.entries...), nil
}

func (f *fakeRecorder) last(t *testing.T) store.Entry {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.entries, "expected the call to be recorded")
	return f.entries[len(f.entries)-1]
}

func testSnapshot() *schema.Snapshot {
	return schema.NewSnapshot(
		[]string{"Customer", "Order", "Product"},
		[]string{"PLACED", "CONTAINS"},
		map[string][]string{
			"Customer": {"name", "customer_id"},
			"Order":    {"order_id", "total"},
		},
		map[string][]string{"CONTAINS": {"quantity"}},
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	)
}

type harness struct {
	exec     *fakeExecutor
	cache    *fakeCache
	recorder *fakeRecorder
	toolbox  *Toolbox
}

func newHarness() *harness {
	h := &harness{
		exec:     &fakeExecutor{},
		cache:    &fakeCache{snap: testSnapshot()},
		recorder: &fakeRecorder{},
	}
	h.toolbox = NewToolbox(h.exec, h.cache, h.recorder, zap.NewNop())
	return h
}
