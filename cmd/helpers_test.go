// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cypherguard/internal/classifier"
	"github.com/xkilldash9x/cypherguard/internal/config"
	"github.com/xkilldash9x/cypherguard/internal/graphdb"
	"github.com/xkilldash9x/cypherguard/internal/mcp"
	"github.com/xkilldash9x/cypherguard/internal/observability"
	"github.com/xkilldash9x/cypherguard/internal/schema"
	"github.com/xkilldash9x/cypherguard/internal/store"
)

// resetForTest isolates a test from the developer's environment: no config
// file in the working directory or home, no global logger left over.
func resetForTest(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	homedir.DisableCache = true
	t.Setenv("HOME", t.TempDir())
	// Empty variables are ignored by viper.
	for _, key := range []string{"NEO4J_URI", "NEO4J_USERNAME", "NEO4J_PASSWORD", "NEO4J_DATABASE"} {
		t.Setenv(key, "")
	}
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)
}

// createTempConfig writes content to a config file and returns its path.
func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cypherguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// executeCommand runs the CLI with provider and returns stdout and stderr.
func executeCommand(t *testing.T, provider toolboxProvider, args ...string) (string, string, error) {
	t.Helper()
	resetForTest(t)

	root := newRootCommand(provider)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

type fakeExecutor struct {
	mu       sync.Mutex
	executed []classifier.ApprovedQuery
	result   *graphdb.QueryResult
	err      error
}

func (f *fakeExecutor) Execute(_ context.Context, q classifier.ApprovedQuery) (*graphdb.QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, q)
	if f.err != nil {
		return nil, f.err
	}
	if f.result == nil {
		return &graphdb.QueryResult{Columns: []string{}, Rows: []map[string]any{}}, nil
	}
	return f.result, nil
}

func (f *fakeExecutor) Ping(context.Context) error { return nil }

type fakeCache struct {
	snap *schema.Snapshot
}

func (f *fakeCache) IsCached() bool         { return false }
func (f *fakeCache) Peek() *schema.Snapshot { return nil }
func (f *fakeCache) GetOrFetch(context.Context) (*schema.Snapshot, error) {
	return f.snap, nil
}
func (f *fakeCache) InvalidateAndRefetch(context.Context) (*schema.Snapshot, error) {
	return f.snap, nil
}

type fakeHistory struct {
	entries   []store.Entry
	prunedAt  time.Time
	pruneRows int64
}

func (f *fakeHistory) Record(_ context.Context, e store.Entry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]store.Entry, error) {
	return append([]store.Entry{}, f.entries[:min(limit, len(f.entries))]...), nil
}

func (f *fakeHistory) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	f.prunedAt = cutoff
	return f.pruneRows, nil
}

// fakeProvider hands out a runtime built on fakes and records the
// configuration the command resolved.
type fakeProvider struct {
	exec    *fakeExecutor
	history *fakeHistory
	err     error

	gotCfg  config.Interface
	created int
	cleaned int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{exec: &fakeExecutor{}}
}

func (p *fakeProvider) Create(_ context.Context, cfg config.Interface, _ *zap.Logger) (*runtime, func(), error) {
	p.gotCfg = cfg
	p.created++
	if p.err != nil {
		return nil, nil, p.err
	}
	cache := &fakeCache{snap: schema.NewSnapshot(
		[]string{"Customer", "Order"}, []string{"PLACED"},
		map[string][]string{"Customer": {"name"}}, nil,
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	)}

	rt := &runtime{}
	var recorder mcp.Recorder
	if p.history != nil {
		recorder = p.history
		rt.History = p.history
	}
	rt.Toolbox = mcp.NewToolbox(p.exec, cache, recorder, zap.NewNop())
	return rt, func() { p.cleaned++ }, nil
}

func customerResult() *graphdb.QueryResult {
	return &graphdb.QueryResult{
		Columns: []string{"name", "orders"},
		Rows: []map[string]any{
			{"name": "Acme", "orders": int64(12)},
			{"name": "Globex", "orders": int64(7)},
		},
		RowCount: 2,
	}
}
