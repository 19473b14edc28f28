// File: internal/schema/cache.go
package schema

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xkilldash9x/cypherguard/internal/observability"
	"github.com/xkilldash9x/cypherguard/internal/queryerr"
)

const (
	flightFetch   = "fetch"
	flightRefresh = "refresh"

	// DefaultFetchTimeout bounds a discovery run when the caller configures none.
	DefaultFetchTimeout = 30 * time.Second
)

// Discoverer runs the constant, read-only discovery queries against the
// database. Implementations must return a *queryerr.Error on failure.
type Discoverer interface {
	DiscoverSchema(ctx context.Context) (*Snapshot, error)
}

// Cache is the single owner of the process-wide schema snapshot. The pointer
// is only ever swapped whole, so readers see either the old or the new
// snapshot and never a partial one.
type Cache struct {
	discoverer   Discoverer
	fetchTimeout time.Duration
	log          *zap.Logger

	current atomic.Pointer[Snapshot]
	flights singleflight.Group
}

// NewCache returns an empty cache backed by d.
func NewCache(d Discoverer, fetchTimeout time.Duration, logger *zap.Logger) *Cache {
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		discoverer:   d,
		fetchTimeout: fetchTimeout,
		log:          logger.Named("schema_cache"),
	}
}

// IsCached reports whether a snapshot is present. It never touches the database.
func (c *Cache) IsCached() bool { return c.current.Load() != nil }

// Peek returns the current snapshot, or nil, without fetching.
func (c *Cache) Peek() *Snapshot { return c.current.Load() }

// GetOrFetch returns the cached snapshot, running discovery on a miss.
// Concurrent misses share one discovery run. A caller whose ctx ends stops
// waiting, but the shared run continues for the others under its own bound.
func (c *Cache) GetOrFetch(ctx context.Context) (*Snapshot, error) {
	if snap := c.current.Load(); snap != nil {
		observability.SchemaCacheHits.Inc()
		return snap, nil
	}

	ch := c.flights.DoChan(flightFetch, func() (interface{}, error) {
		// Another flight may have populated the cache while this one queued.
		if snap := c.current.Load(); snap != nil {
			return snap, nil
		}
		snap, err := c.discover(ctx, flightFetch)
		if err != nil {
			return nil, err
		}
		if !c.current.CompareAndSwap(nil, snap) {
			// A refresh landed first; its snapshot is at least as new.
			return c.current.Load(), nil
		}
		return snap, nil
	})
	return c.wait(ctx, ch)
}

// InvalidateAndRefetch re-runs discovery and replaces the snapshot. On
// failure the previous snapshot stays in place and a schema fetch error is
// returned, so a failed refresh never leaves callers without a schema.
func (c *Cache) InvalidateAndRefetch(ctx context.Context) (*Snapshot, error) {
	ch := c.flights.DoChan(flightRefresh, func() (interface{}, error) {
		snap, err := c.discover(ctx, flightRefresh)
		if err != nil {
			if c.current.Load() != nil {
				c.log.Warn("Schema refresh failed, keeping previous snapshot", zap.Error(err))
			}
			return nil, err
		}
		c.current.Store(snap)
		return snap, nil
	})
	return c.wait(ctx, ch)
}

func (c *Cache) wait(ctx context.Context, ch <-chan singleflight.Result) (*Snapshot, error) {
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, queryerr.SchemaFetch("timed out waiting for schema discovery",
				queryerr.Timeout("schema discovery wait exceeded caller deadline", ctx.Err()))
		}
		return nil, queryerr.SchemaFetch("schema discovery wait cancelled", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		snap, ok := res.Val.(*Snapshot)
		if !ok || snap == nil {
			return nil, queryerr.SchemaFetch("schema discovery returned no snapshot", nil)
		}
		return snap, nil
	}
}

// discover runs on a context detached from the caller that started the
// flight, bounded by the fetch timeout, so one impatient caller cannot fail
// the discovery everyone else is waiting on.
func (c *Cache) discover(parent context.Context, mode string) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), c.fetchTimeout)
	defer cancel()

	start := time.Now()
	snap, err := c.discoverer.DiscoverSchema(ctx)
	elapsed := time.Since(start)
	if err == nil && snap == nil {
		err = errors.New("discoverer returned a nil snapshot")
	}
	if err != nil {
		observability.SchemaFetches.WithLabelValues(mode, "error").Inc()
		if qe, ok := queryerr.As(err); ok && qe.Kind == queryerr.KindSchemaFetch {
			return nil, qe
		}
		return nil, queryerr.SchemaFetch("schema discovery failed", err)
	}

	observability.SchemaFetches.WithLabelValues(mode, "ok").Inc()
	c.log.Info("Schema discovered",
		zap.String("mode", mode),
		zap.Int("labels", len(snap.labels)),
		zap.Int("relationship_types", len(snap.relationshipTypes)),
		zap.Duration("elapsed", elapsed))
	return snap, nil
}
