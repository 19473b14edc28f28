// File: internal/graphdb/discovery.go
package graphdb

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/cypherguard/internal/queryerr"
	"github.com/xkilldash9x/cypherguard/internal/schema"
)

// Constant discovery statements. They never take user input.
const (
	queryLabels            = "CALL db.labels() YIELD label RETURN label"
	queryRelationshipTypes = "CALL db.relationshipTypes() YIELD relationshipType RETURN relationshipType"
	queryNodeProperties    = "CALL db.schema.nodeTypeProperties() YIELD nodeLabels, propertyName RETURN nodeLabels, propertyName"
	queryRelProperties     = "CALL db.schema.relTypeProperties() YIELD relType, propertyName RETURN relType, propertyName"
)

var _ schema.Discoverer = (*Executor)(nil)

// DiscoverSchema runs the discovery statements concurrently and assembles a
// snapshot. Property discovery is skipped unless SampleProperties is set.
func (e *Executor) DiscoverSchema(ctx context.Context) (*schema.Snapshot, error) {
	var (
		mu        sync.Mutex
		labels    []string
		relTypes  []string
		nodeProps = map[string][]string{}
		relProps  = map[string][]string{}
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		res, err := e.runWithRetry(gctx, queryLabels, nil, 0)
		if err != nil {
			return fmt.Errorf("listing labels: %w", err)
		}
		vals := stringColumn(res, "label")
		mu.Lock()
		labels = vals
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		res, err := e.runWithRetry(gctx, queryRelationshipTypes, nil, 0)
		if err != nil {
			return fmt.Errorf("listing relationship types: %w", err)
		}
		vals := stringColumn(res, "relationshipType")
		mu.Lock()
		relTypes = vals
		mu.Unlock()
		return nil
	})

	if e.opts.SampleProperties {
		g.Go(func() error {
			res, err := e.runWithRetry(gctx, queryNodeProperties, nil, 0)
			if err != nil {
				return fmt.Errorf("listing node properties: %w", err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, row := range res.Rows {
				prop, ok := row["propertyName"].(string)
				if !ok {
					continue
				}
				nodeLabels, _ := row["nodeLabels"].([]any)
				for _, l := range nodeLabels {
					if label, ok := l.(string); ok {
						nodeProps[label] = append(nodeProps[label], prop)
					}
				}
			}
			return nil
		})

		g.Go(func() error {
			res, err := e.runWithRetry(gctx, queryRelProperties, nil, 0)
			if err != nil {
				return fmt.Errorf("listing relationship properties: %w", err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, row := range res.Rows {
				prop, ok := row["propertyName"].(string)
				if !ok {
					continue
				}
				relType, _ := row["relType"].(string)
				if relType = unquoteRelType(relType); relType != "" {
					relProps[relType] = append(relProps[relType], prop)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.log.Warn("Schema discovery failed", zap.String("error", queryerr.Mask(err.Error())))
		if queryerr.KindOf(err) == queryerr.KindSchemaFetch {
			return nil, err
		}
		return nil, queryerr.SchemaFetch("schema discovery failed", err)
	}

	snap := schema.NewSnapshot(labels, relTypes, nodeProps, relProps, time.Now())
	e.log.Info("Schema discovered",
		zap.Int("labels", len(snap.Labels())),
		zap.Int("relationship_types", len(snap.RelationshipTypes())))
	return snap, nil
}

func stringColumn(res *QueryResult, column string) []string {
	out := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		if s, ok := row[column].(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// unquoteRelType turns the ":`TYPE`" form reported by db.schema.relTypeProperties
// into the bare type name.
func unquoteRelType(s string) string {
	s = strings.TrimPrefix(s, ":")
	if len(s) >= 2 && strings.HasPrefix(s, "`") && strings.HasSuffix(s, "`") {
		s = strings.ReplaceAll(s[1:len(s)-1], "``", "`")
	}
	return s
}
