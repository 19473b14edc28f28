// File: internal/mcp/graph_tools.go
package mcp

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/xkilldash9x/cypherguard/internal/classifier"
	"github.com/xkilldash9x/cypherguard/internal/reporting"
	"github.com/xkilldash9x/cypherguard/internal/schema"
)

const (
	defaultMaxHops          = 3
	maxMaxHops              = 5
	defaultCentralityLimit  = 10
	maxCentralityLimit      = 100
	centralityDegree        = "degree"
	centralityInDegree      = "in_degree"
	centralityOutDegree     = "out_degree"
	centralityBetweenness   = "betweenness"
	centralityPageRank      = "pagerank"
	maxAlternativePaths     = 5
	communityTriangles      = "triangles"
	communityDensity        = "density"
	minCommunityDensity     = "0.3"
	defaultCommunitySize    = 3
	maxCommunitySize        = 50
	defaultCommunityLimit   = 10
	maxCommunityLimit       = 50
	similarityProperties    = "properties"
	similarityConnections   = "connections"
	similarityNeighborhood  = "neighborhood"
	nodeIdentifierExpr      = "coalesce(n.name, n.title, n.id, elementId(n))"
	pathNodeIdentifierExpr  = "coalesce(x.name, x.title, x.id, elementId(x))"
	errUnknownIdentifierFmt = "unknown %s %q; check get_schema for the available names"
)

var plainIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// quoteIdent backtick-escapes a schema name for inclusion in a statement.
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func clamp(v, lo, hi, def int) int {
	if v <= 0 {
		return def
	}
	return min(max(v, lo), hi)
}

// identifierChecker validates caller-supplied names against the schema.
type identifierChecker struct {
	snap *schema.Snapshot
}

func (ic identifierChecker) label(name string) error {
	if !ic.snap.HasLabel(name) {
		return fmt.Errorf(errUnknownIdentifierFmt, "label", name)
	}
	return nil
}

func (ic identifierChecker) relType(name string) error {
	if !ic.snap.HasRelationshipType(name) {
		return fmt.Errorf(errUnknownIdentifierFmt, "relationship type", name)
	}
	return nil
}

// property accepts a key discovered for label. When discovery did not sample
// properties for the label, any plain identifier is accepted.
func (ic identifierChecker) property(label, prop string) error {
	if prop == "" {
		return fmt.Errorf("a property name is required for label %q", label)
	}
	if len(ic.snap.NodeProperties(label)) == 0 {
		if plainIdentifier.MatchString(prop) {
			return nil
		}
		return fmt.Errorf(errUnknownIdentifierFmt, "property", prop)
	}
	if !ic.snap.HasNodeProperty(label, prop) {
		return fmt.Errorf(errUnknownIdentifierFmt, "property", label+"."+prop)
	}
	return nil
}

// buildPathQuery returns the path statement for p: the shortest path, then up
// to maxAlternativePaths longer routes within the hop limit. Every name in it
// has been checked against the schema and quoted; values are parameters.
func buildPathQuery(ic identifierChecker, p PathParams) (string, map[string]any, error) {
	for _, err := range []error{
		ic.label(p.StartLabel),
		ic.label(p.EndLabel),
		ic.property(p.StartLabel, p.StartProperty),
		ic.property(p.EndLabel, p.EndProperty),
	} {
		if err != nil {
			return "", nil, err
		}
	}
	if p.StartValue == nil || p.EndValue == nil {
		return "", nil, fmt.Errorf("start_value and end_value are required")
	}

	relTypes := make([]string, 0, len(p.RelTypes))
	for _, rt := range p.RelTypes {
		rt = strings.TrimSpace(rt)
		if rt == "" {
			continue
		}
		if err := ic.relType(rt); err != nil {
			return "", nil, err
		}
		relTypes = append(relTypes, quoteIdent(rt))
	}
	relPattern := ""
	if len(relTypes) > 0 {
		relPattern = ":" + strings.Join(relTypes, "|")
	}
	hops := clamp(p.MaxHops, 1, maxMaxHops, defaultMaxHops)

	anchors := fmt.Sprintf("MATCH (a:%s {%s: $start}), (b:%s {%s: $end})",
		quoteIdent(p.StartLabel), quoteIdent(p.StartProperty),
		quoteIdent(p.EndLabel), quoteIdent(p.EndProperty))
	projection := fmt.Sprintf(`length(path) AS path_length,
       [x IN nodes(path) | %s] AS nodes,
       [r IN relationships(path) | type(r)] AS relationships`, pathNodeIdentifierExpr)

	query := fmt.Sprintf(`%s
MATCH path = shortestPath((a)-[%s*1..%d]-(b))
WITH path
LIMIT 1
RETURN 'shortest' AS route, %s`, anchors, relPattern, hops, projection)
	if hops > 1 {
		query += fmt.Sprintf(`
UNION ALL
%s
MATCH path = (a)-[%s*1..%d]-(b)
WITH path
ORDER BY length(path)
SKIP 1
LIMIT %d
RETURN 'alternative' AS route, %s`, anchors, relPattern, hops, maxAlternativePaths, projection)
	}
	return query, map[string]any{"start": p.StartValue, "end": p.EndValue}, nil
}

// identifierOf is the display expression for the node bound to v.
func identifierOf(v string) string {
	return fmt.Sprintf("coalesce(%[1]s.name, %[1]s.title, %[1]s.id, elementId(%[1]s))", v)
}

// buildCentralityQuery returns a centrality statement for p. Degree types
// count relationships. Betweenness counts the short paths running through a
// node and pagerank weighs incoming links by how busy their sources are.
func buildCentralityQuery(ic identifierChecker, p CentralityParams) (string, error) {
	nodePattern := "(n)"
	if p.Label != "" {
		if err := ic.label(p.Label); err != nil {
			return "", err
		}
		nodePattern = "(n:" + quoteIdent(p.Label) + ")"
	}
	relFilter := ""
	if p.RelType != "" {
		if err := ic.relType(p.RelType); err != nil {
			return "", err
		}
		relFilter = ":" + quoteIdent(p.RelType)
	}
	rel := "[" + relFilter + "]"

	var scoring string
	switch strings.ToLower(strings.TrimSpace(p.Type)) {
	case "", centralityDegree:
		scoring = "WITH n, COUNT { (n)-" + rel + "-() } AS score"
	case centralityInDegree:
		scoring = "WITH n, COUNT { (n)<-" + rel + "-() } AS score"
	case centralityOutDegree:
		scoring = "WITH n, COUNT { (n)-" + rel + "->() } AS score"
	case centralityBetweenness:
		scoring = fmt.Sprintf(`WITH n, COUNT {
  MATCH path = (s)-[%[1]s*1..2]-(n)-[%[1]s*1..2]-(e)
  WHERE s <> e AND length(path) <= 3
} AS score`, relFilter)
	case centralityPageRank:
		scoring = fmt.Sprintf(`MATCH (n)<-%s-(m)
WITH n, m, COUNT { (m)-->() } AS m_out
WITH n, count(DISTINCT m) AS incoming, sum(m_out) AS neighbour_out
WITH n, round(incoming * 1.0 / (1 + neighbour_out), 4) AS score`, rel)
	default:
		return "", fmt.Errorf("unknown centrality type %q; use one of degree, in_degree, out_degree, betweenness, pagerank", p.Type)
	}
	limit := clamp(p.Limit, 1, maxCentralityLimit, defaultCentralityLimit)

	return fmt.Sprintf(`MATCH %s
%s
ORDER BY score DESC
LIMIT %d
RETURN labels(n)[0] AS node_type, %s AS node_identifier, score AS centrality_score`,
		nodePattern, scoring, limit, nodeIdentifierExpr), nil
}

// buildCommunityQuery returns a community detection statement for p. The
// triangles method grows communities around nodes that close a triangle; the
// density method keeps hubs whose neighbours are well linked to each other.
func buildCommunityQuery(ic identifierChecker, p CommunityParams) (string, map[string]any, error) {
	nodePattern := "(n)"
	if p.Label != "" {
		if err := ic.label(p.Label); err != nil {
			return "", nil, err
		}
		nodePattern = "(n:" + quoteIdent(p.Label) + ")"
	}
	minSize := clamp(p.MinSize, 2, maxCommunitySize, defaultCommunitySize)
	limit := clamp(p.Limit, 1, maxCommunityLimit, defaultCommunityLimit)
	params := map[string]any{"min_size": int64(minSize)}

	switch strings.ToLower(strings.TrimSpace(p.Method)) {
	case "", communityTriangles:
		return fmt.Sprintf(`MATCH %s--(m)--(o)--(n)
WHERE elementId(n) < elementId(m) AND elementId(m) < elementId(o)
WITH collect(DISTINCT n) + collect(DISTINCT m) + collect(DISTINCT o) AS triangle_nodes
UNWIND triangle_nodes AS anchor
WITH DISTINCT anchor
MATCH (anchor)-[*1..2]-(member)
WITH anchor, collect(DISTINCT member) AS members
WHERE size(members) >= $min_size
WITH anchor, members
ORDER BY size(members) DESC
LIMIT %d
UNWIND members AS member
WITH anchor, count(DISTINCT member) AS community_size,
     collect(DISTINCT labels(member)[0]) AS node_types,
     collect(DISTINCT %s)[..5] AS members_sample
RETURN labels(anchor)[0] + ':' + %s AS community_anchor, community_size, node_types, members_sample
ORDER BY community_size DESC`,
			nodePattern, limit, identifierOf("member"), identifierOf("anchor")), params, nil
	case communityDensity:
		return fmt.Sprintf(`MATCH %s
WITH n, COUNT { (n)--() } AS degree
WHERE degree >= 3
WITH n, degree
ORDER BY degree DESC
LIMIT 20
MATCH (n)--(neighbour)
WITH n, collect(DISTINCT neighbour) AS neighbours
WHERE size(neighbours) >= $min_size
UNWIND neighbours AS a
UNWIND neighbours AS b
WITH n, neighbours, a, b
WHERE elementId(a) < elementId(b) AND EXISTS { (a)--(b) }
WITH n, neighbours, count(*) AS internal
WITH n, neighbours, 2.0 * internal / (size(neighbours) * (size(neighbours) - 1)) AS density
WHERE density > %s
RETURN labels(n)[0] + ':' + %s AS community_anchor,
       size(neighbours) AS community_size,
       round(density, 2) AS connectivity_density,
       [x IN neighbours | %s][..5] AS members_sample
ORDER BY community_size DESC
LIMIT %d`,
			nodePattern, minCommunityDensity, nodeIdentifierExpr, pathNodeIdentifierExpr, limit), params, nil
	default:
		return "", nil, fmt.Errorf("unknown community method %q; use one of triangles, density", p.Method)
	}
}

// buildSimilarityQuery returns a statement ranking nodes by their similarity
// to the reference node identified by p.Label, p.Property and p.Value.
func buildSimilarityQuery(ic identifierChecker, p SimilarityParams) (string, map[string]any, error) {
	if err := ic.label(p.Label); err != nil {
		return "", nil, err
	}
	if err := ic.property(p.Label, p.Property); err != nil {
		return "", nil, err
	}
	if p.Value == nil {
		return "", nil, fmt.Errorf("value is required to identify the reference node")
	}
	target := p.Label
	if p.TargetLabel != "" {
		if err := ic.label(p.TargetLabel); err != nil {
			return "", nil, err
		}
		target = p.TargetLabel
	}
	limit := clamp(p.Limit, 1, maxCentralityLimit, defaultCentralityLimit)

	reference := fmt.Sprintf(`MATCH (ref:%s {%s: $value})
WITH ref
LIMIT 1`, quoteIdent(p.Label), quoteIdent(p.Property))
	candidate := "(n:" + quoteIdent(target) + ")"

	var scoring, extra string
	switch strings.ToLower(strings.TrimSpace(p.Type)) {
	case "", similarityProperties:
		scoring = fmt.Sprintf(`MATCH %s
WHERE n <> ref
WITH n, size(keys(ref)) AS total,
     size([k IN keys(ref) WHERE n[k] = ref[k]]) AS shared
WHERE shared > 0
WITH n, shared, shared * 1.0 / total AS similarity`, candidate)
		extra = "shared AS matching_properties"
	case similarityConnections:
		scoring = fmt.Sprintf(`MATCH (ref)--(rc)
WITH ref, collect(DISTINCT rc) AS ref_links
MATCH %s--(nc)
WHERE n <> ref
WITH n, ref_links, collect(DISTINCT nc) AS n_links
WITH n, size([x IN ref_links WHERE x IN n_links]) AS shared,
     size(ref_links) + size(n_links) AS combined
WHERE shared > 0
WITH n, shared, shared * 1.0 / (combined - shared) AS similarity`, candidate)
		extra = "shared AS shared_connections"
	case similarityNeighborhood:
		scoring = fmt.Sprintf(`MATCH (ref)-[*1..2]-(rc)
WITH ref, collect(DISTINCT rc) AS ref_links
MATCH %s-[*1..2]-(nc)
WHERE n <> ref
WITH n, ref_links, collect(DISTINCT nc) AS n_links
WITH n, size([x IN ref_links WHERE x IN n_links]) AS shared,
     size(ref_links) + size(n_links) AS combined
WHERE shared > 0
WITH n, shared, 2.0 * shared / combined AS similarity`, candidate)
		extra = "shared AS common_neighbours"
	default:
		return "", nil, fmt.Errorf("unknown similarity type %q; use one of properties, connections, neighborhood", p.Type)
	}

	query := fmt.Sprintf(`%s
%s
ORDER BY similarity DESC
LIMIT %d
RETURN labels(n)[0] AS node_type, %s AS node_identifier, round(similarity, 3) AS similarity_score, %s`,
		reference, scoring, limit, nodeIdentifierExpr, extra)
	return query, map[string]any{"value": p.Value}, nil
}

// AnalyzeGraphPaths finds the shortest path, and longer alternatives, between
// two nodes identified by label and property value.
func (t *Toolbox) AnalyzeGraphPaths(ctx context.Context, p PathParams) CommandResponse {
	c := newCall(ToolAnalyzeGraphPaths, true, t.log)
	defer t.finish(ctx, c)

	snap, err := t.cache.GetOrFetch(ctx)
	if err != nil {
		return t.fail(c, err)
	}
	query, params, err := buildPathQuery(identifierChecker{snap: snap}, p)
	if err != nil {
		return t.invalid(c, err.Error())
	}

	res, resp, ok := t.gateAndRun(ctx, c, classifier.Request{Query: query, Params: params})
	if !ok {
		return resp
	}
	if res.RowCount == 0 {
		return emptyResult(res, noPathMessage)
	}
	return CommandResponse{Status: StatusSuccess, Data: QueryPayload{QueryResult: res}}
}

// NodeCentrality ranks nodes by their number of connections.
func (t *Toolbox) NodeCentrality(ctx context.Context, p CentralityParams) CommandResponse {
	c := newCall(ToolNodeCentrality, true, t.log)
	defer t.finish(ctx, c)

	snap, err := t.cache.GetOrFetch(ctx)
	if err != nil {
		return t.fail(c, err)
	}
	query, err := buildCentralityQuery(identifierChecker{snap: snap}, p)
	if err != nil {
		return t.invalid(c, err.Error())
	}

	res, resp, ok := t.gateAndRun(ctx, c, classifier.Request{Query: query})
	if !ok {
		return resp
	}
	if res.RowCount == 0 {
		return emptyResult(res, noResultsMessage)
	}
	return CommandResponse{
		Status:  StatusSuccess,
		Data:    QueryPayload{QueryResult: res, Table: reporting.Table(res.Columns, res.Rows)},
		Message: centralityMessage(p.Type),
	}
}

func centralityMessage(typ string) string {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case centralityBetweenness:
		return "Higher scores indicate nodes that sit on more short paths between others."
	case centralityPageRank:
		return "Higher scores indicate nodes linked from sources with few other links."
	default:
		return "Higher scores indicate more connected nodes."
	}
}

// DetectCommunities reports groups of densely connected nodes.
func (t *Toolbox) DetectCommunities(ctx context.Context, p CommunityParams) CommandResponse {
	c := newCall(ToolDetectCommunities, true, t.log)
	defer t.finish(ctx, c)

	snap, err := t.cache.GetOrFetch(ctx)
	if err != nil {
		return t.fail(c, err)
	}
	query, params, err := buildCommunityQuery(identifierChecker{snap: snap}, p)
	if err != nil {
		return t.invalid(c, err.Error())
	}

	res, resp, ok := t.gateAndRun(ctx, c, classifier.Request{Query: query, Params: params})
	if !ok {
		return resp
	}
	if res.RowCount == 0 {
		msg := noResultsMessage
		if !strings.EqualFold(strings.TrimSpace(p.Method), communityDensity) {
			msg += " Try method density for sparse graphs."
		}
		return emptyResult(res, msg)
	}
	return CommandResponse{
		Status: StatusSuccess,
		Data:   QueryPayload{QueryResult: res, Table: reporting.Table(res.Columns, res.Rows)},
	}
}

// FindSimilarNodes ranks nodes by their similarity to a reference node.
func (t *Toolbox) FindSimilarNodes(ctx context.Context, p SimilarityParams) CommandResponse {
	c := newCall(ToolFindSimilarNodes, true, t.log)
	defer t.finish(ctx, c)

	snap, err := t.cache.GetOrFetch(ctx)
	if err != nil {
		return t.fail(c, err)
	}
	query, params, err := buildSimilarityQuery(identifierChecker{snap: snap}, p)
	if err != nil {
		return t.invalid(c, err.Error())
	}

	res, resp, ok := t.gateAndRun(ctx, c, classifier.Request{Query: query, Params: params})
	if !ok {
		return resp
	}
	if res.RowCount == 0 {
		return emptyResult(res, noResultsMessage)
	}
	return CommandResponse{
		Status:  StatusSuccess,
		Data:    QueryPayload{QueryResult: res, Table: reporting.Table(res.Columns, res.Rows)},
		Message: "Scores range from 0 to 1.",
	}
}
