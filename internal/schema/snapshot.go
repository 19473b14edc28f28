// File: internal/schema/snapshot.go

// Package schema owns the process-wide cache of the graph's structure: its
// node labels, relationship types and the property keys seen on each.
package schema

import (
	"maps"
	"slices"
	"sort"
	"time"
)

// Snapshot is an immutable view of the database schema at one point in time.
// It is never modified after NewSnapshot returns; a refresh replaces it.
type Snapshot struct {
	labels            []string
	relationshipTypes []string
	nodeProperties    map[string][]string
	relProperties     map[string][]string
	fetchedAt         time.Time
}

// NewSnapshot builds a snapshot from discovered names. Inputs are copied,
// de-duplicated and sorted so two discoveries of the same schema compare equal.
func NewSnapshot(labels, relTypes []string, nodeProps, relProps map[string][]string, fetchedAt time.Time) *Snapshot {
	return &Snapshot{
		labels:            sortedUnique(labels),
		relationshipTypes: sortedUnique(relTypes),
		nodeProperties:    normalizeProps(nodeProps),
		relProperties:     normalizeProps(relProps),
		fetchedAt:         fetchedAt.UTC(),
	}
}

// Labels returns the node labels in sorted order.
func (s *Snapshot) Labels() []string { return slices.Clone(s.labels) }

// RelationshipTypes returns the relationship types in sorted order.
func (s *Snapshot) RelationshipTypes() []string { return slices.Clone(s.relationshipTypes) }

// NodeProperties returns the property keys observed on nodes carrying label.
func (s *Snapshot) NodeProperties(label string) []string {
	return slices.Clone(s.nodeProperties[label])
}

// RelationshipProperties returns the property keys observed on relType.
func (s *Snapshot) RelationshipProperties(relType string) []string {
	return slices.Clone(s.relProperties[relType])
}

// FetchedAt reports when discovery produced this snapshot.
func (s *Snapshot) FetchedAt() time.Time { return s.fetchedAt }

// HasLabel reports whether label exists in the snapshot.
func (s *Snapshot) HasLabel(label string) bool {
	_, ok := slices.BinarySearch(s.labels, label)
	return ok
}

// HasRelationshipType reports whether relType exists in the snapshot.
func (s *Snapshot) HasRelationshipType(relType string) bool {
	_, ok := slices.BinarySearch(s.relationshipTypes, relType)
	return ok
}

// HasNodeProperty reports whether prop was observed on any node with label.
func (s *Snapshot) HasNodeProperty(label, prop string) bool {
	_, ok := slices.BinarySearch(s.nodeProperties[label], prop)
	return ok
}

// View is the serialized form returned to callers.
type View struct {
	Labels                 []string            `json:"labels"`
	RelationshipTypes      []string            `json:"relationship_types"`
	NodeProperties         map[string][]string `json:"node_properties"`
	RelationshipProperties map[string][]string `json:"relationship_properties"`
	FetchedAt              time.Time           `json:"fetched_at"`
}

// View copies the snapshot into its serialized form.
func (s *Snapshot) View() View {
	return View{
		Labels:                 s.Labels(),
		RelationshipTypes:      s.RelationshipTypes(),
		NodeProperties:         cloneProps(s.nodeProperties),
		RelationshipProperties: cloneProps(s.relProperties),
		FetchedAt:              s.fetchedAt,
	}
}

func sortedUnique(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v != "" {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return slices.Compact(out)
}

func normalizeProps(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		if k == "" {
			continue
		}
		out[k] = append(out[k], v...)
	}
	for k, v := range out {
		out[k] = sortedUnique(v)
	}
	return out
}

func cloneProps(in map[string][]string) map[string][]string {
	out := maps.Clone(in)
	for k, v := range out {
		out[k] = slices.Clone(v)
	}
	return out
}
