// Package graph defines the host-graph contract consumed by the GrandCypher
// query engine, plus in-memory and persistent implementations.
//
// The engine never owns the data it queries. A host graph is anything that
// can enumerate nodes, resolve attribute maps, and walk edges between node
// pairs. Directedness and multigraph-ness are capabilities the host reports,
// not modes the engine imposes.
//
// Design Principles:
//   - Capability interface, not a storage engine (the engine is read-only)
//   - Labels ride in the reserved __labels__ attribute, absent means empty
//   - Callback-based streaming with a sentinel error for early termination
//   - Edge keys disambiguate parallel edges on multigraphs; simple graphs
//     report the constant key 0
//
// Example Usage:
//
//	g := graph.NewMemoryGraph(graph.Directed, graph.Multi)
//	g.AddNode("a", map[string]any{"name": "Alice"})
//	g.AddNode("b", map[string]any{"name": "Bob"})
//	g.AddEdge("a", "b", map[string]any{
//		"__labels__": []string{"paid"},
//		"amount":     12,
//	})
//
//	eng := cypher.NewEngine(g)
//	res, _ := eng.Run(ctx, `MATCH (n)-[r:paid]->(m) RETURN n.name, SUM(r.amount)`)
package graph

import (
	"context"
	"errors"
	"sort"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidEdge   = errors.New("invalid edge: start or end node not found")
	ErrInvalidData   = errors.New("invalid data")
	ErrClosed        = errors.New("graph closed")

	// ErrStopIteration is the sentinel a visitor returns to stop streaming
	// early. Iteration helpers swallow it and report success.
	ErrStopIteration = errors.New("iteration stopped")
)

// NodeID is a strongly-typed unique identifier for host-graph nodes.
//
// Using a custom type provides:
//   - Type safety (can't accidentally use an attribute key where an id is expected)
//   - Clear API semantics
type NodeID string

// EdgeKey disambiguates parallel edges between the same ordered node pair
// on a multigraph. Simple graphs use the constant 0. Keys are caller-assigned
// and preserved verbatim in query results.
type EdgeKey int64

// LabelsAttr is the reserved attribute name carrying a node's or edge's
// label set. The value is a []string (or []any of strings, which loaders
// normalize). A missing attribute means the empty label set.
const LabelsAttr = "__labels__"

// EdgeRecord is one concrete edge between an ordered node pair.
type EdgeRecord struct {
	Key   EdgeKey
	Attrs map[string]any
}

// NodeVisitor is called once per node during streaming enumeration.
// Returning ErrStopIteration halts the walk without error.
type NodeVisitor func(id NodeID) error

// EdgeVisitor is called once per incident edge. `other` is the neighbor on
// the far side of the edge from the queried node.
type EdgeVisitor func(other NodeID, key EdgeKey, attrs map[string]any) error

// Graph is the capability set the query engine requires from any host.
//
// All methods observe a read-only snapshot for the duration of one query;
// the engine performs no locking and assumes the host is not mutated
// concurrently with a running query.
//
// Implementations:
//   - MemoryGraph: mutex-guarded in-memory attributed graph
//   - BadgerGraph: persistent disk-backed graph using BadgerDB
type Graph interface {
	// Nodes streams every node id. Enumeration order must be deterministic
	// for an unchanged graph (the engine's result ordering depends on it).
	Nodes(ctx context.Context, fn NodeVisitor) error

	// NodeAttrs returns the attribute map of a node, which may include
	// LabelsAttr. Returns ErrNotFound for unknown ids.
	NodeAttrs(id NodeID) (map[string]any, error)

	// OutEdges streams edges leaving id. On an undirected host this is the
	// full incident edge set.
	OutEdges(id NodeID, fn EdgeVisitor) error

	// InEdges streams edges arriving at id. On an undirected host this is
	// the same set OutEdges reports.
	InEdges(id NodeID, fn EdgeVisitor) error

	// EdgesBetween returns every edge from `from` to `to` in that direction
	// (or simply between the pair, on an undirected host), ordered by key.
	EdgesBetween(from, to NodeID) ([]EdgeRecord, error)

	// IsDirected reports whether edge direction is meaningful on this host.
	IsDirected() bool

	// IsMultigraph reports whether parallel edges may exist; when false,
	// every EdgeRecord carries key 0.
	IsMultigraph() bool
}

// Labels extracts the label set from an attribute map, normalizing the
// accepted encodings of LabelsAttr to a sorted slice. A nil map or missing
// attribute yields an empty set.
func Labels(attrs map[string]any) []string {
	if attrs == nil {
		return nil
	}
	raw, ok := attrs[LabelsAttr]
	if !ok {
		return nil
	}
	var labels []string
	switch v := raw.(type) {
	case []string:
		labels = append(labels, v...)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				labels = append(labels, s)
			}
		}
	case map[string]struct{}:
		for s := range v {
			labels = append(labels, s)
		}
	case map[string]bool:
		for s, present := range v {
			if present {
				labels = append(labels, s)
			}
		}
	case string:
		labels = append(labels, v)
	}
	sort.Strings(labels)
	return labels
}

// HasLabel reports whether the label set in attrs contains label.
func HasLabel(attrs map[string]any, label string) bool {
	for _, l := range Labels(attrs) {
		if l == label {
			return true
		}
	}
	return false
}

// PrimaryLabel returns the first label of the set in sorted order, or ""
// when the set is empty. It is the stable representative the engine uses
// when aggregates key results by edge label.
func PrimaryLabel(attrs map[string]any) string {
	labels := Labels(attrs)
	if len(labels) == 0 {
		return ""
	}
	return labels[0]
}
