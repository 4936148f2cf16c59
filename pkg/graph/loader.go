// Snapshot import/export for GrandCypher host graphs.
//
// The snapshot document is a flat JSON (or YAML) description of an attributed
// graph. Labels may be given either as a top-level "labels" list on a node or
// edge, or directly in properties under __labels__; the loader folds both
// into the reserved attribute.
//
// Document shape:
//
//	{
//	  "directed": true,
//	  "multigraph": true,
//	  "nodes": [
//	    {"id": "a", "labels": ["Person"], "properties": {"name": "Alice"}}
//	  ],
//	  "edges": [
//	    {"startNode": "a", "endNode": "b", "key": 0,
//	     "labels": ["paid"], "properties": {"amount": 12}}
//	  ]
//	}

package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Snapshot is the serialized form of a host graph.
type Snapshot struct {
	Directed   bool           `json:"directed" yaml:"directed"`
	Multigraph bool           `json:"multigraph" yaml:"multigraph"`
	Nodes      []SnapshotNode `json:"nodes" yaml:"nodes"`
	Edges      []SnapshotEdge `json:"edges" yaml:"edges"`
}

// SnapshotNode is one node record in a snapshot.
type SnapshotNode struct {
	ID         string         `json:"id" yaml:"id"`
	Labels     []string       `json:"labels,omitempty" yaml:"labels,omitempty"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// SnapshotEdge is one edge record in a snapshot.
type SnapshotEdge struct {
	StartNode  string         `json:"startNode" yaml:"startNode"`
	EndNode    string         `json:"endNode" yaml:"endNode"`
	Key        *int64         `json:"key,omitempty" yaml:"key,omitempty"`
	Labels     []string       `json:"labels,omitempty" yaml:"labels,omitempty"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Load reads a snapshot file and builds a MemoryGraph. The format is chosen
// by extension: .yaml/.yml parse as YAML, anything else as JSON.
func Load(path string) (*MemoryGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("parse yaml snapshot: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("parse json snapshot: %w", err)
		}
	}

	return FromSnapshot(&snap)
}

// FromSnapshot materializes a MemoryGraph from a parsed snapshot.
func FromSnapshot(snap *Snapshot) (*MemoryGraph, error) {
	g := NewMemoryGraph(snap.Directed, snap.Multigraph)

	for _, n := range snap.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("snapshot node with empty id: %w", ErrInvalidData)
		}
		attrs := mergeLabels(n.Properties, n.Labels)
		if err := g.AddNode(NodeID(n.ID), attrs); err != nil {
			return nil, err
		}
	}

	for _, e := range snap.Edges {
		attrs := mergeLabels(e.Properties, e.Labels)
		from, to := NodeID(e.StartNode), NodeID(e.EndNode)
		if e.Key != nil {
			if err := g.AddEdgeWithKey(from, to, EdgeKey(*e.Key), attrs); err != nil {
				return nil, err
			}
		} else if _, err := g.AddEdge(from, to, attrs); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// mergeLabels folds a top-level label list into the properties map under
// LabelsAttr, normalizing whatever encoding the document used.
func mergeLabels(props map[string]any, labels []string) map[string]any {
	attrs := make(map[string]any, len(props)+1)
	for k, v := range props {
		attrs[k] = v
	}
	merged := Labels(attrs)
	merged = append(merged, labels...)
	if len(merged) > 0 {
		seen := make(map[string]struct{}, len(merged))
		uniq := merged[:0]
		for _, l := range merged {
			if _, dup := seen[l]; dup {
				continue
			}
			seen[l] = struct{}{}
			uniq = append(uniq, l)
		}
		attrs[LabelsAttr] = []string(uniq)
	}
	return attrs
}

// ToSnapshot serializes a MemoryGraph back to the snapshot document.
func ToSnapshot(g *MemoryGraph) *Snapshot {
	snap := &Snapshot{
		Directed:   g.IsDirected(),
		Multigraph: g.IsMultigraph(),
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, id := range g.order {
		attrs := g.nodes[id]
		props := make(map[string]any, len(attrs))
		for k, v := range attrs {
			if k == LabelsAttr {
				continue
			}
			props[k] = v
		}
		snap.Nodes = append(snap.Nodes, SnapshotNode{
			ID:         string(id),
			Labels:     Labels(attrs),
			Properties: props,
		})
	}

	for _, from := range g.order {
		for _, to := range g.order {
			if !g.directed && from > to {
				continue
			}
			for _, rec := range g.out[from][to] {
				props := make(map[string]any, len(rec.Attrs))
				for k, v := range rec.Attrs {
					if k == LabelsAttr {
						continue
					}
					props[k] = v
				}
				key := int64(rec.Key)
				snap.Edges = append(snap.Edges, SnapshotEdge{
					StartNode:  string(from),
					EndNode:    string(to),
					Key:        &key,
					Labels:     Labels(rec.Attrs),
					Properties: props,
				})
			}
		}
	}

	return snap
}

// Save writes a graph snapshot to path, JSON-encoded.
func Save(g *MemoryGraph, path string) error {
	data, err := json.MarshalIndent(ToSnapshot(g), "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
