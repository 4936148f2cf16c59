package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNodeAndAttrs(t *testing.T) {
	g := NewMemoryGraph(Directed, Simple)

	require.NoError(t, g.AddNode("a", map[string]any{"name": "Alice"}))
	require.NoError(t, g.AddNode("b", nil))

	attrs, err := g.NodeAttrs("a")
	require.NoError(t, err)
	assert.Equal(t, "Alice", attrs["name"])

	attrs, err = g.NodeAttrs("b")
	require.NoError(t, err)
	assert.Empty(t, attrs)

	_, err = g.NodeAttrs("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = g.AddNode("a", nil)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestAddEdgeValidation(t *testing.T) {
	g := NewMemoryGraph(Directed, Simple)
	require.NoError(t, g.AddNode("a", nil))
	require.NoError(t, g.AddNode("b", nil))

	_, err := g.AddEdge("a", "missing", nil)
	assert.ErrorIs(t, err, ErrInvalidEdge)

	key, err := g.AddEdge("a", "b", nil)
	require.NoError(t, err)
	assert.Equal(t, EdgeKey(0), key)

	// Simple graph rejects parallel edges.
	_, err = g.AddEdge("a", "b", nil)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestMultigraphParallelEdges(t *testing.T) {
	g := NewMemoryGraph(Directed, Multi)
	require.NoError(t, g.AddNode("a", nil))
	require.NoError(t, g.AddNode("b", nil))

	k0, err := g.AddEdge("a", "b", map[string]any{"amount": 12})
	require.NoError(t, err)
	k1, err := g.AddEdge("a", "b", map[string]any{"amount": 40})
	require.NoError(t, err)
	assert.Equal(t, EdgeKey(0), k0)
	assert.Equal(t, EdgeKey(1), k1)

	recs, err := g.EdgesBetween("a", "b")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, EdgeKey(0), recs[0].Key)
	assert.Equal(t, 12, recs[0].Attrs["amount"])
	assert.Equal(t, 40, recs[1].Attrs["amount"])

	// Reverse direction has no edges on a directed host.
	recs, err = g.EdgesBetween("b", "a")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestUndirectedEdgesVisibleBothWays(t *testing.T) {
	g := NewMemoryGraph(Undirected, Simple)
	require.NoError(t, g.AddNode("a", nil))
	require.NoError(t, g.AddNode("b", nil))
	_, err := g.AddEdge("a", "b", map[string]any{"w": 1})
	require.NoError(t, err)

	forward, err := g.EdgesBetween("a", "b")
	require.NoError(t, err)
	backward, err := g.EdgesBetween("b", "a")
	require.NoError(t, err)
	assert.Len(t, forward, 1)
	assert.Len(t, backward, 1)
	assert.Equal(t, 1, g.EdgeCount())
}

func TestNodesEnumerationOrderAndStop(t *testing.T) {
	g := NewMemoryGraph(Directed, Simple)
	for _, id := range []NodeID{"c", "a", "b"} {
		require.NoError(t, g.AddNode(id, nil))
	}

	var seen []NodeID
	err := g.Nodes(context.Background(), func(id NodeID) error {
		seen = append(seen, id)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []NodeID{"c", "a", "b"}, seen, "insertion order preserved")

	// Early termination via sentinel is not an error.
	seen = nil
	err = g.Nodes(context.Background(), func(id NodeID) error {
		seen = append(seen, id)
		return ErrStopIteration
	})
	require.NoError(t, err)
	assert.Len(t, seen, 1)
}

func TestOutAndInEdges(t *testing.T) {
	g := NewMemoryGraph(Directed, Simple)
	for _, id := range []NodeID{"a", "b", "c"} {
		require.NoError(t, g.AddNode(id, nil))
	}
	_, err := g.AddEdge("a", "b", map[string]any{"w": 1})
	require.NoError(t, err)
	_, err = g.AddEdge("a", "c", map[string]any{"w": 2})
	require.NoError(t, err)
	_, err = g.AddEdge("c", "a", map[string]any{"w": 3})
	require.NoError(t, err)

	var out []NodeID
	require.NoError(t, g.OutEdges("a", func(to NodeID, key EdgeKey, attrs map[string]any) error {
		out = append(out, to)
		return nil
	}))
	assert.Equal(t, []NodeID{"b", "c"}, out)

	var in []NodeID
	require.NoError(t, g.InEdges("a", func(from NodeID, key EdgeKey, attrs map[string]any) error {
		in = append(in, from)
		return nil
	}))
	assert.Equal(t, []NodeID{"c"}, in)
}

func TestLabelsHelpers(t *testing.T) {
	tests := []struct {
		name     string
		attrs    map[string]any
		expected []string
	}{
		{"nil map", nil, nil},
		{"absent", map[string]any{"x": 1}, nil},
		{"string slice", map[string]any{LabelsAttr: []string{"b", "a"}}, []string{"a", "b"}},
		{"any slice", map[string]any{LabelsAttr: []any{"paid"}}, []string{"paid"}},
		{"set", map[string]any{LabelsAttr: map[string]struct{}{"x": {}}}, []string{"x"}},
		{"single string", map[string]any{LabelsAttr: "solo"}, []string{"solo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Labels(tt.attrs))
		})
	}

	assert.True(t, HasLabel(map[string]any{LabelsAttr: []string{"paid"}}, "paid"))
	assert.False(t, HasLabel(map[string]any{LabelsAttr: []string{"paid"}}, "owes"))
	assert.Equal(t, "a", PrimaryLabel(map[string]any{LabelsAttr: []string{"b", "a"}}))
	assert.Equal(t, "", PrimaryLabel(nil))
}
