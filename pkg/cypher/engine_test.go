package cypher

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/grandcypher/pkg/graph"
)

// karateClubGraph builds Zachary's karate club as a directed host: the
// standard 78-edge list oriented low-id -> high-id, each node carrying its
// faction under the "club" attribute.
func karateClubGraph(t *testing.T) *graph.MemoryGraph {
	t.Helper()

	edges := [][2]int{
		{0, 1}, {0, 2}, {0, 3}, {0, 4}, {0, 5}, {0, 6}, {0, 7}, {0, 8},
		{0, 10}, {0, 11}, {0, 12}, {0, 13}, {0, 17}, {0, 19}, {0, 21}, {0, 31},
		{1, 2}, {1, 3}, {1, 7}, {1, 13}, {1, 17}, {1, 19}, {1, 21}, {1, 30},
		{2, 3}, {2, 7}, {2, 8}, {2, 9}, {2, 13}, {2, 27}, {2, 28}, {2, 32},
		{3, 7}, {3, 12}, {3, 13},
		{4, 6}, {4, 10},
		{5, 6}, {5, 10}, {5, 16},
		{6, 16},
		{8, 30}, {8, 32}, {8, 33},
		{9, 33},
		{13, 33},
		{14, 32}, {14, 33},
		{15, 32}, {15, 33},
		{18, 32}, {18, 33},
		{19, 33},
		{20, 32}, {20, 33},
		{22, 32}, {22, 33},
		{23, 25}, {23, 27}, {23, 29}, {23, 32}, {23, 33},
		{24, 25}, {24, 27}, {24, 31},
		{25, 31},
		{26, 29}, {26, 33},
		{27, 33},
		{28, 31}, {28, 33},
		{29, 32}, {29, 33},
		{30, 32}, {30, 33},
		{31, 32}, {31, 33},
		{32, 33},
	}
	mrHi := map[int]bool{
		0: true, 1: true, 2: true, 3: true, 4: true, 5: true, 6: true,
		7: true, 8: true, 10: true, 11: true, 12: true, 13: true,
		16: true, 17: true, 19: true, 21: true,
	}

	g := graph.NewMemoryGraph(graph.Directed, graph.Simple)
	for v := 0; v < 34; v++ {
		club := "Officer"
		if mrHi[v] {
			club = "Mr. Hi"
		}
		require.NoError(t, g.AddNode(graph.NodeID(fmt.Sprintf("%d", v)), map[string]any{"club": club}))
	}
	for _, e := range edges {
		_, err := g.AddEdge(
			graph.NodeID(fmt.Sprintf("%d", e[0])),
			graph.NodeID(fmt.Sprintf("%d", e[1])), nil)
		require.NoError(t, err)
	}
	return g
}

func hasEdge(t *testing.T, g *graph.MemoryGraph, from, to graph.NodeID) bool {
	t.Helper()
	recs, err := g.EdgesBetween(from, to)
	require.NoError(t, err)
	return len(recs) > 0
}

func TestScenarioKarateClubTwoHop(t *testing.T) {
	g := karateClubGraph(t)

	res := runQuery(t, g, `
		MATCH (A)-[]->(B)
		MATCH (B)-[]->(C)
		WHERE A.club == "Mr. Hi"
		RETURN A.club, B.club`)

	require.Greater(t, res.RowCount(), 0)
	for _, row := range res.Rows {
		assert.Equal(t, "Mr. Hi", row[0])
	}

	// Re-run returning the bindings to check the edges really chain.
	bound := runQuery(t, g, `
		MATCH (A)-[]->(B)
		MATCH (B)-[]->(C)
		WHERE A.club == "Mr. Hi"
		RETURN A, B, C`)
	require.Equal(t, res.RowCount(), bound.RowCount())
	for _, row := range bound.Rows {
		a := row[0].(map[string]any)["_id"].(graph.NodeID)
		b := row[1].(map[string]any)["_id"].(graph.NodeID)
		c := row[2].(map[string]any)["_id"].(graph.NodeID)
		assert.True(t, hasEdge(t, g, a, b), "A->B edge missing for %s->%s", a, b)
		assert.True(t, hasEdge(t, g, b, c), "B->C edge missing for %s->%s", b, c)
	}
}

func TestScenarioTriangleWithPropertyFilter(t *testing.T) {
	g := graph.NewMemoryGraph(graph.Directed, graph.Simple)
	require.NoError(t, g.AddNode("A", map[string]any{"foo": "bar"}))
	require.NoError(t, g.AddNode("B", nil))
	require.NoError(t, g.AddNode("C", nil))
	for _, e := range [][2]graph.NodeID{{"A", "B"}, {"B", "C"}, {"C", "A"}} {
		_, err := g.AddEdge(e[0], e[1], nil)
		require.NoError(t, err)
	}

	res := runQuery(t, g, `
		MATCH (A)-[]->(B)
		MATCH (B)-[]->(C)
		MATCH (C)-[]->(A)
		WHERE A.foo == "bar"
		RETURN A, B, C`)

	require.Equal(t, 1, res.RowCount())
	row := res.Rows[0]
	assert.Equal(t, graph.NodeID("A"), row[0].(map[string]any)["_id"])
	assert.Equal(t, graph.NodeID("B"), row[1].(map[string]any)["_id"])
	assert.Equal(t, graph.NodeID("C"), row[2].(map[string]any)["_id"])
}

func TestScenarioMultigraphAggregate(t *testing.T) {
	g := graph.NewMemoryGraph(graph.Directed, graph.Multi)
	require.NoError(t, g.AddNode("a", map[string]any{"name": "Alice"}))
	require.NoError(t, g.AddNode("b", map[string]any{"name": "Bob"}))

	add := func(from, to graph.NodeID, label string, attrs map[string]any) {
		full := map[string]any{graph.LabelsAttr: []string{label}}
		for k, v := range attrs {
			full[k] = v
		}
		_, err := g.AddEdge(from, to, full)
		require.NoError(t, err)
	}
	add("a", "b", "paid", map[string]any{"amount": 12})
	add("b", "a", "paid", map[string]any{"amount": 6})
	add("b", "a", "paid", map[string]any{"value": 14})
	add("a", "b", "friends", map[string]any{"years": 9})
	add("a", "b", "paid", map[string]any{"amount": 40})

	res := runQuery(t, g, `MATCH (n)-[r:paid]->(m) RETURN n.name, m.name, SUM(r.amount)`)

	assert.Equal(t, []string{"n.name", "m.name", "SUM(r.amount)"}, res.Columns)
	assert.Equal(t, []any{"Alice", "Bob"}, res.Column("n.name"))
	assert.Equal(t, []any{"Bob", "Alice"}, res.Column("m.name"))

	sums := res.Column("SUM(r.amount)")
	require.Len(t, sums, 2)
	assert.Equal(t, map[string]any{"paid": int64(52)}, sums[0])
	assert.Equal(t, map[string]any{"paid": int64(6)}, sums[1])
}

func TestScenarioVariableLengthPath(t *testing.T) {
	g := chainGraph(t, "1", "2", "3", "4")

	res := runQuery(t, g, `MATCH (a)-[*2..3]->(b) RETURN a, b`)

	got := make(map[string]bool)
	for _, row := range res.Rows {
		a := row[0].(map[string]any)["_id"].(graph.NodeID)
		b := row[1].(map[string]any)["_id"].(graph.NodeID)
		got[string(a)+"->"+string(b)] = true
	}
	assert.Equal(t, map[string]bool{
		"1->3": true,
		"1->4": true,
		"2->4": true,
	}, got, "2..3-hop pairs and nothing else")
}

func TestScenarioHintPinning(t *testing.T) {
	g := karateClubGraph(t)

	res := runQuery(t, g, `
		MATCH (A)-[]->(B)
		MATCH (B)-[]->(C)
		WHERE A.club == "Mr. Hi"
		RETURN A, B.club`,
		Hint{"A": "1"})

	require.Greater(t, res.RowCount(), 0)
	for _, row := range res.Rows {
		assert.Equal(t, graph.NodeID("1"), row[0].(map[string]any)["_id"])
	}
}

func TestScenarioDistinctOrderByLimit(t *testing.T) {
	g := graph.NewMemoryGraph(graph.Directed, graph.Simple)
	for i, age := range []int{25, 30, 25, 40, 30} {
		require.NoError(t, g.AddNode(graph.NodeID(fmt.Sprintf("p%d", i)), map[string]any{"age": age}))
	}

	res := runQuery(t, g, `MATCH (n) RETURN DISTINCT n.age ORDER BY n.age DESC LIMIT 2`)
	assert.Equal(t, []any{40, 30}, res.Column("n.age"))
}

func TestLimitStopsEnumeration(t *testing.T) {
	// A host that counts NodeAttrs calls shows the matcher stops early
	// under LIMIT without ORDER BY or aggregates.
	g := graph.NewMemoryGraph(graph.Directed, graph.Simple)
	for i := 0; i < 100; i++ {
		require.NoError(t, g.AddNode(graph.NodeID(fmt.Sprintf("n%d", i)), map[string]any{"i": i}))
	}
	counter := &attrCountingGraph{MemoryGraph: g}

	res, err := NewEngine(counter).Run(context.Background(), `MATCH (a) MATCH (b) RETURN a.i, b.i LIMIT 3`)
	require.NoError(t, err)
	assert.Equal(t, 3, res.RowCount())
	// The cross-product has 10000 rows; stopping after 3 must not have
	// resolved attribute maps anywhere near that often.
	assert.Less(t, counter.attrCalls, 2000)
}

type attrCountingGraph struct {
	*graph.MemoryGraph
	attrCalls int
}

func (g *attrCountingGraph) NodeAttrs(id graph.NodeID) (map[string]any, error) {
	g.attrCalls++
	return g.MemoryGraph.NodeAttrs(id)
}

func TestEngineParseErrorSurface(t *testing.T) {
	g := graph.NewMemoryGraph(graph.Directed, graph.Simple)
	_, err := NewEngine(g).Run(context.Background(), `MATCH (n`)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

func TestRunReusableEngine(t *testing.T) {
	g := chainGraph(t, "a", "b", "c")
	eng := NewEngine(g)

	res1, err := eng.Run(context.Background(), `MATCH (n) RETURN n`)
	require.NoError(t, err)
	res2, err := eng.Run(context.Background(), `MATCH (x)-[]->(y) RETURN x`)
	require.NoError(t, err)
	assert.Equal(t, 3, res1.RowCount())
	assert.Equal(t, 2, res2.RowCount())

	// Determinism: identical queries enumerate identically.
	res3, err := eng.Run(context.Background(), `MATCH (n) RETURN n`)
	require.NoError(t, err)
	assert.Equal(t, res1.Rows, res3.Rows)
}
