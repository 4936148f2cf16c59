package cypher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/grandcypher/pkg/graph"
)

func peopleGraph(t *testing.T, ages ...int) *graph.MemoryGraph {
	t.Helper()
	g := graph.NewMemoryGraph(graph.Directed, graph.Simple)
	for i, age := range ages {
		id := graph.NodeID(string(rune('a' + i)))
		require.NoError(t, g.AddNode(id, map[string]any{"age": age}))
	}
	return g
}

func TestDistinct(t *testing.T) {
	g := peopleGraph(t, 25, 30, 25, 40, 30)

	res := runQuery(t, g, `MATCH (n) RETURN DISTINCT n.age`)
	assert.Equal(t, []any{25, 30, 40}, res.Column("n.age"), "first-seen order")

	// DISTINCT idempotence: an already-distinct result is unchanged.
	again := runQuery(t, g, `MATCH (n) RETURN DISTINCT n.age`)
	assert.Equal(t, res.Rows, again.Rows)
}

func TestOrderBy(t *testing.T) {
	g := peopleGraph(t, 30, 25, 40)

	res := runQuery(t, g, `MATCH (n) RETURN n.age ORDER BY n.age`)
	assert.Equal(t, []any{25, 30, 40}, res.Column("n.age"))

	res = runQuery(t, g, `MATCH (n) RETURN n.age ORDER BY n.age DESC`)
	assert.Equal(t, []any{40, 30, 25}, res.Column("n.age"))
}

func TestOrderByNullsLast(t *testing.T) {
	g := graph.NewMemoryGraph(graph.Directed, graph.Simple)
	require.NoError(t, g.AddNode("a", map[string]any{"age": 30}))
	require.NoError(t, g.AddNode("b", nil)) // no age
	require.NoError(t, g.AddNode("c", map[string]any{"age": 20}))

	res := runQuery(t, g, `MATCH (n) RETURN n.age ORDER BY n.age`)
	assert.Equal(t, []any{20, 30, nil}, res.Column("n.age"))

	res = runQuery(t, g, `MATCH (n) RETURN n.age ORDER BY n.age DESC`)
	assert.Equal(t, []any{30, 20, nil}, res.Column("n.age"), "nulls last regardless of direction")
}

func TestOrderByChainedKeysStable(t *testing.T) {
	g := graph.NewMemoryGraph(graph.Directed, graph.Simple)
	data := []struct {
		id   graph.NodeID
		dept string
		age  int
	}{
		{"a", "eng", 30}, {"b", "ops", 25}, {"c", "eng", 25}, {"d", "ops", 30},
	}
	for _, d := range data {
		require.NoError(t, g.AddNode(d.id, map[string]any{"dept": d.dept, "age": d.age}))
	}

	res := runQuery(t, g, `MATCH (n) RETURN n.dept, n.age ORDER BY n.dept, n.age DESC`)
	assert.Equal(t, []any{"eng", "eng", "ops", "ops"}, res.Column("n.dept"))
	assert.Equal(t, []any{30, 25, 30, 25}, res.Column("n.age"))
}

func TestOrderByAlias(t *testing.T) {
	g := peopleGraph(t, 30, 25, 40)
	res := runQuery(t, g, `MATCH (n) RETURN n.age AS age ORDER BY age`)
	assert.Equal(t, []any{25, 30, 40}, res.Column("age"))
}

func TestSkipAndLimit(t *testing.T) {
	g := peopleGraph(t, 10, 20, 30, 40, 50)

	res := runQuery(t, g, `MATCH (n) RETURN n.age ORDER BY n.age SKIP 1 LIMIT 2`)
	assert.Equal(t, []any{20, 30}, res.Column("n.age"))

	res = runQuery(t, g, `MATCH (n) RETURN n.age ORDER BY n.age SKIP 10`)
	assert.Equal(t, 0, res.RowCount())

	res = runQuery(t, g, `MATCH (n) RETURN n.age LIMIT 3`)
	assert.Equal(t, 3, res.RowCount())
}

func TestLimitColumnsEqualLength(t *testing.T) {
	g := peopleGraph(t, 10, 20, 30)
	res := runQuery(t, g, `MATCH (n) MATCH (m) RETURN n.age, m.age LIMIT 4`)
	table := res.Table()
	assert.Len(t, table["n.age"], 4)
	assert.Len(t, table["m.age"], 4)
}

func TestWhereExcludesNullAndFalse(t *testing.T) {
	g := graph.NewMemoryGraph(graph.Directed, graph.Simple)
	require.NoError(t, g.AddNode("a", map[string]any{"age": 30}))
	require.NoError(t, g.AddNode("b", nil))                       // age missing: predicate null
	require.NoError(t, g.AddNode("c", map[string]any{"age": 10})) // predicate false

	res := runQuery(t, g, `MATCH (n) WHERE n.age > 18 RETURN n.age`)
	assert.Equal(t, []any{30}, res.Column("n.age"))
}

func TestAggregatesSingleGroup(t *testing.T) {
	g := peopleGraph(t, 10, 20, 30)

	res := runQuery(t, g, `MATCH (n) RETURN COUNT(*), COUNT(n.age), SUM(n.age), MIN(n.age), MAX(n.age), AVG(n.age)`)
	require.Equal(t, 1, res.RowCount())
	row := res.Rows[0]
	assert.Equal(t, int64(3), row[0])
	assert.Equal(t, int64(3), row[1])
	assert.Equal(t, int64(60), row[2])
	assert.Equal(t, 10, row[3])
	assert.Equal(t, 30, row[4])
	assert.Equal(t, 20.0, row[5])
}

func TestAggregatesEmptyInput(t *testing.T) {
	g := graph.NewMemoryGraph(graph.Directed, graph.Simple)

	res := runQuery(t, g, `MATCH (n) RETURN COUNT(*), SUM(n.age), MIN(n.age), AVG(n.age)`)
	require.Equal(t, 1, res.RowCount())
	row := res.Rows[0]
	assert.Equal(t, int64(0), row[0])
	assert.Equal(t, int64(0), row[1], "SUM over nothing is 0")
	assert.Nil(t, row[2], "MIN over nothing is null")
	assert.Nil(t, row[3], "AVG over nothing is null")
}

func TestAggregateCountSkipsNulls(t *testing.T) {
	g := graph.NewMemoryGraph(graph.Directed, graph.Simple)
	require.NoError(t, g.AddNode("a", map[string]any{"age": 30}))
	require.NoError(t, g.AddNode("b", nil))

	res := runQuery(t, g, `MATCH (n) RETURN COUNT(*), COUNT(n.age)`)
	assert.Equal(t, int64(2), res.Rows[0][0])
	assert.Equal(t, int64(1), res.Rows[0][1])
}

func TestAggregateImplicitGrouping(t *testing.T) {
	g := graph.NewMemoryGraph(graph.Directed, graph.Simple)
	data := []struct {
		id   graph.NodeID
		dept string
		age  int
	}{
		{"a", "eng", 30}, {"b", "eng", 40}, {"c", "ops", 50},
	}
	for _, d := range data {
		require.NoError(t, g.AddNode(d.id, map[string]any{"dept": d.dept, "age": d.age}))
	}

	res := runQuery(t, g, `MATCH (n) RETURN n.dept, SUM(n.age), COUNT(*)`)
	require.Equal(t, 2, res.RowCount())
	assert.Equal(t, []any{"eng", "ops"}, res.Column("n.dept"), "groups in first-seen order")
	assert.Equal(t, []any{int64(70), int64(50)}, res.Column("SUM(n.age)"))
	assert.Equal(t, []any{int64(2), int64(1)}, res.Column("COUNT(*)"))
}

func TestAggregateGroupingWithEmptyMatch(t *testing.T) {
	g := graph.NewMemoryGraph(graph.Directed, graph.Simple)
	res := runQuery(t, g, `MATCH (n) RETURN n.dept, COUNT(*)`)
	assert.Equal(t, 0, res.RowCount(), "grouped aggregate over nothing has no groups")
}

func TestAggregateMixedWithArithmetic(t *testing.T) {
	g := peopleGraph(t, 10, 20)
	res := runQuery(t, g, `MATCH (n) RETURN SUM(n.age) + COUNT(*) AS total`)
	require.Equal(t, 1, res.RowCount())
	assert.Equal(t, int64(32), res.Rows[0][0])
}

func TestSumFloatPromotion(t *testing.T) {
	g := graph.NewMemoryGraph(graph.Directed, graph.Simple)
	require.NoError(t, g.AddNode("a", map[string]any{"v": 1}))
	require.NoError(t, g.AddNode("b", map[string]any{"v": 2.5}))

	res := runQuery(t, g, `MATCH (n) RETURN SUM(n.v)`)
	assert.Equal(t, 3.5, res.Rows[0][0])
}

func TestEmptyResultShape(t *testing.T) {
	g := graph.NewMemoryGraph(graph.Directed, graph.Simple)
	res := runQuery(t, g, `MATCH (n) RETURN n.age, n.name`)
	assert.Equal(t, []string{"n.age", "n.name"}, res.Columns)
	assert.Equal(t, 0, res.RowCount())
	table := res.Table()
	assert.Empty(t, table["n.age"])
	assert.Empty(t, table["n.name"])
}

func TestColumnLabelsUseExpressionText(t *testing.T) {
	g := peopleGraph(t, 30)
	res := runQuery(t, g, `MATCH (n) RETURN n.age, n.age + 1, n.age AS years`)
	assert.Equal(t, []string{"n.age", "n.age + 1", "years"}, res.Columns)
}

func TestContextCancellation(t *testing.T) {
	g := peopleGraph(t, 1, 2, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEngine(g).Run(ctx, `MATCH (n) MATCH (m) RETURN n.age, m.age`)
	assert.ErrorIs(t, err, context.Canceled)
}
