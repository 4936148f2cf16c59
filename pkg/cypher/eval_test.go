package cypher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/grandcypher/pkg/graph"
)

// evalHost builds a one-node host and an evaluator bound to it.
func evalHost(t *testing.T, attrs map[string]any) *evaluator {
	t.Helper()
	g := graph.NewMemoryGraph(graph.Directed, graph.Simple)
	require.NoError(t, g.AddNode("n1", attrs))
	r := newRow()
	r.nodes["n"] = "n1"
	return &evaluator{g: g, row: r}
}

// evalWhere parses an expression as a WHERE clause and evaluates it.
func evalWhere(t *testing.T, ev *evaluator, expr string) (any, error) {
	t.Helper()
	q, err := NewParser().Parse("MATCH (n) WHERE " + expr + " RETURN n")
	require.NoError(t, err)
	return ev.eval(q.Where)
}

func TestKleeneTruthTables(t *testing.T) {
	assert.Equal(t, truthTrue, truthAnd(truthTrue, truthTrue))
	assert.Equal(t, truthFalse, truthAnd(truthTrue, truthFalse))
	assert.Equal(t, truthFalse, truthAnd(truthNull, truthFalse), "false dominates AND")
	assert.Equal(t, truthNull, truthAnd(truthNull, truthTrue))

	assert.Equal(t, truthTrue, truthOr(truthNull, truthTrue), "true dominates OR")
	assert.Equal(t, truthNull, truthOr(truthNull, truthFalse))
	assert.Equal(t, truthFalse, truthOr(truthFalse, truthFalse))

	assert.Equal(t, truthNull, truthNot(truthNull))
	assert.Equal(t, truthFalse, truthNot(truthTrue))
}

func TestEqualValues(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want truth
	}{
		{"int eq int", int64(2), int64(2), truthTrue},
		{"int eq float", int64(2), 2.0, truthTrue},
		{"int ne float", int64(2), 2.5, truthFalse},
		{"string eq", "x", "x", truthTrue},
		{"string ne", "x", "y", truthFalse},
		{"string vs number", "2", int64(2), truthFalse},
		{"bool eq", true, true, truthTrue},
		{"null poisons", nil, int64(2), truthNull},
		{"null vs null", nil, nil, truthNull},
		{"lists", []any{int64(1), "a"}, []any{1.0, "a"}, truthTrue},
		{"list length", []any{int64(1)}, []any{int64(1), int64(2)}, truthFalse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, equalValues(tt.a, tt.b))
		})
	}
}

func TestWhereSemantics(t *testing.T) {
	ev := evalHost(t, map[string]any{
		"age":   30,
		"name":  "Alice",
		"email": nil,
		"tags":  []any{"a", "b"},
	})

	tests := []struct {
		expr string
		want any
	}{
		{"n.age = 30", true},
		{"n.age == 30.0", true},
		{"n.age <> 31", true},
		{"n.age != 30", false},
		{"n.age > 18 AND n.age < 65", true},
		{"n.age > 18 AND n.missing > 1", nil}, // null AND-propagates
		{"n.age < 18 AND n.missing > 1", false},
		{"n.age > 18 OR n.missing > 1", true},
		{"NOT n.age > 18", false},
		{"n.missing = 1", nil},
		{"n.missing = null", nil}, // comparing to null is null, not true
		{"n.email IS NULL", true},
		{"n.email IS NOT NULL", false},
		{"n.missing IS NULL", true},
		{"n.age IS NOT NULL", true},
		{"n.name CONTAINS 'lic'", true},
		{"n.name STARTS WITH 'Al'", true},
		{"n.name ENDS WITH 'ce'", true},
		{"n.name STARTS WITH 'Bo'", false},
		{"n.missing CONTAINS 'x'", nil},
		{"n.age IN [25, 30, 35]", true},
		{"n.age IN [1, 2]", false},
		{"n.age IN [1, null]", nil}, // unmatched null member is unknown
		{"n.missing IN [1, 2]", nil},
		{"n.age + 5 = 35", true},
		{"n.age * 2 - 10 = 50", true},
		{"n.age / 4 = 7", true}, // integer division
		{"n.age / 0 IS NULL", true},
		{"1 = 1 AND 2 = 2", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evalWhere(t, ev, tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringOpTypeMismatch(t *testing.T) {
	ev := evalHost(t, map[string]any{"age": 30})

	_, err := evalWhere(t, ev, "n.age CONTAINS 'x'")
	var terr *TypeMismatchError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "CONTAINS", terr.Op)

	_, err = evalWhere(t, ev, "n.age STARTS WITH 'x'")
	require.ErrorAs(t, err, &terr)
}

func TestArithmeticTypeMismatch(t *testing.T) {
	ev := evalHost(t, map[string]any{"name": "Alice"})

	_, err := evalWhere(t, ev, "n.name + 1 = 2")
	var terr *TypeMismatchError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "+", terr.Op)
}

func TestArithmeticNullAndPromotion(t *testing.T) {
	ev := evalHost(t, map[string]any{"i": 4, "f": 2.5})

	got, err := evalWhere(t, ev, "n.i + n.f = 6.5")
	require.NoError(t, err)
	assert.Equal(t, true, got, "int + float promotes to float")

	got, err = evalWhere(t, ev, "n.i + n.missing = 4")
	require.NoError(t, err)
	assert.Nil(t, got, "null operand propagates")
}

func TestNodeVariableValue(t *testing.T) {
	ev := evalHost(t, map[string]any{"name": "Alice", graph.LabelsAttr: []string{"Person"}})

	v, err := ev.eval(&VariableRef{Name: "n"})
	require.NoError(t, err)
	dict, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Alice", dict["name"])
	assert.Equal(t, graph.NodeID("n1"), dict["_id"])
	assert.Equal(t, []string{"Person"}, dict[graph.LabelsAttr])
}

func TestMissingPropertyIsNull(t *testing.T) {
	ev := evalHost(t, nil)
	v, err := ev.eval(&PropertyAccess{Variable: "n", Property: "nope"})
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestOrderValues(t *testing.T) {
	cmp, ok := orderValues(int64(1), 2.0)
	assert.True(t, ok)
	assert.Equal(t, -1, cmp)

	cmp, ok = orderValues("b", "a")
	assert.True(t, ok)
	assert.Equal(t, 1, cmp)

	_, ok = orderValues("a", int64(1))
	assert.False(t, ok, "mixed kinds have no order")

	_, ok = orderValues(nil, int64(1))
	assert.False(t, ok)
}
