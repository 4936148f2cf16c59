// Expression evaluation for GrandCypher.
//
// This file implements Cypher's value semantics against a bound embedding
// row: property access, comparison with numeric coercion, string operators,
// IN, IS [NOT] NULL, arithmetic, and Kleene three-valued logic. Null is
// represented by Go's nil and propagates through every operator; only the
// WHERE gate in the pipeline coerces null to false.
//
// Type Coercion:
//   - Numeric types compare as numbers (int64 and float64 coerce freely)
//   - Strings compare lexicographically
//   - null compared to anything (including null) is null
//   - String operators on non-string non-null raise TypeMismatchError
//   - Arithmetic on non-numeric non-null raises TypeMismatchError
//   - Division by zero yields null

package cypher

import (
	"strings"

	"github.com/orneryd/grandcypher/pkg/convert"
	"github.com/orneryd/grandcypher/pkg/graph"
)

// truth is the Kleene three-valued logic domain.
type truth int8

const (
	truthFalse truth = iota
	truthTrue
	truthNull
)

func truthOf(b bool) truth {
	if b {
		return truthTrue
	}
	return truthFalse
}

// toValue renders a truth as a row value: true, false, or nil.
func (t truth) toValue() any {
	switch t {
	case truthTrue:
		return true
	case truthFalse:
		return false
	}
	return nil
}

func truthNot(t truth) truth {
	switch t {
	case truthTrue:
		return truthFalse
	case truthFalse:
		return truthTrue
	}
	return truthNull
}

func truthAnd(a, b truth) truth {
	if a == truthFalse || b == truthFalse {
		return truthFalse
	}
	if a == truthNull || b == truthNull {
		return truthNull
	}
	return truthTrue
}

func truthOr(a, b truth) truth {
	if a == truthTrue || b == truthTrue {
		return truthTrue
	}
	if a == truthNull || b == truthNull {
		return truthNull
	}
	return truthFalse
}

// coerceTruth interprets an evaluated value as a predicate result.
// Non-boolean non-null values have no truth value; they read as null.
func coerceTruth(v any) truth {
	if v == nil {
		return truthNull
	}
	if b, ok := v.(bool); ok {
		return truthOf(b)
	}
	return truthNull
}

// equalValues implements Cypher equality: null poisons, numerics coerce,
// everything else compares strictly by kind and value.
func equalValues(a, b any) truth {
	if a == nil || b == nil {
		return truthNull
	}
	if convert.IsNumeric(a) && convert.IsNumeric(b) {
		fa, _ := convert.ToFloat64(a)
		fb, _ := convert.ToFloat64(b)
		return truthOf(fa == fb)
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return truthOf(ok && av == bv)
	case bool:
		bv, ok := b.(bool)
		return truthOf(ok && av == bv)
	}
	al, aok := asList(a)
	bl, bok := asList(b)
	if aok && bok {
		if len(al) != len(bl) {
			return truthFalse
		}
		result := truthTrue
		for i := range al {
			eq := equalValues(al[i], bl[i])
			if eq == truthFalse {
				return truthFalse
			}
			if eq == truthNull {
				result = truthNull
			}
		}
		return result
	}
	return truthFalse
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// orderValues compares a and b for <, <=, >, >=. The second return is false
// when the pair has no defined order (null involved, or mixed kinds).
func orderValues(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if convert.IsNumeric(a) && convert.IsNumeric(b) {
		fa, _ := convert.ToFloat64(a)
		fb, _ := convert.ToFloat64(b)
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch {
		case as < bs:
			return -1, true
		case as > bs:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// ========================================
// Row values
// ========================================

// EdgeAttrEntry is one parallel edge's contribution to an edge-variable
// attribute on a multigraph: the edge key, the edge's primary label, and
// the attribute value (nil when the edge lacks the attribute).
type EdgeAttrEntry struct {
	Key   graph.EdgeKey
	Label string
	Value any
}

// EdgeAttrs is the per-edge-key projection of `r.attr` when r is bound to
// parallel edges. Aggregates over it produce label-keyed maps.
type EdgeAttrs []EdgeAttrEntry

// row is one joined assignment of query variables to host bindings.
type row struct {
	nodes map[string]graph.NodeID
	edges map[string]*edgeBinding
}

func newRow() *row {
	return &row{
		nodes: make(map[string]graph.NodeID),
		edges: make(map[string]*edgeBinding),
	}
}

func (r *row) clone() *row {
	nr := newRow()
	for k, v := range r.nodes {
		nr.nodes[k] = v
	}
	for k, v := range r.edges {
		nr.edges[k] = v
	}
	return nr
}

// evaluator computes expression values against a row. In grouped mode
// (groupRows non-nil) aggregate calls reduce over the whole group and leaf
// references resolve against the group's first row.
type evaluator struct {
	g         graph.Graph
	row       *row
	groupRows []*row
}

func (ev *evaluator) eval(expr Expression) (any, error) {
	switch e := expr.(type) {
	case *Literal:
		return e.Value, nil

	case *ListLiteral:
		out := make([]any, len(e.Elements))
		for i, el := range e.Elements {
			v, err := ev.eval(el)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case *VariableRef:
		return ev.lookupVariable(e.Name)

	case *PropertyAccess:
		return ev.lookupProperty(e.Variable, e.Property)

	case *Comparison:
		return ev.evalComparison(e)

	case *BoolExpr:
		lv, err := ev.eval(e.Left)
		if err != nil {
			return nil, err
		}
		rv, err := ev.eval(e.Right)
		if err != nil {
			return nil, err
		}
		if e.Op == "AND" {
			return truthAnd(coerceTruth(lv), coerceTruth(rv)).toValue(), nil
		}
		return truthOr(coerceTruth(lv), coerceTruth(rv)).toValue(), nil

	case *NotExpr:
		v, err := ev.eval(e.Operand)
		if err != nil {
			return nil, err
		}
		return truthNot(coerceTruth(v)).toValue(), nil

	case *IsNull:
		v, err := ev.eval(e.Operand)
		if err != nil {
			return nil, err
		}
		isNull := v == nil
		if e.Negated {
			return !isNull, nil
		}
		return isNull, nil

	case *Arithmetic:
		return ev.evalArithmetic(e)

	case *Negate:
		v, err := ev.eval(e.Operand)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		}
		if f, ok := convert.ToFloat64(v); ok {
			return -f, nil
		}
		return nil, &TypeMismatchError{Op: "-", Value: v}

	case *AggregateCall:
		if ev.groupRows == nil {
			return nil, &TypeMismatchError{Op: e.Func, Value: "aggregate outside grouping"}
		}
		return ev.computeAggregate(e)
	}
	return nil, &TypeMismatchError{Op: "eval", Value: expr}
}

// evalTruth evaluates a predicate expression into the three-valued domain.
func (ev *evaluator) evalTruth(expr Expression) (truth, error) {
	v, err := ev.eval(expr)
	if err != nil {
		return truthNull, err
	}
	return coerceTruth(v), nil
}

func (ev *evaluator) leafRow() *row {
	if ev.row != nil {
		return ev.row
	}
	if len(ev.groupRows) > 0 {
		return ev.groupRows[0]
	}
	return nil
}

// lookupVariable materializes a bare variable reference: a node becomes its
// attribute map plus the host id under "_id"; an edge becomes its attribute
// map plus endpoints and key, a per-edge-key mapping on multigraphs, or a
// step list for variable-length bindings.
func (ev *evaluator) lookupVariable(name string) (any, error) {
	r := ev.leafRow()
	if r == nil {
		return nil, &UnknownVariableError{Name: name}
	}
	if id, ok := r.nodes[name]; ok {
		attrs, err := ev.g.NodeAttrs(id)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(attrs)+1)
		for k, v := range attrs {
			out[k] = v
		}
		out["_id"] = id
		return out, nil
	}
	if binding, ok := r.edges[name]; ok {
		return ev.edgeValue(binding), nil
	}
	return nil, &UnknownVariableError{Name: name}
}

func edgeStepDict(step EdgeStep) map[string]any {
	out := make(map[string]any, len(step.Attrs)+3)
	for k, v := range step.Attrs {
		out[k] = v
	}
	out["_start"] = step.From
	out["_end"] = step.To
	out["_key"] = step.Key
	return out
}

func (ev *evaluator) edgeValue(binding *edgeBinding) any {
	if binding.varLength {
		out := make([]map[string]any, len(binding.steps))
		for i, step := range binding.steps {
			out[i] = edgeStepDict(step)
		}
		return out
	}
	if ev.g.IsMultigraph() {
		out := make(map[graph.EdgeKey]map[string]any, len(binding.parallel))
		for _, step := range binding.parallel {
			out[step.Key] = edgeStepDict(step)
		}
		return out
	}
	return edgeStepDict(binding.parallel[0])
}

func (ev *evaluator) lookupProperty(variable, property string) (any, error) {
	r := ev.leafRow()
	if r == nil {
		return nil, &UnknownVariableError{Name: variable}
	}
	if id, ok := r.nodes[variable]; ok {
		attrs, err := ev.g.NodeAttrs(id)
		if err != nil {
			return nil, err
		}
		return attrs[property], nil
	}
	if binding, ok := r.edges[variable]; ok {
		if binding.varLength {
			out := make([]any, len(binding.steps))
			for i, step := range binding.steps {
				out[i] = step.Attrs[property]
			}
			return out, nil
		}
		if ev.g.IsMultigraph() {
			out := make(EdgeAttrs, len(binding.parallel))
			for i, step := range binding.parallel {
				out[i] = EdgeAttrEntry{
					Key:   step.Key,
					Label: graph.PrimaryLabel(step.Attrs),
					Value: step.Attrs[property],
				}
			}
			return out, nil
		}
		return binding.parallel[0].Attrs[property], nil
	}
	return nil, &UnknownVariableError{Name: variable}
}

func (ev *evaluator) evalComparison(e *Comparison) (any, error) {
	lv, err := ev.eval(e.Left)
	if err != nil {
		return nil, err
	}
	rv, err := ev.eval(e.Right)
	if err != nil {
		return nil, err
	}

	switch e.Operator {
	case "=":
		return equalValues(lv, rv).toValue(), nil
	case "<>":
		return truthNot(equalValues(lv, rv)).toValue(), nil
	case "<", "<=", ">", ">=":
		if lv == nil || rv == nil {
			return nil, nil
		}
		cmp, ok := orderValues(lv, rv)
		if !ok {
			return nil, nil
		}
		switch e.Operator {
		case "<":
			return cmp < 0, nil
		case "<=":
			return cmp <= 0, nil
		case ">":
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	case "IN":
		return ev.evalIn(lv, rv)
	case "CONTAINS", "STARTS WITH", "ENDS WITH":
		return evalStringOp(e.Operator, lv, rv)
	}
	return nil, &TypeMismatchError{Op: e.Operator, Value: lv}
}

func (ev *evaluator) evalIn(lv, rv any) (any, error) {
	if lv == nil || rv == nil {
		return nil, nil
	}
	list, ok := asList(rv)
	if !ok {
		return nil, &TypeMismatchError{Op: "IN", Value: rv}
	}
	sawNull := false
	for _, el := range list {
		switch equalValues(lv, el) {
		case truthTrue:
			return true, nil
		case truthNull:
			sawNull = true
		}
	}
	if sawNull {
		return nil, nil
	}
	return false, nil
}

func evalStringOp(op string, lv, rv any) (any, error) {
	if lv == nil || rv == nil {
		return nil, nil
	}
	ls, lok := lv.(string)
	if !lok {
		return nil, &TypeMismatchError{Op: op, Value: lv}
	}
	rs, rok := rv.(string)
	if !rok {
		return nil, &TypeMismatchError{Op: op, Value: rv}
	}
	switch op {
	case "CONTAINS":
		return strings.Contains(ls, rs), nil
	case "STARTS WITH":
		return strings.HasPrefix(ls, rs), nil
	case "ENDS WITH":
		return strings.HasSuffix(ls, rs), nil
	}
	return nil, &TypeMismatchError{Op: op, Value: lv}
}

func (ev *evaluator) evalArithmetic(e *Arithmetic) (any, error) {
	lv, err := ev.eval(e.Left)
	if err != nil {
		return nil, err
	}
	rv, err := ev.eval(e.Right)
	if err != nil {
		return nil, err
	}
	if lv == nil || rv == nil {
		return nil, nil
	}
	if !convert.IsNumeric(lv) {
		return nil, &TypeMismatchError{Op: e.Op, Value: lv}
	}
	if !convert.IsNumeric(rv) {
		return nil, &TypeMismatchError{Op: e.Op, Value: rv}
	}

	// Integer arithmetic stays integral; any float promotes the result.
	if convert.IsWholeNumber(lv) && convert.IsWholeNumber(rv) {
		li, _ := convert.ToInt64(lv)
		ri, _ := convert.ToInt64(rv)
		switch e.Op {
		case "+":
			return li + ri, nil
		case "-":
			return li - ri, nil
		case "*":
			return li * ri, nil
		case "/":
			if ri == 0 {
				return nil, nil
			}
			return li / ri, nil
		}
	}
	lf, _ := convert.ToFloat64(lv)
	rf, _ := convert.ToFloat64(rv)
	switch e.Op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, nil
		}
		return lf / rf, nil
	}
	return nil, &TypeMismatchError{Op: e.Op, Value: lv}
}
