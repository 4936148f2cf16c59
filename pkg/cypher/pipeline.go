// Result pipeline for GrandCypher.
//
// Stages run strictly in this order: join the embeddings of all MATCH
// clauses, apply WHERE, project RETURN (grouping first when aggregates are
// present), DISTINCT, ORDER BY, SKIP, then LIMIT. When neither ORDER BY nor
// an aggregate forces materialization the pipeline pulls lazily from the
// matcher and stops as soon as SKIP+LIMIT rows exist.

package cypher

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/orneryd/grandcypher/pkg/convert"
	"github.com/orneryd/grandcypher/pkg/graph"
)

type executor struct {
	g      graph.Graph
	q      *Query
	motifs []*motif
}

// joinRows streams the natural join of all motifs: consistent on shared
// variable names, cross-product on disjoint ones. Shared variables are
// enforced by pinning the later motif's slot to the already-bound host id,
// which doubles as the join's candidate restriction.
func (ex *executor) joinRows(ctx context.Context, pins Hint, yield func(*row) error) error {
	var rec func(i int, r *row) error
	rec = func(i int, r *row) error {
		if i == len(ex.motifs) {
			return yield(r)
		}
		m := ex.motifs[i]

		slotPins := make(map[int]graph.NodeID)
		for name, slot := range m.index {
			if m.nodes[slot].anonymous {
				continue
			}
			if id, ok := r.nodes[name]; ok {
				slotPins[slot] = id
			}
			if id, ok := pins[name]; ok {
				if bound, dup := slotPins[slot]; dup && bound != id {
					return nil // hint conflicts with the join: no rows here
				}
				slotPins[slot] = id
			}
		}

		mt := newMatcher(ex.g, m, slotPins)
		return mt.stream(ctx, func(emb *embedding) error {
			nr := r.clone()
			for slot, id := range emb.nodes {
				if node := m.nodes[slot]; !node.anonymous {
					nr.nodes[node.name] = id
				}
			}
			for ei, binding := range emb.edges {
				if name := m.edges[ei].variable; name != "" && binding != nil {
					nr.edges[name] = binding
				}
			}
			return rec(i+1, nr)
		})
	}
	return rec(0, newRow())
}

// run executes the full pipeline and shapes the result.
func (ex *executor) run(ctx context.Context, hints []Hint) (*Result, error) {
	items := ex.q.Return.Items

	aggMode := false
	for _, item := range items {
		if hasAggregate(item.Expression) {
			aggMode = true
			break
		}
	}
	materialize := aggMode || len(ex.q.OrderBy) > 0

	skip := 0
	if ex.q.Skip != nil {
		skip = *ex.q.Skip
	}
	limit := -1
	if ex.q.Limit != nil {
		limit = *ex.q.Limit
	}
	// Streaming target: stop pulling once skip+limit rows survive the
	// filter, dedup included.
	target := -1
	if !materialize && limit >= 0 {
		target = skip + limit
	}

	var (
		srcRows  []*row  // retained for grouping and ORDER BY evaluation
		projRows [][]any // projected values, aligned with srcRows when kept
		seen     map[string]bool
	)
	if ex.q.Return.Distinct {
		seen = make(map[string]bool)
	}

	consume := func(r *row) error {
		if ex.q.Where != nil {
			ev := &evaluator{g: ex.g, row: r}
			t, err := ev.evalTruth(ex.q.Where)
			if err != nil {
				return err
			}
			if t != truthTrue {
				return nil // null and false both exclude the row
			}
		}

		if aggMode {
			srcRows = append(srcRows, r)
			return nil
		}

		values, err := ex.projectRow(r, items)
		if err != nil {
			return err
		}
		if seen != nil {
			key := canonicalKey(values)
			if seen[key] {
				return nil
			}
			seen[key] = true
		}
		srcRows = append(srcRows, r)
		projRows = append(projRows, values)
		if target >= 0 && len(projRows) >= target {
			return graph.ErrStopIteration
		}
		return nil
	}

	stream := func(pins Hint) error { return ex.joinRows(ctx, pins, consume) }

	var err error
	if len(hints) == 0 {
		err = stream(nil)
	} else {
		// Hints OR-combine: one matching pass per hint map, results chained.
		for _, hint := range hints {
			if err = stream(hint); err != nil {
				break
			}
		}
	}
	if err != nil && err != graph.ErrStopIteration {
		return nil, err
	}

	if aggMode {
		projRows, err = ex.groupAndAggregate(srcRows, items)
		if err != nil {
			return nil, err
		}
		if ex.q.Return.Distinct {
			projRows = dedupeRows(projRows)
		}
		srcRows = nil // ORDER BY on aggregated output goes through columns
	}

	if len(ex.q.OrderBy) > 0 {
		if err := ex.orderRows(projRows, srcRows, items); err != nil {
			return nil, err
		}
	}

	// SKIP then LIMIT.
	if skip >= len(projRows) {
		projRows = nil
	} else {
		projRows = projRows[skip:]
	}
	if limit >= 0 && limit < len(projRows) {
		projRows = projRows[:limit]
	}

	result := &Result{Columns: make([]string, len(items)), Rows: projRows}
	if result.Rows == nil {
		result.Rows = [][]any{}
	}
	for i, item := range items {
		result.Columns[i] = item.Label()
	}
	return result, nil
}

func (ex *executor) projectRow(r *row, items []ReturnItem) ([]any, error) {
	ev := &evaluator{g: ex.g, row: r}
	values := make([]any, len(items))
	for i, item := range items {
		v, err := ev.eval(item.Expression)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// groupAndAggregate implements implicit grouping: the group key is the
// tuple of non-aggregate RETURN values, and each group emits one row in
// first-seen order.
func (ex *executor) groupAndAggregate(rows []*row, items []ReturnItem) ([][]any, error) {
	aggItem := make([]bool, len(items))
	hasGroupKeys := false
	for i, item := range items {
		aggItem[i] = hasAggregate(item.Expression)
		if !aggItem[i] {
			hasGroupKeys = true
		}
	}

	type group struct {
		keyValues []any
		rows      []*row
	}
	var groups []*group
	groupIdx := make(map[string]*group)

	for _, r := range rows {
		ev := &evaluator{g: ex.g, row: r}
		keyValues := make([]any, 0, len(items))
		for i, item := range items {
			if aggItem[i] {
				continue
			}
			v, err := ev.eval(item.Expression)
			if err != nil {
				return nil, err
			}
			keyValues = append(keyValues, v)
		}
		key := canonicalKey(keyValues)
		g, ok := groupIdx[key]
		if !ok {
			g = &group{keyValues: keyValues}
			groupIdx[key] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, r)
	}

	// Aggregates over an empty match with no grouping columns still emit a
	// single row (COUNT(*) of nothing is 0).
	if len(groups) == 0 && !hasGroupKeys {
		groups = append(groups, &group{rows: []*row{}})
	}

	out := make([][]any, 0, len(groups))
	for _, g := range groups {
		values := make([]any, len(items))
		keyPos := 0
		for i, item := range items {
			if !aggItem[i] {
				values[i] = g.keyValues[keyPos]
				keyPos++
				continue
			}
			ev := &evaluator{g: ex.g, groupRows: g.rows}
			v, err := ev.eval(item.Expression)
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		out = append(out, values)
	}
	return out, nil
}

func dedupeRows(rows [][]any) [][]any {
	seen := make(map[string]bool, len(rows))
	out := rows[:0:0]
	for _, r := range rows {
		key := canonicalKey(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// orderRows sorts projRows stably by the ORDER BY keys. A key matching a
// RETURN column label sorts by the projected value; any other expression is
// evaluated against the source row (only possible before aggregation).
// Nulls sort last regardless of direction; incomparable values tie.
func (ex *executor) orderRows(projRows [][]any, srcRows []*row, items []ReturnItem) error {
	type keyFn func(rowIdx int) (any, error)

	keys := make([]keyFn, len(ex.q.OrderBy))
	for ki, oi := range ex.q.OrderBy {
		col := -1
		for ci, item := range items {
			if item.Label() == oi.Text || item.Text == oi.Text {
				col = ci
				break
			}
		}
		switch {
		case col >= 0:
			c := col
			keys[ki] = func(rowIdx int) (any, error) { return projRows[rowIdx][c], nil }
		case srcRows != nil:
			expr := oi.Expression
			keys[ki] = func(rowIdx int) (any, error) {
				ev := &evaluator{g: ex.g, row: srcRows[rowIdx]}
				return ev.eval(expr)
			}
		default:
			return fmt.Errorf("ORDER BY %q must appear in RETURN when aggregating", oi.Text)
		}
	}

	// Precompute sort keys so evaluation errors surface before sorting.
	sortKeys := make([][]any, len(projRows))
	for i := range projRows {
		sortKeys[i] = make([]any, len(keys))
		for ki, fn := range keys {
			v, err := fn(i)
			if err != nil {
				return err
			}
			sortKeys[i][ki] = v
		}
	}

	idx := make([]int, len(projRows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		for ki, oi := range ex.q.OrderBy {
			av, bv := sortKeys[idx[a]][ki], sortKeys[idx[b]][ki]
			// Nulls sort last regardless of direction.
			if av == nil || bv == nil {
				if av == nil && bv == nil {
					continue
				}
				return bv == nil
			}
			cmp, ok := orderValues(av, bv)
			if !ok || cmp == 0 {
				continue // incomparable values tie
			}
			if oi.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})

	reorder(projRows, idx)
	if srcRows != nil {
		reorder(srcRows, idx)
	}
	return nil
}

// reorder applies the permutation idx to s in place.
func reorder[T any](s []T, idx []int) {
	tmp := make([]T, len(s))
	for newPos, oldPos := range idx {
		tmp[newPos] = s[oldPos]
	}
	copy(s, tmp)
}

// ========================================
// Canonical keys for DISTINCT and grouping
// ========================================

// canonicalKey renders a value tuple into a deterministic string. Maps are
// walked in sorted key order so equal values always produce equal keys.
func canonicalKey(values []any) string {
	var sb strings.Builder
	for i, v := range values {
		if i > 0 {
			sb.WriteByte('|')
		}
		writeCanonical(&sb, v)
	}
	return sb.String()
}

func writeCanonical(sb *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		sb.WriteString("null")
	case bool:
		sb.WriteString(strconv.FormatBool(t))
	case string:
		sb.WriteString(strconv.Quote(t))
	case graph.NodeID:
		sb.WriteString("id:")
		sb.WriteString(string(t))
	case graph.EdgeKey:
		sb.WriteString("k:")
		sb.WriteString(strconv.FormatInt(int64(t), 10))
	case int64:
		sb.WriteString("n:")
		sb.WriteString(strconv.FormatFloat(float64(t), 'g', -1, 64))
	case int:
		sb.WriteString("n:")
		sb.WriteString(strconv.FormatFloat(float64(t), 'g', -1, 64))
	case float64:
		sb.WriteString("n:")
		sb.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case []any:
		sb.WriteByte('[')
		for i, el := range t {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeCanonical(sb, el)
		}
		sb.WriteByte(']')
	case []map[string]any:
		sb.WriteByte('[')
		for i, el := range t {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeCanonical(sb, el)
		}
		sb.WriteByte(']')
	case EdgeAttrs:
		sb.WriteString("edges{")
		for i, entry := range t {
			if i > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(sb, "(%d,%s):", entry.Key, entry.Label)
			writeCanonical(sb, entry.Value)
		}
		sb.WriteByte('}')
	case map[string]any:
		sb.WriteByte('{')
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteByte(':')
			writeCanonical(sb, t[k])
		}
		sb.WriteByte('}')
	case map[graph.EdgeKey]map[string]any:
		sb.WriteByte('{')
		keys := make([]int64, 0, len(t))
		for k := range t {
			keys = append(keys, int64(k))
		}
		sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(sb, "%d:", k)
			writeCanonical(sb, t[graph.EdgeKey(k)])
		}
		sb.WriteByte('}')
	default:
		if f, ok := convert.ToFloat64(v); ok {
			sb.WriteString("n:")
			sb.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
			return
		}
		fmt.Fprintf(sb, "%T:%v", v, v)
	}
}
