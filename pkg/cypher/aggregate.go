// Aggregate functions for GrandCypher.
//
// Aggregates reduce over the rows of one group (the group key is the tuple
// of non-aggregate RETURN values). COUNT(*) counts rows; every other form
// skips nulls. When the aggregated expression projects parallel-edge
// attributes (EdgeAttrs), the result is a map keyed by the edges' primary
// label so multigraph structure survives aggregation:
//
//	MATCH (n)-[r:paid]->(m) RETURN n.name, SUM(r.amount)
//	// SUM column: {"paid": 52}
//
// Empty-input results: SUM -> 0, COUNT -> 0, AVG/MIN/MAX -> null.

package cypher

import (
	"github.com/orneryd/grandcypher/pkg/convert"
)

// computeAggregate reduces one aggregate call over the evaluator's group.
func (ev *evaluator) computeAggregate(call *AggregateCall) (any, error) {
	if call.Star {
		return int64(len(ev.groupRows)), nil
	}

	// Evaluate the argument once per row of the group.
	values := make([]any, 0, len(ev.groupRows))
	labelKeyed := false
	for _, r := range ev.groupRows {
		inner := &evaluator{g: ev.g, row: r}
		v, err := inner.eval(call.Arg)
		if err != nil {
			return nil, err
		}
		if _, ok := v.(EdgeAttrs); ok {
			labelKeyed = true
		}
		values = append(values, v)
	}

	if labelKeyed {
		return reduceByLabel(call.Func, values)
	}
	return reduceScalars(call.Func, values)
}

// reduceScalars folds plain values, skipping nulls.
func reduceScalars(fn string, values []any) (any, error) {
	nonNull := values[:0:0]
	for _, v := range values {
		if v != nil {
			nonNull = append(nonNull, v)
		}
	}

	switch fn {
	case "COUNT":
		return int64(len(nonNull)), nil

	case "SUM":
		return sumValues(nonNull), nil

	case "AVG":
		if len(nonNull) == 0 {
			return nil, nil
		}
		total := 0.0
		count := 0
		for _, v := range nonNull {
			if f, ok := convert.ToFloat64(v); ok {
				total += f
				count++
			}
		}
		if count == 0 {
			return nil, nil
		}
		return total / float64(count), nil

	case "MIN", "MAX":
		var best any
		for _, v := range nonNull {
			if best == nil {
				best = v
				continue
			}
			cmp, ok := orderValues(v, best)
			if !ok {
				continue // incomparable values keep the current extreme
			}
			if (fn == "MIN" && cmp < 0) || (fn == "MAX" && cmp > 0) {
				best = v
			}
		}
		return best, nil
	}
	return nil, &TypeMismatchError{Op: fn, Value: values}
}

// sumValues adds numerics, preserving integer identity when every input is
// integral. Empty input sums to integer zero.
func sumValues(values []any) any {
	allWhole := true
	intSum := int64(0)
	floatSum := 0.0
	for _, v := range values {
		if !convert.IsNumeric(v) {
			continue
		}
		if convert.IsWholeNumber(v) {
			i, _ := convert.ToInt64(v)
			intSum += i
			floatSum += float64(i)
			continue
		}
		allWhole = false
		f, _ := convert.ToFloat64(v)
		floatSum += f
	}
	if allWhole {
		return intSum
	}
	return floatSum
}

// reduceByLabel folds per-edge-key attribute projections into a map keyed
// by primary edge label. Rows whose value is a plain scalar contribute
// under the empty label.
func reduceByLabel(fn string, values []any) (any, error) {
	perLabel := make(map[string][]any)
	var labelOrder []string

	add := func(label string, v any) {
		if v == nil {
			return
		}
		if _, seen := perLabel[label]; !seen {
			labelOrder = append(labelOrder, label)
		}
		perLabel[label] = append(perLabel[label], v)
	}

	for _, v := range values {
		switch entries := v.(type) {
		case nil:
		case EdgeAttrs:
			for _, entry := range entries {
				add(entry.Label, entry.Value)
			}
		default:
			add("", v)
		}
	}

	out := make(map[string]any, len(perLabel))
	for _, label := range labelOrder {
		reduced, err := reduceScalars(fn, perLabel[label])
		if err != nil {
			return nil, err
		}
		out[label] = reduced
	}
	return out, nil
}
