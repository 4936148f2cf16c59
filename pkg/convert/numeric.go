// Package convert provides the numeric coercions used by the GrandCypher
// query engine.
//
// Host attribute maps are heterogeneous, so comparison, arithmetic, and
// aggregation all need one answer to "is this a number, and what is its
// value". The engine's equality rules coerce freely between integer and
// floating kinds but never between strings and numbers: "42" and 42 are
// different values. These helpers enforce that boundary, which is why they
// deliberately do not parse strings.
//
// Key Functions:
//   - ToFloat64: numeric value of a supported integer or floating kind
//   - ToInt64: integral value, truncating floating inputs toward zero
//   - IsNumeric: whether a value participates in numeric coercion at all
//   - IsWholeNumber: whether a value is of a supported integer kind
//
// Example:
//
//	if f, ok := convert.ToFloat64(attrs["amount"]); ok {
//		total += f
//	}
package convert

// ToFloat64 returns the float64 value of an int, int32, int64, uint, uint32,
// uint64, float32 or float64. The second result is false for everything
// else, including the 8- and 16-bit integer kinds and numeric-looking
// strings: query text is the evaluator's business, not the value model's.
func ToFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case int64:
		return float64(val), true
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case float32:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	}
	return 0, false
}

// ToInt64 returns the int64 value of the kinds ToFloat64 accepts, with
// floating inputs truncated toward zero. Like ToFloat64 it refuses strings.
func ToInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case uint:
		return int64(val), true
	case uint32:
		return int64(val), true
	case uint64:
		return int64(val), true
	case float64:
		return int64(val), true
	case float32:
		return int64(val), true
	}
	return 0, false
}

// IsNumeric reports whether v is of a kind the engine treats as a Cypher
// number. Equivalent to the ok result of ToFloat64.
func IsNumeric(v interface{}) bool {
	_, ok := ToFloat64(v)
	return ok
}

// IsWholeNumber reports whether v is an int, int32, int64, uint, uint32 or
// uint64 (the integer kinds ToFloat64 accepts). Arithmetic and SUM
// use this to keep all-integer inputs integral instead of promoting to
// float.
func IsWholeNumber(v interface{}) bool {
	switch v.(type) {
	case int, int64, int32, uint, uint64, uint32:
		return true
	}
	return false
}
