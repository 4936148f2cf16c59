// Error types for the GrandCypher query surface.
//
// The engine distinguishes four failure classes. Everything else (an
// unsatisfiable pattern, a hint pinning a variable to a nonexistent host
// node, a predicate that never holds) is not an error; it yields an empty
// result table.

package cypher

import "fmt"

// ParseError reports malformed query text with the position of the offending
// token. No partial AST is ever returned alongside one.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Line, e.Column, e.Message)
}

// UnknownVariableError reports a WHERE or RETURN expression naming a variable
// that no MATCH clause binds.
type UnknownVariableError struct {
	Name string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("unknown variable %q: not bound by any MATCH clause", e.Name)
}

// TypeMismatchError reports an operator applied to a value outside its
// domain: a string operator on a non-string non-null, or arithmetic on a
// non-numeric non-null.
type TypeMismatchError struct {
	Op    string
	Value any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: %s applied to %T value %v", e.Op, e.Value, e.Value)
}

// InvalidHintError reports a hint map keyed by a variable name absent from
// every MATCH clause.
type InvalidHintError struct {
	Variable string
}

func (e *InvalidHintError) Error() string {
	return fmt.Sprintf("invalid hint: variable %q does not appear in any MATCH clause", e.Variable)
}
