// Package cypher provides Cypher query evaluation over caller-supplied host
// graphs for GrandCypher.
//
// The engine implements a read-only subset of the Cypher query language
// (pattern matching, filtering, projection, aggregation) against any graph
// exposing the pkg/graph capability interface. It does not own or mutate
// the data it queries.
//
// Supported Cypher Features:
//   - MATCH: multiple clauses, joined on shared variables
//   - Node patterns with label alternatives (n:A|B) and property maps
//   - Edge patterns: directed, undirected, labeled, with properties,
//     variable-length (*min..max), and chained paths (a)-->(b)-->(c)
//   - WHERE: boolean connectives, comparison, IN, IS [NOT] NULL,
//     CONTAINS / STARTS WITH / ENDS WITH, arithmetic
//   - RETURN with DISTINCT, AS aliases, and aggregates
//     (COUNT, SUM, MIN, MAX, AVG)
//   - ORDER BY ... ASC|DESC, SKIP, LIMIT
//   - // line comments
//
// Example Usage:
//
//	g := graph.NewMemoryGraph(graph.Directed, graph.Multi)
//	g.AddNode("a", map[string]any{"name": "Alice"})
//	g.AddNode("b", map[string]any{"name": "Bob"})
//	g.AddEdge("a", "b", map[string]any{"__labels__": []string{"paid"}, "amount": 12})
//
//	eng := cypher.NewEngine(g)
//	res, err := eng.Run(ctx, `
//		MATCH (n)-[r:paid]->(m)
//		RETURN n.name, m.name, SUM(r.amount)
//	`)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for col, values := range res.Table() {
//		fmt.Println(col, values)
//	}
//
// Hints pin pattern variables to host node ids, restricting the search:
//
//	res, _ = eng.Run(ctx, query, cypher.Hint{"A": "node-1"})
//
// Query Processing Pipeline:
//
//  1. Parsing: text is tokenized and parsed into a typed AST
//  2. Motif compilation: each MATCH becomes an indexed pattern graph
//  3. Validation: expression variables checked against MATCH bindings
//  4. Matching: backtracking subgraph-isomorphism search, lazily streamed
//  5. Pipeline: join, WHERE, grouping, DISTINCT, ORDER BY, SKIP/LIMIT
//  6. Shaping: columnar result keyed by RETURN labels
//
// Concurrency:
//
// A query runs to completion on the calling goroutine; the engine performs
// no locking and assumes the host graph is not mutated mid-query. Distinct
// Engine values are independent; sharing one across goroutines is safe as
// long as the host graph tolerates concurrent reads.
//
// ELI12:
//
// Think of the host graph as a big city map and a query as a sticker shape
// you slide around on it: "find me every place where a red dot points at a
// blue dot". The engine slides the sticker everywhere it can fit, writes
// down each fit in a table, and hands the table back. LIMIT just means
// "stop after the first few fits", and the engine really does stop looking.
package cypher

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/orneryd/grandcypher/pkg/graph"
)

// Hint pins pattern variables to host node ids. A list of hints OR-combines:
// an embedding must be consistent with at least one hint map, and with every
// key inside that map.
type Hint map[string]graph.NodeID

// Result holds query results in columnar-friendly row form.
type Result struct {
	Columns []string
	Rows    [][]any
}

// RowCount returns the number of result rows.
func (r *Result) RowCount() int {
	return len(r.Rows)
}

// Table shapes the result as a mapping from column label to the column's
// values, all slices of equal length.
func (r *Result) Table() map[string][]any {
	table := make(map[string][]any, len(r.Columns))
	for i, col := range r.Columns {
		column := make([]any, len(r.Rows))
		for j, row := range r.Rows {
			column[j] = row[i]
		}
		table[col] = column
	}
	return table
}

// Column returns one column's values by label, or nil when absent.
func (r *Result) Column(label string) []any {
	for i, col := range r.Columns {
		if col == label {
			column := make([]any, len(r.Rows))
			for j, row := range r.Rows {
				column[j] = row[i]
			}
			return column
		}
	}
	return nil
}

// Engine evaluates Cypher queries against one host graph.
type Engine struct {
	g      graph.Graph
	parser *Parser
	log    *logrus.Logger
}

// NewEngine creates an engine over the given host graph.
func NewEngine(g graph.Graph) *Engine {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	return &Engine{g: g, parser: NewParser(), log: quiet}
}

// SetLogger installs a logger for engine debug tracing (the number of motifs
// and hints of each query). The default logger discards everything.
func (e *Engine) SetLogger(log *logrus.Logger) {
	if log != nil {
		e.log = log
	}
}

// Run parses and executes a query, returning the projected rows. Hints, if
// any, OR-combine to restrict the match. Errors are *ParseError,
// *UnknownVariableError, *TypeMismatchError, or *InvalidHintError; an
// unsatisfiable query is not an error and yields an empty result.
func (e *Engine) Run(ctx context.Context, query string, hints ...Hint) (*Result, error) {
	q, err := e.parser.Parse(query)
	if err != nil {
		return nil, err
	}

	anonCounter := 0
	motifs := make([]*motif, len(q.Matches))
	for i, mc := range q.Matches {
		m, err := compileMotif(mc, &anonCounter)
		if err != nil {
			return nil, err
		}
		motifs[i] = m
	}

	if err := validateQuery(q, motifs, hints); err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"motifs": len(motifs),
		"hints":  len(hints),
	}).Debug("executing query")

	ex := &executor{g: e.g, q: q, motifs: motifs}
	return ex.run(ctx, hints)
}

// validateQuery checks expression variables against MATCH bindings and hint
// keys against pattern variables. Parse and semantic errors abort the query
// before any matching work.
func validateQuery(q *Query, motifs []*motif, hints []Hint) error {
	declared := make(map[string]struct{})
	for _, m := range motifs {
		for _, v := range m.nodeVariables() {
			declared[v] = struct{}{}
		}
		for _, e := range m.edges {
			if e.variable != "" {
				declared[e.variable] = struct{}{}
			}
		}
	}

	check := func(expr Expression, extra map[string]struct{}) error {
		refs := make(map[string]struct{})
		collectVariables(expr, refs)
		for name := range refs {
			if _, ok := declared[name]; ok {
				continue
			}
			if extra != nil {
				if _, ok := extra[name]; ok {
					continue
				}
			}
			return &UnknownVariableError{Name: name}
		}
		return nil
	}

	if err := check(q.Where, nil); err != nil {
		return err
	}

	aliases := make(map[string]struct{})
	for _, item := range q.Return.Items {
		if err := check(item.Expression, nil); err != nil {
			return err
		}
		if item.Alias != "" {
			aliases[item.Alias] = struct{}{}
		}
	}

	// ORDER BY may reference RETURN aliases in addition to pattern variables.
	for _, oi := range q.OrderBy {
		if err := check(oi.Expression, aliases); err != nil {
			return err
		}
	}

	nodeVars := make(map[string]struct{})
	for _, m := range motifs {
		for _, v := range m.nodeVariables() {
			nodeVars[v] = struct{}{}
		}
	}
	for _, hint := range hints {
		for name := range hint {
			if _, ok := nodeVars[name]; !ok {
				return &InvalidHintError{Variable: name}
			}
		}
	}
	return nil
}
