// Motif compilation for GrandCypher.
//
// A motif is the compiled form of one MATCH clause: pattern nodes and edges
// laid out in indexed arrays so a partial embedding is a fixed-size slice of
// host ids rather than a fresh map per search step. Chained patterns that
// repeat a variable, like (A)-[]->(B)-[]->(A), collapse onto a single node
// slot whose constraints accumulate.

package cypher

import (
	"fmt"
)

type motifNode struct {
	name      string // declared variable, or synthesized __anonN
	anonymous bool
	labels    []LabelDNF // every DNF must accept (repeated variables accumulate)
	props     map[string]any
}

type motifEdge struct {
	src, dst  int // node slot indexes
	variable  string
	labels    LabelDNF
	props     map[string]any
	direction EdgeDirection
	varLength bool
	minHops   int
	maxHops   int // -1 = unbounded
}

type motif struct {
	nodes []motifNode
	edges []motifEdge
	index map[string]int // variable name -> node slot
}

// compileMotif converts a MatchClause into a motif. anonCounter is shared
// across the clauses of one query so synthesized names never collide.
func compileMotif(mc *MatchClause, anonCounter *int) (*motif, error) {
	m := &motif{index: make(map[string]int)}

	slotFor := func(np NodePattern) int {
		if np.Variable != "" {
			if slot, ok := m.index[np.Variable]; ok {
				// Repeated variable in a chain: accumulate constraints.
				if len(np.Labels) > 0 {
					m.nodes[slot].labels = append(m.nodes[slot].labels, np.Labels)
				}
				for k, v := range np.Properties {
					if m.nodes[slot].props == nil {
						m.nodes[slot].props = make(map[string]any)
					}
					m.nodes[slot].props[k] = v
				}
				return slot
			}
		}
		node := motifNode{
			name:  np.Variable,
			props: np.Properties,
		}
		if len(np.Labels) > 0 {
			node.labels = []LabelDNF{np.Labels}
		}
		if node.name == "" {
			node.name = fmt.Sprintf("__anon%d", *anonCounter)
			node.anonymous = true
			*anonCounter++
		}
		m.nodes = append(m.nodes, node)
		m.index[node.name] = len(m.nodes) - 1
		return len(m.nodes) - 1
	}

	slots := make([]int, len(mc.Nodes))
	for i, np := range mc.Nodes {
		slots[i] = slotFor(np)
	}

	for i, ep := range mc.Edges {
		me := motifEdge{
			src:       slots[i],
			dst:       slots[i+1],
			variable:  ep.Variable,
			labels:    ep.Labels,
			props:     ep.Properties,
			direction: ep.Direction,
			varLength: ep.VarLength,
			minHops:   ep.MinHops,
			maxHops:   ep.MaxHops,
		}
		m.edges = append(m.edges, me)
	}
	return m, nil
}

// nodeVariables returns the declared node variables of the motif.
func (m *motif) nodeVariables() []string {
	var vars []string
	for _, n := range m.nodes {
		if !n.anonymous {
			vars = append(vars, n.name)
		}
	}
	return vars
}
