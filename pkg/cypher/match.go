// Pattern matcher for GrandCypher.
//
// The matcher enumerates subgraph-isomorphic embeddings of a motif in the
// host graph by backtracking search: candidate sets per pattern node, a
// placement order that favors small candidate sets, and edge-constraint
// checks the moment both endpoints are bound. Variable-length edges expand
// into bounded depth-first searches for simple paths. The whole thing is
// lazy: embeddings are produced through a visitor callback, and returning
// graph.ErrStopIteration halts the search immediately (LIMIT relies on this).

package cypher

import (
	"context"

	"github.com/orneryd/grandcypher/pkg/graph"
)

// EdgeStep is one concrete host edge, in the direction the host stores it.
type EdgeStep struct {
	From  graph.NodeID
	To    graph.NodeID
	Key   graph.EdgeKey
	Attrs map[string]any
}

// edgeBinding is the realization of one pattern edge inside an embedding.
// A plain (single-hop) edge records every qualifying parallel host edge so
// aggregates over multigraphs see all of them; a variable-length edge
// records the concrete path, one host edge per hop.
type edgeBinding struct {
	varLength bool
	steps     []EdgeStep // var-length: the path
	parallel  []EdgeStep // plain: all qualifying parallel edges
}

// embedding is a total assignment of host ids to motif node slots plus the
// realization of every motif edge.
type embedding struct {
	m     *motif
	nodes []graph.NodeID
	edges []*edgeBinding
}

type matcher struct {
	g         graph.Graph
	m         *motif
	pins      map[int]graph.NodeID // node slot -> pinned host id (hints, joins)
	nodeCount int                  // host node count, bounds unbounded hop ranges

	candidates [][]graph.NodeID
	order      []int
}

func newMatcher(g graph.Graph, m *motif, pins map[int]graph.NodeID) *matcher {
	return &matcher{g: g, m: m, pins: pins}
}

// stream runs the search, invoking yield once per embedding. A yield return
// of graph.ErrStopIteration stops the search, and stream returns that
// sentinel to its caller.
func (mt *matcher) stream(ctx context.Context, yield func(*embedding) error) error {
	if err := mt.computeCandidates(ctx); err != nil {
		return err
	}
	for _, cands := range mt.candidates {
		if len(cands) == 0 {
			return nil // unsatisfiable motif: empty stream, not an error
		}
	}
	mt.computeOrder()

	emb := &embedding{
		m:     mt.m,
		nodes: make([]graph.NodeID, len(mt.m.nodes)),
		edges: make([]*edgeBinding, len(mt.m.edges)),
	}
	used := make(map[graph.NodeID]int, len(mt.m.nodes))
	err := mt.place(ctx, 0, emb, used, yield)
	if err == graph.ErrStopIteration {
		return err // propagated so joins can stop their outer loops too
	}
	return err
}

// computeCandidates builds the candidate host-id set for every pattern node,
// honoring pins and the node's label and property predicates.
func (mt *matcher) computeCandidates(ctx context.Context) error {
	mt.candidates = make([][]graph.NodeID, len(mt.m.nodes))

	// Pinned slots resolve directly against the host.
	unpinned := make([]int, 0, len(mt.m.nodes))
	for i := range mt.m.nodes {
		pin, pinned := mt.pins[i]
		if !pinned {
			unpinned = append(unpinned, i)
			continue
		}
		attrs, err := mt.g.NodeAttrs(pin)
		if err != nil {
			continue // pin to a nonexistent host id: empty candidate set
		}
		if mt.nodeSatisfies(&mt.m.nodes[i], attrs) {
			mt.candidates[i] = []graph.NodeID{pin}
		}
	}

	// One pass over the host evaluates every unpinned pattern node.
	err := mt.g.Nodes(ctx, func(id graph.NodeID) error {
		mt.nodeCount++
		if len(unpinned) == 0 {
			return nil
		}
		attrs, err := mt.g.NodeAttrs(id)
		if err != nil {
			return err
		}
		for _, i := range unpinned {
			if mt.nodeSatisfies(&mt.m.nodes[i], attrs) {
				mt.candidates[i] = append(mt.candidates[i], id)
			}
		}
		return nil
	})
	return err
}

func (mt *matcher) nodeSatisfies(node *motifNode, attrs map[string]any) bool {
	if len(node.labels) > 0 {
		labels := graph.Labels(attrs)
		for _, dnf := range node.labels {
			if !dnf.Matches(labels) {
				return false
			}
		}
	}
	return propsMatch(attrs, node.props)
}

// propsMatch checks an inline property map against host attributes. A null
// pattern value matches only an attribute explicitly set to null.
func propsMatch(attrs, props map[string]any) bool {
	for k, want := range props {
		got, ok := attrs[k]
		if !ok {
			return false
		}
		if want == nil {
			if got != nil {
				return false
			}
			continue
		}
		if equalValues(got, want) != truthTrue {
			return false
		}
	}
	return true
}

// computeOrder picks the placement order: smallest candidate set first, ties
// broken by the number of motif edges to already-placed nodes.
func (mt *matcher) computeOrder() {
	n := len(mt.m.nodes)
	placed := make([]bool, n)
	mt.order = mt.order[:0]

	connectivity := func(i int) int {
		c := 0
		for _, e := range mt.m.edges {
			if e.src == i && placed[e.dst] || e.dst == i && placed[e.src] {
				c++
			}
		}
		return c
	}

	for len(mt.order) < n {
		best := -1
		for i := 0; i < n; i++ {
			if placed[i] {
				continue
			}
			if best == -1 {
				best = i
				continue
			}
			ci, cb := len(mt.candidates[i]), len(mt.candidates[best])
			if ci < cb || (ci == cb && connectivity(i) > connectivity(best)) {
				best = i
			}
		}
		placed[best] = true
		mt.order = append(mt.order, best)
	}
}

func (mt *matcher) place(ctx context.Context, depth int, emb *embedding, used map[graph.NodeID]int, yield func(*embedding) error) error {
	if depth == len(mt.order) {
		return yield(emb)
	}
	slot := mt.order[depth]

	for _, cand := range mt.candidates[slot] {
		if _, taken := used[cand]; taken {
			continue // pattern nodes of one motif bind pairwise-distinct hosts
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		emb.nodes[slot] = cand
		used[cand] = slot

		// Every motif edge whose endpoints are now both bound must be
		// realizable; alternatives (variable-length paths) branch the search.
		pending := mt.newlyBoundEdges(slot, used)
		if err := mt.resolvePending(ctx, pending, 0, emb, used, func() error {
			return mt.place(ctx, depth+1, emb, used, yield)
		}); err != nil {
			delete(used, cand)
			return err
		}

		delete(used, cand)
	}
	return nil
}

// newlyBoundEdges lists edges incident to slot whose other endpoint is bound.
func (mt *matcher) newlyBoundEdges(slot int, used map[graph.NodeID]int) []int {
	var pending []int
	bound := func(i int) bool {
		for _, s := range used {
			if s == i {
				return true
			}
		}
		return false
	}
	for ei, e := range mt.m.edges {
		if e.src == slot && bound(e.dst) || e.dst == slot && bound(e.src) {
			pending = append(pending, ei)
		}
	}
	return pending
}

// resolvePending realizes each pending edge in turn, branching over the
// alternatives a variable-length edge offers, then calls cont.
func (mt *matcher) resolvePending(ctx context.Context, pending []int, idx int, emb *embedding, used map[graph.NodeID]int, cont func() error) error {
	if idx == len(pending) {
		return cont()
	}
	ei := pending[idx]
	edge := &mt.m.edges[ei]
	src, dst := emb.nodes[edge.src], emb.nodes[edge.dst]

	if !edge.varLength {
		binding, err := mt.resolvePlainEdge(edge, src, dst)
		if err != nil {
			return err
		}
		if binding == nil {
			return nil // constraint unsatisfied: backtrack
		}
		emb.edges[ei] = binding
		err = mt.resolvePending(ctx, pending, idx+1, emb, used, cont)
		emb.edges[ei] = nil
		return err
	}

	paths, err := mt.findPaths(ctx, edge, src, dst)
	if err != nil {
		return err
	}
	for _, path := range paths {
		emb.edges[ei] = &edgeBinding{varLength: true, steps: path}
		if err := mt.resolvePending(ctx, pending, idx+1, emb, used, cont); err != nil {
			emb.edges[ei] = nil
			return err
		}
	}
	emb.edges[ei] = nil
	return nil
}

// resolvePlainEdge collects every qualifying host edge between the bound
// endpoints in the direction(s) the pattern allows. Returns nil when none
// qualifies.
func (mt *matcher) resolvePlainEdge(edge *motifEdge, src, dst graph.NodeID) (*edgeBinding, error) {
	var steps []EdgeStep

	collect := func(from, to graph.NodeID) error {
		recs, err := mt.g.EdgesBetween(from, to)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if mt.edgeQualifies(edge, rec.Attrs) {
				steps = append(steps, EdgeStep{From: from, To: to, Key: rec.Key, Attrs: rec.Attrs})
			}
		}
		return nil
	}

	if !mt.g.IsDirected() {
		// Direction is meaningless on an undirected host; one lookup sees
		// the full incident set.
		if err := collect(src, dst); err != nil {
			return nil, err
		}
	} else {
		switch edge.direction {
		case EdgeOutgoing:
			if err := collect(src, dst); err != nil {
				return nil, err
			}
		case EdgeIncoming:
			if err := collect(dst, src); err != nil {
				return nil, err
			}
		case EdgeBoth:
			if err := collect(src, dst); err != nil {
				return nil, err
			}
			if src != dst {
				if err := collect(dst, src); err != nil {
					return nil, err
				}
			}
		}
	}

	if len(steps) == 0 {
		return nil, nil
	}
	return &edgeBinding{parallel: steps}, nil
}

func (mt *matcher) edgeQualifies(edge *motifEdge, attrs map[string]any) bool {
	if len(edge.labels) > 0 && !edge.labels.Matches(graph.Labels(attrs)) {
		return false
	}
	return propsMatch(attrs, edge.props)
}

// findPaths enumerates simple host paths realizing a variable-length edge
// between two bound endpoints. Each path is a sequence of concrete host
// edges; parallel edges branch into distinct paths. An unbounded range is
// capped by the host node count, since a simple path cannot be longer.
func (mt *matcher) findPaths(ctx context.Context, edge *motifEdge, src, dst graph.NodeID) ([][]EdgeStep, error) {
	maxHops := edge.maxHops
	if maxHops < 0 {
		maxHops = mt.nodeCount
	}
	if maxHops == 0 {
		return nil, nil
	}

	var paths [][]EdgeStep
	onPath := map[graph.NodeID]struct{}{src: {}}
	path := make([]EdgeStep, 0, maxHops)

	var dfs func(cur graph.NodeID) error
	dfs = func(cur graph.NodeID) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		tryStep := func(step EdgeStep, next graph.NodeID) error {
			if !mt.edgeQualifies(edge, step.Attrs) {
				return nil
			}
			if next == dst {
				if len(path)+1 >= edge.minHops {
					full := make([]EdgeStep, len(path)+1)
					copy(full, path)
					full[len(path)] = step
					paths = append(paths, full)
				}
				return nil // the target terminates a simple path
			}
			if _, seen := onPath[next]; seen {
				return nil
			}
			if len(path)+1 >= maxHops {
				return nil
			}
			path = append(path, step)
			onPath[next] = struct{}{}
			err := dfs(next)
			delete(onPath, next)
			path = path[:len(path)-1]
			return err
		}

		// Hop orientation follows the pattern direction; Both walks either way.
		if edge.direction == EdgeOutgoing || edge.direction == EdgeBoth || !mt.g.IsDirected() {
			if err := mt.g.OutEdges(cur, func(to graph.NodeID, key graph.EdgeKey, attrs map[string]any) error {
				return tryStep(EdgeStep{From: cur, To: to, Key: key, Attrs: attrs}, to)
			}); err != nil {
				return err
			}
		}
		if mt.g.IsDirected() && (edge.direction == EdgeIncoming || edge.direction == EdgeBoth) {
			if err := mt.g.InEdges(cur, func(from graph.NodeID, key graph.EdgeKey, attrs map[string]any) error {
				return tryStep(EdgeStep{From: from, To: cur, Key: key, Attrs: attrs}, from)
			}); err != nil {
				return err
			}
		}
		return nil
	}

	if err := dfs(src); err != nil {
		return nil, err
	}
	return paths, nil
}
