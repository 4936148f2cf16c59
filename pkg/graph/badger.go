// Persistent host graph backed by BadgerDB.
//
// BadgerGraph implements the Graph contract on disk so the CLI can query
// snapshots too large to reload per invocation. The key layout follows the
// single-byte-prefix scheme:
//
//	0x00                          -> JSON(graphMeta)
//	0x01 + nodeID                 -> JSON(attrs)
//	0x02 + from + 0x00 + to + 0x00 + key -> JSON(attrs)   (outgoing)
//	0x03 + to + 0x00 + from + 0x00 + key -> empty         (incoming index)
//
// Node ids may not contain the NUL byte; AddNode rejects them.
//
// Iteration over the node prefix is lexicographic, which gives the engine
// the deterministic enumeration order the contract requires.

package graph

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for BadgerDB storage organization.
const (
	prefixMeta = byte(0x00)
	prefixNode = byte(0x01)
	prefixOut  = byte(0x02)
	prefixIn   = byte(0x03)
)

type graphMeta struct {
	Directed   bool `json:"directed"`
	Multigraph bool `json:"multigraph"`
}

// BadgerGraph is a disk-backed Graph implementation.
type BadgerGraph struct {
	db   *badger.DB
	meta graphMeta
}

// BadgerOptions configures OpenBadgerGraph.
type BadgerOptions struct {
	// DataDir is the directory for data files. Ignored when InMemory is set.
	DataDir string

	// InMemory runs BadgerDB without persistence. Useful for testing.
	InMemory bool

	// Directed and Multigraph set the graph mode on first open. Reopening an
	// existing store keeps the persisted mode and ignores these.
	Directed   bool
	Multigraph bool
}

// OpenBadgerGraph opens (or initializes) a persistent graph store.
func OpenBadgerGraph(opts BadgerOptions) (*BadgerGraph, error) {
	dir := opts.DataDir
	if opts.InMemory {
		dir = "" // badger rejects a directory in disk-less mode
	}
	badgerOpts := badger.DefaultOptions(dir).
		WithInMemory(opts.InMemory).
		WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	g := &BadgerGraph{db: db}
	err = db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte{prefixMeta})
		if err == badger.ErrKeyNotFound {
			g.meta = graphMeta{Directed: opts.Directed, Multigraph: opts.Multigraph}
			data, _ := json.Marshal(g.meta)
			return txn.Set([]byte{prefixMeta}, data)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &g.meta)
		})
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load graph meta: %w", err)
	}
	return g, nil
}

// Close releases the underlying store.
func (g *BadgerGraph) Close() error {
	return g.db.Close()
}

func nodeKey(id NodeID) []byte {
	return append([]byte{prefixNode}, id...)
}

func edgeKey(prefix byte, a, b NodeID, key EdgeKey) []byte {
	buf := make([]byte, 0, 1+len(a)+1+len(b)+1+8)
	buf = append(buf, prefix)
	buf = append(buf, a...)
	buf = append(buf, 0x00)
	buf = append(buf, b...)
	buf = append(buf, 0x00)
	var kb [8]byte
	binary.BigEndian.PutUint64(kb[:], uint64(key))
	return append(buf, kb[:]...)
}

func pairPrefix(prefix byte, a, b NodeID) []byte {
	buf := make([]byte, 0, 1+len(a)+1+len(b)+1)
	buf = append(buf, prefix)
	buf = append(buf, a...)
	buf = append(buf, 0x00)
	buf = append(buf, b...)
	return append(buf, 0x00)
}

func splitEdgeKey(full []byte) (a, b NodeID, key EdgeKey, ok bool) {
	rest := full[1:]
	sep := bytes.IndexByte(rest, 0x00)
	if sep < 0 {
		return "", "", 0, false
	}
	a = NodeID(rest[:sep])
	rest = rest[sep+1:]
	sep = bytes.IndexByte(rest, 0x00)
	if sep < 0 || len(rest)-sep-1 != 8 {
		return "", "", 0, false
	}
	b = NodeID(rest[:sep])
	key = EdgeKey(binary.BigEndian.Uint64(rest[sep+1:]))
	return a, b, key, true
}

// AddNode inserts a node record.
func (g *BadgerGraph) AddNode(id NodeID, attrs map[string]any) error {
	if bytes.IndexByte([]byte(id), 0x00) >= 0 {
		return fmt.Errorf("node %q contains NUL: %w", id, ErrInvalidData)
	}
	if attrs == nil {
		attrs = make(map[string]any)
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("encode node %q: %w", id, err)
	}
	return g.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(nodeKey(id)); err == nil {
			return fmt.Errorf("node %q: %w", id, ErrAlreadyExists)
		}
		return txn.Set(nodeKey(id), data)
	})
}

// AddEdgeWithKey inserts an edge record with a caller-assigned key.
func (g *BadgerGraph) AddEdgeWithKey(from, to NodeID, key EdgeKey, attrs map[string]any) error {
	if attrs == nil {
		attrs = make(map[string]any)
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("encode edge %s->%s: %w", from, to, err)
	}
	return g.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(nodeKey(from)); err != nil {
			return fmt.Errorf("edge %s->%s: %w", from, to, ErrInvalidEdge)
		}
		if _, err := txn.Get(nodeKey(to)); err != nil {
			return fmt.Errorf("edge %s->%s: %w", from, to, ErrInvalidEdge)
		}
		if err := txn.Set(edgeKey(prefixOut, from, to, key), data); err != nil {
			return err
		}
		if err := txn.Set(edgeKey(prefixIn, to, from, key), nil); err != nil {
			return err
		}
		if !g.meta.Directed && from != to {
			if err := txn.Set(edgeKey(prefixOut, to, from, key), data); err != nil {
				return err
			}
			if err := txn.Set(edgeKey(prefixIn, from, to, key), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// ImportSnapshot bulk-loads a snapshot document into the store.
func (g *BadgerGraph) ImportSnapshot(snap *Snapshot) error {
	for _, n := range snap.Nodes {
		if err := g.AddNode(NodeID(n.ID), mergeLabels(n.Properties, n.Labels)); err != nil {
			return err
		}
	}
	for i, e := range snap.Edges {
		key := EdgeKey(0)
		if e.Key != nil {
			key = EdgeKey(*e.Key)
		} else if snap.Multigraph {
			key = EdgeKey(i) // unique fallback when the document omits keys
		}
		attrs := mergeLabels(e.Properties, e.Labels)
		if err := g.AddEdgeWithKey(NodeID(e.StartNode), NodeID(e.EndNode), key, attrs); err != nil {
			return err
		}
	}
	return nil
}

// Nodes implements Graph. Order is lexicographic by id.
func (g *BadgerGraph) Nodes(ctx context.Context, fn NodeVisitor) error {
	return g.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte{prefixNode}})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			id := NodeID(it.Item().Key()[1:])
			if err := fn(id); err != nil {
				if err == ErrStopIteration {
					return nil
				}
				return err
			}
		}
		return nil
	})
}

// NodeAttrs implements Graph.
func (g *BadgerGraph) NodeAttrs(id NodeID) (map[string]any, error) {
	var attrs map[string]any
	err := g.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(id))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("node %q: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &attrs)
		})
	})
	return attrs, err
}

// OutEdges implements Graph.
func (g *BadgerGraph) OutEdges(id NodeID, fn EdgeVisitor) error {
	prefix := make([]byte, 0, 1+len(id)+1)
	prefix = append(prefix, prefixOut)
	prefix = append(prefix, id...)
	prefix = append(prefix, 0x00)
	return g.walkEdges(prefix, fn)
}

// InEdges implements Graph. Attrs are resolved through the outgoing record.
func (g *BadgerGraph) InEdges(id NodeID, fn EdgeVisitor) error {
	prefix := make([]byte, 0, 1+len(id)+1)
	prefix = append(prefix, prefixIn)
	prefix = append(prefix, id...)
	prefix = append(prefix, 0x00)

	return g.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			to, from, key, ok := splitEdgeKey(it.Item().Key())
			if !ok {
				continue
			}
			item, err := txn.Get(edgeKey(prefixOut, from, to, key))
			if err != nil {
				return fmt.Errorf("dangling incoming index %s<-%s: %w", to, from, err)
			}
			var attrs map[string]any
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &attrs)
			}); err != nil {
				return err
			}
			if err := fn(from, key, attrs); err != nil {
				if err == ErrStopIteration {
					return nil
				}
				return err
			}
		}
		return nil
	})
}

func (g *BadgerGraph) walkEdges(prefix []byte, fn EdgeVisitor) error {
	return g.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			_, other, key, ok := splitEdgeKey(it.Item().Key())
			if !ok {
				continue
			}
			var attrs map[string]any
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &attrs)
			}); err != nil {
				return err
			}
			if err := fn(other, key, attrs); err != nil {
				if err == ErrStopIteration {
					return nil
				}
				return err
			}
		}
		return nil
	})
}

// EdgesBetween implements Graph.
func (g *BadgerGraph) EdgesBetween(from, to NodeID) ([]EdgeRecord, error) {
	var recs []EdgeRecord
	err := g.db.View(func(txn *badger.Txn) error {
		prefix := pairPrefix(prefixOut, from, to)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			_, _, key, ok := splitEdgeKey(it.Item().Key())
			if !ok {
				continue
			}
			var attrs map[string]any
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &attrs)
			}); err != nil {
				return err
			}
			recs = append(recs, EdgeRecord{Key: key, Attrs: attrs})
		}
		return nil
	})
	return recs, err
}

// IsDirected implements Graph.
func (g *BadgerGraph) IsDirected() bool { return g.meta.Directed }

// IsMultigraph implements Graph.
func (g *BadgerGraph) IsMultigraph() bool { return g.meta.Multigraph }

// NodeCount returns the number of stored nodes.
func (g *BadgerGraph) NodeCount() (int64, error) {
	var count int64
	err := g.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte{prefixNode}})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}
