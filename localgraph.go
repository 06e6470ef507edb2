// Copyright © 2020 the Pandora authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package pandora

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// LocalNode is one contiguous alphabetic substring of a PRG.
type LocalNode struct {
	ID   uint32
	Seq  string
	Pos  Interval
	Outs []uint32

	// Covg is a per-node read coverage counter and Skip a noise-filtering
	// flag; no code in this module updates either.
	Covg uint32
	Skip bool
}

// LocalGraph is the DAG of LocalNodes for one PRG. Node ids are a dense
// [0..n) prefix; node 0 is the unique source. Edges are append-only during
// construction and frozen afterwards.
type LocalGraph struct {
	Nodes []*LocalNode
}

// AddNode appends a node. Ids must be added densely in order.
func (g *LocalGraph) AddNode(id uint32, seq string, pos Interval) error {
	if id != uint32(len(g.Nodes)) {
		return errors.Wrapf(ErrInvariant, "node id %d added to graph of %d nodes", id, len(g.Nodes))
	}
	g.Nodes = append(g.Nodes, &LocalNode{ID: id, Seq: seq, Pos: pos})
	return nil
}

// AddEdge connects two existing nodes.
func (g *LocalGraph) AddEdge(from, to uint32) error {
	if from >= uint32(len(g.Nodes)) || to >= uint32(len(g.Nodes)) {
		return errors.Wrapf(ErrInvariant, "edge %d->%d references unknown node", from, to)
	}
	g.Nodes[from].Outs = append(g.Nodes[from].Outs, to)
	return nil
}

// Node returns the node with the given id, or nil.
func (g *LocalGraph) Node(id uint32) *LocalNode {
	if id >= uint32(len(g.Nodes)) {
		return nil
	}
	return g.Nodes[id]
}

// NumEdges returns the total edge count.
func (g *LocalGraph) NumEdges() int {
	var n int
	for _, node := range g.Nodes {
		n += len(node.Outs)
	}
	return n
}

// Walk returns every path of exactly length bases through the graph
// starting at offset pos of the given node, deduplicated and in Path order.
func (g *LocalGraph) Walk(id, pos, length uint32) []Path {
	if id >= uint32(len(g.Nodes)) || length == 0 {
		return nil
	}
	walks := g.walk(id, pos, length)
	sort.Slice(walks, func(i, j int) bool { return walks[i].Less(walks[j]) })
	// routes through distinct sentinel nodes have distinct intervals, but
	// dedup anyway for diamond topologies
	out := walks[:0]
	for i, w := range walks {
		if i == 0 || !w.Equal(walks[i-1]) {
			out = append(out, w)
		}
	}
	return out
}

func (g *LocalGraph) walk(id, pos, want uint32) []Path {
	node := g.Nodes[id]
	avail := node.Pos.End - pos
	if avail >= want {
		return []Path{{Interval{Start: pos, End: pos + want}}}
	}
	head := Interval{Start: pos, End: node.Pos.End}
	var out []Path
	for _, v := range node.Outs {
		for _, tail := range g.walk(v, g.Nodes[v].Pos.Start, want-avail) {
			p := make(Path, 0, len(tail)+1)
			p = append(p, head)
			p = append(p, tail...)
			out = append(out, p)
		}
	}
	return out
}

// Check verifies the graph invariant: every node is reachable from node 0
// and every node reaches a sink.
func (g *LocalGraph) Check() error {
	if len(g.Nodes) == 0 {
		return nil
	}
	reach := make([]bool, len(g.Nodes))
	stack := []uint32{0}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reach[id] {
			continue
		}
		reach[id] = true
		stack = append(stack, g.Nodes[id].Outs...)
	}
	for id, ok := range reach {
		if !ok {
			return errors.Wrapf(ErrInvariant, "node %d unreachable from source", id)
		}
	}
	// in a DAG with every node reachable from the source, every node with
	// out-edges to valid nodes eventually leads to a sink, so only edge
	// validity remains to check
	for _, node := range g.Nodes {
		for _, v := range node.Outs {
			if v >= uint32(len(g.Nodes)) {
				return errors.Wrapf(ErrInvariant, "edge %d->%d references unknown node", node.ID, v)
			}
		}
	}
	return nil
}

func (g *LocalGraph) String() string {
	var b strings.Builder
	for _, node := range g.Nodes {
		fmt.Fprintf(&b, "(%d %s %s) ->", node.ID, node.Pos, node.Seq)
		for _, v := range node.Outs {
			fmt.Fprintf(&b, " %d", v)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
