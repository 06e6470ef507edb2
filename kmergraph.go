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
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// KmerNode is one kmer occurrence, positioned by a path through the local
// graph. Sentinel source/sink nodes carry empty paths.
type KmerNode struct {
	ID   uint32
	Path Path

	CovgFwd uint32
	CovgRev uint32

	Outs []uint32
	Ins  []uint32
}

// TotalCovg returns coverage summed over both strands.
func (n *KmerNode) TotalCovg() uint32 {
	return n.CovgFwd + n.CovgRev
}

// KmerGraph is the DAG of kmer occurrences of one PRG, with per-node read
// coverage and the maximum-likelihood path computation over it.
type KmerGraph struct {
	K        int
	P        float64
	NumReads uint32

	Nodes  []*KmerNode
	byPath map[string]uint32
}

// NewKmerGraph returns an empty graph for kmer length k.
func NewKmerGraph(k int) *KmerGraph {
	return &KmerGraph{K: k, byPath: make(map[string]uint32)}
}

// AddNode returns the node for this path, creating it if new.
func (g *KmerGraph) AddNode(p Path) *KmerNode {
	key := p.String()
	if id, ok := g.byPath[key]; ok {
		return g.Nodes[id]
	}
	node := &KmerNode{ID: uint32(len(g.Nodes)), Path: p}
	g.Nodes = append(g.Nodes, node)
	g.byPath[key] = node.ID
	return node
}

// NodeByPath returns the node holding exactly this path, or nil.
func (g *KmerGraph) NodeByPath(p Path) *KmerNode {
	if id, ok := g.byPath[p.String()]; ok {
		return g.Nodes[id]
	}
	return nil
}

// AddEdge connects two existing nodes.
func (g *KmerGraph) AddEdge(u, v uint32) error {
	if u >= uint32(len(g.Nodes)) || v >= uint32(len(g.Nodes)) {
		return errors.Wrapf(ErrGraphIncoherent, "edge %d->%d references unknown node", u, v)
	}
	for _, o := range g.Nodes[u].Outs {
		if o == v {
			return nil
		}
	}
	g.Nodes[u].Outs = append(g.Nodes[u].Outs, v)
	g.Nodes[v].Ins = append(g.Nodes[v].Ins, u)
	return nil
}

// AddCovg increments a node's coverage on one strand, capped at maxCovg
// (0 means uncapped).
func (g *KmerGraph) AddCovg(id uint32, isForward bool, maxCovg uint32) {
	if id >= uint32(len(g.Nodes)) {
		return
	}
	node := g.Nodes[id]
	if isForward {
		if maxCovg == 0 || node.CovgFwd < maxCovg {
			node.CovgFwd++
		}
	} else {
		if maxCovg == 0 || node.CovgRev < maxCovg {
			node.CovgRev++
		}
	}
}

// lognChooseK2 is log of the number of ways to pick k1 forward and k2
// reverse reads out of n.
func lognChooseK2(n, k1, k2 uint32) float64 {
	ln, _ := math.Lgamma(float64(n) + 1)
	l1, _ := math.Lgamma(float64(k1) + 1)
	l2, _ := math.Lgamma(float64(k2) + 1)
	lr, _ := math.Lgamma(float64(n-k1-k2) + 1)
	return ln - l1 - l2 - lr
}

// Prob scores a node's coverage under the sequencing model with error rate
// p: the log-probability of seeing its per-strand coverages out of numReads
// reads. Deterministic and monotone in total coverage up to the expected
// depth.
func (g *KmerGraph) Prob(id uint32, numReads uint32) float64 {
	node := g.Nodes[id]
	if len(node.Path) == 0 || node.Path.Length() == 0 || numReads == 0 {
		return 0
	}
	f, r := node.CovgFwd, node.CovgRev
	if f+r > numReads {
		// clamp, preserving the strand ratio
		total := f + r
		f = uint32(uint64(f) * uint64(numReads) / uint64(total))
		r = numReads - f
	}
	return lognChooseK2(numReads, f, r) +
		float64(f+r)*math.Log(g.P/2) +
		float64(numReads-f-r)*math.Log(1-g.P)
}

// TopoOrder returns node ids in a topological order of the DAG.
func (g *KmerGraph) TopoOrder() ([]uint32, error) {
	indeg := make([]int, len(g.Nodes))
	for _, node := range g.Nodes {
		for _, v := range node.Outs {
			indeg[v]++
		}
	}
	var queue []uint32
	for id := range g.Nodes {
		if indeg[id] == 0 {
			queue = append(queue, uint32(id))
		}
	}
	order := make([]uint32, 0, len(g.Nodes))
	for len(queue) > 0 {
		// lowest id first keeps the order deterministic
		best := 0
		for i := range queue {
			if queue[i] < queue[best] {
				best = i
			}
		}
		id := queue[best]
		queue = append(queue[:best], queue[best+1:]...)
		order = append(order, id)
		for _, v := range g.Nodes[id].Outs {
			indeg[v]--
			if indeg[v] == 0 {
				queue = append(queue, v)
			}
		}
	}
	if len(order) != len(g.Nodes) {
		return nil, errors.Wrap(ErrGraphIncoherent, "cycle in kmer graph")
	}
	return order, nil
}

// sourceAndSink locates the unique source and sink.
func (g *KmerGraph) sourceAndSink() (uint32, uint32, error) {
	source, sink := -1, -1
	for id, node := range g.Nodes {
		if len(node.Ins) == 0 {
			if source >= 0 {
				return 0, 0, errors.Wrapf(ErrGraphIncoherent, "nodes %d and %d are both sources", source, id)
			}
			source = id
		}
		if len(node.Outs) == 0 {
			if sink >= 0 {
				return 0, 0, errors.Wrapf(ErrGraphIncoherent, "nodes %d and %d are both sinks", sink, id)
			}
			sink = id
		}
	}
	if source < 0 || sink < 0 {
		return 0, 0, errors.Wrap(ErrGraphIncoherent, "no source or sink")
	}
	return uint32(source), uint32(sink), nil
}

// FindMaxPath computes the maximum-likelihood source-to-sink path: node ids
// in walk order (sentinels excluded) and the total log-probability. Ties
// break on the lower node id. An empty graph yields an empty path.
func (g *KmerGraph) FindMaxPath(numReads uint32, p float64) ([]uint32, float64, error) {
	if len(g.Nodes) == 0 {
		return nil, 0, nil
	}
	g.P = p
	g.NumReads = numReads

	source, sink, err := g.sourceAndSink()
	if err != nil {
		return nil, 0, err
	}
	order, err := g.TopoOrder()
	if err != nil {
		return nil, 0, err
	}

	negInf := math.Inf(-1)
	best := make([]float64, len(g.Nodes))
	from := make([]int64, len(g.Nodes))
	for id := range best {
		best[id] = negInf
		from[id] = -1
	}
	best[source] = 0
	for _, id := range order {
		if id == source {
			continue
		}
		node := g.Nodes[id]
		bestPred := negInf
		var predID int64 = -1
		for _, u := range node.Ins {
			if best[u] > bestPred || (best[u] == bestPred && bestPred != negInf && int64(u) < predID) {
				bestPred = best[u]
				predID = int64(u)
			}
		}
		if bestPred == negInf {
			// unreachable from the source
			continue
		}
		best[id] = g.Prob(id, numReads) + bestPred
		from[id] = predID
	}
	if best[sink] == negInf {
		return nil, 0, errors.Wrap(ErrGraphIncoherent, "sink unreachable from source")
	}

	var path []uint32
	for id := int64(sink); id >= 0; id = from[id] {
		u := uint32(id)
		if u != source && u != sink {
			path = append(path, u)
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, best[sink], nil
}

// BestScore exposes the DP score of the maximum-likelihood path.
func (g *KmerGraph) BestScore(numReads uint32, p float64) (float64, error) {
	_, score, err := g.FindMaxPath(numReads, p)
	return score, err
}

// WriteTo serializes the graph: "K id pos" node lines, "E src dst" edge
// lines, and a trailing "P k p num_reads" line.
func (g *KmerGraph) WriteTo(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, node := range g.Nodes {
		if _, err := fmt.Fprintf(bw, "K %d %s\n", node.ID, node.Path); err != nil {
			return err
		}
	}
	for _, node := range g.Nodes {
		for _, v := range node.Outs {
			if _, err := fmt.Fprintf(bw, "E %d %d\n", node.ID, v); err != nil {
				return err
			}
		}
	}
	if _, err := fmt.Fprintf(bw, "P %d %g %d\n", g.K, g.P, g.NumReads); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadKmerGraph parses the serialization written by WriteTo.
func ReadKmerGraph(r io.Reader) (*KmerGraph, error) {
	g := NewKmerGraph(0)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "K":
			if len(fields) != 3 {
				return nil, errors.Wrapf(ErrGraphIncoherent, "bad node line: %q", line)
			}
			id, err := strconv.ParseUint(fields[1], 10, 32)
			if err != nil {
				return nil, errors.Wrapf(err, "bad node line: %q", line)
			}
			p, err := ParsePath(fields[2])
			if err != nil {
				return nil, errors.Wrapf(err, "bad node line: %q", line)
			}
			node := g.AddNode(p)
			if node.ID != uint32(id) {
				return nil, errors.Wrapf(ErrGraphIncoherent, "node ids not dense at %q", line)
			}
		case "E":
			if len(fields) != 3 {
				return nil, errors.Wrapf(ErrGraphIncoherent, "bad edge line: %q", line)
			}
			u, err := strconv.ParseUint(fields[1], 10, 32)
			if err != nil {
				return nil, errors.Wrapf(err, "bad edge line: %q", line)
			}
			v, err := strconv.ParseUint(fields[2], 10, 32)
			if err != nil {
				return nil, errors.Wrapf(err, "bad edge line: %q", line)
			}
			if err := g.AddEdge(uint32(u), uint32(v)); err != nil {
				return nil, err
			}
		case "P":
			if len(fields) != 4 {
				return nil, errors.Wrapf(ErrGraphIncoherent, "bad parameter line: %q", line)
			}
			k, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, errors.Wrapf(err, "bad parameter line: %q", line)
			}
			p, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "bad parameter line: %q", line)
			}
			n, err := strconv.ParseUint(fields[3], 10, 32)
			if err != nil {
				return nil, errors.Wrapf(err, "bad parameter line: %q", line)
			}
			g.K, g.P, g.NumReads = k, p, uint32(n)
		default:
			return nil, errors.Wrapf(ErrGraphIncoherent, "unknown line type: %q", line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return g, nil
}

// Equal reports whether two graphs have the same nodes and edges.
func (g *KmerGraph) Equal(h *KmerGraph) bool {
	if len(g.Nodes) != len(h.Nodes) {
		return false
	}
	for id, node := range g.Nodes {
		other := h.Nodes[id]
		if !node.Path.Equal(other.Path) || len(node.Outs) != len(other.Outs) {
			return false
		}
		for i, v := range node.Outs {
			if other.Outs[i] != v {
				return false
			}
		}
	}
	return true
}
