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
	"bytes"
	goerrors "errors"
	"testing"
)

// buildForkKG builds source -> {1, 2, 3} -> sink with one kmer node per
// branch.
func buildForkKG(t *testing.T) *KmerGraph {
	t.Helper()
	g := NewKmerGraph(3)
	g.AddNode(Path{{0, 0}})   // 0: source
	g.AddNode(Path{{0, 3}})   // 1
	g.AddNode(Path{{5, 8}})   // 2
	g.AddNode(Path{{10, 13}}) // 3
	g.AddNode(Path{{20, 20}}) // 4: sink
	for _, e := range [][2]uint32{{0, 1}, {0, 2}, {0, 3}, {1, 4}, {2, 4}, {3, 4}} {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

func TestFindMaxPathPrefersCoverage(t *testing.T) {
	g := buildForkKG(t)
	// the middle branch carries all the coverage
	g.Nodes[2].CovgFwd = 5
	g.Nodes[2].CovgRev = 5

	path, score, err := g.FindMaxPath(50, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	if len(path) != 1 || path[0] != 2 {
		t.Fatalf("got path %v, want [2]", path)
	}
	// the winning path scores at least as high as any alternative
	for _, alt := range []uint32{1, 3} {
		altScore := g.Prob(alt, 50)
		if altScore > score {
			t.Errorf("alternative %d scores %f > %f", alt, altScore, score)
		}
	}
}

func TestFindMaxPathLinear(t *testing.T) {
	// a linear chain with coverage only on the middle node still returns
	// the full chain, middle node included
	g := NewKmerGraph(3)
	g.AddNode(Path{{0, 0}})
	g.AddNode(Path{{0, 3}})
	g.AddNode(Path{{1, 4}})
	g.AddNode(Path{{2, 5}})
	g.AddNode(Path{{5, 5}})
	for _, e := range [][2]uint32{{0, 1}, {1, 2}, {2, 3}, {3, 4}} {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatal(err)
		}
	}
	g.Nodes[2].CovgFwd = 25
	g.Nodes[2].CovgRev = 25

	path, _, err := g.FindMaxPath(50, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	if len(path) != 3 || path[0] != 1 || path[1] != 2 || path[2] != 3 {
		t.Fatalf("got path %v, want [1 2 3]", path)
	}
}

func TestFindMaxPathTieBreaksOnLowerID(t *testing.T) {
	g := buildForkKG(t)
	path, _, err := g.FindMaxPath(10, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	if len(path) != 1 || path[0] != 1 {
		t.Fatalf("got path %v, want the lowest-id branch [1]", path)
	}
}

func TestFindMaxPathEmptyGraph(t *testing.T) {
	g := NewKmerGraph(3)
	path, score, err := g.FindMaxPath(10, 0.2)
	if err != nil || path != nil || score != 0 {
		t.Errorf("got %v, %f, %v", path, score, err)
	}
}

func TestFindMaxPathIncoherent(t *testing.T) {
	g := NewKmerGraph(3)
	g.AddNode(Path{{0, 0}}) // source
	g.AddNode(Path{{0, 3}})
	g.AddNode(Path{{9, 9}}) // sink, disconnected
	if err := g.AddEdge(0, 1); err != nil {
		t.Fatal(err)
	}
	_, _, err := g.FindMaxPath(10, 0.2)
	if !goerrors.Is(err, ErrGraphIncoherent) {
		t.Errorf("expected ErrGraphIncoherent, got %v", err)
	}
}

func TestAddEdgeUnknownNode(t *testing.T) {
	g := NewKmerGraph(3)
	g.AddNode(Path{{0, 3}})
	if err := g.AddEdge(0, 9); !goerrors.Is(err, ErrGraphIncoherent) {
		t.Errorf("expected ErrGraphIncoherent, got %v", err)
	}
}

func TestProbMonotoneInCoverage(t *testing.T) {
	g := buildForkKG(t)
	g.P = 0.2
	var last float64
	for covg := uint32(0); covg <= 5; covg++ {
		g.Nodes[1].CovgFwd = covg
		p := g.Prob(1, 50)
		if covg > 0 && p <= last {
			t.Errorf("prob not increasing at covg %d: %f <= %f", covg, p, last)
		}
		last = p
	}
}

func TestProbStrandSwapWithEqualCovgs(t *testing.T) {
	g := buildForkKG(t)
	g.P = 0.2
	g.Nodes[1].CovgFwd, g.Nodes[1].CovgRev = 3, 3
	a := g.Prob(1, 50)
	g.Nodes[1].CovgFwd, g.Nodes[1].CovgRev = 3, 3
	if b := g.Prob(1, 50); a != b {
		t.Errorf("prob not deterministic: %f != %f", a, b)
	}
}

func TestNodeByPath(t *testing.T) {
	g := buildForkKG(t)
	if n := g.NodeByPath(Path{{5, 8}}); n == nil || n.ID != 2 {
		t.Errorf("got %v", n)
	}
	if n := g.NodeByPath(Path{{5, 9}}); n != nil {
		t.Errorf("got %v for unknown path", n)
	}
	// adding an existing path returns the stored node
	if n := g.AddNode(Path{{5, 8}}); n.ID != 2 {
		t.Errorf("got id %d", n.ID)
	}
}

func TestBestScore(t *testing.T) {
	g := buildForkKG(t)
	g.Nodes[2].CovgFwd = 5
	g.Nodes[2].CovgRev = 5
	score, err := g.BestScore(50, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	if score != g.Prob(2, 50) {
		t.Errorf("best score %f should equal the winning node's prob %f", score, g.Prob(2, 50))
	}
}

func TestTopoOrder(t *testing.T) {
	g := buildForkKG(t)
	order, err := g.TopoOrder()
	if err != nil {
		t.Fatal(err)
	}
	pos := make(map[uint32]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for _, node := range g.Nodes {
		for _, v := range node.Outs {
			if pos[node.ID] >= pos[v] {
				t.Errorf("edge %d->%d against topological order", node.ID, v)
			}
		}
	}
}

func TestKmerGraphRoundTrip(t *testing.T) {
	g := buildForkKG(t)
	g.P = 0.2
	g.NumReads = 42

	var buf bytes.Buffer
	if err := g.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	h, err := ReadKmerGraph(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !g.Equal(h) {
		t.Error("graphs differ after round trip")
	}
	if h.K != g.K || h.P != g.P || h.NumReads != g.NumReads {
		t.Errorf("parameters differ: %d %g %d", h.K, h.P, h.NumReads)
	}
}

func TestReadKmerGraphBadEdge(t *testing.T) {
	in := "K\t0\t0-3\nE\t0\t7\n"
	if _, err := ReadKmerGraph(bytes.NewBufferString(in)); !goerrors.Is(err, ErrGraphIncoherent) {
		t.Errorf("expected ErrGraphIncoherent, got %v", err)
	}
}
