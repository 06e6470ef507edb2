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

import "testing"

func mkHit(readID, readStart, prgID, pathStart uint32, strand bool) MinimizerHit {
	return MinimizerHit{
		ReadID:     readID,
		ReadStart:  readStart,
		ReadStrand: strand,
		Record: MiniRecord{
			PrgID:      prgID,
			Path:       Path{{pathStart, pathStart + 3}},
			KmerNodeID: pathStart,
			IsForward:  true,
		},
	}
}

func TestHitOrder(t *testing.T) {
	a := mkHit(0, 5, 1, 10, true)
	cases := []struct {
		b    MinimizerHit
		less bool
	}{
		{mkHit(1, 0, 0, 0, true), true},   // read id first
		{mkHit(0, 5, 2, 0, true), true},   // then prg id
		{mkHit(0, 5, 1, 10, false), true}, // forward before reverse
		{mkHit(0, 6, 1, 10, true), true},  // then read start
		{mkHit(0, 5, 1, 11, true), true},  // then path
		{mkHit(0, 5, 1, 10, true), false}, // equal
	}
	for i, c := range cases {
		if a.Less(c.b) != c.less {
			t.Errorf("case %d: Less(%s, %s) != %v", i, a, c.b, c.less)
		}
		if c.less && c.b.Less(a) {
			t.Errorf("case %d: order is not antisymmetric", i)
		}
	}
}

func TestHitLengthMismatch(t *testing.T) {
	m := Minimizer{Hash: 1, Pos: Interval{0, 3}, IsForward: true}
	r := MiniRecord{PrgID: 0, Path: Path{{0, 5}}, KmerNodeID: 1, IsForward: true}
	if _, err := NewMinimizerHit(0, m, r); err == nil {
		t.Error("expected error for kmer/path length mismatch")
	}
}

func TestSortDedups(t *testing.T) {
	var hits MinimizerHits
	hits.Add(mkHit(0, 5, 1, 10, true))
	hits.Add(mkHit(0, 0, 1, 4, true))
	hits.Add(mkHit(0, 5, 1, 10, true)) // duplicate
	got := hits.Hits()
	if len(got) != 2 {
		t.Fatalf("got %d hits, want 2", len(got))
	}
	if !got[0].Equal(mkHit(0, 0, 1, 4, true)) {
		t.Errorf("got %s first", got[0])
	}
}

func TestClusterColinear(t *testing.T) {
	var hits MinimizerHits
	// one forward co-linear run on prg 1
	for i := uint32(0); i < 4; i++ {
		hits.Add(mkHit(0, i*10, 1, 100+i*10, true))
	}
	clusters := hits.Cluster(250, 2)
	if len(clusters) != 1 || len(clusters[0]) != 4 {
		t.Fatalf("got %d clusters: %v", len(clusters), clusters)
	}
}

func TestClusterSplitsOnGap(t *testing.T) {
	var hits MinimizerHits
	hits.Add(mkHit(0, 0, 1, 100, true))
	hits.Add(mkHit(0, 10, 1, 110, true))
	// read gap of 500 splits
	hits.Add(mkHit(0, 510, 1, 120, true))
	hits.Add(mkHit(0, 520, 1, 130, true))
	clusters := hits.Cluster(250, 2)
	if len(clusters) != 2 {
		t.Fatalf("got %d clusters", len(clusters))
	}

	hits = MinimizerHits{}
	hits.Add(mkHit(0, 0, 1, 100, true))
	// path gap of 400 splits even with a small read gap
	hits.Add(mkHit(0, 10, 1, 500, true))
	if got := hits.Cluster(250, 1); len(got) != 2 {
		t.Fatalf("got %d clusters, want 2", len(got))
	}
}

func TestClusterSplitsOnBackwardsPath(t *testing.T) {
	var hits MinimizerHits
	hits.Add(mkHit(0, 0, 1, 100, true))
	hits.Add(mkHit(0, 10, 1, 110, true))
	hits.Add(mkHit(0, 20, 1, 90, true)) // moves backwards on forward strand
	clusters := hits.Cluster(250, 1)
	if len(clusters) != 2 {
		t.Fatalf("got %d clusters", len(clusters))
	}

	// on the reverse strand the path must move backwards
	hits = MinimizerHits{}
	hits.Add(mkHit(0, 0, 1, 120, false))
	hits.Add(mkHit(0, 10, 1, 110, false))
	hits.Add(mkHit(0, 20, 1, 100, false))
	if got := hits.Cluster(250, 1); len(got) != 1 {
		t.Fatalf("got %d clusters, want 1", len(got))
	}
}

func TestClusterDiscardsSmall(t *testing.T) {
	var hits MinimizerHits
	hits.Add(mkHit(0, 0, 1, 100, true))
	hits.Add(mkHit(0, 10, 2, 200, true))
	hits.Add(mkHit(0, 20, 2, 210, true))
	clusters := hits.Cluster(250, 2)
	if len(clusters) != 1 || clusters[0][0].Record.PrgID != 2 {
		t.Fatalf("got %v", clusters)
	}
}

func TestClusterOrdering(t *testing.T) {
	var hits MinimizerHits
	// read 1: small cluster on prg 1
	hits.Add(mkHit(1, 0, 1, 100, true))
	hits.Add(mkHit(1, 10, 1, 110, true))
	// read 0: big cluster on prg 2, small on prg 1
	hits.Add(mkHit(0, 0, 1, 100, true))
	hits.Add(mkHit(0, 10, 1, 110, true))
	for i := uint32(0); i < 4; i++ {
		hits.Add(mkHit(0, i*10, 2, 300+i*10, true))
	}
	clusters := hits.Cluster(250, 2)
	if len(clusters) != 3 {
		t.Fatalf("got %d clusters", len(clusters))
	}
	// read 0 first, its bigger cluster before its smaller one
	if clusters[0][0].ReadID != 0 || clusters[0][0].Record.PrgID != 2 {
		t.Errorf("first cluster: %v", clusters[0][0])
	}
	if clusters[1][0].ReadID != 0 || clusters[1][0].Record.PrgID != 1 {
		t.Errorf("second cluster: %v", clusters[1][0])
	}
	if clusters[2][0].ReadID != 1 {
		t.Errorf("third cluster: %v", clusters[2][0])
	}
}
