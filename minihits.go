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

import "sort"

// MinimizerHits is an ordered set of hits for one or more reads.
type MinimizerHits struct {
	hits   []MinimizerHit
	sorted bool
}

// Add appends a hit.
func (s *MinimizerHits) Add(h MinimizerHit) {
	s.hits = append(s.hits, h)
	s.sorted = false
}

// Len returns the number of hits.
func (s *MinimizerHits) Len() int {
	return len(s.hits)
}

// Hits returns the hits, sorted and deduplicated.
func (s *MinimizerHits) Hits() []MinimizerHit {
	s.Sort()
	return s.hits
}

// Sort orders the hits by their total order and removes duplicates.
func (s *MinimizerHits) Sort() {
	if s.sorted {
		return
	}
	sort.Slice(s.hits, func(i, j int) bool { return s.hits[i].Less(s.hits[j]) })
	out := s.hits[:0]
	for i, h := range s.hits {
		if i == 0 || !h.Equal(s.hits[i-1]) {
			out = append(out, h)
		}
	}
	s.hits = out
	s.sorted = true
}

// Cluster is a co-linear set of hits sharing read id, PRG id and strand.
type Cluster []MinimizerHit

// Cluster groups the hits into co-linear clusters. Within one
// (read, prg, strand) partition a new cluster starts whenever the
// read-offset gap or the path-start gap to the previous hit exceeds
// maxDiff, or the PRG path moves against the strand direction. Clusters
// smaller than minClusterSize are discarded. The result is ordered by read
// id, then cluster size (larger first), read start, prg id, path, strand.
func (s *MinimizerHits) Cluster(maxDiff uint32, minClusterSize int) []Cluster {
	s.Sort()

	var clusters []Cluster
	var cur Cluster
	flush := func() {
		if len(cur) >= minClusterSize {
			clusters = append(clusters, cur)
		}
		cur = nil
	}

	for _, h := range s.hits {
		if len(cur) == 0 {
			cur = Cluster{h}
			continue
		}
		prev := cur[len(cur)-1]
		if h.ReadID != prev.ReadID || h.Record.PrgID != prev.Record.PrgID ||
			h.ReadStrand != prev.ReadStrand {
			flush()
			cur = Cluster{h}
			continue
		}
		readGap := h.ReadStart - prev.ReadStart
		var pathGap uint32
		backwards := false
		if h.ReadStrand {
			if h.Record.Path.Start() < prev.Record.Path.Start() {
				backwards = true
			} else {
				pathGap = h.Record.Path.Start() - prev.Record.Path.Start()
			}
		} else {
			if h.Record.Path.Start() > prev.Record.Path.Start() {
				backwards = true
			} else {
				pathGap = prev.Record.Path.Start() - h.Record.Path.Start()
			}
		}
		if backwards || readGap > maxDiff || pathGap > maxDiff {
			flush()
			cur = Cluster{h}
			continue
		}
		cur = append(cur, h)
	}
	flush()

	sort.Slice(clusters, func(i, j int) bool {
		a, b := clusters[i][0], clusters[j][0]
		if a.ReadID != b.ReadID {
			return a.ReadID < b.ReadID
		}
		if len(clusters[i]) != len(clusters[j]) {
			return len(clusters[i]) > len(clusters[j]) // bigger first
		}
		if a.ReadStart != b.ReadStart {
			return a.ReadStart < b.ReadStart
		}
		if a.Record.PrgID != b.Record.PrgID {
			return a.Record.PrgID < b.Record.PrgID
		}
		if !a.Record.Path.Equal(b.Record.Path) {
			return a.Record.Path.Less(b.Record.Path)
		}
		return !a.ReadStrand && b.ReadStrand
	})
	return clusters
}
