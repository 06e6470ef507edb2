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
)

// ErrInvalidW means w < 1 or w > (1<<32)-1.
var ErrInvalidW = fmt.Errorf("pandora: invalid minimizer window")

// ErrShortSeq means the sequence is shorter than one window.
var ErrShortSeq = fmt.Errorf("pandora: sequence too short")

// ReadSketch iterates the (w,k) minimizers of one read. In every window of
// w consecutive kmers the smallest canonical hash and all its ties are
// selected; each selected position is emitted once. Windows touching a
// non-ACGT base are skipped.
type ReadSketch struct {
	k, w int

	codes []uint64 // canonical code per kmer start
	fwd   []bool
	valid []bool

	win     int // next window start
	end     int // last window start
	pending []Minimizer
	emitted []bool
}

// NewReadSketch returns a minimizer iterator over seq.
func NewReadSketch(seq []byte, w, k int) (*ReadSketch, error) {
	if k < 1 || k > 32 {
		return nil, ErrKOverflow
	}
	if w < 1 || w > (1<<32)-1 {
		return nil, ErrInvalidW
	}
	if len(seq) < w+k-1 {
		return nil, ErrShortSeq
	}
	n := len(seq) - k + 1
	s := &ReadSketch{
		k:       k,
		w:       w,
		codes:   make([]uint64, n),
		fwd:     make([]bool, n),
		valid:   make([]bool, n),
		end:     n - w,
		emitted: make([]bool, n),
	}
	for i := 0; i < n; i++ {
		// strict ACGT only: degenerate bases map to a base in Encode, but a
		// sketched kmer must spell exactly what the graph spells
		if !isACGT(seq[i : i+k]) {
			continue
		}
		hash, isFwd, err := HashKmer(seq[i : i+k])
		if err != nil {
			continue
		}
		s.codes[i], s.fwd[i], s.valid[i] = hash, isFwd, true
	}
	return s, nil
}

// SketchMinimizers collects the minimizers of one read as an ordered set,
// sorted by the Minimizer total order.
func SketchMinimizers(seq []byte, w, k int) ([]Minimizer, error) {
	sketch, err := NewReadSketch(seq, w, k)
	if err != nil {
		return nil, err
	}
	var out []Minimizer
	for {
		m, ok := sketch.Next()
		if !ok {
			break
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

func isACGT(s []byte) bool {
	for _, b := range s {
		switch b {
		case 'A', 'a', 'C', 'c', 'G', 'g', 'T', 't', 'U', 'u':
		default:
			return false
		}
	}
	return true
}

// Next returns the next minimizer, read-position order within a window,
// windows left to right.
func (s *ReadSketch) Next() (Minimizer, bool) {
	for {
		if len(s.pending) > 0 {
			m := s.pending[0]
			s.pending = s.pending[1:]
			return m, true
		}
		if s.win > s.end {
			return Minimizer{}, false
		}
		s.fillWindow()
	}
}

func (s *ReadSketch) fillWindow() {
	start := s.win
	s.win++

	min := uint64(0)
	seen := false
	for i := start; i < start+s.w; i++ {
		if !s.valid[i] {
			return // window contains an illegal base
		}
		if !seen || s.codes[i] < min {
			min = s.codes[i]
			seen = true
		}
	}
	for i := start; i < start+s.w; i++ {
		if s.codes[i] == min && !s.emitted[i] {
			s.emitted[i] = true
			s.pending = append(s.pending, Minimizer{
				Hash:      s.codes[i],
				Pos:       Interval{Start: uint32(i), End: uint32(i + s.k)},
				IsForward: s.fwd[i],
			})
		}
	}
}
