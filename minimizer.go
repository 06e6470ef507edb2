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

import "fmt"

// Minimizer is one selected kmer of a read: its canonical hash, where it
// sits in the read, and whether the forward spelling won the canonical
// comparison.
type Minimizer struct {
	Hash      uint64
	Pos       Interval
	IsForward bool
}

// Less orders minimizers by hash, read position, then strand, forward
// first.
func (m Minimizer) Less(o Minimizer) bool {
	if m.Hash != o.Hash {
		return m.Hash < o.Hash
	}
	if m.Pos.Start != o.Pos.Start {
		return m.Pos.Start < o.Pos.Start
	}
	if m.Pos.Length() != o.Pos.Length() {
		return m.Pos.Length() < o.Pos.Length()
	}
	return m.IsForward && !o.IsForward
}

func (m Minimizer) String() string {
	return fmt.Sprintf("(%d, %s, %v)", m.Hash, m.Pos, m.IsForward)
}

// MiniRecord is one occurrence of a kmer in the index: which PRG, the path
// through its local graph, the kmer-graph node holding the path, and the
// strand whose spelling is canonical.
type MiniRecord struct {
	PrgID      uint32
	Path       Path
	KmerNodeID uint32
	IsForward  bool
}

// Equal reports whether two records describe the same occurrence.
func (r MiniRecord) Equal(o MiniRecord) bool {
	return r.PrgID == o.PrgID && r.KmerNodeID == o.KmerNodeID &&
		r.IsForward == o.IsForward && r.Path.Equal(o.Path)
}

func (r MiniRecord) String() string {
	return fmt.Sprintf("(%d, %s, %d, %v)", r.PrgID, r.Path, r.KmerNodeID, r.IsForward)
}
