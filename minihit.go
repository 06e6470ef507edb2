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

	"github.com/pkg/errors"
)

// MinimizerHit pairs a minimizer of a read with one of its occurrences in
// the index. ReadStrand is true when read and PRG agree on orientation.
type MinimizerHit struct {
	ReadID     uint32
	ReadStart  uint32
	ReadStrand bool
	Record     MiniRecord
}

// NewMinimizerHit builds a hit from a read minimizer and an index record.
// The kmer of the read and the path in the PRG must span the same number
// of bases.
func NewMinimizerHit(readID uint32, m Minimizer, r MiniRecord) (MinimizerHit, error) {
	if m.Pos.Length() != r.Path.Length() {
		return MinimizerHit{}, errors.Wrapf(ErrInvariant,
			"hit kmer length %d != path length %d", m.Pos.Length(), r.Path.Length())
	}
	return MinimizerHit{
		ReadID:     readID,
		ReadStart:  m.Pos.Start,
		ReadStrand: m.IsForward == r.IsForward,
		Record:     r,
	}, nil
}

// Less is the total order on hits: read id, prg id, strand (forward
// first), read start position, then prg path.
func (h MinimizerHit) Less(o MinimizerHit) bool {
	if h.ReadID != o.ReadID {
		return h.ReadID < o.ReadID
	}
	if h.Record.PrgID != o.Record.PrgID {
		return h.Record.PrgID < o.Record.PrgID
	}
	if h.ReadStrand != o.ReadStrand {
		return h.ReadStrand
	}
	if h.ReadStart != o.ReadStart {
		return h.ReadStart < o.ReadStart
	}
	return h.Record.Path.Less(o.Record.Path)
}

// Equal reports whether two hits are identical.
func (h MinimizerHit) Equal(o MinimizerHit) bool {
	return h.ReadID == o.ReadID && h.ReadStart == o.ReadStart &&
		h.ReadStrand == o.ReadStrand && h.Record.Equal(o.Record)
}

func (h MinimizerHit) String() string {
	return fmt.Sprintf("(%d, %d, %d, %s, %v)",
		h.ReadID, h.ReadStart, h.Record.PrgID, h.Record.Path, h.ReadStrand)
}
