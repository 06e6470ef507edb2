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
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Path is an ordered sequence of non-overlapping Intervals forming a walk
// through a local graph. Interval offsets are coordinates of the PRG string.
type Path []Interval

// Length returns the total number of bases covered by the path.
func (p Path) Length() uint32 {
	var n uint32
	for _, iv := range p {
		n += iv.Length()
	}
	return n
}

// Start returns the first offset of the path.
// A path must be non-empty to have a start.
func (p Path) Start() uint32 {
	if len(p) == 0 {
		panic(ErrInvariant)
	}
	return p[0].Start
}

// End returns the offset one past the last base of the path.
func (p Path) End() uint32 {
	if len(p) == 0 {
		panic(ErrInvariant)
	}
	return p[len(p)-1].End
}

// Equal reports whether two paths are the same interval sequence.
func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// Less is the total order on paths: lexicographic by interval sequence.
func (p Path) Less(q Path) bool {
	for i := 0; i < len(p) && i < len(q); i++ {
		if p[i] != q[i] {
			return p[i].Less(q[i])
		}
	}
	return len(p) < len(q)
}

// Subpath extracts a sub-walk of the given length in bases, starting after
// skipping skip bases from the beginning of the path. Empty intervals inside
// the consumed region are kept; trailing ones are not.
func (p Path) Subpath(skip, length uint32) (Path, error) {
	if length == 0 {
		return nil, errors.Wrap(ErrInvariant, "zero-length subpath")
	}
	sub := make(Path, 0, len(p))
	need := length
	for _, iv := range p {
		if need == 0 {
			break
		}
		l := iv.Length()
		if l == 0 {
			if skip == 0 {
				sub = append(sub, iv)
			}
			continue
		}
		if skip >= l {
			skip -= l
			continue
		}
		start := iv.Start + skip
		skip = 0
		end := start + need
		if end > iv.End {
			end = iv.End
		}
		sub = append(sub, Interval{Start: start, End: end})
		need -= end - start
	}
	if need > 0 {
		return nil, errors.Wrapf(ErrInvariant, "subpath of %d bases from path of %d", length, p.Length())
	}
	return sub, nil
}

// String serializes the path as "start-end" pairs joined by commas,
// e.g. "0-3,7-8". ParsePath inverts it exactly.
func (p Path) String() string {
	var b strings.Builder
	for i, iv := range p {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d-%d", iv.Start, iv.End)
	}
	return b.String()
}

// ParsePath parses the serialization produced by Path.String.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		hyphen := strings.IndexByte(part, '-')
		if hyphen < 0 {
			return nil, errors.Errorf("invalid path interval: %q", part)
		}
		start, err := strconv.ParseUint(part[:hyphen], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid path interval: %q", part)
		}
		end, err := strconv.ParseUint(part[hyphen+1:], 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid path interval: %q", part)
		}
		if end < start {
			return nil, errors.Errorf("invalid path interval: %q", part)
		}
		p = append(p, Interval{Start: uint32(start), End: uint32(end)})
	}
	return p, nil
}
