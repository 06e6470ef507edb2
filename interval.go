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

// Interval is a half-open [Start, End) range of byte offsets in a
// linearized PRG string. Empty intervals (Start == End) are legal and used
// as sentinels at the ends of alternative branches.
type Interval struct {
	Start uint32
	End   uint32
}

// NewInterval returns the interval [start, end).
// It panics with ErrInvariant when end < start.
func NewInterval(start, end uint32) Interval {
	if end < start {
		panic(ErrInvariant)
	}
	return Interval{Start: start, End: end}
}

// Length returns End - Start.
func (i Interval) Length() uint32 {
	return i.End - i.Start
}

// Empty reports whether the interval covers no bytes.
func (i Interval) Empty() bool {
	return i.Start == i.End
}

// Overlaps reports whether two intervals share at least one offset.
func (i Interval) Overlaps(j Interval) bool {
	return i.Start < j.End && j.Start < i.End
}

// Less orders intervals by start, then end.
func (i Interval) Less(j Interval) bool {
	if i.Start != j.Start {
		return i.Start < j.Start
	}
	return i.End < j.End
}

func (i Interval) String() string {
	return fmt.Sprintf("[%d, %d)", i.Start, i.End)
}
