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

func TestIntervalBasics(t *testing.T) {
	i := NewInterval(3, 7)
	if i.Length() != 4 {
		t.Errorf("length: got %d, want 4", i.Length())
	}
	if i.Empty() {
		t.Error("interval should not be empty")
	}
	if !NewInterval(5, 5).Empty() {
		t.Error("interval should be empty")
	}
	if i.String() != "[3, 7)" {
		t.Errorf("string: got %q", i.String())
	}
	if !i.Overlaps(NewInterval(6, 9)) || i.Overlaps(NewInterval(7, 9)) {
		t.Error("overlap is half-open")
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic for end < start")
		}
	}()
	NewInterval(2, 1)
}

func TestPathOrderAndLength(t *testing.T) {
	a := Path{{0, 3}, {7, 8}}
	b := Path{{0, 3}, {11, 12}}
	c := Path{{0, 4}}
	if a.Length() != 4 || c.Length() != 4 {
		t.Error("path length")
	}
	if !a.Less(b) || b.Less(a) {
		t.Error("a < b by second interval")
	}
	if !a.Less(c) || c.Less(a) {
		t.Error("a < c by first interval end")
	}
	if !a.Equal(Path{{0, 3}, {7, 8}}) || a.Equal(b) {
		t.Error("equality")
	}
	if a.Start() != 0 || a.End() != 8 {
		t.Error("start/end")
	}
	// a prefix sorts before its extension
	if !a[:1].Less(a) || a.Less(a[:1]) {
		t.Error("prefix order")
	}
}

func TestSubpath(t *testing.T) {
	p := Path{{0, 4}, {7, 8}, {15, 19}}

	sub, err := p.Subpath(0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !sub.Equal(Path{{0, 3}}) {
		t.Errorf("got %s", sub)
	}

	sub, err = p.Subpath(3, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !sub.Equal(Path{{3, 4}, {7, 8}, {15, 16}}) {
		t.Errorf("got %s", sub)
	}

	if _, err = p.Subpath(7, 3); err == nil {
		t.Error("expected error for subpath past the end")
	}
	if _, err = p.Subpath(0, 0); err == nil {
		t.Error("expected error for zero-length subpath")
	}

	// sentinels inside the consumed region are kept
	q := Path{{0, 2}, {5, 5}, {9, 11}}
	sub, err = q.Subpath(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !sub.Equal(Path{{1, 2}, {5, 5}, {9, 10}}) {
		t.Errorf("got %s", sub)
	}
}

func TestPathRoundTrip(t *testing.T) {
	for _, p := range []Path{
		nil,
		{{0, 4}},
		{{0, 4}, {7, 8}, {15, 19}},
		{{5, 5}},
	} {
		got, err := ParsePath(p.String())
		if err != nil {
			t.Fatalf("%s: %s", p, err)
		}
		if !got.Equal(p) {
			t.Errorf("round trip: %s != %s", got, p)
		}
	}

	for _, bad := range []string{"x", "1", "3-2", "1-2,", "a-b"} {
		if _, err := ParsePath(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
