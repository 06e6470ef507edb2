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

import "errors"

// ErrMalformedPRG means the linearized PRG string violates the site-marker
// grammar and cannot be decomposed into a graph.
var ErrMalformedPRG = errors.New("pandora: malformed PRG")

// ErrMalformedIndex means an index file could not be parsed.
var ErrMalformedIndex = errors.New("pandora: malformed index")

// ErrGraphIncoherent means a kmer graph has no walkable source-to-sink
// route, or edges referencing unknown node ids.
var ErrGraphIncoherent = errors.New("pandora: incoherent kmer graph")

// ErrInvariant means an internal invariant was violated.
var ErrInvariant = errors.New("pandora: invariant violation")
