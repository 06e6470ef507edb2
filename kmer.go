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

// ErrIllegalBase means a base beyond IUPAC symbols was detected.
var ErrIllegalBase = errors.New("pandora: illegal base")

// ErrKOverflow means K is outside 1-32.
var ErrKOverflow = errors.New("pandora: K (1-32) overflow")

// Encode converts a kmer to 2-bit codes packed in a uint64.
//
// Codes:
//
// 	  A    00
// 	  C    01
// 	  G    10
// 	  T    11
//
// For degenerate bases, only the first base is kept.
func Encode(kmer []byte) (code uint64, err error) {
	k := len(kmer)
	if k == 0 || k > 32 {
		return 0, ErrKOverflow
	}

	for i := range kmer {
		switch kmer[k-1-i] {
		case 'G', 'g', 'K', 'k':
			code |= 2 << uint64(i*2)
		case 'T', 't', 'U', 'u':
			code |= 3 << uint64(i*2)
		case 'C', 'c', 'S', 's', 'B', 'b', 'Y', 'y':
			code |= 1 << uint64(i*2)
		case 'A', 'a', 'N', 'n', 'M', 'm', 'V', 'v', 'H', 'h', 'R', 'r', 'D', 'd', 'W', 'w':
			code |= 0 << uint64(i*2)
		default:
			return code, ErrIllegalBase
		}
	}
	return code, nil
}

// RevComp returns the code of the reverse complement sequence.
func RevComp(code uint64, k int) (c uint64) {
	if k <= 0 || k > 32 {
		panic(ErrKOverflow)
	}
	for i := 0; i < k; i++ {
		c <<= 2
		c |= code&3 ^ 3
		code >>= 2
	}
	return
}

// Canonical returns min(code, RevComp(code)) and whether the forward code
// won. Ties count as forward.
func Canonical(code uint64, k int) (uint64, bool) {
	rc := RevComp(code, k)
	if rc < code {
		return rc, false
	}
	return code, true
}

// HashKmer returns the canonical kmer hash of mer and the strand chosen.
// The hash of a kmer is its canonical 2-bit code, so numeric hash order
// equals lexicographic kmer order over A<C<G<T.
func HashKmer(mer []byte) (hash uint64, isForward bool, err error) {
	code, err := Encode(mer)
	if err != nil {
		return 0, false, err
	}
	hash, isForward = Canonical(code, len(mer))
	return hash, isForward, nil
}

// bit2base is for mapping bit to base.
var bit2base = [4]byte{'A', 'C', 'G', 'T'}

// Decode converts a code to the original seq.
func Decode(code uint64, k int) []byte {
	if k <= 0 || k > 32 {
		panic(ErrKOverflow)
	}
	kmer := make([]byte, k)
	for i := 0; i < k; i++ {
		kmer[k-1-i] = bit2base[code&3]
		code >>= 2
	}
	return kmer
}
