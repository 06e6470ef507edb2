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
	"bufio"
	goerrors "errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/shenwei356/breader"
	"github.com/twotwotwo/sorts/sortutil"
)

// Index maps canonical kmer hashes to their occurrences across all PRGs.
type Index struct {
	K, W    int
	Records map[uint64][]MiniRecord
}

// NewIndex returns an empty index for the given sketch parameters.
func NewIndex(k, w int) *Index {
	return &Index{K: k, W: w, Records: make(map[uint64][]MiniRecord)}
}

// Add appends a record under a hash. Duplicates are kept; callers dedup
// via minimizer selection during sketching.
func (idx *Index) Add(hash uint64, r MiniRecord) {
	idx.Records[hash] = append(idx.Records[hash], r)
}

// Probe returns the records stored under a hash.
func (idx *Index) Probe(hash uint64) []MiniRecord {
	return idx.Records[hash]
}

// Merge folds another index into this one.
func (idx *Index) Merge(other *Index) {
	for hash, rs := range other.Records {
		idx.Records[hash] = append(idx.Records[hash], rs...)
	}
}

// NumKmers returns the number of distinct hashes.
func (idx *Index) NumKmers() int {
	return len(idx.Records)
}

// NumRecords returns the total number of records.
func (idx *Index) NumRecords() int {
	var n int
	for _, rs := range idx.Records {
		n += len(rs)
	}
	return n
}

// Equal reports whether two indexes hold the same multiset of records.
func (idx *Index) Equal(other *Index) bool {
	if len(idx.Records) != len(other.Records) {
		return false
	}
	for hash, rs := range idx.Records {
		os, ok := other.Records[hash]
		if !ok || len(os) != len(rs) {
			return false
		}
		used := make([]bool, len(os))
	next:
		for _, r := range rs {
			for i, o := range os {
				if !used[i] && r.Equal(o) {
					used[i] = true
					continue next
				}
			}
			return false
		}
	}
	return true
}

// WriteTo serializes the index: one record per line,
// hash TAB prg TAB path TAB kmer-node TAB strand, sorted by hash then
// insertion order, no header. The output is deterministic for a given
// in-memory index.
func (idx *Index) WriteTo(w io.Writer) error {
	hashes := make([]uint64, 0, len(idx.Records))
	for hash := range idx.Records {
		hashes = append(hashes, hash)
	}
	sortutil.Uint64s(hashes)

	bw := bufio.NewWriter(w)
	for _, hash := range hashes {
		for _, r := range idx.Records[hash] {
			strand := 0
			if r.IsForward {
				strand = 1
			}
			_, err := fmt.Fprintf(bw, "%d\t%d\t%s\t%d\t%d\n",
				hash, r.PrgID, r.Path, r.KmerNodeID, strand)
			if err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

type indexEntry struct {
	hash uint64
	rec  MiniRecord
}

func parseIndexLine(line string) (interface{}, bool, error) {
	line = strings.TrimRight(line, " \t\r\n")
	if line == "" {
		return nil, false, nil
	}
	fields := strings.Split(line, "\t")
	if len(fields) != 5 {
		return nil, false, errors.Wrapf(ErrMalformedIndex, "expected 5 fields, got %d: %q", len(fields), line)
	}
	hash, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return nil, false, errors.Wrapf(ErrMalformedIndex, "bad hash: %q", line)
	}
	prgID, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return nil, false, errors.Wrapf(ErrMalformedIndex, "bad prg id: %q", line)
	}
	path, err := ParsePath(fields[2])
	if err != nil {
		return nil, false, errors.Wrapf(ErrMalformedIndex, "bad path: %q", line)
	}
	knode, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return nil, false, errors.Wrapf(ErrMalformedIndex, "bad kmer node id: %q", line)
	}
	var strand bool
	switch fields[4] {
	case "0":
	case "1":
		strand = true
	default:
		return nil, false, errors.Wrapf(ErrMalformedIndex, "bad strand: %q", line)
	}
	return indexEntry{
		hash: hash,
		rec: MiniRecord{
			PrgID:      uint32(prgID),
			Path:       path,
			KmerNodeID: uint32(knode),
			IsForward:  strand,
		},
	}, true, nil
}

// LoadIndex reads an index file written by WriteTo, preserving on-disk
// order and duplicates.
func LoadIndex(file string, k, w int) (*Index, error) {
	reader, err := breader.NewBufferedReader(file, 4, 100, parseIndexLine)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	idx := NewIndex(k, w)
	for chunk := range reader.Ch {
		if chunk.Err != nil {
			if goerrors.Is(chunk.Err, ErrMalformedIndex) {
				return nil, errors.Wrap(chunk.Err, file)
			}
			return nil, errors.Wrapf(ErrMalformedIndex, "%s: %s", file, chunk.Err)
		}
		for _, data := range chunk.Data {
			e := data.(indexEntry)
			idx.Add(e.hash, e.rec)
		}
	}
	return idx, nil
}

// BuildIndex sketches every PRG and folds the results into one index. The
// work is sharded by PRG id: each worker sketches whole PRGs into a
// private index, merged under a single mutex.
func BuildIndex(prgs []*LocalPRG, w, k, threads int) (*Index, error) {
	if threads < 1 {
		threads = 1
	}
	idx := NewIndex(k, w)

	var mu sync.Mutex
	var wg sync.WaitGroup
	jobs := make(chan *LocalPRG, threads)
	errCh := make(chan error, threads)

	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for prg := range jobs {
				part := NewIndex(k, w)
				if err := prg.MinimizerSketch(part, w, k); err != nil {
					select {
					case errCh <- errors.Wrap(err, prg.Name):
					default:
					}
					continue
				}
				mu.Lock()
				idx.Merge(part)
				mu.Unlock()
			}
		}()
	}
	for _, prg := range prgs {
		jobs <- prg
	}
	close(jobs)
	wg.Wait()

	select {
	case err := <-errCh:
		return nil, err
	default:
	}
	return idx, nil
}
