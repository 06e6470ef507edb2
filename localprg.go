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
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// buff is the reserved delimiter flanking site numbers in a PRG string.
const buff = " "

// firstSite is the lowest legal site marker number.
const firstSite = 5

// LocalPRG is one locus: the raw PRG string, its variation graph and, after
// sketching, its kmer graph.
type LocalPRG struct {
	ID   uint32
	Name string
	Seq  string

	Prg   *LocalGraph
	Kmers *KmerGraph

	nextID   uint32
	nextSite uint32
}

// NewLocalPRG decomposes a linearized PRG string into its LocalGraph.
func NewLocalPRG(id uint32, name, seq string) (*LocalPRG, error) {
	l := &LocalPRG{
		ID:       id,
		Name:     name,
		Seq:      seq,
		Prg:      &LocalGraph{},
		nextSite: firstSite,
	}
	_, err := l.buildGraph(Interval{Start: 0, End: uint32(len(seq))}, nil)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// isAlphaString reports whether s is entirely alphabetic.
// The empty string counts as alphabetic.
func isAlphaString(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z') {
			return false
		}
	}
	return true
}

// StringAlongPath spells the sequence covered by a path.
func (l *LocalPRG) StringAlongPath(p Path) string {
	var b strings.Builder
	for _, iv := range p {
		b.WriteString(l.Seq[iv.Start:iv.End])
	}
	return b.String()
}

// splitBy partitions iv at every occurrence of delimiter d, dropping the
// delimiters and keeping empty pieces.
func (l *LocalPRG) splitBy(iv Interval, d string) []Interval {
	var v []Interval
	k := iv.Start
	for {
		j := strings.Index(l.Seq[k:iv.End], d)
		if j < 0 {
			break
		}
		abs := k + uint32(j)
		v = append(v, Interval{Start: k, End: abs})
		k = abs + uint32(len(d))
	}
	return append(v, Interval{Start: k, End: iv.End})
}

// splitBySite splits iv by the markers of one site: first by the site
// marker itself, then every piece by the intra-site separator. A well
// formed site yields prefix | alt... | suffix, at least 4 pieces.
func (l *LocalPRG) splitBySite(iv Interval, site uint32) []Interval {
	d := buff + strconv.FormatUint(uint64(site), 10) + buff
	d2 := buff + strconv.FormatUint(uint64(site+1), 10) + buff
	var w []Interval
	for _, piece := range l.splitBy(iv, d) {
		w = append(w, l.splitBy(piece, d2)...)
	}
	return w
}

// buildGraph recursively converts the interval into graph nodes, connecting
// the new stretch from every id in fromIDs, and returns the ids at the end
// of the stretch.
func (l *LocalPRG) buildGraph(iv Interval, fromIDs []uint32) ([]uint32, error) {
	s := l.Seq[iv.Start:iv.End]
	if isAlphaString(s) {
		id := l.nextID
		l.nextID++
		if err := l.Prg.AddNode(id, s, iv); err != nil {
			return nil, err
		}
		for _, f := range fromIDs {
			if err := l.Prg.AddEdge(f, id); err != nil {
				return nil, err
			}
		}
		return []uint32{id}, nil
	}

	site := l.nextSite
	v := l.splitBySite(iv, site)
	if len(v) < 4 {
		return nil, errors.Wrapf(ErrMalformedPRG,
			"%s: site %d at offset %d partitions into %d pieces, expected at least 4",
			l.Name, site, iv.Start, len(v))
	}
	l.nextSite += 2

	pre := l.Seq[v[0].Start:v[0].End]
	if !isAlphaString(pre) {
		return nil, errors.Wrapf(ErrMalformedPRG,
			"%s: site %d at offset %d: sequence before the site is not alphabetic",
			l.Name, site, v[0].Start)
	}
	id := l.nextID
	l.nextID++
	if err := l.Prg.AddNode(id, pre, v[0]); err != nil {
		return nil, err
	}
	for _, f := range fromIDs {
		if err := l.Prg.AddEdge(f, id); err != nil {
			return nil, err
		}
	}

	mid := []uint32{id}
	var endIDs []uint32
	for _, alt := range v[1 : len(v)-1] {
		w, err := l.buildGraph(alt, mid)
		if err != nil {
			return nil, err
		}
		endIDs = append(endIDs, w...)
	}
	return l.buildGraph(v[len(v)-1], endIDs)
}

// stripEmpty drops sentinel intervals, for walk-adjacency comparisons.
func stripEmpty(p Path) Path {
	out := make(Path, 0, len(p))
	for _, iv := range p {
		if !iv.Empty() {
			out = append(out, iv)
		}
	}
	return out
}

// nodeOfInterval finds the node whose interval contains iv.
func (l *LocalPRG) nodeOfInterval(iv Interval) *LocalNode {
	for _, node := range l.Prg.Nodes {
		if node.Pos.Start <= iv.Start && iv.End <= node.Pos.End {
			if iv.Empty() && !node.Pos.Empty() && iv.Start == node.Pos.End {
				continue
			}
			return node
		}
	}
	return nil
}

// pathsConsecutive reports whether v can be the next minimizer after u on
// some walk through the local graph, with the window shift bounded by w.
func (l *LocalPRG) pathsConsecutive(u, v Path, k, w int) bool {
	uLen := int(u.Length())
	// overlapping case: v starts t bases into u
	for t := 1; t <= w && t < uLen; t++ {
		su, err := u.Subpath(uint32(t), uint32(uLen-t))
		if err != nil {
			continue
		}
		sv, err := v.Subpath(0, uint32(uLen-t))
		if err != nil {
			continue
		}
		if stripEmpty(su).Equal(stripEmpty(sv)) {
			return true
		}
	}
	// disjoint case: v starts g bases past the end of u
	for t := uLen; t <= w; t++ {
		g := uint32(t - uLen)
		last := l.nodeOfInterval(u[len(u)-1])
		if last == nil {
			return false
		}
		for _, walk := range l.Prg.Walk(last.ID, u.End(), g+v.Length()) {
			sub, err := walk.Subpath(g, v.Length())
			if err != nil {
				continue
			}
			if stripEmpty(sub).Equal(stripEmpty(v)) {
				return true
			}
		}
	}
	return false
}

// MinimizerSketch enumerates the (w,k) minimizer kmers of every walk
// through the graph, builds the kmer graph and registers each selected
// kmer path in the index.
func (l *LocalPRG) MinimizerSketch(idx *Index, w, k int) error {
	if k < 1 || k > 32 {
		return ErrKOverflow
	}
	selected := make(map[string]Path)

	walkLen := uint32(w + k - 1)
	for _, node := range l.Prg.Nodes {
		for i := node.Pos.Start; i < node.Pos.End; i++ {
			for _, walk := range l.Prg.Walk(node.ID, i, walkLen) {
				hashes := make([]uint64, w)
				paths := make([]Path, w)
				smallest := ^uint64(0)
				for j := 0; j < w; j++ {
					kp, err := walk.Subpath(uint32(j), uint32(k))
					if err != nil {
						return err
					}
					hash, _, err := HashKmer([]byte(l.StringAlongPath(kp)))
					if err != nil {
						return errors.Wrapf(err, "%s: kmer at %s", l.Name, kp)
					}
					paths[j] = kp
					hashes[j] = hash
					if hash < smallest {
						smallest = hash
					}
				}
				// all ties on the canonical hash are kept; revcomp pairs
				// inside one window count as ties
				for j := 0; j < w; j++ {
					if hashes[j] == smallest {
						selected[paths[j].String()] = paths[j]
					}
				}
			}
		}
	}

	sketch := make([]Path, 0, len(selected))
	for _, p := range selected {
		sketch = append(sketch, p)
	}
	sort.Slice(sketch, func(i, j int) bool { return sketch[i].Less(sketch[j]) })

	l.Kmers = NewKmerGraph(k)
	end := uint32(len(l.Seq))
	source := l.Kmers.AddNode(Path{Interval{Start: 0, End: 0}})
	for _, p := range sketch {
		l.Kmers.AddNode(p)
	}
	sink := l.Kmers.AddNode(Path{Interval{Start: end, End: end}})

	// candidate adjacency, then transitive reduction so each edge is a
	// next-minimizer step on some walk
	n := len(sketch)
	cand := make([][]bool, n)
	for i := range cand {
		cand[i] = make([]bool, n)
		for j := range cand[i] {
			if i == j {
				continue
			}
			if sketch[j].Start() <= sketch[i].Start() {
				continue
			}
			cand[i][j] = l.pathsConsecutive(sketch[i], sketch[j], k, w)
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if !cand[i][j] {
				continue
			}
			reduced := false
			for x := 0; x < n && !reduced; x++ {
				if x != i && x != j && cand[i][x] && cand[x][j] {
					reduced = true
				}
			}
			if reduced {
				continue
			}
			if err := l.Kmers.AddEdge(uint32(i+1), uint32(j+1)); err != nil {
				return err
			}
		}
	}
	for id := uint32(1); id < uint32(n+1); id++ {
		if len(l.Kmers.Nodes[id].Ins) == 0 {
			if err := l.Kmers.AddEdge(source.ID, id); err != nil {
				return err
			}
		}
		if len(l.Kmers.Nodes[id].Outs) == 0 {
			if err := l.Kmers.AddEdge(id, sink.ID); err != nil {
				return err
			}
		}
	}
	if n == 0 {
		if err := l.Kmers.AddEdge(source.ID, sink.ID); err != nil {
			return err
		}
	}

	for i, p := range sketch {
		hash, isForward, err := HashKmer([]byte(l.StringAlongPath(p)))
		if err != nil {
			return errors.Wrapf(err, "%s: kmer at %s", l.Name, p)
		}
		idx.Add(hash, MiniRecord{
			PrgID:      l.ID,
			Path:       p,
			KmerNodeID: uint32(i + 1),
			IsForward:  isForward,
		})
	}
	return nil
}

// RefPath returns the reference walk through the local graph: the allele-0
// route taking the first out-edge everywhere.
func (l *LocalPRG) RefPath() []uint32 {
	if len(l.Prg.Nodes) == 0 {
		return nil
	}
	path := []uint32{0}
	cur := l.Prg.Nodes[0]
	for len(cur.Outs) > 0 {
		cur = l.Prg.Nodes[cur.Outs[0]]
		path = append(path, cur.ID)
	}
	return path
}

// RefSeq spells the sequence of the reference walk.
func (l *LocalPRG) RefSeq() string {
	var b strings.Builder
	for _, id := range l.RefPath() {
		b.WriteString(l.Prg.Nodes[id].Seq)
	}
	return b.String()
}

// NodesAlongKmerPath completes the local-node walk implied by the kmer
// paths of a maximum-likelihood path: nodes touched by the kmer intervals
// are preferred, gaps fall back to the allele-0 route.
func (l *LocalPRG) NodesAlongKmerPath(kmerPaths []Path) []uint32 {
	if len(l.Prg.Nodes) == 0 {
		return nil
	}
	covered := make(map[uint32]bool, len(l.Prg.Nodes))
	for _, p := range kmerPaths {
		for _, iv := range p {
			for _, node := range l.Prg.Nodes {
				if node.Pos.Overlaps(iv) || (iv.Empty() && node.Pos.Empty() && node.Pos.Start == iv.Start) {
					covered[node.ID] = true
				}
			}
		}
	}
	walk := []uint32{0}
	cur := l.Prg.Nodes[0]
	for len(cur.Outs) > 0 {
		next := cur.Outs[0]
		for _, v := range cur.Outs {
			if covered[v] {
				next = v
				break
			}
		}
		cur = l.Prg.Nodes[next]
		walk = append(walk, next)
	}
	return walk
}

// bubble is one deviation from the reference walk: the alternative allele
// branching after refPath[a] and rejoining at refPath[b].
type bubble struct {
	pos       uint32 // start of the ref allele, reference coordinates
	refAllele string
	altAllele string
	refNodes  []uint32
	altNodes  []uint32
	nested    bool
}

func (b bubble) ref() string {
	if b.refAllele == "" {
		return "."
	}
	return b.refAllele
}

func (b bubble) alt() string {
	if b.altAllele == "" {
		return "."
	}
	return b.altAllele
}

func (l *LocalPRG) refIndexAndOffsets(refPath []uint32) (map[uint32]int, []uint32) {
	refIndex := make(map[uint32]int, len(refPath))
	offsets := make([]uint32, len(refPath))
	var off uint32
	for i, id := range refPath {
		refIndex[id] = i
		offsets[i] = off
		off += uint32(len(l.Prg.Nodes[id].Seq))
	}
	return refIndex, offsets
}

// altWalks enumerates node-id walks from id until a reference node is
// reached; the rejoin node is included as the last element.
func (l *LocalPRG) altWalks(id uint32, refIndex map[uint32]int) [][]uint32 {
	if _, ok := refIndex[id]; ok {
		return [][]uint32{{id}}
	}
	var out [][]uint32
	for _, v := range l.Prg.Nodes[id].Outs {
		for _, tail := range l.altWalks(v, refIndex) {
			walk := make([]uint32, 0, len(tail)+1)
			walk = append(walk, id)
			walk = append(walk, tail...)
			out = append(out, walk)
		}
	}
	return out
}

// bubbles enumerates every deviation from the reference walk.
func (l *LocalPRG) bubbles(refPath []uint32) []bubble {
	refIndex, offsets := l.refIndexAndOffsets(refPath)
	var out []bubble
	for a, id := range refPath {
		node := l.Prg.Nodes[id]
		if len(node.Outs) < 2 {
			continue
		}
		for _, o := range node.Outs {
			if a+1 < len(refPath) && o == refPath[a+1] {
				continue
			}
			for _, walk := range l.altWalks(o, refIndex) {
				rejoin := walk[len(walk)-1]
				b := refIndex[rejoin]
				if b <= a {
					continue
				}
				altNodes := walk[:len(walk)-1]
				var alt strings.Builder
				nested := false
				for _, v := range altNodes {
					alt.WriteString(l.Prg.Nodes[v].Seq)
					if len(l.Prg.Nodes[v].Outs) > 1 {
						nested = true
					}
				}
				var ref strings.Builder
				refNodes := make([]uint32, 0, b-a-1)
				for i := a + 1; i < b; i++ {
					ref.WriteString(l.Prg.Nodes[refPath[i]].Seq)
					refNodes = append(refNodes, refPath[i])
				}
				out = append(out, bubble{
					pos:       offsets[a+1],
					refAllele: ref.String(),
					altAllele: alt.String(),
					refNodes:  refNodes,
					altNodes:  append([]uint32(nil), altNodes...),
					nested:    nested,
				})
			}
		}
	}
	return out
}

// BuildVCF emits one record per bubble against the reference walk.
func (l *LocalPRG) BuildVCF(v *VCF, refPath []uint32) {
	for _, b := range l.bubbles(refPath) {
		graphType := "GRAPHTYPE=SIMPLE"
		if b.nested {
			graphType = "GRAPHTYPE=NESTED"
		}
		v.AddRecordSimple(l.Name, b.pos, b.ref(), b.alt(), ".", graphType)
	}
}

// sampleSegments compares the sample walk against the reference walk and
// yields the divergent segments as (pos, refAllele, sampleAllele).
func (l *LocalPRG) sampleSegments(refPath, samplePath []uint32) []bubble {
	refIndex, offsets := l.refIndexAndOffsets(refPath)
	var out []bubble
	prevRef := 0 // index into refPath of last common node
	i := 1
	for i < len(samplePath) {
		id := samplePath[i]
		if b, ok := refIndex[id]; ok {
			if b != prevRef+1 {
				// sample followed ref nodes but skipped some: deletion
				var ref strings.Builder
				for x := prevRef + 1; x < b; x++ {
					ref.WriteString(l.Prg.Nodes[refPath[x]].Seq)
				}
				out = append(out, bubble{pos: offsets[prevRef+1], refAllele: ref.String()})
			}
			prevRef = b
			i++
			continue
		}
		// off-reference stretch
		var alt strings.Builder
		altNodes := []uint32{}
		j := i
		for j < len(samplePath) {
			if _, ok := refIndex[samplePath[j]]; ok {
				break
			}
			alt.WriteString(l.Prg.Nodes[samplePath[j]].Seq)
			altNodes = append(altNodes, samplePath[j])
			j++
		}
		rejoin := len(refPath) - 1
		if j < len(samplePath) {
			rejoin = refIndex[samplePath[j]]
		}
		var ref strings.Builder
		for x := prevRef + 1; x < rejoin; x++ {
			ref.WriteString(l.Prg.Nodes[refPath[x]].Seq)
		}
		out = append(out, bubble{
			pos:       offsets[prevRef+1],
			refAllele: ref.String(),
			altAllele: alt.String(),
			altNodes:  altNodes,
		})
		prevRef = rejoin
		i = j + 1
	}
	return out
}

// AddSampleToVCF genotypes one sample: GT calls for the segments where the
// sample walk diverges from the reference, ref-allele calls where it does
// not, and per-allele coverage pulled from the maximum-likelihood kmer
// nodes.
func (l *LocalPRG) AddSampleToVCF(v *VCF, sample string, refPath, samplePath []uint32, mlNodes []*KmerNode) {
	onSample := make(map[uint32]bool, len(samplePath))
	for _, id := range samplePath {
		onSample[id] = true
	}

	for _, seg := range l.sampleSegments(refPath, samplePath) {
		v.AddSampleGT(sample, l.Name, seg.pos, seg.ref(), seg.alt())
	}
	// sites where the sample stayed on the reference route
	for _, b := range l.bubbles(refPath) {
		tookRef := true
		for _, id := range b.refNodes {
			if !onSample[id] {
				tookRef = false
				break
			}
		}
		if tookRef && !segmentDiverges(b, onSample) {
			v.AddSampleGT(sample, l.Name, b.pos, b.ref(), b.ref())
		}
	}

	l.addSampleCovgs(v, sample, refPath, mlNodes)
}

// segmentDiverges reports whether the sample went off-reference at this
// bubble (it contains any of the bubble's alt nodes).
func segmentDiverges(b bubble, onSample map[uint32]bool) bool {
	for _, id := range b.altNodes {
		if onSample[id] {
			return true
		}
	}
	return false
}

// covgOverRegion averages the coverage of the kmer nodes whose paths touch
// the region. gaps is the fraction of touching nodes with zero coverage,
// 1.0 when none touch.
func covgOverRegion(mlNodes []*KmerNode, region []Interval) (sumFwd, sumRev uint32, meanFwd, meanRev, gaps float64) {
	var n, zero int
	for _, kn := range mlNodes {
		touch := false
		for _, iv := range kn.Path {
			for _, riv := range region {
				if iv.Overlaps(riv) {
					touch = true
				}
			}
		}
		if !touch {
			continue
		}
		n++
		sumFwd += kn.CovgFwd
		sumRev += kn.CovgRev
		if kn.TotalCovg() == 0 {
			zero++
		}
	}
	if n == 0 {
		return 0, 0, 0, 0, 1.0
	}
	return sumFwd, sumRev, float64(sumFwd) / float64(n), float64(sumRev) / float64(n), float64(zero) / float64(n)
}

// addSampleCovgs fills the coverage FORMAT columns of every record of this
// locus for one sample, one entry per allele.
func (l *LocalPRG) addSampleCovgs(v *VCF, sample string, refPath []uint32, mlNodes []*KmerNode) {
	sampleIdx := v.GetSampleIndex(sample)
	bubbles := l.bubbles(refPath)
	for _, r := range v.RecordsOf(l.Name) {
		nAlleles := 1 + len(r.Alts)
		sumF := make([]uint32, nAlleles)
		sumR := make([]uint32, nAlleles)
		meanF := make([]uint32, nAlleles)
		meanR := make([]uint32, nAlleles)
		gaps := make([]float64, nAlleles)
		for i := range gaps {
			gaps[i] = 1.0
		}
		for _, b := range bubbles {
			if b.pos != r.Pos || b.ref() != r.Ref {
				continue
			}
			refRegion := make([]Interval, 0, len(b.refNodes))
			for _, id := range b.refNodes {
				refRegion = append(refRegion, l.Prg.Nodes[id].Pos)
			}
			sf, sr, mf, mr, g := covgOverRegion(mlNodes, refRegion)
			sumF[0], sumR[0], meanF[0], meanR[0], gaps[0] = sf, sr, uint32(mf), uint32(mr), g
			for ai, alt := range r.Alts {
				if alt != b.alt() {
					continue
				}
				altRegion := make([]Interval, 0, len(b.altNodes))
				for _, id := range b.altNodes {
					altRegion = append(altRegion, l.Prg.Nodes[id].Pos)
				}
				sf, sr, mf, mr, g := covgOverRegion(mlNodes, altRegion)
				sumF[ai+1], sumR[ai+1], meanF[ai+1], meanR[ai+1], gaps[ai+1] = sf, sr, uint32(mf), uint32(mr), g
			}
		}
		si := &r.Samples[sampleIdx]
		si.SetInts("SUM_FWD_COVG", sumF)
		si.SetInts("SUM_REV_COVG", sumR)
		si.SetInts("MEAN_FWD_COVG", meanF)
		si.SetInts("MEAN_REV_COVG", meanR)
		si.SetFloats("GAPS", gaps)
	}
}
