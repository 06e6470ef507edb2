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
	"io"
	"sort"
	"strings"
	"time"

	"github.com/biogo/store/interval"
	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
)

// VCF owns variant records, the sample-name list, and a per-chrom interval
// tree over the records for overlap queries. Records are referenced by
// their index in Records; the trees hold indices, not pointers.
type VCF struct {
	Records []*VCFRecord
	Samples []string
	Model   GenotypingModel

	trees      map[string]*interval.IntTree
	treesDirty bool
}

// NewVCF returns an empty VCF.
func NewVCF() *VCF {
	return &VCF{trees: make(map[string]*interval.IntTree)}
}

// recordInterval is the tree element: a record index keyed by
// [pos, pos+len(ref)+1).
type recordInterval struct {
	id         uintptr
	start, end int
}

func (i recordInterval) Overlap(b interval.IntRange) bool {
	return i.start < b.End && b.Start < i.end
}
func (i recordInterval) ID() uintptr { return i.id }
func (i recordInterval) Range() interval.IntRange {
	return interval.IntRange{Start: i.start, End: i.end}
}

func (v *VCF) indexTrees() {
	if !v.treesDirty && v.trees != nil && len(v.trees) > 0 {
		return
	}
	v.trees = make(map[string]*interval.IntTree)
	for i, r := range v.Records {
		t, ok := v.trees[r.Chrom]
		if !ok {
			t = &interval.IntTree{}
			v.trees[r.Chrom] = t
		}
		e := recordInterval{
			id:    uintptr(i),
			start: int(r.Pos),
			end:   int(r.Pos) + len(r.Ref) + 1,
		}
		if err := t.Insert(e, true); err != nil {
			panic(err)
		}
	}
	for _, t := range v.trees {
		t.AdjustRanges()
	}
	v.treesDirty = false
}

// overlapping returns the records of chrom intersecting [from, to), in
// record order.
func (v *VCF) overlapping(chrom string, from, to int) []*VCFRecord {
	v.indexTrees()
	t, ok := v.trees[chrom]
	if !ok {
		return nil
	}
	got := t.Get(recordInterval{start: from, end: to})
	out := make([]*VCFRecord, 0, len(got))
	for _, g := range got {
		out = append(out, v.Records[int(g.(recordInterval).ID())])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// addRecordCore appends a record, padding its sample columns to the VCF's
// sample count.
func (v *VCF) addRecordCore(r *VCFRecord) {
	for len(r.Samples) < len(v.Samples) {
		r.Samples = append(r.Samples, SampleInfo{})
	}
	v.Records = append(v.Records, r)
	v.treesDirty = true
}

// findRecord returns the stored record equal to r, or nil.
func (v *VCF) findRecord(r *VCFRecord) *VCFRecord {
	for _, o := range v.Records {
		if o.Equal(r) {
			return o
		}
	}
	return nil
}

// GetSampleIndex returns the column of a sample, adding the column to
// every record when the sample is new.
func (v *VCF) GetSampleIndex(name string) int {
	for i, s := range v.Samples {
		if s == name {
			return i
		}
	}
	v.Samples = append(v.Samples, name)
	for _, r := range v.Records {
		r.Samples = append(r.Samples, SampleInfo{})
	}
	return len(v.Samples) - 1
}

// AddSamples registers sample names without touching any record content.
func (v *VCF) AddSamples(names []string) {
	for _, name := range names {
		v.GetSampleIndex(name)
	}
}

// AddRecordSimple appends a record built from its parts unless an equal
// one exists, and returns the stored record.
func (v *VCF) AddRecordSimple(chrom string, pos uint32, ref, alt, info, graphTypeInfo string) *VCFRecord {
	r := NewVCFRecord(chrom, pos, ref, alt, info, graphTypeInfo)
	if found := v.findRecord(r); found != nil {
		return found
	}
	v.addRecordCore(r)
	return r
}

// AddRecord merges a record into the VCF: an equal record receives the
// given per-sample columns at the positions dictated by sampleNames,
// otherwise the record is appended. The record's sample columns must match
// sampleNames.
func (v *VCF) AddRecord(r *VCFRecord, sampleNames []string) *VCFRecord {
	if len(sampleNames) > 0 && len(r.Samples) != len(sampleNames) {
		panic(errors.Wrapf(ErrInvariant, "record carries %d sample columns for %d names",
			len(r.Samples), len(sampleNames)))
	}
	target := v.findRecord(r)
	if target == nil {
		target = r.Copy()
		target.Samples = nil
		v.addRecordCore(target)
	}
	for i, name := range sampleNames {
		idx := v.GetSampleIndex(name)
		target.Samples[idx] = r.Samples[i].Copy()
	}
	return target
}

// AddSampleGT records a genotype call for one sample. A matching record
// gets GT=1; a record whose ref equals the called allele gets GT=0; with
// no record to hold it a TOO_MANY_ALTS record is appended with GT=1.
// GT=0 calls of other samples on overlapping records propagate onto the
// touched record.
func (v *VCF) AddSampleGT(name, chrom string, pos uint32, ref, alt string) {
	if ref == "" && alt == "" {
		return
	}
	sampleIdx := v.GetSampleIndex(name)

	probe := NewVCFRecord(chrom, pos, ref, alt, ".", "")
	var target *VCFRecord
	if found := v.findRecord(probe); found != nil {
		found.Samples[sampleIdx].SetGT(1)
		target = found
	} else {
		for _, r := range v.Records {
			if r.Chrom == chrom && r.Pos == pos && ref == alt && r.Ref == ref {
				r.Samples[sampleIdx].SetGT(0)
				target = r
				break
			}
		}
		if target == nil && ref != alt {
			target = v.AddRecordSimple(chrom, pos, ref, alt, "SVTYPE=COMPLEX", "GRAPHTYPE=TOO_MANY_ALTS")
			target.Samples[sampleIdx].SetGT(1)
		}
		if target == nil {
			return
		}
	}

	for _, r := range v.Records {
		if r.Chrom != chrom || r.Pos > pos || uint32(len(r.Ref))+r.Pos <= pos {
			continue
		}
		for j := range r.Samples {
			if gt := r.Samples[j].GT(); len(gt) == 1 && gt[0] == 0 {
				target.Samples[j].SetGT(0)
			}
		}
	}
}

// AddSampleRefAlleles marks GT=0 for one sample on every record fully
// inside [pos, posTo).
func (v *VCF) AddSampleRefAlleles(name, chrom string, pos, posTo uint32) {
	sampleIdx := v.GetSampleIndex(name)
	for _, r := range v.Records {
		if r.Chrom == chrom && pos <= r.Pos && r.Pos+uint32(len(r.Ref)) <= posTo {
			r.Samples[sampleIdx].SetGT(0)
		}
	}
}

// AppendVCF merges another VCF's samples and records into this one.
func (v *VCF) AppendVCF(other *VCF) {
	v.AddSamples(other.Samples)
	for _, r := range other.Records {
		v.AddRecord(r, other.Samples)
	}
}

// SortRecords orders the records by their total order.
func (v *VCF) SortRecords() {
	sort.SliceStable(v.Records, func(i, j int) bool { return v.Records[i].Less(v.Records[j]) })
	v.treesDirty = true
}

// Clean removes cleared records.
func (v *VCF) Clean() {
	out := v.Records[:0]
	for _, r := range v.Records {
		if !r.IsNull() {
			out = append(out, r)
		}
	}
	v.Records = out
	v.treesDirty = true
}

// RecordsOf returns the records of one chrom, in store order.
func (v *VCF) RecordsOf(chrom string) []*VCFRecord {
	var out []*VCFRecord
	for _, r := range v.Records {
		if r.Chrom == chrom {
			out = append(out, r)
		}
	}
	return out
}

// MergeMultiAllelic folds runs of bi-allelic records at the same
// (chrom, pos, ref) into multi-allelic ones. Records must be sorted.
// Alleles longer than maxAlleleLen stop the merge. A mergeable record with
// no sample columns while the VCF has samples is an invariant violation.
func (v *VCF) MergeMultiAllelic(maxAlleleLen uint32) (*VCF, error) {
	merged := NewVCF()
	merged.Model = v.Model
	merged.Samples = append([]string(nil), v.Samples...)
	if len(v.Records) < 2 {
		for _, r := range v.Records {
			merged.addRecordCore(r.Copy())
		}
		return merged, nil
	}

	cur := v.Records[0].Copy()
	for _, next := range v.Records[1:] {
		mergeable := !next.Equal(cur) &&
			next.HasSamePosition(cur) &&
			cur.Ref != "." && cur.Ref != "" && next.Ref == cur.Ref &&
			len(next.Alts) == 1 &&
			cur.LongestAlleleLen() <= maxAlleleLen &&
			next.LongestAlleleLen() <= maxAlleleLen
		if mergeable {
			if len(v.Samples) > 0 && len(next.Samples) == 0 {
				return nil, errors.Wrapf(ErrInvariant,
					"record %s:%d has no sample columns", next.Chrom, next.Pos+1)
			}
			if err := cur.MergeRecordIntoThis(next); err != nil {
				return nil, err
			}
			continue
		}
		merged.addRecordCore(cur)
		cur = next.Copy()
	}
	merged.addRecordCore(cur)
	merged.SortRecords()
	return merged, nil
}

// CorrectDotAlleles rewrites dot alleles of one chrom into explicit bases
// using the reference sequence: the base before the site is prepended, or
// the base after appended when there is no prior base. Must run before any
// merge and never after coverage has been added.
func (v *VCF) CorrectDotAlleles(vcfRef, chrom string) error {
	for _, r := range v.Records {
		if r.Chrom != chrom || !r.ContainsDotAllele() {
			continue
		}
		if int(r.Pos) > len(vcfRef) {
			return errors.Wrapf(ErrInvariant, "reference of length %d does not cover record at pos %d",
				len(vcfRef), r.Pos+1)
		}
		switch {
		case r.Pos > 0:
			prev := string(vcfRef[r.Pos-1])
			if r.Ref == "" || r.Ref == "." {
				r.Ref = prev
			} else {
				r.Ref = prev + r.Ref
			}
			r.Pos--
			for i, a := range r.Alts {
				if a == "" || a == "." {
					r.Alts[i] = prev
				} else {
					r.Alts[i] = prev + a
				}
			}
		case int(r.Pos)+len(r.Ref)+1 < len(vcfRef):
			next := vcfRef[int(r.Pos)+len(r.Ref)]
			if r.Ref == "" || r.Ref == "." {
				next = vcfRef[r.Pos]
				r.Ref = string(next)
			} else {
				r.Ref += string(next)
			}
			for i, a := range r.Alts {
				if a == "" || a == "." {
					r.Alts[i] = string(next)
				} else {
					r.Alts[i] = a + string(next)
				}
			}
		default:
			r.Clear()
		}
	}
	v.Clean()
	v.SortRecords()
	return nil
}

// MakeGtCompatible resolves conflicting genotype calls between overlapping
// records: the call with the better likelihood survives, the loser falls
// back to the reference allele when the winner called it, or to a no-call.
// When the likelihoods cannot be compared, both sample entries are wiped
// entirely (every field, not just GT).
func (v *VCF) MakeGtCompatible() {
	v.indexTrees()
	for _, r := range v.Records {
		for s := range v.Samples {
			for _, o := range v.overlapping(r.Chrom, int(r.Pos), int(r.Pos)+len(r.Ref)+1) {
				if o == r {
					continue
				}
				if !(r.Pos <= o.Pos && o.Pos <= r.Pos+uint32(len(r.Ref))) {
					continue
				}
				rGT := r.Samples[s].GT()
				oGT := o.Samples[s].GT()
				if len(rGT) == 0 || len(oGT) == 0 {
					continue
				}
				if rGT[0] == 0 && oGT[0] == 0 {
					continue
				}
				rLik := r.Samples[s].GetFloats("LIKELIHOOD")
				oLik := o.Samples[s].GetFloats("LIKELIHOOD")
				if int(rGT[0]) < len(rLik) && int(oGT[0]) < len(oLik) {
					if rLik[rGT[0]] > oLik[oGT[0]] {
						if rGT[0] == 0 {
							o.Samples[s].SetGT(0)
						} else {
							o.Samples[s].ClearGT()
						}
					} else {
						if oGT[0] == 0 {
							r.Samples[s].SetGT(0)
						} else {
							r.Samples[s].ClearGT()
						}
					}
				} else {
					r.Samples[s].Clear()
					o.Samples[s].Clear()
				}
			}
		}
	}
}

// Genotype re-calls every record from its coverages: likelihoods,
// confidence, then the call, and finally a compatibility pass. snpsOnly
// restricts the re-call to single-base records.
func (v *VCF) Genotype(expDepth []uint32, errRate float64, confThreshold float64,
	minAlleleCovg, minTotalCovg, minDiffCovg uint32, minFrac float64, snpsOnly bool) {
	for _, r := range v.Records {
		if snpsOnly && !(len(r.Ref) == 1 && len(r.Alts) > 0 && len(r.Alts[0]) == 1) {
			continue
		}
		r.Likelihood(expDepth, errRate, minAlleleCovg, minFrac)
		r.Confidence(minTotalCovg, minDiffCovg)
		r.Genotype(confThreshold)
	}
	v.Model = GenotypeFromCoverage
	v.MakeGtCompatible()
}

// Header renders the VCF 4.3 header for the current records and samples.
func (v *VCF) Header() string {
	chroms := make([]string, 0, 8)
	seen := make(map[string]bool)
	for _, r := range v.Records {
		if !seen[r.Chrom] {
			seen[r.Chrom] = true
			chroms = append(chroms, r.Chrom)
		}
	}
	sort.Strings(chroms)

	var b strings.Builder
	b.WriteString("##fileformat=VCFv4.3\n")
	b.WriteString("##fileDate=" + time.Now().Format("2006-01-02") + "\n")
	b.WriteString("##ALT=<ID=SNP,Description=\"SNP\">\n")
	b.WriteString("##ALT=<ID=PH_SNPs,Description=\"Phased SNPs\">\n")
	b.WriteString("##ALT=<ID=INDEL,Description=\"Insertion-deletion\">\n")
	b.WriteString("##ALT=<ID=COMPLEX,Description=\"Complex variant, collection of SNPs and indels\">\n")
	b.WriteString("##INFO=<ID=SVTYPE,Number=1,Type=String,Description=\"Type of variant\">\n")
	b.WriteString("##ALT=<ID=SIMPLE,Description=\"Graph bubble is simple\">\n")
	b.WriteString("##ALT=<ID=NESTED,Description=\"Variation site was a nested feature in the graph\">\n")
	b.WriteString("##ALT=<ID=TOO_MANY_ALTS,Description=\"Variation site was a multinested feature with too many alts to include all in the VCF\">\n")
	b.WriteString("##INFO=<ID=GRAPHTYPE,Number=1,Type=String,Description=\"Type of graph feature\">\n")
	b.WriteString("##FORMAT=<ID=GT,Number=1,Type=String,Description=\"Genotype\">\n")
	b.WriteString("##FORMAT=<ID=MEAN_FWD_COVG,Number=A,Type=Integer,Description=\"Mean forward coverage\">\n")
	b.WriteString("##FORMAT=<ID=MEAN_REV_COVG,Number=A,Type=Integer,Description=\"Mean reverse coverage\">\n")
	b.WriteString("##FORMAT=<ID=MED_FWD_COVG,Number=A,Type=Integer,Description=\"Med forward coverage\">\n")
	b.WriteString("##FORMAT=<ID=MED_REV_COVG,Number=A,Type=Integer,Description=\"Med reverse coverage\">\n")
	b.WriteString("##FORMAT=<ID=SUM_FWD_COVG,Number=A,Type=Integer,Description=\"Sum forward coverage\">\n")
	b.WriteString("##FORMAT=<ID=SUM_REV_COVG,Number=A,Type=Integer,Description=\"Sum reverse coverage\">\n")
	b.WriteString("##FORMAT=<ID=GAPS,Number=A,Type=Float,Description=\"Fraction of kmer nodes with zero coverage\">\n")
	b.WriteString("##FORMAT=<ID=LIKELIHOOD,Number=A,Type=Float,Description=\"Likelihood\">\n")
	b.WriteString("##FORMAT=<ID=GT_CONF,Number=1,Type=Float,Description=\"Genotype confidence\">\n")
	for _, chrom := range chroms {
		b.WriteString("##contig=<ID=" + chrom + ">\n")
	}
	b.WriteString("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT")
	for _, s := range v.Samples {
		b.WriteByte('\t')
		b.WriteString(s)
	}
	b.WriteByte('\n')
	return b.String()
}

// WriteTo renders the whole VCF. Records are sorted first.
func (v *VCF) WriteTo(w io.Writer) error {
	v.SortRecords()
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(v.Header()); err != nil {
		return err
	}
	for _, r := range v.Records {
		if _, err := bw.WriteString(r.String(v.Model)); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Save writes the VCF to a file, gzipped when the name ends in .gz.
func (v *VCF) Save(file string) error {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		return errors.Wrap(err, file)
	}
	defer outfh.Close()
	return v.WriteTo(outfh)
}

// ReadFrom parses VCF text into this VCF, skipping blanks and meta lines
// and extracting the sample list from the #CHROM line.
func (v *VCF) ReadFrom(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	var sampleNames []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "##") {
			continue
		}
		if strings.HasPrefix(line, "#") {
			fields := strings.Split(line, "\t")
			if len(fields) > 9 {
				sampleNames = fields[9:]
				v.AddSamples(sampleNames)
			}
			continue
		}
		rec, err := ParseVCFRecord(line)
		if err != nil {
			return err
		}
		if len(rec.Samples) > len(sampleNames) {
			rec.Samples = rec.Samples[:len(sampleNames)]
		}
		for len(rec.Samples) < len(sampleNames) {
			rec.Samples = append(rec.Samples, SampleInfo{})
		}
		v.AddRecord(rec, sampleNames)
	}
	return scanner.Err()
}

// Load reads a VCF file, gzipped or plain.
func (v *VCF) Load(file string) error {
	infh, err := xopen.Ropen(file)
	if err != nil {
		return errors.Wrap(err, file)
	}
	defer infh.Close()
	return v.ReadFrom(infh)
}

// Equal reports whether two VCFs hold the same record set, order
// insensitive.
func (v *VCF) Equal(o *VCF) bool {
	if len(v.Records) != len(o.Records) {
		return false
	}
	for _, r := range o.Records {
		if v.findRecord(r) == nil {
			return false
		}
	}
	return true
}

// Concatenate appends the data lines of several VCF files under the first
// file's header.
func Concatenate(paths []string, sink string) error {
	outfh, err := xopen.Wopen(sink)
	if err != nil {
		return errors.Wrap(err, sink)
	}
	defer outfh.Close()

	headerDone := false
	for _, path := range paths {
		infh, err := xopen.Ropen(path)
		if err != nil {
			return errors.Wrap(err, path)
		}
		scanner := bufio.NewScanner(infh)
		scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "#") && headerDone {
				continue
			}
			if _, err := outfh.WriteString(line + "\n"); err != nil {
				infh.Close()
				return errors.Wrap(err, sink)
			}
		}
		if err := scanner.Err(); err != nil {
			infh.Close()
			return errors.Wrap(err, path)
		}
		infh.Close()
		headerDone = true
	}
	return nil
}
