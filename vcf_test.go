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
	goerrors "errors"
	"path/filepath"
	"testing"
)

// checkRectangular asserts the sample-count invariant after mutations.
func checkRectangular(t *testing.T, v *VCF) {
	t.Helper()
	for _, r := range v.Records {
		if len(r.Samples) != len(v.Samples) {
			t.Fatalf("record %s:%d has %d sample columns, VCF has %d samples",
				r.Chrom, r.Pos+1, len(r.Samples), len(v.Samples))
		}
	}
}

func TestGetSampleIndexExtendsRecords(t *testing.T) {
	v := NewVCF()
	v.AddRecordSimple("chr1", 10, "A", "C", ".", "")
	if i := v.GetSampleIndex("s1"); i != 0 {
		t.Errorf("got %d", i)
	}
	checkRectangular(t, v)
	if i := v.GetSampleIndex("s2"); i != 1 {
		t.Errorf("got %d", i)
	}
	if i := v.GetSampleIndex("s1"); i != 0 {
		t.Errorf("lookup of existing sample: got %d", i)
	}
	checkRectangular(t, v)
}

func TestAddRecordMergesSampleColumns(t *testing.T) {
	v := NewVCF()
	v.GetSampleIndex("s1")
	v.AddRecordSimple("chr1", 10, "A", "C", ".", "")

	r := NewVCFRecord("chr1", 10, "A", "C", ".", "")
	var s SampleInfo
	s.SetGT(1)
	r.Samples = []SampleInfo{s}
	got := v.AddRecord(r, []string{"s2"})

	if len(v.Records) != 1 {
		t.Fatalf("got %d records", len(v.Records))
	}
	checkRectangular(t, v)
	if gt := got.Samples[1].GT(); len(gt) != 1 || gt[0] != 1 {
		t.Errorf("got GT %v for s2", gt)
	}
}

// Two bi-allelic records at the same site merge into one
// multi-allelic record with the sample's call remapped.
func TestMergeMultiAllelic(t *testing.T) {
	v := NewVCF()
	v.GetSampleIndex("s1")
	a := v.AddRecordSimple("chr1", 100, "A", "C", ".", "")
	b := v.AddRecordSimple("chr1", 100, "A", "G", ".", "")
	a.Samples[0].SetGT(0)
	b.Samples[0].SetGT(1)
	v.SortRecords()

	merged, err := v.MergeMultiAllelic(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged.Records) != 1 {
		t.Fatalf("got %d records", len(merged.Records))
	}
	r := merged.Records[0]
	if r.Ref != "A" || len(r.Alts) != 2 || r.Alts[0] != "C" || r.Alts[1] != "G" {
		t.Fatalf("got %s %v", r.Ref, r.Alts)
	}
	if gt := r.Samples[0].GT(); len(gt) != 1 || gt[0] != 2 {
		t.Errorf("got GT %v, want [2]", gt)
	}
	checkRectangular(t, merged)
	if len(merged.Records) > len(v.Records) {
		t.Error("merge may not grow the VCF")
	}
}

func TestMergeMultiAllelicRespectsAlleleLength(t *testing.T) {
	v := NewVCF()
	v.AddRecordSimple("chr1", 100, "A", "CCCCCCCCCCCC", ".", "")
	v.AddRecordSimple("chr1", 100, "A", "G", ".", "")
	v.SortRecords()
	merged, err := v.MergeMultiAllelic(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(merged.Records) != 2 {
		t.Errorf("long allele should not merge, got %d records", len(merged.Records))
	}
}

func TestMergeMultiAllelicEmptySamples(t *testing.T) {
	v := NewVCF()
	v.GetSampleIndex("s1")
	v.AddRecordSimple("chr1", 100, "A", "C", ".", "")
	b := v.AddRecordSimple("chr1", 100, "A", "G", ".", "")
	b.Samples = nil // break the invariant
	v.SortRecords()
	if _, err := v.MergeMultiAllelic(10); !goerrors.Is(err, ErrInvariant) {
		t.Errorf("expected ErrInvariant, got %v", err)
	}
}

// A call with no matching record appends a TOO_MANY_ALTS record.
func TestAddSampleGTComplex(t *testing.T) {
	v := NewVCF()
	v.AddSampleGT("s", "chr1", 50, "", "T")
	if len(v.Records) != 1 {
		t.Fatalf("got %d records", len(v.Records))
	}
	r := v.Records[0]
	if !r.GraphTypeHasTooManyAlts() {
		t.Errorf("got info %q", r.Info)
	}
	if gt := r.Samples[0].GT(); len(gt) != 1 || gt[0] != 1 {
		t.Errorf("got GT %v", gt)
	}
	checkRectangular(t, v)
}

func TestAddSampleGTMatchingAndRef(t *testing.T) {
	v := NewVCF()
	v.AddRecordSimple("chr1", 50, "A", "T", ".", "")
	v.AddSampleGT("s1", "chr1", 50, "A", "T")
	if gt := v.Records[0].Samples[0].GT(); len(gt) != 1 || gt[0] != 1 {
		t.Errorf("got GT %v", gt)
	}
	v.AddSampleGT("s2", "chr1", 50, "A", "A")
	if gt := v.Records[0].Samples[1].GT(); len(gt) != 1 || gt[0] != 0 {
		t.Errorf("got GT %v", gt)
	}
	checkRectangular(t, v)
}

func TestAddSampleGTPropagatesRef(t *testing.T) {
	v := NewVCF()
	v.AddRecordSimple("chr1", 50, "AAA", "T", ".", "")
	v.AddSampleGT("s1", "chr1", 50, "AAA", "AAA") // s1 is ref here
	// a new call overlapping pos 51 picks up s1's ref call
	v.AddSampleGT("s2", "chr1", 51, "A", "G")
	var complexRec *VCFRecord
	for _, r := range v.Records {
		if r.Pos == 51 {
			complexRec = r
		}
	}
	if complexRec == nil {
		t.Fatal("no record appended at pos 51")
	}
	s1 := v.GetSampleIndex("s1")
	if gt := complexRec.Samples[s1].GT(); len(gt) != 1 || gt[0] != 0 {
		t.Errorf("s1's ref call was not propagated: %v", gt)
	}
	checkRectangular(t, v)
}

// CorrectDotAlleles prepends the base before the site.
func TestCorrectDotAlleles(t *testing.T) {
	v := NewVCF()
	r := v.AddRecordSimple("chr1", 3, ".", "T", ".", "")
	if err := v.CorrectDotAlleles("NNNACGTNNN", "chr1"); err != nil {
		t.Fatal(err)
	}
	if r.Pos != 2 || r.Ref != "N" || r.Alts[0] != "NT" {
		t.Errorf("got pos=%d ref=%q alts=%v", r.Pos, r.Ref, r.Alts)
	}
	for _, rec := range v.Records {
		if rec.ContainsDotAllele() {
			t.Errorf("dot allele survived: %s", rec.String(GenotypeFromMaxLikelihood))
		}
	}
}

func TestCorrectDotAllelesAtStart(t *testing.T) {
	v := NewVCF()
	r := v.AddRecordSimple("chr1", 0, ".", "T", ".", "")
	if err := v.CorrectDotAlleles("ACGTACGT", "chr1"); err != nil {
		t.Fatal(err)
	}
	if r.Pos != 0 || r.Ref != "A" || r.Alts[0] != "TA" {
		t.Errorf("got pos=%d ref=%q alts=%v", r.Pos, r.Ref, r.Alts)
	}
}

// The higher-likelihood call wins; the loser becomes a no-call
// because the winner is non-ref.
func TestMakeGtCompatible(t *testing.T) {
	v := NewVCF()
	v.GetSampleIndex("s1")
	r1 := v.AddRecordSimple("chr1", 10, "AAA", "CCC", ".", "")
	r2 := v.AddRecordSimple("chr1", 11, "A", "G", ".", "")
	r1.Samples[0].SetGT(1)
	r1.Samples[0].SetFloats("LIKELIHOOD", []float64{-5, -1})
	r2.Samples[0].SetGT(1)
	r2.Samples[0].SetFloats("LIKELIHOOD", []float64{-2, -3})

	v.MakeGtCompatible()

	if gt := r1.Samples[0].GT(); len(gt) != 1 || gt[0] != 1 {
		t.Errorf("r1 should keep its call, got %v", gt)
	}
	if gt := r2.Samples[0].GT(); len(gt) != 0 {
		t.Errorf("r2 should become a no-call, got %v", gt)
	}
}

func TestMakeGtCompatibleRefWinner(t *testing.T) {
	v := NewVCF()
	v.GetSampleIndex("s1")
	r1 := v.AddRecordSimple("chr1", 10, "AAA", "CCC", ".", "")
	r2 := v.AddRecordSimple("chr1", 11, "A", "G", ".", "")
	r1.Samples[0].SetGT(0)
	r1.Samples[0].SetFloats("LIKELIHOOD", []float64{-1, -5})
	r2.Samples[0].SetGT(1)
	r2.Samples[0].SetFloats("LIKELIHOOD", []float64{-3, -2})

	v.MakeGtCompatible()

	if gt := r2.Samples[0].GT(); len(gt) != 1 || gt[0] != 0 {
		t.Errorf("loser of a ref winner should hold GT=0, got %v", gt)
	}
}

func TestMakeGtCompatibleMissingLikelihoods(t *testing.T) {
	v := NewVCF()
	v.GetSampleIndex("s1")
	r1 := v.AddRecordSimple("chr1", 10, "AAA", "CCC", ".", "")
	r2 := v.AddRecordSimple("chr1", 11, "A", "G", ".", "")
	r1.Samples[0].SetGT(1)
	r2.Samples[0].SetGT(1)

	v.MakeGtCompatible()

	if !r1.Samples[0].IsEmpty() || !r2.Samples[0].IsEmpty() {
		t.Error("both samples should be cleared when likelihoods are missing")
	}
}

func TestAddSampleRefAlleles(t *testing.T) {
	v := NewVCF()
	v.AddRecordSimple("chr1", 10, "AA", "C", ".", "")
	v.AddRecordSimple("chr1", 40, "A", "G", ".", "")
	v.AddSampleRefAlleles("s1", "chr1", 5, 20)
	if gt := v.Records[0].Samples[0].GT(); len(gt) != 1 || gt[0] != 0 {
		t.Errorf("got GT %v for covered record", gt)
	}
	if gt := v.Records[1].Samples[0].GT(); len(gt) != 0 {
		t.Errorf("got GT %v for record outside the range", gt)
	}
	checkRectangular(t, v)
}

func TestAppendVCF(t *testing.T) {
	a := NewVCF()
	a.GetSampleIndex("s1")
	ra := a.AddRecordSimple("chr1", 10, "A", "C", ".", "")
	ra.Samples[0].SetGT(1)

	b := NewVCF()
	b.GetSampleIndex("s2")
	rb := b.AddRecordSimple("chr1", 10, "A", "C", ".", "")
	rb.Samples[0].SetGT(0)
	b.AddRecordSimple("chr2", 3, "T", "G", ".", "")

	a.AppendVCF(b)
	if len(a.Records) != 2 || len(a.Samples) != 2 {
		t.Fatalf("got %d records, %d samples", len(a.Records), len(a.Samples))
	}
	checkRectangular(t, a)
	shared := a.Records[0]
	if gt := shared.Samples[0].GT(); len(gt) != 1 || gt[0] != 1 {
		t.Errorf("s1's call lost: %v", gt)
	}
	if gt := shared.Samples[1].GT(); len(gt) != 1 || gt[0] != 0 {
		t.Errorf("s2's call not merged: %v", gt)
	}
}

func TestVCFSaveLoadRoundTrip(t *testing.T) {
	v := NewVCF()
	v.GetSampleIndex("s1")
	r := v.AddRecordSimple("chr1", 10, "A", "C", ".", "GRAPHTYPE=SIMPLE")
	r.Samples[0].SetGT(1)
	v.AddRecordSimple("chr2", 5, "G", "GT", ".", "")

	file := filepath.Join(t.TempDir(), "out.vcf")
	if err := v.Save(file); err != nil {
		t.Fatal(err)
	}

	loaded := NewVCF()
	if err := loaded.Load(file); err != nil {
		t.Fatal(err)
	}
	if !v.Equal(loaded) {
		t.Error("VCF differs after round trip")
	}
	if len(loaded.Samples) != 1 || loaded.Samples[0] != "s1" {
		t.Errorf("got samples %v", loaded.Samples)
	}
	got := loaded.Records[0]
	if loaded.Records[1].Less(got) {
		t.Error("loaded records should be in sorted order")
	}
	checkRectangular(t, loaded)
}

func TestSaveSortsRecords(t *testing.T) {
	v := NewVCF()
	v.AddRecordSimple("chr1", 20, "A", "C", ".", "")
	v.AddRecordSimple("chr1", 10, "A", "C", ".", "")
	file := filepath.Join(t.TempDir(), "out.vcf")
	if err := v.Save(file); err != nil {
		t.Fatal(err)
	}
	if v.Records[0].Pos != 10 {
		t.Error("save should sort records first")
	}
}

func TestGenotypeSnpsOnly(t *testing.T) {
	v := NewVCF()
	v.GetSampleIndex("s1")
	snp := v.AddRecordSimple("chr1", 10, "A", "C", ".", "")
	indel := v.AddRecordSimple("chr1", 30, "A", "ATTT", ".", "")
	for _, r := range []*VCFRecord{snp, indel} {
		r.Samples[0].SetInts("MEAN_FWD_COVG", []uint32{0, 5})
		r.Samples[0].SetInts("MEAN_REV_COVG", []uint32{0, 5})
	}

	v.Genotype([]uint32{10}, 0.01, 1, 0, 0, 0, 0, true)

	if v.Model != GenotypeFromCoverage {
		t.Error("genotyping should switch the model")
	}
	if lik := snp.Samples[0].GetFloats("LIKELIHOOD"); len(lik) == 0 {
		t.Error("snp should be genotyped")
	}
	if lik := indel.Samples[0].GetFloats("LIKELIHOOD"); len(lik) != 0 {
		t.Error("indel should be skipped with snps_only")
	}
	if gt := snp.Samples[0].GT(); len(gt) != 1 || gt[0] != 1 {
		t.Errorf("got GT %v", gt)
	}
}
