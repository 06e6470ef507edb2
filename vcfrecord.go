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
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// GenotypingModel selects the FORMAT vector and scoring function.
type GenotypingModel int

const (
	// GenotypeFromMaxLikelihood reports the coverage columns only.
	GenotypeFromMaxLikelihood GenotypingModel = iota
	// GenotypeFromCoverage adds LIKELIHOOD and GT_CONF.
	GenotypeFromCoverage
)

var formatMaxLikelihood = []string{
	"GT", "MEAN_FWD_COVG", "MEAN_REV_COVG", "MED_FWD_COVG", "MED_REV_COVG",
	"SUM_FWD_COVG", "SUM_REV_COVG", "GAPS",
}

var formatCoverage = append(append([]string{}, formatMaxLikelihood...),
	"LIKELIHOOD", "GT_CONF")

// FormatKeys returns the FORMAT column names of a genotyping model.
func FormatKeys(model GenotypingModel) []string {
	if model == GenotypeFromCoverage {
		return formatCoverage
	}
	return formatMaxLikelihood
}

// VCFRecord is one variant site across N samples. Pos is 0-based in
// memory, 1-based in text. Ref is never empty ("." denotes absent) and
// Alts never empty (may be ["."]); Samples always has one entry per VCF
// sample.
type VCFRecord struct {
	Chrom   string
	Pos     uint32
	ID      string
	Ref     string
	Alts    []string
	Qual    string
	Filter  string
	Info    string
	Samples []SampleInfo
}

// NewVCFRecord builds a record, inferring SVTYPE when info is "." and
// appending graphTypeInfo when given.
func NewVCFRecord(chrom string, pos uint32, ref, alt, info, graphTypeInfo string) *VCFRecord {
	r := &VCFRecord{
		Chrom:  chrom,
		Pos:    pos,
		ID:     ".",
		Ref:    ref,
		Qual:   ".",
		Filter: ".",
		Info:   info,
	}
	if alt == "" {
		alt = "."
	}
	r.Alts = []string{alt}
	if r.Ref == "" {
		r.Ref = "."
	}
	if r.Info == "." {
		r.Info = r.inferSVType()
	}
	if graphTypeInfo != "" {
		r.Info += ";" + graphTypeInfo
	}
	return r
}

func (r *VCFRecord) inferSVType() string {
	alt := ""
	if len(r.Alts) > 0 {
		alt = r.Alts[0]
	}
	switch {
	case r.Ref == "." && (alt == "" || alt == "."):
		return "."
	case r.Ref == "." || alt == "" || alt == ".":
		return "SVTYPE=INDEL"
	case len(r.Ref) == 1 && len(alt) == 1:
		return "SVTYPE=SNP"
	case len(alt) == len(r.Ref):
		return "SVTYPE=PH_SNPs"
	case len(r.Ref) < len(alt) && strings.HasPrefix(alt, r.Ref):
		return "SVTYPE=INDEL"
	case len(alt) < len(r.Ref) && strings.HasPrefix(r.Ref, alt):
		return "SVTYPE=INDEL"
	default:
		return "SVTYPE=COMPLEX"
	}
}

// Clear resets the record to the null record.
func (r *VCFRecord) Clear() {
	*r = VCFRecord{Chrom: ".", ID: ".", Ref: ".", Qual: ".", Filter: ".", Info: "."}
}

// IsNull reports whether the record equals the null record.
func (r *VCFRecord) IsNull() bool {
	return r.Chrom == "." && r.Pos == 0 && r.Ref == "." && len(r.Alts) == 0
}

// ContainsDotAllele reports whether ref or any alt is absent.
func (r *VCFRecord) ContainsDotAllele() bool {
	if r.Ref == "." || r.Ref == "" {
		return true
	}
	for _, a := range r.Alts {
		if a == "." || a == "" {
			return true
		}
	}
	return false
}

// LongestAlleleLen returns the longest allele length.
func (r *VCFRecord) LongestAlleleLen() uint32 {
	longest := len(r.Ref)
	for _, a := range r.Alts {
		if len(a) > longest {
			longest = len(a)
		}
	}
	return uint32(longest)
}

// HasSamePosition reports whether two records share chrom and pos.
func (r *VCFRecord) HasSamePosition(o *VCFRecord) bool {
	return r.Chrom == o.Chrom && r.Pos == o.Pos
}

// GraphTypeHasTooManyAlts reports the TOO_MANY_ALTS graph type.
func (r *VCFRecord) GraphTypeHasTooManyAlts() bool {
	return strings.Contains(r.Info, "GRAPHTYPE=TOO_MANY_ALTS")
}

// SVTypeIsSNP reports a SNP record.
func (r *VCFRecord) SVTypeIsSNP() bool {
	return strings.Contains(r.Info, "SVTYPE=SNP")
}

// Equal compares chrom, pos, ref, and alts as sets.
func (r *VCFRecord) Equal(o *VCFRecord) bool {
	if r.Chrom != o.Chrom || r.Pos != o.Pos || r.Ref != o.Ref || len(r.Alts) != len(o.Alts) {
		return false
	}
	for _, a := range r.Alts {
		found := false
		for _, b := range o.Alts {
			if a == b {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Less orders records by chrom, pos, ref, then alts.
func (r *VCFRecord) Less(o *VCFRecord) bool {
	if r.Chrom != o.Chrom {
		return r.Chrom < o.Chrom
	}
	if r.Pos != o.Pos {
		return r.Pos < o.Pos
	}
	if r.Ref != o.Ref {
		return r.Ref < o.Ref
	}
	for i := 0; i < len(r.Alts) && i < len(o.Alts); i++ {
		if r.Alts[i] != o.Alts[i] {
			return r.Alts[i] < o.Alts[i]
		}
	}
	return len(r.Alts) < len(o.Alts)
}

// Copy returns a deep copy.
func (r *VCFRecord) Copy() *VCFRecord {
	c := *r
	c.Alts = append([]string(nil), r.Alts...)
	c.Samples = make([]SampleInfo, len(r.Samples))
	for i, s := range r.Samples {
		c.Samples[i] = s.Copy()
	}
	return &c
}

// MergeRecordIntoThis folds a bi-allelic record at the same (chrom, pos,
// ref) into this one: its alt is appended and each sample's call remapped.
func (r *VCFRecord) MergeRecordIntoThis(o *VCFRecord) error {
	if len(o.Alts) != 1 {
		return errors.Wrapf(ErrInvariant, "merging record with %d alts", len(o.Alts))
	}
	if len(r.Samples) != len(o.Samples) {
		return errors.Wrapf(ErrInvariant, "merging records with %d and %d sample columns",
			len(r.Samples), len(o.Samples))
	}
	r.Alts = append(r.Alts, o.Alts[0])
	newAlt := uint32(len(r.Alts))
	for i := range r.Samples {
		r.Samples[i].mergeAllele(o.Samples[i], newAlt)
	}
	return nil
}

// Likelihood computes per-allele likelihoods for every sample.
func (r *VCFRecord) Likelihood(expDepth []uint32, errRate float64, minAlleleCovg uint32, minFrac float64) {
	n := 1 + len(r.Alts)
	for i := range r.Samples {
		depth := uint32(1)
		if len(expDepth) > 0 {
			if i < len(expDepth) {
				depth = expDepth[i]
			} else {
				depth = expDepth[len(expDepth)-1]
			}
		}
		r.Samples[i].Likelihood(n, depth, errRate, minAlleleCovg, minFrac)
	}
}

// Confidence computes GT_CONF for every sample.
func (r *VCFRecord) Confidence(minTotalCovg, minDiffCovg uint32) {
	n := 1 + len(r.Alts)
	for i := range r.Samples {
		r.Samples[i].Confidence(n, minTotalCovg, minDiffCovg)
	}
}

// Genotype re-calls every sample from its likelihoods.
func (r *VCFRecord) Genotype(confThreshold float64) {
	for i := range r.Samples {
		r.Samples[i].GenotypeFromLikelihood(confThreshold)
	}
}

func formatIntVals(vals []uint32) string {
	if len(vals) == 0 {
		return "."
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatUint(uint64(v), 10)
	}
	return strings.Join(parts, ",")
}

func formatFloatVals(vals []float64) string {
	if len(vals) == 0 {
		return "."
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// String renders the record as one VCF line under the given model, pos
// 1-based.
func (r *VCFRecord) String(model GenotypingModel) string {
	var b strings.Builder
	b.WriteString(r.Chrom)
	b.WriteByte('\t')
	b.WriteString(strconv.FormatUint(uint64(r.Pos)+1, 10))
	b.WriteByte('\t')
	b.WriteString(r.ID)
	b.WriteByte('\t')
	b.WriteString(r.Ref)
	b.WriteByte('\t')
	if len(r.Alts) == 0 {
		b.WriteByte('.')
	} else {
		b.WriteString(strings.Join(r.Alts, ","))
	}
	b.WriteByte('\t')
	b.WriteString(r.Qual)
	b.WriteByte('\t')
	b.WriteString(r.Filter)
	b.WriteByte('\t')
	b.WriteString(r.Info)
	b.WriteByte('\t')
	keys := FormatKeys(model)
	b.WriteString(strings.Join(keys, ":"))
	for _, s := range r.Samples {
		b.WriteByte('\t')
		cols := make([]string, len(keys))
		for i, key := range keys {
			if floatFormatKeys[key] {
				cols[i] = formatFloatVals(s.GetFloats(key))
			} else {
				cols[i] = formatIntVals(s.GetInts(key))
			}
		}
		b.WriteString(strings.Join(cols, ":"))
	}
	return b.String()
}

// ParseVCFRecord parses one VCF data line, pos 1-based in the text.
func ParseVCFRecord(line string) (*VCFRecord, error) {
	fields := strings.Split(strings.TrimRight(line, " \t\r\n"), "\t")
	if len(fields) < 8 {
		return nil, errors.Errorf("vcf line has %d fields, expected at least 8: %q", len(fields), line)
	}
	pos, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil || pos == 0 {
		return nil, errors.Errorf("bad vcf position %q", fields[1])
	}
	r := &VCFRecord{
		Chrom:  fields[0],
		Pos:    uint32(pos) - 1,
		ID:     fields[2],
		Ref:    fields[3],
		Alts:   strings.Split(fields[4], ","),
		Qual:   fields[5],
		Filter: fields[6],
		Info:   fields[7],
	}
	if len(fields) < 10 {
		return r, nil
	}
	keys := strings.Split(fields[8], ":")
	for _, col := range fields[9:] {
		var s SampleInfo
		vals := strings.Split(col, ":")
		for i, key := range keys {
			if i >= len(vals) || vals[i] == "." {
				continue
			}
			parts := strings.Split(vals[i], ",")
			if floatFormatKeys[key] {
				fs := make([]float64, 0, len(parts))
				for _, p := range parts {
					f, err := strconv.ParseFloat(p, 64)
					if err != nil {
						return nil, errors.Wrapf(err, "bad %s value %q", key, vals[i])
					}
					fs = append(fs, f)
				}
				s.SetFloats(key, fs)
			} else {
				us := make([]uint32, 0, len(parts))
				for _, p := range parts {
					u, err := strconv.ParseUint(p, 10, 32)
					if err != nil {
						return nil, errors.Wrapf(err, "bad %s value %q", key, vals[i])
					}
					us = append(us, uint32(u))
				}
				s.SetInts(key, us)
			}
		}
		r.Samples = append(r.Samples, s)
	}
	return r, nil
}
