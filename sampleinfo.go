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
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// floatFormatKeys are the FORMAT fields stored as floats.
var floatFormatKeys = map[string]bool{
	"LIKELIHOOD": true,
	"GT_CONF":    true,
	"GAPS":       true,
}

// SampleInfo is the per-sample FORMAT store of one record: integer fields
// (GT, coverages) and float fields (LIKELIHOOD, GT_CONF, GAPS). A missing
// key means an empty vector; the genotype vector holds at most one value
// (haploid).
type SampleInfo struct {
	Ints   map[string][]uint32
	Floats map[string][]float64
}

// GetInts returns the values of an integer field, nil when absent.
func (s *SampleInfo) GetInts(key string) []uint32 {
	return s.Ints[key]
}

// SetInts sets an integer field.
func (s *SampleInfo) SetInts(key string, vals []uint32) {
	if s.Ints == nil {
		s.Ints = make(map[string][]uint32)
	}
	s.Ints[key] = vals
}

// GetFloats returns the values of a float field, nil when absent.
func (s *SampleInfo) GetFloats(key string) []float64 {
	return s.Floats[key]
}

// SetFloats sets a float field.
func (s *SampleInfo) SetFloats(key string, vals []float64) {
	if s.Floats == nil {
		s.Floats = make(map[string][]float64)
	}
	s.Floats[key] = vals
}

// GT returns the genotype vector.
func (s *SampleInfo) GT() []uint32 {
	return s.Ints["GT"]
}

// SetGT sets the haploid genotype call.
func (s *SampleInfo) SetGT(allele uint32) {
	s.SetInts("GT", []uint32{allele})
}

// ClearGT empties the genotype call without removing the column.
func (s *SampleInfo) ClearGT() {
	s.SetInts("GT", []uint32{})
}

// Clear wipes every field.
func (s *SampleInfo) Clear() {
	s.Ints = nil
	s.Floats = nil
}

// IsEmpty reports whether no field holds a value.
func (s *SampleInfo) IsEmpty() bool {
	for _, v := range s.Ints {
		if len(v) > 0 {
			return false
		}
	}
	for _, v := range s.Floats {
		if len(v) > 0 {
			return false
		}
	}
	return true
}

// Copy returns a deep copy.
func (s SampleInfo) Copy() SampleInfo {
	var c SampleInfo
	for k, v := range s.Ints {
		c.SetInts(k, append([]uint32(nil), v...))
	}
	for k, v := range s.Floats {
		c.SetFloats(k, append([]float64(nil), v...))
	}
	return c
}

// alleleCovg returns per-allele total coverage from the mean coverage
// columns, zero-filling missing entries.
func (s *SampleInfo) alleleCovg(nAlleles int) []uint32 {
	fwd := s.GetInts("MEAN_FWD_COVG")
	rev := s.GetInts("MEAN_REV_COVG")
	covg := make([]uint32, nAlleles)
	for a := 0; a < nAlleles; a++ {
		if a < len(fwd) {
			covg[a] += fwd[a]
		}
		if a < len(rev) {
			covg[a] += rev[a]
		}
	}
	return covg
}

// Likelihood scores each allele under a Poisson coverage model at the
// expected depth: reads on the allele follow Poisson(depth), reads on the
// other alleles are errors, and gap fraction discounts the allele. Alleles
// below the coverage gates count as uncovered.
func (s *SampleInfo) Likelihood(nAlleles int, expDepth uint32, errRate float64, minAlleleCovg uint32, minFrac float64) {
	covg := s.alleleCovg(nAlleles)
	gaps := s.GetFloats("GAPS")

	var total uint32
	for _, c := range covg {
		total += c
	}
	lambda := math.Max(float64(expDepth), 0.1)
	pois := distuv.Poisson{Lambda: lambda}
	if errRate <= 0 {
		errRate = 1e-3
	}

	lik := make([]float64, nAlleles)
	for a := 0; a < nAlleles; a++ {
		c := covg[a]
		if c < minAlleleCovg || (total > 0 && float64(c)/float64(total) < minFrac) {
			c = 0
		}
		lik[a] = pois.LogProb(float64(c)) + float64(total-c)*math.Log(errRate)
		if a < len(gaps) {
			lik[a] -= gaps[a] * lambda / 2
		}
	}
	s.SetFloats("LIKELIHOOD", lik)
}

// Confidence sets GT_CONF to the difference between the two best
// likelihoods. Sites below the total or between-allele coverage gates get
// zero confidence.
func (s *SampleInfo) Confidence(nAlleles int, minTotalCovg, minDiffCovg uint32) {
	lik := s.GetFloats("LIKELIHOOD")
	if len(lik) < 2 {
		s.SetFloats("GT_CONF", []float64{0})
		return
	}
	best, second := math.Inf(-1), math.Inf(-1)
	for _, l := range lik {
		if l > best {
			second = best
			best = l
		} else if l > second {
			second = l
		}
	}

	covg := s.alleleCovg(nAlleles)
	var total, c1, c2 uint32
	for _, c := range covg {
		total += c
		if c >= c1 {
			c2 = c1
			c1 = c
		} else if c > c2 {
			c2 = c
		}
	}
	if total < minTotalCovg || c1-c2 < minDiffCovg {
		s.SetFloats("GT_CONF", []float64{0})
		return
	}
	s.SetFloats("GT_CONF", []float64{best - second})
}

// GenotypeFromLikelihood calls the best-likelihood allele when its
// confidence clears the threshold, and clears the call otherwise.
func (s *SampleInfo) GenotypeFromLikelihood(confThreshold float64) {
	lik := s.GetFloats("LIKELIHOOD")
	conf := s.GetFloats("GT_CONF")
	if len(lik) == 0 || len(conf) == 0 {
		return
	}
	if conf[0] <= confThreshold {
		s.ClearGT()
		return
	}
	best := 0
	for i, l := range lik {
		if l > lik[best] {
			best = i
		}
	}
	s.SetGT(uint32(best))
}

// mergeAllele folds the alt-allele column of another bi-allelic sample
// info into this one as allele newAlt.
func (s *SampleInfo) mergeAllele(other SampleInfo, newAlt uint32) {
	if gt := other.GT(); len(gt) == 1 {
		switch gt[0] {
		case 1:
			s.SetGT(newAlt)
		case 0:
			if len(s.GT()) == 0 {
				s.SetGT(0)
			}
		}
	}
	for key, vals := range other.Ints {
		if key == "GT" {
			continue
		}
		cur := s.GetInts(key)
		if len(cur) == 0 && len(vals) > 0 {
			cur = []uint32{vals[0]}
		}
		var alt uint32
		if len(vals) > 1 {
			alt = vals[1]
		}
		s.SetInts(key, append(cur, alt))
	}
	for key, vals := range other.Floats {
		cur := s.GetFloats(key)
		if len(cur) == 0 && len(vals) > 0 {
			cur = []float64{vals[0]}
		}
		var alt float64
		if len(vals) > 1 {
			alt = vals[1]
		}
		s.SetFloats(key, append(cur, alt))
	}
}
