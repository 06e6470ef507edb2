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

func covgSample(fwd, rev []uint32) SampleInfo {
	var s SampleInfo
	s.SetInts("MEAN_FWD_COVG", fwd)
	s.SetInts("MEAN_REV_COVG", rev)
	return s
}

func TestLikelihoodPrefersCoveredAllele(t *testing.T) {
	s := covgSample([]uint32{0, 5}, []uint32{0, 5})
	s.Likelihood(2, 10, 0.01, 0, 0)
	lik := s.GetFloats("LIKELIHOOD")
	if len(lik) != 2 {
		t.Fatalf("got %d likelihoods", len(lik))
	}
	if lik[1] <= lik[0] {
		t.Errorf("covered allele should win: %v", lik)
	}
}

func TestLikelihoodCoverageGates(t *testing.T) {
	// allele 1 has coverage below the per-allele minimum
	s := covgSample([]uint32{10, 1}, []uint32{10, 1})
	s.Likelihood(2, 20, 0.01, 5, 0)
	gated := s.GetFloats("LIKELIHOOD")

	s2 := covgSample([]uint32{10, 1}, []uint32{10, 1})
	s2.Likelihood(2, 20, 0.01, 0, 0)
	open := s2.GetFloats("LIKELIHOOD")

	if gated[1] >= open[1] {
		t.Errorf("gating should not raise the likelihood: %f >= %f", gated[1], open[1])
	}
}

func TestConfidenceAndGenotype(t *testing.T) {
	s := covgSample([]uint32{0, 5}, []uint32{0, 5})
	s.Likelihood(2, 10, 0.01, 0, 0)
	s.Confidence(2, 0, 0)
	conf := s.GetFloats("GT_CONF")
	if len(conf) != 1 || conf[0] <= 0 {
		t.Fatalf("got GT_CONF %v", conf)
	}

	s.GenotypeFromLikelihood(1)
	gt := s.GT()
	if len(gt) != 1 || gt[0] != 1 {
		t.Errorf("got GT %v, want [1]", gt)
	}

	// an impossible threshold clears the call
	s.GenotypeFromLikelihood(conf[0] + 1000)
	if len(s.GT()) != 0 {
		t.Errorf("got GT %v, want no call", s.GT())
	}
}

func TestConfidenceTotalCovgGate(t *testing.T) {
	s := covgSample([]uint32{1, 2}, []uint32{0, 0})
	s.Likelihood(2, 10, 0.01, 0, 0)
	s.Confidence(2, 100, 0)
	conf := s.GetFloats("GT_CONF")
	if len(conf) != 1 || conf[0] != 0 {
		t.Errorf("low total coverage should zero the confidence: %v", conf)
	}
}

func TestSampleInfoCopyIsDeep(t *testing.T) {
	s := covgSample([]uint32{1, 2}, []uint32{3, 4})
	s.SetGT(1)
	c := s.Copy()
	c.SetGT(0)
	c.GetInts("MEAN_FWD_COVG")[0] = 99
	if s.GT()[0] != 1 || s.GetInts("MEAN_FWD_COVG")[0] != 1 {
		t.Error("copy shares storage with the original")
	}
}

func TestMergeAllele(t *testing.T) {
	a := covgSample([]uint32{5, 0}, []uint32{5, 0})
	a.SetGT(0)
	b := covgSample([]uint32{5, 9}, []uint32{5, 9})
	b.SetGT(1)

	a.mergeAllele(b, 2)
	if gt := a.GT(); len(gt) != 1 || gt[0] != 2 {
		t.Errorf("got GT %v, want [2]", gt)
	}
	fwd := a.GetInts("MEAN_FWD_COVG")
	if len(fwd) != 3 || fwd[2] != 9 {
		t.Errorf("got MEAN_FWD_COVG %v", fwd)
	}
}
