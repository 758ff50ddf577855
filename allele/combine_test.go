// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package allele

import (
	"errors"
	"math"

	"gopkg.in/check.v1"
)

type combineSuite struct{}

var _ = check.Suite(&combineSuite{})

func (s *combineSuite) TestTwoStudies(c *check.C) {
	caf, err := Combine(twoStudies(), Options{})
	c.Assert(err, check.IsNil)
	c.Assert(caf, check.HasLen, 2)

	c.Check(caf[0].Allele, check.Equals, "A*01:01")
	c.Check(caf[0].Loci, check.Equals, "A")
	c.Check(caf[0].WeightedAverage, approx, 160.0/300)
	c.Check(caf[0].C, approx, 160.0)
	c.Check(caf[0].SampleSize, check.Equals, 150.0)
	c.Check(caf[0].Alpha, check.Equals, 1.0)
	c.Check(caf[0].AlleleFreq, approx, 161.0/302)

	c.Check(caf[1].Allele, check.Equals, "A*02:01")
	c.Check(caf[1].C, approx, 140.0)
	c.Check(caf[1].AlleleFreq, approx, 141.0/302)
}

func (s *combineSuite) TestPosteriorSumsToOne(c *check.C) {
	for _, in := range [][]Record{twoStudies(), missingAllele()} {
		caf, err := Combine(in, Options{})
		c.Assert(err, check.IsNil)
		sum := 0.0
		for _, row := range caf {
			sum += row.AlleleFreq
		}
		c.Check(sum, approx, 1.0)
	}
}

func (s *combineSuite) TestSingleStudyShrinkage(c *check.C) {
	in := twoStudies()[:2]
	caf, err := Combine(in, Options{})
	c.Assert(err, check.IsNil)
	// With a flat prior of 1 per allele, k=2 alleles and 2n=100
	// observations, each estimate moves toward 1/k by a factor
	// k/(2n+k).
	for i, row := range caf {
		shrunk := (in[i].AlleleFreq*100 + 1) / 102
		c.Check(row.AlleleFreq, approx, shrunk)
		c.Check(math.Abs(row.AlleleFreq-in[i].AlleleFreq) <= 2.0/102, check.Equals, true)
	}

	// A vanishing prior reproduces the study's own frequencies.
	caf, err = Combine(in, Options{Prior: map[string]float64{"A*01:01": 1e-9, "A*02:01": 1e-9}})
	c.Assert(err, check.IsNil)
	c.Check(math.Abs(caf[0].AlleleFreq-0.6) < 1e-9, check.Equals, true)
}

func (s *combineSuite) TestOutputSorted(c *check.C) {
	in := twoStudies()
	in[0], in[3] = in[3], in[0]
	caf, err := Combine(in, Options{})
	c.Assert(err, check.IsNil)
	c.Check(caf[0].Allele, check.Equals, "A*01:01")
	c.Check(caf[1].Allele, check.Equals, "A*02:01")
}

func (s *combineSuite) TestPreconditions(c *check.C) {
	_, err := Combine(nil, Options{})
	c.Check(err, check.Equals, ErrNoRecords)

	multi := append(twoStudies(), Record{Allele: "B*07:02", Loci: "B", Population: "Study1", AlleleFreq: 1, SampleSize: 50})
	_, err = Combine(multi, Options{})
	var merr *MultiLocusError
	c.Check(errors.As(err, &merr), check.Equals, true)
	c.Check(err, check.ErrorMatches, `cannot combine multiple loci: A, B`)
	caf, err := Combine(multi, Options{SkipLocusCheck: true})
	c.Check(err, check.IsNil)
	c.Check(caf, check.HasLen, 3)

	dup := twoStudies()
	dup[1].Allele = "A*01:01"
	_, err = Combine(dup, Options{})
	var derr *DuplicateAlleleError
	c.Check(errors.As(err, &derr), check.Equals, true)
	c.Check(err, check.ErrorMatches, `allele "A\*01:01" appears 2 times in dataset "Study1"`)

	mixed := twoStudies()
	mixed[0].Allele = "A*01"
	mixed[1].Allele = "A*02"
	_, err = Combine(mixed, Options{})
	var rerr *ResolutionError
	c.Check(errors.As(err, &rerr), check.Equals, true)
	c.Check(rerr.Resolutions, check.DeepEquals, map[int]int{1: 2, 2: 2})
}

func (s *combineSuite) TestDatasetCountedTwice(c *check.C) {
	in := []Record{
		{Allele: "A*01:01", Population: "Study1", AlleleFreq: 0.3, SampleSize: 50},
		{Allele: "A*01:01", Population: "Study1", AlleleFreq: 0.3, SampleSize: 50},
		{Allele: "A*02:01", Population: "Study1", AlleleFreq: 0.4, SampleSize: 50},
		{Allele: "A*01:01", Population: "Study2", AlleleFreq: 0.5, SampleSize: 100},
		{Allele: "A*02:01", Population: "Study2", AlleleFreq: 0.5, SampleSize: 100},
	}
	_, err := Combine(in, Options{SkipUniqueCheck: true})
	var serr *InconsistentSampleSizeError
	c.Assert(errors.As(err, &serr), check.Equals, true)
	c.Check(serr.Allele, check.Equals, "A*01:01")
	c.Check(serr.Dataset, check.Equals, "Study1")
}

func (s *combineSuite) TestPrior(c *check.C) {
	prior := map[string]float64{"A*01:01": 10, "A*02:01": 1}
	caf, err := Combine(twoStudies(), Options{Prior: prior})
	c.Assert(err, check.IsNil)
	c.Check(caf[0].Alpha, check.Equals, 10.0)
	c.Check(caf[0].AlleleFreq, approx, 170.0/311)

	// The caller's map is not modified.
	c.Check(prior, check.HasLen, 2)

	_, err = Combine(twoStudies(), Options{Prior: map[string]float64{"A*01:01": 1, "A*03:01": 1}})
	var perr *PriorError
	c.Assert(errors.As(err, &perr), check.Equals, true)
	c.Check(perr.Missing, check.DeepEquals, []string{"A*02:01"})
	c.Check(perr.Extra, check.DeepEquals, []string{"A*03:01"})

	_, err = Combine(twoStudies(), Options{Prior: map[string]float64{"A*01:01": 1, "A*02:01": 0}})
	c.Check(err, check.ErrorMatches, `prior error: prior must be positive for A\*02:01`)
}

func (s *combineSuite) TestDefaultPriorIsFresh(c *check.C) {
	p1 := DefaultPrior([]string{"A*01:01"})
	p1["A*01:01"] = 5
	p2 := DefaultPrior([]string{"A*01:01"})
	c.Check(p2["A*01:01"], check.Equals, 1.0)
}

func (s *combineSuite) TestAlignPrior(c *check.C) {
	prior, err := AlignPrior([]float64{10, 1}, []string{"A*02:01", "A*01:01"})
	c.Assert(err, check.IsNil)
	c.Check(prior, check.DeepEquals, map[string]float64{"A*01:01": 10, "A*02:01": 1})
	_, err = AlignPrior([]float64{1}, []string{"A*02:01", "A*01:01"})
	c.Check(err, check.ErrorMatches, `prior has 1 values but there are 2 alleles`)
}

func (s *combineSuite) TestWeighting(c *check.C) {
	n, err := Combine(twoStudies(), Options{Weighting: SampleCount})
	c.Assert(err, check.IsNil)
	c.Check(n[0].C, approx, 80.0)
	c.Check(n[0].WeightedAverage, approx, 160.0/300)

	in := twoStudies()
	for i := range in {
		in[i].Weight = 1
	}
	in[0].Weight = -1
	_, err = Combine(in, Options{Weighting: RecordWeight})
	var werr *WeightError
	c.Assert(errors.As(err, &werr), check.Equals, true)
	c.Check(werr.Dataset, check.Equals, "Study1")

	for _, name := range []string{"2n", "n", "weight"} {
		_, err := WeightingByName(name)
		c.Check(err, check.IsNil)
	}
	_, err = WeightingByName("3n")
	c.Check(err, check.NotNil)
}

func (s *combineSuite) TestPopulationWeighting(c *check.C) {
	w, err := PopulationWeighting(map[string]float64{"Study1": 3e6, "Study2": 1e6}, nil)
	c.Assert(err, check.IsNil)
	in := twoStudies()
	// Study1 individuals count 1.5 each, Study2 individuals 0.5.
	c.Check(w(in[0]), approx, 150.0)
	c.Check(w(in[2]), approx, 100.0)
	caf, err := Combine(in, Options{Weighting: w})
	c.Assert(err, check.IsNil)
	c.Check(caf[0].C, approx, 0.6*150+0.5*100)

	w, err = PopulationWeighting(map[string]float64{"Study1": 1}, nil)
	c.Assert(err, check.IsNil)
	_, err = Combine(in, Options{Weighting: w})
	c.Check(err, check.ErrorMatches, `dataset "Study2" allele "A\*01:01": weight NaN: .*`)

	_, err = PopulationWeighting(nil, nil)
	c.Check(err, check.NotNil)
}

func (s *combineSuite) TestTwoLevels(c *check.C) {
	countryX, err := Combine(twoStudies(), Options{})
	c.Assert(err, check.IsNil)
	countryY, err := Combine(missingAllele()[2:], Options{})
	c.Assert(err, check.IsNil)
	var all []Record
	all = append(all, ToRecords(countryX, "X")...)
	all = append(all, ToRecords(countryY, "Y")...)
	c.Check(IncompleteStudies(all, Bounds{}, ByCountry), check.HasLen, 0)

	intl, err := Combine(all, Options{Dataset: ByCountry})
	c.Assert(err, check.IsNil)
	c.Assert(intl, check.HasLen, 3)
	c.Check(intl[2].Allele, check.Equals, "A*03:01")
	c.Check(intl[0].SampleSize, check.Equals, 250.0)
	c.Check(intl[2].SampleSize, check.Equals, 250.0)
}
