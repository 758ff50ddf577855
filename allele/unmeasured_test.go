// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package allele

import (
	"errors"

	"gopkg.in/check.v1"
)

type unmeasuredSuite struct{}

var _ = check.Suite(&unmeasuredSuite{})

// missingAllele has Study2 reporting A*03:01, which Study1 does not.
func missingAllele() []Record {
	return []Record{
		{Allele: "A*01:01", Loci: "A", Population: "Study1", Country: "X", AlleleFreq: 0.6, SampleSize: 50, CarriersPercent: Known(80)},
		{Allele: "A*02:01", Loci: "A", Population: "Study1", Country: "X", AlleleFreq: 0.4, SampleSize: 50},
		{Allele: "A*01:01", Loci: "A", Population: "Study2", Country: "Y", AlleleFreq: 0.4, SampleSize: 100},
		{Allele: "A*02:01", Loci: "A", Population: "Study2", Country: "Y", AlleleFreq: 0.4, SampleSize: 100},
		{Allele: "A*03:01", Loci: "A", Population: "Study2", Country: "Y", AlleleFreq: 0.2, SampleSize: 100},
	}
}

func (s *unmeasuredSuite) TestExpand(c *check.C) {
	in := missingAllele()
	out, err := ExpandUnmeasured(in, nil)
	c.Assert(err, check.IsNil)
	c.Assert(out, check.HasLen, 6)
	c.Check(out[:5], check.DeepEquals, in)
	c.Check(out[5], check.DeepEquals, Record{
		Allele:          "A*03:01",
		Loci:            "A",
		Population:      "Study1",
		Country:         "X",
		AlleleFreq:      0,
		CarriersPercent: Known(0),
		SampleSize:      50,
	})
}

func (s *unmeasuredSuite) TestIdempotent(c *check.C) {
	once, err := ExpandUnmeasured(missingAllele(), nil)
	c.Assert(err, check.IsNil)
	twice, err := ExpandUnmeasured(once, nil)
	c.Assert(err, check.IsNil)
	c.Check(twice, check.DeepEquals, once)
}

func (s *unmeasuredSuite) TestPerLocus(c *check.C) {
	in := append(missingAllele(), Record{Allele: "B*07:02", Loci: "B", Population: "Study1", AlleleFreq: 1, SampleSize: 50})
	out, err := ExpandUnmeasured(in, nil)
	c.Assert(err, check.IsNil)
	// Study2 does not report locus B, so gets no B rows; Study1
	// still gains A*03:01.
	c.Check(out, check.HasLen, 7)
	c.Check(out[6].Allele, check.Equals, "A*03:01")
}

func (s *unmeasuredSuite) TestLowersWeightedAverage(c *check.C) {
	opts := Options{SkipExpand: true}
	without, err := Combine(missingAllele(), opts)
	c.Assert(err, check.IsNil)
	with, err := Combine(missingAllele(), Options{})
	c.Assert(err, check.IsNil)
	c.Assert(with, check.HasLen, 3)
	c.Check(with[2].Allele, check.Equals, "A*03:01")
	c.Check(without[2].WeightedAverage, approx, 0.2)
	c.Check(with[2].WeightedAverage, approx, 40.0/300)
	c.Check(with[2].WeightedAverage < without[2].WeightedAverage, check.Equals, true)
	c.Check(with[2].SampleSize, check.Equals, 150.0)
}

func (s *unmeasuredSuite) TestInconsistentSampleSize(c *check.C) {
	in := missingAllele()
	in[1].SampleSize = 51
	_, err := ExpandUnmeasured(in, nil)
	var serr *InconsistentSampleSizeError
	c.Assert(errors.As(err, &serr), check.Equals, true)
	c.Check(serr.Dataset, check.Equals, "Study1")
	c.Check(serr.SampleSizes, check.DeepEquals, []float64{50, 51})
	c.Check(err, check.ErrorMatches, `dataset "Study1" locus A has multiple sample sizes \[50 51\]`)
}
