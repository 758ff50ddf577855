// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package allele

import (
	"golang.org/x/exp/rand"
	"gopkg.in/check.v1"
)

type coverageSuite struct{}

var _ = check.Suite(&coverageSuite{})

func (s *coverageSuite) TestPopulationCoverage(c *check.C) {
	c.Check(PopulationCoverage(0), check.Equals, 0.0)
	c.Check(PopulationCoverage(1), check.Equals, 1.0)
	c.Check(PopulationCoverage(0.5), check.Equals, 0.75)
	// Out-of-domain input is passed through, not clamped.
	c.Check(PopulationCoverage(1.2), approx, 0.96)
}

func (s *coverageSuite) TestCumulative(c *check.C) {
	rows := CumulativeCoverage([]Combined{
		{Allele: "A*01:01", AlleleFreq: 0.2},
		{Allele: "A*02:01", AlleleFreq: 0.5},
		{Allele: "A*03:01", AlleleFreq: 0.2},
		{Allele: "A*11:01", AlleleFreq: 0.1},
	})
	c.Assert(rows, check.HasLen, 4)
	c.Check(rows[0].Allele, check.Equals, "A*02:01")
	c.Check(rows[0].Coverage, check.Equals, 0.75)
	c.Check(rows[1].Allele, check.Equals, "A*01:01")
	c.Check(rows[2].Allele, check.Equals, "A*03:01")
	c.Check(rows[2].Cumulative, approx, 0.9)
	c.Check(rows[2].Coverage, approx, 0.99)
	c.Check(rows[3].Cumulative, approx, 1.0)
	c.Check(rows[3].Coverage, approx, 1.0)
}

type simulateSuite struct{}

var _ = check.Suite(&simulateSuite{})

func (s *simulateSuite) TestSimulate(c *check.C) {
	cfg := SimulationConfig{Locus: "A", Alleles: 6, Concentration: 10, Populations: 5, MinSampleSize: 5, MaxSampleSize: 200}
	sim, err := Simulate(cfg, rand.NewSource(42))
	c.Assert(err, check.IsNil)
	c.Check(sim.Alleles[0], check.Equals, "A*01")
	c.Check(sim.Global, check.HasLen, 6)
	c.Check(sim.Counts, check.HasLen, 5)
	for p, counts := range sim.Counts {
		total := 0
		for _, n := range counts {
			total += n
		}
		c.Check(total, check.Equals, 2*sim.SampleSizes[p])
		c.Check(sim.SampleSizes[p] >= 5 && sim.SampleSizes[p] < 200, check.Equals, true)
	}

	records := sim.Records()
	c.Check(IncompleteStudies(records, Bounds{Lower: 0.999999, Upper: 1.000001}, nil), check.HasLen, 0)
	caf, err := Combine(records, Options{})
	c.Assert(err, check.IsNil)
	sum := 0.0
	for _, row := range caf {
		sum += row.AlleleFreq
	}
	c.Check(sum, approx, 1.0)

	again, err := Simulate(cfg, rand.NewSource(42))
	c.Assert(err, check.IsNil)
	c.Check(again.Counts, check.DeepEquals, sim.Counts)
}

func (s *simulateSuite) TestInvalid(c *check.C) {
	for _, cfg := range []SimulationConfig{
		{Alleles: 1, Concentration: 1, Populations: 1, MinSampleSize: 1, MaxSampleSize: 2},
		{Alleles: 2, Concentration: 0, Populations: 1, MinSampleSize: 1, MaxSampleSize: 2},
		{Alleles: 2, Concentration: 1, Populations: 0, MinSampleSize: 1, MaxSampleSize: 2},
		{Alleles: 2, Concentration: 1, Populations: 1, MinSampleSize: 2, MaxSampleSize: 2},
	} {
		_, err := Simulate(cfg, rand.NewSource(1))
		c.Check(err, check.NotNil, check.Commentf("%+v", cfg))
	}
}
