// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hlafreq

import (
	"strings"

	"github.com/arvados/hlafreq/allele"
	"gopkg.in/check.v1"
)

type supertypeSuite struct{}

var _ = check.Suite(&supertypeSuite{})

func (s *supertypeSuite) TestLoadCountries(c *check.C) {
	countries, err := LoadCountries(strings.NewReader("Country,Region,largeRegion\nC\xf4te d'Ivoire,Western Africa,Sub-Saharan Africa\n"))
	c.Assert(err, check.IsNil)
	c.Check(countries, check.DeepEquals, []Country{{Country: "Côte d'Ivoire", Region: "Western Africa", LargeRegion: "Sub-Saharan Africa"}})
}

func (s *supertypeSuite) TestMatching(c *check.C) {
	table, err := LoadSupertypes(strings.NewReader("allele,supertype\nA*01:01,A01\nA*02:01,A02\nA*02:06,A02\nB*07:02,B07\nB*07:05,B08\nB*08:01,B08\n"))
	c.Assert(err, check.IsNil)
	caf := []allele.Combined{
		{Allele: "A*01:01:01", AlleleFreq: 0.1},
		{Allele: "A*02", AlleleFreq: 0.2},
		{Allele: "A*02:01", AlleleFreq: 0.3},
		{Allele: "B*07", AlleleFreq: 0.15},
		{Allele: "B*08:01", AlleleFreq: 0.05},
		{Allele: "C*01:02", AlleleFreq: 0.2},
	}
	out := SupertypeFrequencies(caf, table)
	c.Check(out, check.HasLen, 4)
	got := map[string]SupertypeFreq{}
	for _, st := range out {
		got[st.Supertype] = st
	}
	c.Check(got["A01"].AlleleFreq, approx, 0.1)
	c.Check(got["A02"].AlleleFreq, approx, 0.5)
	c.Check(got["A02"].Alleles, check.Equals, 2)
	c.Check(got["B08"].AlleleFreq, approx, 0.05)
	// B*07 is ambiguous, C*01:02 matches nothing.
	c.Check(got[Unclassified].AlleleFreq, approx, 0.35)
	c.Check(got[Unclassified].Alleles, check.Equals, 2)
	c.Check(out[0].Supertype, check.Equals, "A02")
}
