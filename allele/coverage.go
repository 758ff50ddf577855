// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package allele

import "sort"

// PopulationCoverage returns the proportion of individuals carrying at
// least one copy of an allele (or set of alleles) with frequency p,
// assuming Hardy-Weinberg equilibrium: p² + 2p(1-p).
//
// p is not clamped. A cumulative frequency above 1 yields a coverage
// below 1 that is meaningless; callers should check p first.
func PopulationCoverage(p float64) float64 {
	q := 1 - p
	return p*p + 2*p*q
}

// CoverageRow is one step of a cumulative coverage table.
type CoverageRow struct {
	Allele     string  `csv:"allele"`
	AlleleFreq float64 `csv:"allele_freq"`
	Cumulative float64 `csv:"cumulative_freq"`
	Coverage   float64 `csv:"coverage"`
}

// CumulativeCoverage orders alleles by decreasing frequency (ties by
// name) and returns, for each prefix of that order, the cumulative
// frequency and the population coverage of carrying any of them.
func CumulativeCoverage(combined []Combined) []CoverageRow {
	sorted := append([]Combined(nil), combined...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].AlleleFreq != sorted[j].AlleleFreq {
			return sorted[i].AlleleFreq > sorted[j].AlleleFreq
		}
		return sorted[i].Allele < sorted[j].Allele
	})
	out := make([]CoverageRow, len(sorted))
	cum := 0.0
	for i, c := range sorted {
		cum += c.AlleleFreq
		out[i] = CoverageRow{
			Allele:     c.Allele,
			AlleleFreq: c.AlleleFreq,
			Cumulative: cum,
			Coverage:   PopulationCoverage(cum),
		}
	}
	return out
}
