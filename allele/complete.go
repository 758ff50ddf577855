// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package allele

import "sort"

// Bounds is the tolerated range for the sum of a study's allele
// frequencies at one locus. The lower bound is tighter because
// rounding tends to undercount.
type Bounds struct {
	Lower float64
	Upper float64
}

var DefaultBounds = Bounds{Lower: 0.95, Upper: 1.1}

func (b Bounds) orDefault() Bounds {
	if b == (Bounds{}) {
		return DefaultBounds
	}
	return b
}

// Contains reports whether total is within [Lower, Upper].
func (b Bounds) Contains(total float64) bool {
	return total >= b.Lower && total <= b.Upper
}

// Study is the allele frequency total of one (dataset, locus) group.
type Study struct {
	Dataset string
	Loci    string
	Total   float64
}

// IncompleteStudies returns the (dataset, locus) groups whose allele
// frequencies sum outside bounds (DefaultBounds if zero), sorted by
// dataset then locus. It never fails.
func IncompleteStudies(records []Record, bounds Bounds, key DatasetKey) []Study {
	key = keyOrDefault(key)
	bounds = bounds.orDefault()
	groups, order := groupStudies(records, key)
	var incomplete []Study
	for _, k := range order {
		total := 0.0
		for _, i := range groups[k] {
			total += records[i].AlleleFreq
		}
		if !bounds.Contains(total) {
			incomplete = append(incomplete, Study{Dataset: k.dataset, Loci: k.locus, Total: total})
		}
	}
	return incomplete
}

// OnlyComplete returns the records whose (dataset, locus) group is
// complete, and the groups that were dropped. A dataset with one
// incomplete locus keeps its complete loci.
func OnlyComplete(records []Record, bounds Bounds, key DatasetKey) ([]Record, []Study) {
	key = keyOrDefault(key)
	dropped := IncompleteStudies(records, bounds, key)
	if len(dropped) == 0 {
		return append([]Record(nil), records...), nil
	}
	drop := map[studyKey]bool{}
	for _, s := range dropped {
		drop[studyKey{s.Dataset, s.Loci}] = true
	}
	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if !drop[studyKey{key(r), r.Locus()}] {
			kept = append(kept, r)
		}
	}
	return kept, dropped
}

// Duplicate is an allele reported more than once by one dataset.
type Duplicate struct {
	Dataset string
	Allele  string
	Count   int
}

// DuplicateAlleles returns every allele that appears more than once
// within a dataset, sorted by dataset then allele.
func DuplicateAlleles(records []Record, key DatasetKey) []Duplicate {
	key = keyOrDefault(key)
	type k struct{ dataset, allele string }
	counts := map[k]int{}
	for _, r := range records {
		counts[k{key(r), r.Allele}]++
	}
	var dups []Duplicate
	for kk, n := range counts {
		if n > 1 {
			dups = append(dups, Duplicate{Dataset: kk.dataset, Allele: kk.allele, Count: n})
		}
	}
	sort.Slice(dups, func(i, j int) bool {
		if dups[i].Dataset != dups[j].Dataset {
			return dups[i].Dataset < dups[j].Dataset
		}
		return dups[i].Allele < dups[j].Allele
	})
	return dups
}
