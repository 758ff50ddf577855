// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package allele

import (
	"fmt"
	"sort"
)

// CheckResolution reports whether all alleles have the same
// resolution, and how many records there are at each resolution.
func CheckResolution(records []Record) (bool, map[int]int) {
	counts := map[int]int{}
	for _, r := range records {
		counts[Resolution(r.Allele)]++
	}
	return len(counts) <= 1, counts
}

// DecreaseResolution truncates every allele name to target fields and
// merges records that collapse onto the same (dataset, allele) by
// summing their frequencies. Carrier percentages of merged records are
// unknown.
//
// Resolution can only be decreased: an allele with fewer than target
// fields is a *ResolutionError. So is a collapsed group whose records
// disagree on locus or sample size.
func DecreaseResolution(records []Record, target int, key DatasetKey) ([]Record, error) {
	key = keyOrDefault(key)
	if target < 1 {
		return nil, &ResolutionError{Reason: fmt.Sprintf("invalid target resolution %d", target)}
	}
	for _, r := range records {
		if res := Resolution(r.Allele); res < target {
			return nil, &ResolutionError{
				Dataset: key(r),
				Allele:  r.Allele,
				Reason:  fmt.Sprintf("cannot increase resolution from %d to %d", res, target),
			}
		}
	}

	type groupKey struct {
		dataset string
		allele  string
	}
	groups := map[groupKey]*Record{}
	members := map[groupKey]int{}
	var order []groupKey
	for _, r := range records {
		k := groupKey{key(r), Truncate(r.Allele, target)}
		g, ok := groups[k]
		if !ok {
			nr := r
			nr.Allele = k.allele
			nr.Loci = r.Locus()
			groups[k] = &nr
			members[k] = 1
			order = append(order, k)
			continue
		}
		if g.Loci != r.Locus() {
			return nil, &ResolutionError{
				Dataset: k.dataset,
				Allele:  k.allele,
				Reason:  fmt.Sprintf("collapsed alleles have different loci %s and %s", g.Loci, r.Locus()),
			}
		}
		if !sameFloat(float64(g.SampleSize), float64(r.SampleSize)) {
			return nil, &ResolutionError{
				Dataset: k.dataset,
				Allele:  k.allele,
				Reason:  fmt.Sprintf("collapsed alleles have different sample sizes %g and %g", float64(g.SampleSize), float64(r.SampleSize)),
			}
		}
		g.AlleleFreq += r.AlleleFreq
		members[k]++
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].dataset != order[j].dataset {
			return order[i].dataset < order[j].dataset
		}
		return order[i].allele < order[j].allele
	})
	out := make([]Record, 0, len(order))
	for _, k := range order {
		r := *groups[k]
		if members[k] > 1 {
			r.CarriersPercent = Percent{}
		}
		out = append(out, r)
	}
	return out, nil
}
