// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package allele

import "sort"

// ExpandUnmeasured adds a zero-frequency record for every allele that
// some dataset reports at a locus but another dataset at the same
// locus does not. Without these rows a dataset's reported alleles
// would be over-weighted in a weighted average.
//
// Synthesized records copy the dataset's other fields (population,
// country, weight) and its sample size, which must be uniform within
// each (dataset, locus) group. The original records come first,
// followed by the new ones ordered by locus, dataset, allele.
// Applying ExpandUnmeasured to its own output adds nothing.
func ExpandUnmeasured(records []Record, key DatasetKey) ([]Record, error) {
	key = keyOrDefault(key)
	groups, order := groupStudies(records, key)

	alleles := map[string]map[string]bool{}
	for _, r := range records {
		loc := r.Locus()
		if alleles[loc] == nil {
			alleles[loc] = map[string]bool{}
		}
		alleles[loc][r.Allele] = true
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].locus != order[j].locus {
			return order[i].locus < order[j].locus
		}
		return order[i].dataset < order[j].dataset
	})

	out := append([]Record(nil), records...)
	for _, k := range order {
		idx := groups[k]
		template := records[idx[0]]
		if err := uniformSampleSize(records, idx, k); err != nil {
			return nil, err
		}
		have := map[string]bool{}
		for _, i := range idx {
			have[records[i].Allele] = true
		}
		for _, a := range sortedKeys(alleles[k.locus]) {
			if have[a] {
				continue
			}
			r := template
			r.Allele = a
			r.Loci = k.locus
			r.AlleleFreq = 0
			r.CarriersPercent = Known(0)
			out = append(out, r)
		}
	}
	return out, nil
}

func uniformSampleSize(records []Record, idx []int, k studyKey) error {
	first := float64(records[idx[0]].SampleSize)
	var sizes []float64
	for _, i := range idx {
		n := float64(records[i].SampleSize)
		if !sameFloat(n, first) {
			if sizes == nil {
				sizes = []float64{first}
			}
			seen := false
			for _, s := range sizes {
				seen = seen || sameFloat(s, n)
			}
			if !seen {
				sizes = append(sizes, n)
			}
		}
	}
	if sizes != nil {
		return &InconsistentSampleSizeError{Dataset: k.dataset, Loci: k.locus, SampleSizes: sizes}
	}
	return nil
}
