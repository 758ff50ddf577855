// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package allele

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrNoRecords = errors.New("no allele frequency records")

// ResolutionError reports an attempt to increase resolution, a
// collapse that merged incompatible records, or mixed resolution
// where a single resolution is required.
type ResolutionError struct {
	Dataset string
	Allele  string
	Reason  string
	// Resolutions present in the input, if the error is about
	// mixed resolution.
	Resolutions map[int]int
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	b.WriteString("resolution error")
	if e.Dataset != "" {
		fmt.Fprintf(&b, ": dataset %q", e.Dataset)
	}
	if e.Allele != "" {
		fmt.Fprintf(&b, ": allele %q", e.Allele)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	if len(e.Resolutions) > 0 {
		var res []int
		for r := range e.Resolutions {
			res = append(res, r)
		}
		sort.Ints(res)
		b.WriteString(" (")
		for i, r := range res {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%d fields: %d alleles", r, e.Resolutions[r])
		}
		b.WriteString(")")
	}
	return b.String()
}

// IncompleteStudyError lists (dataset, locus) groups whose allele
// frequencies do not sum to approximately 1.
type IncompleteStudyError struct {
	Studies []Study
	Bounds  Bounds
}

func (e *IncompleteStudyError) Error() string {
	var parts []string
	for _, s := range e.Studies {
		parts = append(parts, fmt.Sprintf("%q locus %s sums to %g", s.Dataset, s.Loci, s.Total))
	}
	return fmt.Sprintf("%d incomplete studies (allele_freq sum outside [%g, %g]): %s", len(e.Studies), e.Bounds.Lower, e.Bounds.Upper, strings.Join(parts, "; "))
}

// DuplicateAlleleError reports an allele that appears more than once
// in one dataset.
type DuplicateAlleleError struct {
	Dataset string
	Allele  string
	Count   int
}

func (e *DuplicateAlleleError) Error() string {
	return fmt.Sprintf("allele %q appears %d times in dataset %q", e.Allele, e.Count, e.Dataset)
}

// MultiLocusError reports input spanning more than one locus.
type MultiLocusError struct {
	Loci []string
}

func (e *MultiLocusError) Error() string {
	return fmt.Sprintf("cannot combine multiple loci: %s", strings.Join(e.Loci, ", "))
}

// InconsistentSampleSizeError reports a dataset with more than one
// sample size for a locus, or an allele whose combined sample size
// shows a dataset counted twice.
type InconsistentSampleSizeError struct {
	Dataset     string
	Loci        string
	Allele      string
	SampleSizes []float64
}

func (e *InconsistentSampleSizeError) Error() string {
	if e.Allele != "" {
		return fmt.Sprintf("allele %q: dataset %q contributes more than once (sample sizes %v)", e.Allele, e.Dataset, e.SampleSizes)
	}
	return fmt.Sprintf("dataset %q locus %s has multiple sample sizes %v", e.Dataset, e.Loci, e.SampleSizes)
}

// PriorError reports a prior mapping that does not match the set of
// alleles being combined.
type PriorError struct {
	Missing []string
	Extra   []string
	Invalid []string
}

func (e *PriorError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "no prior for "+strings.Join(e.Missing, ", "))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "prior given for unobserved "+strings.Join(e.Extra, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "prior must be positive for "+strings.Join(e.Invalid, ", "))
	}
	return "prior error: " + strings.Join(parts, "; ")
}

// WeightError reports an unusable record weight.
type WeightError struct {
	Dataset string
	Allele  string
	Weight  float64
	Reason  string
}

func (e *WeightError) Error() string {
	if e.Dataset == "" {
		return fmt.Sprintf("allele %q: %s", e.Allele, e.Reason)
	}
	return fmt.Sprintf("dataset %q allele %q: weight %g: %s", e.Dataset, e.Allele, e.Weight, e.Reason)
}
