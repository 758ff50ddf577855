// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package allele

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Weighting returns the number of allele observations a record
// represents.
type Weighting func(Record) float64

var (
	// DiploidCount weights a record by 2 × sample size (two allele
	// copies per individual). This is the default.
	DiploidCount Weighting = func(r Record) float64 { return 2 * float64(r.SampleSize) }
	// SampleCount weights a record by its sample size.
	SampleCount Weighting = func(r Record) float64 { return float64(r.SampleSize) }
	// RecordWeight uses the record's own Weight field.
	RecordWeight Weighting = func(r Record) float64 { return r.Weight }
)

// WeightingByName returns "2n" (DiploidCount), "n" (SampleCount), or
// "weight" (RecordWeight).
func WeightingByName(name string) (Weighting, error) {
	switch name {
	case "2n", "":
		return DiploidCount, nil
	case "n":
		return SampleCount, nil
	case "weight":
		return RecordWeight, nil
	default:
		return nil, fmt.Errorf("unknown weighting %q (expected 2n, n, or weight)", name)
	}
}

// PopulationWeighting weights datasets by the size of the population
// they represent. Each individual in dataset d counts
// size[d]/Σsize × len(size) times, so the total weight is unchanged
// when all datasets have equal sample sizes. A dataset missing from
// sizes gets a NaN weight, which Combine reports as a *WeightError.
func PopulationWeighting(sizes map[string]float64, key DatasetKey) (Weighting, error) {
	key = keyOrDefault(key)
	if len(sizes) == 0 {
		return nil, fmt.Errorf("empty population size table")
	}
	total := 0.0
	for d, s := range sizes {
		if s < 0 || math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("invalid population size %g for %q", s, d)
		}
		total += s
	}
	if total == 0 {
		return nil, fmt.Errorf("population sizes sum to zero")
	}
	individual := make(map[string]float64, len(sizes))
	for d, s := range sizes {
		individual[d] = s / total * float64(len(sizes))
	}
	return func(r Record) float64 {
		w, ok := individual[key(r)]
		if !ok {
			return math.NaN()
		}
		return 2 * float64(r.SampleSize) * w
	}, nil
}

// Options control Combine. The zero value combines a single locus by
// population with diploid weights and a flat prior, enforcing every
// precondition.
type Options struct {
	Weighting Weighting
	// Prior concentration for each allele. If nil, every allele
	// gets 1. If not nil it must have exactly one positive entry
	// per allele present after expansion.
	Prior   map[string]float64
	Dataset DatasetKey
	Bounds  Bounds

	SkipLocusCheck      bool
	SkipUniqueCheck     bool
	SkipCompleteCheck   bool
	SkipResolutionCheck bool
	SkipExpand          bool
}

// Combined is the consensus for one allele across datasets.
type Combined struct {
	Allele string `csv:"allele"`
	Loci   string `csv:"loci"`
	// Dirichlet posterior mean (Alpha+C)/Σ(Alpha+C).
	AlleleFreq float64 `csv:"allele_freq"`
	// Effective observed count Σ allele_freq × weight.
	C          float64 `csv:"c"`
	SampleSize float64 `csv:"sample_size"`
	// Prior concentration.
	Alpha float64 `csv:"alpha"`
	// Weighted mean of the reported frequencies, before the prior
	// is applied.
	WeightedAverage float64 `csv:"-"`
}

// Concentration returns the posterior Dirichlet parameter Alpha+C.
func (c Combined) Concentration() float64 {
	return c.Alpha + c.C
}

// DefaultPrior returns a flat prior of 1 for each allele.
func DefaultPrior(alleles []string) map[string]float64 {
	prior := make(map[string]float64, len(alleles))
	for _, a := range alleles {
		prior[a] = 1
	}
	return prior
}

// AlignPrior maps a positional prior onto alleles in alphabetical
// order, the convention used by tools that take the prior as a list.
func AlignPrior(values []float64, alleles []string) (map[string]float64, error) {
	sorted := append([]string(nil), alleles...)
	sort.Strings(sorted)
	if len(values) != len(sorted) {
		return nil, fmt.Errorf("prior has %d values but there are %d alleles", len(values), len(sorted))
	}
	prior := make(map[string]float64, len(values))
	for i, a := range sorted {
		prior[a] = values[i]
	}
	return prior, nil
}

// Combine computes the consensus allele frequency of a set of studies.
//
// Unless disabled in opts, it first checks that the input covers one
// locus, that no dataset reports an allele twice, that every (dataset,
// locus) group sums to approximately 1, and that all alleles share one
// resolution; then it adds zero-frequency rows for unmeasured alleles.
// Each allele's effective count c is Σ allele_freq × weight, and its
// consensus frequency is the Dirichlet posterior mean
// (prior+c)/Σ(prior+c), which shrinks poorly sampled alleles toward
// the prior.
//
// The result has one row per allele, sorted by allele name.
func Combine(records []Record, opts Options) ([]Combined, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	key := keyOrDefault(opts.Dataset)
	weight := opts.Weighting
	if weight == nil {
		weight = DiploidCount
	}

	if !opts.SkipLocusCheck {
		if loci := Loci(records); len(loci) > 1 {
			return nil, &MultiLocusError{Loci: loci}
		}
	}
	if !opts.SkipUniqueCheck {
		if dups := DuplicateAlleles(records, key); len(dups) > 0 {
			return nil, &DuplicateAlleleError{Dataset: dups[0].Dataset, Allele: dups[0].Allele, Count: dups[0].Count}
		}
	}
	if !opts.SkipCompleteCheck {
		if inc := IncompleteStudies(records, opts.Bounds, key); len(inc) > 0 {
			return nil, &IncompleteStudyError{Studies: inc, Bounds: opts.Bounds.orDefault()}
		}
	}
	if !opts.SkipResolutionCheck {
		if ok, res := CheckResolution(records); !ok {
			return nil, &ResolutionError{Reason: "alleles have mixed resolution", Resolutions: res}
		}
	}
	if !opts.SkipExpand {
		var err error
		records, err = ExpandUnmeasured(records, key)
		if err != nil {
			return nil, err
		}
	}

	byAllele := map[string][]int{}
	for i, r := range records {
		byAllele[r.Allele] = append(byAllele[r.Allele], i)
	}
	alleles := make([]string, 0, len(byAllele))
	for a := range byAllele {
		alleles = append(alleles, a)
	}
	sort.Strings(alleles)

	combined := make([]Combined, 0, len(alleles))
	for _, a := range alleles {
		var c, wsum, n float64
		for _, i := range byAllele[a] {
			r := records[i]
			w := weight(r)
			if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
				return nil, &WeightError{Dataset: key(r), Allele: a, Weight: w, Reason: "weight must be a non-negative number"}
			}
			c += r.AlleleFreq * w
			wsum += w
			n += float64(r.SampleSize)
		}
		if wsum == 0 {
			return nil, &WeightError{Allele: a, Reason: "total weight is zero"}
		}
		combined = append(combined, Combined{
			Allele:          a,
			Loci:            records[byAllele[a][0]].Locus(),
			WeightedAverage: c / wsum,
			C:               c,
			SampleSize:      n,
		})
	}

	if err := checkCombinedSampleSize(records, combined, byAllele, key); err != nil {
		return nil, err
	}

	prior := opts.Prior
	if prior == nil {
		prior = DefaultPrior(alleles)
	} else if err := checkPrior(prior, alleles); err != nil {
		return nil, err
	}
	conc := make([]float64, len(combined))
	for i := range combined {
		combined[i].Alpha = prior[combined[i].Allele]
		conc[i] = combined[i].Concentration()
	}
	total := floats.Sum(conc)
	for i := range combined {
		combined[i].AlleleFreq = conc[i] / total
	}
	return combined, nil
}

// checkCombinedSampleSize verifies that all alleles of a locus ended
// up with the same total sample size. If not, and some dataset
// contributes twice to one allele, that dataset was counted twice.
func checkCombinedSampleSize(records []Record, combined []Combined, byAllele map[string][]int, key DatasetKey) error {
	sizes := map[string]map[float64]bool{}
	for _, c := range combined {
		if sizes[c.Loci] == nil {
			sizes[c.Loci] = map[float64]bool{}
		}
		sizes[c.Loci][c.SampleSize] = true
	}
	consistent := true
	for _, s := range sizes {
		if len(s) > 1 {
			consistent = false
		}
	}
	if consistent {
		return nil
	}
	for _, c := range combined {
		seen := map[string]float64{}
		for _, i := range byAllele[c.Allele] {
			r := records[i]
			d := key(r)
			if prev, ok := seen[d]; ok {
				return &InconsistentSampleSizeError{Dataset: d, Loci: c.Loci, Allele: c.Allele, SampleSizes: []float64{prev, float64(r.SampleSize)}}
			}
			seen[d] = float64(r.SampleSize)
		}
	}
	return nil
}

func checkPrior(prior map[string]float64, alleles []string) error {
	var perr PriorError
	want := map[string]bool{}
	for _, a := range alleles {
		want[a] = true
		v, ok := prior[a]
		if !ok {
			perr.Missing = append(perr.Missing, a)
		} else if !(v > 0) || math.IsInf(v, 0) {
			perr.Invalid = append(perr.Invalid, a)
		}
	}
	for a := range prior {
		if !want[a] {
			perr.Extra = append(perr.Extra, a)
		}
	}
	sort.Strings(perr.Extra)
	if perr.Missing == nil && perr.Extra == nil && perr.Invalid == nil {
		return nil
	}
	return &perr
}

// ToRecords converts a consensus table back to records belonging to
// one dataset, so consensus estimates (e.g., per country) can be
// combined again at a higher level. The dataset name is used as both
// population and country.
func ToRecords(combined []Combined, dataset string) []Record {
	out := make([]Record, len(combined))
	for i, c := range combined {
		out[i] = Record{
			Allele:     c.Allele,
			Loci:       c.Loci,
			Population: dataset,
			Country:    dataset,
			AlleleFreq: c.AlleleFreq,
			SampleSize: Count(c.SampleSize),
		}
	}
	return out
}
