// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

// Package allele combines allele frequency reports from independent
// population studies into a consensus estimate per allele, modelled
// as a Dirichlet posterior.
package allele

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Record is one allele frequency reported by one study (dataset) for
// one locus.
type Record struct {
	Allele          string  `csv:"allele"`
	Loci            string  `csv:"loci"`
	Population      string  `csv:"population"`
	Country         string  `csv:"country,omitempty"`
	AlleleFreq      float64 `csv:"allele_freq"`
	CarriersPercent Percent `csv:"carriers%"`
	SampleSize      Count   `csv:"sample_size"`
	Weight          float64 `csv:"weight,omitempty"`
}

// Locus returns r.Loci, or the locus derived from the allele name if
// r.Loci is empty.
func (r Record) Locus() string {
	if r.Loci != "" {
		return r.Loci
	}
	return Locus(r.Allele)
}

// Locus returns the part of an allele name before "*", e.g., "A" for
// "A*01:01".
func Locus(allele string) string {
	if i := strings.IndexByte(allele, '*'); i >= 0 {
		return allele[:i]
	}
	return allele
}

// Resolution returns the number of colon-delimited fields in an
// allele name ("A*01" is 1, "A*01:01" is 2).
func Resolution(allele string) int {
	return strings.Count(allele, ":") + 1
}

// Truncate returns the first n fields of an allele name.
func Truncate(allele string, n int) string {
	fields := strings.Split(allele, ":")
	if len(fields) <= n {
		return allele
	}
	return strings.Join(fields[:n], ":")
}

// Count is a sample size. In CSV it may be written with thousands
// separators ("1,234").
type Count float64

func (n *Count) UnmarshalCSV(s string) error {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid sample size %q", s)
	}
	*n = Count(f)
	return nil
}

func (n Count) MarshalCSV() (string, error) {
	return strconv.FormatFloat(float64(n), 'f', -1, 64), nil
}

// Percent is an optional percentage. The zero value is "unknown".
type Percent struct {
	Value float64
	Valid bool
}

// Known returns a valid Percent.
func Known(v float64) Percent {
	return Percent{Value: v, Valid: true}
}

func (p *Percent) UnmarshalCSV(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*p = Percent{}
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid percentage %q", s)
	}
	*p = Known(f)
	return nil
}

func (p Percent) MarshalCSV() (string, error) {
	if !p.Valid {
		return "", nil
	}
	return strconv.FormatFloat(p.Value, 'f', -1, 64), nil
}

// DatasetKey identifies the dataset (study, population, country...)
// a record belongs to.
type DatasetKey func(Record) string

var (
	ByPopulation DatasetKey = func(r Record) string { return r.Population }
	ByCountry    DatasetKey = func(r Record) string { return r.Country }
)

// DatasetKeyByName returns the DatasetKey for a column name.
func DatasetKeyByName(name string) (DatasetKey, error) {
	switch name {
	case "population", "":
		return ByPopulation, nil
	case "country":
		return ByCountry, nil
	default:
		return nil, fmt.Errorf("unknown dataset column %q (expected population or country)", name)
	}
}

func keyOrDefault(key DatasetKey) DatasetKey {
	if key == nil {
		return ByPopulation
	}
	return key
}

// Normalize fills in missing loci and, if ignoreG is true, removes
// a trailing "G" allele group suffix ("A*01:01:01G" becomes
// "A*01:01:01"). The input is not modified.
func Normalize(records []Record, ignoreG bool) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		r.Allele = strings.TrimSpace(r.Allele)
		if ignoreG {
			r.Allele = strings.TrimSuffix(r.Allele, "G")
		}
		r.Loci = r.Locus()
		out[i] = r
	}
	return out
}

// Loci returns the distinct loci present, sorted.
func Loci(records []Record) []string {
	seen := map[string]bool{}
	for _, r := range records {
		seen[r.Locus()] = true
	}
	return sortedKeys(seen)
}

// studyKey identifies one (dataset, locus) group.
type studyKey struct {
	dataset string
	locus   string
}

func groupStudies(records []Record, key DatasetKey) (map[studyKey][]int, []studyKey) {
	groups := map[studyKey][]int{}
	var order []studyKey
	for i, r := range records {
		k := studyKey{key(r), r.Locus()}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].dataset != order[j].dataset {
			return order[i].dataset < order[j].dataset
		}
		return order[i].locus < order[j].locus
	})
	return groups, order
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sameFloat reports whether two sample sizes are equal, treating two
// NaNs as equal.
func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}
