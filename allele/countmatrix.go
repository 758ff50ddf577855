// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package allele

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// CountMatrix holds the effective allele counts (allele_freq ×
// weight) of each dataset, one row per dataset and one column per
// allele, both in alphabetical order. Columns line up with the rows of
// a Combine result for the same records.
type CountMatrix struct {
	Datasets []string
	Alleles  []string
	Counts   *mat.Dense
}

// NewCountMatrix expands unmeasured alleles and builds the count
// matrix. A nil weighting means DiploidCount.
func NewCountMatrix(records []Record, weight Weighting, key DatasetKey) (*CountMatrix, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	key = keyOrDefault(key)
	if weight == nil {
		weight = DiploidCount
	}
	if dups := DuplicateAlleles(records, key); len(dups) > 0 {
		return nil, &DuplicateAlleleError{Dataset: dups[0].Dataset, Allele: dups[0].Allele, Count: dups[0].Count}
	}
	expanded, err := ExpandUnmeasured(records, key)
	if err != nil {
		return nil, err
	}
	dsIdx := map[string]bool{}
	alIdx := map[string]bool{}
	for _, r := range expanded {
		dsIdx[key(r)] = true
		alIdx[r.Allele] = true
	}
	m := &CountMatrix{
		Datasets: sortedKeys(dsIdx),
		Alleles:  sortedKeys(alIdx),
	}
	row := indexOf(m.Datasets)
	col := indexOf(m.Alleles)
	m.Counts = mat.NewDense(len(m.Datasets), len(m.Alleles), nil)
	for _, r := range expanded {
		w := weight(r)
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, &WeightError{Dataset: key(r), Allele: r.Allele, Weight: w, Reason: "weight must be a non-negative number"}
		}
		i, j := row[key(r)], col[r.Allele]
		m.Counts.Set(i, j, m.Counts.At(i, j)+r.AlleleFreq*w)
	}
	return m, nil
}

func indexOf(names []string) map[string]int {
	idx := make(map[string]int, len(names))
	for i, n := range names {
		idx[n] = i
	}
	return idx
}

// Rounded returns a copy of the count matrix with every count rounded
// to a whole number, as a multinomial likelihood requires.
func (m *CountMatrix) Rounded() *mat.Dense {
	r, c := m.Counts.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 { return math.Round(v) }, m.Counts)
	return out
}

// Totals returns the column sums, i.e., each allele's effective count
// c as computed by Combine.
func (m *CountMatrix) Totals() []float64 {
	_, cols := m.Counts.Dims()
	out := make([]float64, cols)
	for j := range out {
		out[j] = mat.Sum(m.Counts.ColView(j))
	}
	return out
}

// IntervalEstimator computes per-allele credible intervals from a
// count matrix. Intervals are returned in m.Alleles order.
type IntervalEstimator interface {
	Intervals(m *CountMatrix, level float64) ([]Interval, error)
}

// BetaMarginal pools all datasets and returns the closed-form
// marginal Beta interval of the Dirichlet posterior. A nil Prior is a
// flat prior of 1 per allele.
type BetaMarginal struct {
	Prior map[string]float64
}

func (b BetaMarginal) Intervals(m *CountMatrix, level float64) ([]Interval, error) {
	post, err := m.Posterior(b.Prior)
	if err != nil {
		return nil, err
	}
	return post.Intervals(level)
}

// Posterior returns the Dirichlet posterior of all datasets pooled,
// the same distribution Combine computes from the records. A nil
// prior is a flat prior of 1 per allele.
func (m *CountMatrix) Posterior(prior map[string]float64) (*Posterior, error) {
	if prior == nil {
		prior = DefaultPrior(m.Alleles)
	} else if err := checkPrior(prior, m.Alleles); err != nil {
		return nil, err
	}
	totals := m.Totals()
	combined := make([]Combined, len(m.Alleles))
	for j, a := range m.Alleles {
		combined[j] = Combined{Allele: a, C: totals[j], Alpha: prior[a]}
	}
	return NewPosterior(combined)
}

// Frequencies returns dataset i's allele frequencies, in m.Alleles
// order, after adding pseudocount to every count. A dataset's
// frequency vector usually has zeros (alleles it never observed),
// where a Dirichlet density is 0 or undefined; a small pseudocount
// makes the vector usable with Posterior.LogProb.
func (m *CountMatrix) Frequencies(i int, pseudocount float64) []float64 {
	row := mat.Row(nil, i, m.Counts)
	total := 0.0
	for j := range row {
		row[j] += pseudocount
		total += row[j]
	}
	if total > 0 {
		floats.Scale(1/total, row)
	}
	return row
}

// HeterogeneityResult is a Pearson chi-square test of whether all
// datasets share the same allele frequencies.
type HeterogeneityResult struct {
	Statistic float64 `json:"statistic"`
	DF        int     `json:"df"`
	P         float64 `json:"p"`
	// Datasets and alleles with at least one observation.
	Datasets int `json:"datasets"`
	Alleles  int `json:"alleles"`
}

// Heterogeneity tests the count matrix for between-dataset
// differences. Alleles with no observations in any dataset are
// ignored. With fewer than two datasets or alleles there is nothing to
// test and P is 1.
func Heterogeneity(m *CountMatrix) HeterogeneityResult {
	rows, cols := m.Counts.Dims()
	rowSum := make([]float64, rows)
	colSum := make([]float64, cols)
	total := 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := m.Counts.At(i, j)
			rowSum[i] += v
			colSum[j] += v
			total += v
		}
	}
	var usedCols, usedRows []int
	for j, s := range colSum {
		if s > 0 {
			usedCols = append(usedCols, j)
		}
	}
	for i, s := range rowSum {
		if s > 0 {
			usedRows = append(usedRows, i)
		}
	}
	res := HeterogeneityResult{Datasets: len(usedRows), Alleles: len(usedCols), P: 1}
	if len(usedRows) < 2 || len(usedCols) < 2 {
		return res
	}
	for _, i := range usedRows {
		for _, j := range usedCols {
			exp := rowSum[i] * colSum[j] / total
			d := m.Counts.At(i, j) - exp
			res.Statistic += d * d / exp
		}
	}
	res.DF = (len(usedRows) - 1) * (len(usedCols) - 1)
	res.P = distuv.ChiSquared{K: float64(res.DF)}.Survival(res.Statistic)
	return res
}
