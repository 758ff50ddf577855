// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package allele

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultLevel is the default credible interval size.
const DefaultLevel = 0.95

// BetaCI returns the central credible interval of a Beta(alpha, beta)
// distribution containing level of its probability mass, i.e., its
// (1-level)/2 and 1-(1-level)/2 quantiles.
func BetaCI(alpha, beta, level float64) (lo, hi float64, err error) {
	if !(alpha > 0) || !(beta > 0) || math.IsInf(alpha, 0) || math.IsInf(beta, 0) {
		return math.NaN(), math.NaN(), fmt.Errorf("invalid beta parameters (%g, %g)", alpha, beta)
	}
	if !(level > 0 && level < 1) {
		return math.NaN(), math.NaN(), fmt.Errorf("credible interval level %g is not between 0 and 1", level)
	}
	dist := distuv.Beta{Alpha: alpha, Beta: beta}
	tail := (1 - level) / 2
	return dist.Quantile(tail), dist.Quantile(1 - tail), nil
}

// Interval is a credible interval for one allele's frequency.
type Interval struct {
	Allele     string  `csv:"allele"`
	AlleleFreq float64 `csv:"allele_freq"`
	Lower      float64 `csv:"lo"`
	Upper      float64 `csv:"hi"`
}

// Posterior is the Dirichlet posterior of a consensus table, with
// concentration alpha+c for each allele.
//
// Its marginal intervals pool all studies into one multinomial sample
// and ignore between-study variance, so they are narrower than the
// real uncertainty when studies disagree (see Heterogeneity). A
// hierarchical Dirichlet-Multinomial model, fitted outside this
// package on a CountMatrix, gives wider intervals.
type Posterior struct {
	Alleles       []string
	Concentration []float64
}

// NewPosterior returns the posterior for a Combine result.
func NewPosterior(combined []Combined) (*Posterior, error) {
	if len(combined) == 0 {
		return nil, ErrNoRecords
	}
	p := &Posterior{
		Alleles:       make([]string, len(combined)),
		Concentration: make([]float64, len(combined)),
	}
	for i, c := range combined {
		conc := c.Concentration()
		if !(conc > 0) || math.IsInf(conc, 0) {
			return nil, &PriorError{Invalid: []string{c.Allele}}
		}
		p.Alleles[i] = c.Allele
		p.Concentration[i] = conc
	}
	return p, nil
}

func (p *Posterior) total() float64 {
	return floats.Sum(p.Concentration)
}

// Mean returns the posterior mean frequency of each allele.
func (p *Posterior) Mean() []float64 {
	mean := make([]float64, len(p.Concentration))
	floats.ScaleTo(mean, 1/p.total(), p.Concentration)
	return mean
}

// Marginal returns the Beta distribution of allele i's frequency.
func (p *Posterior) Marginal(i int) distuv.Beta {
	return distuv.Beta{Alpha: p.Concentration[i], Beta: p.total() - p.Concentration[i]}
}

// Interval returns the central credible interval of allele i.
func (p *Posterior) Interval(i int, level float64) (Interval, error) {
	m := p.Marginal(i)
	lo, hi, err := BetaCI(m.Alpha, m.Beta, level)
	if err != nil {
		return Interval{}, fmt.Errorf("allele %q: %w", p.Alleles[i], err)
	}
	return Interval{
		Allele:     p.Alleles[i],
		AlleleFreq: m.Alpha / (m.Alpha + m.Beta),
		Lower:      lo,
		Upper:      hi,
	}, nil
}

// Intervals returns the central credible interval of every allele.
func (p *Posterior) Intervals(level float64) ([]Interval, error) {
	out := make([]Interval, len(p.Alleles))
	for i := range p.Alleles {
		iv, err := p.Interval(i, level)
		if err != nil {
			return nil, err
		}
		out[i] = iv
	}
	return out, nil
}

// Density returns the marginal probability density of allele i at
// frequency x.
func (p *Posterior) Density(i int, x float64) float64 {
	return p.Marginal(i).Prob(x)
}

// LogProb returns the Dirichlet log density of a full frequency
// vector x (in the same allele order), e.g., one study's reported
// frequencies. x must sum to 1.
func (p *Posterior) LogProb(x []float64) float64 {
	return distmv.NewDirichlet(p.Concentration, nil).LogProb(x)
}

// Entropy returns the differential entropy of the posterior.
func (p *Posterior) Entropy() float64 {
	k := float64(len(p.Concentration))
	a0 := p.total()
	lg0, _ := math.Lgamma(a0)
	logB := -lg0
	sum := 0.0
	for _, a := range p.Concentration {
		lg, _ := math.Lgamma(a)
		logB += lg
		sum += (a - 1) * mathext.Digamma(a)
	}
	return logB + (a0-k)*mathext.Digamma(a0) - sum
}
