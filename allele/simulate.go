// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package allele

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

// Simulation is a synthetic set of studies drawn from a hierarchical
// Dirichlet-Multinomial model with known global frequencies.
type Simulation struct {
	Alleles []string
	// Global allele frequencies, drawn from a flat Dirichlet.
	Global []float64
	// Frequencies of each population, drawn from
	// Dirichlet(Global × concentration).
	PopulationFreq [][]float64
	// Observed allele copies per population (2 × SampleSizes[i]
	// draws from PopulationFreq[i]).
	Counts      [][]int
	SampleSizes []int
}

// SimulationConfig parameterizes Simulate.
type SimulationConfig struct {
	Locus         string
	Alleles       int
	Concentration float64
	Populations   int
	// Sample sizes (individuals) are uniform in [MinSampleSize,
	// MaxSampleSize).
	MinSampleSize int
	MaxSampleSize int
}

// Simulate draws a Simulation. Low concentration means populations
// differ a lot from the global frequencies.
func Simulate(cfg SimulationConfig, src rand.Source) (*Simulation, error) {
	if cfg.Alleles < 2 {
		return nil, fmt.Errorf("need at least 2 alleles, got %d", cfg.Alleles)
	}
	if cfg.Populations < 1 {
		return nil, fmt.Errorf("need at least 1 population, got %d", cfg.Populations)
	}
	if !(cfg.Concentration > 0) {
		return nil, fmt.Errorf("concentration must be positive, got %g", cfg.Concentration)
	}
	if cfg.MinSampleSize < 1 || cfg.MaxSampleSize <= cfg.MinSampleSize {
		return nil, fmt.Errorf("invalid sample size range [%d, %d)", cfg.MinSampleSize, cfg.MaxSampleSize)
	}
	if cfg.Locus == "" {
		cfg.Locus = "X"
	}
	rnd := rand.New(src)

	flat := make([]float64, cfg.Alleles)
	for i := range flat {
		flat[i] = 1
	}
	sim := &Simulation{
		Global: distmv.NewDirichlet(flat, src).Rand(nil),
	}
	for i := 0; i < cfg.Alleles; i++ {
		sim.Alleles = append(sim.Alleles, fmt.Sprintf("%s*%02d", cfg.Locus, i+1))
	}

	scaled := make([]float64, cfg.Alleles)
	for i, g := range sim.Global {
		scaled[i] = g * cfg.Concentration
		if scaled[i] <= 0 {
			// Dirichlet parameters must be positive.
			scaled[i] = 1e-12
		}
	}
	popDist := distmv.NewDirichlet(scaled, src)
	for p := 0; p < cfg.Populations; p++ {
		freq := popDist.Rand(nil)
		size := cfg.MinSampleSize + rnd.Intn(cfg.MaxSampleSize-cfg.MinSampleSize)
		counts := make([]int, cfg.Alleles)
		cat := distuv.NewCategorical(freq, src)
		for i := 0; i < 2*size; i++ {
			counts[int(cat.Rand())]++
		}
		sim.PopulationFreq = append(sim.PopulationFreq, freq)
		sim.Counts = append(sim.Counts, counts)
		sim.SampleSizes = append(sim.SampleSizes, size)
	}
	return sim, nil
}

// Records returns the simulated studies as allele frequency records,
// one dataset per population ("pop1", "pop2", ...). Alleles a
// population never sampled are omitted, as a real study would omit
// them.
func (sim *Simulation) Records() []Record {
	var out []Record
	for p, counts := range sim.Counts {
		name := fmt.Sprintf("pop%d", p+1)
		copies := float64(2 * sim.SampleSizes[p])
		for i, n := range counts {
			if n == 0 {
				continue
			}
			out = append(out, Record{
				Allele:     sim.Alleles[i],
				Loci:       Locus(sim.Alleles[i]),
				Population: name,
				AlleleFreq: float64(n) / copies,
				SampleSize: Count(sim.SampleSizes[p]),
			})
		}
	}
	return out
}
