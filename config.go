// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hlafreq

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/arvados/hlafreq/allele"
	"gopkg.in/yaml.v3"
)

// weightsConfig is the content of a -weights-file. Exactly one of
// the two tables must be given.
//
//	population_sizes:
//	  Thailand: 66813717
//	  Uganda: 42885900
type weightsConfig struct {
	// Size of the population each dataset represents. Datasets
	// are weighted by 2n scaled by their share of the total.
	PopulationSizes map[string]float64 `yaml:"population_sizes"`
	// Per-dataset multipliers of the 2n weight. Datasets not
	// listed get 1.
	Multipliers map[string]float64 `yaml:"multipliers"`
}

func (wc *weightsConfig) weighting(key allele.DatasetKey) (allele.Weighting, error) {
	switch {
	case len(wc.PopulationSizes) > 0 && len(wc.Multipliers) > 0:
		return nil, errors.New("weights file has both population_sizes and multipliers")
	case len(wc.PopulationSizes) > 0:
		return allele.PopulationWeighting(wc.PopulationSizes, key)
	case len(wc.Multipliers) > 0:
		for d, m := range wc.Multipliers {
			if !(m >= 0) {
				return nil, fmt.Errorf("invalid multiplier %g for %q", m, d)
			}
		}
		return func(r allele.Record) float64 {
			m, ok := wc.Multipliers[key(r)]
			if !ok {
				m = 1
			}
			return allele.DiploidCount(r) * m
		}, nil
	default:
		return nil, errors.New("weights file has neither population_sizes nor multipliers")
	}
}

// priorConfig is the content of a -prior-file.
//
//	default: 1
//	alleles:
//	  "A*02:01": 5
type priorConfig struct {
	// Concentration for alleles not listed in Alleles. If zero,
	// every allele must be listed.
	Default float64            `yaml:"default"`
	Alleles map[string]float64 `yaml:"alleles"`
	// Positional alternative to Alleles, aligned with the alleles
	// in alphabetical order.
	Values []float64 `yaml:"values"`
}

// prior returns the prior mapping for the given alleles.
func (pc *priorConfig) prior(alleles []string) (map[string]float64, error) {
	if len(pc.Values) > 0 {
		if len(pc.Alleles) > 0 || pc.Default != 0 {
			return nil, errors.New("prior file has values together with alleles or default")
		}
		return allele.AlignPrior(pc.Values, alleles)
	}
	prior := map[string]float64{}
	for a, v := range pc.Alleles {
		prior[a] = v
	}
	if pc.Default != 0 {
		for _, a := range alleles {
			if _, ok := prior[a]; !ok {
				prior[a] = pc.Default
			}
		}
	}
	return prior, nil
}

// loadYAML decodes fnm into v, rejecting unknown keys.
func loadYAML(fnm string, v interface{}) error {
	f, err := os.Open(fnm)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	err = dec.Decode(v)
	if err != nil {
		return fmt.Errorf("%s: %w", fnm, err)
	}
	return nil
}

func distinctAlleles(records []allele.Record) []string {
	seen := map[string]bool{}
	var alleles []string
	for _, r := range records {
		if !seen[r.Allele] {
			seen[r.Allele] = true
			alleles = append(alleles, r.Allele)
		}
	}
	sort.Strings(alleles)
	return alleles
}
