// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hlafreq

import (
	"flag"
	"fmt"
	"io"

	"github.com/arvados/hlafreq/allele"
	log "github.com/sirupsen/logrus"
)

// combineFlags holds the flags shared by commands that run Combine.
type combineFlags struct {
	weighting    string
	weightsFile  string
	priorFile    string
	lower        float64
	upper        float64
	fields       int
	onlyComplete bool
	expand       bool
	multiLocus   bool
}

func (cf *combineFlags) setFlags(flags *flag.FlagSet) {
	flags.StringVar(&cf.weighting, "weights", "2n", "dataset weighting: 2n, n, or weight (the weight column)")
	flags.StringVar(&cf.weightsFile, "weights-file", "", "YAML `file` with population_sizes or multipliers per dataset (overrides -weights)")
	flags.StringVar(&cf.priorFile, "prior-file", "", "YAML `file` with prior concentration per allele (default 1 per allele)")
	flags.Float64Var(&cf.lower, "lower", allele.DefaultBounds.Lower, "minimum allele_freq sum of a complete study")
	flags.Float64Var(&cf.upper, "upper", allele.DefaultBounds.Upper, "maximum allele_freq sum of a complete study")
	flags.IntVar(&cf.fields, "fields", 0, "first reduce alleles to this many `fields` (default: require uniform resolution)")
	flags.BoolVar(&cf.onlyComplete, "only-complete", false, "drop incomplete studies instead of failing")
	flags.BoolVar(&cf.expand, "expand", true, "add zero-frequency records for alleles a dataset did not report")
	flags.BoolVar(&cf.multiLocus, "multi-locus", false, "allow records from more than one locus")
}

// combine applies the optional resolution and completeness steps and
// combines records.
func (cf *combineFlags) combine(records []allele.Record, key allele.DatasetKey) ([]allele.Combined, error) {
	var err error
	if cf.fields > 0 {
		records, err = allele.DecreaseResolution(records, cf.fields, key)
		if err != nil {
			return nil, err
		}
	}
	bounds := allele.Bounds{Lower: cf.lower, Upper: cf.upper}
	if cf.onlyComplete {
		var dropped []allele.Study
		records, dropped = allele.OnlyComplete(records, bounds, key)
		for _, s := range dropped {
			log.Warnf("dropping incomplete study %q locus %s: allele_freq sums to %g", s.Dataset, s.Loci, s.Total)
		}
		if len(records) == 0 {
			return nil, &allele.IncompleteStudyError{Studies: dropped, Bounds: bounds}
		}
	}
	opts := allele.Options{
		Dataset:        key,
		Bounds:         bounds,
		SkipExpand:     !cf.expand,
		SkipLocusCheck: cf.multiLocus,
	}
	if cf.weightsFile != "" {
		var wc weightsConfig
		err = loadYAML(cf.weightsFile, &wc)
		if err != nil {
			return nil, err
		}
		opts.Weighting, err = wc.weighting(key)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cf.weightsFile, err)
		}
	} else {
		opts.Weighting, err = allele.WeightingByName(cf.weighting)
		if err != nil {
			return nil, err
		}
	}
	if cf.priorFile != "" {
		var pc priorConfig
		err = loadYAML(cf.priorFile, &pc)
		if err != nil {
			return nil, err
		}
		opts.Prior, err = pc.prior(distinctAlleles(records))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cf.priorFile, err)
		}
	}
	return allele.Combine(records, opts)
}

type combinecmd struct{}

func (cmd *combinecmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var input recordInput
	input.setFlags(flags)
	var cf combineFlags
	cf.setFlags(flags)
	outputFilename := flags.String("o", "-", "output `file` (allele,loci,allele_freq,c,sample_size,alpha)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() > 0 {
		err = fmt.Errorf("errant command line arguments after parsed flags: %v", flags.Args())
		return 2
	}

	records, key, err := input.load(stdin)
	if err != nil {
		return 1
	}
	caf, err := cf.combine(records, key)
	if err != nil {
		return 1
	}
	logCombined(caf)
	err = writeCSV(*outputFilename, stdout, caf)
	if err != nil {
		return 1
	}
	return 0
}

func logCombined(caf []allele.Combined) {
	n := 0.0
	for _, c := range caf {
		if c.SampleSize > n {
			n = c.SampleSize
		}
	}
	log.Infof("combined %d alleles, total sample size %g", len(caf), n)
	if post, err := allele.NewPosterior(caf); err == nil {
		log.Debugf("posterior entropy %g", post.Entropy())
	}
}
