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
	"golang.org/x/exp/rand"
)

type truthRow struct {
	Allele     string  `csv:"allele"`
	AlleleFreq float64 `csv:"allele_freq"`
}

type simulatecmd struct{}

func (cmd *simulatecmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var cfg allele.SimulationConfig
	flags.StringVar(&cfg.Locus, "locus", "X", "`locus` name used in allele names")
	flags.IntVar(&cfg.Alleles, "alleles", 10, "number of alleles")
	flags.Float64Var(&cfg.Concentration, "concentration", 50, "population concentration (low values make populations differ more)")
	flags.IntVar(&cfg.Populations, "populations", 5, "number of simulated studies")
	flags.IntVar(&cfg.MinSampleSize, "min-sample-size", 20, "minimum individuals per study")
	flags.IntVar(&cfg.MaxSampleSize, "max-sample-size", 500, "maximum individuals per study (exclusive)")
	seed := flags.Uint64("seed", 0, "random `seed` (default: random)")
	outputFilename := flags.String("o", "-", "output record `file`")
	truthFilename := flags.String("output-truth", "", "also output the global allele frequencies csv `file`")
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

	if *seed == 0 {
		*seed = rand.Uint64()
	}
	log.Infof("simulating with seed %d", *seed)
	sim, err := allele.Simulate(cfg, rand.NewSource(*seed))
	if err != nil {
		return 2
	}
	if *truthFilename != "" {
		truth := make([]truthRow, len(sim.Alleles))
		for i, a := range sim.Alleles {
			truth[i] = truthRow{Allele: a, AlleleFreq: sim.Global[i]}
		}
		err = writeCSV(*truthFilename, stdout, truth)
		if err != nil {
			return 1
		}
	}
	err = writeCSV(*outputFilename, stdout, sim.Records())
	if err != nil {
		return 1
	}
	return 0
}
