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

type coveragecmd struct{}

func (cmd *coveragecmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "-", "combined allele frequency `file` (output of combine)")
	outputFilename := flags.String("o", "-", "output `file` (allele,allele_freq,cumulative_freq,coverage)")
	target := flags.Float64("target", 0, "log how many alleles are needed to reach this population `coverage`")
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

	caf, err := readCombined(*inputFilename, stdin)
	if err != nil {
		return 1
	}
	rows := allele.CumulativeCoverage(caf)
	for _, row := range rows {
		if row.Cumulative > 1+1e-9 {
			log.Warnf("cumulative allele_freq exceeds 1 (%g) at %s: coverage values from here on are not meaningful", row.Cumulative, row.Allele)
			break
		}
	}
	if *target > 0 {
		reached := false
		for i, row := range rows {
			if row.Coverage >= *target {
				log.Infof("%d alleles (through %s) cover %g of the population", i+1, row.Allele, row.Coverage)
				reached = true
				break
			}
		}
		if !reached {
			log.Warnf("coverage %g not reached with all %d alleles", *target, len(rows))
		}
	}
	err = writeCSV(*outputFilename, stdout, rows)
	if err != nil {
		return 1
	}
	return 0
}
