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

type completecmd struct{}

func (cmd *completecmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	outputFilename := flags.String("o", "-", "output `file` (complete studies only)")
	lower := flags.Float64("lower", allele.DefaultBounds.Lower, "minimum allele_freq sum of a complete study")
	upper := flags.Float64("upper", allele.DefaultBounds.Upper, "maximum allele_freq sum of a complete study")
	strict := flags.Bool("strict", false, "fail instead of dropping incomplete studies")
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
	for _, d := range allele.DuplicateAlleles(records, key) {
		log.Warnf("allele %q appears %d times in dataset %q", d.Allele, d.Count, d.Dataset)
	}
	bounds := allele.Bounds{Lower: *lower, Upper: *upper}
	kept, dropped := allele.OnlyComplete(records, bounds, key)
	if len(dropped) > 0 && *strict {
		err = &allele.IncompleteStudyError{Studies: dropped, Bounds: bounds}
		return 1
	}
	for _, s := range dropped {
		log.Warnf("dropping incomplete study %q locus %s: allele_freq sums to %g", s.Dataset, s.Loci, s.Total)
	}
	log.Infof("kept %d of %d records", len(kept), len(records))
	err = writeCSV(*outputFilename, stdout, kept)
	if err != nil {
		return 1
	}
	return 0
}

type expandcmd struct{}

func (cmd *expandcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	outputFilename := flags.String("o", "-", "output `file`")
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
	expanded, err := allele.ExpandUnmeasured(records, key)
	if err != nil {
		return 1
	}
	log.Infof("added %d zero-frequency records for unmeasured alleles", len(expanded)-len(records))
	err = writeCSV(*outputFilename, stdout, expanded)
	if err != nil {
		return 1
	}
	return 0
}
