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

type intervalscmd struct{}

func (cmd *intervalscmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "-", "combined allele frequency `file` (output of combine)")
	outputFilename := flags.String("o", "-", "output `file` (allele,allele_freq,lo,hi)")
	level := flags.Float64("level", allele.DefaultLevel, "credible interval `size`")
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
	post, err := allele.NewPosterior(caf)
	if err != nil {
		return 1
	}
	ivs, err := post.Intervals(*level)
	if err != nil {
		return 1
	}
	log.Infof("%d alleles, posterior entropy %g", len(ivs), post.Entropy())
	err = writeCSV(*outputFilename, stdout, ivs)
	if err != nil {
		return 1
	}
	return 0
}

type densityRow struct {
	Allele  string  `csv:"allele"`
	X       float64 `csv:"x"`
	Density float64 `csv:"density"`
}

type densitycmd struct{}

func (cmd *densitycmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "-", "combined allele frequency `file` (output of combine)")
	outputFilename := flags.String("o", "-", "output `file` (allele,x,density)")
	alleleName := flags.String("allele", "", "only output this `allele` (default all)")
	points := flags.Int("points", 100, "number of grid `points` per allele")
	lo := flags.Float64("min", 0, "lower end of frequency grid")
	hi := flags.Float64("max", 1, "upper end of frequency grid")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() > 0 {
		err = fmt.Errorf("errant command line arguments after parsed flags: %v", flags.Args())
		return 2
	} else if *points < 1 || !(*lo >= 0 && *lo < *hi && *hi <= 1) {
		err = fmt.Errorf("invalid grid: %d points in [%g, %g]", *points, *lo, *hi)
		return 2
	}

	caf, err := readCombined(*inputFilename, stdin)
	if err != nil {
		return 1
	}
	post, err := allele.NewPosterior(caf)
	if err != nil {
		return 1
	}
	var rows []densityRow
	step := (*hi - *lo) / float64(*points)
	for i, name := range post.Alleles {
		if *alleleName != "" && name != *alleleName {
			continue
		}
		for j := 0; j < *points; j++ {
			// Midpoints avoid the pdf's singularities at 0 and 1.
			x := *lo + (float64(j)+0.5)*step
			rows = append(rows, densityRow{Allele: name, X: x, Density: post.Density(i, x)})
		}
	}
	if len(rows) == 0 {
		err = fmt.Errorf("allele %q not found in %s", *alleleName, *inputFilename)
		return 1
	}
	err = writeCSV(*outputFilename, stdout, rows)
	if err != nil {
		return 1
	}
	return 0
}
