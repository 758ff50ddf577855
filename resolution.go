// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hlafreq

import (
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/arvados/hlafreq/allele"
	log "github.com/sirupsen/logrus"
)

type resolutioncmd struct{}

func (cmd *resolutioncmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
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
	fields := flags.Int("fields", 0, "truncate alleles to this many `fields` and merge the results (default: only report resolution)")
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
	single, counts := allele.CheckResolution(records)
	var res []int
	for n := range counts {
		res = append(res, n)
	}
	sort.Ints(res)
	if *fields == 0 {
		if !single {
			log.Warnf("alleles are reported at %d different resolutions", len(res))
		}
		fmt.Fprintln(stdout, "fields,records")
		for _, n := range res {
			fmt.Fprintf(stdout, "%d,%d\n", n, counts[n])
		}
		return 0
	}
	for _, n := range res {
		log.Infof("%d records at %d fields", counts[n], n)
	}
	out, err := allele.DecreaseResolution(records, *fields, key)
	if err != nil {
		return 1
	}
	log.Infof("%d records after reducing to %d fields", len(out), *fields)
	err = writeCSV(*outputFilename, stdout, out)
	if err != nil {
		return 1
	}
	return 0
}
