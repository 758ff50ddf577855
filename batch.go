// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hlafreq

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/arvados/hlafreq/allele"
	log "github.com/sirupsen/logrus"
)

// groupedCombined is a consensus row for one group of input files,
// e.g., a region.
type groupedCombined struct {
	Group      string  `csv:"group"`
	Allele     string  `csv:"allele"`
	Loci       string  `csv:"loci"`
	AlleleFreq float64 `csv:"allele_freq"`
	C          float64 `csv:"c"`
	SampleSize float64 `csv:"sample_size"`
	Alpha      float64 `csv:"alpha"`
}

// datasetName returns the dataset name of an input file: its base
// name without .gz and .csv extensions.
func datasetName(fnm string) string {
	name := filepath.Base(fnm)
	name = strings.TrimSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".csv")
	return name
}

type batchcmd struct{}

func (cmd *batchcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	ignoreG := flags.Bool("ignore-g", true, "strip trailing \"G\" allele group suffix")
	dataset := flags.String("dataset", "population", "`column` identifying a dataset within each file: population or country")
	locus := flags.String("locus", "", "only use records for this `locus` (required if files have more than one)")
	var cf combineFlags
	cf.setFlags(flags)
	jobs := flags.Int("j", runtime.NumCPU(), "number of files to process in parallel")
	sizesFilename := flags.String("sizes-file", "", "YAML weights `file` keyed by input file dataset name, for the second-level combination (default 2n)")
	countriesFilename := flags.String("countries", "", "countries table `file` (Country,Region,largeRegion; latin-1), required for -group-by")
	groupBy := flags.String("group-by", "", "combine files per region or large-region instead of all together")
	outputDir := flags.String("output-dir", "", "also write each file's consensus to `dir`/{name}.csv")
	outputFilename := flags.String("o", "-", "output `file`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() == 0 {
		err = errors.New("no input files")
		return 2
	} else if cf.multiLocus {
		err = errors.New("batch combines one locus at a time, use -locus instead of -multi-locus")
		return 2
	} else if *groupBy != "" && *groupBy != "region" && *groupBy != "large-region" {
		err = fmt.Errorf("invalid -group-by %q (expected region or large-region)", *groupBy)
		return 2
	} else if *groupBy != "" && *countriesFilename == "" {
		err = errors.New("-group-by requires -countries")
		return 2
	}
	key, err := allele.DatasetKeyByName(*dataset)
	if err != nil {
		return 2
	}

	infiles := flags.Args()
	names := make([]string, len(infiles))
	seen := map[string]string{}
	for i, fnm := range infiles {
		names[i] = datasetName(fnm)
		if prev, ok := seen[names[i]]; ok {
			err = fmt.Errorf("input files %s and %s have the same dataset name %q", prev, fnm, names[i])
			return 2
		}
		seen[names[i]] = fnm
	}

	cafs := make([][]allele.Combined, len(infiles))
	thr := throttle{Max: *jobs}
	for i, fnm := range infiles {
		i, fnm := i, fnm
		thr.Go(func() error {
			records, err := readRecords(fnm, stdin, *ignoreG)
			if err != nil {
				return err
			}
			if *locus != "" {
				records = filterLocus(records, *locus)
			}
			if len(records) == 0 {
				return fmt.Errorf("%s: %w", fnm, allele.ErrNoRecords)
			}
			caf, err := cf.combine(records, key)
			if err != nil {
				return fmt.Errorf("%s: %w", fnm, err)
			}
			log.Infof("%s: combined %d records into %d alleles", names[i], len(records), len(caf))
			cafs[i] = caf
			if *outputDir != "" {
				return writeCSV(filepath.Join(*outputDir, names[i]+".csv"), nil, caf)
			}
			return nil
		})
	}
	err = thr.Wait()
	if err != nil {
		return 1
	}

	groups := map[string][]int{}
	if *groupBy == "" {
		for i := range infiles {
			groups[""] = append(groups[""], i)
		}
	} else {
		var countries []Country
		var f io.ReadCloser
		f, err = zopen(*countriesFilename, stdin)
		if err != nil {
			return 1
		}
		defer f.Close()
		countries, err = LoadCountries(f)
		if err != nil {
			err = fmt.Errorf("%s: %w", *countriesFilename, err)
			return 1
		}
		region := map[string]string{}
		for _, c := range countries {
			if *groupBy == "region" {
				region[c.Country] = c.Region
			} else {
				region[c.Country] = c.LargeRegion
			}
		}
		for i, name := range names {
			r, ok := region[name]
			if !ok {
				r, ok = region[strings.Replace(name, "+", " ", -1)]
			}
			if !ok {
				err = fmt.Errorf("%s: dataset name %q not found in %s", infiles[i], name, *countriesFilename)
				return 1
			}
			groups[r] = append(groups[r], i)
		}
	}

	opts := allele.Options{Dataset: allele.ByCountry}
	if *sizesFilename != "" {
		var wc weightsConfig
		err = loadYAML(*sizesFilename, &wc)
		if err != nil {
			return 1
		}
		opts.Weighting, err = wc.weighting(allele.ByCountry)
		if err != nil {
			err = fmt.Errorf("%s: %w", *sizesFilename, err)
			return 1
		}
	}

	var groupNames []string
	for g := range groups {
		groupNames = append(groupNames, g)
	}
	sort.Strings(groupNames)
	var out []groupedCombined
	for _, g := range groupNames {
		var records []allele.Record
		for _, i := range groups[g] {
			records = append(records, allele.ToRecords(cafs[i], names[i])...)
		}
		var caf []allele.Combined
		caf, err = allele.Combine(records, opts)
		if err != nil {
			if g != "" {
				err = fmt.Errorf("group %q: %w", g, err)
			}
			return 1
		}
		log.Infof("group %q: combined %d datasets into %d alleles", g, len(groups[g]), len(caf))
		for _, c := range caf {
			out = append(out, groupedCombined{
				Group:      g,
				Allele:     c.Allele,
				Loci:       c.Loci,
				AlleleFreq: c.AlleleFreq,
				C:          c.C,
				SampleSize: c.SampleSize,
				Alpha:      c.Alpha,
			})
		}
	}
	if *groupBy == "" {
		// Same columns as combine output.
		caf := make([]allele.Combined, len(out))
		for i, row := range out {
			caf[i] = allele.Combined{Allele: row.Allele, Loci: row.Loci, AlleleFreq: row.AlleleFreq, C: row.C, SampleSize: row.SampleSize, Alpha: row.Alpha}
		}
		err = writeCSV(*outputFilename, stdout, caf)
	} else {
		err = writeCSV(*outputFilename, stdout, out)
	}
	if err != nil {
		return 1
	}
	return 0
}
