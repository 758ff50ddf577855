// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hlafreq

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/arvados/hlafreq/allele"
	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
)

// matrixFlags holds the flags shared by commands that build a count
// matrix.
type matrixFlags struct {
	input       recordInput
	weighting   string
	weightsFile string
}

func (mf *matrixFlags) setFlags(flags *flag.FlagSet) {
	mf.input.setFlags(flags)
	flags.StringVar(&mf.weighting, "weights", "2n", "dataset weighting: 2n, n, or weight (the weight column)")
	flags.StringVar(&mf.weightsFile, "weights-file", "", "YAML `file` with population_sizes or multipliers per dataset (overrides -weights)")
}

func (mf *matrixFlags) load(stdin io.Reader) (*allele.CountMatrix, error) {
	records, key, err := mf.input.load(stdin)
	if err != nil {
		return nil, err
	}
	var weight allele.Weighting
	if mf.weightsFile != "" {
		var wc weightsConfig
		err = loadYAML(mf.weightsFile, &wc)
		if err != nil {
			return nil, err
		}
		weight, err = wc.weighting(key)
	} else {
		weight, err = allele.WeightingByName(mf.weighting)
	}
	if err != nil {
		return nil, err
	}
	if loci := allele.Loci(records); len(loci) > 1 {
		return nil, &allele.MultiLocusError{Loci: loci}
	}
	m, err := allele.NewCountMatrix(records, weight, key)
	if err != nil {
		return nil, err
	}
	log.Infof("count matrix: %d datasets x %d alleles", len(m.Datasets), len(m.Alleles))
	return m, nil
}

type countMatrix struct{}

func (cmd *countMatrix) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var mf matrixFlags
	mf.setFlags(flags)
	outputFilename := flags.String("o", "-", "output numpy `file` (datasets x alleles)")
	raw := flags.Bool("raw", false, "output fractional effective counts instead of rounding to integers")
	allelesFilename := flags.String("output-alleles", "", "also output column labels csv `file`")
	datasetsFilename := flags.String("output-datasets", "", "also output row labels csv `file`")
	intervalsFilename := flags.String("output-intervals", "", "also output pooled Beta-marginal credible intervals csv `file`")
	level := flags.Float64("level", allele.DefaultLevel, "credible interval `size` for -output-intervals")
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

	m, err := mf.load(stdin)
	if err != nil {
		return 1
	}
	if *allelesFilename != "" {
		err = writeLabels(*allelesFilename, m.Alleles)
		if err != nil {
			return 1
		}
	}
	if *datasetsFilename != "" {
		err = writeLabels(*datasetsFilename, m.Datasets)
		if err != nil {
			return 1
		}
	}
	if *intervalsFilename != "" {
		var est allele.IntervalEstimator = allele.BetaMarginal{}
		var ivs []allele.Interval
		ivs, err = est.Intervals(m, *level)
		if err != nil {
			return 1
		}
		err = writeCSV(*intervalsFilename, stdout, ivs)
		if err != nil {
			return 1
		}
	}

	counts := m.Counts
	if !*raw {
		counts = m.Rounded()
	}
	rows, cols := counts.Dims()
	out := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		out = append(out, counts.RawRowView(i)...)
	}

	output, err := createOutput(*outputFilename, stdout)
	if err != nil {
		return 1
	}
	defer output.Close()
	bufw := bufio.NewWriter(output)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return 1
	}
	npw.Shape = []int{rows, cols}
	err = npw.WriteFloat64(out)
	if err != nil {
		return 1
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}

func writeLabels(fnm string, names []string) error {
	log.Infof("writing labels to %s", fnm)
	f, err := os.OpenFile(fnm, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}
	defer f.Close()
	for i, name := range names {
		_, err = fmt.Fprintf(f, "%d,%q\n", i, name)
		if err != nil {
			return fmt.Errorf("write %s: %w", fnm, err)
		}
	}
	err = f.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", fnm, err)
	}
	return nil
}

type datasetScore struct {
	Dataset    string  `csv:"dataset"`
	LogDensity float64 `csv:"log_density"`
}

type heterogeneitycmd struct{}

func (cmd *heterogeneitycmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var mf matrixFlags
	mf.setFlags(flags)
	outputFilename := flags.String("o", "-", "output JSON `file`")
	scoresFilename := flags.String("output-scores", "", "also output each dataset's log density under the pooled posterior, csv `file`")
	pseudocount := flags.Float64("pseudocount", 0.5, "`count` added to every allele before scoring a dataset")
	alpha := flags.Float64("alpha", 0.05, "warn when the p-value is below this `threshold`")
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

	m, err := mf.load(stdin)
	if err != nil {
		return 1
	}
	res := allele.Heterogeneity(m)
	if res.P < *alpha {
		log.Warnf("datasets differ (chi-square %g, df %d, p %g): pooled credible intervals understate uncertainty", res.Statistic, res.DF, res.P)
	}
	if *scoresFilename != "" {
		var post *allele.Posterior
		post, err = m.Posterior(nil)
		if err != nil {
			return 1
		}
		scores := make([]datasetScore, len(m.Datasets))
		for i, d := range m.Datasets {
			scores[i] = datasetScore{Dataset: d, LogDensity: post.LogProb(m.Frequencies(i, *pseudocount))}
		}
		err = writeCSV(*scoresFilename, stdout, scores)
		if err != nil {
			return 1
		}
	}
	output, err := createOutput(*outputFilename, stdout)
	if err != nil {
		return 1
	}
	defer output.Close()
	err = json.NewEncoder(output).Encode(res)
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}
