// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hlafreq

import (
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/arvados/hlafreq/allele"
	"github.com/gocarina/gocsv"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"
)

// Country is a row of the countries reference table.
type Country struct {
	Country string `csv:"Country"`
	Region  string `csv:"Region"`
	// Coarser grouping of Region.
	LargeRegion string `csv:"largeRegion"`
}

// Supertype assigns an HLA class I allele to a supertype.
type Supertype struct {
	Allele    string `csv:"allele"`
	Supertype string `csv:"supertype"`
}

// Unclassified is the supertype of alleles missing from the
// supertype table.
const Unclassified = "Unclassified"

// LoadCountries reads a latin-1 encoded countries table.
func LoadCountries(r io.Reader) ([]Country, error) {
	var out []Country
	err := loadLatin1(r, &out)
	return out, err
}

// LoadSupertypes reads a latin-1 encoded supertype table.
func LoadSupertypes(r io.Reader) ([]Supertype, error) {
	var out []Supertype
	err := loadLatin1(r, &out)
	return out, err
}

func loadLatin1(r io.Reader, out interface{}) error {
	utf8, err := charset.NewReaderLabel("latin1", r)
	if err != nil {
		return err
	}
	return gocsv.Unmarshal(utf8, out)
}

// SupertypeFreq is the total consensus frequency of one supertype.
type SupertypeFreq struct {
	Supertype  string  `csv:"supertype"`
	AlleleFreq float64 `csv:"allele_freq"`
	Alleles    int     `csv:"alleles"`
}

// SupertypeFrequencies sums allele frequencies by supertype.
//
// An allele is matched exactly if possible, otherwise by its name
// truncated to fewer fields (A*02:01:01 matches A*02:01), otherwise by
// the table entries it is a prefix of, if they all agree (A*02 matches
// A*02:01 and A*02:06 if both are A02). Anything else is
// Unclassified. Output is sorted by frequency, highest first.
func SupertypeFrequencies(caf []allele.Combined, table []Supertype) []SupertypeFreq {
	exact := make(map[string]string, len(table))
	for _, st := range table {
		exact[st.Allele] = st.Supertype
	}
	lookup := func(name string) string {
		for n := allele.Resolution(name); n > 0; n-- {
			if st, ok := exact[allele.Truncate(name, n)]; ok {
				return st
			}
		}
		found := ""
		for _, st := range table {
			if !strings.HasPrefix(st.Allele, name+":") {
				continue
			} else if found == "" {
				found = st.Supertype
			} else if found != st.Supertype {
				return Unclassified
			}
		}
		if found == "" {
			return Unclassified
		}
		return found
	}
	sums := map[string]*SupertypeFreq{}
	for _, c := range caf {
		st := lookup(c.Allele)
		if sums[st] == nil {
			sums[st] = &SupertypeFreq{Supertype: st}
		}
		sums[st].AlleleFreq += c.AlleleFreq
		sums[st].Alleles++
	}
	out := make([]SupertypeFreq, 0, len(sums))
	for _, s := range sums {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AlleleFreq != out[j].AlleleFreq {
			return out[i].AlleleFreq > out[j].AlleleFreq
		}
		return out[i].Supertype < out[j].Supertype
	})
	return out
}

type supertypescmd struct{}

func (cmd *supertypescmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inputFilename := flags.String("i", "-", "combined allele frequency `file` (output of combine)")
	tableFilename := flags.String("supertypes", "", "supertype table `file` (allele,supertype; latin-1)")
	outputFilename := flags.String("o", "-", "output `file` (supertype,allele_freq,alleles)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() > 0 {
		err = fmt.Errorf("errant command line arguments after parsed flags: %v", flags.Args())
		return 2
	} else if *tableFilename == "" {
		err = fmt.Errorf("-supertypes is required")
		return 2
	}

	f, err := zopen(*tableFilename, stdin)
	if err != nil {
		return 1
	}
	defer f.Close()
	table, err := LoadSupertypes(f)
	if err != nil {
		err = fmt.Errorf("%s: %w", *tableFilename, err)
		return 1
	}
	caf, err := readCombined(*inputFilename, stdin)
	if err != nil {
		return 1
	}
	out := SupertypeFrequencies(caf, table)
	for _, s := range out {
		if s.Supertype == Unclassified {
			log.Infof("%d alleles (allele_freq %g) have no supertype", s.Alleles, s.AlleleFreq)
		}
	}
	err = writeCSV(*outputFilename, stdout, out)
	if err != nil {
		return 1
	}
	return 0
}
