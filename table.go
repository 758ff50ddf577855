// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hlafreq

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strings"

	"github.com/arvados/hlafreq/allele"
	"github.com/gocarina/gocsv"
	"github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"
)

// zopen returns a reader for the given file ("-" means stdin),
// transparently decompressing the input if fnm ends with ".gz".
func zopen(fnm string, stdin io.Reader) (io.ReadCloser, error) {
	var f io.ReadCloser
	if fnm == "-" {
		f = ioutil.NopCloser(stdin)
	} else {
		var err error
		f, err = os.Open(fnm)
		if err != nil {
			return nil, err
		}
	}
	if !strings.HasSuffix(fnm, ".gz") {
		return f, nil
	}
	rdr, err := pgzip.NewReader(bufio.NewReaderSize(f, 4*1024*1024))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", fnm, err)
	}
	return gzipr{rdr, f}, nil
}

// gzipr wraps a ReadCloser and a Closer, presenting a single Close()
// method that closes both wrapped objects.
type gzipr struct {
	io.ReadCloser
	io.Closer
}

func (gr gzipr) Close() error {
	e1 := gr.ReadCloser.Close()
	e2 := gr.Closer.Close()
	if e1 != nil {
		return e1
	}
	return e2
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// createOutput returns a writer for fnm, or stdout if fnm is "-".
func createOutput(fnm string, stdout io.Writer) (io.WriteCloser, error) {
	if fnm == "-" || fnm == "" {
		return nopCloser{stdout}, nil
	}
	return os.OpenFile(fnm, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
}

// writeCSV writes a slice of csv-tagged structs to fnm (or stdout).
func writeCSV(fnm string, stdout io.Writer, rows interface{}) error {
	output, err := createOutput(fnm, stdout)
	if err != nil {
		return err
	}
	bufw := bufio.NewWriter(output)
	err = gocsv.Marshal(rows, bufw)
	if err != nil {
		output.Close()
		return fmt.Errorf("write %s: %w", fnm, err)
	}
	err = bufw.Flush()
	if err != nil {
		output.Close()
		return fmt.Errorf("write %s: %w", fnm, err)
	}
	err = output.Close()
	if err != nil {
		return fmt.Errorf("close %s: %w", fnm, err)
	}
	return nil
}

// readCSV reads a csv table with a header row into out, which must be
// a pointer to a slice of csv-tagged structs.
func readCSV(fnm string, stdin io.Reader, out interface{}) error {
	rdr, err := zopen(fnm, stdin)
	if err != nil {
		return err
	}
	defer rdr.Close()
	err = gocsv.Unmarshal(rdr, out)
	if err != nil {
		return fmt.Errorf("%s: %w", fnm, err)
	}
	return nil
}

func readRecords(fnm string, stdin io.Reader, ignoreG bool) ([]allele.Record, error) {
	var records []allele.Record
	err := readCSV(fnm, stdin, &records)
	if err != nil {
		return nil, err
	}
	return allele.Normalize(records, ignoreG), nil
}

func readCombined(fnm string, stdin io.Reader) ([]allele.Combined, error) {
	var caf []allele.Combined
	err := readCSV(fnm, stdin, &caf)
	if err != nil {
		return nil, err
	}
	if len(caf) == 0 {
		return nil, fmt.Errorf("%s: %w", fnm, allele.ErrNoRecords)
	}
	return caf, nil
}

// recordInput holds the flags shared by commands that read an allele
// frequency record table.
type recordInput struct {
	filename string
	ignoreG  bool
	dataset  string
	locus    string
}

func (ri *recordInput) setFlags(flags *flag.FlagSet) {
	flags.StringVar(&ri.filename, "i", "-", "input allele frequency `file` (csv, optionally .gz)")
	flags.BoolVar(&ri.ignoreG, "ignore-g", true, "strip trailing \"G\" allele group suffix")
	flags.StringVar(&ri.dataset, "dataset", "population", "`column` identifying a dataset: population or country")
	flags.StringVar(&ri.locus, "locus", "", "only use records for this `locus` (default all)")
}

func (ri *recordInput) load(stdin io.Reader) ([]allele.Record, allele.DatasetKey, error) {
	key, err := allele.DatasetKeyByName(ri.dataset)
	if err != nil {
		return nil, nil, err
	}
	records, err := readRecords(ri.filename, stdin, ri.ignoreG)
	if err != nil {
		return nil, nil, err
	}
	if ri.locus != "" {
		records = filterLocus(records, ri.locus)
		if len(records) == 0 {
			return nil, nil, fmt.Errorf("%s: no records for locus %q", ri.filename, ri.locus)
		}
	}
	log.Infof("read %d records from %s", len(records), ri.filename)
	return records, key, nil
}

func filterLocus(records []allele.Record, locus string) []allele.Record {
	var out []allele.Record
	for _, r := range records {
		if r.Loci == locus {
			out = append(out, r)
		}
	}
	return out
}
