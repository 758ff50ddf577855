// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hlafreq

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/arvados/hlafreq/allele"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/net/html"
)

const DefaultBaseURL = "http://www.allelefrequencies.net/hla6006a.asp?"

// Query selects allele frequency studies on allelefrequencies.net.
// Empty fields are not used for filtering.
type Query struct {
	Country           string
	Locus             string
	Region            string
	Ethnic            string
	StudyType         string
	DatasetSource     string
	SampleYear        string
	SampleYearPattern string
	SampleSize        string
	SampleSizePattern string
	// "s" selects gold standard studies only, "a" all studies.
	Standard string
	// Allele resolution (fields) and how to compare with it.
	Resolution        int
	ResolutionPattern string
}

// URL returns the search URL for the query, ending in "&" so a page
// number can be appended.
func (q Query) URL(base string) string {
	if base == "" {
		base = DefaultBaseURL
	}
	if q.Standard == "" {
		q.Standard = "s"
	}
	if q.Resolution == 0 {
		q.Resolution = 2
	}
	if q.ResolutionPattern == "" {
		q.ResolutionPattern = "bigger_equal_than"
	}
	var b strings.Builder
	b.WriteString(base)
	for _, kv := range [][2]string{
		{"hla_locus_type", "Classical"},
		{"hla_locus", q.Locus},
		{"hla_country", q.Country},
		{"hla_region", q.Region},
		{"hla_ethnic", q.Ethnic},
		{"hla_study", q.StudyType},
		{"hla_dataset_source", q.DatasetSource},
		{"hla_sample_year", q.SampleYear},
		{"hla_sample_year_pattern", q.SampleYearPattern},
		{"hla_sample_size", q.SampleSize},
		{"hla_sample_size_pattern", q.SampleSizePattern},
		{"hla_level_pattern", q.ResolutionPattern},
		{"hla_level", strconv.Itoa(q.Resolution)},
		{"standard", q.Standard},
	} {
		fmt.Fprintf(&b, "%s=%s&", kv[0], url.QueryEscape(kv[1]))
	}
	return b.String()
}

// Fetcher downloads and parses allelefrequencies.net search results.
type Fetcher struct {
	Client *http.Client
	// If not empty, pages are cached here, keyed by a hash of
	// the URL, and never fetched twice.
	CacheDir string
}

// Fetch retrieves every page of results for a search URL (as returned
// by Query.URL).
func (f *Fetcher) Fetch(ctx context.Context, searchURL string) ([]allele.Record, error) {
	doc, err := f.get(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	pages, err := pageCount(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", searchURL, err)
	}
	log.Infof("%d pages of results", pages)
	var records []allele.Record
	for i := 1; i <= pages; i++ {
		log.Infof("parsing page %d of %d", i, pages)
		pageURL := searchURL + "page=" + strconv.Itoa(i)
		doc, err := f.get(ctx, pageURL)
		if err != nil {
			return nil, err
		}
		page, err := parseResults(doc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", pageURL, err)
		}
		records = append(records, page...)
	}
	return records, nil
}

func (f *Fetcher) get(ctx context.Context, pageURL string) (*html.Node, error) {
	var cacheFile string
	if f.CacheDir != "" {
		cacheFile = filepath.Join(f.CacheDir, fmt.Sprintf("%x.html", blake2b.Sum256([]byte(pageURL))))
		if buf, err := ioutil.ReadFile(cacheFile); err == nil {
			log.Debugf("using cached %s for %s", cacheFile, pageURL)
			return html.Parse(bytes.NewReader(buf))
		}
	}
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %s", pageURL, resp.Status)
	}
	buf, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pageURL, err)
	}
	if cacheFile != "" {
		err = os.MkdirAll(f.CacheDir, 0777)
		if err == nil {
			err = ioutil.WriteFile(cacheFile, buf, 0666)
		}
		if err != nil {
			log.Warnf("cannot cache %s: %s", pageURL, err)
		}
	}
	return html.Parse(bytes.NewReader(buf))
}

// resultColumns is the column layout of the results table.
var resultColumns = []string{
	"line", "allele", "flag", "population", "carriers%",
	"allele_freq", "AF_graphic", "sample_size", "database",
	"distribution", "haplotype_association", "notes",
}

func pageCount(doc *html.Node) (int, error) {
	nav := findFirst(doc, elementWith("div", "id", "divGenNavig"))
	if nav == nil {
		return 0, errors.New("navigation div divGenNavig not found")
	}
	tab := findFirst(nav, elementWith("table", "class", "table10"))
	if tab == nil {
		return 0, errors.New("navigation table not found")
	}
	var cells []string
	for _, td := range findAll(tab, elementWith("td", "", "")) {
		if strings.Contains(rawText(td), " of ") {
			cells = append(cells, text(td))
		}
	}
	if len(cells) != 1 {
		return 0, fmt.Errorf("navigation table has %d cells containing \" of \", expected 1", len(cells))
	}
	idx := strings.LastIndex(cells[0], "of ")
	n, err := strconv.Atoi(strings.TrimSpace(cells[0][idx+3:]))
	if err != nil {
		return 0, fmt.Errorf("cannot parse page count from %q", cells[0])
	}
	return n, nil
}

func parseResults(doc *html.Node) ([]allele.Record, error) {
	detail := findFirst(doc, elementWith("div", "id", "divGenDetail"))
	if detail == nil {
		return nil, errors.New("results div divGenDetail not found")
	}
	tab := findFirst(detail, elementWith("table", "class", "tblNormal"))
	if tab == nil {
		return nil, errors.New("results table not found")
	}
	var records []allele.Record
	for i, tr := range findAll(tab, elementWith("tr", "", "")) {
		if i == 0 {
			// header
			continue
		}
		var row []string
		for _, td := range findAll(tr, elementWith("td", "", "")) {
			row = append(row, text(td))
		}
		if len(row) != len(resultColumns) {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", i, len(row), len(resultColumns))
		}
		r := allele.Record{
			Allele:     row[1],
			Loci:       allele.Locus(row[1]),
			Population: row[3],
		}
		var err error
		r.AlleleFreq, err = strconv.ParseFloat(row[5], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid allele_freq %q", i, row[5])
		}
		err = r.CarriersPercent.UnmarshalCSV(row[4])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		err = r.SampleSize.UnmarshalCSV(row[7])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// elementWith matches elements with the given tag and, if key is not
// empty, an attribute value (for "class", one of the classes).
func elementWith(tag, key, val string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != tag {
			return false
		}
		if key == "" {
			return true
		}
		for _, a := range n.Attr {
			if a.Key != key {
				continue
			}
			if key == "class" {
				for _, c := range strings.Fields(a.Val) {
					if c == val {
						return true
					}
				}
			} else if a.Val == val {
				return true
			}
		}
		return false
	}
}

// findAll returns matching descendants of n in document order.
func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var found []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if match(c) {
			found = append(found, c)
		}
		found = append(found, findAll(c, match)...)
	}
	return found
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if match(c) {
			return c
		}
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func rawText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(rawText(c))
	}
	return b.String()
}

// text returns the concatenated text of n with each piece trimmed.
func text(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(text(c))
	}
	return b.String()
}

type fetchcmd struct{}

func (cmd *fetchcmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var q Query
	flags.StringVar(&q.Country, "country", "", "`country` name, e.g., \"United Kingdom\"")
	flags.StringVar(&q.Locus, "locus", "", "HLA `locus`, e.g., A")
	flags.StringVar(&q.Region, "region", "", "geographic `region`")
	flags.StringVar(&q.Ethnic, "ethnic", "", "ethnic origin")
	flags.StringVar(&q.StudyType, "study-type", "", "study type")
	flags.StringVar(&q.DatasetSource, "dataset-source", "", "dataset source")
	flags.StringVar(&q.SampleYear, "sample-year", "", "sample `year`")
	flags.StringVar(&q.SampleYearPattern, "sample-year-pattern", "", "sample year comparison, e.g., equal")
	flags.StringVar(&q.SampleSize, "sample-size", "", "sample `size`")
	flags.StringVar(&q.SampleSizePattern, "sample-size-pattern", "", "sample size comparison, e.g., bigger_than")
	flags.StringVar(&q.Standard, "standard", "s", "population standard: s (gold), g (gold and silver), or a (all)")
	flags.IntVar(&q.Resolution, "resolution", 2, "allele resolution (`fields`)")
	flags.StringVar(&q.ResolutionPattern, "resolution-pattern", "bigger_equal_than", "resolution comparison")
	baseURL := flags.String("base-url", DefaultBaseURL, "search `URL` prefix")
	cacheDir := flags.String("cache-dir", "", "cache downloaded pages in `dir`")
	timeout := flags.Duration("timeout", 10*time.Minute, "give up after this long")
	outputFilename := flags.String("o", "-", "output record `file`")
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

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	searchURL := q.URL(*baseURL)
	log.Infof("fetching %s", searchURL)
	fetcher := &Fetcher{CacheDir: *cacheDir}
	records, err := fetcher.Fetch(ctx, searchURL)
	if err != nil {
		return 1
	}
	log.Infof("fetched %d records", len(records))
	for i := range records {
		records[i].Country = q.Country
	}
	if len(records) == 0 {
		log.Warn("no records matched the query")
	}
	err = writeCSV(*outputFilename, stdout, records)
	if err != nil {
		return 1
	}
	return 0
}
