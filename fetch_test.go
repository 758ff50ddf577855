// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hlafreq

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"

	"github.com/arvados/hlafreq/allele"
	"github.com/gocarina/gocsv"
	"gopkg.in/check.v1"
)

type fetchSuite struct {
	server   *httptest.Server
	requests int64
}

var _ = check.Suite(&fetchSuite{})

type fixtureRow struct {
	allele, population, carriers, freq, size string
}

var fixturePages = [][]fixtureRow{
	{
		{"A*01:01", "Thailand pop 1", "75.5", "0.6", "1,200"},
		{"A*02:01", "Thailand pop 1", "", "0.4", "1,200"},
	},
	{
		{"A*01:01", "Thailand pop 2", "", "0.5", "80"},
		{"A*02:01", "Thailand pop 2", "", "0.5", "80"},
	},
}

func fixturePage(page int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><body>
<div id="divGenNavig"><table class="table10"><tr><td>Results</td><td>%d of %d</td><td><a href="#">next</a></td></tr></table></div>
<div id="divGenDetail"><table class="tblNormal" width="100%%">
<tr><th>Line</th><th>Allele</th><th></th><th>Population</th><th>%% of individuals</th><th>Allele Frequency</th><th></th><th>Sample Size</th><th>Database</th><th>Distribution</th><th>Haplotype</th><th>Notes</th></tr>
`, page, len(fixturePages))
	for i, row := range fixturePages[page-1] {
		fmt.Fprintf(&b, `<tr><td>%d</td><td><a href="allele.asp">%s</a></td><td><img src="flag.gif"></td><td>
  <a href="pop.asp">%s</a>
</td><td>%s</td><td>%s</td><td><div class="bar"></div></td><td>%s</td><td>AFND</td><td></td><td></td><td></td></tr>
`, i+1, row.allele, row.population, row.carriers, row.freq, row.size)
	}
	b.WriteString("</table></div></body></html>\n")
	return b.String()
}

func (s *fetchSuite) SetUpTest(c *check.C) {
	atomic.StoreInt64(&s.requests, 0)
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt64(&s.requests, 1)
		if req.URL.Query().Get("hla_country") == "Nowhere" {
			fmt.Fprint(w, "<html><body>no results</body></html>")
			return
		}
		switch req.URL.Query().Get("page") {
		case "", "1":
			fmt.Fprint(w, fixturePage(1))
		case "2":
			fmt.Fprint(w, fixturePage(2))
		default:
			http.NotFound(w, req)
		}
	}))
}

func (s *fetchSuite) TearDownTest(c *check.C) {
	s.server.Close()
}

func (s *fetchSuite) TestQueryURL(c *check.C) {
	q := Query{Country: "United Kingdom", Locus: "A"}
	c.Check(q.URL("http://example/hla6006a.asp?"), check.Equals, "http://example/hla6006a.asp?"+
		"hla_locus_type=Classical&hla_locus=A&hla_country=United+Kingdom&hla_region=&hla_ethnic=&"+
		"hla_study=&hla_dataset_source=&hla_sample_year=&hla_sample_year_pattern=&hla_sample_size=&"+
		"hla_sample_size_pattern=&hla_level_pattern=bigger_equal_than&hla_level=2&standard=s&")
	q = Query{Standard: "a", Resolution: 3, ResolutionPattern: "equal"}
	c.Check(strings.HasPrefix(q.URL(""), DefaultBaseURL), check.Equals, true)
	c.Check(strings.HasSuffix(q.URL(""), "&hla_level_pattern=equal&hla_level=3&standard=a&"), check.Equals, true)
}

func (s *fetchSuite) TestFetch(c *check.C) {
	cacheDir := c.MkDir() + "/cache"
	f := &Fetcher{Client: s.server.Client(), CacheDir: cacheDir}
	searchURL := Query{Country: "Thailand"}.URL(s.server.URL + "/hla6006a.asp?")
	records, err := f.Fetch(context.Background(), searchURL)
	c.Assert(err, check.IsNil)
	c.Check(atomic.LoadInt64(&s.requests), check.Equals, int64(3))
	c.Assert(records, check.HasLen, 4)
	c.Check(records[0], check.DeepEquals, allele.Record{
		Allele:          "A*01:01",
		Loci:            "A",
		Population:      "Thailand pop 1",
		AlleleFreq:      0.6,
		CarriersPercent: allele.Known(75.5),
		SampleSize:      1200,
	})
	c.Check(records[1].CarriersPercent.Valid, check.Equals, false)
	c.Check(records[3].Population, check.Equals, "Thailand pop 2")
	c.Check(records[3].SampleSize, check.Equals, allele.Count(80))

	// Second fetch is served from the cache.
	again, err := f.Fetch(context.Background(), searchURL)
	c.Assert(err, check.IsNil)
	c.Check(again, check.DeepEquals, records)
	c.Check(atomic.LoadInt64(&s.requests), check.Equals, int64(3))
	entries, err := os.ReadDir(cacheDir)
	c.Assert(err, check.IsNil)
	c.Check(entries, check.HasLen, 3)
}

func (s *fetchSuite) TestNoResults(c *check.C) {
	f := &Fetcher{}
	searchURL := Query{Country: "Nowhere"}.URL(s.server.URL + "/hla6006a.asp?")
	_, err := f.Fetch(context.Background(), searchURL)
	c.Check(err, check.ErrorMatches, `.*hla_country=Nowhere.*: navigation div divGenNavig not found`)
}

func (s *fetchSuite) TestCanceled(c *check.C) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Fetcher{}).Fetch(ctx, Query{}.URL(s.server.URL+"/?"))
	c.Check(err, check.NotNil)
}

func (s *fetchSuite) TestFetchCommand(c *check.C) {
	tmpdir := c.MkDir()
	var stderr bytes.Buffer
	code := (&fetchcmd{}).RunCommand("hlafreq fetch", []string{
		"-base-url", s.server.URL + "/hla6006a.asp?",
		"-country", "Thailand",
		"-o", tmpdir + "/thailand.csv",
	}, &bytes.Buffer{}, &bytes.Buffer{}, &stderr)
	c.Assert(code, check.Equals, 0, check.Commentf("%s", stderr.String()))
	var records []allele.Record
	c.Assert(gocsv.UnmarshalString(readFile(c, tmpdir+"/thailand.csv"), &records), check.IsNil)
	c.Assert(records, check.HasLen, 4)
	for _, r := range records {
		c.Check(r.Country, check.Equals, "Thailand")
	}
	c.Check(records[0].SampleSize, check.Equals, allele.Count(1200))
	c.Check(records[0].CarriersPercent, check.Equals, allele.Known(75.5))

	// The fetched table can be combined directly.
	var stdout bytes.Buffer
	code = (&combinecmd{}).RunCommand("hlafreq combine", []string{"-i", tmpdir + "/thailand.csv"}, &bytes.Buffer{}, &stdout, &stderr)
	c.Assert(code, check.Equals, 0, check.Commentf("%s", stderr.String()))
	var caf []allele.Combined
	c.Assert(gocsv.UnmarshalString(stdout.String(), &caf), check.IsNil)
	c.Check(caf, check.HasLen, 2)
	c.Check(caf[0].SampleSize, check.Equals, 1280.0)
}

func (s *fetchSuite) TestFetchCommandFlags(c *check.C) {
	var stderr bytes.Buffer
	code := (&fetchcmd{}).RunCommand("hlafreq fetch", []string{"-bogus"}, &bytes.Buffer{}, &bytes.Buffer{}, &stderr)
	c.Check(code, check.Equals, 2)
	code = (&fetchcmd{}).RunCommand("hlafreq fetch", []string{"-help"}, &bytes.Buffer{}, &bytes.Buffer{}, &stderr)
	c.Check(code, check.Equals, 0)
}
