package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-pudl/discovery"
	"github.com/aluiziolira/go-scrape-pudl/models"
	"github.com/aluiziolira/go-scrape-pudl/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runDate = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)

func TestDefaultRegistry(t *testing.T) {
	r := Default()

	assert.Equal(t, []string{"cems", "census", "eia860", "eia861", "eia923", "epaipm", "ferc1", "ferc2"}, r.Names())

	shapes := map[string]discovery.Shape{
		"cems":   discovery.ShapeYearIndexed,
		"eia860": discovery.ShapeSingleListing,
		"eia861": discovery.ShapeSingleListing,
		"eia923": discovery.ShapeSingleListing,
		"ferc1":  discovery.ShapeYearTemplate,
		"ferc2":  discovery.ShapeYearTemplate,
		"epaipm": discovery.ShapeStaticBundle,
		"census": discovery.ShapeStaticBundle,
	}
	for name, shape := range shapes {
		s, err := r.Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, shape, s.Discoverer.Shape(), name)
		assert.Positive(t, s.MinBytes, name)
	}
}

func TestLookupUnknownSource(t *testing.T) {
	_, err := Default().Lookup("eia999")

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, ErrUnknownSource)
	assert.Equal(t, "eia999", cfgErr.Source)
}

func TestCheckYear(t *testing.T) {
	tests := []struct {
		name    string
		source  Source
		year    int
		wantErr bool
	}{
		{name: "all years", source: EIA861(), year: models.NoYear},
		{name: "first year", source: EIA861(), year: 2001},
		{name: "before first year", source: EIA861(), year: 2000, wantErr: true},
		{name: "unbounded future year", source: CEMS(), year: 2090},
		{name: "bounded in range", source: FERC1(), year: 2010},
		{name: "bounded after range", source: FERC1(), year: 2022, wantErr: true},
		{name: "yearless ignores year", source: Census(), year: 1850},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.source.CheckYear(tt.year)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedYear)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDiscoveryYears(t *testing.T) {
	assert.Equal(t, []int{2007}, CEMS().DiscoveryYears(2007, runDate))

	all := CEMS().DiscoveryYears(models.NoYear, runDate)
	require.NotEmpty(t, all)
	assert.Equal(t, 1995, all[0])
	assert.Equal(t, 2023, all[len(all)-1], "unbounded sources stop at the year before the run")

	ferc := FERC2().DiscoveryYears(models.NoYear, runDate)
	assert.Len(t, ferc, 31)
	assert.Equal(t, 2021, ferc[len(ferc)-1])

	assert.Nil(t, Census().DiscoveryYears(2010, runDate))
}

func TestDiscoveryRequest(t *testing.T) {
	req := EPAIPM().DiscoveryRequest(models.NoYear, runDate, 50)

	assert.Equal(t, "epaipm", req.Source)
	assert.Equal(t, "epaipm-needs-v6.xlsx", req.BundleName)
	assert.Equal(t, models.KindXLSX, req.Kind)
	assert.Equal(t, 50, req.DedupeMaxSize)
	assert.Empty(t, req.Years)
}

func TestNewRejectsInvalidSources(t *testing.T) {
	valid := CEMS()

	noFloor := CEMS()
	noFloor.MinBytes = 0

	emptyRange := FERC1()
	emptyRange.MaxYear = 1990

	noDiscoverer := CEMS()
	noDiscoverer.Discoverer = nil

	cases := map[string][]Source{
		"duplicate":     {valid, valid},
		"no floor":      {noFloor},
		"empty range":   {emptyRange},
		"no discoverer": {noDiscoverer},
	}
	for name, sources := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(sources...)
			assert.Error(t, err)
		})
	}
}

func TestConfigurationErrorMessage(t *testing.T) {
	err := FERC1().CheckYear(1990)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ferc1 year 1990")
	assert.True(t, errors.Is(err, ErrUnsupportedYear))
}

func listingRule(t *testing.T, s Source) (string, parser.LinkRule) {
	t.Helper()

	switch d := s.Discoverer.(type) {
	case discovery.SingleListing:
		return d.PageURL, d.Rule
	case discovery.YearIndexed:
		return d.PageURL, d.Rule
	default:
		t.Fatalf("%s has no listing rule (%T)", s.Name, s.Discoverer)
		return "", parser.LinkRule{}
	}
}

func TestSourceRulesMatchListings(t *testing.T) {
	type link struct {
		url  string
		year int
	}

	tests := []struct {
		name    string
		source  Source
		pageURL string
		body    string
		want    []link
	}{
		{
			name:   "eia860 zip column only",
			source: EIA860(),
			body: `<table class="simpletable">
<tr><th>Year</th><th>Files</th><th>Docs</th></tr>
<tr><td>2022</td><td><a href="xls/eia8602022.zip">ZIP</a></td><td><a href="xls/eia8602022.pdf">PDF</a></td></tr>
<tr><td>2021</td><td><a href="archive/xls/eia8602021.zip">ZIP</a></td><td><a href="archive/xls/eia8602021ER.zip">ER</a></td></tr>
<tr><td>2020</td><td><a href="archive/xls/eia8602020.pdf">PDF</a></td><td></td></tr>
</table>
<p><a href="xls/eia8602019.zip">outside the table</a></p>`,
			want: []link{
				{"https://www.eia.gov/electricity/data/eia860/xls/eia8602022.zip", 2022},
				{"https://www.eia.gov/electricity/data/eia860/archive/xls/eia8602021.zip", 2021},
			},
		},
		{
			name:   "eia861 year from title",
			source: EIA861(),
			body: `<table class="simpletable">
<tr><td>2019</td><td><a href="zip/f8612019.zip" title="Form EIA-861 data 2019">ZIP</a></td></tr>
<tr><td>2019</td><td><a href="xls/f8612019.xls" title="Form EIA-861 data 2019">XLS</a></td></tr>
<tr><td>1999</td><td><a href="archive/zip/f86199.zip" title="Form EIA-861 data 1999">ZIP</a></td></tr>
</table>`,
			want: []link{
				{"https://www.eia.gov/electricity/data/eia861/zip/f8612019.zip", 2019},
				{"https://www.eia.gov/electricity/data/eia861/archive/zip/f86199.zip", 1999},
			},
		},
		{
			name:   "eia923 current and 906/920 archives",
			source: EIA923(),
			body: `<table class="simpletable">
<tr><td>2015</td><td><a href="xls/f923_2015.zip">ZIP</a></td></tr>
<tr><td>2005</td><td><a href="archive/xls/f906920_2005.zip">ZIP</a></td></tr>
<tr><td>2015</td><td><a href="xls/f923_2015_layout.pdf">Layout</a></td></tr>
</table>`,
			want: []link{
				{"https://www.eia.gov/electricity/data/eia923/xls/f923_2015.zip", 2015},
				{"https://www.eia.gov/electricity/data/eia923/archive/xls/f906920_2005.zip", 2005},
			},
		},
		{
			name:    "cems directory index",
			source:  CEMS(),
			pageURL: "https://gaftp.epa.gov/DMDnLoad/emissions/hourly/monthly/2007/",
			body: `<html><body><pre>
<a href="../">Parent Directory</a>
<a href="2007al01.zip">2007al01.zip</a>
<a href="2007WY12.ZIP">2007WY12.ZIP</a>
<a href="2007al01.txt">2007al01.txt</a>
<a href="readme.zip">readme.zip</a>
</pre></body></html>`,
			want: []link{
				{"https://gaftp.epa.gov/DMDnLoad/emissions/hourly/monthly/2007/2007al01.zip", 2007},
				{"https://gaftp.epa.gov/DMDnLoad/emissions/hourly/monthly/2007/2007WY12.ZIP", 2007},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pageURL, rule := listingRule(t, tt.source)
			if tt.pageURL != "" {
				pageURL = tt.pageURL
			}

			links, err := parser.ExtractLinks([]byte(tt.body), pageURL, rule)
			require.NoError(t, err)

			got := make([]link, 0, len(links))
			for _, l := range links {
				got = append(got, link{l.URL, l.Year})
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
