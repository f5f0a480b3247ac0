package registry

import (
	"regexp"

	"github.com/aluiziolira/go-scrape-pudl/discovery"
	"github.com/aluiziolira/go-scrape-pudl/models"
	"github.com/aluiziolira/go-scrape-pudl/parser"
)

const (
	kib = 1024

	// EIA pages list one row per year; the second column links the archives.
	eiaTableLinks = "table.simpletable td:nth-child(2) a"
)

// Byte floors are set well below the smallest archive each portal has
// published, so they only catch error pages and truncated transfers. CEMS
// monthly state files can be tiny for states with few units.

// CEMS is the EPA continuous emissions monitoring archive: one directory
// listing per year, one zip per state and month.
func CEMS() Source {
	return Source{
		Name:        "cems",
		Description: "EPA CEMS hourly emissions, monthly state archives",
		MinYear:     1995,
		Kind:        models.KindZip,
		MinBytes:    1 * kib,
		Discoverer: discovery.YearIndexed{
			PageURL: "https://gaftp.epa.gov/DMDnLoad/emissions/hourly/monthly/{year}/",
			Rule: parser.LinkRule{
				HrefPattern: regexp.MustCompile(`(?i)/\d{4}[a-z]{2}\d{2}\.zip$`),
				YearFrom:    parser.YearFromHref,
				YearPattern: regexp.MustCompile(`(?i)/(\d{4})[a-z]{2}\d{2}\.zip$`),
			},
		},
	}
}

// EIA860 is the annual generator inventory.
func EIA860() Source {
	return Source{
		Name:        "eia860",
		Description: "EIA Form 860 annual electric generator report",
		MinYear:     2001,
		Kind:        models.KindZip,
		MinBytes:    64 * kib,
		Discoverer: discovery.SingleListing{
			PageURL: "https://www.eia.gov/electricity/data/eia860/",
			Rule: parser.LinkRule{
				Selector:    eiaTableLinks,
				HrefPattern: regexp.MustCompile(`(?i)/eia860\d{4}\.zip$`),
				YearFrom:    parser.YearFromHref,
				YearPattern: regexp.MustCompile(`(?i)eia860(\d{4})\.zip$`),
			},
		},
	}
}

// EIA861 is the annual utility inventory. Only the ZIP links count; the
// year is the last token of the anchor title.
func EIA861() Source {
	return Source{
		Name:        "eia861",
		Description: "EIA Form 861 annual electric power industry report",
		MinYear:     2001,
		Kind:        models.KindZip,
		MinBytes:    64 * kib,
		Discoverer: discovery.SingleListing{
			PageURL: "https://www.eia.gov/electricity/data/eia861/",
			Rule: parser.LinkRule{
				Selector:     eiaTableLinks,
				TextContains: "ZIP",
				YearFrom:     parser.YearFromTitle,
				YearPattern:  regexp.MustCompile(`(\d{4})\D*$`),
			},
		},
	}
}

// EIA923 is the power plant operations report; years before 2008 were
// published as the combined 906/920 form.
func EIA923() Source {
	return Source{
		Name:        "eia923",
		Description: "EIA Form 923 power plant operations report",
		MinYear:     2001,
		Kind:        models.KindZip,
		MinBytes:    64 * kib,
		Discoverer: discovery.SingleListing{
			PageURL: "https://www.eia.gov/electricity/data/eia923/",
			Rule: parser.LinkRule{
				Selector:    eiaTableLinks,
				HrefPattern: regexp.MustCompile(`(?i)/f(?:923|906920)_\d{4}\.zip$`),
				YearFrom:    parser.YearFromHref,
				YearPattern: regexp.MustCompile(`(?i)_(\d{4})\.zip$`),
			},
		},
	}
}

// FERC1 is the FERC Form 1 financial filing, one Visual FoxPro archive per year.
func FERC1() Source {
	return Source{
		Name:        "ferc1",
		Description: "FERC Form 1 electric utility annual report (DBF)",
		MinYear:     1994,
		MaxYear:     2021,
		Kind:        models.KindZip,
		MinBytes:    64 * kib,
		Discoverer: discovery.YearTemplate{Ranges: []discovery.YearRange{
			{From: 1994, To: 2021, URLs: []string{"https://forms.ferc.gov/f1allyears/f1_{year}.zip"}},
		}},
	}
}

// FERC2 is the FERC Form 2 gas pipeline filing. 1991-1999 were split in two
// parts; 1996 onwards also has an annual archive.
func FERC2() Source {
	return Source{
		Name:        "ferc2",
		Description: "FERC Form 2 natural gas company annual report (DBF)",
		MinYear:     1991,
		MaxYear:     2021,
		Kind:        models.KindZip,
		MinBytes:    16 * kib,
		Discoverer: discovery.YearTemplate{Ranges: []discovery.YearRange{
			{From: 1991, To: 1995, URLs: []string{
				"https://www.ferc.gov/sites/default/files/2020-07/F2Y{yy}A-M.zip",
				"https://www.ferc.gov/sites/default/files/2020-07/F2Y{yy}N-Z.zip",
			}},
			{From: 1996, To: 1999, URLs: []string{
				"https://www.ferc.gov/sites/default/files/2020-07/F2Y{yy}-1.zip",
				"https://www.ferc.gov/sites/default/files/2020-07/F2Y{yy}-2.zip",
			}},
			{From: 1996, To: 2021, URLs: []string{"https://forms.ferc.gov/f2allyears/f2_{year}.zip"}},
		}},
	}
}

// EPAIPM is the NEEDS database of the EPA capacity-expansion model.
func EPAIPM() Source {
	return Source{
		Name:        "epaipm",
		Description: "EPA IPM NEEDS v6 generating unit inventory",
		Kind:        models.KindXLSX,
		MinBytes:    64 * kib,
		BundleName:  "epaipm-needs-v6.xlsx",
		Discoverer: discovery.StaticBundle{
			URL: "https://www.epa.gov/sites/production/files/2019-03/needs_v6_november_2018_reference_case_0.xlsx",
		},
	}
}

// Census is the 2010 demographic profile used for service territories.
func Census() Source {
	return Source{
		Name:        "census",
		Description: "US Census 2010 DP1 county and tract profile",
		Kind:        models.KindZip,
		MinBytes:    64 * kib,
		BundleName:  "census-dp1.zip",
		Discoverer: discovery.StaticBundle{
			URL: "https://www2.census.gov/geo/tiger/TIGER2010DP1/Profile-County_Tract.zip",
		},
	}
}

// Default returns the registry of every supported portal.
func Default() *Registry {
	r, err := New(CEMS(), EIA860(), EIA861(), EIA923(), FERC1(), FERC2(), EPAIPM(), Census())
	if err != nil {
		panic(err)
	}
	return r
}
