// Package parser extracts download links from listing pages and checks
// downloaded bodies against the file type they are supposed to carry.
package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// YearField names where a link's year token is read from.
type YearField string

const (
	YearFromHref  YearField = "href"
	YearFromTitle YearField = "title"
	YearFromText  YearField = "text"
)

// DefaultSelector matches every anchor with an href.
const DefaultSelector = "a[href]"

// LinkRule describes which anchors on a listing page are artifacts.
type LinkRule struct {
	// Selector is a CSS selector for candidate anchors.
	Selector string
	// HrefPattern must match the absolute URL when set.
	HrefPattern *regexp.Regexp
	// TextContains must appear in the anchor text (case-insensitive) when set.
	TextContains string
	// YearFrom and YearPattern locate the embedded year token. The first
	// capture group of YearPattern (or the whole match) is the year.
	YearFrom    YearField
	YearPattern *regexp.Regexp
}

// Link is one matching anchor.
type Link struct {
	URL  string
	Year int
	Text string
}

// ExtractLinks returns the anchors of body matching rule, resolved against pageURL.
func ExtractLinks(body []byte, pageURL string, rule LinkRule) ([]Link, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	selector := rule.Selector
	if selector == "" {
		selector = DefaultSelector
	}

	var links []Link
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		text := strings.Join(strings.Fields(s.Text()), " ")
		if rule.TextContains != "" && !strings.Contains(strings.ToUpper(text), strings.ToUpper(rule.TextContains)) {
			return
		}
		abs, err := resolve(base, href)
		if err != nil {
			return
		}
		if rule.HrefPattern != nil && !rule.HrefPattern.MatchString(abs) {
			return
		}
		links = append(links, Link{
			URL:  abs,
			Year: yearToken(rule, abs, s.AttrOr("title", ""), text),
			Text: text,
		})
	})
	return links, nil
}

// NextPage returns the absolute URL of the pagination link matched by selector.
func NextPage(body []byte, pageURL, selector string) (string, bool, error) {
	if selector == "" {
		return "", false, nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("parse listing: %w", err)
	}
	href, ok := doc.Find(selector).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", false, nil
	}
	abs, err := resolve(base, strings.TrimSpace(href))
	if err != nil {
		return "", false, err
	}
	return abs, true, nil
}

func resolve(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func yearToken(rule LinkRule, href, title, text string) int {
	if rule.YearPattern == nil {
		return 0
	}
	var source string
	switch rule.YearFrom {
	case YearFromTitle:
		source = title
	case YearFromText:
		source = text
	default:
		source = href
	}
	return ParseYear(rule.YearPattern, source)
}

// ParseYear applies pattern to s and returns the year it captures, or 0.
func ParseYear(pattern *regexp.Regexp, s string) int {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	token := m[0]
	if len(m) > 1 {
		token = m[1]
	}
	year, err := strconv.Atoi(token)
	if err != nil || year < 1900 || year > 9999 {
		return 0
	}
	return year
}
