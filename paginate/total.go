package paginate

import (
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/shelfscrape/extract"
)

var reOfTotal = regexp.MustCompile(`(?i)\bof\s+(\d+)`)

// totalCandidate is one pagination widget shape: a selector plus the rule
// that reads a page total from its matches.
type totalCandidate struct {
	matcher cascadia.Selector
	read    func(*goquery.Selection) int
}

// lastNumeric reads the highest page link: pagination widgets list pages in
// ascending order, so the last element carrying a number is the total.
func lastNumeric(sel *goquery.Selection) int {
	for i := sel.Length() - 1; i >= 0; i-- {
		if n := extract.FirstInteger(sel.Eq(i).Text()); n > 0 {
			return n
		}
	}
	return 0
}

// firstNumeric reads the first number in the first match.
func firstNumeric(sel *goquery.Selection) int {
	return extract.FirstInteger(sel.First().Text())
}

// summaryTotal reads "Page 2 of 7" style summaries.
func summaryTotal(sel *goquery.Selection) int {
	text := sel.First().Text()
	if m := reOfTotal.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return extract.FirstInteger(text)
}

func attrTotal(name string) func(*goquery.Selection) int {
	return func(sel *goquery.Selection) int {
		return extract.FirstInteger(sel.First().AttrOr(name, ""))
	}
}

// totalCandidates is evaluated first-match-wins.
var totalCandidates = []totalCandidate{
	{cascadia.MustCompile(`[data-total-pages]`), attrTotal("data-total-pages")},
	{cascadia.MustCompile(`.woocommerce-pagination .page-numbers:not(.next):not(.prev):not(.dots)`), lastNumeric},
	{cascadia.MustCompile(`.pagination li:not(.next):not(.prev) > a, .pagination li:not(.next):not(.prev) > span, .pagination > a:not(.next):not(.prev)`), lastNumeric},
	{cascadia.MustCompile(`.page-numbers:not(.next):not(.prev):not(.dots), .pager a, nav[aria-label*="agination"] a`), lastNumeric},
	{cascadia.MustCompile(`.page-count, .pages-count, .pagination-info, .toolbar-number`), summaryTotal},
	{cascadia.MustCompile(`.total-pages, .last-page`), firstNumeric},
}

// DetectTotal returns the number of pages the listing in doc spans. The
// first pagination widget found decides; no widget, or a widget without a
// number, means a single page.
func DetectTotal(doc *goquery.Document) int {
	for _, c := range totalCandidates {
		matched := doc.FindMatcher(c.matcher)
		if matched.Length() == 0 {
			continue
		}
		if n := c.read(matched); n > 1 {
			return n
		}
		return 1
	}
	return 1
}
