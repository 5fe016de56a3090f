package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	reSpace    = regexp.MustCompile(`\s+`)
	reNotPrice = regexp.MustCompile(`[^\d.,]`)
	reInteger  = regexp.MustCompile(`\d+`)
)

// cleanText trims and collapses runs of whitespace into single spaces.
func cleanText(s string) string {
	return strings.TrimSpace(reSpace.ReplaceAllString(s, " "))
}

// normalizePrice keeps digits, dots and commas only. Thousands separators
// survive: the result is a display string, not a parsed number.
func normalizePrice(s string) string {
	return reNotPrice.ReplaceAllString(s, "")
}

// selectionText returns the cleaned text of the first node in sel.
func selectionText(sel *goquery.Selection) string {
	return cleanText(sel.First().Text())
}

// firstInteger parses the first run of digits in s, or 0 when there is none.
func firstInteger(s string) int {
	m := reInteger.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// FirstInteger is exported for the pagination controller, which parses page
// totals out of pagination widgets.
func FirstInteger(s string) int { return firstInteger(s) }

// resolveURL makes ref absolute against base. Empty, fragment-only and
// non-http(s) references (javascript:, mailto:, data:) yield "".
func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

// dedupe drops repeated strings, keeping first occurrences in order.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
