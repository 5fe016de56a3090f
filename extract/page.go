package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Page is a parsed document plus the URL it was loaded from. The live page
// and fetched pages both end up as a Page, so one extractor serves both.
type Page struct {
	Doc *goquery.Document
	URL *url.URL
}

// NewPage parses rawHTML into a Page. pageURL must be absolute.
func NewPage(rawHTML, pageURL string) (*Page, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("extract: invalid page URL %q: %w", pageURL, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("extract: page URL %q is not absolute", pageURL)
	}

	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("extract: parse html: %w", err)
	}
	return &Page{Doc: goquery.NewDocumentFromNode(root), URL: u}, nil
}

// String returns the page URL.
func (p *Page) String() string { return p.URL.String() }
