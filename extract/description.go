package extract

import (
	"log/slog"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Description formats.
const (
	DescriptionText     = "text"
	DescriptionMarkdown = "markdown"
)

// minExcerptLength is the shortest readability excerpt accepted as a
// stand-in description; shorter ones are usually navigation crumbs.
const minExcerptLength = 40

// describer renders description elements. The converter is goroutine-safe
// and built once per Extractor.
type describer struct {
	format string
	md     *converter.Converter
}

func newDescriber(format string) *describer {
	d := &describer{format: DescriptionText}
	if format == DescriptionMarkdown {
		d.format = DescriptionMarkdown
		d.md = converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(
					table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
				),
			),
		)
	}
	return d
}

// render returns the description held by sel in the configured format.
// Markdown keeps bullet lists and attribute tables readable in a spreadsheet cell.
func (d *describer) render(sel *goquery.Selection, page *Page) string {
	sel = sel.First()
	if d.format == DescriptionMarkdown {
		inner, err := sel.Html()
		if err == nil && strings.TrimSpace(inner) != "" {
			md, err := d.md.ConvertString(inner, converter.WithDomain(page.String()))
			if err == nil {
				return strings.TrimSpace(md)
			}
			slog.Debug("description: markdown conversion failed, using text",
				"url", page.String(), "error", err,
			)
		}
	}
	if t := selectionText(sel); t != "" {
		return t
	}
	return cleanText(sel.AttrOr("content", ""))
}

// excerpt is the last-resort description for detail pages without a
// dedicated element: the meta description, then a readability excerpt.
func excerpt(page *Page) string {
	if meta := page.Doc.Find(`meta[name="description"], meta[property="og:description"]`); meta.Length() > 0 {
		if c := cleanText(meta.First().AttrOr("content", "")); c != "" {
			return c
		}
	}

	rawHTML, err := page.Doc.Html()
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(rawHTML), page.URL)
	if err != nil {
		slog.Debug("description: readability failed", "url", page.String(), "error", err)
		return ""
	}
	if ex := cleanText(article.Excerpt); len(ex) >= minExcerptLength {
		return ex
	}
	return ""
}
