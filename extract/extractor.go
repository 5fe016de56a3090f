package extract

import (
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/shelfscrape/models"
	"golang.org/x/net/html"
)

// ContentSelector matches markup signalling that product content has
// rendered; live documents wait for it before the first extraction.
const ContentSelector = `.product, .products, .product-card, [class*="product-item"], script[type="application/ld+json"]`

var (
	// A detail page carries one of these markers...
	detailMarker = cascadia.MustCompile(
		`.product, .single-product, .product-detail, .product-page, [itemtype*="schema.org/Product"]`,
	)
	// ...and none of these collection wrappers.
	listingWrapper = cascadia.MustCompile(
		`.products, ul.products, .product-list, .product-grid, .products-grid, .product-listing`,
	)
	productCard = cascadia.MustCompile(`.product`)

	// Container families, in the order they are collected.
	containerFamilies = []cascadia.Selector{
		cascadia.MustCompile(`.product, .product-card, li.product-type-simple`),
		cascadia.MustCompile(`a.woocommerce-LoopProduct-link, a.product-link`),
		cascadia.MustCompile(`[class*="product-item"]`),
	}
	// A container must hold one of these to count as a product.
	containerEvidence = cascadia.MustCompile(
		`.price, [class*="price"], .add_to_cart_button, [class*="add-to-cart"], button[name="add-to-cart"], h1, h2, h3, h4, h5, h6`,
	)

	detailTitle = []cascadia.Selector{
		cascadia.MustCompile(`.product_title, .product-title, h1.product-name, [itemprop="name"]`),
		cascadia.MustCompile(`h1`),
	}
	detailDescription = []cascadia.Selector{
		cascadia.MustCompile(`.woocommerce-product-details__short-description, .product-short-description`),
		cascadia.MustCompile(`.product-description, #tab-description, .woocommerce-Tabs-panel--description, .description`),
		cascadia.MustCompile(`[itemprop="description"]`),
	}
	canonicalLink = cascadia.MustCompile(`link[rel="canonical"]`)

	cardTitle = []cascadia.Selector{
		cascadia.MustCompile(`.woocommerce-loop-product__title, .product-title, .product-name`),
		cascadia.MustCompile(`.product-item-name, .product-item-link`),
		cascadia.MustCompile(`h2, h3, h4, h1, h5, h6`),
	}
	cardDescription = cascadia.MustCompile(`.product-excerpt, .short-description, .description, [itemprop="description"]`)
	anyLink         = cascadia.MustCompile(`a[href]`)
)

// Options configures an Extractor.
type Options struct {
	// DescriptionFormat is "text" (default) or "markdown".
	DescriptionFormat string
}

// Extractor turns a Page into product records.
// It is stateless after construction and safe for concurrent use.
type Extractor struct {
	resolver *Resolver
	describe *describer
}

// New creates an Extractor with the built-in selector chains.
func New(opts Options) *Extractor {
	return &Extractor{
		resolver: NewResolver(),
		describe: newDescriber(opts.DescriptionFormat),
	}
}

// ExtractPage returns the records found on page, restricted to fields.
//
// Strategy, first non-empty result wins:
//  1. single product page  → at most one record
//  2. listing containers   → one record per container
//  3. JSON-LD Product data → one record per entity
func (e *Extractor) ExtractPage(page *Page, fields models.FieldSet) []*models.Record {
	if IsSingleProduct(page.Doc) {
		rec := e.extractDetail(page, fields)
		if rec.Empty() {
			return nil
		}
		return []*models.Record{rec}
	}

	records := e.extractListing(page, fields)
	if len(records) > 0 {
		return records
	}

	records = extractStructured(page, fields)
	if len(records) > 0 {
		slog.Debug("extract: used structured data fallback",
			"url", page.String(), "records", len(records),
		)
	}
	return records
}

// IsSingleProduct reports whether doc is a product detail page: a product
// marker without a listing wrapper. More than one product card means a
// listing whose wrapper uses an unknown class.
func IsSingleProduct(doc *goquery.Document) bool {
	if doc.FindMatcher(detailMarker).Length() == 0 {
		return false
	}
	if doc.FindMatcher(listingWrapper).Length() > 0 {
		return false
	}
	return doc.FindMatcher(productCard).Length() <= 1
}

func (e *Extractor) extractDetail(page *Page, fields models.FieldSet) *models.Record {
	doc := page.Doc.Selection
	rec := models.NewRecord()

	if fields.Has(models.FieldTitle) {
		rec.SetText(models.FieldTitle, firstText(doc, detailTitle))
	}
	if fields.Has(models.FieldDescription) {
		desc := ""
		for _, m := range detailDescription {
			if sel := doc.FindMatcher(m); sel.Length() > 0 {
				desc = e.describe.render(sel, page)
				break
			}
		}
		if desc == "" {
			desc = excerpt(page)
		}
		rec.SetText(models.FieldDescription, desc)
	}
	e.resolveCommon(rec, doc, page, fields)
	if fields.Has(models.FieldURL) {
		u := resolveURL(page.URL, doc.FindMatcher(canonicalLink).First().AttrOr("href", ""))
		if u == "" {
			u = page.String()
		}
		rec.SetText(models.FieldURL, u)
	}
	return rec
}

func (e *Extractor) extractListing(page *Page, fields models.FieldSet) []*models.Record {
	containers := findContainers(page.Doc)
	var records []*models.Record
	for _, c := range containers {
		rec := e.extractContainer(c, page, fields)
		if rec.Empty() {
			continue
		}
		records = append(records, rec)
	}
	return records
}

func (e *Extractor) extractContainer(c *goquery.Selection, page *Page, fields models.FieldSet) *models.Record {
	rec := models.NewRecord()

	if fields.Has(models.FieldTitle) {
		rec.SetText(models.FieldTitle, firstText(c, cardTitle))
	}
	if fields.Has(models.FieldDescription) {
		desc := ""
		if sel := c.FindMatcher(cardDescription); sel.Length() > 0 {
			desc = e.describe.render(sel, page)
		}
		rec.SetText(models.FieldDescription, desc)
	}
	e.resolveCommon(rec, c, page, fields)
	if fields.Has(models.FieldURL) {
		rec.SetText(models.FieldURL, containerURL(c, page))
	}
	return rec
}

// resolveCommon fills the resolver-backed fields shared by detail pages and
// listing containers.
func (e *Extractor) resolveCommon(rec *models.Record, scope *goquery.Selection, page *Page, fields models.FieldSet) {
	if fields.Has(models.FieldPrice) {
		rec.SetText(models.FieldPrice, e.resolver.Resolve(scope, KindPrice, page.URL).Text)
	}
	if fields.Has(models.FieldImages) {
		rec.SetList(models.FieldImages, e.resolver.Resolve(scope, KindImages, page.URL).List)
	}
	if fields.Has(models.FieldStockStatus) {
		rec.SetText(models.FieldStockStatus, e.resolver.Resolve(scope, KindStockStatus, page.URL).Text)
	}
	if fields.Has(models.FieldSKU) {
		rec.SetText(models.FieldSKU, e.resolver.Resolve(scope, KindSKU, page.URL).Text)
	}
	if fields.Has(models.FieldCategories) {
		rec.SetList(models.FieldCategories, e.resolver.Resolve(scope, KindCategories, page.URL).List)
	}
}

// findContainers gathers candidate product containers from every family and
// keeps those holding product evidence. A kept container holding two
// disjoint kept containers is a grid wrapper (Magento's
// ol.product-items) and is dropped. What remains collapses to the outermost
// container, so a card and its inner title link yield one record.
func findContainers(doc *goquery.Document) []*goquery.Selection {
	all := doc.Selection.FindMatcher(containerFamilies[0])
	for _, fam := range containerFamilies[1:] {
		all = all.AddSelection(doc.Selection.FindMatcher(fam))
	}

	var kept []*html.Node
	all.Each(func(_ int, s *goquery.Selection) {
		if s.FindMatcher(containerEvidence).Length() == 0 {
			return
		}
		kept = append(kept, s.Get(0))
	})

	var cards []*html.Node
	for _, c := range kept {
		if !isWrapper(c, kept) {
			cards = append(cards, c)
		}
	}

	var out []*goquery.Selection
	for _, c := range cards {
		nested := false
		for _, other := range cards {
			if other != c && contains(other, c) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, doc.FindNodes(c))
		}
	}
	return sortDocumentOrder(doc, out)
}

// isWrapper reports whether c holds two kept containers neither of which
// contains the other.
func isWrapper(c *html.Node, kept []*html.Node) bool {
	var inner []*html.Node
	for _, k := range kept {
		if k != c && contains(c, k) {
			inner = append(inner, k)
		}
	}
	tops := 0
	for _, k := range inner {
		top := true
		for _, other := range inner {
			if other != k && contains(other, k) {
				top = false
				break
			}
		}
		if top {
			tops++
			if tops > 1 {
				return true
			}
		}
	}
	return false
}

// contains reports whether n is a strict descendant of ancestor.
func contains(ancestor, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// sortDocumentOrder orders containers as they appear in the document; the
// families are collected one after another, which would otherwise group
// records by family.
func sortDocumentOrder(doc *goquery.Document, sels []*goquery.Selection) []*goquery.Selection {
	if len(sels) < 2 {
		return sels
	}
	want := make(map[*html.Node]*goquery.Selection, len(sels))
	for _, s := range sels {
		want[s.Get(0)] = s
	}
	out := make([]*goquery.Selection, 0, len(sels))
	doc.Find("*").Each(func(_ int, n *goquery.Selection) {
		if s, ok := want[n.Get(0)]; ok {
			out = append(out, s)
		}
	})
	return out
}

// containerURL: the container's own href when it is a link, else its first
// descendant link, else the page URL.
func containerURL(c *goquery.Selection, page *Page) string {
	if goquery.NodeName(c) == "a" {
		if u := resolveURL(page.URL, c.AttrOr("href", "")); u != "" {
			return u
		}
	}
	var found string
	c.FindMatcher(anyLink).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		found = resolveURL(page.URL, a.AttrOr("href", ""))
		return found == ""
	})
	if found != "" {
		return found
	}
	return page.String()
}

// firstText returns the text of the first element matched by the first
// selector in chain that matches anything.
func firstText(scope *goquery.Selection, chain []cascadia.Selector) string {
	for _, m := range chain {
		if sel := scope.FindMatcher(m); sel.Length() > 0 {
			return selectionText(sel)
		}
	}
	return ""
}
