package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Kind is a semantic field the Resolver knows selector candidates for.
type Kind int

const (
	KindPrice Kind = iota
	KindImages
	KindStockStatus
	KindSKU
	KindCategories
)

func (k Kind) String() string {
	switch k {
	case KindPrice:
		return "price"
	case KindImages:
		return "images"
	case KindStockStatus:
		return "stock_status"
	case KindSKU:
		return "sku"
	case KindCategories:
		return "categories"
	default:
		return "unknown"
	}
}

// DefaultStockStatus is reported when no stock indicator is present.
const DefaultStockStatus = "In stock"

// Value is a resolved field: Text for scalar kinds, List for sequences.
type Value struct {
	Text string
	List []string
}

// valueFunc turns the elements matched by a candidate into a Value.
type valueFunc func(matched *goquery.Selection, base *url.URL) Value

// candidate pairs a compiled selector with the extraction applied to its matches.
type candidate struct {
	selector string
	matcher  cascadia.Selector
	value    valueFunc
}

func newCandidate(selector string, value valueFunc) candidate {
	return candidate{
		selector: selector,
		matcher:  cascadia.MustCompile(selector),
		value:    value,
	}
}

// Resolver maps a Kind to an ordered candidate list and evaluates it
// first-match-wins: the first selector matching at least one element
// decides the value, later candidates are never consulted.
type Resolver struct {
	chains   map[Kind][]candidate
	defaults map[Kind]Value
}

// NewResolver returns a Resolver loaded with the built-in candidate chains.
func NewResolver() *Resolver {
	text := func(sel *goquery.Selection, _ *url.URL) Value {
		return Value{Text: selectionText(sel)}
	}
	price := func(sel *goquery.Selection, _ *url.URL) Value {
		return Value{Text: normalizePrice(sel.First().Text())}
	}
	// Schema.org microdata keeps machine values in content/href.
	textOrContent := func(sel *goquery.Selection, _ *url.URL) Value {
		if t := selectionText(sel); t != "" {
			return Value{Text: t}
		}
		if c, ok := sel.First().Attr("content"); ok {
			return Value{Text: cleanText(c)}
		}
		return Value{Text: availabilityLabel(sel.First().AttrOr("href", ""))}
	}
	attr := func(name string) valueFunc {
		return func(sel *goquery.Selection, _ *url.URL) Value {
			return Value{Text: cleanText(sel.First().AttrOr(name, ""))}
		}
	}
	labels := func(sel *goquery.Selection, _ *url.URL) Value {
		var out []string
		sel.Each(func(_ int, s *goquery.Selection) {
			if t := cleanText(s.Text()); t != "" {
				out = append(out, t)
			}
		})
		return Value{List: dedupe(out)}
	}

	return &Resolver{
		chains: map[Kind][]candidate{
			KindPrice: {
				// Sale price first: WooCommerce wraps it in <ins>.
				newCandidate(".price ins .amount", price),
				newCandidate(".price ins", price),
				newCandidate(".sale-price, .special-price, .price--sale, .price-sale", price),
				newCandidate(".price .amount", price),
				newCandidate(".price", price),
				newCandidate("[itemprop=price]", func(sel *goquery.Selection, _ *url.URL) Value {
					if c, ok := sel.First().Attr("content"); ok {
						return Value{Text: normalizePrice(c)}
					}
					return Value{Text: normalizePrice(sel.First().Text())}
				}),
				newCandidate(".product-price, .regular-price, [class*=price]", price),
			},
			KindImages: {
				newCandidate(".woocommerce-product-gallery__image img", imageURLs),
				newCandidate(".product-gallery img, .product-images img", imageURLs),
				newCandidate("img[itemprop=image]", imageURLs),
				newCandidate("img.wp-post-image, img.attachment-woocommerce_thumbnail", imageURLs),
				newCandidate("img", imageURLs),
			},
			KindStockStatus: {
				newCandidate(".stock", text),
				newCandidate(".availability, .product-availability", text),
				newCandidate("[itemprop=availability]", textOrContent),
				newCandidate(".in-stock, .out-of-stock, .outofstock", text),
			},
			KindSKU: {
				newCandidate(".sku", text),
				newCandidate("[itemprop=sku]", textOrContent),
				newCandidate(".product-sku, .product_sku", text),
				newCandidate("[data-sku]", attr("data-sku")),
			},
			KindCategories: {
				newCandidate(".posted_in a", labels),
				newCandidate(".product-categories a, .product_cat a", labels),
				newCandidate("[itemprop=category]", labels),
				newCandidate(".breadcrumb a, .woocommerce-breadcrumb a", labels),
			},
		},
		defaults: map[Kind]Value{
			KindPrice:       {Text: ""},
			KindImages:      {List: []string{}},
			KindStockStatus: {Text: DefaultStockStatus},
			KindSKU:         {Text: ""},
			KindCategories:  {List: []string{}},
		},
	}
}

// Resolve evaluates the chain for kind against the descendants of container.
// base resolves relative links.
func (r *Resolver) Resolve(container *goquery.Selection, kind Kind, base *url.URL) Value {
	for _, c := range r.chains[kind] {
		matched := container.FindMatcher(c.matcher)
		if matched.Length() == 0 {
			continue
		}
		return c.value(matched, base)
	}
	return r.fallback(kind)
}

func (r *Resolver) fallback(kind Kind) Value {
	d := r.defaults[kind]
	if d.List != nil {
		return Value{List: []string{}}
	}
	return d
}

// imageURLs collects absolute image URLs from every matched <img>, honouring
// lazy-loading attributes when src is missing or a placeholder.
func imageURLs(sel *goquery.Selection, base *url.URL) Value {
	out := []string{}
	sel.Each(func(_ int, img *goquery.Selection) {
		if u := imageSource(img, base); u != "" {
			out = append(out, u)
		}
	})
	return Value{List: dedupe(out)}
}

func imageSource(img *goquery.Selection, base *url.URL) string {
	for _, attr := range []string{"src", "data-src", "data-lazy-src", "data-large_image"} {
		if u := resolveURL(base, img.AttrOr(attr, "")); u != "" {
			return u
		}
	}
	if srcset := img.AttrOr("srcset", ""); srcset != "" {
		first := strings.Fields(strings.Split(srcset, ",")[0])
		if len(first) > 0 {
			return resolveURL(base, first[0])
		}
	}
	return ""
}

// availabilityLabel turns schema.org availability IRIs into readable labels.
func availabilityLabel(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if i := strings.LastIndexAny(v, "/#"); i >= 0 {
		v = v[i+1:]
	}
	switch strings.ToLower(v) {
	case "instock":
		return "In stock"
	case "outofstock":
		return "Out of stock"
	case "preorder":
		return "Pre-order"
	case "backorder":
		return "Available on backorder"
	case "limitedavailability":
		return "Limited availability"
	case "soldout":
		return "Sold out"
	case "discontinued":
		return "Discontinued"
	}
	return v
}
