package extract

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/shelfscrape/models"
	"github.com/ysmood/gson"
)

var ldScript = cascadia.MustCompile(`script[type="application/ld+json"]`)

// extractStructured maps embedded JSON-LD Product entities onto records.
// Blocks that are not valid JSON are skipped.
func extractStructured(page *Page, fields models.FieldSet) []*models.Record {
	var records []*models.Record
	page.Doc.FindMatcher(ldScript).Each(func(i int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		// gson parses lazily and swallows errors, so validate up front.
		if !json.Valid([]byte(raw)) {
			slog.Debug("extract: skipping malformed JSON-LD block",
				"url", page.String(), "index", i,
			)
			return
		}
		for _, entity := range products(gson.NewFrom(raw)) {
			rec := structuredRecord(entity, page, fields)
			if !rec.Empty() {
				records = append(records, rec)
			}
		}
	})
	return records
}

// products flattens a JSON-LD payload into its Product entities: top-level
// arrays, @graph containers and ItemList elements are all walked.
func products(j gson.JSON) []gson.JSON {
	var out []gson.JSON
	var walk func(n gson.JSON, depth int)
	walk = func(n gson.JSON, depth int) {
		if depth > 4 {
			return
		}
		if arr, ok := n.Val().([]interface{}); ok {
			for _, el := range arr {
				walk(gson.New(el), depth+1)
			}
			return
		}
		if _, ok := n.Val().(map[string]interface{}); !ok {
			return
		}
		if hasType(n, "Product") {
			out = append(out, n)
			return
		}
		if g, ok := n.Gets("@graph"); ok {
			walk(g, depth+1)
		}
		if hasType(n, "ItemList") {
			for _, el := range n.Get("itemListElement").Arr() {
				if item, ok := el.Gets("item"); ok {
					walk(item, depth+1)
				} else {
					walk(el, depth+1)
				}
			}
		}
	}
	walk(j, 0)
	return out
}

// hasType reports whether @type names want, as a string or in an array.
// Prefixed forms such as "schema:Product" also count.
func hasType(n gson.JSON, want string) bool {
	t, ok := n.Gets("@type")
	if !ok {
		return false
	}
	match := func(v string) bool {
		if i := strings.LastIndexAny(v, ":/"); i >= 0 {
			v = v[i+1:]
		}
		return v == want
	}
	if arr, ok := t.Val().([]interface{}); ok {
		for _, v := range arr {
			if s, ok := v.(string); ok && match(s) {
				return true
			}
		}
		return false
	}
	s, ok := t.Val().(string)
	return ok && match(s)
}

func structuredRecord(p gson.JSON, page *Page, fields models.FieldSet) *models.Record {
	rec := models.NewRecord()
	offer := firstOffer(p)

	if fields.Has(models.FieldTitle) {
		rec.SetText(models.FieldTitle, cleanText(scalar(p, "name")))
	}
	if fields.Has(models.FieldDescription) {
		rec.SetText(models.FieldDescription, cleanText(scalar(p, "description")))
	}
	if fields.Has(models.FieldPrice) {
		price := scalar(offer, "price")
		if price == "" {
			price = scalar(offer, "lowPrice")
		}
		rec.SetText(models.FieldPrice, normalizePrice(price))
	}
	if fields.Has(models.FieldImages) {
		rec.SetList(models.FieldImages, ldImages(p, page))
	}
	if fields.Has(models.FieldStockStatus) {
		status := availabilityLabel(scalar(offer, "availability"))
		if status == "" {
			status = DefaultStockStatus
		}
		rec.SetText(models.FieldStockStatus, status)
	}
	if fields.Has(models.FieldSKU) {
		rec.SetText(models.FieldSKU, cleanText(scalar(p, "sku")))
	}
	if fields.Has(models.FieldCategories) {
		rec.SetList(models.FieldCategories, ldCategories(p))
	}
	if fields.Has(models.FieldURL) {
		u := resolveURL(page.URL, scalar(p, "url"))
		if u == "" {
			u = resolveURL(page.URL, scalar(offer, "url"))
		}
		rec.SetText(models.FieldURL, u)
	}
	return rec
}

// firstOffer returns offers as an object, or the first element of an array.
func firstOffer(p gson.JSON) gson.JSON {
	o, ok := p.Gets("offers")
	if !ok {
		return gson.New(nil)
	}
	if arr, ok := o.Val().([]interface{}); ok {
		if len(arr) == 0 {
			return gson.New(nil)
		}
		return gson.New(arr[0])
	}
	return o
}

// scalar reads a string or number property; anything else yields "".
func scalar(n gson.JSON, key string) string {
	v, ok := n.Gets(key)
	if !ok {
		return ""
	}
	switch x := v.Val().(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}

// ldImages accepts image as a URL, an ImageObject, or an array of either.
func ldImages(p gson.JSON, page *Page) []string {
	img, ok := p.Gets("image")
	if !ok {
		return []string{}
	}
	items := []gson.JSON{img}
	if _, isArr := img.Val().([]interface{}); isArr {
		items = img.Arr()
	}
	out := []string{}
	for _, it := range items {
		ref := ""
		switch x := it.Val().(type) {
		case string:
			ref = x
		case map[string]interface{}:
			ref = scalar(it, "url")
			if ref == "" {
				ref = scalar(it, "contentUrl")
			}
		}
		if u := resolveURL(page.URL, ref); u != "" {
			out = append(out, u)
		}
	}
	return dedupe(out)
}

// ldCategories splits "A > B" breadcrumb-style strings and accepts arrays.
func ldCategories(p gson.JSON) []string {
	c, ok := p.Gets("category")
	if !ok {
		return []string{}
	}
	var raw []string
	if arr, isArr := c.Val().([]interface{}); isArr {
		for _, v := range arr {
			if s, ok := v.(string); ok {
				raw = append(raw, s)
			}
		}
	} else if s, ok := c.Val().(string); ok {
		raw = strings.Split(s, ">")
	}
	out := []string{}
	for _, s := range raw {
		if s = cleanText(s); s != "" {
			out = append(out, s)
		}
	}
	return dedupe(out)
}
