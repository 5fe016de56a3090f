package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver()

	tests := []struct {
		name string
		html string
		kind Kind
		want Value
	}{
		{
			name: "sale price preferred over regular",
			html: `<p class="price"><del><span class="amount">$20.00</span></del><ins><span class="amount">$15.00</span></ins></p>`,
			kind: KindPrice,
			want: Value{Text: "15.00"},
		},
		{
			name: "price keeps thousands separators",
			html: `<span class="price">USD 1,299.00</span>`,
			kind: KindPrice,
			want: Value{Text: "1,299.00"},
		},
		{
			name: "microdata price from content",
			html: `<meta itemprop="price" content="8.10">`,
			kind: KindPrice,
			want: Value{Text: "8.10"},
		},
		{
			name: "missing price is empty",
			html: `<h3>No price</h3>`,
			kind: KindPrice,
			want: Value{Text: ""},
		},
		{
			name: "stock defaults to in stock",
			html: `<h3>Anything</h3>`,
			kind: KindStockStatus,
			want: Value{Text: DefaultStockStatus},
		},
		{
			name: "microdata availability link",
			html: `<link itemprop="availability" href="https://schema.org/PreOrder">`,
			kind: KindStockStatus,
			want: Value{Text: "Pre-order"},
		},
		{
			name: "sku from data attribute",
			html: `<button data-sku="AB-12">Add</button>`,
			kind: KindSKU,
			want: Value{Text: "AB-12"},
		},
		{
			name: "images resolve lazy attributes and skip data URIs",
			html: `<img src="data:image/gif;base64,R0lGOD" data-lazy-src="/a.jpg"><img srcset="/b-300.jpg 300w, /b-600.jpg 600w"><img src="/a.jpg">`,
			kind: KindImages,
			want: Value{List: []string{"https://shop.example/a.jpg", "https://shop.example/b-300.jpg"}},
		},
		{
			name: "no images is an empty list",
			html: `<p>text</p>`,
			kind: KindImages,
			want: Value{List: []string{}},
		},
		{
			name: "breadcrumb categories",
			html: `<nav class="woocommerce-breadcrumb"><a href="/">Home</a><a href="/c/tools">Tools</a></nav>`,
			kind: KindCategories,
			want: Value{List: []string{"Home", "Tools"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := mustPage(t, "<html><body><div id=\"c\">"+tt.html+"</div></body></html>")
			got := r.Resolve(page.Doc.Find("#c"), tt.kind, page.URL)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_FirstMatchWins(t *testing.T) {
	// .stock matches but is empty; the chain must not fall through to .availability.
	page := mustPage(t, `<html><body><div id="c"><span class="stock"></span><span class="availability">Backorder</span></div></body></html>`)
	got := NewResolver().Resolve(page.Doc.Find("#c"), KindStockStatus, page.URL)
	assert.Equal(t, "", got.Text)
}

func TestTextHelpers(t *testing.T) {
	assert.Equal(t, 12, FirstInteger("Page 12 of 40"))
	assert.Equal(t, 0, FirstInteger("next"))
	assert.Equal(t, "", resolveURL(nil, "javascript:void(0)"))
	assert.Equal(t, "", resolveURL(nil, "#top"))
}
