package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/shelfscrape/config"
	"github.com/use-agent/shelfscrape/engine"
	"github.com/use-agent/shelfscrape/models"
	"github.com/use-agent/shelfscrape/paginate"
	"github.com/use-agent/shelfscrape/scraper"
)

// pagesEngine serves canned listing pages by URL.
type pagesEngine struct {
	pages map[string]string
}

func (e *pagesEngine) Name() string { return "http" }

func (e *pagesEngine) Fetch(_ context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	body, ok := e.pages[req.URL]
	if !ok {
		return nil, &engine.StatusError{URL: req.URL, StatusCode: 503}
	}
	return &engine.FetchResult{HTML: body, StatusCode: 200, FinalURL: req.URL, EngineName: e.Name()}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Scraper: config.ScraperConfig{
			MaxPages:           50,
			ContentWaitTimeout: 10 * time.Millisecond,
			DescriptionFormat:  "text",
		},
		Engine: config.EngineConfig{PageTimeout: time.Second},
	}
}

func newTestService(pages map[string]string, open Opener) *Service {
	d := engine.NewDispatcher([]engine.Stage{{Engine: &pagesEngine{pages: pages}}}, nil)
	return New(testConfig(), open, d, nil)
}

func listing(pagination string, titles ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="products">`)
	for _, title := range titles {
		fmt.Fprintf(&b, `<li class="product"><a href="/p/%s"><h2>%s</h2></a><span class="price">$%d</span></li>`,
			strings.ToLower(title), title, len(title))
	}
	b.WriteString(`</ul>`)
	b.WriteString(pagination)
	b.WriteString(`</body></html>`)
	return b.String()
}

const threePages = `<nav class="woocommerce-pagination"><ul>
	<li><span class="page-numbers current">1</span></li>
	<li><a class="page-numbers" href="/shop/page/2/">2</a></li>
	<li><a class="page-numbers" href="/shop/page/3/">3</a></li>
</ul></nav>`

func TestScrape_UnsupportedFormat(t *testing.T) {
	svc := newTestService(nil, nil)
	res := svc.Scrape(context.Background(), &models.ScrapeRequest{
		URL:    "https://shop.example/shop/",
		HTML:   listing("", "Chair"),
		Format: "xml",
	}, nil)

	assert.False(t, res.Success)
	assert.Equal(t, "Unsupported format", res.Error)
	assert.Equal(t, models.ErrCodeUnsupportedFormat, res.ErrorCode)
	assert.Empty(t, res.Data)
}

func TestScrape_AllPagesToleratesFailedPage(t *testing.T) {
	svc := newTestService(map[string]string{
		"https://shop.example/shop/page/3/": listing(threePages, "Rope"),
	}, nil)

	var progress []models.Progress
	res := svc.Scrape(context.Background(), &models.ScrapeRequest{
		URL:            "https://shop.example/shop/",
		HTML:           listing(threePages, "Chair", "Desk"),
		Format:         "csv",
		ScrapeAllPages: true,
		Fields:         []string{"title", "price"},
	}, func(p models.Progress) { progress = append(progress, p) })

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, 3, res.PageCount)
	assert.Equal(t, []int{2}, res.FailedPages)
	assert.Equal(t, "title,price\n\"Chair\",\"5\"\n\"Desk\",\"4\"\n\"Rope\",\"4\"", string(res.Data))
	assert.Equal(t, models.ContentTypeCSV, res.ContentType)
	assert.Equal(t, "shelfscrape-products.csv", res.Filename)
	assert.Len(t, progress, 3)
	assert.Equal(t, models.Progress{Current: 3, Total: 3}, progress[2])
}

func TestScrape_CurrentPageOnlyIgnoresPagination(t *testing.T) {
	svc := newTestService(nil, nil)
	res := svc.Scrape(context.Background(), &models.ScrapeRequest{
		URL:    "https://shop.example/shop/",
		HTML:   listing(threePages, "Chair", "Desk"),
		Format: "json",
		Fields: []string{"title", "url"},
	}, nil)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 1, res.PageCount)

	var rows []map[string]string
	require.NoError(t, json.Unmarshal(res.Data, &rows))
	assert.Equal(t, []map[string]string{
		{"title": "Chair", "url": "https://shop.example/p/chair"},
		{"title": "Desk", "url": "https://shop.example/p/desk"},
	}, rows)
}

func TestScrape_SingleProductPage(t *testing.T) {
	page := `<html><body><div class="product-detail">
		<h1 class="product-title">Walnut Desk</h1>
		<span class="price">$1,299.00</span>
		<span class="sku">WD-01</span>
	</div></body></html>`

	svc := newTestService(nil, nil)
	res := svc.Scrape(context.Background(), &models.ScrapeRequest{
		URL:    "https://shop.example/p/walnut-desk",
		HTML:   page,
		Format: "json",
		Fields: []string{"title", "price", "sku"},
	}, nil)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.Count)
	assert.JSONEq(t, `[{"title":"Walnut Desk","price":"1,299.00","sku":"WD-01"}]`, string(res.Data))
}

func TestScrape_InvalidInput(t *testing.T) {
	svc := newTestService(nil, nil)

	tests := []struct {
		name string
		req  models.ScrapeRequest
	}{
		{"unknown field", models.ScrapeRequest{URL: "https://shop.example/", HTML: "<p></p>", Fields: []string{"colour"}}},
		{"relative url", models.ScrapeRequest{URL: "/shop/", HTML: "<p></p>"}},
		{"no browser and no html", models.ScrapeRequest{URL: "https://shop.example/"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := svc.Scrape(context.Background(), &tt.req, nil)
			assert.False(t, res.Success)
			assert.Equal(t, models.ErrCodeInvalidInput, res.ErrorCode)
			assert.NotEmpty(t, res.Error)
		})
	}
}

// releaseTracker is an opened document that records its release.
type releaseTracker struct {
	*paginate.StaticDocument
	released bool
}

func (d *releaseTracker) Release() { d.released = true }

func TestScrape_OpensAndReleasesBrowserDocument(t *testing.T) {
	static, err := paginate.NewStaticDocument(listing("", "Chair"), "https://shop.example/shop/")
	require.NoError(t, err)
	doc := &releaseTracker{StaticDocument: static}

	var gotOpts scraper.OpenOptions
	open := func(_ context.Context, pageURL string, opts scraper.OpenOptions) (Document, error) {
		assert.Equal(t, "https://shop.example/shop/", pageURL)
		gotOpts = opts
		return doc, nil
	}

	res := newTestService(nil, open).Scrape(context.Background(), &models.ScrapeRequest{
		URL:     "https://shop.example/shop/",
		Stealth: true,
		Timeout: 12,
	}, nil)

	require.True(t, res.Success, res.Error)
	assert.True(t, doc.released)
	assert.True(t, gotOpts.Stealth)
	assert.Equal(t, 12*time.Second, gotOpts.Timeout)
	assert.Equal(t, "shelfscrape-products.csv", res.Filename, "csv is the default format")
}

func TestScrape_OpenFailure(t *testing.T) {
	open := func(context.Context, string, scraper.OpenOptions) (Document, error) {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "navigation to target URL failed", errors.New("net::ERR_NAME_NOT_RESOLVED"))
	}
	res := newTestService(nil, open).Scrape(context.Background(), &models.ScrapeRequest{URL: "https://shop.example/"}, nil)

	assert.False(t, res.Success)
	assert.Equal(t, models.ErrCodeNavigation, res.ErrorCode)
	assert.Equal(t, "navigation to target URL failed", res.Error)
}
