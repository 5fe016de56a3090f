package paginate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/shelfscrape/extract"
	"github.com/use-agent/shelfscrape/models"
	"github.com/use-agent/shelfscrape/simhash"
)

const (
	// pageDelay separates successive page fetches.
	pageDelay = time.Second

	defaultWaitTimeout = 5 * time.Second
	defaultMaxPages    = 50

	// A page whose records fingerprint within this many bits of an earlier
	// page means the server ignored the page marker.
	repeatThreshold = 0
)

// Document is the page a scrape starts on, queried in place.
type Document interface {
	// URL returns the document's current address.
	URL() string
	// WaitForContent blocks until an element matching selector exists or
	// timeout elapses, and reports whether it appeared.
	WaitForContent(ctx context.Context, selector string, timeout time.Duration) bool
	// Snapshot parses the document as it is now.
	Snapshot(ctx context.Context) (*extract.Page, error)
}

// Fetcher loads the raw HTML of a remote listing page.
type Fetcher interface {
	FetchHTML(ctx context.Context, pageURL string) (string, error)
}

// ProgressFunc receives a notification after every processed page.
type ProgressFunc func(models.Progress)

// Options tunes a Controller. Zero values select the defaults.
type Options struct {
	MaxPages    int
	WaitTimeout time.Duration
}

// Result is the merged outcome of a traversal.
type Result struct {
	Records   []*models.Record
	PageCount int
	// FailedPages lists page numbers that contributed nothing because the
	// fetch or parse failed.
	FailedPages []int
	// RepeatedPages lists page numbers whose records duplicated an earlier
	// page and were dropped.
	RepeatedPages []int
}

// Controller walks a paginated listing strictly sequentially: page 1 from
// the live document, pages 2..N through the Fetcher.
type Controller struct {
	extractor   *extract.Extractor
	fetcher     Fetcher
	maxPages    int
	waitTimeout time.Duration
	delay       time.Duration
}

// New creates a Controller.
func New(extractor *extract.Extractor, fetcher Fetcher, opts Options) *Controller {
	c := &Controller{
		extractor:   extractor,
		fetcher:     fetcher,
		maxPages:    opts.MaxPages,
		waitTimeout: opts.WaitTimeout,
		delay:       pageDelay,
	}
	if c.maxPages <= 0 {
		c.maxPages = defaultMaxPages
	}
	if c.waitTimeout <= 0 {
		c.waitTimeout = defaultWaitTimeout
	}
	return c
}

// ScrapeCurrent extracts the live document only.
func (c *Controller) ScrapeCurrent(ctx context.Context, doc Document, fields models.FieldSet) (*Result, error) {
	page, err := c.firstPage(ctx, doc)
	if err != nil {
		return nil, err
	}
	return &Result{
		Records:   c.extractor.ExtractPage(page, fields),
		PageCount: 1,
	}, nil
}

// ScrapeAll extracts the live document, detects how many pages the listing
// spans and walks pages 2..N. Page 1 records are always kept. A page that
// fails to load contributes nothing and traversal moves on; only a failure
// to read page 1 aborts the operation.
func (c *Controller) ScrapeAll(ctx context.Context, doc Document, fields models.FieldSet, onProgress ProgressFunc) (*Result, error) {
	page, err := c.firstPage(ctx, doc)
	if err != nil {
		return nil, err
	}

	res := &Result{Records: c.extractor.ExtractPage(page, fields)}
	seen := simhash.NewTracker(repeatThreshold)
	seen.Observe(recordsFingerprint(res.Records))

	total := DetectTotal(page.Doc)
	if total > c.maxPages {
		slog.Warn("paginate: page total exceeds limit, truncating",
			"url", page.String(), "detected", total, "limit", c.maxPages,
		)
		total = c.maxPages
	}
	res.PageCount = total
	if total <= 1 {
		return res, nil
	}

	notify := func(current int) {
		if onProgress != nil {
			onProgress(models.Progress{Current: current, Total: total})
		}
	}
	notify(1)

	base := doc.URL()
	for n := 2; n <= total; n++ {
		if err := c.wait(ctx); err != nil {
			slog.Warn("paginate: traversal interrupted",
				"url", base, "page", n, "total", total, "error", err,
			)
			break
		}

		records, err := c.fetchPage(ctx, base, n, fields)
		switch {
		case err != nil:
			slog.Warn("paginate: page failed, skipping",
				"url", base, "page", n, "total", total, "error", err,
			)
			res.FailedPages = append(res.FailedPages, n)
		case seen.Observe(recordsFingerprint(records)):
			slog.Info("paginate: page repeats an earlier page, dropping",
				"url", base, "page", n,
			)
			res.RepeatedPages = append(res.RepeatedPages, n)
		default:
			res.Records = append(res.Records, records...)
		}
		notify(n)
	}

	slog.Info("paginate: traversal finished",
		"url", base,
		"pages", total,
		"records", len(res.Records),
		"failed", len(res.FailedPages),
	)
	return res, nil
}

func (c *Controller) firstPage(ctx context.Context, doc Document) (*extract.Page, error) {
	if !doc.WaitForContent(ctx, extract.ContentSelector, c.waitTimeout) {
		slog.Debug("paginate: no product markup before timeout, extracting anyway",
			"url", doc.URL(), "timeout", c.waitTimeout,
		)
	}
	page, err := doc.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("paginate: read current page: %w", err)
	}
	return page, nil
}

func (c *Controller) fetchPage(ctx context.Context, base string, n int, fields models.FieldSet) ([]*models.Record, error) {
	pageURL, err := PageURL(base, n)
	if err != nil {
		return nil, err
	}
	rawHTML, err := c.fetcher.FetchHTML(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	page, err := extract.NewPage(rawHTML, pageURL)
	if err != nil {
		return nil, err
	}
	return c.extractor.ExtractPage(page, fields), nil
}

// wait sleeps for the inter-page delay unless ctx ends first.
func (c *Controller) wait(ctx context.Context) error {
	if c.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// identityFields are the fields that tell one product from another.
var identityFields = []models.Field{models.FieldURL, models.FieldTitle, models.FieldSKU}

// recordsFingerprint summarises a page's records for repeat detection.
// Each identifying value becomes a single token, so pages listing different
// products share no tokens. A page without identifying fields fingerprints
// to 0 and is never treated as a repeat.
func recordsFingerprint(records []*models.Record) uint64 {
	var b strings.Builder
	for _, rec := range records {
		for _, f := range identityFields {
			if v := strings.Join(strings.Fields(rec.Text(f)), ""); v != "" {
				b.WriteString(v)
				b.WriteByte(' ')
			}
		}
	}
	return simhash.Fingerprint(b.String())
}
