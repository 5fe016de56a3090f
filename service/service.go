// Package service runs one scrape end to end: open the starting page,
// extract it, optionally walk the rest of the listing and encode the
// records for download. Every transport (HTTP API, MCP, CLI) goes through
// Service.Scrape.
package service

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/use-agent/shelfscrape/config"
	"github.com/use-agent/shelfscrape/engine"
	"github.com/use-agent/shelfscrape/export"
	"github.com/use-agent/shelfscrape/extract"
	"github.com/use-agent/shelfscrape/models"
	"github.com/use-agent/shelfscrape/paginate"
	"github.com/use-agent/shelfscrape/scraper"
)

// Document is a starting page that holds resources until released.
type Document interface {
	paginate.Document
	Release()
}

// Opener loads pageURL in a browser tab.
type Opener func(ctx context.Context, pageURL string, opts scraper.OpenOptions) (Document, error)

// BrowserOpener opens documents in sc's tab pool.
func BrowserOpener(sc *scraper.Scraper) Opener {
	return func(ctx context.Context, pageURL string, opts scraper.OpenOptions) (Document, error) {
		doc, err := sc.Open(ctx, pageURL, opts)
		if err != nil {
			return nil, err
		}
		return doc, nil
	}
}

// Service orchestrates scrapes. It is safe for concurrent use.
type Service struct {
	open        Opener
	dispatcher  *engine.Dispatcher
	extractor   *extract.Extractor
	transformer *export.Transformer
	pageOpts    paginate.Options
	pageTimeout time.Duration
}

// New creates a Service. open may be nil, in which case only requests that
// carry their own HTML can be served.
func New(cfg *config.Config, open Opener, dispatcher *engine.Dispatcher, transformer *export.Transformer) *Service {
	if dispatcher == nil {
		dispatcher = NewDispatcher(cfg, nil)
	}
	if transformer == nil {
		transformer = export.New()
	}
	return &Service{
		open:        open,
		dispatcher:  dispatcher,
		extractor:   extract.New(extract.Options{DescriptionFormat: cfg.Scraper.DescriptionFormat}),
		transformer: transformer,
		pageOpts: paginate.Options{
			MaxPages:    cfg.Scraper.MaxPages,
			WaitTimeout: cfg.Scraper.ContentWaitTimeout,
		},
		pageTimeout: cfg.Engine.PageTimeout,
	}
}

// Scrape runs req and always returns a result: failures are reported in
// it, never as a Go error. onProgress, if set, receives one notification
// per listing page during a multi-page scrape.
func (s *Service) Scrape(ctx context.Context, req *models.ScrapeRequest, onProgress paginate.ProgressFunc) *models.ScrapeResult {
	start := time.Now()
	req.Defaults()

	format, err := export.ParseFormat(req.Format)
	if err != nil {
		return s.fail(req, err, start)
	}
	fields, err := models.ParseFieldSet(req.Fields)
	if err != nil {
		return s.fail(req, err, start)
	}
	if err := validateURL(req.URL); err != nil {
		return s.fail(req, err, start)
	}

	scrapeStart := time.Now()
	doc, err := s.document(ctx, req)
	if err != nil {
		return s.fail(req, err, start)
	}
	defer doc.Release()

	ctrl := paginate.New(s.extractor, s.dispatcher.Pages(engine.PageOptions{
		Headers: req.Headers,
		Stealth: req.Stealth,
		Timeout: s.pageTimeout,
	}), s.pageOpts)

	var res *paginate.Result
	if req.ScrapeAllPages {
		res, err = ctrl.ScrapeAll(ctx, doc, fields, onProgress)
	} else {
		res, err = ctrl.ScrapeCurrent(ctx, doc, fields)
	}
	if err != nil {
		return s.fail(req, models.NewScrapeError(models.ErrCodeNavigation, "failed to read the page", err), start)
	}
	scrapeMs := time.Since(scrapeStart).Milliseconds()

	exportStart := time.Now()
	payload, err := s.transformer.Transform(res.Records, fields, format)
	if err != nil {
		return s.fail(req, err, start)
	}

	slog.Info("scrape finished",
		"url", req.URL,
		"format", format,
		"records", len(res.Records),
		"pages", res.PageCount,
	)
	return &models.ScrapeResult{
		Success:     true,
		Count:       len(res.Records),
		PageCount:   res.PageCount,
		FailedPages: res.FailedPages,
		Data:        payload.Data,
		ContentType: payload.ContentType,
		Filename:    payload.Filename,
		Timing: models.TimingInfo{
			TotalMs:  time.Since(start).Milliseconds(),
			ScrapeMs: scrapeMs,
			ExportMs: time.Since(exportStart).Milliseconds(),
		},
	}
}

// document returns the starting page: the caller's HTML when supplied,
// otherwise a browser tab.
func (s *Service) document(ctx context.Context, req *models.ScrapeRequest) (Document, error) {
	if req.HTML != "" {
		doc, err := paginate.NewStaticDocument(req.HTML, req.URL)
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "failed to parse the supplied HTML", err)
		}
		return staticDocument{doc}, nil
	}
	if s.open == nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "no browser available: supply the page HTML", nil)
	}
	return s.open(ctx, req.URL, scraper.OpenOptions{
		Headers: req.Headers,
		Stealth: req.Stealth,
		Timeout: time.Duration(req.Timeout) * time.Second,
	})
}

func (s *Service) fail(req *models.ScrapeRequest, err error, start time.Time) *models.ScrapeResult {
	res := models.Failure(err)
	res.Timing = models.TimingInfo{TotalMs: time.Since(start).Milliseconds()}
	slog.Warn("scrape failed", "url", req.URL, "code", res.ErrorCode, "error", err)
	return res
}

// staticDocument has nothing to release.
type staticDocument struct {
	*paginate.StaticDocument
}

func (staticDocument) Release() {}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "url must be an absolute http(s) URL", err)
	}
	return nil
}
