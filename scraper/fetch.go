package scraper

import (
	"context"

	"github.com/use-agent/shelfscrape/engine"
)

// FetchPage loads req.URL in a pooled tab and returns the rendered HTML.
// It backs the browser engine that the dispatcher escalates to when plain
// HTTP cannot load a listing page.
func (s *Scraper) FetchPage(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	doc, err := s.Open(ctx, req.URL, OpenOptions{
		Headers: req.Headers,
		Stealth: req.Stealth,
		Timeout: req.Timeout,
	})
	if err != nil {
		return nil, err
	}
	defer doc.Release()

	if doc.StatusCode() >= 400 {
		return nil, &engine.StatusError{URL: req.URL, StatusCode: doc.StatusCode()}
	}

	raw, err := doc.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return &engine.FetchResult{
		HTML:       raw,
		StatusCode: doc.StatusCode(),
		FinalURL:   doc.URL(),
	}, nil
}
