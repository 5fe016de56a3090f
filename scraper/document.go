package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/shelfscrape/extract"
	"github.com/use-agent/shelfscrape/models"
	"github.com/ysmood/gson"
)

// waitForSelectorJS resolves true as soon as selector matches, or false
// when ms elapses. The observer and the timer are torn down on both paths.
const waitForSelectorJS = `(selector, ms) => new Promise((resolve) => {
	if (document.querySelector(selector)) {
		resolve(true);
		return;
	}
	let timer = null;
	const observer = new MutationObserver(() => {
		if (document.querySelector(selector)) finish(true);
	});
	function finish(found) {
		observer.disconnect();
		if (timer !== null) clearTimeout(timer);
		resolve(found);
	}
	observer.observe(document.documentElement, { childList: true, subtree: true });
	timer = setTimeout(() => finish(false), ms);
})`

const navigationStatusJS = `() => {
	try {
		const entries = performance.getEntriesByType("navigation");
		if (entries.length > 0) return entries[0].responseStatus || 0;
	} catch (e) {}
	return 0;
}`

// OpenOptions configures how a tab loads its page.
type OpenOptions struct {
	Headers map[string]string
	Stealth bool
	// Timeout bounds navigation and the initial settle. Capped by the
	// configured maximum.
	Timeout time.Duration
}

// LiveDocument is a page loaded in a pooled browser tab. It is queried in
// place, so content the shop renders client-side is visible to it.
// Release must be called when the scrape is done.
type LiveDocument struct {
	s      *Scraper
	page   *rod.Page
	router *rod.HijackRouter
	url    string
	status int

	releaseOnce sync.Once
}

// Open borrows a tab and navigates it to pageURL.
//
// Stealth scripts, extra headers and the request blocker are installed
// before Navigate; they only apply to navigations started after them.
func (s *Scraper) Open(ctx context.Context, pageURL string, opts OpenOptions) (*LiveDocument, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.scraperCfg.DefaultTimeout
	}
	if s.scraperCfg.MaxTimeout > 0 && timeout > s.scraperCfg.MaxTimeout {
		timeout = s.scraperCfg.MaxTimeout
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := s.acquire(navCtx)
	if err != nil {
		return nil, err
	}
	d := &LiveDocument{s: s, page: page, url: pageURL}

	if opts.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	if headers := requestHeaders(pageURL, opts.Headers); len(headers) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: headers}).Call(page); err != nil {
			slog.Debug("set extra headers failed", "error", err)
		}
	}

	d.router = mountBlocker(page, s.scraperCfg.BlockedResourceTypes, s.scraperCfg.BlockTrackers)

	p := page.Context(navCtx)
	if err := p.Navigate(pageURL); err != nil {
		d.Release()
		return nil, categorizeError(err, "navigation to target URL failed")
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"url", pageURL, "error", err,
		)
	}

	if res, err := p.Eval(navigationStatusJS); err == nil {
		d.status = res.Value.Int()
	}
	if href := d.location(navCtx); href != "" {
		d.url = href
	}
	return d, nil
}

// URL returns the address the tab ended up on after redirects.
func (d *LiveDocument) URL() string { return d.url }

// StatusCode is the HTTP status of the main document, or 0 when the
// browser did not expose it.
func (d *LiveDocument) StatusCode() int { return d.status }

// WaitForContent waits for selector with a DOM mutation observer. A
// cancelled ctx stops the wait early; the page-side timer still cleans up.
func (d *LiveDocument) WaitForContent(ctx context.Context, selector string, timeout time.Duration) bool {
	res, err := d.page.Context(ctx).Eval(waitForSelectorJS, selector, timeout.Milliseconds())
	if err != nil {
		slog.Debug("content wait failed", "url", d.url, "selector", selector, "error", err)
		return false
	}
	return res.Value.Bool()
}

// HTML returns the serialized DOM as it is now.
func (d *LiveDocument) HTML(ctx context.Context) (string, error) {
	raw, err := d.page.Context(ctx).HTML()
	if err != nil {
		return "", categorizeError(err, "failed to extract page HTML")
	}
	return raw, nil
}

// Snapshot parses the current DOM.
func (d *LiveDocument) Snapshot(ctx context.Context) (*extract.Page, error) {
	raw, err := d.HTML(ctx)
	if err != nil {
		return nil, err
	}
	if href := d.location(ctx); href != "" {
		d.url = href
	}
	return extract.NewPage(raw, d.url)
}

// Release stops request interception and hands the tab back to the pool.
// It is safe to call more than once.
func (d *LiveDocument) Release() {
	d.releaseOnce.Do(func() {
		if d.router != nil {
			_ = d.router.Stop()
		}
		d.s.release(d.page)
	})
}

func (d *LiveDocument) location(ctx context.Context) string {
	res, err := d.page.Context(ctx).Eval(`() => window.location.href`)
	if err != nil || res.Value.Nil() {
		return ""
	}
	return res.Value.Str()
}

// requestHeaders merges caller headers over a search-engine Referer, which
// many shops expect on a first visit.
func requestHeaders(pageURL string, custom map[string]string) proto.NetworkHeaders {
	headers := make(proto.NetworkHeaders, len(custom)+1)
	if _, ok := custom["Referer"]; !ok {
		if u, err := url.Parse(pageURL); err == nil && u.Hostname() != "" {
			headers["Referer"] = gson.New("https://www.google.com/search?q=" + url.QueryEscape(u.Hostname()))
		}
	}
	for k, v := range custom {
		headers[k] = gson.New(v)
	}
	return headers
}

// categorizeError maps browser errors to typed ScrapeErrors for the API.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
