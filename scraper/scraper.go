package scraper

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/shelfscrape/config"
	"github.com/use-agent/shelfscrape/models"
)

// Scraper owns the browser process and the pool of reusable tabs that live
// documents are opened in. It is safe for concurrent use.
type Scraper struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	browserCfg  config.BrowserConfig
	scraperCfg  config.ScraperConfig
	activePages atomic.Int32
	startTime   time.Time
}

// NewScraper launches the browser and creates the tab pool.
func NewScraper(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) (*Scraper, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.DefaultProxy != "" {
		l = l.Proxy(browserCfg.DefaultProxy)
	}

	// Shops are quick to block anything that looks automated.
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	size := browserCfg.PoolSize
	if size <= 0 {
		size = 1
	}
	slog.Info("page pool created", "poolSize", size)

	return &Scraper{
		browser:    browser,
		pagePool:   rod.NewPagePool(size),
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
		startTime:  time.Now(),
	}, nil
}

// acquire borrows a tab, creating one if the pool has room. It waits for a
// free slot only until ctx is done.
func (s *Scraper) acquire(ctx context.Context) (*rod.Page, error) {
	page, err := take(ctx, s.pagePool)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeTimeout, "no browser tab became free in time", err)
	}
	if page == nil {
		page, err = s.browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			s.pagePool.Put(nil)
			return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to acquire page from pool", err)
		}
	}
	s.activePages.Add(1)
	return page, nil
}

// take receives one slot from pool. A nil element is a free slot that has
// no tab yet.
func take[T any](ctx context.Context, pool rod.Pool[T]) (*T, error) {
	select {
	case elem := <-pool:
		return elem, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// release blanks the tab so the previous shop's DOM is freed, then returns
// it to the pool. It uses the page without a request context so cleanup
// works after the request deadline has passed.
func (s *Scraper) release(page *rod.Page) {
	if err := page.Navigate("about:blank"); err != nil {
		slog.Warn("cleanup: failed to navigate to about:blank", "error", err)
	}
	s.pagePool.Put(page)
	s.activePages.Add(-1)
}

// Stats returns a snapshot of the pool's current state.
func (s *Scraper) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:    s.browserCfg.PoolSize,
		ActivePages: int(s.activePages.Load()),
	}
}

// Uptime reports how long the browser has been running.
func (s *Scraper) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Close drains the page pool and kills the browser process.
func (s *Scraper) Close() {
	slog.Info("scraper shutting down: draining page pool")
	s.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	slog.Info("scraper shutting down: closing browser")
	if err := s.browser.Close(); err != nil {
		slog.Warn("scraper shutdown: close browser", "error", err)
	}
	slog.Info("scraper shutdown complete")
}
