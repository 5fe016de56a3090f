package service

import (
	"github.com/use-agent/shelfscrape/config"
	"github.com/use-agent/shelfscrape/engine"
	"github.com/use-agent/shelfscrape/scraper"
)

// NewDispatcher builds the engine plan for listing pages 2..N: plain HTTP
// first, and a browser tab from sc after the escalation delay when the
// fallback is enabled and a browser is available.
func NewDispatcher(cfg *config.Config, sc *scraper.Scraper) *engine.Dispatcher {
	stages := []engine.Stage{{
		Engine: engine.NewHTTPEngine(engine.HTTPOptions{Proxy: cfg.Browser.DefaultProxy}),
	}}
	if sc != nil && cfg.Engine.EnableBrowserFallback {
		stages = append(stages, engine.Stage{
			Engine: engine.NewBrowserEngine(sc.FetchPage, false),
			Delay:  cfg.Engine.EscalationDelay,
		})
	}
	return engine.NewDispatcher(stages, engine.NewHostMemory(cfg.Engine.HostMemoryTTL))
}
