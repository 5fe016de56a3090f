package engine

import (
	"context"
	"fmt"
)

// BrowserFetchFunc renders a page in a browser tab. The scraper package
// supplies it, which keeps engine free of a dependency on scraper.
type BrowserFetchFunc func(ctx context.Context, req *FetchRequest) (*FetchResult, error)

// BrowserEngine loads pages that only render client-side.
type BrowserEngine struct {
	fetch        BrowserFetchFunc
	forceStealth bool
	name         string
}

// NewBrowserEngine wraps fetch. With forceStealth every request runs with
// stealth evasions, whatever the caller asked for.
func NewBrowserEngine(fetch BrowserFetchFunc, forceStealth bool) *BrowserEngine {
	name := "browser"
	if forceStealth {
		name = "browser-stealth"
	}
	return &BrowserEngine{fetch: fetch, forceStealth: forceStealth, name: name}
}

func (e *BrowserEngine) Name() string { return e.name }

func (e *BrowserEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.fetch == nil {
		return nil, fmt.Errorf("%s: no browser configured", e.name)
	}
	r := *req
	if e.forceStealth {
		r.Stealth = true
	}
	res, err := e.fetch(ctx, &r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}
	res.EngineName = e.name
	return res, nil
}
