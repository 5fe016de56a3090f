package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// Stage is one engine in an escalation plan, started Delay after the
// attempt begins unless an earlier stage already succeeded.
type Stage struct {
	Engine Engine
	Delay  time.Duration
}

// Dispatcher loads pages by racing engines with staged escalation: the
// cheap HTTP engine starts at once, the browser joins if it has not won
// after its delay. The first success wins and cancels the rest.
type Dispatcher struct {
	stages []Stage
	memory *HostMemory
}

// NewDispatcher creates a Dispatcher. memory may be nil.
func NewDispatcher(stages []Stage, memory *HostMemory) *Dispatcher {
	return &Dispatcher{stages: stages, memory: memory}
}

// Dispatch loads req. An engine remembered for the host is tried alone
// first; if it fails the full race runs.
func (d *Dispatcher) Dispatch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if len(d.stages) == 0 {
		return nil, errors.New("dispatcher: no engines configured")
	}
	host := hostOf(req.URL)

	if name := d.memory.Get(host); name != "" {
		for _, st := range d.stages {
			if st.Engine.Name() != name {
				continue
			}
			res, err := fetchBounded(ctx, st.Engine, req)
			if err == nil {
				return res, nil
			}
			if ctx.Err() != nil {
				return nil, err
			}
			slog.Debug("dispatcher: remembered engine failed, racing",
				"host", host, "engine", name, "error", err,
			)
			d.memory.Forget(host)
			break
		}
	}
	return d.race(ctx, req, host)
}

type attempt struct {
	res *FetchResult
	err error
}

func (d *Dispatcher) race(ctx context.Context, req *FetchRequest, host string) (*FetchResult, error) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan attempt, len(d.stages))
	for _, st := range d.stages {
		go func(st Stage) {
			if st.Delay > 0 {
				t := time.NewTimer(st.Delay)
				defer t.Stop()
				select {
				case <-raceCtx.Done():
					results <- attempt{err: raceCtx.Err()}
					return
				case <-t.C:
				}
			}
			if raceCtx.Err() != nil {
				results <- attempt{err: raceCtx.Err()}
				return
			}
			res, err := st.Engine.Fetch(raceCtx, req)
			if err != nil {
				slog.Debug("dispatcher: engine failed",
					"engine", st.Engine.Name(), "url", req.URL, "error", err,
				)
			}
			results <- attempt{res: res, err: err}
		}(st)
	}

	var errs []error
	for range d.stages {
		var a attempt
		select {
		case a = <-results:
		case <-ctx.Done():
			// Bounded even when an engine ignores ctx.
			return nil, fmt.Errorf("dispatcher: %s: %w", req.URL, ctx.Err())
		}
		if a.err != nil {
			if !errors.Is(a.err, context.Canceled) || ctx.Err() != nil {
				errs = append(errs, a.err)
			}
			continue
		}
		cancel()
		d.memory.Set(host, a.res.EngineName)
		slog.Debug("dispatcher: engine won", "engine", a.res.EngineName, "url", req.URL)
		return a.res, nil
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("dispatcher: all engines failed for %s", req.URL)
	}
	return nil, errors.Join(errs...)
}

// fetchBounded runs e.Fetch but gives up when ctx is done, even if the
// engine itself does not watch ctx.
func fetchBounded(ctx context.Context, e Engine, req *FetchRequest) (*FetchResult, error) {
	done := make(chan attempt, 1)
	go func() {
		res, err := e.Fetch(ctx, req)
		done <- attempt{res: res, err: err}
	}()
	select {
	case a := <-done:
		return a.res, a.err
	case <-ctx.Done():
		return nil, fmt.Errorf("dispatcher: %s: %w", req.URL, ctx.Err())
	}
}

// PageOptions are the per-scrape settings applied to every page load.
type PageOptions struct {
	Headers map[string]string
	Stealth bool
	Timeout time.Duration
}

// PageFetcher binds a Dispatcher to one scrape's settings.
type PageFetcher struct {
	d    *Dispatcher
	opts PageOptions
}

// Pages returns a fetcher for listing pages that applies opts to each load.
func (d *Dispatcher) Pages(opts PageOptions) *PageFetcher {
	return &PageFetcher{d: d, opts: opts}
}

// FetchHTML loads pageURL and returns its HTML.
func (f *PageFetcher) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}
	res, err := f.d.Dispatch(ctx, &FetchRequest{
		URL:     pageURL,
		Headers: f.opts.Headers,
		Stealth: f.opts.Stealth,
		Timeout: f.opts.Timeout,
	})
	if err != nil {
		return "", err
	}
	return res.HTML, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
