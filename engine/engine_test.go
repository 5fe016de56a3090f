package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	name  string
	delay time.Duration
	err   error
	calls atomic.Int32
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	f.calls.Add(1)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(f.delay):
	}
	if f.err != nil {
		return nil, f.err
	}
	return &FetchResult{HTML: "<p>" + f.name + "</p>", StatusCode: 200, FinalURL: req.URL, EngineName: f.name}, nil
}

func TestDispatcher_FirstSuccessWins(t *testing.T) {
	fast := &fakeEngine{name: "http"}
	slow := &fakeEngine{name: "browser", delay: time.Second}
	d := NewDispatcher([]Stage{{Engine: fast}, {Engine: slow, Delay: 500 * time.Millisecond}}, NewHostMemory(time.Hour))

	res, err := d.Dispatch(context.Background(), &FetchRequest{URL: "https://shop.example/page/2/"})
	require.NoError(t, err)
	assert.Equal(t, "http", res.EngineName)
	assert.Equal(t, int32(0), slow.calls.Load(), "escalation should not start once the first stage won")
}

func TestDispatcher_EscalatesOnFailure(t *testing.T) {
	broken := &fakeEngine{name: "http", err: &StatusError{URL: "x", StatusCode: 403}}
	browser := &fakeEngine{name: "browser"}
	mem := NewHostMemory(time.Hour)
	d := NewDispatcher([]Stage{{Engine: broken}, {Engine: browser, Delay: 10 * time.Millisecond}}, mem)

	res, err := d.Dispatch(context.Background(), &FetchRequest{URL: "https://shop.example/page/2/"})
	require.NoError(t, err)
	assert.Equal(t, "browser", res.EngineName)
	assert.Equal(t, "browser", mem.Get("shop.example"))

	// The remembered engine is tried alone next time.
	_, err = d.Dispatch(context.Background(), &FetchRequest{URL: "https://shop.example/page/3/"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), broken.calls.Load())
	assert.Equal(t, int32(2), browser.calls.Load())
}

func TestDispatcher_AllFail(t *testing.T) {
	d := NewDispatcher([]Stage{
		{Engine: &fakeEngine{name: "http", err: errors.New("connection refused")}},
		{Engine: &fakeEngine{name: "browser", err: errors.New("net::ERR_NAME_NOT_RESOLVED")}},
	}, nil)

	_, err := d.Dispatch(context.Background(), &FetchRequest{URL: "https://shop.example/"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection refused")
	assert.ErrorContains(t, err, "ERR_NAME_NOT_RESOLVED")
}

func TestHostMemory_Expires(t *testing.T) {
	mem := NewHostMemory(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mem.now = func() time.Time { return now }

	mem.Set("shop.example", "http")
	assert.Equal(t, "http", mem.Get("shop.example"))
	assert.Equal(t, 1, mem.Len())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, "", mem.Get("shop.example"))
	assert.Equal(t, 0, mem.Len())
}

func TestHTTPEngine_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/latin1":
			w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
			_, _ = w.Write([]byte("<html><body><h3>Caf\xe9</h3></body></html>"))
		case "/missing":
			http.NotFound(w, r)
		case "/feed":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{}`))
		default:
			assert.Equal(t, "yes", r.Header.Get("X-Test"))
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html><body>ok</body></html>"))
		}
	}))
	defer srv.Close()

	e := NewHTTPEngine(HTTPOptions{})

	res, err := e.Fetch(context.Background(), &FetchRequest{URL: srv.URL + "/", Headers: map[string]string{"X-Test": "yes"}})
	require.NoError(t, err)
	assert.Contains(t, res.HTML, "ok")
	assert.Equal(t, "http", res.EngineName)

	res, err = e.Fetch(context.Background(), &FetchRequest{URL: srv.URL + "/latin1"})
	require.NoError(t, err)
	assert.Contains(t, res.HTML, "Café")

	_, err = e.Fetch(context.Background(), &FetchRequest{URL: srv.URL + "/missing"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)

	_, err = e.Fetch(context.Background(), &FetchRequest{URL: srv.URL + "/feed"})
	assert.Error(t, err)
}

func TestPageFetcher_FetchHTML(t *testing.T) {
	d := NewDispatcher([]Stage{{Engine: &fakeEngine{name: "http"}}}, nil)
	html, err := d.Pages(PageOptions{Timeout: time.Second}).FetchHTML(context.Background(), "https://shop.example/page/2/")
	require.NoError(t, err)
	assert.Equal(t, "<p>http</p>", html)
}

// stuckEngine never returns until released, whatever its context says.
type stuckEngine struct {
	name    string
	release chan struct{}
}

func (s *stuckEngine) Name() string { return s.name }

func (s *stuckEngine) Fetch(context.Context, *FetchRequest) (*FetchResult, error) {
	<-s.release
	return nil, errors.New("released")
}

func TestPageFetcher_TimesOutStuckEngine(t *testing.T) {
	stuck := &stuckEngine{name: "browser", release: make(chan struct{})}
	defer close(stuck.release)

	mem := NewHostMemory(time.Hour)
	d := NewDispatcher([]Stage{
		{Engine: &fakeEngine{name: "http", err: &StatusError{URL: "x", StatusCode: 403}}},
		{Engine: stuck, Delay: 10 * time.Millisecond},
	}, mem)

	start := time.Now()
	_, err := d.Pages(PageOptions{Timeout: 200 * time.Millisecond}).FetchHTML(context.Background(), "https://shop.example/page/2/")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	// A remembered engine that hangs is bounded the same way.
	mem.Set("shop.example", "browser")
	start = time.Now()
	_, err = d.Pages(PageOptions{Timeout: 200 * time.Millisecond}).FetchHTML(context.Background(), "https://shop.example/page/3/")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestBrowserEngine_ForcesStealth(t *testing.T) {
	var sawStealth bool
	e := NewBrowserEngine(func(_ context.Context, req *FetchRequest) (*FetchResult, error) {
		sawStealth = req.Stealth
		return &FetchResult{HTML: "x"}, nil
	}, true)

	res, err := e.Fetch(context.Background(), &FetchRequest{URL: "https://shop.example/"})
	require.NoError(t, err)
	assert.True(t, sawStealth)
	assert.Equal(t, "browser-stealth", res.EngineName)

	_, err = NewBrowserEngine(nil, false).Fetch(context.Background(), &FetchRequest{})
	assert.Error(t, err)
}
