package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/use-agent/shelfscrape/models"
)

// entry holds a cached result with its creation timestamp.
type entry struct {
	result    *models.ScrapeResult
	createdAt time.Time
}

// Cache keeps recent successful scrape results in memory so repeated
// exports of the same listing skip the browser. It is safe for concurrent
// use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	now        func() time.Time
}

// New creates a Cache holding at most maxEntries results. A background
// goroutine evicts entries older than an hour every 5 minutes.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		now:        time.Now,
	}

	go c.cleanupLoop()
	return c
}

// Key derives a cache key from everything that shapes a result.
func Key(req *models.ScrapeRequest) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	write(req.URL)
	write(req.Format)
	for _, f := range req.Fields {
		write(f)
	}
	write("|")
	if req.ScrapeAllPages {
		write("all")
	}
	write(req.HTML)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a copy of the cached result if it is younger than maxAgeMs
// milliseconds. A non-positive maxAgeMs never hits.
func (c *Cache) Get(key string, maxAgeMs int) (*models.ScrapeResult, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.now().Sub(e.createdAt) > time.Duration(maxAgeMs)*time.Millisecond {
		return nil, false
	}

	cp := *e.result
	return &cp, true
}

// Set stores a successful result. Failures are never cached. At capacity
// an arbitrary entry is evicted to make room.
func (c *Cache) Set(key string, res *models.ScrapeResult) {
	if res == nil || !res.Success {
		return
	}
	cp := *res

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}
	c.store[key] = &entry{result: &cp, createdAt: c.now()}
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := c.now().Add(-1 * time.Hour)
		c.mu.Lock()
		for k, e := range c.store {
			if e.createdAt.Before(cutoff) {
				delete(c.store, k)
			}
		}
		c.mu.Unlock()
	}
}
