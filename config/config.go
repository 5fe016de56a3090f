package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
	Engine    EngineConfig
	Jobs      JobsConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// PoolSize is the tab pool capacity (max concurrent scrapes).
	PoolSize int // default: 5

	// DefaultProxy is the proxy URL for the browser and the HTTP engine.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// ScraperConfig controls scraping behavior.
type ScraperConfig struct {
	// DefaultTimeout applies when a request sets none.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout caps the timeout a client may ask for.
	MaxTimeout time.Duration // default: 120s

	// ContentWaitTimeout bounds the wait for product markup on page 1.
	ContentWaitTimeout time.Duration // default: 5s

	// MaxPages caps the page total a traversal will walk.
	MaxPages int // default: 50

	// DescriptionFormat is "text" or "markdown".
	DescriptionFormat string // default: "text"

	// BlockedResourceTypes lists resource types the browser never loads.
	// default: ["Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockTrackers fails requests to analytics and ad hosts.
	BlockTrackers bool // default: true
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// CacheConfig controls the scrape result cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached results.
	MaxEntries int // default: 200
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// EngineConfig controls how pages 2..N are fetched.
type EngineConfig struct {
	// EnableBrowserFallback lets the dispatcher escalate to a browser tab
	// when plain HTTP fails.
	EnableBrowserFallback bool // default: true

	// EscalationDelay is how long the HTTP engine runs alone before the
	// browser joins the race.
	EscalationDelay time.Duration // default: 3s

	// PageTimeout bounds each remote page load.
	PageTimeout time.Duration // default: 20s

	// HostMemoryTTL is how long the winning engine is remembered per host.
	HostMemoryTTL time.Duration // default: 1h
}

// JobsConfig controls asynchronous scrape jobs.
type JobsConfig struct {
	// Retention is how long finished jobs stay queryable.
	Retention time.Duration // default: 1h
}

// Load reads configuration from the environment, after merging any .env
// file found in the working directory.
func Load() *Config {
	loadDotEnv(".env")

	return &Config{
		Server: ServerConfig{
			Host: envOr("SHELFSCRAPE_HOST", "0.0.0.0"),
			Port: envIntOr("SHELFSCRAPE_PORT", 8080),
			Mode: envOr("SHELFSCRAPE_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("SHELFSCRAPE_HEADLESS", true),
			PoolSize:     envIntOr("SHELFSCRAPE_POOL_SIZE", 5),
			DefaultProxy: os.Getenv("SHELFSCRAPE_PROXY"),
			NoSandbox:    envBoolOr("SHELFSCRAPE_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("SHELFSCRAPE_BROWSER_BIN"),
		},
		Scraper: ScraperConfig{
			DefaultTimeout:     envDurationOr("SHELFSCRAPE_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:         envDurationOr("SHELFSCRAPE_MAX_TIMEOUT", 120*time.Second),
			ContentWaitTimeout: envDurationOr("SHELFSCRAPE_CONTENT_WAIT", 5*time.Second),
			MaxPages:           envIntOr("SHELFSCRAPE_MAX_PAGES", 50),
			DescriptionFormat:  envOr("SHELFSCRAPE_DESCRIPTION_FORMAT", "text"),
			BlockedResourceTypes: envSliceOr("SHELFSCRAPE_BLOCKED_RESOURCES", []string{
				"Stylesheet", "Font", "Media",
			}),
			BlockTrackers: envBoolOr("SHELFSCRAPE_BLOCK_TRACKERS", true),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SHELFSCRAPE_AUTH_ENABLED", true),
			APIKeys: envSliceOr("SHELFSCRAPE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SHELFSCRAPE_RATE_RPS", 2.0),
			Burst:             envIntOr("SHELFSCRAPE_RATE_BURST", 5),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("SHELFSCRAPE_CACHE_MAX_ENTRIES", 200),
		},
		Log: LogConfig{
			Level:  envOr("SHELFSCRAPE_LOG_LEVEL", "info"),
			Format: envOr("SHELFSCRAPE_LOG_FORMAT", "json"),
		},
		Engine: EngineConfig{
			EnableBrowserFallback: envBoolOr("SHELFSCRAPE_BROWSER_FALLBACK", true),
			EscalationDelay:       envDurationOr("SHELFSCRAPE_ESCALATION_DELAY", 3*time.Second),
			PageTimeout:           envDurationOr("SHELFSCRAPE_PAGE_TIMEOUT", 20*time.Second),
			HostMemoryTTL:         envDurationOr("SHELFSCRAPE_HOST_MEMORY_TTL", time.Hour),
		},
		Jobs: JobsConfig{
			Retention: envDurationOr("SHELFSCRAPE_JOB_RETENTION", time.Hour),
		},
	}
}

// loadDotEnv merges path into the environment. Variables already set win;
// a missing file is not an error.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config: failed to read env file", "path", path, "error", err)
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
