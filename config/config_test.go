package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Scraper.MaxPages)
	assert.Equal(t, 5*time.Second, cfg.Scraper.ContentWaitTimeout)
	assert.Equal(t, "text", cfg.Scraper.DescriptionFormat)
	assert.True(t, cfg.Engine.EnableBrowserFallback)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("SHELFSCRAPE_PORT", "9090")
	t.Setenv("SHELFSCRAPE_MAX_PAGES", "7")
	t.Setenv("SHELFSCRAPE_API_KEYS", "a, b ,,c")
	t.Setenv("SHELFSCRAPE_ESCALATION_DELAY", "750ms")
	t.Setenv("SHELFSCRAPE_HEADLESS", "not-a-bool")

	cfg := Load()
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 7, cfg.Scraper.MaxPages)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Auth.APIKeys)
	assert.Equal(t, 750*time.Millisecond, cfg.Engine.EscalationDelay)
	assert.True(t, cfg.Browser.Headless, "unparsable values fall back to the default")
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SHELFSCRAPE_TEST_FROM_FILE=file\nSHELFSCRAPE_TEST_PRESET=file\n"), 0o600))

	t.Setenv("SHELFSCRAPE_TEST_PRESET", "env")
	t.Cleanup(func() { os.Unsetenv("SHELFSCRAPE_TEST_FROM_FILE") })

	loadDotEnv(path)
	assert.Equal(t, "file", os.Getenv("SHELFSCRAPE_TEST_FROM_FILE"))
	assert.Equal(t, "env", os.Getenv("SHELFSCRAPE_TEST_PRESET"), "existing variables win")

	loadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
}
