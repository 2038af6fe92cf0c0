package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.github.com", cfg.GitHub.BaseURL)
	assert.Equal(t, 3, cfg.GitHub.MaxAttempts)
	assert.Equal(t, 100, cfg.Crawl.PageSize)
	assert.Equal(t, 100, cfg.Crawl.Concurrency)
	assert.Equal(t, "nominatim", cfg.Location.Provider)
	assert.Equal(t, 2, cfg.Location.Retries)
	assert.Equal(t, "noop", cfg.Queue.Provider)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout())
	assert.Equal(t, 60*time.Second, cfg.RateLimitPause())
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
github:
  tokens: ["tok-a", "tok-b"]
  timeout_seconds: 10
  max_attempts: 5
crawl:
  page_size: 50
  concurrency: 20
  schedule: "@hourly"
location:
  provider: opencage
  opencage_key: oc-key
  region_code: "NO"
db:
  dsn: postgres://localhost/gitscout
queue:
  provider: pubsub
  project_id: proj
  topic_id: saved-users
archive:
  provider: local
  base_dir: /tmp/archive
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"tok-a", "tok-b"}, cfg.GitHub.Tokens)
	assert.Equal(t, 5, cfg.GitHub.MaxAttempts)
	assert.Equal(t, 50, cfg.Crawl.PageSize)
	assert.Equal(t, "@hourly", cfg.Crawl.Schedule)
	assert.Equal(t, "opencage", cfg.Location.Provider)
	assert.Equal(t, "NO", cfg.Location.RegionCode)
	assert.Equal(t, "pubsub", cfg.Queue.Provider)
}

func TestLoadSplitsCommaSeparatedTokens(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
github:
  tokens: ["tok-a, tok-b , tok-c"]
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-a", "tok-b", "tok-c"}, cfg.GitHub.Tokens)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"zero attempts", func(c *Config) { c.GitHub.MaxAttempts = 0 }},
		{"zero page size", func(c *Config) { c.Crawl.PageSize = 0 }},
		{"unknown provider", func(c *Config) { c.Location.Provider = "carrier-pigeon" }},
		{"opencage without key", func(c *Config) { c.Location.Provider = "opencage" }},
		{"claude without key", func(c *Config) { c.Location.Provider = "claude" }},
		{"pubsub without topic", func(c *Config) { c.Queue.Provider = "pubsub" }},
		{"gcs without bucket", func(c *Config) { c.Archive.Provider = "gcs" }},
		{"chromedp without profile", func(c *Config) { c.Mailer.Provider = "chromedp" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := Load("")
			require.NoError(t, err)
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
