package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 10*time.Second, cfg.SyncInterval)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "gofeed", cfg.Parser)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Empty(t, cfg.FilterKeywords)
}

func TestLoadFromFile(t *testing.T) {
	path := writeFile(t, "config.hcl", `
database_driver = "sqlite"
database_dsn = "/var/lib/feed-sync/feeds.db"
sync_interval = "1m"
workers = 8
parser = "rss"
filter_keywords = ["sponsored", "ad"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "/var/lib/feed-sync/feeds.db", cfg.DatabaseDSN)
	assert.Equal(t, time.Minute, cfg.SyncInterval)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "rss", cfg.Parser)
	assert.Equal(t, []string{"sponsored", "ad"}, cfg.FilterKeywords)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.hcl", `workers = 8`)
	t.Setenv("FSYNC_WORKERS", "2")
	t.Setenv("FSYNC_FETCH_TIMEOUT", "5s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
}

func TestLoadMissingFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "config.local.hcl"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	valid, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "mysql" }},
		{"unknown parser", func(c *Config) { c.Parser = "atom" }},
		{"zero interval", func(c *Config) { c.SyncInterval = 0 }},
		{"negative timeout", func(c *Config) { c.FetchTimeout = -time.Second }},
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"empty dsn", func(c *Config) { c.DatabaseDSN = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
