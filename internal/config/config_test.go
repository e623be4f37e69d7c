package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  host: 0.0.0.0
  port: 9000

cache:
  capacity: 200
  ttl: 30s

rate_limit:
  max_calls: 5
  window: 1s
  max_wait: 4s

entities:
  - name: stocks
    strategy: stale_while_revalidate
    ttl: 15s
    source:
      type: http
      url: https://api.example.com/v1
      headers:
        X-Api-Key: secret
    columns:
      - key: symbol
        label: Symbol
        type: text
        sortable: true
        searchable: true
        frozen: left
        width: 120
        min_width: 80
        max_width: 200
      - key: price
        label: Price
        type: number
        sortable: true
        editable: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tablekit.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FullFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 200, cfg.Cache.Capacity)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 5, cfg.RateLimit.MaxCalls)

	require.Len(t, cfg.Entities, 1)
	entity := cfg.Entities[0]
	assert.Equal(t, "stocks", entity.Name)
	assert.Equal(t, "stale_while_revalidate", entity.Strategy)
	assert.Equal(t, "https://api.example.com/v1", entity.Source.URL)
	assert.Equal(t, "secret", entity.Source.Headers["X-Api-Key"])
	require.Len(t, entity.Columns, 2)
	assert.Equal(t, "left", entity.Columns[0].Frozen)
}

func TestLoad_DefaultsApply(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 8081\n"))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 500, cfg.Cache.Capacity, "defaults fill unset sections")
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 25, cfg.Grid.PageSize)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(writeConfig(t, sampleConfig))
		require.NoError(t, err)
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		errHas string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad capacity", func(c *Config) { c.Cache.Capacity = 0 }, "cache.capacity"},
		{"bad strategy", func(c *Config) { c.Entities[0].Strategy = "psychic" }, "strategy"},
		{"bad source type", func(c *Config) { c.Entities[0].Source.Type = "carrier_pigeon" }, "source type"},
		{"http without url", func(c *Config) { c.Entities[0].Source.URL = "" }, "requires url"},
		{"no columns", func(c *Config) { c.Entities[0].Columns = nil }, "at least one column"},
		{"duplicate column", func(c *Config) {
			c.Entities[0].Columns = append(c.Entities[0].Columns, c.Entities[0].Columns[0])
		}, "duplicate column"},
		{"min over max", func(c *Config) {
			c.Entities[0].Columns[0].MinWidth = 500
		}, "min_width"},
		{"bad frozen side", func(c *Config) { c.Entities[0].Columns[0].Frozen = "middle" }, "frozen"},
		{"duplicate entity", func(c *Config) {
			c.Entities = append(c.Entities, c.Entities[0])
		}, "duplicate entity"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errHas)
		})
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TABLEKIT_SERVER_PORT", "7777")

	cfg, err := Load(writeConfig(t, "server:\n  port: 8081\n"))
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port, "environment wins over file")
}
