package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablekit/tablekit/internal/config"
	"github.com/tablekit/tablekit/internal/logging"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Host: "localhost", Port: 8080},
		Cache:     config.CacheConfig{Capacity: 50, TTL: time.Minute},
		RateLimit: config.RateLimitConfig{MaxCalls: 100, Window: time.Second, MaxWait: time.Second},
		Retry:     config.RetryConfig{MaxAttempts: 2, BaseBackoff: time.Millisecond},
		Grid:      config.GridConfig{PageSize: 25, RowHeight: 32, Overscan: 3},
	}
}

func TestNew_AssemblesEntities(t *testing.T) {
	cfg := baseConfig()
	cfg.Entities = []config.EntityConfig{
		{
			Name:     "items",
			Strategy: "cache_first",
			Source:   config.SourceConfig{Type: "memory"},
			Columns: []config.ColumnConfig{
				{Key: "name", Label: "Name", Type: "text", Searchable: true, Editable: true},
				{Key: "price", Label: "Price", Type: "number"},
			},
		},
	}

	a, err := New(cfg, logging.NewNopLogger())
	require.NoError(t, err)
	defer a.Close()

	e, err := a.Entity("items")
	require.NoError(t, err)
	assert.Equal(t, "items", e.Source.Name())
	assert.NotNil(t, e.Adapter)

	cols := e.Table.Columns()
	require.Len(t, cols, 2)
	assert.NotNil(t, cols[0].Editable, "editable flag builds edit rules")
	assert.Nil(t, cols[1].Editable)

	_, err = a.Entity("ghost")
	assert.Error(t, err)
}

func TestNew_FileSourceLifecycle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name\n1,First\n"), 0o644))

	cfg := baseConfig()
	cfg.Entities = []config.EntityConfig{
		{
			Name:    "rows",
			Source:  config.SourceConfig{Type: "file", Path: path, Watch: true},
			Columns: []config.ColumnConfig{{Key: "name", Label: "Name"}},
		},
	}

	a, err := New(cfg, logging.NewNopLogger())
	require.NoError(t, err)

	e, err := a.Entity("rows")
	require.NoError(t, err)
	require.NoError(t, a.LoadInitial(context.Background(), e))
	assert.Equal(t, 1, e.Table.Len())

	assert.NoError(t, a.Close(), "file watcher shuts down cleanly")
}

func TestNew_SQLiteSource(t *testing.T) {
	cfg := baseConfig()
	cfg.Entities = []config.EntityConfig{
		{
			Name:    "notes",
			Source:  config.SourceConfig{Type: "sqlite", Path: filepath.Join(t.TempDir(), "app.db")},
			Columns: []config.ColumnConfig{{Key: "body", Label: "Body"}},
		},
	}

	a, err := New(cfg, logging.NewNopLogger())
	require.NoError(t, err)
	defer a.Close()

	e, err := a.Entity("notes")
	require.NoError(t, err)
	require.NoError(t, a.LoadInitial(context.Background(), e), "empty database lists cleanly")
	assert.Zero(t, e.Table.Len())
}
