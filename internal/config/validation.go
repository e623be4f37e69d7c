package config

import (
	"fmt"

	"github.com/tablekit/tablekit/internal/errors"
)

var validStrategies = map[string]bool{
	"":                       true, // defaults to network_first
	"cache_first":            true,
	"network_first":          true,
	"stale_while_revalidate": true,
}

var validSourceTypes = map[string]bool{
	"http":   true,
	"file":   true,
	"sqlite": true,
	"memory": true,
}

var validColumnTypes = map[string]bool{
	"":        true, // defaults to text
	"text":    true,
	"number":  true,
	"date":    true,
	"boolean": true,
}

// Validate checks cross-field constraints the type system cannot.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Cache.Capacity < 1 {
		return invalid("cache.capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Cache.TTL <= 0 {
		return invalid("cache.ttl must be positive, got %s", c.Cache.TTL)
	}

	if c.RateLimit.MaxCalls < 1 {
		return invalid("rate_limit.max_calls must be positive, got %d", c.RateLimit.MaxCalls)
	}
	if c.RateLimit.Window <= 0 {
		return invalid("rate_limit.window must be positive, got %s", c.RateLimit.Window)
	}

	if c.Retry.MaxAttempts < 1 {
		return invalid("retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}

	if c.Grid.PageSize < 1 {
		return invalid("grid.page_size must be positive, got %d", c.Grid.PageSize)
	}
	if c.Grid.RowHeight <= 0 {
		return invalid("grid.row_height must be positive, got %v", c.Grid.RowHeight)
	}

	seen := make(map[string]bool, len(c.Entities))
	for i := range c.Entities {
		if err := c.Entities[i].validate(); err != nil {
			return err
		}
		if seen[c.Entities[i].Name] {
			return invalid("duplicate entity %q", c.Entities[i].Name)
		}
		seen[c.Entities[i].Name] = true
	}

	return nil
}

func (e *EntityConfig) validate() error {
	if e.Name == "" {
		return invalid("entity name is required")
	}

	if !validStrategies[e.Strategy] {
		return invalid("entity %q: unknown strategy %q", e.Name, e.Strategy)
	}

	if !validSourceTypes[e.Source.Type] {
		return invalid("entity %q: unknown source type %q", e.Name, e.Source.Type)
	}

	switch e.Source.Type {
	case "http":
		if e.Source.URL == "" {
			return invalid("entity %q: http source requires url", e.Name)
		}
	case "file", "sqlite":
		if e.Source.Path == "" {
			return invalid("entity %q: %s source requires path", e.Name, e.Source.Type)
		}
	}

	if len(e.Columns) == 0 {
		return invalid("entity %q: at least one column is required", e.Name)
	}

	keys := make(map[string]bool, len(e.Columns))
	for _, col := range e.Columns {
		if col.Key == "" {
			return invalid("entity %q: column key is required", e.Name)
		}
		if keys[col.Key] {
			return invalid("entity %q: duplicate column %q", e.Name, col.Key)
		}
		keys[col.Key] = true

		if !validColumnTypes[col.Type] {
			return invalid("entity %q: column %q has unknown type %q", e.Name, col.Key, col.Type)
		}
		if col.MinWidth > 0 && col.MaxWidth > 0 && col.MinWidth > col.MaxWidth {
			return invalid("entity %q: column %q min_width exceeds max_width", e.Name, col.Key)
		}
		switch col.Frozen {
		case "", "left", "right":
		default:
			return invalid("entity %q: column %q frozen must be left or right", e.Name, col.Key)
		}
	}

	return nil
}

func invalid(format string, args ...interface{}) error {
	return errors.NewInternalError(errors.ErrCodeConfigInvalid, fmt.Sprintf(format, args...), nil)
}
