// Package config loads and validates tablekit configuration from
// .tablekit.yml, environment variables (TABLEKIT_ prefix), and flags
// bound by the CLI layer.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tablekit/tablekit/internal/errors"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Grid      GridConfig      `mapstructure:"grid"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Entities  []EntityConfig  `mapstructure:"entities"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// CacheConfig bounds the shared cache store.
type CacheConfig struct {
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig bounds outbound request rate per window.
type RateLimitConfig struct {
	MaxCalls int           `mapstructure:"max_calls"`
	Window   time.Duration `mapstructure:"window"`
	MaxWait  time.Duration `mapstructure:"max_wait"`
}

// RetryConfig bounds the adapter retry loop.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
}

// GridConfig holds table-wide defaults.
type GridConfig struct {
	PageSize  int     `mapstructure:"page_size"`
	RowHeight float64 `mapstructure:"row_height"`
	Overscan  int     `mapstructure:"overscan"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EntityConfig declares one entity: its data source, read strategy and
// column layout.
type EntityConfig struct {
	Name     string         `mapstructure:"name"`
	Source   SourceConfig   `mapstructure:"source"`
	Strategy string         `mapstructure:"strategy"`
	TTL      time.Duration  `mapstructure:"ttl"`
	IDField  string         `mapstructure:"id_field"`
	Columns  []ColumnConfig `mapstructure:"columns"`
}

// SourceConfig selects and parameterizes a data source.
type SourceConfig struct {
	// Type is one of http, file, sqlite, memory.
	Type string `mapstructure:"type"`
	// URL is the base URL for http sources.
	URL string `mapstructure:"url"`
	// Path is the file path for file and sqlite sources.
	Path string `mapstructure:"path"`
	// Headers are attached to every http request.
	Headers map[string]string `mapstructure:"headers"`
	// Watch enables change watching for file sources.
	Watch bool `mapstructure:"watch"`
}

// ColumnConfig declares one column.
type ColumnConfig struct {
	Key        string  `mapstructure:"key"`
	Label      string  `mapstructure:"label"`
	Type       string  `mapstructure:"type"`
	Sortable   bool    `mapstructure:"sortable"`
	Filterable bool    `mapstructure:"filterable"`
	Searchable bool    `mapstructure:"searchable"`
	Editable   bool    `mapstructure:"editable"`
	Width      float64 `mapstructure:"width"`
	MinWidth   float64 `mapstructure:"min_width"`
	MaxWidth   float64 `mapstructure:"max_width"`
	Frozen     string  `mapstructure:"frozen"`
}

// Load reads configuration from the given file (or the default search
// path when empty), layers TABLEKIT_ environment variables on top, and
// validates the result.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".tablekit")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	v.SetEnvPrefix("TABLEKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is fine; an explicit one is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return nil, errors.NewInternalError(errors.ErrCodeConfigInvalid, "reading config", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeConfigInvalid, "parsing config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)

	v.SetDefault("cache.capacity", 500)
	v.SetDefault("cache.ttl", "60s")

	v.SetDefault("rate_limit.max_calls", 10)
	v.SetDefault("rate_limit.window", "1s")
	v.SetDefault("rate_limit.max_wait", "10s")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_backoff", "100ms")
	v.SetDefault("retry.max_backoff", "5s")

	v.SetDefault("grid.page_size", 25)
	v.SetDefault("grid.row_height", 32.0)
	v.SetDefault("grid.overscan", 3)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}
