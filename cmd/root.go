// Package cmd provides the tablekit command-line interface.
//
// Configuration sources, highest priority first:
//  1. Command-line flags (--config, --port, ...)
//  2. Environment variables with the TABLEKIT_ prefix
//     (TABLEKIT_SERVER_PORT, TABLEKIT_LOGGING_LEVEL, ...)
//  3. Configuration file (.tablekit.yml)
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tablekit/tablekit/internal/config"
	"github.com/tablekit/tablekit/internal/logging"
)

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tablekit",
	Short: "A virtualized data grid engine with a caching data layer",
	Long: `Tablekit serves tabular data behind a virtualized grid engine:
sorting, filtering, paging, inline editing and CSV export over pluggable
data sources (HTTP APIs, CSV files, SQLite), with caching, rate limiting
and retry built into the data path.

Quick Start:
  tablekit init                   Write a starter .tablekit.yml
  tablekit serve                  Start the grid server
  tablekit export stocks          Export an entity as CSV
  tablekit version                Show build information`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .tablekit.yml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level (debug, info, warn, error)")
}

// loadConfig reads configuration honoring the --config flag and the
// TABLEKIT_CONFIG_FILE environment variable.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = os.Getenv("TABLEKIT_CONFIG_FILE")
	}

	return config.Load(path)
}

// buildLogger creates the process logger; the --log-level flag overrides
// the configured level.
func buildLogger(cfg *config.Config) logging.Logger {
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(level),
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
}
