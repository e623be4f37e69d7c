package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:     "init",
	Aliases: []string{"i"},
	Short:   "Write a starter .tablekit.yml",
	RunE:    runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config file")

	rootCmd.AddCommand(initCmd)
}

// starterConfig is marshaled rather than templated so the emitted file
// always parses back.
func starterConfig() map[string]interface{} {
	return map[string]interface{}{
		"server": map[string]interface{}{
			"host": "localhost",
			"port": 8080,
		},
		"cache": map[string]interface{}{
			"capacity": 500,
			"ttl":      "60s",
		},
		"rate_limit": map[string]interface{}{
			"max_calls": 10,
			"window":    "1s",
			"max_wait":  "10s",
		},
		"retry": map[string]interface{}{
			"max_attempts": 3,
			"base_backoff": "100ms",
			"max_backoff":  "5s",
		},
		"entities": []map[string]interface{}{
			{
				"name":     "items",
				"strategy": "network_first",
				"source": map[string]interface{}{
					"type": "file",
					"path": "items.csv",
				},
				"columns": []map[string]interface{}{
					{"key": "name", "label": "Name", "type": "text", "sortable": true, "searchable": true, "width": 200, "min_width": 80, "max_width": 400},
					{"key": "price", "label": "Price", "type": "number", "sortable": true, "editable": true, "width": 100},
				},
			},
		},
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	const path = ".tablekit.yml"

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	data, err := yaml.Marshal(starterConfig())
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Wrote %s\n", path)

	return nil
}
