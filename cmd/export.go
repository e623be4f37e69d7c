package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tablekit/tablekit/internal/app"
	"github.com/tablekit/tablekit/internal/export"
)

var (
	exportOutput  string
	exportColumns string
)

var exportCmd = &cobra.Command{
	Use:   "export <entity>",
	Short: "Export an entity's records as CSV",
	Long: `Export loads an entity through its adapter and writes the records as
CSV to stdout or a file. Column selection follows the entity's configured
layout unless --columns narrows it.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (defaults to stdout)")
	exportCmd.Flags().StringVar(&exportColumns, "columns", "", "comma-separated column keys")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := buildLogger(cfg)

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	entity, err := application.Entity(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.LoadInitial(ctx, entity); err != nil {
		return fmt.Errorf("loading %s: %w", entity.Name, err)
	}

	out := os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	opts := export.Options{}
	if exportColumns != "" {
		opts.Columns = strings.Split(exportColumns, ",")
	}

	if err := export.CSV(out, entity.Table, opts); err != nil {
		return err
	}

	if exportOutput != "" {
		fmt.Fprintf(os.Stderr, "Exported %d records to %s\n", entity.Table.Len(), exportOutput)
	}

	return nil
}
