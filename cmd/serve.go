package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tablekit/tablekit/internal/app"
	"github.com/tablekit/tablekit/internal/server"
)

var (
	serveHost   string
	servePort   int
	serveEntity string
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the grid server",
	Long: `Serve starts the HTTP server for a configured entity: the JSON view
API, inline editing, CSV export, and the WebSocket live-update feed.

The entity's data is loaded through its adapter at startup, so cache,
rate-limit and retry settings apply from the first request.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "bind host (overrides config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "bind port (overrides config)")
	serveCmd.Flags().StringVarP(&serveEntity, "entity", "e", "", "entity to serve (defaults to the first configured)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	logger := buildLogger(cfg)

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	entity, err := pickEntity(application, serveEntity)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.LoadInitial(ctx, entity); err != nil {
		return fmt.Errorf("loading %s: %w", entity.Name, err)
	}
	logger.Info(ctx, "loaded entity", "entity", entity.Name, "records", entity.Table.Len())

	srv := server.New(server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, entity.Table, entity.Columns, entity.Adapter, logger)

	return srv.Start(ctx)
}

func pickEntity(application *app.App, name string) (*app.Entity, error) {
	if name != "" {
		return application.Entity(name)
	}

	if len(application.Config.Entities) == 0 {
		return nil, fmt.Errorf("no entities configured; run 'tablekit init' to create a starter config")
	}

	return application.Entity(application.Config.Entities[0].Name)
}
