package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/formscan/formscan/internal/config"
	"github.com/formscan/formscan/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the formscan server",
	Long: `Start the formscan HTTP server.

The server runs the OCR worker pool and the job ledger; both start with
the server and shut down with it (via Ctrl+C or SIGTERM).

The server provides:
  - /health              - Basic server health check
  - /status              - Pool and ledger status
  - /api/extract/fields  - Synchronous field-region extraction
  - /api/ocr/scan        - Asynchronous bulk text extraction
  - /api/ocr/jobs        - Job ledger queries

Examples:
  formscan serve                    # Start on default port 8080
  formscan serve --port 3000        # Start on custom port
  formscan serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		// Load configuration and watch for changes
		cfgMgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfgMgr.WatchConfig()

		cfg := cfgMgr.Get()
		host := serveHost
		if host == "" {
			host = cfg.Server.Host
		}
		port := servePort
		if port == "" {
			port = cfg.Server.Port
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			ConfigManager: cfgMgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (overrides config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (overrides config)")

	rootCmd.AddCommand(serveCmd)
}
