package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gkobilansky/funnel-goat/internal/logger"
	"github.com/gkobilansky/funnel-goat/internal/server"
	"github.com/gkobilansky/funnel-goat/internal/store"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the funnel-goat HTTP server.

The server provides:
  - Client script at /fg.js
  - Assignment (/r/{slug}), event (/e) and progress (/p) endpoints
  - Dashboard and admin API for viewing results and entering sales and ad spend
  - Health check and Prometheus metrics

Example:
  funnel-goat serve --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts, port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, opts *rootOptions, port int) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Port = port
	}

	log, err := logger.New(cfg.Environment)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	srv := server.New(s, cfg, log)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Server running at http://localhost:%d\n", srv.Port())
	fmt.Fprintf(out, "Client script: http://localhost:%d/fg.js\n", srv.Port())
	fmt.Fprintf(out, "Dashboard: http://localhost:%d/dashboard?token=%s\n", srv.Port(), srv.Token())
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting funnel-goat",
		zap.String("db", cfg.DBPath),
		zap.String("environment", cfg.Environment))
	return srv.Start(ctx)
}
