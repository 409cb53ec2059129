package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dataforge-ai/forge/internal/server"
	"github.com/dataforge-ai/forge/internal/worker"
)

var (
	serveHost    string
	servePort    string
	serveWorkers int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the forge API server and job workers",
	Long: `Start the forge HTTP server together with the pipeline workers.

Jobs submitted via POST /api/jobs are queued and picked up by the
workers; progress is streamed at GET /api/jobs/{id}/stream.

Examples:
  forge serve                    # Start on default port 8080
  forge serve --port 3000        # Start on custom port
  forge serve --workers 4        # Run four jobs concurrently`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()

		a, err := newApp(ctx, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		a.cfg.WatchConfig()

		host, port := serveHost, servePort
		if host == "" {
			host = a.cfg.Get().Server.Host
		}
		if port == "" {
			port = a.cfg.Get().Server.Port
		}

		srv, err := server.New(server.Config{
			Host:      host,
			Port:      port,
			Store:     a.store,
			Bus:       a.bus,
			Templates: a.templates,
			Logger:    logger,
		})
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return srv.Start(gctx) })
		for i := 0; i < serveWorkers; i++ {
			w := worker.New(a.store, a.orchestrator, logger)
			g.Go(func() error { return w.Run(gctx) })
		}

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default from config)")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 1, "Number of concurrent job workers")

	rootCmd.AddCommand(serveCmd)
}
