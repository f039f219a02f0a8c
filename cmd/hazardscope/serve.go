package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/hazardscope/internal/api"
	"github.com/crimson-sun/hazardscope/internal/app"
)

func serveCommand(g *globals) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP analysis service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := g.cfg
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			ctx := cmd.Context()

			a, err := app.Open(ctx, cfg, slog.Default())
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := api.New(a.Engine, a.Cache, api.Options{
				ScratchDir:     cfg.Server.ScratchDir,
				MaxUploadBytes: cfg.Server.MaxUploadBytes,
				StatsTTL:       cfg.Server.StatsCacheTTL,
				Metrics:        a.Metrics.Handler(),
				Health:         a.Store,
				Logger:         slog.Default().With("component", "api"),
			})
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(cfg.Server.Addr) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			slog.Info("shutting down", "grace", cfg.Server.ShutdownGrace)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}
