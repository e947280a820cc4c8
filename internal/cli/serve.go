// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/fcrouter/internal/config"
	"github.com/jeranaias/fcrouter/internal/server"
)

// shutdownTimeout bounds the graceful drain after SIGINT/SIGTERM.
const shutdownTimeout = 10 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP routing API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.cfg.Server
			if addr != "" {
				cfg.Addr = addr
			}

			app, err := root.app(cmd.Context(), AppOptions{Watch: true, Metrics: true, DecisionLog: true})
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Local.CheckHealth(cmd.Context()); err != nil {
				app.Logger.Warn("LOCAL_UNHEALTHY", zap.String("engine", app.EngineLabel()), zap.Error(err))
			}
			return runServer(cmd.Context(), newServer(app, cfg), app.Logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// newServer assembles the HTTP server from an App.
func newServer(app *App, cfg config.ServerConfig) *server.Server {
	opts := []server.Option{
		server.WithLogger(app.Logger.Named("server")),
		server.WithStats(app.Stats),
		server.WithLocalHealth(app.Local),
		server.WithCloudStatus(app.Config.Cloud.Provider, app.CloudConfigured()),
	}
	if app.Metrics != nil {
		opts = append(opts, server.WithMetrics(app.Metrics, app.Registry))
	}
	if app.Decisions != nil {
		opts = append(opts, server.WithDecisionLog(app.Decisions))
	}
	return server.New(cfg, app.Controller, app.Catalog, opts...)
}

// runServer serves until ctx is cancelled, then drains in-flight requests.
func runServer(ctx context.Context, srv *server.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	logger.Info("SERVER_STOPPED")
	return <-errCh
}
