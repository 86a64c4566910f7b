package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/missiontle/internal/api"
	"github.com/star/missiontle/internal/auth"
	"github.com/star/missiontle/internal/telemetry"
	"github.com/star/missiontle/internal/version"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve GET /tle/{mission_id} over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(os.Stdout)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}

			// Graceful shutdown on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdownTracing, err := telemetry.Setup(ctx, "missiontle", version.Version, cfg.OTelEndpoint)
			if err != nil {
				logger.Warn("tracing disabled", "error", err)
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTracing(flushCtx); err != nil {
					logger.Warn("tracing shutdown error", "error", err)
				}
			}()

			agg, err := newAggregator(cfg, logger)
			if err != nil {
				return err
			}

			srv := api.NewServer(api.Config{
				Addr:           cfg.HTTPAddr,
				Auth:           auth.Config{Enabled: cfg.AuthEnabled, Token: cfg.AuthToken},
				TrustProxy:     cfg.TrustProxy,
				RequestTimeout: cfg.RequestTimeout,
			}, logger, agg)

			errCh := make(chan error, 1)
			go func() {
				logger.Info("starting server",
					"addr", cfg.HTTPAddr,
					"version", version.Info(),
					"txn_limit", cfg.TransactionLimit,
					"concurrency", cfg.Concurrency,
					"auth_enabled", cfg.AuthEnabled,
					"tracing_enabled", cfg.OTelEndpoint != "",
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					logger.Error("server listen error", "error", err)
					return err
				}
			case <-ctx.Done():
			}
			logger.Info("shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("server shutdown error", "error", err)
				return err
			}

			logger.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http_addr)")
	return cmd
}
