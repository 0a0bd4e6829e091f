package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/randalmurphal/tripflow/internal/server"
	"github.com/randalmurphal/tripflow/pkg/flowgraph/checkpoint"
	"github.com/randalmurphal/tripflow/pkg/flowgraph/observability"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		addr          string
		pruneInterval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := root.settings
			if addr != "" {
				s.Server.Addr = addr
			}
			logger := s.Log.NewLogger(os.Stderr)
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := []server.Option{server.WithLogger(logger)}
			if s.Metrics {
				exporter, err := observability.NewPrometheusExporter()
				if err != nil {
					return err
				}
				otel.SetMeterProvider(exporter.Provider())
				defer func() { _ = exporter.Shutdown(context.Background()) }()
				opts = append(opts, server.WithMetricsHandler(exporter.Handler()))
			}

			a, err := newApp(ctx, s, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if pruneInterval > 0 && s.SessionTTL > 0 {
				go prunePeriodically(ctx, a.store, s.SessionTTL, pruneInterval, logger)
			}

			return server.New(a.service, opts...).ListenAndServe(ctx, s.Server.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().DurationVar(&pruneInterval, "prune-interval", time.Hour, "how often to drop sessions older than session.ttl; 0 disables")
	return cmd
}

func prunePeriodically(ctx context.Context, store checkpoint.Store, ttl, every time.Duration, logger *slog.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := store.Prune(now.Add(-ttl))
			if err != nil {
				logger.Warn("session prune failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				logger.Info("stale sessions pruned", slog.Int("sessions", n))
			}
		}
	}
}
