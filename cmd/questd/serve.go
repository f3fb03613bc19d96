package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/questd/internal/events"
	httpserver "github.com/fyrsmithlabs/questd/internal/http"
	"github.com/fyrsmithlabs/questd/internal/planner"
	"github.com/fyrsmithlabs/questd/pkg/auth"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server. The database schema is migrated on startup.

Examples:
  # Start with defaults (SQLite file questd.db in the working directory)
  questd serve

  # PostgreSQL and a Gemini key from the environment
  DATABASE_DRIVER=postgres DATABASE_DSN=postgres://... GOOGLE_API_KEY=... questd serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, *configPath)
		},
	}
}

// runServe starts the server and blocks until ctx is cancelled.
func runServe(ctx context.Context, configPath string) error {
	a, err := bootstrap(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	cfg := a.cfg
	zl := a.log.Underlying()

	a.log.Info(ctx, "starting questd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Driver),
		zap.String("planner", cfg.Planner.Provider),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout))

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	if cfg.Auth.UsesDevSecret() {
		a.log.Warn(ctx, "auth token secret is not configured; signing tokens with the development secret, set AUTH_TOKEN_SECRET")
	}
	tokens, err := auth.NewTokenIssuer(cfg.Auth.TokenSecret.Value(), cfg.Auth.TokenTTL(), cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	pub, err := events.Connect(cfg.Events, zl.Named("events"))
	if err != nil {
		return err
	}
	defer pub.Close()

	gen, err := planner.NewGenerator(ctx, cfg.Planner)
	if err != nil {
		return err
	}
	if gen == nil {
		a.log.Warn(ctx, "planner has no API key; planning requests will fail until one is configured")
	}
	pl := planner.New(cfg.Planner, gen, st,
		planner.WithLogger(zl.Named("planner")),
		planner.WithPublisher(pub),
		planner.WithTracer(a.tel.Tracer("questd.planner")),
		planner.WithMetrics(planner.NewMetrics(prometheus.DefaultRegisterer)),
	)

	srv, err := httpserver.NewServer(cfg, httpserver.Deps{
		Store:    st,
		Planner:  pl,
		Tokens:   tokens,
		Events:   pub,
		Metrics:  httpserver.NewHTTPMetricsWithMeter(a.tel.Meter("questd.http"), zl),
		Gatherer: prometheus.DefaultGatherer,
	}, zl.Named("http"))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info(ctx, "shutting down gracefully")
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	a.log.Info(context.Background(), "server shutdown complete")
	return nil
}
