package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/questd/internal/config"
	"github.com/fyrsmithlabs/questd/internal/logging"
	"github.com/fyrsmithlabs/questd/internal/store"
	"github.com/fyrsmithlabs/questd/internal/telemetry"
)

// app holds the process-wide dependencies every command needs.
type app struct {
	cfg *config.Config
	log *logging.Logger
	tel *telemetry.Telemetry
}

// bootstrap loads configuration and starts logging and telemetry.
func bootstrap(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	lcfg, err := logging.FromAppConfig(cfg)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger, err := logging.NewLogger(lcfg, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if hs := tel.Health(); hs.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Error(hs.LastErr))
	}
	return &app{cfg: cfg, log: logger, tel: tel}, nil
}

func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(ctx, a.cfg.Database, store.WithLogger(a.log.Underlying().Named("store")))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}

// close flushes telemetry and logs. It uses a fresh context so it still
// runs after the command context is cancelled.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tel.Shutdown(ctx); err != nil {
		a.log.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
	}
	_ = a.log.Sync() // Best-effort sync on shutdown
}
