// Package app wires stores, caches, blob storage and external collaborators
// into the round services and runs whichever of the scheduler and HTTP
// server the configured mode asks for.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/alanyoungcy/roundoracle/internal/config"
)

// App owns the configuration and the cleanup of everything Run wires.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	closeOnce sync.Once
	cleanup   func()
}

// New creates an App.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires dependencies and blocks in the configured mode until ctx is
// cancelled or the mode finishes.
func (a *App) Run(ctx context.Context) error {
	mode := strings.ToLower(a.cfg.Mode)
	a.logger.InfoContext(ctx, "starting",
		slog.String("mode", mode),
		slog.Any("config", config.RedactedConfig(a.cfg)),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.cleanup = cleanup
	svc := a.buildServices(deps)

	switch mode {
	case "scheduler":
		return a.SchedulerMode(ctx, deps, svc)
	case "server":
		return a.ServerMode(ctx, deps, svc)
	case "full":
		return a.FullMode(ctx, deps, svc)
	case "once":
		return a.OnceMode(ctx, svc)
	}
	return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
}

// Close releases every wired resource. Calls after the first are no-ops.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.logger.Info("shutting down")
		if a.cleanup != nil {
			a.cleanup()
		}
	})
}
