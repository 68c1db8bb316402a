package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/roundoracle/internal/scheduler"
	"github.com/alanyoungcy/roundoracle/internal/server"
	"github.com/alanyoungcy/roundoracle/internal/server/handler"
	"github.com/alanyoungcy/roundoracle/internal/server/ws"
	"github.com/alanyoungcy/roundoracle/internal/service"
)

// services holds the service layer built on top of Dependencies. Scheduler
// is nil in server mode.
type services struct {
	Rounds    *service.RoundService
	Bets      *service.BetService
	Scheduler *scheduler.Scheduler
}

func (a *App) buildServices(deps *Dependencies) *services {
	svc := &services{
		Rounds: service.NewRoundService(deps.MarketStore, deps.RoundStore, deps.OutcomeStore,
			deps.OutcomeCache, deps.SignalBus, a.logger),
		Bets: service.NewBetService(deps.RoundStore, deps.OutcomeStore, deps.PositionStore,
			deps.OutcomeCache, deps.SignalBus, a.logger),
	}
	if !a.cfg.RunsScheduler() {
		return svc
	}

	callTimeout := a.cfg.Scheduler.CallTimeout.Duration
	opts := []service.ResourceCacheOption{
		service.WithFreshnessWindow(a.cfg.Scheduler.FreshnessWindow.Duration),
		service.WithCrawlTimeout(callTimeout),
	}
	if deps.BlobWriter != nil {
		opts = append(opts, service.WithSnapshotArchive(deps.BlobWriter))
	}
	resources := service.NewResourceCache(deps.ResourceStore, deps.Crawler, a.logger, opts...)

	reveal := service.NewRevealOrchestrator(service.RevealDeps{
		Rounds:       deps.RoundStore,
		Outcomes:     deps.OutcomeStore,
		Resources:    deps.ResourceStore,
		Context:      resources,
		Judge:        deps.Judge,
		Limiter:      deps.RateLimiter,
		Bus:          deps.SignalBus,
		OutcomeCache: deps.OutcomeCache,
		Notifier:     deps.Notifier,
	}, service.RevealConfig{
		CallTimeout:         callTimeout,
		JudgeCallsPerMinute: a.cfg.Judge.RateLimitPerMinute,
	}, a.logger)

	weights := service.NewWeightRefresher(deps.RoundStore, deps.OutcomeStore, deps.ResourceStore,
		resources, deps.Judge, deps.OutcomeCache, deps.SignalBus,
		a.cfg.Scheduler.WeightRefreshInterval.Duration, callTimeout, a.logger)

	svc.Scheduler = scheduler.New(deps.MarketStore, deps.Chain, svc.Rounds, weights, reveal, deps.LockManager,
		scheduler.Config{
			ChainID:     a.cfg.Chain.ChainID,
			Cron:        a.cfg.Scheduler.Cron,
			CallTimeout: callTimeout,
			LockTTL:     a.cfg.Scheduler.LockTTL.Duration,
		}, a.logger)
	return svc
}

// SchedulerMode runs the cron-driven reveal loop without the HTTP API.
func (a *App) SchedulerMode(ctx context.Context, deps *Dependencies, svc *services) error {
	a.logger.InfoContext(ctx, "starting scheduler mode")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Scheduler.Run(ctx)
	})
	return g.Wait()
}

// ServerMode serves the HTTP API and WebSocket feed only.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies, svc *services) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, svc)
	return g.Wait()
}

// FullMode runs the scheduler and the HTTP API in one process. The API's
// trigger endpoint queues ticks on the local scheduler.
func (a *App) FullMode(ctx context.Context, deps *Dependencies, svc *services) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Scheduler.Run(ctx)
	})
	if a.cfg.RunsServer() {
		a.startHTTPServer(ctx, g, deps, svc)
	}
	return g.Wait()
}

// OnceMode runs a single tick and returns, for externally scheduled runs.
func (a *App) OnceMode(ctx context.Context, svc *services) error {
	a.logger.InfoContext(ctx, "running single tick")

	res, err := svc.Scheduler.Tick(ctx)
	if err != nil {
		return fmt.Errorf("app: tick: %w", err)
	}
	a.logger.InfoContext(ctx, "single tick finished",
		slog.Int("markets", res.Markets),
		slog.Int("failed", res.Failed),
		slog.Int("finalized", res.Finalized),
		slog.Bool("skipped", res.Skipped),
	)
	return nil
}

// startHTTPServer registers the API handlers and the WebSocket hub and runs
// the server inside g until ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *services) {
	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(deps.DB, a.logger),
		Status:    handler.NewStatusHandler(a.cfg.Mode, a.cfg.Chain.ChainID, a.cfg.Scheduler.Cron),
		Markets:   handler.NewMarketHandler(svc.Rounds, a.logger),
		Rounds:    handler.NewRoundHandler(svc.Rounds, a.logger),
		Positions: handler.NewPositionHandler(svc.Bets, a.logger),
	}
	if svc.Scheduler != nil {
		handlers.Scheduler = handler.NewSchedulerHandler(svc.Scheduler, a.logger)
	} else {
		handlers.Scheduler = handler.NewSchedulerHandler(nil, a.logger)
	}
	if deps.Snapshots != nil {
		handlers.Snapshots = handler.NewSnapshotHandler(deps.ResourceStore, deps.Snapshots, a.logger)
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.cfg.Server.CORSOrigins, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:               a.cfg.Server.Port,
		CORSOrigins:        a.cfg.Server.CORSOrigins,
		APIKey:             a.cfg.Server.APIKey,
		RateLimitPerMinute: a.cfg.Server.RateLimitPerMinute,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	})
}
