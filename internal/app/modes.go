package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/martelinho/martelinho/internal/server"
	"github.com/martelinho/martelinho/internal/server/handler"
	"github.com/martelinho/martelinho/internal/server/ws"
	"github.com/martelinho/martelinho/internal/service"
)

// services holds the service-layer objects shared by every mode.
type services struct {
	market  *service.MarketplaceService
	users   *service.UserService
	archive *service.ArchiveJob // nil when archiving is disabled
}

func (a *App) buildServices(deps *Dependencies) *services {
	svc := &services{
		market: service.NewMarketplaceService(service.Deps{
			Store:       deps.MarketStore,
			Audit:       deps.AuditStore,
			Cache:       deps.ListingCache,
			Locks:       deps.LockManager,
			Bus:         deps.SignalBus,
			Copy:        deps.Copy,
			Alerts:      deps.Notifier,
			CopyTimeout: a.cfg.Copygen.Timeout.Duration,
		}, a.logger),
		users: service.NewUserService(deps.MarketStore, deps.AuditStore, a.logger),
	}
	if deps.Archiver != nil {
		svc.archive = service.NewArchiveJob(
			deps.Archiver,
			deps.MarketStore,
			deps.Codec,
			a.cfg.Archive.Interval.Duration,
			time.Duration(a.cfg.Archive.RetentionDays)*24*time.Hour,
			a.cfg.Archive.KeepExports,
			a.logger,
		)
	}
	return svc
}

// ServerMode serves the HTTP API and the WebSocket feed. Expiry is left to
// a worker process.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, a.buildServices(deps))
	return g.Wait()
}

// WorkerMode runs the background jobs: the expiry sweep and, when object
// storage is configured, the archive job.
func (a *App) WorkerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting worker mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startWorkers(ctx, g, deps, a.buildServices(deps))
	return g.Wait()
}

// FullMode starts all subsystems in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svc := a.buildServices(deps)
	a.startWorkers(ctx, g, deps, svc)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svc)
	}
	return g.Wait()
}

func (a *App) startWorkers(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *services) {
	tracker := service.NewExpiryTracker(deps.MarketStore, svc.market, a.cfg.Expiry.Interval.Duration, a.logger)
	g.Go(func() error {
		a.logger.InfoContext(ctx, "expiry tracker started",
			slog.Duration("interval", a.cfg.Expiry.Interval.Duration),
		)
		return tracker.Run(ctx)
	})

	if svc.archive != nil {
		g.Go(func() error {
			return svc.archive.Run(ctx)
		})
	} else {
		a.logger.InfoContext(ctx, "archive job disabled")
	}
}

// startHTTPServer adds the HTTP server and the WebSocket hub to the given
// errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *services) {
	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(deps.Checks, a.logger),
		Listings: handler.NewListingHandler(svc.market, a.logger),
		Users:    handler.NewUserHandler(svc.users, svc.market, a.logger),
	}
	if svc.archive != nil {
		handlers.Admin = handler.NewAdminHandler(svc.archive, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
