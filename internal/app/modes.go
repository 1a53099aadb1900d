package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veilbet/veilbet/internal/feed"
	"github.com/veilbet/veilbet/internal/server"
	"github.com/veilbet/veilbet/internal/server/handler"
	"github.com/veilbet/veilbet/internal/server/ws"
	"github.com/veilbet/veilbet/internal/service"
)

// services bundles the domain services shared by all modes.
type services struct {
	stats     *service.StatsService
	wagers    *service.WagerService
	reveals   *service.RevealService
	payouts   *service.PayoutService
	positions *service.PositionService
	balance   *service.BalanceService
}

// buildServices constructs the domain services from wired dependencies.
func (a *App) buildServices(deps *Dependencies) *services {
	contract := a.cfg.Chain.ContractAddress
	account := deps.Signer.Account()
	chainID := a.cfg.Chain.ChainID
	permitTTL := a.cfg.Cofhe.PermitTTL.Duration

	stats := service.NewStatsService(
		deps.Gateway, deps.Cofhe, deps.Signer,
		deps.Snapshots, deps.Markets, deps.Bus,
		contract, permitTTL, a.logger,
	)
	return &services{
		stats: stats,
		wagers: service.NewWagerService(
			deps.Gateway, deps.Cofhe, stats, deps.Ledger,
			deps.Balances, deps.Hints, account, chainID, a.logger,
		),
		reveals: service.NewRevealService(
			deps.Gateway, deps.Cofhe, deps.Signer, deps.Ledger,
			deps.Locks, contract, chainID, permitTTL, a.logger,
		),
		payouts: service.NewPayoutService(
			deps.Gateway, deps.Hints, deps.Payouts, deps.Balances,
			account, chainID, a.logger,
		),
		positions: service.NewPositionService(deps.Ledger, stats, account, chainID),
		balance: service.NewBalanceService(
			deps.Gateway, deps.Cofhe, deps.Signer, deps.Balances,
			contract, chainID, permitTTL, a.logger,
		),
	}
}

// EngineMode runs the indexer feed only: snapshots stay warm and resolved
// markets are archived, but no HTTP surface is exposed.
func (a *App) EngineMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting engine mode")

	if !a.cfg.Feed.Enabled || a.cfg.Feed.WsURL == "" {
		return fmt.Errorf("app: engine mode requires feed.enabled and feed.ws_url")
	}

	g, ctx := errgroup.WithContext(ctx)

	svcs := a.buildServices(deps)
	a.startIndexerFeed(ctx, g, deps, svcs)

	return g.Wait()
}

// ServerMode runs the HTTP and WebSocket API without the indexer feed.
// Snapshots refresh on demand (and by their cache TTL) only.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	svcs := a.buildServices(deps)
	a.startHTTPServer(ctx, g, deps, svcs)

	return g.Wait()
}

// FullMode runs the indexer feed and the HTTP server together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	svcs := a.buildServices(deps)
	a.startIndexerFeed(ctx, g, deps, svcs)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svcs)
	}

	return g.Wait()
}

// startIndexerFeed adds the indexer WebSocket feed goroutine to the errgroup.
// Pool updates refresh the statistics snapshot; market resolutions invalidate
// the cached market, refresh, and archive the local ledger when S3 is wired.
func (a *App) startIndexerFeed(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	if !a.cfg.Feed.Enabled || a.cfg.Feed.WsURL == "" {
		a.logger.InfoContext(ctx, "indexer feed disabled; snapshots refresh on demand only")
		return
	}

	onPool := func(ctx context.Context, marketID uint64) {
		if _, err := svcs.stats.Refresh(ctx, marketID); err != nil {
			a.logger.WarnContext(ctx, "feed: snapshot refresh failed",
				slog.Uint64("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}

	onResolved := func(ctx context.Context, marketID uint64) {
		a.handleMarketResolved(ctx, deps, svcs, marketID)
	}

	indexerFeed := feed.NewIndexerFeed(a.cfg.Feed.WsURL, onPool, onResolved, a.logger)
	g.Go(func() error {
		defer indexerFeed.Close()
		return indexerFeed.Run(ctx)
	})
}

// handleMarketResolved drops the stale cached market so the resolution
// outcome is visible, refreshes the snapshot, and exports the local ledger.
func (a *App) handleMarketResolved(ctx context.Context, deps *Dependencies, svcs *services, marketID uint64) {
	if err := deps.Markets.Invalidate(ctx, marketID); err != nil {
		a.logger.WarnContext(ctx, "feed: market cache invalidation failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}

	if _, err := svcs.stats.Refresh(ctx, marketID); err != nil {
		a.logger.WarnContext(ctx, "feed: post-resolution refresh failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}

	if deps.Archiver == nil {
		return
	}

	market, err := svcs.stats.Market(ctx, marketID)
	if err != nil {
		a.logger.WarnContext(ctx, "feed: archive skipped, market fetch failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
		return
	}
	records, err := deps.Ledger.List(ctx, deps.Signer.Account(), a.cfg.Chain.ChainID, marketID)
	if err != nil {
		a.logger.WarnContext(ctx, "feed: archive skipped, ledger read failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := deps.Archiver.ArchiveMarket(ctx, market, records); err != nil {
		a.logger.WarnContext(ctx, "feed: ledger archive failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
		return
	}
	a.logger.InfoContext(ctx, "feed: resolved market ledger archived",
		slog.Uint64("market_id", marketID),
		slog.Int("records", len(records)),
	)
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// errgroup. The server is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	hub := ws.NewHub(deps.Bus, []string{service.SnapshotChannel}, a.logger)
	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Markets:   handler.NewMarketHandler(svcs.stats, deps.Gateway, a.logger),
		Wagers:    handler.NewWagerHandler(svcs.wagers, svcs.reveals, a.logger),
		Positions: handler.NewPositionHandler(svcs.positions, a.logger),
		Payouts:   handler.NewPayoutHandler(svcs.payouts, a.logger),
		Balances:  handler.NewBalanceHandler(svcs.balance, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("app: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
