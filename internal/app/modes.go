package app

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// TradeMode runs the full trading engine: quote polling, the decision loop,
// cache persistence, venue ticker streams, archival, and notifications. The
// WebSocket mirror joins only when enabled in the server section.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	a.restoreCaches(ctx, deps)

	g, ctx := errgroup.WithContext(ctx)
	a.startEngine(ctx, g, deps)
	a.startSupport(ctx, g, deps)
	a.startServer(ctx, g, deps)
	return wait(g)
}

// MonitorMode polls quotes and publishes opportunities without trading. The
// coordinator still runs so detections reach the bus, but it is wired as a
// dry run regardless of the auto-execute setting.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	a.restoreCaches(ctx, deps)

	g, ctx := errgroup.WithContext(ctx)
	a.startEngine(ctx, g, deps)
	a.startSupport(ctx, g, deps)
	a.startServer(ctx, g, deps)
	return wait(g)
}

// ServerMode serves the WebSocket mirror only; another instance feeds the
// signal bus.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	if deps.Watcher != nil {
		g.Go(func() error { return deps.Watcher.Run(ctx) })
	}
	return wait(g)
}

// FullMode runs the trading engine and the WebSocket mirror in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	a.restoreCaches(ctx, deps)

	g, ctx := errgroup.WithContext(ctx)
	a.startEngine(ctx, g, deps)
	a.startSupport(ctx, g, deps)
	a.startServer(ctx, g, deps)
	return wait(g)
}

// startEngine launches the quote feed, the decision loop, and the venue
// ticker streams.
func (a *App) startEngine(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error { return deps.Feed.Run(ctx) })
	g.Go(func() error { return deps.Coordinator.Run(ctx) })
	for _, stream := range deps.Streams {
		stream := stream
		g.Go(func() error { return stream(ctx) })
	}
}

// startSupport launches cache persistence, archival, and notifications.
func (a *App) startSupport(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error { return deps.Persister.Run(ctx) })
	if deps.Archiver != nil {
		g.Go(func() error { return deps.Archiver.Run(ctx) })
	}
	if deps.Watcher != nil {
		g.Go(func() error { return deps.Watcher.Run(ctx) })
	}
}

func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Hub == nil || deps.Server == nil {
		return
	}
	g.Go(func() error { return deps.Hub.Run(ctx) })
	g.Go(func() error { return deps.Server.Run(ctx) })
}

// restoreCaches reloads persisted sub-stores; a cold start is not an error.
func (a *App) restoreCaches(ctx context.Context, deps *Dependencies) {
	if err := deps.Persister.Load(ctx); err != nil {
		a.logger.Warn("cache restore failed, starting cold", slog.Any("error", err))
	}
}

// wait blocks on the group and treats context cancellation as a clean stop.
func wait(g *errgroup.Group) error {
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
