// Package feed polls every registered venue for quotes and keeps the quote
// store and the rate graph current.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
	"github.com/arguiot/arbitrage-bot-sub000/internal/graph"
	"github.com/arguiot/arbitrage-bot-sub000/internal/market"
)

// Config tunes the polling loop.
type Config struct {
	// Tokens is the tradable universe; every unordered pair is polled.
	Tokens []domain.Token
	// ProbeAmount sizes the quotes used for rate discovery.
	ProbeAmount *big.Int
	// Interval spaces polling rounds.
	Interval time.Duration
}

func Defaults() Config {
	return Config{
		ProbeAmount: big.NewInt(100_000_000),
		Interval:    time.Second,
	}
}

// Service drives the polling loop.
type Service struct {
	cfg     Config
	markets *market.Registry
	quotes  domain.QuoteStore
	rates   *graph.RateGraph
	bus     domain.SignalBus
	logger  *slog.Logger
}

func New(cfg Config, markets *market.Registry, quotes domain.QuoteStore, rates *graph.RateGraph, bus domain.SignalBus, logger *slog.Logger) *Service {
	if cfg.ProbeAmount == nil || cfg.ProbeAmount.Sign() <= 0 {
		cfg.ProbeAmount = Defaults().ProbeAmount
	}
	if cfg.Interval <= 0 {
		cfg.Interval = Defaults().Interval
	}
	return &Service{
		cfg:     cfg,
		markets: markets,
		quotes:  quotes,
		rates:   rates,
		bus:     bus,
		logger:  logger.With(slog.String("component", "feed")),
	}
}

// Run polls until the context ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("feed started",
		slog.Int("tokens", len(s.cfg.Tokens)),
		slog.Duration("interval", s.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("feed stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.RefreshOnce(ctx); err != nil {
				s.logger.Warn("refresh round failed", slog.Any("error", err))
			}
		}
	}
}

// RefreshOnce polls every (pair, market) combination concurrently. A single
// venue failing does not sink the round; the first hard error (context
// cancellation) does.
func (s *Service) RefreshOnce(ctx context.Context) error {
	adapters := s.markets.List()
	if len(adapters) == 0 || len(s.cfg.Tokens) < 2 {
		return fmt.Errorf("feed: %w: need at least two tokens and one market", domain.ErrNotFound)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < len(s.cfg.Tokens); i++ {
		for j := i + 1; j < len(s.cfg.Tokens); j++ {
			tokenA, tokenB := s.cfg.Tokens[i], s.cfg.Tokens[j]
			for _, adapter := range adapters {
				g.Go(func() error {
					if err := s.refreshPair(gctx, adapter, tokenA, tokenB); err != nil {
						if gctx.Err() != nil {
							return err
						}
						s.logger.Debug("pair refresh failed",
							slog.String("market", adapter.Market().Name),
							slog.String("pair", tokenA.Name+"/"+tokenB.Name),
							slog.Any("error", err))
					}
					return nil
				})
			}
		}
	}
	return g.Wait()
}

// refreshPair quotes both trade directions. The reverse edge is observed,
// never derived: on a fee-bearing venue the reciprocal of the forward rate
// overstates what the venue actually pays going back, which would make a
// fee-losing round trip look break-even in the graph.
func (s *Service) refreshPair(ctx context.Context, adapter domain.MarketAdapter, tokenA, tokenB domain.Token) error {
	if err := s.refreshDirection(ctx, adapter, tokenA, tokenB); err != nil {
		return err
	}
	return s.refreshDirection(ctx, adapter, tokenB, tokenA)
}

func (s *Service) refreshDirection(ctx context.Context, adapter domain.MarketAdapter, tokenIn, tokenOut domain.Token) error {
	name := adapter.Market().Name
	hint, _ := s.quotes.Get(tokenIn, tokenOut, name)

	q, err := adapter.GetQuote(ctx, s.cfg.ProbeAmount, tokenIn, tokenOut, hint)
	if err != nil {
		return err
	}
	s.quotes.Put(q)

	rate := q.Rate()
	if rate <= 0 {
		return fmt.Errorf("feed: %s %s/%s: %w", name, tokenIn, tokenOut, domain.ErrInvalidRate)
	}
	if err := s.rates.Insert(tokenIn, tokenOut, name, rate); err != nil {
		return err
	}

	if s.bus != nil {
		if err := s.bus.Publish(ctx, domain.EventQuote, q); err != nil {
			s.logger.Warn("quote publish failed", slog.Any("error", err))
		}
	}
	return nil
}
