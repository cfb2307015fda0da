// Package executor turns an approved plan into venue orders: one atomic
// flash transaction when the whole route settles on a single chain, a
// sequential leg-by-leg walk otherwise.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
	"github.com/arguiot/arbitrage-bot-sub000/internal/market"
)

// Config tunes execution behavior.
type Config struct {
	// LegDeadline bounds each sequential leg's validity window.
	LegDeadline time.Duration
	// SlippageBps widens each leg's minimum-output bound, in basis points.
	SlippageBps int64
}

func Defaults() Config {
	return Config{
		LegDeadline: 30 * time.Second,
		SlippageBps: 50,
	}
}

// Executor routes approved trades to venue adapters.
type Executor struct {
	cfg      Config
	registry *market.Registry
	logger   *slog.Logger
}

func New(cfg Config, registry *market.Registry, logger *slog.Logger) *Executor {
	if cfg.LegDeadline <= 0 {
		cfg.LegDeadline = Defaults().LegDeadline
	}
	return &Executor{
		cfg:      cfg,
		registry: registry,
		logger:   logger.With(slog.String("component", "executor")),
	}
}

// Execute runs the route with amountIn of its start token. expectedOuts, when
// provided, carries the planned output per leg and sets the slippage-adjusted
// minimum for each fill.
func (e *Executor) Execute(ctx context.Context, route domain.Route, amountIn *big.Int, expectedOuts []*big.Int) ([]domain.Receipt, error) {
	if err := route.Validate(); err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("executor: %w", domain.ErrBidTooLow)
	}

	if route.Atomic() && route.Cyclic() {
		if rcpt, ok, err := e.tryFlash(ctx, route, amountIn); ok {
			if err != nil {
				return nil, err
			}
			return []domain.Receipt{rcpt}, nil
		}
	}
	return e.sequential(ctx, route, amountIn, expectedOuts)
}

// tryFlash reports ok=false when the first leg's adapter cannot bundle the
// route, letting execution fall back to the sequential path.
func (e *Executor) tryFlash(ctx context.Context, route domain.Route, amountIn *big.Int) (domain.Receipt, bool, error) {
	adapter, err := e.registry.Get(route.Legs[0].Market.Name)
	if err != nil {
		return domain.Receipt{}, false, nil
	}
	flash, ok := adapter.(domain.FlashExecutor)
	if !ok {
		return domain.Receipt{}, false, nil
	}

	rcpt, err := flash.ExecuteFlashRoute(ctx, route, amountIn)
	if err != nil {
		e.logger.Warn("flash route failed, falling back to sequential", slog.Any("error", err))
		return domain.Receipt{}, false, nil
	}
	e.logger.Info("flash route settled",
		slog.String("tx", rcpt.TxHash),
		slog.String("amount_out", rcpt.AmountOut.String()))
	return rcpt, true, nil
}

func (e *Executor) sequential(ctx context.Context, route domain.Route, amountIn *big.Int, expectedOuts []*big.Int) ([]domain.Receipt, error) {
	amount := new(big.Int).Set(amountIn)
	receipts := make([]domain.Receipt, 0, len(route.Legs))

	for i, leg := range route.Legs {
		adapter, err := e.registry.Get(leg.Market.Name)
		if err != nil {
			return receipts, fmt.Errorf("executor: leg %d: %w", i, err)
		}

		var minOut *big.Int
		if i < len(expectedOuts) && expectedOuts[i] != nil {
			minOut = e.withSlippage(expectedOuts[i])
		}

		deadline := time.Now().Add(e.cfg.LegDeadline)
		rcpt, err := adapter.BuyAtMaximumOutput(ctx, amount, []domain.Token{leg.TokenIn, leg.TokenOut}, minOut, deadline)
		if err != nil {
			// Receipts so far tell the caller what is already filled
			// and cannot be unwound.
			return receipts, fmt.Errorf("executor: leg %d on %s: %w", i, leg.Market.Name, err)
		}
		receipts = append(receipts, rcpt)
		amount = new(big.Int).Set(rcpt.AmountOut)
	}

	e.logger.Info("route settled",
		slog.Int("legs", len(receipts)),
		slog.String("amount_in", amountIn.String()),
		slog.String("amount_out", amount.String()))
	return receipts, nil
}

func (e *Executor) withSlippage(expected *big.Int) *big.Int {
	minOut := new(big.Int).Mul(expected, big.NewInt(10_000-e.cfg.SlippageBps))
	return minOut.Div(minOut, big.NewInt(10_000))
}
