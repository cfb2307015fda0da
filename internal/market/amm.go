package market

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

// PoolSource is the chain-facing half of an AMM venue: reserve reads, balance
// reads, and swap submission. Implementations wrap an RPC client.
type PoolSource interface {
	// PairInfo returns the pool backing the (in, out) pair with reserves
	// ordered in trade direction.
	PairInfo(ctx context.Context, tokenIn, tokenOut domain.Token) (*domain.AMMInfo, error)
	// Depth returns the venue's tradable reserve of token.
	Depth(ctx context.Context, token domain.Token) (*big.Int, error)
	// Balance returns the bot wallet's balance of token.
	Balance(ctx context.Context, token domain.Token) (*big.Int, error)
	// GasPrice returns the current settlement fee rate in wei.
	GasPrice(ctx context.Context) (*big.Int, error)
	// BlockTime is the chain's expected block interval.
	BlockTime() time.Duration
	// SwapExactIn spends amountIn along path, reverting under minOut.
	SwapExactIn(ctx context.Context, router common.Address, path []common.Address, amountIn, minOut *big.Int, deadline time.Time) (txHash string, amountOut *big.Int, err error)
	// SwapExactOut acquires amountOut along path, reverting over maxIn.
	SwapExactOut(ctx context.Context, router common.Address, path []common.Address, amountOut, maxIn *big.Int, deadline time.Time) (txHash string, amountIn *big.Int, err error)
}

// FlashSource is implemented by pool sources whose chain has the flash-route
// contract deployed.
type FlashSource interface {
	FlashRoute(ctx context.Context, routers []common.Address, path []common.Address, amountIn *big.Int) (txHash string, amountOut *big.Int, err error)
}

// gasPerSwap approximates a V2 router swap's gas use.
const gasPerSwap = 150_000

// confirmations is how many blocks we wait before treating a trade as final.
const confirmations = 2

// AMMConfig describes one constant-product venue.
type AMMConfig struct {
	Name   string
	Chain  string
	Router common.Address
	// FeePerMille is the pool fee in parts per thousand.
	FeePerMille int64
	// PeerRouters maps sibling market names on the same chain to their
	// router addresses, for flash routes that hop venues.
	PeerRouters map[string]common.Address
}

// AMMVenue adapts a constant-product exchange to the venue protocol. Quotes
// are computed locally from reserves, so a quote with a reserve hint costs no
// network round trip.
type AMMVenue struct {
	cfg    AMMConfig
	source PoolSource
	logger *slog.Logger
}

var _ domain.MarketAdapter = (*AMMVenue)(nil)

func NewAMMVenue(cfg AMMConfig, source PoolSource, logger *slog.Logger) *AMMVenue {
	return &AMMVenue{
		cfg:    cfg,
		source: source,
		logger: logger.With(slog.String("component", "market"), slog.String("market", cfg.Name)),
	}
}

func (v *AMMVenue) Market() domain.Market {
	return domain.Market{
		Name:  v.cfg.Name,
		Kind:  domain.MarketAMM,
		Fee:   float64(v.cfg.FeePerMille) / 1000,
		Chain: v.cfg.Chain,
	}
}

func (v *AMMVenue) GetQuote(ctx context.Context, amountIn *big.Int, tokenIn, tokenOut domain.Token, hint *domain.Quote) (*domain.Quote, error) {
	info, err := v.pairInfo(ctx, tokenIn, tokenOut, hint)
	if err != nil {
		return nil, err
	}

	q := &domain.Quote{
		MarketName: v.cfg.Name,
		TokenIn:    tokenIn,
		TokenOut:   tokenOut,
		SpotPrice:  SpotPrice(info.ReserveIn, info.ReserveOut, tokenIn.Decimals, tokenOut.Decimals),
		AMM:        info,
		TTF:        v.ttf(),
		Timestamp:  time.Now().UTC(),
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		q.TransactionPrice = q.SpotPrice
		return q, nil
	}

	out, err := GetAmountOut(amountIn, info.ReserveIn, info.ReserveOut, v.cfg.FeePerMille)
	if err != nil {
		return nil, err
	}
	q.AmountIn = new(big.Int).Set(amountIn)
	q.AmountOut = out
	q.TransactionPrice = ratio(amountIn, out, tokenIn.Decimals, tokenOut.Decimals)
	return q, nil
}

// pairInfo reuses the hint's reserves when the hint covers the same pair in
// the same direction, falling back to a source read.
func (v *AMMVenue) pairInfo(ctx context.Context, tokenIn, tokenOut domain.Token, hint *domain.Quote) (*domain.AMMInfo, error) {
	if hint != nil && hint.AMM != nil && hint.MarketName == v.cfg.Name {
		switch {
		case hint.TokenIn.Equal(tokenIn) && hint.TokenOut.Equal(tokenOut):
			return hint.AMM.Clone(), nil
		case hint.TokenIn.Equal(tokenOut) && hint.TokenOut.Equal(tokenIn):
			return hint.AMM.Invert(), nil
		}
	}
	info, err := v.source.PairInfo(ctx, tokenIn, tokenOut)
	if err != nil {
		return nil, fmt.Errorf("market %s: pair info %s/%s: %w", v.cfg.Name, tokenIn, tokenOut, err)
	}
	return info, nil
}

func (v *AMMVenue) ttf() time.Duration {
	return v.source.BlockTime() * confirmations
}

func (v *AMMVenue) EstimateTransactionTime(ctx context.Context, tokenIn, tokenOut domain.Token) (time.Duration, error) {
	return v.ttf(), nil
}

func (v *AMMVenue) EstimateTransactionCost(ctx context.Context, amountIn *big.Int, tokenIn, tokenOut domain.Token) (*big.Int, error) {
	gasPrice, err := v.source.GasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("market %s: gas price: %w", v.cfg.Name, err)
	}
	return new(big.Int).Mul(gasPrice, big.NewInt(gasPerSwap)), nil
}

func (v *AMMVenue) BuyAtMaximumOutput(ctx context.Context, amountIn *big.Int, path []domain.Token, minOut *big.Int, deadline time.Time) (domain.Receipt, error) {
	addrs, err := pathAddresses(path)
	if err != nil {
		return domain.Receipt{}, err
	}
	txHash, out, err := v.source.SwapExactIn(ctx, v.cfg.Router, addrs, amountIn, minOut, deadline)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("market %s: swap exact in: %w", v.cfg.Name, err)
	}
	v.logger.Info("swap executed",
		slog.String("tx", txHash),
		slog.String("amount_in", amountIn.String()),
		slog.String("amount_out", out.String()))
	return v.receipt(txHash, path, amountIn, out), nil
}

func (v *AMMVenue) BuyAtMinimumInput(ctx context.Context, amountOut *big.Int, path []domain.Token, maxIn *big.Int, deadline time.Time) (domain.Receipt, error) {
	addrs, err := pathAddresses(path)
	if err != nil {
		return domain.Receipt{}, err
	}
	txHash, in, err := v.source.SwapExactOut(ctx, v.cfg.Router, addrs, amountOut, maxIn, deadline)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("market %s: swap exact out: %w", v.cfg.Name, err)
	}
	return v.receipt(txHash, path, in, amountOut), nil
}

func (v *AMMVenue) receipt(txHash string, path []domain.Token, in, out *big.Int) domain.Receipt {
	return domain.Receipt{
		MarketName: v.cfg.Name,
		TxHash:     txHash,
		TokenIn:    path[0],
		TokenOut:   path[len(path)-1],
		AmountIn:   new(big.Int).Set(in),
		AmountOut:  new(big.Int).Set(out),
		ExecutedAt: time.Now().UTC(),
	}
}

func (v *AMMVenue) LiquidityFor(ctx context.Context, token domain.Token) (*big.Int, error) {
	depth, err := v.source.Depth(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("market %s: depth %s: %w", v.cfg.Name, token, err)
	}
	return depth, nil
}

func (v *AMMVenue) BalanceFor(ctx context.Context, token domain.Token) (*big.Int, error) {
	bal, err := v.source.Balance(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("market %s: balance %s: %w", v.cfg.Name, token, err)
	}
	return bal, nil
}

// ExecuteFlashRoute bundles a cyclic route into one atomic transaction when
// the underlying source supports it.
func (v *AMMVenue) ExecuteFlashRoute(ctx context.Context, route domain.Route, amountIn *big.Int) (domain.Receipt, error) {
	flash, ok := v.source.(FlashSource)
	if !ok {
		return domain.Receipt{}, fmt.Errorf("market %s: flash route: %w", v.cfg.Name, domain.ErrMalformedRoute)
	}
	if err := route.Validate(); err != nil {
		return domain.Receipt{}, err
	}
	if !route.Cyclic() {
		return domain.Receipt{}, fmt.Errorf("market %s: flash route: %w: not cyclic", v.cfg.Name, domain.ErrMalformedRoute)
	}

	tokens := route.Tokens()
	addrs, err := pathAddresses(tokens)
	if err != nil {
		return domain.Receipt{}, err
	}
	routers := make([]common.Address, len(route.Legs))
	for i, leg := range route.Legs {
		router, err := v.routerFor(leg.Market.Name)
		if err != nil {
			return domain.Receipt{}, err
		}
		routers[i] = router
	}

	txHash, out, err := flash.FlashRoute(ctx, routers, addrs, amountIn)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("market %s: flash route: %w", v.cfg.Name, err)
	}
	v.logger.Info("flash route executed",
		slog.String("tx", txHash),
		slog.String("route", route.String()),
		slog.String("amount_out", out.String()))
	return v.receipt(txHash, tokens, amountIn, out), nil
}

func (v *AMMVenue) routerFor(marketName string) (common.Address, error) {
	if marketName == "" || marketName == v.cfg.Name {
		return v.cfg.Router, nil
	}
	if router, ok := v.cfg.PeerRouters[marketName]; ok {
		return router, nil
	}
	return common.Address{}, fmt.Errorf("market %s: flash route: no router for %s: %w", v.cfg.Name, marketName, domain.ErrNotFound)
}

func pathAddresses(path []domain.Token) ([]common.Address, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("market: %w: path too short", domain.ErrMalformedRoute)
	}
	out := make([]common.Address, len(path))
	for i, t := range path {
		out[i] = t.Address
	}
	return out, nil
}
