package market

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"time"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

// BookSource is the exchange-facing half of an order-book venue.
type BookSource interface {
	// TopOfBook returns the flat bid/ask for the pair, priced in tokenOut
	// per tokenIn.
	TopOfBook(ctx context.Context, tokenIn, tokenOut domain.Token) (*domain.BookInfo, error)
	// Balance returns the bot's free balance of token on the exchange.
	Balance(ctx context.Context, token domain.Token) (*big.Int, error)
	// MarketBuy swaps amountIn of tokenIn at market, returning the fill.
	MarketBuy(ctx context.Context, tokenIn, tokenOut domain.Token, amountIn *big.Int) (orderID string, amountOut *big.Int, err error)
	// SettleTime is the exchange's expected settlement latency.
	SettleTime() time.Duration
}

// BookConfig describes one order-book venue.
type BookConfig struct {
	Name string
	// Fee is the taker fee as a fraction.
	Fee float64
	// FixedCost is the flat per-trade cost in start-token smallest units.
	FixedCost int64
}

// BookVenue adapts a flat-priced exchange. Output scales linearly with input;
// there is no price impact, only the taker fee.
type BookVenue struct {
	cfg    BookConfig
	source BookSource
	logger *slog.Logger
}

var _ domain.MarketAdapter = (*BookVenue)(nil)

func NewBookVenue(cfg BookConfig, source BookSource, logger *slog.Logger) *BookVenue {
	return &BookVenue{
		cfg:    cfg,
		source: source,
		logger: logger.With(slog.String("component", "market"), slog.String("market", cfg.Name)),
	}
}

func (v *BookVenue) Market() domain.Market {
	return domain.Market{Name: v.cfg.Name, Kind: domain.MarketBook, Fee: v.cfg.Fee}
}

func (v *BookVenue) GetQuote(ctx context.Context, amountIn *big.Int, tokenIn, tokenOut domain.Token, hint *domain.Quote) (*domain.Quote, error) {
	book, err := v.topOfBook(ctx, tokenIn, tokenOut, hint)
	if err != nil {
		return nil, err
	}
	if book.Bid <= 0 {
		return nil, fmt.Errorf("market %s: quote %s/%s: %w: empty book", v.cfg.Name, tokenIn, tokenOut, domain.ErrInsufficientLiquidity)
	}

	// Selling tokenIn hits the bid; the fee comes off the proceeds.
	rate := book.Bid * (1 - v.cfg.Fee)
	q := &domain.Quote{
		MarketName:       v.cfg.Name,
		TokenIn:          tokenIn,
		TokenOut:         tokenOut,
		SpotPrice:        book.Bid,
		TransactionPrice: rate,
		Book:             book,
		TTF:              v.source.SettleTime(),
		Timestamp:        time.Now().UTC(),
	}
	if amountIn != nil && amountIn.Sign() > 0 {
		q.AmountIn = new(big.Int).Set(amountIn)
		q.AmountOut = scaleAmount(amountIn, rate, tokenIn.Decimals, tokenOut.Decimals)
	}
	return q, nil
}

func (v *BookVenue) topOfBook(ctx context.Context, tokenIn, tokenOut domain.Token, hint *domain.Quote) (*domain.BookInfo, error) {
	if hint != nil && hint.Book != nil && hint.MarketName == v.cfg.Name {
		switch {
		case hint.TokenIn.Equal(tokenIn) && hint.TokenOut.Equal(tokenOut):
			b := *hint.Book
			return &b, nil
		case hint.TokenIn.Equal(tokenOut) && hint.TokenOut.Equal(tokenIn):
			return hint.Book.Invert(), nil
		}
	}
	book, err := v.source.TopOfBook(ctx, tokenIn, tokenOut)
	if err != nil {
		return nil, fmt.Errorf("market %s: top of book %s/%s: %w", v.cfg.Name, tokenIn, tokenOut, err)
	}
	return book, nil
}

func (v *BookVenue) EstimateTransactionTime(ctx context.Context, tokenIn, tokenOut domain.Token) (time.Duration, error) {
	return v.source.SettleTime(), nil
}

func (v *BookVenue) EstimateTransactionCost(ctx context.Context, amountIn *big.Int, tokenIn, tokenOut domain.Token) (*big.Int, error) {
	return big.NewInt(v.cfg.FixedCost), nil
}

func (v *BookVenue) BuyAtMaximumOutput(ctx context.Context, amountIn *big.Int, path []domain.Token, minOut *big.Int, deadline time.Time) (domain.Receipt, error) {
	if len(path) != 2 {
		return domain.Receipt{}, fmt.Errorf("market %s: %w: book venues trade single pairs", v.cfg.Name, domain.ErrMalformedRoute)
	}
	orderID, out, err := v.source.MarketBuy(ctx, path[0], path[1], amountIn)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("market %s: market buy: %w", v.cfg.Name, err)
	}
	if minOut != nil && out.Cmp(minOut) < 0 {
		return domain.Receipt{}, fmt.Errorf("market %s: fill %s under minimum %s: %w", v.cfg.Name, out, minOut, domain.ErrNotProfitable)
	}
	v.logger.Info("order filled",
		slog.String("order_id", orderID),
		slog.String("amount_in", amountIn.String()),
		slog.String("amount_out", out.String()))
	return domain.Receipt{
		MarketName: v.cfg.Name,
		TxHash:     orderID,
		TokenIn:    path[0],
		TokenOut:   path[1],
		AmountIn:   new(big.Int).Set(amountIn),
		AmountOut:  out,
		ExecutedAt: time.Now().UTC(),
	}, nil
}

func (v *BookVenue) BuyAtMinimumInput(ctx context.Context, amountOut *big.Int, path []domain.Token, maxIn *big.Int, deadline time.Time) (domain.Receipt, error) {
	if len(path) != 2 {
		return domain.Receipt{}, fmt.Errorf("market %s: %w: book venues trade single pairs", v.cfg.Name, domain.ErrMalformedRoute)
	}
	book, err := v.source.TopOfBook(ctx, path[0], path[1])
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("market %s: top of book: %w", v.cfg.Name, err)
	}
	if book.Bid <= 0 {
		return domain.Receipt{}, fmt.Errorf("market %s: %w: empty book", v.cfg.Name, domain.ErrInsufficientLiquidity)
	}
	needed := scaleAmount(amountOut, 1/(book.Bid*(1-v.cfg.Fee)), path[1].Decimals, path[0].Decimals)
	if maxIn != nil && needed.Cmp(maxIn) > 0 {
		return domain.Receipt{}, fmt.Errorf("market %s: needs %s over maximum %s: %w", v.cfg.Name, needed, maxIn, domain.ErrCostTooHigh)
	}
	return v.BuyAtMaximumOutput(ctx, needed, path, amountOut, deadline)
}

func (v *BookVenue) LiquidityFor(ctx context.Context, token domain.Token) (*big.Int, error) {
	// Depth comes back in the quoted pair's terms; books report it on the
	// top-of-book call, so reuse the balance endpoint as the tradable cap.
	bal, err := v.source.Balance(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("market %s: depth %s: %w", v.cfg.Name, token, err)
	}
	return bal, nil
}

func (v *BookVenue) BalanceFor(ctx context.Context, token domain.Token) (*big.Int, error) {
	bal, err := v.source.Balance(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("market %s: balance %s: %w", v.cfg.Name, token, err)
	}
	return bal, nil
}

// scaleAmount multiplies a raw amount by a float rate with decimal shift,
// truncating toward zero.
func scaleAmount(amount *big.Int, rate float64, decimalsIn, decimalsOut int) *big.Int {
	if amount == nil || rate <= 0 || math.IsInf(rate, 0) || math.IsNaN(rate) {
		return new(big.Int)
	}
	f := new(big.Float).SetInt(amount)
	f.Mul(f, big.NewFloat(rate*math.Pow10(decimalsOut-decimalsIn)))
	out, _ := f.Int(nil)
	return out
}
