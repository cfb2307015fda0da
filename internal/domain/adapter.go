package domain

import (
	"context"
	"math/big"
	"time"
)

// MarketAdapter is the venue-facing protocol. One adapter wraps one market
// and knows how to quote and execute swaps there. Implementations must be
// safe for concurrent use.
type MarketAdapter interface {
	// Market returns the static description of the venue.
	Market() Market

	// GetQuote prices a swap of amountIn tokenIn into tokenOut. A nil or
	// zero amountIn requests a spot quote. The hint, when non-nil, carries
	// venue state from a previous quote so the adapter can answer without
	// a network round trip.
	GetQuote(ctx context.Context, amountIn *big.Int, tokenIn, tokenOut Token, hint *Quote) (*Quote, error)

	// EstimateTransactionTime predicts time-to-finality for a trade.
	EstimateTransactionTime(ctx context.Context, tokenIn, tokenOut Token) (time.Duration, error)

	// EstimateTransactionCost predicts the settlement fee, denominated in
	// tokenIn's smallest unit.
	EstimateTransactionCost(ctx context.Context, amountIn *big.Int, tokenIn, tokenOut Token) (*big.Int, error)

	// BuyAtMaximumOutput spends exactly amountIn and takes whatever output
	// the venue gives, reverting below minOut.
	BuyAtMaximumOutput(ctx context.Context, amountIn *big.Int, path []Token, minOut *big.Int, deadline time.Time) (Receipt, error)

	// BuyAtMinimumInput acquires exactly amountOut, spending at most maxIn.
	BuyAtMinimumInput(ctx context.Context, amountOut *big.Int, path []Token, maxIn *big.Int, deadline time.Time) (Receipt, error)

	// LiquidityFor returns the venue's tradable depth for token, in the
	// token's smallest unit.
	LiquidityFor(ctx context.Context, token Token) (*big.Int, error)

	// BalanceFor returns the bot's own balance at the venue.
	BalanceFor(ctx context.Context, token Token) (*big.Int, error)
}

// FlashExecutor is implemented by adapters that can bundle a whole cyclic
// route into one atomic transaction.
type FlashExecutor interface {
	// ExecuteFlashRoute runs the route atomically, funded by amountIn of
	// the route's start token. The transaction reverts if the round trip
	// fails to return at least amountIn.
	ExecuteFlashRoute(ctx context.Context, route Route, amountIn *big.Int) (Receipt, error)
}
