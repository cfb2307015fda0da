// Package market implements venue adapters: constant-product pool venues,
// flat order-book venues, and the registry the rest of the bot resolves
// adapters from.
package market

import (
	"fmt"
	"math"
	"math/big"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

// GetAmountOut prices an exact-input swap on a constant-product pool.
// feePerMille is the pool fee in parts per thousand.
//
//	out = in*(1000-fee)*reserveOut / (reserveIn*1000 + in*(1000-fee))
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int, feePerMille int64) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("market: amount out: %w: zero input", domain.ErrInvalidRate)
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, fmt.Errorf("market: amount out: %w", domain.ErrInsufficientLiquidity)
	}
	amountInWithFee := new(big.Int).Mul(amountIn, big.NewInt(1000-feePerMille))
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(1000))
	denominator.Add(denominator, amountInWithFee)
	return numerator.Div(numerator, denominator), nil
}

// GetAmountIn prices an exact-output swap: the smallest input that yields at
// least amountOut. Rounds up by one, matching the pair contract.
func GetAmountIn(amountOut, reserveIn, reserveOut *big.Int, feePerMille int64) (*big.Int, error) {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, fmt.Errorf("market: amount in: %w: zero output", domain.ErrInvalidRate)
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, fmt.Errorf("market: amount in: %w", domain.ErrInsufficientLiquidity)
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, fmt.Errorf("market: amount in: %w: output exceeds reserve", domain.ErrInsufficientLiquidity)
	}
	numerator := new(big.Int).Mul(reserveIn, amountOut)
	numerator.Mul(numerator, big.NewInt(1000))
	denominator := new(big.Int).Sub(reserveOut, amountOut)
	denominator.Mul(denominator, big.NewInt(1000-feePerMille))
	numerator.Div(numerator, denominator)
	return numerator.Add(numerator, big.NewInt(1)), nil
}

// SpotPrice returns the marginal price of the output token in input-token
// units, adjusted for decimal difference between the two tokens.
func SpotPrice(reserveIn, reserveOut *big.Int, decimalsIn, decimalsOut int) float64 {
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return 0
	}
	rin, _ := new(big.Float).SetInt(reserveIn).Float64()
	rout, _ := new(big.Float).SetInt(reserveOut).Float64()
	return (rout / rin) * math.Pow10(decimalsIn-decimalsOut)
}

// ratio converts two raw amounts into a float rate, decimal adjusted.
func ratio(amountIn, amountOut *big.Int, decimalsIn, decimalsOut int) float64 {
	if amountIn == nil || amountOut == nil || amountIn.Sign() <= 0 {
		return 0
	}
	in, _ := new(big.Float).SetInt(amountIn).Float64()
	out, _ := new(big.Float).SetInt(amountOut).Float64()
	return (out / in) * math.Pow10(decimalsIn-decimalsOut)
}
