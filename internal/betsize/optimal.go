// Package betsize computes how much capital to commit to a detected
// opportunity: closed-form sizing against constant-product pools, balance
// bounded sizing for flat venues, Kelly fractions, and liquidity ceilings.
package betsize

import (
	"math/big"

	"github.com/holiman/uint256"
)

// feeDenom is the per-mille base used by constant-product venues.
const feeDenom = 1000

// MaxProfitableInput returns the input size that extracts the most profit
// from a constant-product pool whose marginal price sits below the external
// market price. truePriceNum/truePriceDen is the external price of the
// output token, quoted in input-token units. feePerMille is the pool fee in
// parts per thousand (3 for a 30 bps pool).
//
// The closed form solves d/dx [out(x)*truePrice - x] = 0 for the fee-adjusted
// swap curve and lands on
//
//	x* = sqrt(reserveIn * reserveOut * truePrice / feeRatio) - reserveIn/feeRatio
//
// evaluated in exact integer arithmetic. Results at or below zero clamp to
// zero: the pool is already at or above the external price.
func MaxProfitableInput(reserveIn, reserveOut, truePriceNum, truePriceDen *big.Int, feePerMille uint64) *big.Int {
	if reserveIn == nil || reserveOut == nil || truePriceNum == nil || truePriceDen == nil {
		return new(big.Int)
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 || truePriceNum.Sign() <= 0 || truePriceDen.Sign() <= 0 {
		return new(big.Int)
	}
	if feePerMille >= feeDenom {
		return new(big.Int)
	}
	gamma := feeDenom - feePerMille

	if x, ok := optimal256(reserveIn, reserveOut, truePriceNum, truePriceDen, gamma); ok {
		return x
	}
	return optimalBig(reserveIn, reserveOut, truePriceNum, truePriceDen, gamma)
}

// optimal256 runs the closed form in 256-bit arithmetic. It reports false
// when an intermediate product overflows, which only happens for inputs far
// beyond real pool reserves.
func optimal256(reserveIn, reserveOut, num, den *big.Int, gamma uint64) (*big.Int, bool) {
	ri, over := uint256.FromBig(reserveIn)
	if over {
		return nil, false
	}
	ro, over := uint256.FromBig(reserveOut)
	if over {
		return nil, false
	}
	n, over := uint256.FromBig(num)
	if over {
		return nil, false
	}
	d, over := uint256.FromBig(den)
	if over {
		return nil, false
	}

	// radicand = ri * ro * num * feeDenom / (den * gamma)
	acc := new(uint256.Int)
	if _, overflow := acc.MulOverflow(ri, ro); overflow {
		return nil, false
	}
	if _, overflow := acc.MulOverflow(acc, n); overflow {
		return nil, false
	}
	if _, overflow := acc.MulOverflow(acc, uint256.NewInt(feeDenom)); overflow {
		return nil, false
	}
	divisor := new(uint256.Int).Mul(d, uint256.NewInt(gamma))
	if divisor.IsZero() {
		return nil, false
	}
	acc.Div(acc, divisor)

	root := new(uint256.Int).Sqrt(acc)

	// floor = ri * feeDenom / gamma
	floor := new(uint256.Int)
	if _, overflow := floor.MulOverflow(ri, uint256.NewInt(feeDenom)); overflow {
		return nil, false
	}
	floor.Div(floor, uint256.NewInt(gamma))

	if root.Cmp(floor) <= 0 {
		return new(big.Int), true
	}
	return new(uint256.Int).Sub(root, floor).ToBig(), true
}

// optimalBig is the arbitrary-precision fallback for the rare overflow case.
func optimalBig(reserveIn, reserveOut, num, den *big.Int, gamma uint64) *big.Int {
	radicand := new(big.Int).Mul(reserveIn, reserveOut)
	radicand.Mul(radicand, num)
	radicand.Mul(radicand, big.NewInt(feeDenom))
	divisor := new(big.Int).Mul(den, new(big.Int).SetUint64(gamma))
	radicand.Div(radicand, divisor)

	root := new(big.Int).Sqrt(radicand)

	floor := new(big.Int).Mul(reserveIn, big.NewInt(feeDenom))
	floor.Div(floor, new(big.Int).SetUint64(gamma))

	if root.Cmp(floor) <= 0 {
		return new(big.Int)
	}
	return root.Sub(root, floor)
}
