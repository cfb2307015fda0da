package betsize

import "math/big"

// ScaleToDepth shrinks an input size so no leg of the plan exceeds the
// venue depth available to it. legAmounts[i] is the amount leg i would move
// at the unscaled input; depths[i] is the cached venue depth for that leg, or
// nil when unknown (unknown depth does not constrain). Scaling is
// proportional: the whole plan shrinks by the tightest leg's ratio.
func ScaleToDepth(amount *big.Int, legAmounts, depths []*big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return new(big.Int)
	}
	scaled := new(big.Int).Set(amount)
	for i, legAmt := range legAmounts {
		if i >= len(depths) || depths[i] == nil || legAmt == nil || legAmt.Sign() <= 0 {
			continue
		}
		if legAmt.Cmp(depths[i]) <= 0 {
			continue
		}
		// candidate = amount * depth / legAmount, the input that brings
		// this leg exactly to its ceiling.
		candidate := new(big.Int).Mul(amount, depths[i])
		candidate.Div(candidate, legAmt)
		if candidate.Cmp(scaled) < 0 {
			scaled = candidate
		}
	}
	return scaled
}
