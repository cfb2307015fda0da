package betsize

import (
	"fmt"
	"math/big"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

// FlatPair sizes a two-leg round trip between venues with flat pricing: buy
// on the first at rate1, sell back on the second at rate2. balanceStart is
// the bot's start-token balance on the buy venue and balanceCounter its
// counter-token balance on the sell venue, which caps how much can be sold
// back immediately. Fees are fractional per leg.
//
// The size is the larger position both balances support; the round trip must
// still gain after both fees or ErrNotProfitable comes back.
func FlatPair(balanceStart, balanceCounter *big.Int, rate1, rate2, fee1, fee2 float64) (*big.Int, error) {
	if balanceStart == nil || balanceCounter == nil || balanceStart.Sign() <= 0 {
		return nil, fmt.Errorf("betsize: flat pair: %w", domain.ErrBidTooLow)
	}
	if rate1 <= 0 || rate2 <= 0 {
		return nil, fmt.Errorf("betsize: flat pair: %w: rates %v, %v", domain.ErrInvalidRate, rate1, rate2)
	}

	roundTrip := rate1 * (1 - fee1) * rate2 * (1 - fee2)
	if roundTrip <= 1 {
		return nil, fmt.Errorf("betsize: flat pair: %w: round trip %v", domain.ErrNotProfitable, roundTrip)
	}

	size := new(big.Int).Set(balanceStart)

	// The sell venue can only absorb what its counter balance covers.
	// Convert that balance back into start-token units through rate1.
	counterCap, _ := new(big.Float).Quo(
		new(big.Float).SetInt(balanceCounter),
		big.NewFloat(rate1*(1-fee1)),
	).Int(nil)
	if counterCap != nil && counterCap.Cmp(size) < 0 {
		size = counterCap
	}
	if size.Sign() <= 0 {
		return nil, fmt.Errorf("betsize: flat pair: %w", domain.ErrBidTooLow)
	}
	return size, nil
}
