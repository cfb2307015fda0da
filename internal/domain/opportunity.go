package domain

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Opportunity is a profitable trade candidate surfaced by a detection
// strategy. Profit is quoted in the starting token's smallest unit and is
// pre-cost: the coordinator still has to net out gas and latency.
type Opportunity struct {
	ID       uuid.UUID `json:"id"`
	Strategy string    `json:"strategy"`
	Route    Route     `json:"route"`
	// Quotes holds the venue quotes the detector based its decision on,
	// ordered like Route.Legs.
	Quotes []*Quote `json:"quotes"`
	// AmountIn is the input size the profit figure assumes.
	AmountIn *big.Int `json:"amountIn"`
	// Profit is AmountOut(final leg) - AmountIn.
	Profit *big.Int `json:"profit"`
	// ProfitRatio is final/initial as a multiplier, e.g. 1.013 for +1.3%.
	ProfitRatio float64   `json:"profitRatio"`
	DetectedAt  time.Time `json:"detectedAt"`
}

// NewOpportunity stamps identity and detection time.
func NewOpportunity(strategy string, route Route) *Opportunity {
	return &Opportunity{
		ID:         uuid.New(),
		Strategy:   strategy,
		Route:      route,
		DetectedAt: time.Now().UTC(),
	}
}

// StartToken returns the token the route is funded in.
func (o *Opportunity) StartToken() Token {
	if len(o.Route.Legs) == 0 {
		return Token{}
	}
	return o.Route.Legs[0].TokenIn
}
