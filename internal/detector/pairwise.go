package detector

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

// StrategyPairwise is the default detection strategy.
const StrategyPairwise = "pairwise"

// Pairwise scans every token pair for two markets quoting it at different
// effective rates. For a pair quoted on n markets it inspects all n*(n-1)/2
// market couples; profit is the output-amount spread between the richer and
// the poorer venue at the same input.
type Pairwise struct {
	minRatio float64
	logger   *slog.Logger
}

var _ Strategy = (*Pairwise)(nil)

// NewPairwise builds the strategy. minRatio is the smallest round-trip
// multiplier worth reporting, e.g. 1.002 for 20 bps.
func NewPairwise(minRatio float64, logger *slog.Logger) *Pairwise {
	if minRatio < 1 {
		minRatio = 1
	}
	return &Pairwise{
		minRatio: minRatio,
		logger:   logger.With(slog.String("component", "detector"), slog.String("strategy", StrategyPairwise)),
	}
}

func (p *Pairwise) Name() string { return StrategyPairwise }

func (p *Pairwise) Detect(ctx context.Context, snap Snapshot) (*domain.Opportunity, error) {
	byPair := groupByPair(snap.Quotes)

	var best *domain.Opportunity
	for _, quotes := range byPair {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("detector: pairwise: %w", err)
		}
		if opp := p.bestForPair(quotes); opp != nil {
			if best == nil || opp.ProfitRatio > best.ProfitRatio {
				best = opp
			}
		}
	}
	if best == nil {
		return nil, domain.ErrNoOpportunity
	}
	p.logger.Debug("opportunity detected",
		slog.String("route", best.Route.String()),
		slog.Float64("profit_ratio", best.ProfitRatio))
	return best, nil
}

// bestForPair compares every couple of markets quoting the same pair and
// keeps the widest spread above the threshold.
func (p *Pairwise) bestForPair(quotes []*domain.Quote) *domain.Opportunity {
	var best *domain.Opportunity
	for i := 0; i < len(quotes); i++ {
		for j := i + 1; j < len(quotes); j++ {
			opp := p.couple(quotes[i], quotes[j])
			if opp == nil {
				continue
			}
			if best == nil || opp.ProfitRatio > best.ProfitRatio {
				best = opp
			}
		}
	}
	return best
}

// couple evaluates one market couple. Both quotes are aligned to the same
// trade direction first; the venue paying out more is the buy side and the
// other the sell-back side.
func (p *Pairwise) couple(q1, q2 *domain.Quote) *domain.Opportunity {
	q2 = align(q1, q2)
	if q2 == nil {
		return nil
	}
	rate1, rate2 := q1.Rate(), q2.Rate()
	if rate1 <= 0 || rate2 <= 0 {
		return nil
	}

	buy, sell := q1, q2
	if rate2 > rate1 {
		buy, sell = q2, q1
	}

	// Round trip: convert at the richer venue, convert back at the
	// reciprocal of the poorer venue's rate.
	ratio := buy.Rate() / sell.Rate()
	if ratio < p.minRatio {
		return nil
	}

	opp := domain.NewOpportunity(StrategyPairwise, domain.Route{Legs: []domain.RouteLeg{
		{
			Market:   domain.Market{Name: buy.MarketName},
			TokenIn:  buy.TokenIn,
			TokenOut: buy.TokenOut,
		},
		{
			Market:   domain.Market{Name: sell.MarketName},
			TokenIn:  buy.TokenOut,
			TokenOut: buy.TokenIn,
		},
	}})
	opp.Quotes = []*domain.Quote{buy.Clone(), sell.Clone()}
	opp.ProfitRatio = ratio
	if buy.AmountIn != nil {
		opp.AmountIn = new(big.Int).Set(buy.AmountIn)
	}
	// Profit at the shared input is the output spread between the venues.
	if buy.AmountOut != nil && sell.AmountOut != nil && buy.AmountIn != nil && sell.AmountIn != nil && buy.AmountIn.Cmp(sell.AmountIn) == 0 {
		opp.Profit = new(big.Int).Sub(buy.AmountOut, sell.AmountOut)
	}
	return opp
}

// align returns q2 oriented in q1's trade direction, or nil when the quotes
// cover different pairs.
func align(q1, q2 *domain.Quote) *domain.Quote {
	if q1.TokenIn.Equal(q2.TokenIn) && q1.TokenOut.Equal(q2.TokenOut) {
		return q2
	}
	return nil
}

func groupByPair(quotes []*domain.Quote) map[string][]*domain.Quote {
	out := make(map[string][]*domain.Quote)
	for _, q := range quotes {
		if q == nil {
			continue
		}
		key := domain.PairKey(q.TokenIn, q.TokenOut) + "|" + direction(q)
		out[key] = append(out[key], q)
	}
	return out
}

// direction disambiguates the two orientations sharing one pair key.
func direction(q *domain.Quote) string {
	if q.TokenIn.Less(q.TokenOut) {
		return "f"
	}
	return "r"
}
