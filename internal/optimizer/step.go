// Package optimizer searches for the trade size that maximizes profit along
// a route, pricing candidate venues concurrently at every hop.
package optimizer

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

// Step is one hop of a route under optimization: a token conversion with one
// or more candidate venues. Steps chain with Then; pricing walks the chain
// and keeps the best venue per hop.
type Step struct {
	tokenIn  domain.Token
	tokenOut domain.Token
	venues   []domain.MarketAdapter
	hints    map[string]*domain.Quote
	next     *Step
}

// NewStep builds a hop over the given candidate venues.
func NewStep(tokenIn, tokenOut domain.Token, venues ...domain.MarketAdapter) *Step {
	return &Step{
		tokenIn:  tokenIn,
		tokenOut: tokenOut,
		venues:   venues,
		hints:    make(map[string]*domain.Quote),
	}
}

// WithHint attaches a cached quote a venue can price against without a
// network read.
func (s *Step) WithHint(market string, q *domain.Quote) *Step {
	if q != nil {
		s.hints[market] = q
	}
	return s
}

// Then appends the next hop and returns it, so chains read in route order.
func (s *Step) Then(next *Step) *Step {
	s.next = next
	return next
}

// PlanLeg is one decided hop: the winning venue and its sized quote.
type PlanLeg struct {
	Market    string
	TokenIn   domain.Token
	TokenOut  domain.Token
	AmountIn  *big.Int
	AmountOut *big.Int
	Quote     *domain.Quote
}

// Price walks the chain with amountIn, racing the candidate venues at each
// hop and feeding the best output into the next. It returns the final output
// with the per-hop decisions.
func (s *Step) Price(ctx context.Context, amountIn *big.Int) (*big.Int, []PlanLeg, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, nil, fmt.Errorf("optimizer: price: %w: empty input", domain.ErrBidTooLow)
	}

	amount := new(big.Int).Set(amountIn)
	var legs []PlanLeg
	for step := s; step != nil; step = step.next {
		best, err := step.bestQuote(ctx, amount)
		if err != nil {
			return nil, nil, err
		}
		legs = append(legs, PlanLeg{
			Market:    best.MarketName,
			TokenIn:   step.tokenIn,
			TokenOut:  step.tokenOut,
			AmountIn:  new(big.Int).Set(amount),
			AmountOut: new(big.Int).Set(best.AmountOut),
			Quote:     best,
		})
		amount = new(big.Int).Set(best.AmountOut)
	}
	return amount, legs, nil
}

// bestQuote races every candidate venue for the hop and max-reduces on
// output amount. A venue that fails to quote drops out; the hop only fails
// when no venue answers.
func (s *Step) bestQuote(ctx context.Context, amountIn *big.Int) (*domain.Quote, error) {
	if len(s.venues) == 0 {
		return nil, fmt.Errorf("optimizer: hop %s->%s: %w: no venues", s.tokenIn, s.tokenOut, domain.ErrNotFound)
	}

	var (
		mu      sync.Mutex
		best    *domain.Quote
		lastErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, venue := range s.venues {
		g.Go(func() error {
			q, err := venue.GetQuote(gctx, amountIn, s.tokenIn, s.tokenOut, s.hints[venue.Market().Name])
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				lastErr = err
				return nil
			}
			if q.AmountOut == nil {
				return nil
			}
			if best == nil || q.AmountOut.Cmp(best.AmountOut) > 0 {
				best = q
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if best == nil {
		if lastErr != nil {
			return nil, fmt.Errorf("optimizer: hop %s->%s: %w", s.tokenIn, s.tokenOut, lastErr)
		}
		return nil, fmt.Errorf("optimizer: hop %s->%s: %w", s.tokenIn, s.tokenOut, domain.ErrNoOpportunity)
	}
	return best, nil
}
