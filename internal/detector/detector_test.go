package detector

import (
	"context"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
	"github.com/arguiot/arbitrage-bot-sub000/internal/graph"
)

func token(name string, seed byte) domain.Token {
	var addr common.Address
	addr[19] = seed
	return domain.Token{Name: name, Address: addr, Decimals: 18}
}

func quote(market string, in, out domain.Token, amountIn int64, rate float64) *domain.Quote {
	return &domain.Quote{
		MarketName:       market,
		TokenIn:          in,
		TokenOut:         out,
		AmountIn:         big.NewInt(amountIn),
		AmountOut:        big.NewInt(int64(float64(amountIn) * rate)),
		SpotPrice:        rate,
		TransactionPrice: rate,
		Timestamp:        time.Now(),
	}
}

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestPairwiseFindsSpread(t *testing.T) {
	a, b := token("A", 1), token("B", 2)
	snap := Snapshot{Quotes: []*domain.Quote{
		quote("uni", a, b, 1000, 1.50),
		quote("sushi", a, b, 1000, 1.60),
	}}

	opp, err := NewPairwise(1.01, testLogger()).Detect(context.Background(), snap)
	require.NoError(t, err)

	require.Len(t, opp.Route.Legs, 2)
	assert.Equal(t, "sushi", opp.Route.Legs[0].Market.Name, "buy where output is richer")
	assert.Equal(t, "uni", opp.Route.Legs[1].Market.Name)
	assert.True(t, opp.Route.Cyclic())
	assert.NoError(t, opp.Route.Validate())
	assert.InDelta(t, 1.6/1.5, opp.ProfitRatio, 1e-9)
	assert.Equal(t, int64(100), opp.Profit.Int64(), "output spread at the shared input")
	assert.Equal(t, StrategyPairwise, opp.Strategy)
}

func TestPairwisePicksWidestSpread(t *testing.T) {
	a, b, c := token("A", 1), token("B", 2), token("C", 3)
	snap := Snapshot{Quotes: []*domain.Quote{
		quote("uni", a, b, 1000, 1.50),
		quote("sushi", a, b, 1000, 1.53),
		quote("uni", a, c, 1000, 2.00),
		quote("sushi", a, c, 1000, 2.40),
	}}

	opp, err := NewPairwise(1.0, testLogger()).Detect(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, c.Name, opp.Route.Legs[0].TokenOut.Name)
	assert.InDelta(t, 1.2, opp.ProfitRatio, 1e-9)
}

func TestPairwiseRespectsThreshold(t *testing.T) {
	a, b := token("A", 1), token("B", 2)
	snap := Snapshot{Quotes: []*domain.Quote{
		quote("uni", a, b, 1000, 1.500),
		quote("sushi", a, b, 1000, 1.501),
	}}

	_, err := NewPairwise(1.01, testLogger()).Detect(context.Background(), snap)
	assert.ErrorIs(t, err, domain.ErrNoOpportunity)
}

func TestPairwiseIgnoresSingleMarketPairs(t *testing.T) {
	a, b := token("A", 1), token("B", 2)
	snap := Snapshot{Quotes: []*domain.Quote{
		quote("uni", a, b, 1000, 1.5),
	}}

	_, err := NewPairwise(1.0, testLogger()).Detect(context.Background(), snap)
	assert.ErrorIs(t, err, domain.ErrNoOpportunity)
}

func TestPairwiseKeepsDirectionsApart(t *testing.T) {
	// Opposite-direction quotes on the same pair are not a spread.
	a, b := token("A", 1), token("B", 2)
	snap := Snapshot{Quotes: []*domain.Quote{
		quote("uni", a, b, 1000, 1.5),
		quote("sushi", b, a, 1000, 0.9),
	}}

	_, err := NewPairwise(1.0, testLogger()).Detect(context.Background(), snap)
	assert.ErrorIs(t, err, domain.ErrNoOpportunity)
}

func cycleMatrix(t *testing.T) *graph.Matrix {
	t.Helper()
	tokens := []domain.Token{token("A", 1), token("B", 2), token("C", 3)}
	rates := [][]float64{
		{1.0, 0.75, 1.5},
		{1.25, 1.0, 0.66},
		{0.85, 1.66, 1.0},
	}
	g := graph.New()
	for i := range tokens {
		for j := range tokens {
			if i != j {
				require.NoError(t, g.Insert(tokens[i], tokens[j], "fx", rates[i][j]))
			}
		}
	}
	return g.Snapshot()
}

func TestCycleStrategies(t *testing.T) {
	for _, s := range []Strategy{
		NewBellmanFordStrategy(1.0, testLogger()),
		NewFloydWarshallStrategy(1.0, testLogger()),
	} {
		t.Run(s.Name(), func(t *testing.T) {
			opp, err := s.Detect(context.Background(), Snapshot{Matrix: cycleMatrix(t)})
			require.NoError(t, err)
			assert.Greater(t, opp.ProfitRatio, 1.0)
			assert.True(t, opp.Route.Cyclic())
			assert.NoError(t, opp.Route.Validate())
			assert.Equal(t, s.Name(), opp.Strategy)
		})
	}
}

func TestCycleStrategyEmptyMatrix(t *testing.T) {
	s := NewFloydWarshallStrategy(1.0, testLogger())

	_, err := s.Detect(context.Background(), Snapshot{})
	assert.ErrorIs(t, err, domain.ErrNoOpportunity)

	_, err = s.Detect(context.Background(), Snapshot{Matrix: graph.New().Snapshot()})
	assert.ErrorIs(t, err, domain.ErrNoOpportunity)
}

func TestCycleStrategyThreshold(t *testing.T) {
	// The 3x3 fixture's best cycle multiplies to about 3.1; a threshold
	// above that suppresses it.
	s := NewFloydWarshallStrategy(5.0, testLogger())
	_, err := s.Detect(context.Background(), Snapshot{Matrix: cycleMatrix(t)})
	assert.ErrorIs(t, err, domain.ErrNoOpportunity)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewPairwise(1.0, testLogger()))
	r.Register(NewFloydWarshallStrategy(1.0, testLogger()))

	s, err := r.Get(StrategyPairwise)
	require.NoError(t, err)
	assert.Equal(t, StrategyPairwise, s.Name())

	_, err = r.Get("nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, []string{StrategyFloydWarshall, StrategyPairwise}, r.List())
}
