package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

func TestBellmanFordFindsNegativeCycle(t *testing.T) {
	tokens := testTokens("A", "B", "C")
	rates := [][]float64{
		{1.0, 0.75, 1.5},
		{1.25, 1.0, 0.66},
		{0.85, 1.66, 1.0},
	}
	g := buildGraph(t, tokens, rates, "fx")
	m := g.Snapshot()

	cycle, err := BellmanFord(m, 0)
	require.NoError(t, err)
	require.NotNil(t, cycle)

	require.GreaterOrEqual(t, len(cycle.Path), 3)
	assert.Equal(t, cycle.Path[0], cycle.Path[len(cycle.Path)-1])
	assert.Greater(t, cycle.Product, 1.0)
	assert.InDelta(t, product(m, cycle.Path), cycle.Product, 1e-12)
}

func TestBellmanFordCycleLegsChain(t *testing.T) {
	tokens := testTokens("A", "B", "C")
	rates := [][]float64{
		{1.0, 0.75, 1.5},
		{1.25, 1.0, 0.66},
		{0.85, 1.66, 1.0},
	}
	m := buildGraph(t, tokens, rates, "fx").Snapshot()

	cycle, err := BellmanFord(m, 0)
	require.NoError(t, err)

	legs := cycle.Legs(m)
	route := domain.Route{Legs: legs}
	require.NoError(t, route.Validate())
	assert.True(t, route.Cyclic())
	for _, leg := range legs {
		assert.Equal(t, "fx", leg.Market.Name)
	}
}

func TestBellmanFordNoFalsePositive(t *testing.T) {
	tokens := testTokens("A", "B", "C")
	// Every round trip loses value.
	rates := [][]float64{
		{1.0, 0.5, 0.4},
		{1.9, 1.0, 0.7},
		{2.3, 1.3, 1.0},
	}
	m := buildGraph(t, tokens, rates, "fx").Snapshot()

	cycle, err := BellmanFord(m, 0)
	assert.ErrorIs(t, err, domain.ErrNoOpportunity)
	assert.Nil(t, cycle)
}

func TestBellmanFordDenseFxMatrix(t *testing.T) {
	tokens := testTokens("CHF", "EUR", "USD", "GBP", "YEN", "CAD")
	rates := [][]float64{
		{1, 0.23, 0.25, 16.43, 18.21, 4.94},
		{4.34, 1, 1.11, 71.4, 79.09, 21.44},
		{3.93, 0.9, 1, 64.52, 71.48, 19.37},
		{0.061, 0.014, 0.015, 1, 1.11, 0.3},
		{0.055, 0.013, 0.014, 0.9, 1, 0.27},
		{0.2, 0.047, 0.052, 3.33, 3.69, 1},
	}
	m := buildGraph(t, tokens, rates, "fx").Snapshot()

	cycle, err := BellmanFord(m, 0)
	require.NoError(t, err)
	assert.Greater(t, cycle.Product, 1.0)
}

func TestBellmanFordEdgeCases(t *testing.T) {
	t.Run("empty graph", func(t *testing.T) {
		_, err := BellmanFord(New().Snapshot(), 0)
		assert.ErrorIs(t, err, domain.ErrNoOpportunity)
	})

	t.Run("source out of range", func(t *testing.T) {
		toks := testTokens("A", "B")
		g := New()
		require.NoError(t, g.Insert(toks[0], toks[1], "m", 1.5))
		_, err := BellmanFord(g.Snapshot(), 5)
		assert.ErrorIs(t, err, domain.ErrNoOpportunity)
	})

	t.Run("single edge no cycle", func(t *testing.T) {
		toks := testTokens("A", "B")
		g := New()
		require.NoError(t, g.Insert(toks[0], toks[1], "m", 1.5))
		_, err := BellmanFord(g.Snapshot(), 0)
		assert.ErrorIs(t, err, domain.ErrNoOpportunity)
	})
}
