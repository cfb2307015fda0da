package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

func TestFloydWarshallFindsNegativeCycle(t *testing.T) {
	tokens := testTokens("A", "B", "C")
	rates := [][]float64{
		{1.0, 0.75, 1.5},
		{1.25, 1.0, 0.66},
		{0.85, 1.66, 1.0},
	}
	m := buildGraph(t, tokens, rates, "fx").Snapshot()

	cycle, err := FloydWarshall(m)
	require.NoError(t, err)
	require.NotNil(t, cycle)

	assert.Equal(t, cycle.Path[0], cycle.Path[len(cycle.Path)-1])
	assert.Greater(t, cycle.Product, 1.0)

	route := domain.Route{Legs: cycle.Legs(m)}
	require.NoError(t, route.Validate())
	assert.True(t, route.Cyclic())
}

func TestFloydWarshallNoFalsePositive(t *testing.T) {
	tokens := testTokens("A", "B", "C")
	rates := [][]float64{
		{1.0, 0.5, 0.4},
		{1.9, 1.0, 0.7},
		{2.3, 1.3, 1.0},
	}
	m := buildGraph(t, tokens, rates, "fx").Snapshot()

	cycle, err := FloydWarshall(m)
	assert.ErrorIs(t, err, domain.ErrNoOpportunity)
	assert.Nil(t, cycle)
}

func TestFloydWarshallFindsCycleUnreachableFromFirstVertex(t *testing.T) {
	// The profitable loop sits between C and D; from A only the dead-end
	// edge to B is reachable, so a single-source scan rooted at A misses it.
	tokens := testTokens("A", "B", "C", "D")
	g := New()
	require.NoError(t, g.Insert(tokens[0], tokens[1], "uni", 0.5))
	require.NoError(t, g.Insert(tokens[2], tokens[3], "uni", 2.0))
	require.NoError(t, g.Insert(tokens[3], tokens[2], "sushi", 0.6))
	m := g.Snapshot()

	_, err := BellmanFord(m, 0)
	assert.ErrorIs(t, err, domain.ErrNoOpportunity)

	cycle, err := FloydWarshall(m)
	require.NoError(t, err)
	assert.Greater(t, cycle.Product, 1.0)
}

func TestFloydWarshallEmpty(t *testing.T) {
	_, err := FloydWarshall(New().Snapshot())
	assert.ErrorIs(t, err, domain.ErrNoOpportunity)
}
