package graph

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

func testToken(name string, seed byte) domain.Token {
	var addr common.Address
	addr[19] = seed
	addr[0] = 0xaa
	return domain.Token{Name: name, Address: addr, Decimals: 18}
}

func testTokens(names ...string) []domain.Token {
	out := make([]domain.Token, len(names))
	for i, n := range names {
		out[i] = testToken(n, byte(i+1))
	}
	return out
}

// buildGraph inserts every off-diagonal positive rate of a dense matrix under
// a single market name.
func buildGraph(t *testing.T, tokens []domain.Token, rates [][]float64, market string) *RateGraph {
	t.Helper()
	g := New()
	for i := range tokens {
		for j := range tokens {
			if i == j || rates[i][j] <= 0 {
				continue
			}
			require.NoError(t, g.Insert(tokens[i], tokens[j], market, rates[i][j]))
		}
	}
	return g
}

func TestInsertRejectsBadRates(t *testing.T) {
	g := New()
	toks := testTokens("A", "B")

	assert.ErrorIs(t, g.Insert(toks[0], toks[1], "m", 0), domain.ErrInvalidRate)
	assert.ErrorIs(t, g.Insert(toks[0], toks[1], "m", -1.5), domain.ErrInvalidRate)
	assert.ErrorIs(t, g.Insert(toks[0], toks[0], "m", 1.2), domain.ErrInvalidRate)
	assert.Equal(t, 0, g.Size())
}

func TestInsertOverwritesPerMarket(t *testing.T) {
	g := New()
	toks := testTokens("A", "B")

	require.NoError(t, g.Insert(toks[0], toks[1], "uni", 1.5))
	require.NoError(t, g.Insert(toks[0], toks[1], "uni", 2.0))

	m := g.Snapshot()
	i, _ := m.Index(toks[0])
	j, _ := m.Index(toks[1])
	assert.Equal(t, 2.0, m.Rates[i][j])
	assert.Equal(t, "uni", m.Markets[i][j])
}

func TestSnapshotPicksBestMarket(t *testing.T) {
	g := New()
	toks := testTokens("A", "B")

	require.NoError(t, g.Insert(toks[0], toks[1], "uni", 1.5))
	require.NoError(t, g.Insert(toks[0], toks[1], "sushi", 1.8))
	require.NoError(t, g.Insert(toks[0], toks[1], "binance", 1.2))

	m := g.Snapshot()
	assert.Equal(t, 1.8, m.Rates[0][1])
	assert.Equal(t, "sushi", m.Markets[0][1])
}

func TestSnapshotIsACopy(t *testing.T) {
	g := New()
	toks := testTokens("A", "B")
	require.NoError(t, g.Insert(toks[0], toks[1], "uni", 1.5))

	m := g.Snapshot()
	require.NoError(t, g.Insert(toks[0], toks[1], "uni", 9.9))
	require.NoError(t, g.Insert(toks[1], toks[0], "uni", 0.1))

	assert.Equal(t, 1.5, m.Rates[0][1])
	assert.Equal(t, 0.0, m.Rates[1][0])
	assert.Equal(t, 9.9, g.Snapshot().Rates[0][1])
}

func TestSnapshotRoundTripsDenseMatrix(t *testing.T) {
	tokens := testTokens("CHF", "EUR", "USD", "GBP", "YEN", "CAD")
	rates := [][]float64{
		{1, 0.23, 0.25, 16.43, 18.21, 4.94},
		{4.34, 1, 1.11, 71.4, 79.09, 21.44},
		{3.93, 0.9, 1, 64.52, 71.48, 19.37},
		{0.061, 0.014, 0.015, 1, 1.11, 0.3},
		{0.055, 0.013, 0.014, 0.9, 1, 0.27},
		{0.2, 0.047, 0.052, 3.33, 3.69, 1},
	}
	g := buildGraph(t, tokens, rates, "fx")

	m := g.Snapshot()
	require.Len(t, m.Tokens, 6)

	want := make([]float64, 0, 36)
	for _, row := range rates {
		want = append(want, row...)
	}
	assert.Equal(t, want, m.Flat())
}

func TestResetEmptiesGraph(t *testing.T) {
	toks := testTokens("A", "B")
	g := New()
	require.NoError(t, g.Insert(toks[0], toks[1], "uni", 1.5))

	g.Reset()

	assert.Equal(t, 0, g.Size())
	assert.Empty(t, g.Snapshot().Tokens)
}
