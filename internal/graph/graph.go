// Package graph maintains the directed exchange-rate graph over tokens and
// runs negative-cycle detection on snapshots of it.
package graph

import (
	"fmt"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

// edge holds the per-market rates for one directed token pair.
type edge map[string]float64

// RateGraph is a mutable directed multigraph: vertices are tokens, and each
// ordered pair can carry one rate per market. Vertices are interned on first
// sight and never removed; rates are overwritten per (from, to, market) key.
type RateGraph struct {
	mu     sync.RWMutex
	tokens []domain.Token
	index  map[common.Address]int
	edges  map[[2]int]edge
}

// New returns an empty rate graph.
func New() *RateGraph {
	return &RateGraph{
		index: make(map[common.Address]int),
		edges: make(map[[2]int]edge),
	}
}

// Insert records that market converts one unit of from into rate units of to.
// Re-inserting the same (from, to, market) triple overwrites the stored rate.
func (g *RateGraph) Insert(from, to domain.Token, market string, rate float64) error {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return fmt.Errorf("graph: insert %s->%s on %s: %w: %v", from, to, market, domain.ErrInvalidRate, rate)
	}
	if from.Equal(to) {
		return fmt.Errorf("graph: insert on %s: %w: self edge %s", market, domain.ErrInvalidRate, from)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	i := g.intern(from)
	j := g.intern(to)
	key := [2]int{i, j}
	e, ok := g.edges[key]
	if !ok {
		e = make(edge, 1)
		g.edges[key] = e
	}
	e[market] = rate
	return nil
}

// intern must be called with the write lock held.
func (g *RateGraph) intern(t domain.Token) int {
	if i, ok := g.index[t.Address]; ok {
		return i
	}
	i := len(g.tokens)
	g.tokens = append(g.tokens, t)
	g.index[t.Address] = i
	return i
}

// Size returns the current vertex count.
func (g *RateGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.tokens)
}

// Reset drops all vertices and edges.
func (g *RateGraph) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tokens = nil
	g.index = make(map[common.Address]int)
	g.edges = make(map[[2]int]edge)
}

// Matrix is an immutable dense snapshot of the graph. Rates[i][j] holds the
// best rate across markets from token i to token j, 1 on the diagonal, and 0
// where no market quotes the pair. Markets[i][j] names the venue behind each
// rate. A Matrix never changes after Snapshot returns it.
type Matrix struct {
	Tokens  []domain.Token
	Rates   [][]float64
	Markets [][]string
}

// Snapshot copies the graph into a dense matrix under the read lock. Later
// inserts do not affect the returned matrix.
func (g *RateGraph) Snapshot() *Matrix {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n := len(g.tokens)
	m := &Matrix{
		Tokens:  make([]domain.Token, n),
		Rates:   make([][]float64, n),
		Markets: make([][]string, n),
	}
	copy(m.Tokens, g.tokens)
	for i := 0; i < n; i++ {
		m.Rates[i] = make([]float64, n)
		m.Markets[i] = make([]string, n)
		m.Rates[i][i] = 1
	}
	for key, e := range g.edges {
		best, market := bestRate(e)
		m.Rates[key[0]][key[1]] = best
		m.Markets[key[0]][key[1]] = market
	}
	return m
}

// bestRate resolves a multi-edge to the single most favorable market.
func bestRate(e edge) (float64, string) {
	var best float64
	var market string
	for name, rate := range e {
		if rate > best || (rate == best && name < market) {
			best = rate
			market = name
		}
	}
	return best, market
}

// Index returns the snapshot position of a token.
func (m *Matrix) Index(t domain.Token) (int, bool) {
	for i, tok := range m.Tokens {
		if tok.Equal(t) {
			return i, true
		}
	}
	return -1, false
}

// Flat returns the rate matrix in row-major order.
func (m *Matrix) Flat() []float64 {
	n := len(m.Tokens)
	out := make([]float64, 0, n*n)
	for i := 0; i < n; i++ {
		out = append(out, m.Rates[i]...)
	}
	return out
}
