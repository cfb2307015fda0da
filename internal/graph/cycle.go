package graph

import (
	"math"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

// Cycle is a closed walk through a snapshot whose rate product exceeds 1.
// Path holds vertex indices into the snapshot with the start vertex repeated
// at the end.
type Cycle struct {
	Path []int
	// Product is the multiplied rate around the cycle. Anything above 1
	// means one unit of the start token comes back as Product units.
	Product float64
}

// Tokens resolves the path against its snapshot.
func (c *Cycle) Tokens(m *Matrix) []domain.Token {
	out := make([]domain.Token, len(c.Path))
	for i, v := range c.Path {
		out[i] = m.Tokens[v]
	}
	return out
}

// Legs resolves the cycle into venue-labelled route legs.
func (c *Cycle) Legs(m *Matrix) []domain.RouteLeg {
	legs := make([]domain.RouteLeg, 0, len(c.Path)-1)
	for i := 1; i < len(c.Path); i++ {
		from, to := c.Path[i-1], c.Path[i]
		legs = append(legs, domain.RouteLeg{
			Market:   domain.Market{Name: m.Markets[from][to]},
			TokenIn:  m.Tokens[from],
			TokenOut: m.Tokens[to],
		})
	}
	return legs
}

// product multiplies the snapshot rates along a closed path.
func product(m *Matrix, path []int) float64 {
	p := 1.0
	for i := 1; i < len(path); i++ {
		p *= m.Rates[path[i-1]][path[i]]
	}
	return p
}

// weight maps a rate to its additive log-space weight. A cycle whose rate
// product exceeds 1 has negative total weight under this mapping.
func weight(rate float64) float64 {
	return -math.Log(rate)
}
