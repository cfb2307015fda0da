package domain

import "fmt"

// RouteLeg is one hop of an arbitrage route: trade TokenIn for TokenOut on
// Market.
type RouteLeg struct {
	Market   Market `json:"market"`
	TokenIn  Token  `json:"tokenIn"`
	TokenOut Token  `json:"tokenOut"`
}

// Route is an ordered sequence of legs. A cyclic route starts and ends on the
// same token; a two-leg cross-market route is the degenerate cycle A->B->A.
type Route struct {
	Legs []RouteLeg `json:"legs"`
}

// Validate checks leg adjacency: each leg's output token must feed the next
// leg's input.
func (r Route) Validate() error {
	if len(r.Legs) == 0 {
		return fmt.Errorf("route: %w: empty", ErrMalformedRoute)
	}
	for i := 1; i < len(r.Legs); i++ {
		if !r.Legs[i-1].TokenOut.Equal(r.Legs[i].TokenIn) {
			return fmt.Errorf("route: %w: leg %d output %s does not feed leg %d input %s",
				ErrMalformedRoute, i-1, r.Legs[i-1].TokenOut, i, r.Legs[i].TokenIn)
		}
	}
	return nil
}

// Cyclic reports whether the route returns to its starting token.
func (r Route) Cyclic() bool {
	if len(r.Legs) == 0 {
		return false
	}
	return r.Legs[0].TokenIn.Equal(r.Legs[len(r.Legs)-1].TokenOut)
}

// Atomic reports whether every leg settles on the same chain through an AMM,
// which allows the whole route to execute as a single flash transaction.
func (r Route) Atomic() bool {
	if len(r.Legs) == 0 {
		return false
	}
	first := r.Legs[0].Market
	for _, leg := range r.Legs {
		if !leg.Market.SameSettlement(first) {
			return false
		}
	}
	return true
}

// Tokens returns the token path in order, including the terminal token.
func (r Route) Tokens() []Token {
	if len(r.Legs) == 0 {
		return nil
	}
	out := make([]Token, 0, len(r.Legs)+1)
	out = append(out, r.Legs[0].TokenIn)
	for _, leg := range r.Legs {
		out = append(out, leg.TokenOut)
	}
	return out
}

func (r Route) String() string {
	if len(r.Legs) == 0 {
		return "<empty route>"
	}
	s := r.Legs[0].TokenIn.String()
	for _, leg := range r.Legs {
		s += fmt.Sprintf(" -(%s)-> %s", leg.Market.Name, leg.TokenOut)
	}
	return s
}
