package betsize

// maxFraction caps the Kelly stake at half the bankroll. Full Kelly assumes
// perfectly known probabilities, which price feeds never give us.
const maxFraction = 0.5

// Fraction returns the Kelly bankroll fraction for a bet that wins with
// probability p at the given net odds (profit per unit staked). The result
// is clamped to [0, maxFraction].
func Fraction(p, odds float64) float64 {
	if odds <= 0 || p <= 0 {
		return 0
	}
	q := 1 - p
	f := (p*odds - q) / odds
	if f < 0 {
		return 0
	}
	if f > maxFraction {
		return maxFraction
	}
	return f
}
