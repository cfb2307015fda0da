package betsize

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

// v2Out mirrors the fee-adjusted constant-product swap curve.
func v2Out(amountIn, reserveIn, reserveOut *big.Int, feePerMille int64) *big.Int {
	inWithFee := new(big.Int).Mul(amountIn, big.NewInt(1000-feePerMille))
	num := new(big.Int).Mul(inWithFee, reserveOut)
	den := new(big.Int).Mul(reserveIn, big.NewInt(1000))
	den.Add(den, inWithFee)
	return num.Div(num, den)
}

// profitAt values a buy of amountIn at the external price num/den, in input
// token units.
func profitAt(amountIn, reserveIn, reserveOut, num, den *big.Int, feePerMille int64) *big.Int {
	out := v2Out(amountIn, reserveIn, reserveOut, feePerMille)
	value := new(big.Int).Mul(out, num)
	value.Div(value, den)
	return value.Sub(value, amountIn)
}

func TestMaxProfitableInputBeatsNeighbors(t *testing.T) {
	reserveIn := big.NewInt(1_000_000_000)
	reserveOut := big.NewInt(2_000_000_000)
	// Pool prices the output token at 0.5 input units; the external market
	// pays 0.8.
	num, den := big.NewInt(8), big.NewInt(10)

	x := MaxProfitableInput(reserveIn, reserveOut, num, den, 3)
	require.Positive(t, x.Sign())

	best := profitAt(x, reserveIn, reserveOut, num, den, 3)
	require.Positive(t, best.Sign())

	// Offsets stay coarse: near the optimum the profit curve is flat enough
	// that integer rounding noise would drown out sub-million differences.
	for _, off := range []int64{-200_000_000, -50_000_000, -10_000_000, 10_000_000, 50_000_000, 200_000_000} {
		probe := new(big.Int).Add(x, big.NewInt(off))
		if probe.Sign() <= 0 {
			continue
		}
		p := profitAt(probe, reserveIn, reserveOut, num, den, 3)
		assert.LessOrEqual(t, p.Cmp(best), 0, "offset %d should not beat the closed form", off)
	}
}

func TestMaxProfitableInputClampsToZero(t *testing.T) {
	reserveIn := big.NewInt(1_000_000)
	reserveOut := big.NewInt(2_000_000)

	// External price at the pool's marginal price: no edge once the fee is
	// paid.
	x := MaxProfitableInput(reserveIn, reserveOut, big.NewInt(1), big.NewInt(2), 3)
	assert.Zero(t, x.Sign())

	// External price well below the pool.
	x = MaxProfitableInput(reserveIn, reserveOut, big.NewInt(1), big.NewInt(10), 3)
	assert.Zero(t, x.Sign())
}

func TestMaxProfitableInputDegenerateInputs(t *testing.T) {
	zero := new(big.Int)
	one := big.NewInt(1)

	assert.Zero(t, MaxProfitableInput(nil, one, one, one, 3).Sign())
	assert.Zero(t, MaxProfitableInput(zero, one, one, one, 3).Sign())
	assert.Zero(t, MaxProfitableInput(one, one, one, zero, 3).Sign())
	assert.Zero(t, MaxProfitableInput(one, one, one, one, 1000).Sign())
}

func TestMaxProfitableInputHugeReservesFallBack(t *testing.T) {
	// Values near 2^200 push intermediate products past 256 bits; the
	// arbitrary-precision fallback must agree with the brute-force optimum
	// direction (positive, profitable).
	huge := new(big.Int).Lsh(big.NewInt(1), 200)
	num, den := big.NewInt(3), big.NewInt(1)

	x := MaxProfitableInput(huge, huge, num, den, 3)
	require.Positive(t, x.Sign())
	assert.Positive(t, profitAt(x, huge, huge, num, den, 3).Sign())
}

func TestFlatPair(t *testing.T) {
	t.Run("start balance binds", func(t *testing.T) {
		size, err := FlatPair(big.NewInt(1000), big.NewInt(5000), 2.0, 0.6, 0.001, 0.001)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), size.Int64())
	})

	t.Run("counter balance binds", func(t *testing.T) {
		size, err := FlatPair(big.NewInt(1000), big.NewInt(600), 2.0, 0.6, 0.001, 0.001)
		require.NoError(t, err)
		assert.Equal(t, int64(300), size.Int64())
	})

	t.Run("unprofitable round trip", func(t *testing.T) {
		_, err := FlatPair(big.NewInt(1000), big.NewInt(5000), 2.0, 0.4, 0.001, 0.001)
		assert.ErrorIs(t, err, domain.ErrNotProfitable)
	})

	t.Run("fees flip the verdict", func(t *testing.T) {
		// 1.01 round trip gross, but 2% of fees net it negative.
		_, err := FlatPair(big.NewInt(1000), big.NewInt(5000), 1.01, 1.0, 0.01, 0.01)
		assert.ErrorIs(t, err, domain.ErrNotProfitable)
	})

	t.Run("empty balance", func(t *testing.T) {
		_, err := FlatPair(new(big.Int), big.NewInt(5000), 2.0, 0.6, 0, 0)
		assert.ErrorIs(t, err, domain.ErrBidTooLow)
	})
}

func TestFraction(t *testing.T) {
	assert.InDelta(t, 0.2, Fraction(0.6, 1), 1e-12)
	assert.Equal(t, 0.5, Fraction(0.9, 10), "full Kelly must clamp at half bankroll")
	assert.Zero(t, Fraction(0.2, 1), "negative edge bets nothing")
	assert.Zero(t, Fraction(0.6, 0))
	assert.Zero(t, Fraction(0, 2))
}

func TestProfitProbability(t *testing.T) {
	assert.InDelta(t, 0.5330697, ProfitProbability(0.01, 0.5), 1e-6)

	// Fast settlement with any edge saturates the fit.
	assert.Equal(t, 1.0, ProfitProbability(0.05, 0.1))

	p := ProfitProbability(0.001, 30)
	assert.GreaterOrEqual(t, p, 0.0)
	assert.LessOrEqual(t, p, 1.0)
}

func TestScaleToDepth(t *testing.T) {
	t.Run("tightest leg wins", func(t *testing.T) {
		got := ScaleToDepth(
			big.NewInt(1000),
			[]*big.Int{big.NewInt(1000), big.NewInt(2000)},
			[]*big.Int{nil, big.NewInt(500)},
		)
		assert.Equal(t, int64(250), got.Int64())
	})

	t.Run("no ceiling hit", func(t *testing.T) {
		got := ScaleToDepth(
			big.NewInt(1000),
			[]*big.Int{big.NewInt(1000)},
			[]*big.Int{big.NewInt(1_000_000)},
		)
		assert.Equal(t, int64(1000), got.Int64())
	})

	t.Run("zero amount", func(t *testing.T) {
		got := ScaleToDepth(new(big.Int), nil, nil)
		assert.Zero(t, got.Sign())
	})
}
