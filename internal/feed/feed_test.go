package feed

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arguiot/arbitrage-bot-sub000/internal/cache"
	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
	"github.com/arguiot/arbitrage-bot-sub000/internal/graph"
	"github.com/arguiot/arbitrage-bot-sub000/internal/market"
)

func token(name string, seed byte) domain.Token {
	var addr common.Address
	addr[19] = seed
	return domain.Token{Name: name, Address: addr, Decimals: 18}
}

// fakeVenue quotes a fixed spot rate for the low-address direction and its
// inverse for the way back, net of the venue fee on both sides.
type fakeVenue struct {
	name  string
	rate  float64
	fee   float64
	fail  bool
	calls atomic.Int32
}

var _ domain.MarketAdapter = (*fakeVenue)(nil)

func (f *fakeVenue) Market() domain.Market {
	return domain.Market{Name: f.name, Kind: domain.MarketBook, Fee: f.fee}
}

func (f *fakeVenue) GetQuote(ctx context.Context, amountIn *big.Int, in, out domain.Token, hint *domain.Quote) (*domain.Quote, error) {
	f.calls.Add(1)
	if f.fail {
		return nil, errors.New("venue down")
	}
	spot := f.rate
	if in.Address.Big().Cmp(out.Address.Big()) > 0 {
		spot = 1 / f.rate
	}
	net := spot * (1 - f.fee)
	return &domain.Quote{
		MarketName:       f.name,
		TokenIn:          in,
		TokenOut:         out,
		AmountIn:         new(big.Int).Set(amountIn),
		AmountOut:        big.NewInt(int64(float64(amountIn.Int64()) * net)),
		SpotPrice:        spot,
		TransactionPrice: net,
		Timestamp:        time.Now(),
	}, nil
}

func (f *fakeVenue) EstimateTransactionTime(ctx context.Context, in, out domain.Token) (time.Duration, error) {
	return time.Second, nil
}

func (f *fakeVenue) EstimateTransactionCost(ctx context.Context, amountIn *big.Int, in, out domain.Token) (*big.Int, error) {
	return new(big.Int), nil
}

func (f *fakeVenue) BuyAtMaximumOutput(ctx context.Context, amountIn *big.Int, path []domain.Token, minOut *big.Int, deadline time.Time) (domain.Receipt, error) {
	return domain.Receipt{}, nil
}

func (f *fakeVenue) BuyAtMinimumInput(ctx context.Context, amountOut *big.Int, path []domain.Token, maxIn *big.Int, deadline time.Time) (domain.Receipt, error) {
	return domain.Receipt{}, nil
}

func (f *fakeVenue) LiquidityFor(ctx context.Context, t domain.Token) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeVenue) BalanceFor(ctx context.Context, t domain.Token) (*big.Int, error) {
	return big.NewInt(1), nil
}

func TestRefreshOnceFillsStoreAndGraph(t *testing.T) {
	a, b := token("A", 1), token("B", 2)
	uni := &fakeVenue{name: "uni", rate: 2.0}
	sushi := &fakeVenue{name: "sushi", rate: 1.9}

	markets := market.NewRegistry()
	markets.Register(uni)
	markets.Register(sushi)

	quotes := cache.NewQuoteStore()
	rates := graph.New()
	svc := New(Config{Tokens: []domain.Token{a, b}, ProbeAmount: big.NewInt(1000)}, markets, quotes, rates, nil, slog.New(slog.DiscardHandler))

	require.NoError(t, svc.RefreshOnce(context.Background()))

	_, ok := quotes.Get(a, b, "uni")
	assert.True(t, ok)
	assert.Len(t, quotes.Pair(a, b), 2)

	m := rates.Snapshot()
	i, okA := m.Index(a)
	j, okB := m.Index(b)
	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, 2.0, m.Rates[i][j], "forward edge keeps the best venue rate")
	assert.InDelta(t, 1.0/1.9, m.Rates[j][i], 1e-12, "reverse edge keeps its own best venue")
	assert.Equal(t, "uni", m.Markets[i][j])
	assert.Equal(t, "sushi", m.Markets[j][i])
}

func TestRefreshPairQuotesReverseDirection(t *testing.T) {
	a, b := token("A", 1), token("B", 2)
	venue := &fakeVenue{name: "uni", rate: 2.0, fee: 0.01}

	markets := market.NewRegistry()
	markets.Register(venue)

	quotes := cache.NewQuoteStore()
	rates := graph.New()
	svc := New(Config{Tokens: []domain.Token{a, b}, ProbeAmount: big.NewInt(1_000_000)}, markets, quotes, rates, nil, slog.New(slog.DiscardHandler))

	require.NoError(t, svc.RefreshOnce(context.Background()))

	m := rates.Snapshot()
	i, okA := m.Index(a)
	j, okB := m.Index(b)
	require.True(t, okA)
	require.True(t, okB)

	// The fee bites both legs. The reciprocal of the forward rate would be
	// 1/1.98 = 0.50505 and make the round trip look like exactly 1.0; the
	// executable reverse rate is 0.5*0.99 = 0.495.
	assert.InDelta(t, 1.98, m.Rates[i][j], 1e-12)
	assert.InDelta(t, 0.495, m.Rates[j][i], 1e-12)
	assert.Less(t, m.Rates[i][j]*m.Rates[j][i], 1.0, "fee-losing round trip must not look break-even")

	_, ok := quotes.Get(b, a, "uni")
	assert.True(t, ok, "reverse quote lands in the store")
}

func TestRefreshOnceSurvivesVenueFailure(t *testing.T) {
	a, b := token("A", 1), token("B", 2)
	down := &fakeVenue{name: "down", fail: true}
	up := &fakeVenue{name: "up", rate: 1.5}

	markets := market.NewRegistry()
	markets.Register(down)
	markets.Register(up)

	quotes := cache.NewQuoteStore()
	svc := New(Config{Tokens: []domain.Token{a, b}}, markets, quotes, graph.New(), nil, slog.New(slog.DiscardHandler))

	require.NoError(t, svc.RefreshOnce(context.Background()))

	_, ok := quotes.Get(a, b, "up")
	assert.True(t, ok)
	_, ok = quotes.Get(a, b, "down")
	assert.False(t, ok)
}

func TestRefreshOnceNeedsUniverse(t *testing.T) {
	svc := New(Config{}, market.NewRegistry(), cache.NewQuoteStore(), graph.New(), nil, slog.New(slog.DiscardHandler))
	err := svc.RefreshOnce(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRefreshOncePollsAllPairs(t *testing.T) {
	a, b, c := token("A", 1), token("B", 2), token("C", 3)
	uni := &fakeVenue{name: "uni", rate: 1.2}

	markets := market.NewRegistry()
	markets.Register(uni)

	svc := New(Config{Tokens: []domain.Token{a, b, c}}, markets, cache.NewQuoteStore(), graph.New(), nil, slog.New(slog.DiscardHandler))
	require.NoError(t, svc.RefreshOnce(context.Background()))

	assert.Equal(t, int32(6), uni.calls.Load(), "both directions of all three unordered pairs")
}
