package market

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
)

func token(name string, seed byte) domain.Token {
	var addr common.Address
	addr[19] = seed
	return domain.Token{Name: name, Address: addr, Decimals: 18}
}

type fakePoolSource struct {
	info      *domain.AMMInfo
	pairCalls int
	depth     *big.Int
	balance   *big.Int
	gasPrice  *big.Int
	swaps     int
}

func (f *fakePoolSource) PairInfo(ctx context.Context, in, out domain.Token) (*domain.AMMInfo, error) {
	f.pairCalls++
	return f.info.Clone(), nil
}

func (f *fakePoolSource) Depth(ctx context.Context, t domain.Token) (*big.Int, error) {
	return new(big.Int).Set(f.depth), nil
}

func (f *fakePoolSource) Balance(ctx context.Context, t domain.Token) (*big.Int, error) {
	return new(big.Int).Set(f.balance), nil
}

func (f *fakePoolSource) GasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakePoolSource) BlockTime() time.Duration { return 12 * time.Second }

func (f *fakePoolSource) SwapExactIn(ctx context.Context, router common.Address, path []common.Address, amountIn, minOut *big.Int, deadline time.Time) (string, *big.Int, error) {
	f.swaps++
	out, err := GetAmountOut(amountIn, f.info.ReserveIn, f.info.ReserveOut, 3)
	if err != nil {
		return "", nil, err
	}
	return "0xabc", out, nil
}

func (f *fakePoolSource) SwapExactOut(ctx context.Context, router common.Address, path []common.Address, amountOut, maxIn *big.Int, deadline time.Time) (string, *big.Int, error) {
	f.swaps++
	in, err := GetAmountIn(amountOut, f.info.ReserveIn, f.info.ReserveOut, 3)
	if err != nil {
		return "", nil, err
	}
	return "0xdef", in, nil
}

func newFakeSource() *fakePoolSource {
	return &fakePoolSource{
		info: &domain.AMMInfo{
			ReserveIn:  big.NewInt(1_000_000),
			ReserveOut: big.NewInt(1_000_000),
		},
		depth:    big.NewInt(1_000_000),
		balance:  big.NewInt(50_000),
		gasPrice: big.NewInt(20),
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestGetAmountOut(t *testing.T) {
	out, err := GetAmountOut(big.NewInt(1000), big.NewInt(1_000_000), big.NewInt(1_000_000), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(996), out.Int64())

	_, err = GetAmountOut(new(big.Int), big.NewInt(1), big.NewInt(1), 3)
	assert.ErrorIs(t, err, domain.ErrInvalidRate)

	_, err = GetAmountOut(big.NewInt(10), new(big.Int), big.NewInt(1), 3)
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
}

func TestGetAmountInRoundTrip(t *testing.T) {
	in, err := GetAmountIn(big.NewInt(996), big.NewInt(1_000_000), big.NewInt(1_000_000), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), in.Int64())

	_, err = GetAmountIn(big.NewInt(1_000_000), big.NewInt(1_000_000), big.NewInt(1_000_000), 3)
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
}

func TestAMMVenueQuote(t *testing.T) {
	src := newFakeSource()
	v := NewAMMVenue(AMMConfig{Name: "uni", Chain: "eth", FeePerMille: 3}, src, testLogger())
	a, b := token("A", 1), token("B", 2)

	q, err := v.GetQuote(context.Background(), big.NewInt(1000), a, b, nil)
	require.NoError(t, err)
	assert.Equal(t, "uni", q.MarketName)
	assert.Equal(t, int64(996), q.AmountOut.Int64())
	assert.InDelta(t, 1.0, q.SpotPrice, 1e-9)
	assert.InDelta(t, 0.996, q.TransactionPrice, 1e-9)
	assert.Equal(t, 24*time.Second, q.TTF)
	assert.Equal(t, 1, src.pairCalls)
}

func TestAMMVenueQuoteUsesHint(t *testing.T) {
	src := newFakeSource()
	v := NewAMMVenue(AMMConfig{Name: "uni", Chain: "eth", FeePerMille: 3}, src, testLogger())
	a, b := token("A", 1), token("B", 2)

	first, err := v.GetQuote(context.Background(), big.NewInt(1000), a, b, nil)
	require.NoError(t, err)
	require.Equal(t, 1, src.pairCalls)

	// Same direction: reserves come from the hint, no source read.
	_, err = v.GetQuote(context.Background(), big.NewInt(2000), a, b, first)
	require.NoError(t, err)
	assert.Equal(t, 1, src.pairCalls)

	// Opposite direction reuses inverted reserves.
	back, err := v.GetQuote(context.Background(), big.NewInt(996), b, a, first)
	require.NoError(t, err)
	assert.Equal(t, 1, src.pairCalls)
	assert.Equal(t, back.AMM.ReserveIn, first.AMM.ReserveOut)
}

func TestAMMVenueSpotQuote(t *testing.T) {
	src := newFakeSource()
	v := NewAMMVenue(AMMConfig{Name: "uni", FeePerMille: 3}, src, testLogger())

	q, err := v.GetQuote(context.Background(), nil, token("A", 1), token("B", 2), nil)
	require.NoError(t, err)
	assert.Nil(t, q.AmountIn)
	assert.Equal(t, q.SpotPrice, q.TransactionPrice)
}

func TestAMMVenueCost(t *testing.T) {
	src := newFakeSource()
	v := NewAMMVenue(AMMConfig{Name: "uni", FeePerMille: 3}, src, testLogger())

	cost, err := v.EstimateTransactionCost(context.Background(), big.NewInt(1), token("A", 1), token("B", 2))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(20*gasPerSwap), cost)
}

func TestAMMVenueBuyAtMaximumOutput(t *testing.T) {
	src := newFakeSource()
	v := NewAMMVenue(AMMConfig{Name: "uni", FeePerMille: 3}, src, testLogger())
	a, b := token("A", 1), token("B", 2)

	rcpt, err := v.BuyAtMaximumOutput(context.Background(), big.NewInt(1000), []domain.Token{a, b}, big.NewInt(990), time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "0xabc", rcpt.TxHash)
	assert.Equal(t, int64(996), rcpt.AmountOut.Int64())
	assert.Equal(t, 1, src.swaps)

	_, err = v.BuyAtMaximumOutput(context.Background(), big.NewInt(1000), []domain.Token{a}, nil, time.Now())
	assert.ErrorIs(t, err, domain.ErrMalformedRoute)
}

type fakeBookSource struct {
	book *domain.BookInfo
}

func (f *fakeBookSource) TopOfBook(ctx context.Context, in, out domain.Token) (*domain.BookInfo, error) {
	b := *f.book
	return &b, nil
}

func (f *fakeBookSource) Balance(ctx context.Context, t domain.Token) (*big.Int, error) {
	return big.NewInt(10_000), nil
}

func (f *fakeBookSource) MarketBuy(ctx context.Context, in, out domain.Token, amountIn *big.Int) (string, *big.Int, error) {
	filled := scaleAmount(amountIn, f.book.Bid*0.999, in.Decimals, out.Decimals)
	return "ord-1", filled, nil
}

func (f *fakeBookSource) SettleTime() time.Duration { return 2 * time.Second }

func TestBookVenueQuote(t *testing.T) {
	src := &fakeBookSource{book: &domain.BookInfo{Bid: 2.0, Ask: 2.01, Depth: big.NewInt(1e6)}}
	v := NewBookVenue(BookConfig{Name: "cex", Fee: 0.001}, src, testLogger())
	a, b := token("A", 1), token("B", 2)

	q, err := v.GetQuote(context.Background(), big.NewInt(1000), a, b, nil)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, q.SpotPrice, 1e-12)
	assert.InDelta(t, 2.0*0.999, q.TransactionPrice, 1e-12)
	assert.Equal(t, int64(1998), q.AmountOut.Int64())
	assert.NotNil(t, q.Book)
	assert.Nil(t, q.AMM)
}

func TestBookVenueEmptyBook(t *testing.T) {
	src := &fakeBookSource{book: &domain.BookInfo{}}
	v := NewBookVenue(BookConfig{Name: "cex", Fee: 0.001}, src, testLogger())

	_, err := v.GetQuote(context.Background(), big.NewInt(1000), token("A", 1), token("B", 2), nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewAMMVenue(AMMConfig{Name: "uni"}, newFakeSource(), testLogger()))
	r.Register(NewBookVenue(BookConfig{Name: "cex"}, &fakeBookSource{book: &domain.BookInfo{Bid: 1}}, testLogger()))

	got, err := r.Get("uni")
	require.NoError(t, err)
	assert.Equal(t, "uni", got.Market().Name)

	_, err = r.Get("nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "cex", list[0].Market().Name)
	assert.Equal(t, "uni", list[1].Market().Name)
}
