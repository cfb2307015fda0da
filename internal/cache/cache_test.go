package cache

import (
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

func quote(market string, in, out domain.Token, price float64) *domain.Quote {
	return &domain.Quote{
		MarketName:       market,
		TokenIn:          in,
		TokenOut:         out,
		AmountIn:         big.NewInt(1000),
		AmountOut:        big.NewInt(int64(1000 * price)),
		SpotPrice:        price,
		TransactionPrice: price,
		Timestamp:        time.Now(),
	}
}

func TestQuoteStoreSupersedes(t *testing.T) {
	s := NewQuoteStore()
	a, b := token("A", 1), token("B", 2)

	s.Put(quote("uni", a, b, 1.5))
	s.Put(quote("uni", a, b, 2.5))

	got, ok := s.Get(a, b, "uni")
	require.True(t, ok)
	assert.Equal(t, 2.5, got.TransactionPrice)
	assert.Len(t, s.Snapshot(), 1)
}

func TestQuoteStorePairIsUnordered(t *testing.T) {
	s := NewQuoteStore()
	a, b := token("A", 1), token("B", 2)

	s.Put(quote("uni", a, b, 1.5))

	_, ok := s.Get(b, a, "uni")
	assert.True(t, ok)
	assert.Len(t, s.Pair(b, a), 1)
}

func TestQuoteStoreSeparatesMarkets(t *testing.T) {
	s := NewQuoteStore()
	a, b := token("A", 1), token("B", 2)

	s.Put(quote("uni", a, b, 1.5))
	s.Put(quote("sushi", a, b, 1.6))

	quotes := s.Pair(a, b)
	assert.Len(t, quotes, 2)

	_, ok := s.Get(a, b, "binance")
	assert.False(t, ok)
}

func TestQuoteStoreGetReturnsCopy(t *testing.T) {
	s := NewQuoteStore()
	a, b := token("A", 1), token("B", 2)
	s.Put(quote("uni", a, b, 1.5))

	got, ok := s.Get(a, b, "uni")
	require.True(t, ok)
	got.AmountOut.SetInt64(1)

	again, _ := s.Get(a, b, "uni")
	assert.Equal(t, int64(1500), again.AmountOut.Int64())
}

func TestQuoteStoreReset(t *testing.T) {
	s := NewQuoteStore()
	a, b := token("A", 1), token("B", 2)
	s.Put(quote("uni", a, b, 1.5))

	s.Reset()

	assert.Empty(t, s.Snapshot())
}

func TestLiquidityExpires(t *testing.T) {
	c := NewLiquidity(50 * time.Millisecond)
	a := token("A", 1)

	c.Set("uni", a, big.NewInt(1_000_000))

	got, ok := c.Get("uni", a)
	require.True(t, ok)
	assert.Equal(t, int64(1_000_000), got.Int64())

	time.Sleep(80 * time.Millisecond)

	_, ok = c.Get("uni", a)
	assert.False(t, ok, "expired entry must read as absent")
}

func TestLiquidityInvalidate(t *testing.T) {
	c := NewLiquidity(time.Minute)
	a := token("A", 1)
	c.Set("uni", a, big.NewInt(500))

	c.Invalidate("uni", a)

	_, ok := c.Get("uni", a)
	assert.False(t, ok)
}

func TestLiquidityKeysByMarketAndToken(t *testing.T) {
	c := NewLiquidity(time.Minute)
	a, b := token("A", 1), token("B", 2)
	c.Set("uni", a, big.NewInt(1))
	c.Set("sushi", a, big.NewInt(2))
	c.Set("uni", b, big.NewInt(3))

	got, ok := c.Get("sushi", a)
	require.True(t, ok)
	assert.Equal(t, int64(2), got.Int64())
}

func TestLiquidityCopiesValues(t *testing.T) {
	c := NewLiquidity(time.Minute)
	a := token("A", 1)
	depth := big.NewInt(777)
	c.Set("uni", a, depth)
	depth.SetInt64(0)

	got, ok := c.Get("uni", a)
	require.True(t, ok)
	assert.Equal(t, int64(777), got.Int64())

	got.SetInt64(0)
	again, _ := c.Get("uni", a)
	assert.Equal(t, int64(777), again.Int64())
}

func TestBetSizesRoundTripAndExpiry(t *testing.T) {
	c := NewBetSizes(50 * time.Millisecond)

	c.Set("pair:uni", big.NewInt(42))
	got, ok := c.Get("pair:uni")
	require.True(t, ok)
	assert.Equal(t, int64(42), got.Int64())

	time.Sleep(80 * time.Millisecond)
	_, ok = c.Get("pair:uni")
	assert.False(t, ok)
}
