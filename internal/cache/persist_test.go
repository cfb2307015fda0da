package cache

import (
	"context"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

type memStore struct {
	blobs map[string][]byte
}

func newMemStore() *memStore { return &memStore{blobs: make(map[string][]byte)} }

func (m *memStore) Save(ctx context.Context, name string, blob []byte) error {
	m.blobs[name] = append([]byte(nil), blob...)
	return nil
}

func (m *memStore) Load(ctx context.Context, name string) ([]byte, error) {
	blob, ok := m.blobs[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return blob, nil
}

func TestPersisterRoundTrip(t *testing.T) {
	a, b := token("A", 1), token("B", 2)

	quotes := NewQuoteStore()
	quotes.Put(quote("uni", a, b, 1.5))
	liquidity := NewLiquidity(time.Minute)
	liquidity.Set("uni", a, big.NewInt(12345))
	betSizes := NewBetSizes(time.Minute)
	betSizes.Set("route-1", big.NewInt(777))

	store := newMemStore()
	logger := slog.New(slog.DiscardHandler)
	saver := NewPersister(quotes, liquidity, betSizes, store, time.Minute, logger)
	require.NoError(t, saver.Save(context.Background()))

	// Fresh caches on the "restarted" side.
	quotes2 := NewQuoteStore()
	liquidity2 := NewLiquidity(time.Minute)
	betSizes2 := NewBetSizes(time.Minute)
	loader := NewPersister(quotes2, liquidity2, betSizes2, store, time.Minute, logger)
	require.NoError(t, loader.Load(context.Background()))

	q, ok := quotes2.Get(a, b, "uni")
	require.True(t, ok)
	assert.Equal(t, 1.5, q.TransactionPrice)

	depth, ok := liquidity2.Get("uni", a)
	require.True(t, ok)
	assert.Equal(t, int64(12345), depth.Int64())

	size, ok := betSizes2.Get("route-1")
	require.True(t, ok)
	assert.Equal(t, int64(777), size.Int64())
}

func TestPersisterColdStart(t *testing.T) {
	loader := NewPersister(NewQuoteStore(), NewLiquidity(time.Minute), NewBetSizes(time.Minute), newMemStore(), time.Minute, slog.New(slog.DiscardHandler))
	assert.NoError(t, loader.Load(context.Background()), "missing stores are a cold start, not a failure")
}
