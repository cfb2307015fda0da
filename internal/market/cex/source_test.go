package cex

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arguiot/arbitrage-bot-sub000/internal/crypto"
	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

func testToken(name string, seed byte) domain.Token {
	var addr common.Address
	addr[19] = seed
	return domain.Token{Name: name, Address: addr, Decimals: 6}
}

func newTestSource(t *testing.T, handler http.Handler) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSource(SourceConfig{
		Name:    "cex",
		BaseURL: srv.URL,
		Auth:    &crypto.HMACAuth{Key: "k", Secret: "s"},
	}, slog.New(slog.DiscardHandler))
}

func TestTopOfBookFromREST(t *testing.T) {
	src := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/ticker", r.URL.Path)
		require.Equal(t, "ETH-USDC", r.URL.Query().Get("symbol"))
		json.NewEncoder(w).Encode(tickerPayload{Symbol: "ETH-USDC", Bid: 2000, Ask: 2001, Depth: "5000000000"})
	}))

	book, err := src.TopOfBook(context.Background(), testToken("ETH", 1), testToken("USDC", 2))
	require.NoError(t, err)
	assert.Equal(t, 2000.0, book.Bid)
	assert.Equal(t, "5000000000", book.Depth.String())
}

func TestTopOfBookUsesFreshStreamedTicker(t *testing.T) {
	var restCalls int
	src := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		restCalls++
		http.Error(w, "should not be called", http.StatusInternalServerError)
	}))

	src.remember("ETH-USDC", domain.BookInfo{Bid: 1999, Ask: 2002})

	book, err := src.TopOfBook(context.Background(), testToken("ETH", 1), testToken("USDC", 2))
	require.NoError(t, err)
	assert.Equal(t, 1999.0, book.Bid)
	assert.Zero(t, restCalls)

	// Reverse direction serves the inverted book from the same entry.
	inv, err := src.TopOfBook(context.Background(), testToken("USDC", 2), testToken("ETH", 1))
	require.NoError(t, err)
	assert.InDelta(t, 1/2002.0, inv.Bid, 1e-12)
	assert.Zero(t, restCalls)
}

func TestBalanceSendsAuthHeaders(t *testing.T) {
	src := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "k", r.Header.Get("X-API-KEY"))
		require.NotEmpty(t, r.Header.Get("X-API-SIGNATURE"))
		json.NewEncoder(w).Encode(map[string]any{"balances": map[string]string{"ETH": "123456"}})
	}))

	bal, err := src.Balance(context.Background(), testToken("ETH", 1))
	require.NoError(t, err)
	assert.Equal(t, int64(123456), bal.Int64())
}

func TestBalanceMissingTokenIsZero(t *testing.T) {
	src := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"balances": map[string]string{}})
	}))

	bal, err := src.Balance(context.Background(), testToken("ETH", 1))
	require.NoError(t, err)
	assert.Zero(t, bal.Sign())
}

func TestMarketBuy(t *testing.T) {
	src := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ETH-USDC", req["symbol"])
		assert.Equal(t, "1000000", req["amount"])
		json.NewEncoder(w).Encode(map[string]string{"order_id": "ord-1", "filled_out": "1999000000"})
	}))

	orderID, out, err := src.MarketBuy(context.Background(), testToken("ETH", 1), testToken("USDC", 2), big.NewInt(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, "ord-1", orderID)
	assert.Equal(t, "1999000000", out.String())
}

func TestStreamFillsTickerCache(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/stream") {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// Expect the subscription frame, then push one ticker.
		var sub map[string]any
		require.NoError(t, conn.ReadJSON(&sub))
		require.NoError(t, conn.WriteJSON(tickerPayload{Symbol: "ETH-USDC", Bid: 1985, Ask: 1987}))
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	src := NewSource(SourceConfig{Name: "cex", BaseURL: srv.URL}, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go src.Stream(ctx, []string{"ETH-USDC"})

	require.Eventually(t, func() bool {
		book, ok := src.cached(testToken("ETH", 1), testToken("USDC", 2))
		return ok && book.Bid == 1985
	}, 2*time.Second, 20*time.Millisecond)
}
