// Package cex implements the exchange-facing book source for order-book
// venues: REST for balances and orders, a WebSocket stream for prices.
package cex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/arguiot/arbitrage-bot-sub000/internal/crypto"
	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
	"github.com/arguiot/arbitrage-bot-sub000/internal/market"
)

// SourceConfig describes one exchange endpoint.
type SourceConfig struct {
	Name    string
	BaseURL string
	Auth    *crypto.HMACAuth
	// SettleTimeHint is the exchange's expected settlement latency.
	SettleTimeHint time.Duration
	// StreamMaxAge bounds how long a streamed ticker stays usable before
	// TopOfBook falls back to REST.
	StreamMaxAge time.Duration
}

// Source implements market.BookSource over the exchange's REST API, preferring
// prices pushed on the ticker stream when they are fresh.
type Source struct {
	cfg    SourceConfig
	http   *http.Client
	logger *slog.Logger

	mu      sync.RWMutex
	tickers map[string]streamedTicker
}

type streamedTicker struct {
	book domain.BookInfo
	at   time.Time
}

var _ market.BookSource = (*Source)(nil)

func NewSource(cfg SourceConfig, logger *slog.Logger) *Source {
	if cfg.SettleTimeHint <= 0 {
		cfg.SettleTimeHint = time.Second
	}
	if cfg.StreamMaxAge <= 0 {
		cfg.StreamMaxAge = 5 * time.Second
	}
	return &Source{
		cfg:     cfg,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With(slog.String("component", "cex-source"), slog.String("venue", cfg.Name)),
		tickers: make(map[string]streamedTicker),
	}
}

func (s *Source) SettleTime() time.Duration {
	return s.cfg.SettleTimeHint
}

// tickerPayload is the exchange's ticker shape, shared by REST and stream.
type tickerPayload struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Depth  string  `json:"depth"`
}

func symbol(tokenIn, tokenOut domain.Token) string {
	return strings.ToUpper(tokenIn.Name) + "-" + strings.ToUpper(tokenOut.Name)
}

// TopOfBook returns the pair's flat bid/ask, serving from the stream cache
// when fresh.
func (s *Source) TopOfBook(ctx context.Context, tokenIn, tokenOut domain.Token) (*domain.BookInfo, error) {
	if book, ok := s.cached(tokenIn, tokenOut); ok {
		return book, nil
	}

	var payload tickerPayload
	path := "/v1/ticker?symbol=" + url.QueryEscape(symbol(tokenIn, tokenOut))
	if err := s.get(ctx, path, &payload); err != nil {
		return nil, err
	}
	book, err := bookFromPayload(payload)
	if err != nil {
		return nil, err
	}
	s.remember(symbol(tokenIn, tokenOut), *book)
	return book, nil
}

func (s *Source) cached(tokenIn, tokenOut domain.Token) (*domain.BookInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.tickers[symbol(tokenIn, tokenOut)]; ok && time.Since(t.at) <= s.cfg.StreamMaxAge {
		b := t.book
		return &b, true
	}
	if t, ok := s.tickers[symbol(tokenOut, tokenIn)]; ok && time.Since(t.at) <= s.cfg.StreamMaxAge {
		return t.book.Invert(), true
	}
	return nil, false
}

func (s *Source) remember(sym string, book domain.BookInfo) {
	s.mu.Lock()
	s.tickers[sym] = streamedTicker{book: book, at: time.Now()}
	s.mu.Unlock()
}

func bookFromPayload(p tickerPayload) (*domain.BookInfo, error) {
	if p.Bid <= 0 || p.Ask <= 0 {
		return nil, fmt.Errorf("cex: ticker %s: empty book: %w", p.Symbol, domain.ErrInsufficientLiquidity)
	}
	book := &domain.BookInfo{Bid: p.Bid, Ask: p.Ask}
	if p.Depth != "" {
		depth, ok := new(big.Int).SetString(p.Depth, 10)
		if !ok {
			return nil, fmt.Errorf("cex: ticker %s: bad depth %q", p.Symbol, p.Depth)
		}
		book.Depth = depth
	}
	return book, nil
}

// Balance returns the bot's free balance of token on the exchange, in
// smallest units.
func (s *Source) Balance(ctx context.Context, token domain.Token) (*big.Int, error) {
	var payload struct {
		Balances map[string]string `json:"balances"`
	}
	if err := s.get(ctx, "/v1/balances", &payload); err != nil {
		return nil, err
	}

	raw, ok := payload.Balances[strings.ToUpper(token.Name)]
	if !ok {
		return new(big.Int), nil
	}
	bal, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("cex: bad balance %q for %s", raw, token.Name)
	}
	return bal, nil
}

// MarketBuy submits a market order spending amountIn of tokenIn.
func (s *Source) MarketBuy(ctx context.Context, tokenIn, tokenOut domain.Token, amountIn *big.Int) (string, *big.Int, error) {
	reqBody := map[string]string{
		"symbol": symbol(tokenIn, tokenOut),
		"side":   "sell",
		"type":   "market",
		"amount": amountIn.String(),
	}
	var payload struct {
		OrderID   string `json:"order_id"`
		FilledOut string `json:"filled_out"`
	}
	if err := s.post(ctx, "/v1/orders", reqBody, &payload); err != nil {
		return "", nil, err
	}

	out, ok := new(big.Int).SetString(payload.FilledOut, 10)
	if !ok {
		return payload.OrderID, nil, fmt.Errorf("cex: bad fill %q for order %s", payload.FilledOut, payload.OrderID)
	}
	return payload.OrderID, out, nil
}

func (s *Source) get(ctx context.Context, path string, out any) error {
	return s.do(ctx, http.MethodGet, path, nil, out)
}

func (s *Source) post(ctx context.Context, path string, body, out any) error {
	blob, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("cex: marshal request: %w", err)
	}
	return s.do(ctx, http.MethodPost, path, blob, out)
}

func (s *Source) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("cex: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.Auth != nil {
		for k, v := range s.cfg.Auth.Headers(method, path, string(body)) {
			req.Header.Set(k, v)
		}
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("cex: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("cex: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("cex: decode %s response: %w", path, err)
	}
	return nil
}
