// Package cache holds the bot's hot in-memory state: the latest-quote table
// and the TTL caches for venue liquidity and computed bet sizes.
package cache

import (
	"sync"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

// QuoteStore keeps the newest quote per (pair, market) key. A write replaces
// the previous quote for its key wholesale; partial updates do not exist.
type QuoteStore struct {
	mu     sync.RWMutex
	quotes map[string]map[string]*domain.Quote
}

var _ domain.QuoteStore = (*QuoteStore)(nil)

// NewQuoteStore returns an empty store.
func NewQuoteStore() *QuoteStore {
	return &QuoteStore{quotes: make(map[string]map[string]*domain.Quote)}
}

// Put stores q under its pair and market.
func (s *QuoteStore) Put(q *domain.Quote) {
	if q == nil {
		return
	}
	key := domain.PairKey(q.TokenIn, q.TokenOut)

	s.mu.Lock()
	defer s.mu.Unlock()
	markets, ok := s.quotes[key]
	if !ok {
		markets = make(map[string]*domain.Quote, 1)
		s.quotes[key] = markets
	}
	markets[q.MarketName] = q.Clone()
}

// Get returns the latest quote for the pair on the named market.
func (s *QuoteStore) Get(tokenA, tokenB domain.Token, market string) (*domain.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[domain.PairKey(tokenA, tokenB)][market]
	if !ok {
		return nil, false
	}
	return q.Clone(), true
}

// Pair returns every market's latest quote for a pair.
func (s *QuoteStore) Pair(tokenA, tokenB domain.Token) []*domain.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	markets := s.quotes[domain.PairKey(tokenA, tokenB)]
	out := make([]*domain.Quote, 0, len(markets))
	for _, q := range markets {
		out = append(out, q.Clone())
	}
	return out
}

// Snapshot returns all live quotes.
func (s *QuoteStore) Snapshot() []*domain.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Quote
	for _, markets := range s.quotes {
		for _, q := range markets {
			out = append(out, q.Clone())
		}
	}
	return out
}

// Reset drops everything.
func (s *QuoteStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes = make(map[string]map[string]*domain.Quote)
}
