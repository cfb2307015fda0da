package cache

import (
	"math/big"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

// DefaultBetSizeTTL keeps computed bet sizes fresh enough to track balances.
const DefaultBetSizeTTL = 30 * time.Second

// BetSizes memoizes bet-size computations per (pair, market) key so the
// coordinator does not recompute balances on every tick.
type BetSizes struct {
	lru *expirable.LRU[string, *big.Int]
}

var _ domain.BetSizeCache = (*BetSizes)(nil)

func NewBetSizes(ttl time.Duration) *BetSizes {
	if ttl <= 0 {
		ttl = DefaultBetSizeTTL
	}
	return &BetSizes{lru: expirable.NewLRU[string, *big.Int](defaultCacheSize, nil, ttl)}
}

func (c *BetSizes) Get(key string) (*big.Int, bool) {
	v, ok := c.lru.Get(key)
	if !ok || v == nil {
		return nil, false
	}
	return new(big.Int).Set(v), true
}

func (c *BetSizes) Set(key string, size *big.Int) {
	if size == nil {
		return
	}
	c.lru.Add(key, new(big.Int).Set(size))
}

func (c *BetSizes) entries() map[string]*big.Int {
	out := make(map[string]*big.Int)
	for _, key := range c.lru.Keys() {
		if v, ok := c.lru.Get(key); ok && v != nil {
			out[key] = new(big.Int).Set(v)
		}
	}
	return out
}

func (c *BetSizes) restore(entries map[string]*big.Int) {
	for key, v := range entries {
		if v != nil {
			c.lru.Add(key, new(big.Int).Set(v))
		}
	}
}
