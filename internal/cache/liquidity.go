package cache

import (
	"math/big"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

// DefaultLiquidityTTL bounds how long a depth reading stays usable.
const DefaultLiquidityTTL = 60 * time.Second

const defaultCacheSize = 4096

// Liquidity memoizes venue depth lookups. Entries expire after the TTL and an
// expired entry reads exactly like a missing one.
type Liquidity struct {
	lru *expirable.LRU[string, *big.Int]
}

var _ domain.LiquidityCache = (*Liquidity)(nil)

// NewLiquidity builds a cache with the given TTL; ttl <= 0 selects the
// default.
func NewLiquidity(ttl time.Duration) *Liquidity {
	if ttl <= 0 {
		ttl = DefaultLiquidityTTL
	}
	return &Liquidity{lru: expirable.NewLRU[string, *big.Int](defaultCacheSize, nil, ttl)}
}

func liquidityKey(market string, token domain.Token) string {
	return market + ":" + strings.ToLower(token.Address.Hex())
}

// Get returns the cached depth if it has not expired.
func (c *Liquidity) Get(market string, token domain.Token) (*big.Int, bool) {
	v, ok := c.lru.Get(liquidityKey(market, token))
	if !ok || v == nil {
		return nil, false
	}
	return new(big.Int).Set(v), true
}

// Set stores a fresh depth reading, restarting its TTL.
func (c *Liquidity) Set(market string, token domain.Token, depth *big.Int) {
	if depth == nil {
		return
	}
	c.lru.Add(liquidityKey(market, token), new(big.Int).Set(depth))
}

// Invalidate drops the entry immediately. The coordinator calls this after a
// trade executes, since the venue's depth just changed by an unknown amount.
func (c *Liquidity) Invalidate(market string, token domain.Token) {
	c.lru.Remove(liquidityKey(market, token))
}

// entries exports the live cache for persistence.
func (c *Liquidity) entries() map[string]*big.Int {
	out := make(map[string]*big.Int)
	for _, key := range c.lru.Keys() {
		if v, ok := c.lru.Get(key); ok && v != nil {
			out[key] = new(big.Int).Set(v)
		}
	}
	return out
}

// restore refills the cache from a persisted export. Entries age from now;
// anything older than the TTL was already dropped by the saver's cache.
func (c *Liquidity) restore(entries map[string]*big.Int) {
	for key, v := range entries {
		if v != nil {
			c.lru.Add(key, new(big.Int).Set(v))
		}
	}
}
