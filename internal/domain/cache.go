package domain

import (
	"context"
	"math/big"
)

// QuoteStore keeps the latest quote per (pair, market) key. Writes supersede,
// never merge.
type QuoteStore interface {
	// Put stores q under its pair and market, replacing any previous quote.
	Put(q *Quote)
	// Get returns the latest quote for the pair on the named market.
	Get(tokenA, tokenB Token, market string) (*Quote, bool)
	// Pair returns all markets' latest quotes for a pair.
	Pair(tokenA, tokenB Token) []*Quote
	// Snapshot returns every live quote.
	Snapshot() []*Quote
	// Reset drops all quotes.
	Reset()
}

// LiquidityCache memoizes venue depth lookups with a TTL. A stale entry is
// indistinguishable from an absent one.
type LiquidityCache interface {
	Get(market string, token Token) (*big.Int, bool)
	Set(market string, token Token, depth *big.Int)
	// Invalidate drops the entry immediately, used after an execution
	// consumed unknown depth.
	Invalidate(market string, token Token)
}

// BetSizeCache memoizes computed bet sizes per (pair, market) with a TTL.
type BetSizeCache interface {
	Get(key string) (*big.Int, bool)
	Set(key string, size *big.Int)
}

// LockManager provides mutual exclusion across bot instances.
type LockManager interface {
	// Acquire returns ErrLockHeld without blocking when the lock is taken.
	Acquire(ctx context.Context, key string) (func(context.Context) error, error)
}

// SignalBus fans application events out to interested subscribers.
type SignalBus interface {
	Publish(ctx context.Context, typ EventType, payload any) error
	Subscribe(ctx context.Context, typ EventType) (<-chan []byte, func(), error)
}

// SubStore persists one named section of bot state as an opaque blob. The
// implementation enforces a per-store size budget and single-writer access.
type SubStore interface {
	Save(ctx context.Context, name string, blob []byte) error
	Load(ctx context.Context, name string) ([]byte, error)
}
