package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MarketKind distinguishes price-impact venues from flat order-book venues.
type MarketKind string

const (
	// MarketAMM is a constant-product pool whose realized price moves with
	// trade size.
	MarketAMM MarketKind = "amm"
	// MarketBook is an order-book venue quoting flat bid/ask prices.
	MarketBook MarketKind = "book"
)

// Market references one trading venue. It is created when the venue is
// registered from configuration and never mutated afterwards; fresh venue
// state travels on quotes, not on the Market itself.
type Market struct {
	Name string
	Kind MarketKind
	// Fee is the fractional trading fee, e.g. 0.003 for 30 bps.
	Fee float64
	// Chain names the settlement family. Legs that share a chain can be
	// executed through the atomic flash-route primitive.
	Chain string
}

// SameSettlement reports whether two markets settle atomically together.
func (m Market) SameSettlement(other Market) bool {
	return m.Kind == MarketAMM && other.Kind == MarketAMM && m.Chain == other.Chain
}

// AMMInfo is the pool-side quote metadata: everything needed to recompute a
// quote without a network call. Reserves are ordered in the direction of the
// quote (ReserveIn backs the input token).
type AMMInfo struct {
	Router       common.Address `json:"router"`
	Factory      common.Address `json:"factory"`
	Intermediary common.Address `json:"intermediary"`
	ReserveIn    *big.Int       `json:"reserveIn"`
	ReserveOut   *big.Int       `json:"reserveOut"`
}

// Clone returns a deep copy so cached snapshots cannot alias live reserves.
func (i *AMMInfo) Clone() *AMMInfo {
	if i == nil {
		return nil
	}
	out := *i
	if i.ReserveIn != nil {
		out.ReserveIn = new(big.Int).Set(i.ReserveIn)
	}
	if i.ReserveOut != nil {
		out.ReserveOut = new(big.Int).Set(i.ReserveOut)
	}
	return &out
}

// Invert returns the metadata for the opposite trade direction.
func (i *AMMInfo) Invert() *AMMInfo {
	if i == nil {
		return nil
	}
	out := i.Clone()
	out.ReserveIn, out.ReserveOut = out.ReserveOut, out.ReserveIn
	return out
}

// BookInfo is the order-book-side quote metadata: a flat snapshot of the top
// of book.
type BookInfo struct {
	Bid   float64  `json:"bid"`
	Ask   float64  `json:"ask"`
	Depth *big.Int `json:"depth"`
}

// Invert returns the book seen from the opposite side.
func (b *BookInfo) Invert() *BookInfo {
	if b == nil {
		return nil
	}
	out := &BookInfo{Depth: b.Depth}
	if b.Ask > 0 {
		out.Bid = 1 / b.Ask
	}
	if b.Bid > 0 {
		out.Ask = 1 / b.Bid
	}
	return out
}
