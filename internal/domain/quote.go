package domain

import (
	"math/big"
	"time"
)

// Quote is one venue's answer for swapping AmountIn of TokenIn into TokenOut.
// Exactly one of AMM or Book is set, matching the market kind. Quotes are
// immutable once published; a newer quote for the same (pair, market) key
// supersedes the older one wholesale.
type Quote struct {
	MarketName string    `json:"marketName"`
	TokenIn    Token     `json:"tokenIn"`
	TokenOut   Token     `json:"tokenOut"`
	AmountIn   *big.Int  `json:"amountIn"`
	AmountOut  *big.Int  `json:"amountOut"`
	// SpotPrice is the marginal exchange rate at zero size.
	SpotPrice float64 `json:"spotPrice"`
	// TransactionPrice is the realized rate AmountOut/AmountIn for this size.
	TransactionPrice float64   `json:"transactionPrice"`
	AMM              *AMMInfo  `json:"amm,omitempty"`
	Book             *BookInfo `json:"book,omitempty"`
	// TTF estimates time-to-finality for a trade on this venue.
	TTF       time.Duration `json:"ttf"`
	Timestamp time.Time     `json:"timestamp"`
}

// Rate returns the effective exchange rate this quote promises. Falls back to
// the spot price when the sized amounts are absent.
func (q *Quote) Rate() float64 {
	if q.TransactionPrice > 0 {
		return q.TransactionPrice
	}
	return q.SpotPrice
}

// Clone deep-copies the quote so callers can hold it past store updates.
func (q *Quote) Clone() *Quote {
	if q == nil {
		return nil
	}
	out := *q
	if q.AmountIn != nil {
		out.AmountIn = new(big.Int).Set(q.AmountIn)
	}
	if q.AmountOut != nil {
		out.AmountOut = new(big.Int).Set(q.AmountOut)
	}
	out.AMM = q.AMM.Clone()
	if q.Book != nil {
		b := *q.Book
		out.Book = &b
	}
	return &out
}

// Cost aggregates the execution overhead of a candidate trade.
type Cost struct {
	// Gas is the estimated settlement fee in the base token's units.
	Gas *big.Int `json:"gas"`
	// Time is the expected wall-clock delay before the trade is final.
	Time time.Duration `json:"time"`
}

// Receipt records one executed leg.
type Receipt struct {
	MarketName string    `json:"marketName"`
	TxHash     string    `json:"txHash,omitempty"`
	TokenIn    Token     `json:"tokenIn"`
	TokenOut   Token     `json:"tokenOut"`
	AmountIn   *big.Int  `json:"amountIn"`
	AmountOut  *big.Int  `json:"amountOut"`
	ExecutedAt time.Time `json:"executedAt"`
}
