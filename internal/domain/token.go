package domain

import (
	"bytes"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Token identifies a tradable asset. Two Token values with the same address
// are the same asset regardless of display name; ordering and equality are
// always by address.
type Token struct {
	Name     string         `json:"name"`
	Address  common.Address `json:"address"`
	Decimals int            `json:"decimals,omitempty"`
}

// Equal reports whether both tokens share the same canonical address.
func (t Token) Equal(other Token) bool {
	return t.Address == other.Address
}

// Less orders tokens by raw address bytes.
func (t Token) Less(other Token) bool {
	return bytes.Compare(t.Address[:], other.Address[:]) < 0
}

func (t Token) String() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Address.Hex()
}

// PairKey returns the canonical unordered key for a token pair. Both
// (a, b) and (b, a) map to the same key.
func PairKey(a, b Token) string {
	lo, hi := a, b
	if hi.Less(lo) {
		lo, hi = hi, lo
	}
	return strings.ToLower(lo.Address.Hex() + "-" + hi.Address.Hex())
}
