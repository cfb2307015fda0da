package config

import "math/big"

// Amount parses a base-10 token amount. Amounts are configured as strings
// because smallest-unit values routinely exceed int64; Validate rejects
// malformed values, so a nil return here means the config was never
// validated.
func Amount(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil
	}
	return v
}
