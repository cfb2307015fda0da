package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrLockHeld              = errors.New("lock already held")
	ErrNoOpportunity         = errors.New("no opportunity")
	ErrBidTooLow             = errors.New("bid amount is too low")
	ErrCostTooHigh           = errors.New("cost is too high")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInvalidRate           = errors.New("invalid rate")
	ErrMalformedRoute        = errors.New("malformed route")
	ErrStoreOverflow         = errors.New("store overflow")
	ErrNotProfitable         = errors.New("not profitable")
	ErrContextDone           = errors.New("context cancelled")
)
