package domain

import "time"

// DecisionStatus is the coordinator's verdict on one evaluation. Executing
// is the only non-terminal status: it marks the moment the locks are held
// and dispatch begins.
type DecisionStatus string

const (
	DecisionExecuting DecisionStatus = "executing"
	DecisionExecuted  DecisionStatus = "executed"
	DecisionSkipped   DecisionStatus = "skipped"
	DecisionFailed    DecisionStatus = "failed"
)

// Skip reasons are stable strings surfaced to operators and tests.
const (
	ReasonLocked        = "Locked"
	ReasonBidTooLow     = "Bid amount is too low"
	ReasonCostTooHigh   = "Cost is too high"
	ReasonNoOpportunity = "No opportunity"
	ReasonNoLiquidity   = "Insufficient liquidity"
	ReasonDryRun        = "Auto-execution disabled"
)

// DecisionEvent is the record of one coordinator pass, published on the
// signal bus and persisted to the execution store when a trade went out.
type DecisionEvent struct {
	Status      DecisionStatus `json:"status"`
	Reason      string         `json:"reason,omitempty"`
	Opportunity *Opportunity   `json:"opportunity,omitempty"`
	Cost        *Cost          `json:"cost,omitempty"`
	Receipts    []Receipt      `json:"receipts,omitempty"`
	At          time.Time      `json:"at"`
}

// EventType labels bus messages so subscribers can filter.
type EventType string

const (
	EventQuote    EventType = "quote"
	EventDecision EventType = "decision"
	EventReset    EventType = "reset"
)
