package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Execution is the persisted record of one decided opportunity.
type Execution struct {
	ID            uuid.UUID      `json:"id"`
	OpportunityID uuid.UUID      `json:"opportunityId"`
	Strategy      string         `json:"strategy"`
	Status        DecisionStatus `json:"status"`
	Reason        string         `json:"reason,omitempty"`
	StartToken    string         `json:"startToken"`
	AmountIn      string         `json:"amountIn"`
	Profit        string         `json:"profit"`
	ProfitRatio   float64        `json:"profitRatio"`
	Receipts      []Receipt      `json:"receipts,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// ExecutionStore archives decision outcomes for later analysis.
type ExecutionStore interface {
	Insert(ctx context.Context, exec *Execution) error
	Recent(ctx context.Context, limit int) ([]*Execution, error)
	ProfitSince(ctx context.Context, since time.Time) (float64, error)
}
