package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

var _ domain.ExecutionStore = (*ExecutionStore)(nil)

func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

// Insert records one decided opportunity. Receipts serialize to JSONB so leg
// details stay queryable without a second table.
func (s *ExecutionStore) Insert(ctx context.Context, exec *domain.Execution) error {
	receipts, err := json.Marshal(exec.Receipts)
	if err != nil {
		return fmt.Errorf("postgres: marshal receipts: %w", err)
	}

	amountIn := nullable(exec.AmountIn)
	profit := nullable(exec.Profit)
	_, err = s.pool.Exec(ctx, `
		INSERT INTO executions (id, opportunity_id, strategy, status, reason, start_token, amount_in, profit, profit_ratio, receipts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		exec.ID, exec.OpportunityID, exec.Strategy, string(exec.Status), exec.Reason,
		exec.StartToken, amountIn, profit, exec.ProfitRatio, receipts, exec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution: %w", err)
	}
	return nil
}

// Recent returns the latest executions, newest first.
func (s *ExecutionStore) Recent(ctx context.Context, limit int) ([]*domain.Execution, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, opportunity_id, strategy, status, reason, start_token,
		       COALESCE(amount_in::text, ''), COALESCE(profit::text, ''), profit_ratio, receipts, created_at
		FROM executions ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions: %w", err)
	}
	defer rows.Close()

	var list []*domain.Execution
	for rows.Next() {
		exec := &domain.Execution{}
		var status string
		var receipts []byte
		if err := rows.Scan(&exec.ID, &exec.OpportunityID, &exec.Strategy, &status, &exec.Reason,
			&exec.StartToken, &exec.AmountIn, &exec.Profit, &exec.ProfitRatio, &receipts, &exec.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan execution: %w", err)
		}
		exec.Status = domain.DecisionStatus(status)
		if len(receipts) > 0 {
			if err := json.Unmarshal(receipts, &exec.Receipts); err != nil {
				return nil, fmt.Errorf("postgres: decode receipts for %s: %w", exec.ID, err)
			}
		}
		list = append(list, exec)
	}
	return list, rows.Err()
}

// ProfitSince sums executed profit, in start-token units, since a point in
// time.
func (s *ExecutionStore) ProfitSince(ctx context.Context, since time.Time) (float64, error) {
	var sum float64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(profit), 0) FROM executions
		WHERE status = $1 AND created_at >= $2`,
		string(domain.DecisionExecuted), since,
	).Scan(&sum)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("postgres: sum profit: %w", err)
	}
	return sum, nil
}

// nullable maps an empty numeric string to SQL NULL.
func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
