package detector

import (
	"context"
	"log/slog"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
	"github.com/arguiot/arbitrage-bot-sub000/internal/graph"
)

const (
	StrategyBellmanFord   = "bellman-ford"
	StrategyFloydWarshall = "floyd-warshall"
)

// CycleFinder is the shape both negative-cycle searches share.
type CycleFinder func(m *graph.Matrix) (*graph.Cycle, error)

// Cycles wraps a negative-cycle search as a detection strategy: any cycle
// whose rate product clears the threshold becomes a cyclic opportunity.
type Cycles struct {
	name     string
	find     CycleFinder
	minRatio float64
	logger   *slog.Logger
}

var _ Strategy = (*Cycles)(nil)

// NewBellmanFordStrategy scans from every vertex until a reachable negative
// cycle turns up.
func NewBellmanFordStrategy(minRatio float64, logger *slog.Logger) *Cycles {
	return newCycles(StrategyBellmanFord, minRatio, logger, func(m *graph.Matrix) (*graph.Cycle, error) {
		for source := range m.Tokens {
			if c, err := graph.BellmanFord(m, source); err == nil {
				return c, nil
			}
		}
		return nil, domain.ErrNoOpportunity
	})
}

// NewFloydWarshallStrategy runs the all-pairs search once per snapshot.
func NewFloydWarshallStrategy(minRatio float64, logger *slog.Logger) *Cycles {
	return newCycles(StrategyFloydWarshall, minRatio, logger, graph.FloydWarshall)
}

func newCycles(name string, minRatio float64, logger *slog.Logger, find CycleFinder) *Cycles {
	if minRatio < 1 {
		minRatio = 1
	}
	return &Cycles{
		name:     name,
		find:     find,
		minRatio: minRatio,
		logger:   logger.With(slog.String("component", "detector"), slog.String("strategy", name)),
	}
}

func (c *Cycles) Name() string { return c.name }

func (c *Cycles) Detect(ctx context.Context, snap Snapshot) (*domain.Opportunity, error) {
	if snap.Matrix == nil || len(snap.Matrix.Tokens) == 0 {
		return nil, domain.ErrNoOpportunity
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cycle, err := c.find(snap.Matrix)
	if err != nil {
		return nil, err
	}
	if cycle.Product < c.minRatio {
		return nil, domain.ErrNoOpportunity
	}

	opp := domain.NewOpportunity(c.name, domain.Route{Legs: cycle.Legs(snap.Matrix)})
	opp.ProfitRatio = cycle.Product
	c.logger.Debug("cycle detected",
		slog.String("route", opp.Route.String()),
		slog.Float64("profit_ratio", cycle.Product))
	return opp, nil
}
