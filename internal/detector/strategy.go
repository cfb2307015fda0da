// Package detector hosts the opportunity-detection strategies and the
// registry the coordinator resolves them from.
package detector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
	"github.com/arguiot/arbitrage-bot-sub000/internal/graph"
)

// Snapshot is the immutable market view a strategy works on: the latest
// quotes and the dense rate matrix derived from them. Strategies never touch
// live state.
type Snapshot struct {
	Quotes []*domain.Quote
	Matrix *graph.Matrix
}

// Strategy turns a snapshot into at most one opportunity. Implementations
// must be safe for concurrent use.
type Strategy interface {
	Name() string
	// Detect returns domain.ErrNoOpportunity when the snapshot holds no
	// profitable trade.
	Detect(ctx context.Context, snap Snapshot) (*domain.Opportunity, error)
}

// Registry keeps named strategies.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Name()] = s
}

func (r *Registry) Get(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("detector: strategy %q: %w", name, domain.ErrNotFound)
	}
	return s, nil
}

// List returns registered strategy names in order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
