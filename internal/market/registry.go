package market

import (
	"fmt"
	"sort"
	"sync"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

// Registry resolves venue adapters by market name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]domain.MarketAdapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]domain.MarketAdapter)}
}

// Register adds an adapter under its market name. Re-registering a name
// replaces the previous adapter.
func (r *Registry) Register(a domain.MarketAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Market().Name] = a
}

// Get resolves a market name.
func (r *Registry) Get(name string) (domain.MarketAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("market registry: %q: %w", name, domain.ErrNotFound)
	}
	return a, nil
}

// List returns all adapters ordered by market name.
func (r *Registry) List() []domain.MarketAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]domain.MarketAdapter, len(names))
	for i, name := range names {
		out[i] = r.adapters[name]
	}
	return out
}
