package graph

import "github.com/arguiot/arbitrage-bot-sub000/internal/domain"

// BellmanFord searches the snapshot for a negative cycle in log-rate space,
// relaxing from the given source vertex. It returns domain.ErrNoOpportunity
// when every cycle multiplies to at most 1.
func BellmanFord(m *Matrix, source int) (*Cycle, error) {
	n := len(m.Tokens)
	if n == 0 || source < 0 || source >= n {
		return nil, domain.ErrNoOpportunity
	}

	const inf = 1e18
	dist := make([]float64, n)
	pred := make([]int, n)
	for i := range dist {
		dist[i] = inf
		pred[i] = -1
	}
	dist[source] = 0

	relax := func() int {
		changed := -1
		for i := 0; i < n; i++ {
			if dist[i] >= inf {
				continue
			}
			for j := 0; j < n; j++ {
				if i == j || m.Rates[i][j] <= 0 {
					continue
				}
				if d := dist[i] + weight(m.Rates[i][j]); d < dist[j] {
					dist[j] = d
					pred[j] = i
					changed = j
				}
			}
		}
		return changed
	}

	for pass := 0; pass < n-1; pass++ {
		if relax() < 0 {
			return nil, domain.ErrNoOpportunity
		}
	}

	// A relaxation on the n-th pass proves a negative cycle reachable from
	// the source. The relaxed vertex may hang off the cycle, so walk the
	// predecessor chain n steps to guarantee landing inside it.
	start := relax()
	if start < 0 {
		return nil, domain.ErrNoOpportunity
	}
	for i := 0; i < n; i++ {
		start = pred[start]
	}

	path := []int{start}
	for v := pred[start]; ; v = pred[v] {
		path = append(path, v)
		if v == start {
			break
		}
	}
	reverse(path)

	return &Cycle{Path: path, Product: product(m, path)}, nil
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
