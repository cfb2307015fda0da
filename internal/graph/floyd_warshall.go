package graph

import "github.com/arguiot/arbitrage-bot-sub000/internal/domain"

// FloydWarshall runs all-pairs shortest paths in log-rate space and returns
// the first negative self-distance cycle found, or domain.ErrNoOpportunity.
// It considers every vertex a potential start, unlike BellmanFord which only
// finds cycles reachable from one source.
func FloydWarshall(m *Matrix) (*Cycle, error) {
	n := len(m.Tokens)
	if n == 0 {
		return nil, domain.ErrNoOpportunity
	}

	const inf = 1e18
	dist := make([][]float64, n)
	next := make([][]int, n)
	for i := 0; i < n; i++ {
		dist[i] = make([]float64, n)
		next[i] = make([]int, n)
		for j := 0; j < n; j++ {
			switch {
			case i == j:
				dist[i][j] = 0
				next[i][j] = j
			case m.Rates[i][j] > 0:
				dist[i][j] = weight(m.Rates[i][j])
				next[i][j] = j
			default:
				dist[i][j] = inf
				next[i][j] = -1
			}
		}
	}

	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			if dist[i][k] >= inf {
				continue
			}
			for j := 0; j < n; j++ {
				if d := dist[i][k] + dist[k][j]; d < dist[i][j] {
					dist[i][j] = d
					next[i][j] = next[i][k]
				}
			}
		}
	}

	for i := 0; i < n; i++ {
		if dist[i][i] >= 0 {
			continue
		}
		path := []int{i}
		for v := next[i][i]; ; v = next[v][i] {
			path = append(path, v)
			if v == i || len(path) > n {
				break
			}
		}
		if path[len(path)-1] != i {
			continue
		}
		return &Cycle{Path: path, Product: product(m, path)}, nil
	}
	return nil, domain.ErrNoOpportunity
}
