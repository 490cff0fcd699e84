package planner

import (
	"fmt"
	"sort"

	"github.com/weftlabs/weft/internal/domain"
)

// Width returns the maximum antichain size of the DAG described by nodes and
// edges. It fails fast on self-edges, edges naming unknown nodes, and cyclic
// input; duplicate edges are tolerated.
func Width(nodes []string, edges []domain.Edge) (int, error) {
	n := len(nodes)
	if n == 0 {
		return 0, nil
	}

	index := make(map[string]int, n)
	for i, node := range nodes {
		if _, dup := index[node]; dup {
			return 0, fmt.Errorf("%w: %s", domain.ErrDuplicateNode, node)
		}
		index[node] = i
	}

	// Direct adjacency over dense indices, duplicate edges collapsed.
	adj := make([][]int, n)
	dedup := make(map[[2]int]bool, len(edges))
	for _, e := range edges {
		if e.From == e.To {
			return 0, fmt.Errorf("%w: %s", domain.ErrSelfEdge, e.From)
		}
		u, ok := index[e.From]
		if !ok {
			return 0, fmt.Errorf("%w: %s", domain.ErrUnknownNode, e.From)
		}
		v, ok := index[e.To]
		if !ok {
			return 0, fmt.Errorf("%w: %s", domain.ErrUnknownNode, e.To)
		}
		key := [2]int{u, v}
		if dedup[key] {
			continue
		}
		dedup[key] = true
		adj[u] = append(adj[u], v)
	}

	// Forward-reachable set per vertex, excluding the vertex itself. A vertex
	// that reaches itself sits on a cycle, which invalidates the width.
	reach := make([][]bool, n)
	queue := make([]int, 0, n)
	for u := 0; u < n; u++ {
		seen := make([]bool, n)
		queue = queue[:0]
		queue = append(queue, u)
		for len(queue) > 0 {
			x := queue[0]
			queue = queue[1:]
			for _, y := range adj[x] {
				if y == u {
					return 0, fmt.Errorf("%w: via %s", domain.ErrCyclicWorkflow, nodes[u])
				}
				if !seen[y] {
					seen[y] = true
					queue = append(queue, y)
				}
			}
		}
		reach[u] = seen
	}

	// Bipartite adjacency: left copy of u connects to the right copy of every
	// vertex reachable from u. Rights are sorted so augmenting-path tie-breaks
	// are deterministic.
	bip := make([][]int, n)
	for u := 0; u < n; u++ {
		for v := 0; v < n; v++ {
			if reach[u][v] {
				bip[u] = append(bip[u], v)
			}
		}
		sort.Ints(bip[u])
	}

	return n - maximumMatching(n, bip), nil
}
