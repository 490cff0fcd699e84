package planner

const unmatched = -1

// maximumMatching computes the size of a maximum matching in a bipartite
// graph with n vertices on each side, using Hopcroft-Karp: repeated phases of
// breadth-first layering from free left vertices followed by depth-first
// augmenting-path searches constrained to those layers. O(E*sqrt(V)).
func maximumMatching(n int, adj [][]int) int {
	pairL := make([]int, n)
	pairR := make([]int, n)
	dist := make([]int, n)
	for i := range pairL {
		pairL[i] = unmatched
		pairR[i] = unmatched
	}

	matched := 0
	for layer(n, adj, pairL, pairR, dist) {
		for u := 0; u < n; u++ {
			if pairL[u] == unmatched && augment(u, adj, pairL, pairR, dist) {
				matched++
			}
		}
	}
	return matched
}

// layer builds BFS layers starting from free left vertices. It returns true
// while at least one augmenting path exists.
func layer(n int, adj [][]int, pairL, pairR, dist []int) bool {
	const inf = int(^uint(0) >> 1)

	queue := make([]int, 0, n)
	for u := 0; u < n; u++ {
		if pairL[u] == unmatched {
			dist[u] = 0
			queue = append(queue, u)
		} else {
			dist[u] = inf
		}
	}

	found := false
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range adj[u] {
			w := pairR[v]
			if w == unmatched {
				found = true
				continue
			}
			if dist[w] == inf {
				dist[w] = dist[u] + 1
				queue = append(queue, w)
			}
		}
	}
	return found
}

// augment searches depth-first for an augmenting path from u along the
// current BFS layering, flipping matched/unmatched edges when one is found.
// Ties between candidate rights follow adjacency order.
func augment(u int, adj [][]int, pairL, pairR, dist []int) bool {
	const inf = int(^uint(0) >> 1)

	for _, v := range adj[u] {
		w := pairR[v]
		if w == unmatched || (dist[w] == dist[u]+1 && augment(w, adj, pairL, pairR, dist)) {
			pairL[u] = v
			pairR[v] = u
			return true
		}
	}
	dist[u] = inf
	return false
}
