package domain

import "fmt"

// Edge declares that To depends on the output of From.
type Edge struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

// Workflow is the submitted DAG: opaque node identifiers plus dependency
// edges. Each node is bound 1:1 to an agent with the same identifier unless
// Agents overrides the mapping.
type Workflow struct {
	Name   string            `json:"name,omitempty"`
	Nodes  []string          `json:"nodes" binding:"required"`
	Edges  []Edge            `json:"edges"`
	Agents map[string]string `json:"agents,omitempty"`
}

// AgentFor returns the agent identifier bound to a node.
func (w *Workflow) AgentFor(node string) string {
	if agent, ok := w.Agents[node]; ok {
		return agent
	}
	return node
}

// Validate checks the workflow structure: non-empty node set, unique node
// IDs, edges whose endpoints exist, no self-edges and no cycles. Duplicate
// edges are tolerated.
func (w *Workflow) Validate() error {
	if len(w.Nodes) == 0 {
		return ErrEmptyWorkflow
	}

	seen := make(map[string]bool, len(w.Nodes))
	for _, n := range w.Nodes {
		if n == "" {
			return ErrEmptyNodeID
		}
		if seen[n] {
			return fmt.Errorf("%w: %s", ErrDuplicateNode, n)
		}
		seen[n] = true
	}

	for _, e := range w.Edges {
		if e.From == e.To {
			return fmt.Errorf("%w: %s", ErrSelfEdge, e.From)
		}
		if !seen[e.From] {
			return fmt.Errorf("%w: %s", ErrUnknownNode, e.From)
		}
		if !seen[e.To] {
			return fmt.Errorf("%w: %s", ErrUnknownNode, e.To)
		}
	}

	return w.checkAcyclic()
}

// checkAcyclic runs Kahn's algorithm; any node left unprocessed sits on a cycle.
func (w *Workflow) checkAcyclic() error {
	children := make(map[string][]string, len(w.Nodes))
	inDeg := make(map[string]int, len(w.Nodes))
	for _, n := range w.Nodes {
		inDeg[n] = 0
	}
	dedup := make(map[Edge]bool, len(w.Edges))
	for _, e := range w.Edges {
		if dedup[e] {
			continue
		}
		dedup[e] = true
		children[e.From] = append(children[e.From], e.To)
		inDeg[e.To]++
	}

	queue := make([]string, 0, len(w.Nodes))
	for _, n := range w.Nodes {
		if inDeg[n] == 0 {
			queue = append(queue, n)
		}
	}

	processed := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		processed++
		for _, c := range children[n] {
			inDeg[c]--
			if inDeg[c] == 0 {
				queue = append(queue, c)
			}
		}
	}

	if processed != len(w.Nodes) {
		return ErrCyclicWorkflow
	}
	return nil
}
