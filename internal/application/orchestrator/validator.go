package orchestrator

import (
	"fmt"

	"github.com/weftlabs/weft/internal/domain"
)

// Validator validates workflow structures before execution.
type Validator struct{}

// NewValidator creates a new workflow validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks that the workflow is a well-formed DAG. It must pass
// before any task is published.
func (v *Validator) Validate(w *domain.Workflow) error {
	if w == nil {
		return fmt.Errorf("workflow is nil")
	}
	if err := w.Validate(); err != nil {
		return err
	}

	// A DAG with at least one node always has a seed; a graph without one
	// slipped past the cycle check and must not start.
	inDeg := make(map[string]int, len(w.Nodes))
	for _, n := range w.Nodes {
		inDeg[n] = 0
	}
	seen := make(map[domain.Edge]bool, len(w.Edges))
	for _, e := range w.Edges {
		if seen[e] {
			continue
		}
		seen[e] = true
		inDeg[e.To]++
	}
	for _, n := range w.Nodes {
		if inDeg[n] == 0 {
			return nil
		}
	}
	return domain.ErrNoSeedNodes
}
