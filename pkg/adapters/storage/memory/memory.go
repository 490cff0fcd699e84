package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/weftlabs/weft/internal/domain"
)

// RunStore implements ports.RunStore using an in-memory map.
// This is for testing purposes only.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*domain.RunState
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*domain.RunState),
	}
}

// SaveRun stores a copy of the snapshot.
func (s *RunStore) SaveRun(ctx context.Context, state *domain.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *state
	s.runs[state.RunID] = &cp
	return nil
}

// GetRun retrieves a snapshot copy.
func (s *RunStore) GetRun(ctx context.Context, runID string) (*domain.RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}
	cp := *state
	return &cp, nil
}

// DeleteRun removes a snapshot.
func (s *RunStore) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, runID)
	return nil
}

// ListRuns returns copies of all snapshots.
func (s *RunStore) ListRuns(ctx context.Context) ([]*domain.RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make([]*domain.RunState, 0, len(s.runs))
	for _, state := range s.runs {
		cp := *state
		states = append(states, &cp)
	}
	return states, nil
}
