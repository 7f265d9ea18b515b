// Package memory provides an in-process SnapshotStore, used as the default
// store and as the reference implementation for the port contract tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/latticehq/lattice/pkg/domain"
)

// Store keeps workflow snapshots in a map. Snapshots are cloned on the way
// in and out so callers cannot mutate stored state.
type Store struct {
	mu        sync.RWMutex
	workflows map[string]*domain.Workflow
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{workflows: make(map[string]*domain.Workflow)}
}

// Save stores a snapshot under its workflow id.
func (s *Store) Save(ctx context.Context, id string, wf *domain.Workflow) error {
	if id == "" {
		return fmt.Errorf("workflow id cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[id] = wf.Clone()
	return nil
}

// Load returns the snapshot for the given id.
func (s *Store) Load(ctx context.Context, id string) (*domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, domain.ErrWorkflowNotFound
	}
	return wf.Clone(), nil
}

// Delete removes a snapshot. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workflows, id)
	return nil
}

// List returns the stored workflow ids in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.workflows))
	for id := range s.workflows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
