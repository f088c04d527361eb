package store

import (
	"context"
	"sync"

	"census/internal/citizens/graph"
	"census/internal/citizens/models"
	id "census/pkg/domain"
	"census/pkg/platform/sentinel"
)

// InMemory keeps imports in process memory. Each import has its own lock so
// patches to different imports never contend.
type InMemory struct {
	mu      sync.RWMutex
	imports map[id.ImportID]*importState
}

type importState struct {
	mu       sync.RWMutex
	citizens map[id.CitizenID]*models.Citizen
	order    []id.CitizenID
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{imports: make(map[id.ImportID]*importState)}
}

// CreateImport stores a copy of imp. The import becomes visible to readers
// only once it is complete.
func (s *InMemory) CreateImport(_ context.Context, imp *models.Import) error {
	state := &importState{
		citizens: make(map[id.CitizenID]*models.Citizen, len(imp.Citizens)),
		order:    make([]id.CitizenID, 0, len(imp.Citizens)),
	}
	for _, c := range imp.Citizens {
		clone := c.Clone()
		clone.NormalizeRelatives()
		state.citizens[c.CitizenID] = clone
		state.order = append(state.order, c.CitizenID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.imports[imp.ID]; exists {
		return sentinel.ErrConflict
	}
	s.imports[imp.ID] = state
	return nil
}

// PatchCitizen applies patch to one citizen and propagates relative edges to
// the affected neighbors under the import's write lock. It returns the
// citizen as it was before the patch.
func (s *InMemory) PatchCitizen(_ context.Context, importID id.ImportID, citizenID id.CitizenID, patch *models.CitizenPatch) (*models.Citizen, error) {
	state, err := s.state(importID)
	if err != nil {
		return nil, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	target, ok := state.citizens[citizenID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	var next []id.CitizenID
	if patch.HasRelatives() {
		next = patch.NewRelatives()
		for _, r := range next {
			if _, ok := state.citizens[r]; !ok {
				return nil, sentinel.ErrUnknownReference
			}
		}
	}

	pre := target.Clone()
	patch.ApplyAttributes(target)
	if !patch.HasRelatives() {
		return pre, nil
	}

	added, removed := graph.Diff(target.Relatives, next)
	for _, r := range graph.Without(added, citizenID) {
		neighbor := state.citizens[r]
		neighbor.Relatives = graph.Link(neighbor.Relatives, citizenID)
	}
	for _, r := range graph.Without(removed, citizenID) {
		neighbor := state.citizens[r]
		neighbor.Relatives = graph.Unlink(neighbor.Relatives, citizenID)
	}
	target.Relatives = next
	return pre, nil
}

// ListCitizens returns copies of every citizen of the import in import order.
func (s *InMemory) ListCitizens(_ context.Context, importID id.ImportID) ([]*models.Citizen, error) {
	state, err := s.state(importID)
	if err != nil {
		return nil, err
	}

	state.mu.RLock()
	defer state.mu.RUnlock()

	out := make([]*models.Citizen, 0, len(state.order))
	for _, cid := range state.order {
		out = append(out, state.citizens[cid].Clone())
	}
	return out, nil
}

// Reset drops every import.
func (s *InMemory) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imports = make(map[id.ImportID]*importState)
	return nil
}

func (s *InMemory) Health(_ context.Context) error {
	return nil
}

func (s *InMemory) state(importID id.ImportID) (*importState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.imports[importID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return state, nil
}
