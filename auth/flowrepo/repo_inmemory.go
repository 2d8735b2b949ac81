package flowrepo

import (
	"errors"
	"sync"
	"time"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu     sync.RWMutex
	states map[string]FlowState
}

var _ Repo = (*InMemoryRepo)(nil)

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		states: make(map[string]FlowState),
	}
}

func (r *InMemoryRepo) Upsert(state string, flow *FlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if flow == nil {
		return errors.New("flow cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state] = *flow
	return nil
}

func (r *InMemoryRepo) Get(state string) (*FlowState, error) {
	if state == "" {
		return nil, ErrStateNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	flow, exists := r.states[state]
	if !exists {
		return nil, ErrStateNotFound
	}
	return &flow, nil
}

func (r *InMemoryRepo) Delete(state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, state)
	return nil
}

func (r *InMemoryRepo) Prune(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for state, flow := range r.states {
		if flow.CreatedAt.Before(cutoff) {
			delete(r.states, state)
			removed++
		}
	}
	return removed
}

// Len returns the number of pending flows
func (r *InMemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}
