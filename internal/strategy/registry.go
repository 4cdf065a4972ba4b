// Package strategy
package strategy

import "sync"

// Registry is the single source of truth for strategy state. Each entry is
// written only by its owning task; reads return snapshots so no caller ever
// observes a partially updated entry. The interface exists so a persistent
// backing store can replace the process-local map without touching strategy
// logic.
type Registry interface {
	// Put inserts a new state. It returns false if the id is already taken.
	Put(st *State) bool
	// Get returns a deep-copied snapshot of the state.
	Get(id string) (State, bool)
	// Update applies fn to the live state under the registry lock. Only the
	// owning task may call Update for a given id.
	Update(id string, fn func(*State)) bool
	// Summaries returns the list projection of every strategy.
	Summaries() map[string]Summary
}

// MemoryRegistry is the process-local Registry. Contents are lost on restart;
// any orders still open on the exchange become untracked.
type MemoryRegistry struct {
	mu         sync.RWMutex
	strategies map[string]*State
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{strategies: make(map[string]*State)}
}

func (r *MemoryRegistry) Put(st *State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.strategies[st.ID]; exists {
		return false
	}
	r.strategies[st.ID] = st
	return true
}

func (r *MemoryRegistry) Get(id string) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.strategies[id]
	if !ok {
		return State{}, false
	}
	return st.Clone(), true
}

func (r *MemoryRegistry) Update(id string, fn func(*State)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.strategies[id]
	if !ok {
		return false
	}
	fn(st)
	return true
}

func (r *MemoryRegistry) Summaries() map[string]Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Summary, len(r.strategies))
	for id, st := range r.strategies {
		out[id] = st.Summary()
	}
	return out
}
