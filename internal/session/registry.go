// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"time"
)

// =============================================================================
// REGISTRY
// =============================================================================

// Registry maps session IDs to stores. The registry lock only guards the
// map; each Store has its own lock.
type Registry struct {
	mu     sync.RWMutex
	policy ErrorHistoryPolicy
	stores map[string]*Store
}

// NewRegistry creates an empty registry whose stores use policy.
func NewRegistry(policy ErrorHistoryPolicy) *Registry {
	return &Registry{
		policy: policy,
		stores: make(map[string]*Store),
	}
}

// Create starts a new session and returns its store.
func (r *Registry) Create() *Store {
	s := New(r.policy)
	r.mu.Lock()
	r.stores[s.ID()] = s
	r.mu.Unlock()
	return s
}

// Get returns the store for id.
func (r *Registry) Get(id string) (*Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[id]
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stores)
}

// Remove drops the session id and reports whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.stores[id]
	delete(r.stores, id)
	return ok
}

// Prune drops sessions idle longer than maxIdle and returns their IDs.
// Sessions for which keep returns true survive regardless. A zero maxIdle
// disables pruning.
func (r *Registry) Prune(maxIdle time.Duration, keep func(id string) bool) []string {
	if maxIdle <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []string
	for id, s := range r.stores {
		if s.IdleTime() <= maxIdle {
			continue
		}
		if keep != nil && keep(id) {
			continue
		}
		delete(r.stores, id)
		removed = append(removed, id)
	}
	return removed
}
