package api

import (
	"fmt"
	"sync"

	"github.com/MycelicMemory/irm"
	"github.com/MycelicMemory/irm/internal/snapshot"
)

// ModelHandle is a loaded, mutable model: its live State plus one
// BoundState per domain (in domain-index order), ready for a sampler run.
type ModelHandle struct {
	State *irm.State
	Defn  snapshot.DefinitionSummary
	Bound []*irm.BoundState
}

// ModelRegistry tracks every model currently loaded in memory, by id.
// Loading a model (reading its dataviews, constructing bound states) is the
// caller's responsibility -- the registry only holds what it is given.
type ModelRegistry struct {
	mu     sync.RWMutex
	models map[string]*ModelHandle
}

// NewModelRegistry returns an empty registry.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{models: make(map[string]*ModelHandle)}
}

// Put registers or replaces the handle for modelID.
func (r *ModelRegistry) Put(modelID string, h *ModelHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[modelID] = h
}

// Get returns the handle for modelID, or an error if it is not loaded.
func (r *ModelRegistry) Get(modelID string) (*ModelHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.models[modelID]
	if !ok {
		return nil, fmt.Errorf("model %q is not loaded", modelID)
	}
	return h, nil
}

// Remove drops modelID from the registry, if present.
func (r *ModelRegistry) Remove(modelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.models, modelID)
}

// IDs returns every currently loaded model id.
func (r *ModelRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.models))
	for id := range r.models {
		ids = append(ids, id)
	}
	return ids
}
