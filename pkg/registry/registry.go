package registry

import (
	"context"
	"sync"

	"github.com/joohnnie/mcp-agent/pkg/models"
)

// Executor is a capability-bearing component able to run tasks of certain
// types. Implementations are supplied by the embedding application; the
// engine treats them as opaque.
type Executor interface {
	ID() string
	CanHandle(taskType string) bool
	Run(ctx context.Context, task *models.Task) (interface{}, error)
}

// Registry maps task types to the executors registered for them.
// Lookups return a consistent snapshot while registrations are in flight:
// the per-type slices are replaced wholesale, never mutated in place.
type Registry struct {
	mu        sync.RWMutex
	byType    map[string][]Executor
	byID      map[string]Executor
	typesByID map[string][]string
}

func NewRegistry() *Registry {
	return &Registry{
		byType:    make(map[string][]Executor),
		byID:      make(map[string]Executor),
		typesByID: make(map[string][]string),
	}
}

// Register adds the executor under each listed task type, preserving
// registration order. Registering the same executor twice for a type is a
// no-op for that type.
func (r *Registry) Register(ex Executor, taskTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[ex.ID()] = ex
	for _, tt := range taskTypes {
		if r.containsLocked(tt, ex.ID()) {
			continue
		}
		existing := r.byType[tt]
		next := make([]Executor, len(existing), len(existing)+1)
		copy(next, existing)
		r.byType[tt] = append(next, ex)
		r.typesByID[ex.ID()] = append(r.typesByID[ex.ID()], tt)
	}
}

// Unregister removes the executor from every task-type mapping.
// Removing an absent ID is a no-op.
func (r *Registry) Unregister(executorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	types, ok := r.typesByID[executorID]
	if !ok {
		delete(r.byID, executorID)
		return
	}
	for _, tt := range types {
		existing := r.byType[tt]
		next := make([]Executor, 0, len(existing))
		for _, ex := range existing {
			if ex.ID() != executorID {
				next = append(next, ex)
			}
		}
		if len(next) == 0 {
			delete(r.byType, tt)
		} else {
			r.byType[tt] = next
		}
	}
	delete(r.typesByID, executorID)
	delete(r.byID, executorID)
}

// Find returns the executors registered for taskType in registration order.
// The returned slice is the registry's immutable snapshot; callers must not
// modify it.
func (r *Registry) Find(taskType string) []Executor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byType[taskType]
}

// Get returns the executor registered under the given ID.
func (r *Registry) Get(executorID string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ex, ok := r.byID[executorID]
	return ex, ok
}

// TaskTypes returns every task type with at least one registered executor.
func (r *Registry) TaskTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.byType))
	for tt := range r.byType {
		types = append(types, tt)
	}
	return types
}

func (r *Registry) containsLocked(taskType, executorID string) bool {
	for _, ex := range r.byType[taskType] {
		if ex.ID() == executorID {
			return true
		}
	}
	return false
}
