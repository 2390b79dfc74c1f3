package engine

import (
	"sync"

	"github.com/joohnnie/mcp-agent/pkg/registry"
)

// SelectionStrategy picks one executor out of the non-empty candidate slice
// returned by the registry for a task type.
type SelectionStrategy interface {
	Select(taskType string, candidates []registry.Executor) registry.Executor
}

// FirstRegistered always picks the earliest-registered executor. This is the
// default: deterministic and reproducible.
type FirstRegistered struct{}

func (FirstRegistered) Select(_ string, candidates []registry.Executor) registry.Executor {
	return candidates[0]
}

// RoundRobin rotates through the candidates per task type.
type RoundRobin struct {
	mu   sync.Mutex
	next map[string]int
}

func NewRoundRobin() *RoundRobin {
	return &RoundRobin{next: make(map[string]int)}
}

func (r *RoundRobin) Select(taskType string, candidates []registry.Executor) registry.Executor {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.next[taskType] % len(candidates)
	r.next[taskType] = i + 1
	return candidates[i]
}
