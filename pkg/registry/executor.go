package registry

import (
	"context"

	"github.com/google/uuid"

	"github.com/joohnnie/mcp-agent/pkg/models"
)

// RunFunc is the work performed by a FuncExecutor for one task attempt.
type RunFunc func(ctx context.Context, task *models.Task) (interface{}, error)

// FuncExecutor adapts a plain function into an Executor handling a fixed set
// of task types.
type FuncExecutor struct {
	id        string
	name      string
	taskTypes map[string]struct{}
	run       RunFunc
}

func NewFuncExecutor(name string, taskTypes []string, run RunFunc) *FuncExecutor {
	types := make(map[string]struct{}, len(taskTypes))
	for _, tt := range taskTypes {
		types[tt] = struct{}{}
	}
	return &FuncExecutor{
		id:        uuid.NewString(),
		name:      name,
		taskTypes: types,
		run:       run,
	}
}

func (e *FuncExecutor) ID() string {
	return e.id
}

func (e *FuncExecutor) Name() string {
	return e.name
}

func (e *FuncExecutor) CanHandle(taskType string) bool {
	_, ok := e.taskTypes[taskType]
	return ok
}

func (e *FuncExecutor) Run(ctx context.Context, task *models.Task) (interface{}, error) {
	return e.run(ctx, task)
}
