package models

import "time"

type WorkflowStatus string

const (
	PendingWorkflowStatus   WorkflowStatus = "PENDING"
	RunningWorkflowStatus   WorkflowStatus = "RUNNING"
	CompletedWorkflowStatus WorkflowStatus = "COMPLETED"
	FailedWorkflowStatus    WorkflowStatus = "FAILED"
	CancelledWorkflowStatus WorkflowStatus = "CANCELLED"
)

// Workflow is a named set of steps ordered purely by their dependency graph.
// Declaration order of Steps carries no semantics.
type Workflow struct {
	ID        int64           `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Status    WorkflowStatus  `json:"status" db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
	Steps     []*WorkflowStep `json:"steps,omitempty"`
}

// WorkflowStep is one batch of tasks. It becomes runnable once every step in
// DependsOn has reached a terminal state for all of its tasks.
type WorkflowStep struct {
	Name           string   `json:"name"`
	Tasks          []*Task  `json:"tasks"`
	DependsOn      []string `json:"depends_on,omitempty"`
	MaxConcurrency int      `json:"max_concurrency,omitempty"` // 0 means sequential
}

func NewWorkflow(name string, steps ...*WorkflowStep) *Workflow {
	return &Workflow{
		Name:      name,
		Status:    PendingWorkflowStatus,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Steps:     steps,
	}
}

func NewWorkflowStep(name string, tasks []*Task, dependsOn ...string) *WorkflowStep {
	return &WorkflowStep{
		Name:      name,
		Tasks:     tasks,
		DependsOn: dependsOn,
	}
}

// AllTasks returns every task across all steps, in step-declaration order.
func (w *Workflow) AllTasks() []*Task {
	var tasks []*Task
	for _, s := range w.Steps {
		tasks = append(tasks, s.Tasks...)
	}
	return tasks
}

// Step returns the step with the given name, or nil.
func (w *Workflow) Step(name string) *WorkflowStep {
	for _, s := range w.Steps {
		if s.Name == name {
			return s
		}
	}
	return nil
}
