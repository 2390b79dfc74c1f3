package storage

import (
	"time"

	"github.com/pkg/errors"

	"github.com/joohnnie/mcp-agent/pkg/models"
)

var ErrNotFound = errors.New("not found")

// TaskRecord is the persisted form of one task's terminal outcome within a
// workflow run.
type TaskRecord struct {
	ID         string            `db:"id"`
	WorkflowID int64             `db:"workflow_id"`
	Step       string            `db:"step"`
	Name       string            `db:"name"`
	Type       string            `db:"task_type"`
	Priority   string            `db:"priority"`
	Status     models.TaskStatus `db:"status"`
	MaxRetries int               `db:"max_retries"`
	RetryCount int               `db:"retry_count"`
	Attempts   int               `db:"attempts"`
	ErrorMsg   string            `db:"error_msg"`
	StartedAt  *time.Time        `db:"started_at"`
	FinishedAt *time.Time        `db:"finished_at"`
}

// RecordFromTask flattens a task into its persisted form.
func RecordFromTask(t *models.Task, workflowID int64, step string) TaskRecord {
	rec := TaskRecord{
		ID:         t.ID,
		WorkflowID: workflowID,
		Step:       step,
		Name:       t.Name,
		Type:       t.Type,
		Priority:   t.Priority.String(),
		Status:     t.Status,
		MaxRetries: t.MaxRetries,
		RetryCount: t.RetryCount,
		StartedAt:  t.StartedAt,
		FinishedAt: t.FinishedAt,
	}
	if t.Result != nil {
		rec.Attempts = t.Result.Attempts
		rec.ErrorMsg = t.Result.Error
	}
	return rec
}

// Store defines the run-history storage operations.
type Store interface {
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Workflow run operations
	SaveWorkflow(w models.Workflow) (int64, error)
	GetWorkflow(id int64) (models.Workflow, error)
	ListWorkflows() ([]models.Workflow, error)
	UpdateWorkflowStatus(id int64, status models.WorkflowStatus) error

	// Task record operations
	SaveTask(t TaskRecord) error
	GetTask(id string, workflowID int64) (TaskRecord, error)
	ListTasks(workflowID int64) ([]TaskRecord, error)

	// Execution log operations
	AppendExecutionLog(l models.ExecutionLog) error
	GetExecutionLogs(workflowID int64) ([]models.ExecutionLog, error)
}
