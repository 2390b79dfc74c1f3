package storage

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/joohnnie/mcp-agent/pkg/models"
	"github.com/joohnnie/mcp-agent/pkg/storage"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// PostgresStore persists workflow runs, task records and execution logs.
type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// SaveWorkflow creates a new workflow run and returns its ID
func (s *PostgresStore) SaveWorkflow(w models.Workflow) (int64, error) {
	var wfID int64
	err := s.db.QueryRowx("INSERT INTO workflows (name, status, created_at, updated_at) VALUES ($1, $2, $3, $4) RETURNING id",
		w.Name, w.Status, w.CreatedAt, w.UpdatedAt).Scan(&wfID)
	if err != nil {
		return 0, fmt.Errorf("save workflow: %w", err)
	}
	return wfID, nil
}

// GetWorkflow retrieves a workflow run by ID
func (s *PostgresStore) GetWorkflow(id int64) (models.Workflow, error) {
	var wf models.Workflow
	err := s.db.Get(&wf, "SELECT id, name, status, created_at, updated_at FROM workflows WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Workflow{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Workflow{}, err
	}
	return wf, nil
}

func (s *PostgresStore) ListWorkflows() ([]models.Workflow, error) {
	workflows := []models.Workflow{}
	query := "SELECT id, name, status, created_at, updated_at FROM workflows ORDER BY created_at DESC"
	err := s.db.Select(&workflows, query)
	if err != nil {
		return nil, err
	}
	return workflows, nil
}

// UpdateWorkflowStatus updates the status of a workflow run
func (s *PostgresStore) UpdateWorkflowStatus(id int64, status models.WorkflowStatus) error {
	_, err := s.db.Exec("UPDATE workflows SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2", status, id)
	return err
}

// SaveTask upserts the record of a task within a workflow run
func (s *PostgresStore) SaveTask(t storage.TaskRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO tasks (id, workflow_id, step, name, task_type, priority, status, max_retries, retry_count, attempts, error_msg, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id, workflow_id) DO UPDATE
		SET status = EXCLUDED.status,
		    retry_count = EXCLUDED.retry_count,
		    attempts = EXCLUDED.attempts,
		    error_msg = EXCLUDED.error_msg,
		    started_at = EXCLUDED.started_at,
		    finished_at = EXCLUDED.finished_at`,
		t.ID, t.WorkflowID, t.Step, t.Name, t.Type, t.Priority, t.Status, t.MaxRetries, t.RetryCount, t.Attempts, t.ErrorMsg, t.StartedAt, t.FinishedAt)
	return err
}

// GetTask retrieves a task record by ID and workflow ID
func (s *PostgresStore) GetTask(id string, workflowID int64) (storage.TaskRecord, error) {
	var task storage.TaskRecord
	err := s.db.Get(&task, "SELECT * FROM tasks WHERE id = $1 AND workflow_id = $2", id, workflowID)
	if err == sql.ErrNoRows {
		return storage.TaskRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.TaskRecord{}, err
	}
	return task, nil
}

// ListTasks retrieves all task records for a workflow run
func (s *PostgresStore) ListTasks(workflowID int64) ([]storage.TaskRecord, error) {
	tasks := []storage.TaskRecord{}
	err := s.db.Select(&tasks, "SELECT * FROM tasks WHERE workflow_id = $1 ORDER BY started_at NULLS LAST", workflowID)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// AppendExecutionLog inserts one attempt-history entry
func (s *PostgresStore) AppendExecutionLog(l models.ExecutionLog) error {
	_, err := s.db.Exec(
		"INSERT INTO execution_logs (task_id, workflow_id, attempt, status, message, logged_at) VALUES ($1, $2, $3, $4, $5, $6)",
		l.TaskID, l.WorkflowID, l.Attempt, l.Status, l.Message, l.LoggedAt)
	return err
}

// GetExecutionLogs retrieves the attempt history for a workflow run
func (s *PostgresStore) GetExecutionLogs(workflowID int64) ([]models.ExecutionLog, error) {
	logs := []models.ExecutionLog{}
	err := s.db.Select(&logs, "SELECT * FROM execution_logs WHERE workflow_id = $1 ORDER BY logged_at", workflowID)
	if err != nil {
		return nil, err
	}
	return logs, nil
}
