package service

import (
	"time"

	"github.com/pkg/errors"

	"github.com/joohnnie/mcp-agent/pkg/models"
	"github.com/joohnnie/mcp-agent/pkg/storage"
)

// TaskService persists task outcomes and execution logs, one transaction per
// mutation.
type TaskService struct {
	store  storage.Store
	logger Logger
}

func NewTaskService(store storage.Store, logger Logger) *TaskService {
	return &TaskService{
		store:  store,
		logger: logger,
	}
}

// RecordTask upserts the terminal record of a task within a workflow run.
func (ts *TaskService) RecordTask(rec storage.TaskRecord) (err error) {
	txStore, err := ts.store.Begin()
	if err != nil {
		ts.logger.Errorf("Failed to begin transaction for RecordTask: %v", err)
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				ts.logger.Errorf("Failed to rollback: %v", rollbackErr)
			}
		} else {
			if commitErr := txStore.Commit(); commitErr != nil {
				ts.logger.Errorf("Failed to commit: %v", commitErr)
				err = commitErr
			}
		}
	}()

	if err = txStore.SaveTask(rec); err != nil {
		ts.logger.Errorf("Failed to record task %s: %v", rec.ID, err)
		return errors.Wrapf(err, "failed to record task %s", rec.ID)
	}
	return nil
}

// RecordLog appends one execution-log entry for a task attempt outcome.
func (ts *TaskService) RecordLog(taskID string, workflowID int64, attempt int, status models.TaskStatus, message string) (err error) {
	txStore, err := ts.store.Begin()
	if err != nil {
		ts.logger.Errorf("Failed to begin transaction for RecordLog: %v", err)
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				ts.logger.Errorf("Failed to rollback: %v", rollbackErr)
			}
		} else {
			if commitErr := txStore.Commit(); commitErr != nil {
				ts.logger.Errorf("Failed to commit: %v", commitErr)
				err = commitErr
			}
		}
	}()

	entry := models.ExecutionLog{
		TaskID:     taskID,
		WorkflowID: workflowID,
		Attempt:    attempt,
		Status:     string(status),
		Message:    message,
		LoggedAt:   time.Now(),
	}
	if err = txStore.AppendExecutionLog(entry); err != nil {
		ts.logger.Errorf("Failed to append execution log for task %s: %v", taskID, err)
		return errors.Wrapf(err, "failed to append execution log for task %s", taskID)
	}
	return nil
}
