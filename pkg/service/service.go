package service

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/joohnnie/mcp-agent/pkg/engine"
	"github.com/joohnnie/mcp-agent/pkg/models"
	"github.com/joohnnie/mcp-agent/pkg/registry"
	"github.com/joohnnie/mcp-agent/pkg/storage"
)

// Logger defines the logging interface for the service layer.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Service ties the execution engine to the run-history store: it creates
// workflow records, runs batches and workflows through the engine, and
// persists per-task outcomes and execution logs.
type Service struct {
	store       storage.Store
	registry    *registry.Registry
	engine      *engine.Engine
	taskService *TaskService
	logger      Logger
}

func NewService(store storage.Store, reg *registry.Registry, logger Logger, engineOpts ...engine.Option) *Service {
	return &Service{
		store:       store,
		registry:    reg,
		engine:      engine.NewEngine(reg, logger, engineOpts...),
		taskService: NewTaskService(store, logger),
		logger:      logger,
	}
}

// Engine exposes the underlying execution engine for callers that do not
// need persistence.
func (s *Service) Engine() *engine.Engine {
	return s.engine
}

// CreateWorkflow persists a new PENDING workflow run and returns its ID.
func (s *Service) CreateWorkflow(name string) (id int64, err error) {
	if name == "" {
		return 0, errors.New("workflow name cannot be empty")
	}
	if len(name) > 100 {
		return 0, errors.New("workflow name too long (max 100 characters)")
	}
	txStore, err := s.store.Begin()
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	wf := models.Workflow{
		Name:      name,
		Status:    models.PendingWorkflowStatus,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	id, err = txStore.SaveWorkflow(wf)
	if err != nil {
		return 0, err
	}
	s.logger.Infof("Created workflow '%s' with ID %d", name, id)
	return id, nil
}

// ExecuteWorkflow runs the workflow definition under the persisted run with
// the given ID, records every task outcome, and settles the run's final
// status. Structural rejections (cycles, unknown dependencies) mark the run
// FAILED without running any task.
func (s *Service) ExecuteWorkflow(ctx context.Context, workflowID int64, wf *models.Workflow, opts ...engine.WorkflowOption) (map[string][]*models.Result, error) {
	if _, err := s.store.GetWorkflow(workflowID); err != nil {
		return nil, errors.Wrapf(err, "workflow %d not found", workflowID)
	}
	if err := s.store.UpdateWorkflowStatus(workflowID, models.RunningWorkflowStatus); err != nil {
		return nil, errors.Wrapf(err, "failed to set workflow %d to RUNNING", workflowID)
	}

	results, execErr := s.engine.ExecuteWorkflow(ctx, wf, opts...)
	if results == nil {
		// Rejected before any task started.
		if err := s.store.UpdateWorkflowStatus(workflowID, models.FailedWorkflowStatus); err != nil {
			s.logger.Errorf("Failed to update workflow %d status: %v", workflowID, err)
		}
		return nil, execErr
	}

	for _, step := range wf.Steps {
		s.recordStep(workflowID, step.Name, step.Tasks)
	}

	status := s.settleStatus(wf.AllTasks(), execErr)
	if err := s.store.UpdateWorkflowStatus(workflowID, status); err != nil {
		s.logger.Errorf("Failed to update workflow %d status: %v", workflowID, err)
	}
	s.logger.Infof("Executed workflow '%s' (ID %d): %s", wf.Name, workflowID, status)
	return results, execErr
}

// ExecuteBatch runs the tasks under the persisted run with the given ID.
// maxConcurrency 0 runs them sequentially.
func (s *Service) ExecuteBatch(ctx context.Context, workflowID int64, tasks []*models.Task, maxConcurrency int) ([]*models.Result, error) {
	if _, err := s.store.GetWorkflow(workflowID); err != nil {
		return nil, errors.Wrapf(err, "workflow %d not found", workflowID)
	}
	if err := s.store.UpdateWorkflowStatus(workflowID, models.RunningWorkflowStatus); err != nil {
		return nil, errors.Wrapf(err, "failed to set workflow %d to RUNNING", workflowID)
	}

	var results []*models.Result
	var execErr error
	if maxConcurrency > 0 {
		results, execErr = s.engine.RunConcurrent(ctx, tasks, maxConcurrency)
	} else {
		results, execErr = s.engine.RunSequential(ctx, tasks)
	}
	if results == nil {
		if err := s.store.UpdateWorkflowStatus(workflowID, models.FailedWorkflowStatus); err != nil {
			s.logger.Errorf("Failed to update workflow %d status: %v", workflowID, err)
		}
		return nil, execErr
	}

	s.recordStep(workflowID, "batch", tasks)

	status := s.settleStatus(tasks, execErr)
	if err := s.store.UpdateWorkflowStatus(workflowID, status); err != nil {
		s.logger.Errorf("Failed to update workflow %d status: %v", workflowID, err)
	}
	return results, execErr
}

// GetWorkflow fetches a workflow run.
func (s *Service) GetWorkflow(workflowID int64) (models.Workflow, error) {
	wf, err := s.store.GetWorkflow(workflowID)
	if err != nil {
		return models.Workflow{}, errors.Wrapf(err, "failed to get workflow %d", workflowID)
	}
	return wf, nil
}

func (s *Service) ListWorkflows() ([]models.Workflow, error) {
	return s.store.ListWorkflows()
}

// UpdateWorkflowStatus updates the status of an existing workflow run by ID.
func (s *Service) UpdateWorkflowStatus(id int64, status string) error {
	if id <= 0 {
		return errors.New("workflow ID must be positive")
	}
	wfStatus := models.WorkflowStatus(status)
	switch wfStatus {
	case models.PendingWorkflowStatus, models.RunningWorkflowStatus,
		models.CompletedWorkflowStatus, models.FailedWorkflowStatus,
		models.CancelledWorkflowStatus:
	default:
		return errors.Errorf("invalid status %q; must be one of PENDING, RUNNING, COMPLETED, FAILED, CANCELLED", status)
	}

	if _, err := s.store.GetWorkflow(id); err != nil {
		return err
	}
	if err := s.store.UpdateWorkflowStatus(id, wfStatus); err != nil {
		return err
	}
	s.logger.Infof("Updated workflow ID %d to status '%s'", id, status)
	return nil
}

// GetExecutionLogs returns the attempt history recorded for a workflow run.
func (s *Service) GetExecutionLogs(workflowID int64) ([]models.ExecutionLog, error) {
	return s.store.GetExecutionLogs(workflowID)
}

func (s *Service) recordStep(workflowID int64, step string, tasks []*models.Task) {
	for _, task := range tasks {
		rec := storage.RecordFromTask(task, workflowID, step)
		if err := s.taskService.RecordTask(rec); err != nil {
			s.logger.Errorf("Failed to record task %s: %v", task.ID, err)
		}
		if err := s.taskService.RecordLog(task.ID, workflowID, rec.Attempts, task.Status, rec.ErrorMsg); err != nil {
			s.logger.Errorf("Failed to record log for task %s: %v", task.ID, err)
		}
	}
}

func (s *Service) settleStatus(tasks []*models.Task, execErr error) models.WorkflowStatus {
	if execErr == engine.ErrCancelled {
		return models.CancelledWorkflowStatus
	}
	failed := false
	for _, task := range tasks {
		switch task.Status {
		case models.FailedTaskStatus, models.CancelledTaskStatus:
			failed = true
		}
	}
	if failed {
		return models.FailedWorkflowStatus
	}
	return models.CompletedWorkflowStatus
}

// FormatResults renders an ordered, human-readable summary of batch results.
func FormatResults(results []*models.Result) string {
	var b strings.Builder
	for i, res := range results {
		if i > 0 {
			b.WriteString("; ")
		}
		if res == nil {
			b.WriteString("cancelled")
			continue
		}
		if res.Success {
			b.WriteString("ok")
		} else {
			b.WriteString("error: " + res.Error)
		}
	}
	return b.String()
}
