package storage

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/joohnnie/mcp-agent/pkg/models"
)

// mockStore implements Store with in-memory state, for tests and examples.
type mockStore struct {
	mu        sync.Mutex
	workflows []models.Workflow
	tasks     []TaskRecord
	logs      []models.ExecutionLog
	nextWfID  int64
	nextLogID int64
}

// NewMockStore returns an in-memory Store.
func NewMockStore() Store {
	return &mockStore{}
}

// Begin returns the store itself; the in-memory store has no real
// transaction isolation.
func (m *mockStore) Begin() (Store, error) {
	return m, nil
}

func (m *mockStore) Commit() error {
	return nil
}

func (m *mockStore) Rollback() error {
	return nil
}

func (m *mockStore) Close() error {
	return nil
}

func (m *mockStore) SaveWorkflow(wf models.Workflow) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextWfID++
	wf.ID = m.nextWfID
	m.workflows = append(m.workflows, wf)
	return wf.ID, nil
}

func (m *mockStore) GetWorkflow(id int64) (models.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, wf := range m.workflows {
		if wf.ID == id {
			return wf, nil
		}
	}
	return models.Workflow{}, ErrNotFound
}

func (m *mockStore) ListWorkflows() ([]models.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Workflow, len(m.workflows))
	copy(out, m.workflows)
	return out, nil
}

func (m *mockStore) UpdateWorkflowStatus(id int64, status models.WorkflowStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, wf := range m.workflows {
		if wf.ID == id {
			m.workflows[i].Status = status
			m.workflows[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) SaveTask(t TaskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.tasks {
		if existing.ID == t.ID && existing.WorkflowID == t.WorkflowID {
			m.tasks[i] = t
			return nil
		}
	}
	m.tasks = append(m.tasks, t)
	return nil
}

func (m *mockStore) GetTask(id string, workflowID int64) (TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == id && t.WorkflowID == workflowID {
			return t, nil
		}
	}
	return TaskRecord{}, ErrNotFound
}

func (m *mockStore) ListTasks(workflowID int64) ([]TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TaskRecord
	for _, t := range m.tasks {
		if t.WorkflowID == workflowID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockStore) AppendExecutionLog(l models.ExecutionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextLogID++
	l.ID = m.nextLogID
	if l.LoggedAt.IsZero() {
		l.LoggedAt = time.Now()
	}
	m.logs = append(m.logs, l)
	return nil
}

func (m *mockStore) GetExecutionLogs(workflowID int64) ([]models.ExecutionLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ExecutionLog
	for _, l := range m.logs {
		if l.WorkflowID == workflowID {
			out = append(out, l)
		}
	}
	if out == nil {
		return nil, errors.Wrapf(ErrNotFound, "no execution logs for workflow %d", workflowID)
	}
	return out, nil
}
