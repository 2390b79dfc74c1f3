package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type TaskStatus string

const (
	PendingTaskStatus    TaskStatus = "PENDING"
	InProgressTaskStatus TaskStatus = "IN_PROGRESS"
	CompletedTaskStatus  TaskStatus = "COMPLETED"
	FailedTaskStatus     TaskStatus = "FAILED"
	CancelledTaskStatus  TaskStatus = "CANCELLED"
)

// Terminal reports whether the status permits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == CompletedTaskStatus || s == FailedTaskStatus || s == CancelledTaskStatus
}

type TaskPriority int

const (
	LowPriority TaskPriority = iota
	NormalPriority
	HighPriority
	CriticalPriority
)

func (p TaskPriority) String() string {
	switch p {
	case LowPriority:
		return "LOW"
	case HighPriority:
		return "HIGH"
	case CriticalPriority:
		return "CRITICAL"
	default:
		return "NORMAL"
	}
}

const DefaultMaxRetries = 3

// Task is a unit of work routed to an executor by its Type.
// Priority is advisory: the engine records it but does not reorder execution.
type Task struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Type        string                 `json:"task_type"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	Priority    TaskPriority           `json:"priority"`
	MaxRetries  int                    `json:"max_retries"`
	Timeout     *time.Duration         `json:"timeout,omitempty"`

	Status     TaskStatus `json:"status"`
	RetryCount int        `json:"retry_count"`
	Result     *Result    `json:"result,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewTask creates a PENDING task with a fresh ID and the default retry budget.
func NewTask(name, taskType string, params map[string]interface{}, opts ...TaskOption) *Task {
	t := &Task{
		ID:         uuid.NewString(),
		Name:       name,
		Type:       taskType,
		Parameters: params,
		Priority:   NormalPriority,
		MaxRetries: DefaultMaxRetries,
		Status:     PendingTaskStatus,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type TaskOption func(*Task)

func WithRetries(n int) TaskOption {
	return func(t *Task) {
		if n >= 0 {
			t.MaxRetries = n
		}
	}
}

func WithTimeout(d time.Duration) TaskOption {
	return func(t *Task) {
		t.Timeout = &d
	}
}

func WithPriority(p TaskPriority) TaskOption {
	return func(t *Task) {
		t.Priority = p
	}
}

func WithDescription(desc string) TaskOption {
	return func(t *Task) {
		t.Description = desc
	}
}

// MarkStarted moves the task into IN_PROGRESS and stamps StartedAt.
// Re-entering IN_PROGRESS is only legal as part of a retry.
func (t *Task) MarkStarted() error {
	if t.Status.Terminal() {
		return errors.Errorf("task %s: cannot start from terminal status %s", t.ID, t.Status)
	}
	if t.StartedAt == nil {
		now := time.Now()
		t.StartedAt = &now
	}
	t.Status = InProgressTaskStatus
	return nil
}

// MarkCompleted sets the terminal COMPLETED status and the write-once result.
func (t *Task) MarkCompleted(res *Result) error {
	if t.Status.Terminal() {
		return errors.Errorf("task %s: already terminal (%s)", t.ID, t.Status)
	}
	t.Status = CompletedTaskStatus
	t.Result = res
	now := time.Now()
	t.FinishedAt = &now
	return nil
}

// MarkFailed sets the terminal FAILED status and the write-once result.
func (t *Task) MarkFailed(res *Result) error {
	if t.Status.Terminal() {
		return errors.Errorf("task %s: already terminal (%s)", t.ID, t.Status)
	}
	t.Status = FailedTaskStatus
	t.Result = res
	now := time.Now()
	t.FinishedAt = &now
	return nil
}

// MarkCancelled is reachable only before a final result is set.
func (t *Task) MarkCancelled() error {
	if t.Status.Terminal() {
		return errors.Errorf("task %s: already terminal (%s)", t.ID, t.Status)
	}
	t.Status = CancelledTaskStatus
	now := time.Now()
	t.FinishedAt = &now
	return nil
}

// CanRetry reports whether the retry budget allows another attempt.
func (t *Task) CanRetry() bool {
	return t.RetryCount < t.MaxRetries
}

// IncrementRetry consumes one unit of the retry budget.
func (t *Task) IncrementRetry() error {
	if !t.CanRetry() {
		return errors.Errorf("task %s: retry budget exhausted (%d/%d)", t.ID, t.RetryCount, t.MaxRetries)
	}
	t.RetryCount++
	return nil
}

// ExecutionTime returns the wall-clock span between start and finish, if both
// have been recorded.
func (t *Task) ExecutionTime() *time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return nil
	}
	d := t.FinishedAt.Sub(*t.StartedAt)
	return &d
}
