package engine

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Submission-time rejections. These surface directly to the caller before
// any task starts.
var (
	ErrCyclicDependency   = errors.New("workflow dependency graph contains a cycle")
	ErrInvalidConcurrency = errors.New("max concurrency must be at least 1")
)

// ErrCancelled reports that execution was aborted by an external signal
// before a terminal result was produced. Tasks end CANCELLED with no Result.
var ErrCancelled = errors.New("execution cancelled")

// NoCapableExecutorError reports that no registered executor can serve the
// task's type. It is terminal: no attempt is made and nothing is retried.
type NoCapableExecutorError struct {
	TaskType string
}

func (e *NoCapableExecutorError) Error() string {
	return fmt.Sprintf("no capable executor registered for task type %q", e.TaskType)
}

// TimeoutError reports that a single attempt exceeded the task's timeout.
// Retryable under the same counting rule as executor failures.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("attempt timed out after %s", e.Timeout)
}

// ExecutorError wraps a failure reported by the chosen executor.
type ExecutorError struct {
	ExecutorID string
	Err        error
}

func (e *ExecutorError) Error() string {
	return fmt.Sprintf("executor %s: %v", e.ExecutorID, e.Err)
}

func (e *ExecutorError) Unwrap() error {
	return e.Err
}

// UnknownDependencyError reports a workflow step depending on a name absent
// from the workflow.
type UnknownDependencyError struct {
	Step      string
	DependsOn string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("step %q depends on unknown step %q", e.Step, e.DependsOn)
}

// DuplicateStepError reports two workflow steps sharing a name.
type DuplicateStepError struct {
	Step string
}

func (e *DuplicateStepError) Error() string {
	return fmt.Sprintf("duplicate step name %q", e.Step)
}
