package engine

import (
	"context"
	"time"

	"github.com/joohnnie/mcp-agent/pkg/models"
	"github.com/joohnnie/mcp-agent/pkg/registry"
)

const defaultRetryDelay = 100 * time.Millisecond

// Logger defines the logging interface consumed by the engine.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Engine runs a single task to a terminal Result, applying the retry and
// timeout policy. A Task instance must not be executed by two concurrent
// Execute calls.
type Engine struct {
	registry *registry.Registry
	backoff  BackoffPolicy
	selector SelectionStrategy
	logger   Logger
}

type Option func(*Engine)

// WithBackoff replaces the default fixed 100ms retry delay.
func WithBackoff(policy BackoffPolicy) Option {
	return func(e *Engine) {
		e.backoff = policy
	}
}

// WithSelection replaces the default first-registered executor selection.
func WithSelection(s SelectionStrategy) Option {
	return func(e *Engine) {
		e.selector = s
	}
}

func NewEngine(reg *registry.Registry, logger Logger, opts ...Option) *Engine {
	e := &Engine{
		registry: reg,
		backoff:  FixedBackoff(defaultRetryDelay),
		selector: FirstRegistered{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the task until it reaches a terminal state.
//
// The returned Result is also stored on the task. A nil Result with
// ErrCancelled means execution was aborted by ctx before a terminal result;
// the task ends CANCELLED. All other outcomes, including failures, are
// captured in the Result rather than returned as an error.
func (e *Engine) Execute(ctx context.Context, task *models.Task) (*models.Result, error) {
	candidates := e.registry.Find(task.Type)
	if len(candidates) == 0 {
		err := &NoCapableExecutorError{TaskType: task.Type}
		e.logger.Errorf("Task %s (%s): %v", task.Name, task.ID, err)
		res := models.FailureResult(err.Error(), 0, 0)
		if markErr := task.MarkFailed(res); markErr != nil {
			return nil, markErr
		}
		return res, nil
	}

	if ctx.Err() != nil {
		if markErr := task.MarkCancelled(); markErr != nil {
			return nil, markErr
		}
		return nil, ErrCancelled
	}

	attempts := 0
	for {
		ex := e.selector.Select(task.Type, candidates)
		if err := task.MarkStarted(); err != nil {
			return nil, err
		}
		attempts++
		e.logger.Infof("Task %s (%s): attempt %d via executor %s", task.Name, task.ID, attempts, ex.ID())

		start := time.Now()
		data, err := e.runAttempt(ctx, ex, task)
		elapsed := time.Since(start)

		if err == nil {
			res := models.SuccessResult(data, elapsed, attempts)
			if markErr := task.MarkCompleted(res); markErr != nil {
				return nil, markErr
			}
			e.logger.Infof("Task %s (%s): completed in %s", task.Name, task.ID, elapsed)
			return res, nil
		}

		if ctx.Err() != nil {
			e.logger.Infof("Task %s (%s): cancelled", task.Name, task.ID)
			if markErr := task.MarkCancelled(); markErr != nil {
				return nil, markErr
			}
			return nil, ErrCancelled
		}

		if task.CanRetry() {
			if incErr := task.IncrementRetry(); incErr != nil {
				return nil, incErr
			}
			delay := e.backoff(task.RetryCount)
			e.logger.Infof("Task %s (%s): attempt %d failed (%v), retrying in %s",
				task.Name, task.ID, attempts, err, delay)
			if !e.sleep(ctx, delay) {
				if markErr := task.MarkCancelled(); markErr != nil {
					return nil, markErr
				}
				return nil, ErrCancelled
			}
			continue
		}

		e.logger.Errorf("Task %s (%s): failed after %d attempts: %v", task.Name, task.ID, attempts, err)
		res := models.FailureResult(err.Error(), elapsed, attempts)
		if markErr := task.MarkFailed(res); markErr != nil {
			return nil, markErr
		}
		return res, nil
	}
}

// runAttempt invokes the executor once, bounded by the task's timeout if set.
// A timeout surfaces as *TimeoutError, an executor failure as *ExecutorError.
func (e *Engine) runAttempt(ctx context.Context, ex registry.Executor, task *models.Task) (interface{}, error) {
	attemptCtx := ctx
	if task.Timeout != nil {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, *task.Timeout)
		defer cancel()
	}

	type outcome struct {
		data interface{}
		err  error
	}
	resultCh := make(chan outcome, 1)
	go func() {
		data, err := ex.Run(attemptCtx, task)
		resultCh <- outcome{data, err}
	}()

	select {
	case out := <-resultCh:
		if out.err != nil {
			return nil, &ExecutorError{ExecutorID: ex.ID(), Err: out.err}
		}
		return out.data, nil
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TimeoutError{Timeout: *task.Timeout}
	}
}

// sleep waits for the backoff delay; returns false if ctx was cancelled first.
func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
