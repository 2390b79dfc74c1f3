package engine

import (
	"context"
	"sync"

	"github.com/joohnnie/mcp-agent/pkg/models"
)

type batchConfig struct {
	failFast bool
}

type BatchOption func(*batchConfig)

// WithFailFast stops a sequential batch at the first failed task. Remaining
// tasks are marked CANCELLED without running.
func WithFailFast() BatchOption {
	return func(c *batchConfig) {
		c.failFast = true
	}
}

// RunSequential runs tasks strictly one after another. The returned slice is
// index-aligned with tasks; entries are nil for tasks that ended CANCELLED.
// A task's failure does not stop the batch unless fail-fast is opted into.
func (e *Engine) RunSequential(ctx context.Context, tasks []*models.Task, opts ...BatchOption) ([]*models.Result, error) {
	var cfg batchConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	results := make([]*models.Result, len(tasks))
	for i, task := range tasks {
		if ctx.Err() != nil {
			e.cancelRemaining(tasks[i:])
			return results, ErrCancelled
		}
		res, err := e.Execute(ctx, task)
		if err == ErrCancelled {
			e.cancelRemaining(tasks[i+1:])
			return results, ErrCancelled
		}
		if err != nil {
			return results, err
		}
		results[i] = res
		if cfg.failFast && !res.Success {
			e.cancelRemaining(tasks[i+1:])
			return results, nil
		}
	}
	return results, nil
}

// RunConcurrent runs up to maxConcurrency tasks at once. The returned slice
// is index-aligned with tasks regardless of completion order. A sibling's
// failure never cancels the rest of the batch; only ctx cancellation does,
// and already-terminal tasks keep their results.
func (e *Engine) RunConcurrent(ctx context.Context, tasks []*models.Task, maxConcurrency int) ([]*models.Result, error) {
	if maxConcurrency < 1 {
		return nil, ErrInvalidConcurrency
	}

	results := make([]*models.Result, len(tasks))
	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup
	var cancelled sync.Once
	var batchErr error

	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task *models.Task) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				if err := task.MarkCancelled(); err != nil {
					e.logger.Errorf("Task %s: %v", task.ID, err)
				}
				cancelled.Do(func() { batchErr = ErrCancelled })
				return
			}
			defer func() { <-sem }()

			res, err := e.Execute(ctx, task)
			if err == ErrCancelled {
				cancelled.Do(func() { batchErr = ErrCancelled })
				return
			}
			if err != nil {
				e.logger.Errorf("Task %s: %v", task.ID, err)
				return
			}
			results[i] = res
		}(i, task)
	}
	wg.Wait()
	return results, batchErr
}

func (e *Engine) cancelRemaining(tasks []*models.Task) {
	for _, task := range tasks {
		if task.Status.Terminal() {
			continue
		}
		if err := task.MarkCancelled(); err != nil {
			e.logger.Errorf("Task %s: %v", task.ID, err)
		}
	}
}
