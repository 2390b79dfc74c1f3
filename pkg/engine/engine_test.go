package engine_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joohnnie/mcp-agent/pkg/engine"
	"github.com/joohnnie/mcp-agent/pkg/models"
	"github.com/joohnnie/mcp-agent/pkg/registry"
)

type testLogger struct{}

func (testLogger) Infof(format string, args ...interface{})  {}
func (testLogger) Errorf(format string, args ...interface{}) {}

func newEngine(reg *registry.Registry, opts ...engine.Option) *engine.Engine {
	opts = append([]engine.Option{engine.WithBackoff(engine.NoBackoff())}, opts...)
	return engine.NewEngine(reg, testLogger{}, opts...)
}

func TestExecuteSuccess(t *testing.T) {
	reg := registry.NewRegistry()
	reg.Register(registry.NewFuncExecutor("calc", []string{"calc"}, func(ctx context.Context, task *models.Task) (interface{}, error) {
		return task.Parameters["a"], nil
	}), "calc")
	e := newEngine(reg)

	task := models.NewTask("pass", "calc", map[string]interface{}{"a": 7})
	res, err := e.Execute(context.Background(), task)

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Success)
	assert.Equal(t, 7, res.Data)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, models.CompletedTaskStatus, task.Status)
	assert.Same(t, res, task.Result)
}

func TestExecuteNoCapableExecutor(t *testing.T) {
	reg := registry.NewRegistry()
	e := newEngine(reg)

	task := models.NewTask("orphan", "unknown", nil)
	res, err := e.Execute(context.Background(), task)

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no capable executor")
	assert.Equal(t, 0, res.Attempts)
	assert.Equal(t, models.FailedTaskStatus, task.Status)
	assert.Nil(t, task.StartedAt)
}

func TestPermanentFailureUsesFullRetryBudget(t *testing.T) {
	var calls int32
	reg := registry.NewRegistry()
	reg.Register(registry.NewFuncExecutor("calc", []string{"calc"}, func(ctx context.Context, task *models.Task) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("division by zero")
	}), "calc")
	e := newEngine(reg)

	task := models.NewTask("div", "calc", map[string]interface{}{"op": "div", "a": 10, "b": 0}, models.WithRetries(2))
	res, err := e.Execute(context.Background(), task)

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "division")
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 2, task.RetryCount)
	assert.Equal(t, models.FailedTaskStatus, task.Status)
}

func TestZeroRetriesMeansSingleAttempt(t *testing.T) {
	var calls int32
	reg := registry.NewRegistry()
	reg.Register(registry.NewFuncExecutor("calc", []string{"calc"}, func(ctx context.Context, task *models.Task) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("boom")
	}), "calc")
	e := newEngine(reg)

	task := models.NewTask("once", "calc", nil, models.WithRetries(0))
	res, err := e.Execute(context.Background(), task)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, models.FailedTaskStatus, task.Status)
}

func TestSuccessStopsRetrying(t *testing.T) {
	var calls int32
	reg := registry.NewRegistry()
	reg.Register(registry.NewFuncExecutor("calc", []string{"calc"}, func(ctx context.Context, task *models.Task) (interface{}, error) {
		if atomic.AddInt32(&calls, 1) < 2 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	}), "calc")
	e := newEngine(reg)

	task := models.NewTask("flaky", "calc", nil, models.WithRetries(5))
	res, err := e.Execute(context.Background(), task)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, models.CompletedTaskStatus, task.Status)
}

func TestTimeoutBoundsAttempt(t *testing.T) {
	reg := registry.NewRegistry()
	reg.Register(registry.NewFuncExecutor("slow", []string{"slow"}, func(ctx context.Context, task *models.Task) (interface{}, error) {
		select {
		case <-time.After(10 * time.Second):
			return "too late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}), "slow")
	e := newEngine(reg)

	task := models.NewTask("hang", "slow", nil, models.WithRetries(0), models.WithTimeout(10*time.Millisecond))
	start := time.Now()
	res, err := e.Execute(context.Background(), task)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "timed out")
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, models.FailedTaskStatus, task.Status)
}

func TestTimeoutIsRetryable(t *testing.T) {
	var calls int32
	reg := registry.NewRegistry()
	reg.Register(registry.NewFuncExecutor("slow", []string{"slow"}, func(ctx context.Context, task *models.Task) (interface{}, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return "recovered", nil
	}), "slow")
	e := newEngine(reg)

	task := models.NewTask("flaky-slow", "slow", nil, models.WithRetries(1), models.WithTimeout(20*time.Millisecond))
	res, err := e.Execute(context.Background(), task)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, "recovered", res.Data)
}

func TestCancellationProducesNoResult(t *testing.T) {
	reg := registry.NewRegistry()
	reg.Register(registry.NewFuncExecutor("slow", []string{"slow"}, func(ctx context.Context, task *models.Task) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), "slow")
	e := newEngine(reg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	task := models.NewTask("doomed", "slow", nil)
	res, err := e.Execute(ctx, task)

	assert.Equal(t, engine.ErrCancelled, err)
	assert.Nil(t, res)
	assert.Equal(t, models.CancelledTaskStatus, task.Status)
	assert.Nil(t, task.Result)
}

func TestCancelledBeforeStart(t *testing.T) {
	var ran int32
	reg := registry.NewRegistry()
	reg.Register(registry.NewFuncExecutor("calc", []string{"calc"}, func(ctx context.Context, task *models.Task) (interface{}, error) {
		atomic.AddInt32(&ran, 1)
		return nil, nil
	}), "calc")
	e := newEngine(reg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := models.NewTask("never", "calc", nil)
	res, err := e.Execute(ctx, task)

	assert.Equal(t, engine.ErrCancelled, err)
	assert.Nil(t, res)
	assert.Equal(t, models.CancelledTaskStatus, task.Status)
	assert.Equal(t, int32(0), atomic.LoadInt32(&ran))
}

func TestFirstRegisteredSelection(t *testing.T) {
	reg := registry.NewRegistry()
	reg.Register(registry.NewFuncExecutor("first", []string{"calc"}, func(ctx context.Context, task *models.Task) (interface{}, error) {
		return "first", nil
	}), "calc")
	reg.Register(registry.NewFuncExecutor("second", []string{"calc"}, func(ctx context.Context, task *models.Task) (interface{}, error) {
		return "second", nil
	}), "calc")
	e := newEngine(reg)

	for i := 0; i < 3; i++ {
		res, err := e.Execute(context.Background(), models.NewTask("pick", "calc", nil))
		require.NoError(t, err)
		assert.Equal(t, "first", res.Data)
	}
}

func TestRoundRobinSelection(t *testing.T) {
	reg := registry.NewRegistry()
	reg.Register(registry.NewFuncExecutor("first", []string{"calc"}, func(ctx context.Context, task *models.Task) (interface{}, error) {
		return "first", nil
	}), "calc")
	reg.Register(registry.NewFuncExecutor("second", []string{"calc"}, func(ctx context.Context, task *models.Task) (interface{}, error) {
		return "second", nil
	}), "calc")
	e := newEngine(reg, engine.WithSelection(engine.NewRoundRobin()))

	var picked []string
	for i := 0; i < 4; i++ {
		res, err := e.Execute(context.Background(), models.NewTask("pick", "calc", nil))
		require.NoError(t, err)
		picked = append(picked, res.Data.(string))
	}
	assert.Equal(t, []string{"first", "second", "first", "second"}, picked)
}

func TestBackoffDelaysRetries(t *testing.T) {
	var calls int32
	reg := registry.NewRegistry()
	reg.Register(registry.NewFuncExecutor("calc", []string{"calc"}, func(ctx context.Context, task *models.Task) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("nope")
	}), "calc")
	e := engine.NewEngine(reg, testLogger{}, engine.WithBackoff(engine.FixedBackoff(30*time.Millisecond)))

	task := models.NewTask("slow-retry", "calc", nil, models.WithRetries(2))
	start := time.Now()
	res, err := e.Execute(context.Background(), task)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	// two backoff delays of 30ms each
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
}
