package engine_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joohnnie/mcp-agent/pkg/engine"
	"github.com/joohnnie/mcp-agent/pkg/models"
	"github.com/joohnnie/mcp-agent/pkg/registry"
)

func TestValidateWorkflowRejectsCycle(t *testing.T) {
	a := models.NewWorkflowStep("a", echoTasks(1), "b")
	b := models.NewWorkflowStep("b", echoTasks(1), "a")
	wf := models.NewWorkflow("cyclic", a, b)

	err := engine.ValidateWorkflow(wf)
	assert.Equal(t, engine.ErrCyclicDependency, err)
}

func TestValidateWorkflowRejectsUnknownDependency(t *testing.T) {
	s := models.NewWorkflowStep("only", echoTasks(1), "ghost")
	wf := models.NewWorkflow("dangling", s)

	err := engine.ValidateWorkflow(wf)
	var unknownErr *engine.UnknownDependencyError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "only", unknownErr.Step)
	assert.Equal(t, "ghost", unknownErr.DependsOn)
}

func TestValidateWorkflowRejectsDuplicateStepNames(t *testing.T) {
	s1 := models.NewWorkflowStep("dup", echoTasks(1))
	s2 := models.NewWorkflowStep("dup", echoTasks(1))
	wf := models.NewWorkflow("duplicated", s1, s2)

	err := engine.ValidateWorkflow(wf)
	var dupErr *engine.DuplicateStepError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "dup", dupErr.Step)
}

func TestExecuteWorkflowRejectsCycleWithoutRunningTasks(t *testing.T) {
	var ran int32
	reg := registry.NewRegistry()
	reg.Register(registry.NewFuncExecutor("echo", []string{"echo"}, func(ctx context.Context, task *models.Task) (interface{}, error) {
		atomic.AddInt32(&ran, 1)
		return nil, nil
	}), "echo")
	e := newEngine(reg)

	a := models.NewWorkflowStep("a", echoTasks(2), "b")
	b := models.NewWorkflowStep("b", echoTasks(2), "a")
	wf := models.NewWorkflow("cyclic", a, b)

	results, err := e.ExecuteWorkflow(context.Background(), wf)

	assert.Equal(t, engine.ErrCyclicDependency, err)
	assert.Nil(t, results)
	assert.Equal(t, int32(0), atomic.LoadInt32(&ran))
	for _, task := range wf.AllTasks() {
		assert.Equal(t, models.PendingTaskStatus, task.Status)
	}
}

func TestExecuteWorkflowHonorsDependencyOrder(t *testing.T) {
	var upstreamDone int32
	var observed int32
	reg := registry.NewRegistry()
	reg.Register(registry.NewFuncExecutor("up", []string{"up"}, func(ctx context.Context, task *models.Task) (interface{}, error) {
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&upstreamDone, 1)
		return "up", nil
	}), "up")
	reg.Register(registry.NewFuncExecutor("down", []string{"down"}, func(ctx context.Context, task *models.Task) (interface{}, error) {
		atomic.StoreInt32(&observed, atomic.LoadInt32(&upstreamDone))
		return "down", nil
	}), "down")
	e := newEngine(reg)

	s1 := models.NewWorkflowStep("s1", []*models.Task{
		models.NewTask("up-1", "up", nil, models.WithRetries(0)),
		models.NewTask("up-2", "up", nil, models.WithRetries(0)),
	})
	s1.MaxConcurrency = 2
	s2 := models.NewWorkflowStep("s2", []*models.Task{
		models.NewTask("down-1", "down", nil, models.WithRetries(0)),
	}, "s1")
	wf := models.NewWorkflow("ordered", s1, s2)

	results, err := e.ExecuteWorkflow(context.Background(), wf)

	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Len(t, results["s1"], 2)
	require.Len(t, results["s2"], 1)
	// both upstream tasks had finished before the downstream task ran
	assert.Equal(t, int32(2), atomic.LoadInt32(&observed))
}

func TestExecuteWorkflowIndependentStepsRunConcurrently(t *testing.T) {
	chA := make(chan struct{}, 1)
	chB := make(chan struct{}, 1)
	reg := registry.NewRegistry()
	reg.Register(registry.NewFuncExecutor("ping", []string{"ping"}, func(ctx context.Context, task *models.Task) (interface{}, error) {
		chA <- struct{}{}
		select {
		case <-chB:
			return "ping", nil
		case <-time.After(2 * time.Second):
			return nil, context.DeadlineExceeded
		}
	}), "ping")
	reg.Register(registry.NewFuncExecutor("pong", []string{"pong"}, func(ctx context.Context, task *models.Task) (interface{}, error) {
		chB <- struct{}{}
		select {
		case <-chA:
			return "pong", nil
		case <-time.After(2 * time.Second):
			return nil, context.DeadlineExceeded
		}
	}), "pong")
	e := newEngine(reg)

	a := models.NewWorkflowStep("a", []*models.Task{models.NewTask("ping", "ping", nil, models.WithRetries(0))})
	b := models.NewWorkflowStep("b", []*models.Task{models.NewTask("pong", "pong", nil, models.WithRetries(0))})
	wf := models.NewWorkflow("parallel", a, b)

	results, err := e.ExecuteWorkflow(context.Background(), wf)

	require.NoError(t, err)
	assert.True(t, results["a"][0].Success)
	assert.True(t, results["b"][0].Success)
}

func TestExecuteWorkflowProceedsPastFailureByDefault(t *testing.T) {
	reg := echoRegistry()
	e := newEngine(reg)

	s1 := models.NewWorkflowStep("s1", []*models.Task{
		models.NewTask("fails", "echo", map[string]interface{}{"fail": true}, models.WithRetries(0)),
	})
	s2 := models.NewWorkflowStep("s2", []*models.Task{
		models.NewTask("runs", "echo", map[string]interface{}{"value": "after"}, models.WithRetries(0)),
	}, "s1")
	wf := models.NewWorkflow("best-effort", s1, s2)

	results, err := e.ExecuteWorkflow(context.Background(), wf)

	require.NoError(t, err)
	assert.False(t, results["s1"][0].Success)
	require.NotNil(t, results["s2"][0])
	assert.True(t, results["s2"][0].Success)
	assert.Equal(t, "after", results["s2"][0].Data)
}

func TestExecuteWorkflowBlockOnFailureSkipsDownstream(t *testing.T) {
	reg := echoRegistry()
	e := newEngine(reg)

	s1 := models.NewWorkflowStep("s1", []*models.Task{
		models.NewTask("fails", "echo", map[string]interface{}{"fail": true}, models.WithRetries(0)),
	})
	s2 := models.NewWorkflowStep("s2", []*models.Task{
		models.NewTask("skipped", "echo", map[string]interface{}{"value": "never"}, models.WithRetries(0)),
	}, "s1")
	s3 := models.NewWorkflowStep("s3", []*models.Task{
		models.NewTask("also-skipped", "echo", map[string]interface{}{"value": "never"}, models.WithRetries(0)),
	}, "s2")
	wf := models.NewWorkflow("strict", s1, s2, s3)

	results, err := e.ExecuteWorkflow(context.Background(), wf, engine.WithBlockOnFailure())

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.False(t, results["s1"][0].Success)
	assert.Nil(t, results["s2"][0])
	assert.Nil(t, results["s3"][0])
	assert.Equal(t, models.CancelledTaskStatus, s2.Tasks[0].Status)
	assert.Equal(t, models.CancelledTaskStatus, s3.Tasks[0].Status)
}

func TestExecuteWorkflowResultsAlignedPerStep(t *testing.T) {
	e := newEngine(echoRegistry())

	s := models.NewWorkflowStep("only", echoTasks(4))
	s.MaxConcurrency = 4
	wf := models.NewWorkflow("aligned", s)

	results, err := e.ExecuteWorkflow(context.Background(), wf)

	require.NoError(t, err)
	require.Len(t, results["only"], 4)
	for i, res := range results["only"] {
		require.NotNil(t, res)
		assert.Equal(t, i, res.Data)
	}
}

func TestExecuteWorkflowCancellation(t *testing.T) {
	reg := registry.NewRegistry()
	reg.Register(registry.NewFuncExecutor("slow", []string{"slow"}, func(ctx context.Context, task *models.Task) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), "slow")
	e := newEngine(reg)

	s := models.NewWorkflowStep("hang", []*models.Task{models.NewTask("hang", "slow", nil, models.WithRetries(0))})
	wf := models.NewWorkflow("cancelled", s)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	results, err := e.ExecuteWorkflow(ctx, wf)

	assert.Equal(t, engine.ErrCancelled, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.CancelledTaskStatus, s.Tasks[0].Status)
}
