package engine

import (
	"context"

	"github.com/joohnnie/mcp-agent/pkg/models"
)

type workflowConfig struct {
	blockOnFailure bool
}

type WorkflowOption func(*workflowConfig)

// WithBlockOnFailure skips steps downstream of a step that did not complete
// all of its tasks successfully. Skipped steps end with every task CANCELLED.
// The default is to proceed regardless: dependency satisfaction is about
// completion, not success.
func WithBlockOnFailure() WorkflowOption {
	return func(c *workflowConfig) {
		c.blockOnFailure = true
	}
}

// ValidateWorkflow rejects structural problems before any task starts:
// duplicate step names, dependencies on unknown steps, and cycles.
func ValidateWorkflow(wf *models.Workflow) error {
	names := make(map[string]struct{}, len(wf.Steps))
	for _, s := range wf.Steps {
		if _, dup := names[s.Name]; dup {
			return &DuplicateStepError{Step: s.Name}
		}
		names[s.Name] = struct{}{}
	}
	for _, s := range wf.Steps {
		for _, dep := range s.DependsOn {
			if _, ok := names[dep]; !ok {
				return &UnknownDependencyError{Step: s.Name, DependsOn: dep}
			}
		}
	}

	// Kahn's algorithm; anything left unsorted sits on a cycle.
	inDegree := make(map[string]int, len(wf.Steps))
	dependents := make(map[string][]string, len(wf.Steps))
	for _, s := range wf.Steps {
		inDegree[s.Name] = len(s.DependsOn)
		for _, dep := range s.DependsOn {
			dependents[dep] = append(dependents[dep], s.Name)
		}
	}
	var queue []string
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}
	sorted := 0
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		sorted++
		for _, next := range dependents[curr] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if sorted != len(wf.Steps) {
		return ErrCyclicDependency
	}
	return nil
}

type stepOutcome struct {
	name    string
	results []*models.Result
	err     error
}

// ExecuteWorkflow runs the workflow's steps honoring the dependency partial
// order. Steps whose dependencies have all finished run concurrently with
// each other; each step's own tasks go through the batch runner with the
// step's declared concurrency (0 means sequential).
//
// The returned map holds one index-aligned result slice per step. Structural
// errors are rejected before any task starts.
func (e *Engine) ExecuteWorkflow(ctx context.Context, wf *models.Workflow, opts ...WorkflowOption) (map[string][]*models.Result, error) {
	var cfg workflowConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := ValidateWorkflow(wf); err != nil {
		return nil, err
	}
	e.logger.Infof("Starting workflow %q with %d steps", wf.Name, len(wf.Steps))

	all := make(map[string][]*models.Result, len(wf.Steps))
	started := make(map[string]bool, len(wf.Steps))
	finished := make(map[string]bool, len(wf.Steps))
	// Steps that failed a task or were skipped; poisons dependents when
	// blockOnFailure is set.
	tainted := make(map[string]bool)

	done := make(chan stepOutcome)
	inFlight := 0
	cancelled := false

	depsFinished := func(s *models.WorkflowStep) bool {
		for _, dep := range s.DependsOn {
			if !finished[dep] {
				return false
			}
		}
		return true
	}
	depsTainted := func(s *models.WorkflowStep) bool {
		for _, dep := range s.DependsOn {
			if tainted[dep] {
				return true
			}
		}
		return false
	}

	for len(finished) < len(wf.Steps) {
		for _, s := range wf.Steps {
			if started[s.Name] || !depsFinished(s) {
				continue
			}
			started[s.Name] = true

			if cfg.blockOnFailure && depsTainted(s) {
				e.logger.Infof("Workflow %q: skipping step %q after upstream failure", wf.Name, s.Name)
				e.cancelRemaining(s.Tasks)
				finished[s.Name] = true
				tainted[s.Name] = true
				all[s.Name] = make([]*models.Result, len(s.Tasks))
				continue
			}

			e.logger.Infof("Workflow %q: starting step %q (%d tasks)", wf.Name, s.Name, len(s.Tasks))
			inFlight++
			go func(s *models.WorkflowStep) {
				var results []*models.Result
				var err error
				if s.MaxConcurrency > 0 {
					results, err = e.RunConcurrent(ctx, s.Tasks, s.MaxConcurrency)
				} else {
					results, err = e.RunSequential(ctx, s.Tasks)
				}
				done <- stepOutcome{name: s.Name, results: results, err: err}
			}(s)
		}

		if inFlight == 0 {
			continue
		}

		out := <-done
		inFlight--
		finished[out.name] = true
		all[out.name] = out.results
		if out.err == ErrCancelled {
			cancelled = true
		}
		for _, res := range out.results {
			if res == nil || !res.Success {
				tainted[out.name] = true
				break
			}
		}
		e.logger.Infof("Workflow %q: step %q finished", wf.Name, out.name)
	}

	if cancelled || ctx.Err() != nil {
		return all, ErrCancelled
	}
	e.logger.Infof("Workflow %q completed", wf.Name)
	return all, nil
}
