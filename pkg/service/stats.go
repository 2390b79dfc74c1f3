package service

import (
	"time"

	"github.com/pkg/errors"

	"github.com/joohnnie/mcp-agent/pkg/models"
)

// Statistics aggregates the recorded outcomes of one workflow run.
type Statistics struct {
	WorkflowID       int64         `json:"workflow_id"`
	TotalTasks       int           `json:"total_tasks"`
	Completed        int           `json:"completed"`
	Failed           int           `json:"failed"`
	Cancelled        int           `json:"cancelled"`
	TotalAttempts    int           `json:"total_attempts"`
	SuccessRate      float64       `json:"success_rate"`
	AvgExecutionTime time.Duration `json:"avg_execution_time"`
}

// Statistics computes aggregate figures from the task records of a run.
func (s *Service) Statistics(workflowID int64) (Statistics, error) {
	records, err := s.store.ListTasks(workflowID)
	if err != nil {
		return Statistics{}, errors.Wrapf(err, "failed to list tasks for workflow %d", workflowID)
	}

	stats := Statistics{WorkflowID: workflowID, TotalTasks: len(records)}
	var totalTime time.Duration
	timed := 0
	for _, rec := range records {
		stats.TotalAttempts += rec.Attempts
		switch rec.Status {
		case models.CompletedTaskStatus:
			stats.Completed++
		case models.FailedTaskStatus:
			stats.Failed++
		case models.CancelledTaskStatus:
			stats.Cancelled++
		}
		if rec.StartedAt != nil && rec.FinishedAt != nil {
			totalTime += rec.FinishedAt.Sub(*rec.StartedAt)
			timed++
		}
	}
	if stats.TotalTasks > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(stats.TotalTasks) * 100
	}
	if timed > 0 {
		stats.AvgExecutionTime = totalTime / time.Duration(timed)
	}
	return stats, nil
}
