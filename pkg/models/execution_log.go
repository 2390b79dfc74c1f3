package models

import "time"

// ExecutionLog tracks the history of task attempts for auditing.
type ExecutionLog struct {
	ID         int64     `json:"id" db:"id"`
	TaskID     string    `json:"task_id" db:"task_id"`
	WorkflowID int64     `json:"workflow_id" db:"workflow_id"`
	Attempt    int       `json:"attempt" db:"attempt"`
	Status     string    `json:"status" db:"status"`
	Message    string    `json:"message,omitempty" db:"message"`
	LoggedAt   time.Time `json:"logged_at" db:"logged_at"`
}
