package models

import "time"

// Result is the outcome of running a task to a terminal state.
// Data is set iff Success; Error is set iff not Success.
// Attempts counts executor invocations; it is 0 only when the task failed
// before any executor ran (no capable executor registered).
type Result struct {
	Success       bool          `json:"success"`
	Data          interface{}   `json:"data,omitempty"`
	Error         string        `json:"error,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`
	Attempts      int           `json:"attempts"`
}

func SuccessResult(data interface{}, execTime time.Duration, attempts int) *Result {
	return &Result{Success: true, Data: data, ExecutionTime: execTime, Attempts: attempts}
}

func FailureResult(errMsg string, execTime time.Duration, attempts int) *Result {
	return &Result{Success: false, Error: errMsg, ExecutionTime: execTime, Attempts: attempts}
}
