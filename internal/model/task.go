package model

import "time"

// TaskStatus represents the current state of an analysis task.
type TaskStatus string

const (
	TaskStatusInitializing      TaskStatus = "initializing"
	TaskStatusProcessing        TaskStatus = "processing"
	TaskStatusCompleted         TaskStatus = "completed"
	TaskStatusFailed            TaskStatus = "failed"
	TaskStatusFailedZimasSearch TaskStatus = "failed_zimas_search"
	TaskStatusErrorZimasSearch  TaskStatus = "error_zimas_search"
)

// IsActive reports whether a task in this status still counts against the
// admission cap.
func (s TaskStatus) IsActive() bool {
	return s == TaskStatusInitializing || s == TaskStatusProcessing
}

// IsTerminal reports whether the status ends a task's lifecycle.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusFailedZimasSearch, TaskStatusErrorZimasSearch:
		return true
	default:
		return false
	}
}

// Task is one analysis request in flight. Result is set only once the task
// reaches a terminal status.
type Task struct {
	ID          string     `json:"analysis_id" yaml:"analysis_id"`
	Address     string     `json:"address" yaml:"address"`
	Status      TaskStatus `json:"status" yaml:"status"`
	Progress    int        `json:"progress" yaml:"progress"`
	CurrentStep string     `json:"current_step" yaml:"current_step"`
	Result      *Envelope  `json:"result,omitempty" yaml:"result,omitempty"`
	Error       string     `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" yaml:"updated_at"`
}
