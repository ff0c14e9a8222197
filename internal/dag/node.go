package dag

import "time"

// NodeStatus represents the execution status of a task within one run
type NodeStatus int

const (
	// StatusPending indicates the task is waiting to be executed
	StatusPending NodeStatus = iota
	// StatusRunning indicates the task is currently being executed
	StatusRunning
	// StatusCompleted indicates the task has completed successfully
	StatusCompleted
	// StatusFailed indicates the task failed during execution
	StatusFailed
	// StatusSkipped indicates a dependency did not complete
	StatusSkipped
	// StatusCancelled indicates the run stopped before the task was launched
	StatusCancelled
)

// String returns a string representation of the NodeStatus
func (s NodeStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MarshalText lets statuses appear by name in JSON output
func (s NodeStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TaskResult contains the result of a single task execution
type TaskResult struct {
	Name   string
	Stage  int
	Status NodeStatus

	// Error is the failure of the task itself, or the reason it was skipped
	Error error

	StartTime *time.Time
	EndTime   *time.Time
	Duration  time.Duration
}
