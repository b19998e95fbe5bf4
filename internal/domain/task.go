package domain

import "time"

// TaskStatus enumerates the fixed set of task states. Any status may move to any other.
type TaskStatus string

const (
	TaskStatusView       TaskStatus = "View"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusDone       TaskStatus = "Done"
)

// TaskStatuses lists every accepted status in display order.
var TaskStatuses = []TaskStatus{TaskStatusView, TaskStatusInProgress, TaskStatusDone}

// Valid reports whether s is a member of the status enumeration.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusView, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// Task is a unit of work owned by a single user.
type Task struct {
	ID          string
	Title       string
	Description string
	Status      TaskStatus
	UserID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
