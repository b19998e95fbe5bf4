package domain

import "time"

// TaskChangeType captures what changed in a history entry.
type TaskChangeType string

const (
	ChangeTypeCreated TaskChangeType = "CREATED"
	ChangeTypeContent TaskChangeType = "CONTENT_CHANGE"
	ChangeTypeStatus  TaskChangeType = "STATUS_CHANGE"
	ChangeTypeOwner   TaskChangeType = "OWNER_CHANGE"
)

// TaskHistory is an immutable audit trail entry.
type TaskHistory struct {
	ID         string
	TaskID     string
	ChangedBy  string
	ChangeType TaskChangeType
	OldValue   map[string]any
	NewValue   map[string]any
	CreatedAt  time.Time
}
