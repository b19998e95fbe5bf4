package events

import (
	"time"

	"github.com/spec-kit/task-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTaskCreated       EventType = "task_created"
	EventTaskUpdated       EventType = "task_updated"
	EventTaskStatusChanged EventType = "task_status_changed"
	EventTaskOwnerChanged  EventType = "task_owner_changed"
	EventTaskDeleted       EventType = "task_deleted"
)

// AllEventTypes lists every event a task mutation can emit.
var AllEventTypes = []EventType{
	EventTaskCreated,
	EventTaskUpdated,
	EventTaskStatusChanged,
	EventTaskOwnerChanged,
	EventTaskDeleted,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TaskID    string      `json:"task_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TaskCreatedPayload payload.
type TaskCreatedPayload struct {
	Title  string            `json:"title"`
	Status domain.TaskStatus `json:"status"`
	UserID string            `json:"user_id"`
}

// TaskUpdatedPayload lists the fields an update touched.
type TaskUpdatedPayload struct {
	Fields []string `json:"fields"`
}

// TaskStatusChangedPayload payload.
type TaskStatusChangedPayload struct {
	OldStatus domain.TaskStatus `json:"old_status"`
	NewStatus domain.TaskStatus `json:"new_status"`
}

// TaskOwnerChangedPayload payload.
type TaskOwnerChangedPayload struct {
	OldUserID string `json:"old_user_id"`
	NewUserID string `json:"new_user_id"`
}

// TaskDeletedPayload payload.
type TaskDeletedPayload struct {
	Title  string `json:"title"`
	UserID string `json:"user_id"`
}
