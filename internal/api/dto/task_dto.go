package dto

import (
	"time"

	"github.com/spec-kit/task-service/internal/domain"
)

// TaskRequest is the create and update payload. UserID is honored only on update.
type TaskRequest struct {
	Title       string            `json:"title" form:"title"`
	Description string            `json:"description" form:"description"`
	Status      domain.TaskStatus `json:"status" form:"status"`
	UserID      string            `json:"user_id" form:"user_id"`
}

// ChangeUserRequest payload for PATCH /tasks/change_user.
type ChangeUserRequest struct {
	TaskID string `json:"task_id" form:"task_id"`
	UserID string `json:"user_id" form:"user_id"`
}

// ChangeStatusRequest payload for PATCH /tasks/change_status.
type ChangeStatusRequest struct {
	TaskID string            `json:"task_id" form:"task_id"`
	Status domain.TaskStatus `json:"status" form:"status"`
}

// TaskResponse representation.
type TaskResponse struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      domain.TaskStatus `json:"status"`
	UserID      string            `json:"user_id"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ListMeta describes the page of a listing.
type ListMeta struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

// TaskListResponse is the body of GET /tasks.
type TaskListResponse struct {
	Data []TaskResponse `json:"data"`
	Meta ListMeta       `json:"meta"`
}

// TaskHistoryResponse is one audit entry.
type TaskHistoryResponse struct {
	ID         string                `json:"id"`
	TaskID     string                `json:"task_id"`
	ChangedBy  string                `json:"changed_by"`
	ChangeType domain.TaskChangeType `json:"change_type"`
	OldValue   map[string]any        `json:"old_value"`
	NewValue   map[string]any        `json:"new_value"`
	CreatedAt  time.Time             `json:"created_at"`
}
