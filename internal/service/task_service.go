package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/events"
	"github.com/spec-kit/task-service/internal/repository"
	apperrors "github.com/spec-kit/task-service/pkg/util"
)

// TaskService coordinates task workflows.
type TaskService struct {
	tasks      repository.TaskRepository
	users      repository.UserRepository
	history    repository.TaskHistoryRepository
	tx         repository.TxRunner
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TaskDependencies bundles repositories for task service.
type TaskDependencies struct {
	TaskRepo    repository.TaskRepository
	UserRepo    repository.UserRepository
	HistoryRepo repository.TaskHistoryRepository
	// Tx makes each task write and its history entry atomic. Without it the
	// two are written one after the other with no rollback.
	Tx         repository.TxRunner
	Dispatcher events.Dispatcher
	Logger      *zap.Logger
}

// TaskInput carries the editable task fields.
type TaskInput struct {
	Title       string
	Description string
	Status      domain.TaskStatus
}

// TaskUpdateInput is a full update; a non-empty UserID reassigns the task.
type TaskUpdateInput struct {
	TaskInput
	UserID string
}

// TaskListInput holds raw listing parameters as received from the caller.
type TaskListInput struct {
	Filter string
	Sort   string
	Page   int
}

// TaskPage is one page of a task listing.
type TaskPage struct {
	Items    []domain.Task
	Total    int
	Page     int
	PerPage  int
	LastPage int
}

// NewTaskService constructs the service.
func NewTaskService(deps TaskDependencies) *TaskService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tx := deps.Tx
	if tx == nil {
		tx = directWriter{TaskWriter: repository.TaskWriter{Tasks: deps.TaskRepo, History: deps.HistoryRepo}}
	}
	return &TaskService{
		tasks:      deps.TaskRepo,
		users:      deps.UserRepo,
		history:    deps.HistoryRepo,
		tx:         tx,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateTask creates a task owned by the actor.
func (s *TaskService) CreateTask(ctx context.Context, actor *domain.User, input TaskInput) (*domain.Task, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	input = input.trimmed()
	if err := input.validate(); err != nil {
		return nil, err
	}

	task := &domain.Task{
		ID:          uuid.NewString(),
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		UserID:      actor.ID,
	}
	err := s.tx.WithinTx(ctx, func(w repository.TaskWriter) error {
		if err := w.Tasks.Create(ctx, task); err != nil {
			return err
		}
		return recordHistory(ctx, w.History, actor, task.ID, domain.ChangeTypeCreated, nil, taskSnapshot(task))
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventTaskCreated,
		TaskID:  task.ID,
		ActorID: actor.ID,
		Payload: events.TaskCreatedPayload{
			Title:  task.Title,
			Status: task.Status,
			UserID: task.UserID,
		},
	})
	return task, nil
}

// GetTask fetches a single task.
func (s *TaskService) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, taskLookupError(err, id)
	}
	return task, nil
}

// ListTasks returns one page of tasks. Malformed filters are rejected; unknown
// sort tokens are ignored.
func (s *TaskService) ListTasks(ctx context.Context, input TaskListInput) (*TaskPage, error) {
	filter, err := repository.ParseTaskFilter(input.Filter)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid filter",
			map[string]any{"filter": err.Error()})
	}

	page := input.Page
	if page < 1 {
		page = 1
	}
	query := repository.TaskQuery{
		Filter:   filter,
		Sort:     repository.ParseTaskSort(input.Sort),
		Page:     page,
		PageSize: repository.DefaultPageSize,
	}

	items, total, err := s.tasks.List(ctx, query)
	if err != nil {
		return nil, err
	}
	return &TaskPage{
		Items:    items,
		Total:    total,
		Page:     page,
		PerPage:  query.PageSize,
		LastPage: lastPage(total, query.PageSize),
	}, nil
}

// UpdateTask replaces title, description and status and optionally the owner.
// Any authenticated user may update any task.
func (s *TaskService) UpdateTask(ctx context.Context, actor *domain.User, id string, input TaskUpdateInput) (*domain.Task, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	input.TaskInput = input.TaskInput.trimmed()
	input.UserID = strings.TrimSpace(input.UserID)
	if err := input.validate(); err != nil {
		return nil, err
	}

	task, err := s.tasks.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, taskLookupError(err, id)
	}
	if input.UserID != "" {
		if input.UserID, err = s.resolveUser(ctx, input.UserID); err != nil {
			return nil, err
		}
	}

	before := taskSnapshot(task)
	task.Title = input.Title
	task.Description = input.Description
	task.Status = input.Status
	if input.UserID != "" {
		task.UserID = input.UserID
	}
	oldValue, newValue := diffSnapshots(before, taskSnapshot(task))
	err = s.tx.WithinTx(ctx, func(w repository.TaskWriter) error {
		if err := w.Tasks.Update(ctx, task); err != nil {
			return taskLookupError(err, id)
		}
		return recordHistory(ctx, w.History, actor, task.ID, domain.ChangeTypeContent, oldValue, newValue)
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventTaskUpdated,
		TaskID:  task.ID,
		ActorID: actor.ID,
		Payload: events.TaskUpdatedPayload{Fields: changedFields(newValue)},
	})
	return task, nil
}

// DeleteTask removes a task and returns its last state.
func (s *TaskService) DeleteTask(ctx context.Context, actor *domain.User, id string) (*domain.Task, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	task, err := s.tasks.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, taskLookupError(err, id)
	}
	if err := s.tasks.Delete(ctx, task.ID); err != nil {
		// deleted concurrently between the read and the delete
		if errors.Is(err, repository.ErrNotFound) {
			return nil, taskLookupError(err, id)
		}
		return nil, fmt.Errorf("delete task %s: %w", task.ID, err)
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventTaskDeleted,
		TaskID:  task.ID,
		ActorID: actor.ID,
		Payload: events.TaskDeletedPayload{Title: task.Title, UserID: task.UserID},
	})
	return task, nil
}

// ChangeUser reassigns a task to another existing user.
func (s *TaskService) ChangeUser(ctx context.Context, actor *domain.User, taskID, userID string) (*domain.Task, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	taskID = strings.TrimSpace(taskID)
	userID = strings.TrimSpace(userID)

	details := map[string]any{}
	if taskID == "" {
		details["task_id"] = "is required"
	}
	if userID == "" {
		details["user_id"] = "is required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid change user payload", details)
	}

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, taskLookupError(err, taskID)
	}
	if userID, err = s.resolveUser(ctx, userID); err != nil {
		return nil, err
	}

	oldUserID := task.UserID
	task.UserID = userID
	err = s.tx.WithinTx(ctx, func(w repository.TaskWriter) error {
		if err := w.Tasks.Update(ctx, task); err != nil {
			return taskLookupError(err, taskID)
		}
		return recordHistory(ctx, w.History, actor, task.ID, domain.ChangeTypeOwner,
			map[string]any{"user_id": oldUserID},
			map[string]any{"user_id": userID})
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventTaskOwnerChanged,
		TaskID:  task.ID,
		ActorID: actor.ID,
		Payload: events.TaskOwnerChangedPayload{OldUserID: oldUserID, NewUserID: userID},
	})
	return task, nil
}

// ChangeStatus sets a task's status. Any status may follow any other.
func (s *TaskService) ChangeStatus(ctx context.Context, actor *domain.User, taskID string, status domain.TaskStatus) (*domain.Task, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	taskID = strings.TrimSpace(taskID)

	details := map[string]any{}
	if taskID == "" {
		details["task_id"] = "is required"
	}
	if msg := statusProblem(status); msg != "" {
		details["status"] = msg
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid change status payload", details)
	}

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, taskLookupError(err, taskID)
	}

	oldStatus := task.Status
	task.Status = status
	err = s.tx.WithinTx(ctx, func(w repository.TaskWriter) error {
		if err := w.Tasks.Update(ctx, task); err != nil {
			return taskLookupError(err, taskID)
		}
		return recordHistory(ctx, w.History, actor, task.ID, domain.ChangeTypeStatus,
			map[string]any{"status": string(oldStatus)},
			map[string]any{"status": string(status)})
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventTaskStatusChanged,
		TaskID:  task.ID,
		ActorID: actor.ID,
		Payload: events.TaskStatusChangedPayload{OldStatus: oldStatus, NewStatus: status},
	})
	return task, nil
}

// TaskHistory lists the audit trail of an existing task, oldest first.
func (s *TaskService) TaskHistory(ctx context.Context, id string) ([]domain.TaskHistory, error) {
	task, err := s.tasks.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, taskLookupError(err, id)
	}
	if s.history == nil {
		return []domain.TaskHistory{}, nil
	}
	return s.history.ListByTask(ctx, task.ID)
}

// resolveUser returns the stored id of an existing user.
func (s *TaskService) resolveUser(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperrors.NewValidationError("invalid user",
				map[string]any{"user_id": "the selected user does not exist"})
		}
		return "", err
	}
	return user.ID, nil
}

// directWriter applies writes without a transaction.
type directWriter struct {
	repository.TaskWriter
}

func (d directWriter) WithinTx(_ context.Context, fn func(repository.TaskWriter) error) error {
	return fn(d.TaskWriter)
}

func recordHistory(ctx context.Context, history repository.TaskHistoryRepository, actor *domain.User, taskID string, changeType domain.TaskChangeType, oldValue, newValue map[string]any) error {
	if history == nil {
		return nil
	}
	if oldValue == nil {
		oldValue = map[string]any{}
	}
	if newValue == nil {
		newValue = map[string]any{}
	}
	entry := &domain.TaskHistory{
		ID:         uuid.NewString(),
		TaskID:     taskID,
		ChangedBy:  actor.ID,
		ChangeType: changeType,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
	if err := history.Create(ctx, entry); err != nil {
		return fmt.Errorf("record %s history for task %s: %w", changeType, taskID, err)
	}
	return nil
}

func (s *TaskService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed",
			zap.String("event_type", string(event.Type)),
			zap.String("task_id", event.TaskID),
			zap.Error(err))
	}
}

func (in TaskInput) trimmed() TaskInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Status = domain.TaskStatus(strings.TrimSpace(string(in.Status)))
	return in
}

func (in TaskInput) validate() error {
	details := map[string]any{}
	if in.Title == "" {
		details["title"] = "is required"
	}
	if in.Description == "" {
		details["description"] = "is required"
	}
	if msg := statusProblem(in.Status); msg != "" {
		details["status"] = msg
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid task payload", details)
	}
	return nil
}

func statusProblem(status domain.TaskStatus) string {
	switch {
	case status == "":
		return "is required"
	case !status.Valid():
		return "must be one of View, In Progress, Done"
	}
	return ""
}

func taskLookupError(err error, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("task", map[string]any{"id": id})
	}
	return err
}

func taskSnapshot(task *domain.Task) map[string]any {
	return map[string]any{
		"title":       task.Title,
		"description": task.Description,
		"status":      string(task.Status),
		"user_id":     task.UserID,
	}
}

// diffSnapshots keeps only the keys whose values differ.
func diffSnapshots(before, after map[string]any) (map[string]any, map[string]any) {
	oldValue := map[string]any{}
	newValue := map[string]any{}
	for key, was := range before {
		if now := after[key]; now != was {
			oldValue[key] = was
			newValue[key] = now
		}
	}
	return oldValue, newValue
}

func changedFields(values map[string]any) []string {
	fields := make([]string, 0, len(values))
	for _, key := range []string{"title", "description", "status", "user_id"} {
		if _, ok := values[key]; ok {
			fields = append(fields, key)
		}
	}
	return fields
}

func lastPage(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}
