package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-service/internal/api/dto"
	"github.com/spec-kit/task-service/internal/service"
)

// TasksHandler manages task endpoints.
type TasksHandler struct {
	service *service.TaskService
}

// NewTasksHandler constructs handler.
func NewTasksHandler(taskService *service.TaskService) *TasksHandler {
	return &TasksHandler{service: taskService}
}

// ListTasks GET /tasks?filter=&sort=&page=.
func (h *TasksHandler) ListTasks(c *fiber.Ctx) error {
	if _, err := currentPrincipal(c); err != nil {
		return err
	}
	page, err := h.service.ListTasks(c.UserContext(), service.TaskListInput{
		Filter: c.Query("filter"),
		Sort:   c.Query("sort"),
		Page:   c.QueryInt("page", 1),
	})
	if err != nil {
		return err
	}

	items := make([]dto.TaskResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, taskResponse(&page.Items[i]))
	}
	return c.JSON(dto.TaskListResponse{
		Data: items,
		Meta: dto.ListMeta{
			CurrentPage: page.Page,
			PerPage:     page.PerPage,
			Total:       page.Total,
			LastPage:    page.LastPage,
		},
	})
}

// CreateTask POST /tasks. Any user_id in the payload is ignored.
func (h *TasksHandler) CreateTask(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.TaskRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	task, err := h.service.CreateTask(c.UserContext(), principal.User, service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": taskResponse(task)})
}

// GetTask GET /tasks/:id.
func (h *TasksHandler) GetTask(c *fiber.Ctx) error {
	if _, err := currentPrincipal(c); err != nil {
		return err
	}
	task, err := h.service.GetTask(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task)})
}

// UpdateTask PUT/PATCH /tasks/:id.
func (h *TasksHandler) UpdateTask(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.TaskRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	task, err := h.service.UpdateTask(c.UserContext(), principal.User, c.Params("id"), service.TaskUpdateInput{
		TaskInput: service.TaskInput{
			Title:       req.Title,
			Description: req.Description,
			Status:      req.Status,
		},
		UserID: req.UserID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": taskResponse(task)})
}

// DeleteTask DELETE /tasks/:id.
func (h *TasksHandler) DeleteTask(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	if _, err := h.service.DeleteTask(c.UserContext(), principal.User, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ChangeUser PATCH /tasks/change_user.
func (h *TasksHandler) ChangeUser(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ChangeUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	task, err := h.service.ChangeUser(c.UserContext(), principal.User, req.TaskID, req.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task)})
}

// ChangeStatus PATCH /tasks/change_status.
func (h *TasksHandler) ChangeStatus(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ChangeStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	task, err := h.service.ChangeStatus(c.UserContext(), principal.User, req.TaskID, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task)})
}

// History GET /tasks/:id/history.
func (h *TasksHandler) History(c *fiber.Ctx) error {
	if _, err := currentPrincipal(c); err != nil {
		return err
	}
	entries, err := h.service.TaskHistory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.TaskHistoryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, taskHistoryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
