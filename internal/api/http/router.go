package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-service/internal/api/http/handlers"
	"github.com/spec-kit/task-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Auth           *handlers.AuthHandler
	Tasks          *handlers.TasksHandler
	AuthMiddleware *auth.AuthMiddleware
	// RateLimit guards the public credential endpoints; nil disables it.
	RateLimit fiber.Handler
}

// RegisterRoutes wires HTTP routes. The fallback must stay last.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Metrics)
	}

	limited := cfg.RateLimit
	if limited == nil {
		limited = func(c *fiber.Ctx) error { return c.Next() }
	}
	app.Post("/register", limited, cfg.Auth.Register)
	app.Post("/login", limited, cfg.Auth.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/user", cfg.Auth.Me)
	protected.Post("/logout", cfg.Auth.Logout)

	// literal routes before /tasks/:id so "change_user" is not taken as an id
	protected.Patch("/tasks/change_user", cfg.Tasks.ChangeUser)
	protected.Patch("/tasks/change_status", cfg.Tasks.ChangeStatus)

	protected.Get("/tasks", cfg.Tasks.ListTasks)
	protected.Post("/tasks", cfg.Tasks.CreateTask)
	protected.Get("/tasks/:id", cfg.Tasks.GetTask)
	protected.Put("/tasks/:id", cfg.Tasks.UpdateTask)
	protected.Patch("/tasks/:id", cfg.Tasks.UpdateTask)
	protected.Delete("/tasks/:id", cfg.Tasks.DeleteTask)
	protected.Get("/tasks/:id/history", cfg.Tasks.History)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Route Not Found"})
	})
}
