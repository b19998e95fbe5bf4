package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/task-service/internal/api/http/handlers"
	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/config"
	"github.com/spec-kit/task-service/internal/events"
	"github.com/spec-kit/task-service/internal/observability"
	"github.com/spec-kit/task-service/internal/repository"
	"github.com/spec-kit/task-service/internal/service"
)

type testServer struct {
	app     *fiber.App
	metrics *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	store := repository.NewMemoryStore()

	authService := service.NewAuthService(config.AuthConfig{
		JWTSecret:             "router-test",
		AccessTokenTTLMinutes: 30,
		BcryptCost:            bcrypt.MinCost,
	}, service.AuthDependencies{UserRepo: store.Users(), TokenRepo: store.Tokens(), Logger: logger})
	taskService := service.NewTaskService(service.TaskDependencies{
		TaskRepo:    store.Tasks(),
		UserRepo:    store.Users(),
		HistoryRepo: store.History(),
		Tx:          store,
		Dispatcher:  events.NewInMemoryDispatcher(),
		Logger:      logger,
	})

	metrics := observability.NewMetrics()
	app := NewApp("task-service-test", logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("task-service-test", "test", nil, nil),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Tasks:          handlers.NewTasksHandler(taskService),
		AuthMiddleware: auth.NewAuthMiddleware(authService),
	})
	return &testServer{app: app, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) == 0 {
		return resp.StatusCode, nil
	}
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	return resp.StatusCode, decoded
}

func (s *testServer) registerAndLogin(t *testing.T, email string) (string, string) {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/register", "", map[string]string{
		"first_name": "Test", "last_name": "User", "email": email, "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, status, body)
	userID := body["data"].(map[string]any)["id"].(string)

	status, body = s.do(t, http.MethodPost, "/login", "", map[string]string{"email": email, "password": "secret1"})
	require.Equal(t, http.StatusOK, status, body)
	return body["token"].(string), userID
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestAuthEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/register", "", map[string]string{
		"first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, status)
	user := body["data"].(map[string]any)
	assert.Equal(t, "ada@example.com", user["email"])
	assert.NotContains(t, user, "password_hash")
	assert.NotContains(t, user, "password")

	status, body = s.do(t, http.MethodPost, "/register", "", map[string]string{
		"first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(body))

	status, body = s.do(t, http.MethodPost, "/register", "", map[string]string{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, status)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Contains(t, details, "first_name")
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "password")

	status, body = s.do(t, http.MethodPost, "/login", "", map[string]string{"email": "ada@example.com", "password": "wrong1"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, _ = s.do(t, http.MethodPost, "/login", "", map[string]string{"email": "ghost@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodPost, "/login", "", map[string]string{"email": "ada@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Bearer", body["token_type"])
	assert.NotEmpty(t, body["expires_at"])
	token := body["token"].(string)

	status, body = s.do(t, http.MethodGet, "/user", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ada@example.com", body["data"].(map[string]any)["email"])

	status, _ = s.do(t, http.MethodPost, "/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = s.do(t, http.MethodGet, "/user", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestTaskRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t)
	routes := []struct{ method, path string }{
		{http.MethodGet, "/tasks"},
		{http.MethodPost, "/tasks"},
		{http.MethodGet, "/tasks/" + uuid.NewString()},
		{http.MethodPut, "/tasks/" + uuid.NewString()},
		{http.MethodDelete, "/tasks/" + uuid.NewString()},
		{http.MethodPatch, "/tasks/change_user"},
		{http.MethodPatch, "/tasks/change_status"},
	}
	for _, route := range routes {
		status, body := s.do(t, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, status, route.path)
		assert.Equal(t, "UNAUTHORIZED", errorCode(body))

		status, _ = s.do(t, route.method, route.path, "not-a-token", nil)
		assert.Equal(t, http.StatusUnauthorized, status, route.path)
	}
}

func TestTaskLifecycle(t *testing.T) {
	s := newTestServer(t)
	token, userID := s.registerAndLogin(t, "owner@example.com")
	_, otherID := s.registerAndLogin(t, "other@example.com")

	status, body := s.do(t, http.MethodPost, "/tasks", token, map[string]string{
		"title": "Ship it", "description": "release v1", "status": "View", "user_id": otherID,
	})
	require.Equal(t, http.StatusCreated, status, body)
	task := body["data"].(map[string]any)
	taskID := task["id"].(string)
	assert.Equal(t, userID, task["user_id"])

	status, body = s.do(t, http.MethodPost, "/tasks", token, map[string]string{"title": "x", "description": "y", "status": "Later"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, http.MethodGet, "/tasks/"+taskID, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Ship it", body["data"].(map[string]any)["title"])

	status, body = s.do(t, http.MethodGet, "/tasks/urn:uuid:"+strings.ToUpper(taskID), token, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, taskID, body["data"].(map[string]any)["id"])

	status, _ = s.do(t, http.MethodGet, "/tasks?filter=id:urn:uuid:"+taskID, token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPut, "/tasks/"+taskID, token, map[string]string{
		"title": "Ship it now", "description": "release v1", "status": "In Progress",
	})
	require.Equal(t, http.StatusAccepted, status, body)
	assert.Equal(t, "In Progress", body["data"].(map[string]any)["status"])

	status, body = s.do(t, http.MethodPatch, "/tasks/change_status", token, map[string]string{"task_id": taskID, "status": "Done"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Done", body["data"].(map[string]any)["status"])

	status, body = s.do(t, http.MethodPatch, "/tasks/change_user", token, map[string]string{"task_id": taskID, "user_id": otherID})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, otherID, body["data"].(map[string]any)["user_id"])

	status, body = s.do(t, http.MethodPatch, "/tasks/change_user", token, map[string]string{"task_id": uuid.NewString(), "user_id": otherID})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, body = s.do(t, http.MethodPatch, "/tasks/change_status", token, map[string]string{"task_id": uuid.NewString()})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodGet, "/tasks/"+taskID+"/history", token, nil)
	require.Equal(t, http.StatusOK, status)
	history := body["data"].([]any)
	require.Len(t, history, 4)
	assert.Equal(t, "CREATED", history[0].(map[string]any)["change_type"])
	assert.Equal(t, "OWNER_CHANGE", history[3].(map[string]any)["change_type"])

	status, body = s.do(t, http.MethodDelete, "/tasks/"+taskID, token, nil)
	assert.Equal(t, http.StatusNoContent, status)
	assert.Nil(t, body)

	status, body = s.do(t, http.MethodGet, "/tasks/"+taskID, token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, _ = s.do(t, http.MethodDelete, "/tasks/"+taskID, token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListTasksEndpoint(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.registerAndLogin(t, "lister@example.com")
	for i := 0; i < 12; i++ {
		status, _ := s.do(t, http.MethodPost, "/tasks", token, map[string]string{
			"title": "t", "description": "d", "status": "View",
		})
		require.Equal(t, http.StatusCreated, status)
	}

	status, body := s.do(t, http.MethodGet, "/tasks?page=2&sort=newest_users", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"].([]any), 2)
	meta := body["meta"].(map[string]any)
	assert.EqualValues(t, 2, meta["current_page"])
	assert.EqualValues(t, 10, meta["per_page"])
	assert.EqualValues(t, 12, meta["total"])
	assert.EqualValues(t, 2, meta["last_page"])

	status, body = s.do(t, http.MethodGet, "/tasks?page=abc", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["meta"].(map[string]any)["current_page"])

	status, body = s.do(t, http.MethodGet, "/tasks?filter=status:Done", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["data"])
	assert.EqualValues(t, 1, body["meta"].(map[string]any)["last_page"])

	status, body = s.do(t, http.MethodGet, "/tasks?filter=password:x", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
}

func TestFallbackRoute(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.registerAndLogin(t, "lost@example.com")

	status, body := s.do(t, http.MethodGet, "/nowhere", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Route Not Found", body["message"])

	status, _ = s.do(t, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])
}

func TestErrorMiddleware(t *testing.T) {
	metrics := observability.NewMetrics()
	app := NewApp("test", zap.NewNop(), metrics, 0)
	app.Get("/panic", func(c *fiber.Ctx) error { panic("boom") })
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusUnprocessableEntity, "bad body") })
	app.Get("/plain", func(c *fiber.Ctx) error { return io.ErrUnexpectedEOF })
	s := &testServer{app: app, metrics: metrics}

	status, body := s.do(t, http.MethodGet, "/panic", "", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(body))

	status, body = s.do(t, http.MethodGet, "/fiber", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, http.MethodGet, "/plain", "", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", body["error"].(map[string]any)["message"])

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Errors["/panic|GET|INTERNAL_ERROR"])
	assert.Equal(t, int64(1), snap.Requests["/fiber|GET|422"])
}

func TestMetricsKeysStayBounded(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.registerAndLogin(t, "counter@example.com")

	for i := 0; i < 50; i++ {
		status, _ := s.do(t, http.MethodGet, "/tasks/"+uuid.NewString(), token, nil)
		require.Equal(t, http.StatusNotFound, status)
		status, _ = s.do(t, http.MethodGet, "/scan/"+uuid.NewString(), "", nil)
		require.Equal(t, http.StatusUnauthorized, status)
		status, _ = s.do(t, http.MethodGet, "/scan/"+uuid.NewString(), token, nil)
		require.Equal(t, http.StatusNotFound, status)
	}

	snap := s.metrics.Snapshot()
	assert.Equal(t, int64(50), snap.Requests["/tasks/:id|GET|404"])
	assert.Equal(t, int64(50), snap.Errors["/tasks/:id|GET|NOT_FOUND"])
	assert.Equal(t, int64(50), snap.Requests["unmatched|GET|401"])
	assert.Equal(t, int64(50), snap.Errors["unmatched|GET|UNAUTHORIZED"])
	assert.Equal(t, int64(50), snap.Requests["unmatched|GET|404"])
	for key := range snap.Requests {
		assert.NotContains(t, key, "/scan/", key)
	}
	assert.LessOrEqual(t, len(snap.Requests), 6)
	assert.LessOrEqual(t, len(snap.Errors), 3)

	status, body := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, status)
	requests := body["requests"].(map[string]any)
	assert.EqualValues(t, 50, requests["/tasks/:id|GET|404"])
	assert.Contains(t, body, "latency_ms")
}
