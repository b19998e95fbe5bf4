package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/task-service/internal/config"
	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/events"
	"github.com/spec-kit/task-service/internal/repository"
	apperrors "github.com/spec-kit/task-service/pkg/util"
)

type fixture struct {
	store      *repository.MemoryStore
	dispatcher events.Dispatcher
	auth       *AuthService
	tasks      *TaskService
	published  []events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:      repository.NewMemoryStore(),
		dispatcher: events.NewInMemoryDispatcher(),
	}
	for _, eventType := range events.AllEventTypes {
		f.dispatcher.Subscribe(eventType, func(_ context.Context, e events.Event) error {
			f.published = append(f.published, e)
			return nil
		})
	}
	f.auth = NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 30,
		BcryptCost:            bcrypt.MinCost,
	}, AuthDependencies{
		UserRepo:  f.store.Users(),
		TokenRepo: f.store.Tokens(),
	})
	f.tasks = NewTaskService(TaskDependencies{
		TaskRepo:    f.store.Tasks(),
		UserRepo:    f.store.Users(),
		HistoryRepo: f.store.History(),
		Tx:          f.store,
		Dispatcher:  f.dispatcher,
	})
	return f
}

func (f *fixture) user(t *testing.T, email string, createdAt time.Time) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:           uuid.NewString(),
		FirstName:    "Test",
		LastName:     "User",
		Email:        email,
		PasswordHash: "unused",
		CreatedAt:    createdAt,
	}
	require.NoError(t, f.store.Users().Create(context.Background(), user))
	return user
}

func (f *fixture) task(t *testing.T, actor *domain.User, title string) *domain.Task {
	t.Helper()
	task, err := f.tasks.CreateTask(context.Background(), actor, TaskInput{
		Title:       title,
		Description: "about " + title,
		Status:      domain.TaskStatusView,
	})
	require.NoError(t, err)
	return task
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, apperrors.IsCode(err, code), "expected %s, got %v", code, err)
}
