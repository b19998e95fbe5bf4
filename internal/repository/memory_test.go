package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/task-service/internal/domain"
)

func seedUser(t *testing.T, store *MemoryStore, email string, createdAt time.Time) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:           uuid.NewString(),
		FirstName:    "First",
		LastName:     "Last",
		Email:        email,
		PasswordHash: "hash",
		CreatedAt:    createdAt,
	}
	require.NoError(t, store.Users().Create(context.Background(), user))
	return user
}

func seedTask(t *testing.T, store *MemoryStore, title, userID string, status domain.TaskStatus, createdAt time.Time) *domain.Task {
	t.Helper()
	task := &domain.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: "desc " + title,
		Status:      status,
		UserID:      userID,
		CreatedAt:   createdAt,
	}
	require.NoError(t, store.Tasks().Create(context.Background(), task))
	return task
}

func TestMemoryUsers_DuplicateEmail(t *testing.T) {
	store := NewMemoryStore()
	seedUser(t, store, "a@x.com", time.Now())

	err := store.Users().Create(context.Background(), &domain.User{ID: uuid.NewString(), Email: "a@x.com"})
	require.ErrorIs(t, err, ErrDuplicate)

	found, err := store.Users().GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", found.Email)

	_, err = store.Users().GetByEmail(context.Background(), "missing@x.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryTasks_Pagination(t *testing.T) {
	store := NewMemoryStore()
	owner := seedUser(t, store, "p@x.com", time.Now())
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		seedTask(t, store, fmt.Sprintf("task-%02d", i), owner.ID, domain.TaskStatusView, base.Add(time.Duration(i)*time.Second))
	}

	ctx := context.Background()
	page1, total, err := store.Tasks().List(ctx, TaskQuery{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	require.Len(t, page1, 10)
	assert.Equal(t, "task-00", page1[0].Title)

	page3, total, err := store.Tasks().List(ctx, TaskQuery{Page: 3})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	require.Len(t, page3, 5)
	assert.Equal(t, "task-20", page3[0].Title)

	page4, _, err := store.Tasks().List(ctx, TaskQuery{Page: 4})
	require.NoError(t, err)
	assert.Empty(t, page4)
}

func TestMemoryTasks_SortByOwnerRegistration(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	early := seedUser(t, store, "early@x.com", now.Add(-48*time.Hour))
	late := seedUser(t, store, "late@x.com", now.Add(-1*time.Hour))

	// The early user's task is the newest task; it must still sort after the
	// late user's task under newest_users.
	lateUsersTask := seedTask(t, store, "old task", late.ID, domain.TaskStatusView, now.Add(-30*time.Minute))
	earlyUsersTask := seedTask(t, store, "new task", early.ID, domain.TaskStatusView, now.Add(-1*time.Minute))
	orphan := seedTask(t, store, "orphan", uuid.NewString(), domain.TaskStatusView, now.Add(-40*time.Minute))

	ctx := context.Background()
	newest, _, err := store.Tasks().List(ctx, TaskQuery{Sort: TaskSortNewestUsers, Page: 1})
	require.NoError(t, err)
	require.Len(t, newest, 3)
	assert.Equal(t, []string{lateUsersTask.ID, earlyUsersTask.ID, orphan.ID},
		[]string{newest[0].ID, newest[1].ID, newest[2].ID})

	oldest, _, err := store.Tasks().List(ctx, TaskQuery{Sort: TaskSortOldestUsers, Page: 1})
	require.NoError(t, err)
	require.Len(t, oldest, 3)
	assert.Equal(t, []string{earlyUsersTask.ID, lateUsersTask.ID, orphan.ID},
		[]string{oldest[0].ID, oldest[1].ID, oldest[2].ID})

	unsorted, _, err := store.Tasks().List(ctx, TaskQuery{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, orphan.ID, unsorted[0].ID)
	assert.Equal(t, lateUsersTask.ID, unsorted[1].ID)
	assert.Equal(t, earlyUsersTask.ID, unsorted[2].ID)
}

func TestMemoryTasks_Filter(t *testing.T) {
	store := NewMemoryStore()
	a := seedUser(t, store, "a@x.com", time.Now())
	b := seedUser(t, store, "b@x.com", time.Now())
	seedTask(t, store, "one", a.ID, domain.TaskStatusDone, time.Time{})
	seedTask(t, store, "two", a.ID, domain.TaskStatusView, time.Time{})
	seedTask(t, store, "three", b.ID, domain.TaskStatusDone, time.Time{})

	ctx := context.Background()
	done, total, err := store.Tasks().List(ctx, TaskQuery{Filter: &TaskFilter{Field: TaskFilterStatus, Value: "Done"}, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, done, 2)

	owned, total, err := store.Tasks().List(ctx, TaskQuery{Filter: &TaskFilter{Field: TaskFilterUserID, Value: b.ID}, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "three", owned[0].Title)
}

func TestMemoryTasks_UpdateDelete(t *testing.T) {
	store := NewMemoryStore()
	owner := seedUser(t, store, "o@x.com", time.Now())
	task := seedTask(t, store, "t", owner.ID, domain.TaskStatusView, time.Time{})
	ctx := context.Background()

	task.Status = domain.TaskStatusDone
	require.NoError(t, store.Tasks().Update(ctx, task))
	got, err := store.Tasks().GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusDone, got.Status)

	require.NoError(t, store.History().Create(ctx, &domain.TaskHistory{ID: uuid.NewString(), TaskID: task.ID, ChangeType: domain.ChangeTypeStatus}))

	require.NoError(t, store.Tasks().Delete(ctx, task.ID))
	_, err = store.Tasks().GetByID(ctx, task.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, store.Tasks().Delete(ctx, task.ID), ErrNotFound)
	require.ErrorIs(t, store.Tasks().Update(ctx, task), ErrNotFound)

	history, err := store.History().ListByTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, total, err := store.Tasks().List(ctx, TaskQuery{Page: 1})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestMemoryTokens_Revoke(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	token := &domain.AccessToken{ID: uuid.NewString(), UserID: uuid.NewString(), ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Tokens().Create(ctx, token))

	require.NoError(t, store.Tokens().Revoke(ctx, token.ID))
	got, err := store.Tokens().GetByID(ctx, token.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.RevokedAt)
	require.ErrorIs(t, store.Tokens().Revoke(ctx, token.ID), ErrNotFound)
}

func TestMemoryStore_WithinTxRollsBack(t *testing.T) {
	store := NewMemoryStore()
	owner := seedUser(t, store, "tx@x.com", time.Now())
	kept := seedTask(t, store, "kept", owner.ID, domain.TaskStatusView, time.Time{})
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(w TaskWriter) error {
		require.NoError(t, w.Tasks.Create(ctx, &domain.Task{ID: uuid.NewString(), Title: "ghost", UserID: owner.ID, Status: domain.TaskStatusView}))
		changed := *kept
		changed.Status = domain.TaskStatusDone
		require.NoError(t, w.Tasks.Update(ctx, &changed))
		require.NoError(t, w.History.Create(ctx, &domain.TaskHistory{ID: uuid.NewString(), TaskID: kept.ID, ChangeType: domain.ChangeTypeStatus}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	items, total, err := store.Tasks().List(ctx, TaskQuery{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, domain.TaskStatusView, items[0].Status)
	history, err := store.History().ListByTask(ctx, kept.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	require.NoError(t, store.WithinTx(ctx, func(w TaskWriter) error {
		return w.History.Create(ctx, &domain.TaskHistory{ID: uuid.NewString(), TaskID: kept.ID, ChangeType: domain.ChangeTypeContent})
	}))
	history, err = store.History().ListByTask(ctx, kept.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestMemoryStore_CanonicalLookups(t *testing.T) {
	store := NewMemoryStore()
	owner := seedUser(t, store, "canon@x.com", time.Now())
	task := seedTask(t, store, "canon", owner.ID, domain.TaskStatusView, time.Time{})
	ctx := context.Background()

	for _, id := range []string{strings.ToUpper(task.ID), "{" + task.ID + "}", "urn:uuid:" + task.ID} {
		got, err := store.Tasks().GetByID(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, task.ID, got.ID)
	}
	user, err := store.Users().GetByID(ctx, strings.ToUpper(owner.ID))
	require.NoError(t, err)
	assert.Equal(t, owner.ID, user.ID)

	require.NoError(t, store.Tasks().Delete(ctx, strings.ToUpper(task.ID)))
	_, err = store.Tasks().GetByID(ctx, task.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCanonicalID(t *testing.T) {
	id := uuid.NewString()
	for _, raw := range []string{id, strings.ToUpper(id), "{" + id + "}", "urn:uuid:" + id, strings.ReplaceAll(id, "-", "")} {
		got, ok := CanonicalID(raw)
		require.True(t, ok, raw)
		assert.Equal(t, id, got)
	}
	_, ok := CanonicalID("42")
	assert.False(t, ok)
}
