package repository

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/task-service/internal/domain"
)

// MemoryStore keeps users, tasks, tokens and history in process memory. It
// mirrors the Postgres repositories, including listing order and pagination,
// and backs local runs without POSTGRES_DSN.
type MemoryStore struct {
	txMu    sync.Mutex
	mu      sync.RWMutex
	now     func() time.Time
	users   map[string]domain.User
	tasks   map[string]domain.Task
	order   []string
	tokens  map[string]domain.AccessToken
	history map[string][]domain.TaskHistory
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:     func() time.Time { return time.Now().UTC() },
		users:   make(map[string]domain.User),
		tasks:   make(map[string]domain.Task),
		tokens:  make(map[string]domain.AccessToken),
		history: make(map[string][]domain.TaskHistory),
	}
}

// Users returns a UserRepository view of the store.
func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

// Tasks returns a TaskRepository view of the store.
func (s *MemoryStore) Tasks() TaskRepository { return memoryTasks{s} }

// Tokens returns a TokenRepository view of the store.
func (s *MemoryStore) Tokens() TokenRepository { return memoryTokens{s} }

// History returns a TaskHistoryRepository view of the store.
func (s *MemoryStore) History() TaskHistoryRepository { return memoryHistory{s} }

// WithinTx serializes fn against other transactions on the store. If fn fails,
// tasks and history are restored to their state when fn started, which also
// discards writes made outside a transaction in the meantime.
func (s *MemoryStore) WithinTx(_ context.Context, fn func(TaskWriter) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	tasks := maps.Clone(s.tasks)
	order := slices.Clone(s.order)
	history := make(map[string][]domain.TaskHistory, len(s.history))
	for id, entries := range s.history {
		history[id] = slices.Clone(entries)
	}
	s.mu.RUnlock()

	if err := fn(TaskWriter{Tasks: s.Tasks(), History: s.History()}); err != nil {
		s.mu.Lock()
		s.tasks, s.order, s.history = tasks, order, history
		s.mu.Unlock()
		return err
	}
	return nil
}

// lookupKey canonicalizes ids the way Postgres compares uuids. Unparsable ids
// are returned as is and match nothing.
func lookupKey(id string) string {
	if canonical, ok := CanonicalID(id); ok {
		return canonical
	}
	return id
}

type memoryUsers struct{ s *MemoryStore }

// Create keeps a preset CreatedAt so callers can control registration order.
func (r memoryUsers) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.users[user.ID]; exists {
		return ErrDuplicate
	}
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return ErrDuplicate
		}
	}
	now := r.s.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt
	r.s.users[user.ID] = *user
	return nil
}

func (r memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[lookupKey(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (r memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, user := range r.s.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

type memoryTasks struct{ s *MemoryStore }

func (r memoryTasks) Create(_ context.Context, task *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.tasks[task.ID]; exists {
		return ErrDuplicate
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = r.s.now()
	}
	task.UpdatedAt = task.CreatedAt
	r.s.tasks[task.ID] = *task
	r.s.order = append(r.s.order, task.ID)
	return nil
}

func (r memoryTasks) Update(_ context.Context, task *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	task.ID = lookupKey(task.ID)
	current, ok := r.s.tasks[task.ID]
	if !ok {
		return ErrNotFound
	}
	task.CreatedAt = current.CreatedAt
	task.UpdatedAt = r.s.now()
	r.s.tasks[task.ID] = *task
	return nil
}

func (r memoryTasks) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id = lookupKey(id)
	if _, ok := r.s.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.tasks, id)
	delete(r.s.history, id)
	for i, existing := range r.s.order {
		if existing == id {
			r.s.order = append(r.s.order[:i], r.s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r memoryTasks) GetByID(_ context.Context, id string) (*domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	task, ok := r.s.tasks[lookupKey(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return &task, nil
}

func (r memoryTasks) List(_ context.Context, query TaskQuery) ([]domain.Task, int, error) {
	query = query.normalized()

	r.s.mu.RLock()
	matched := make([]domain.Task, 0, len(r.s.order))
	for _, id := range r.s.order {
		task := r.s.tasks[id]
		if query.Filter.Matches(&task) {
			matched = append(matched, task)
		}
	}
	ownerCreated := make(map[string]time.Time, len(r.s.users))
	for id, user := range r.s.users {
		ownerCreated[id] = user.CreatedAt
	}
	r.s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	if query.Sort == TaskSortNewestUsers || query.Sort == TaskSortOldestUsers {
		desc := query.Sort == TaskSortNewestUsers
		sort.SliceStable(matched, func(i, j int) bool {
			a, aOK := ownerCreated[matched[i].UserID]
			b, bOK := ownerCreated[matched[j].UserID]
			switch {
			case !aOK || !bOK:
				// missing owners sort last in both directions
				return aOK && !bOK
			case desc:
				return a.After(b)
			default:
				return a.Before(b)
			}
		})
	}

	total := len(matched)
	start := query.Offset()
	if start >= total {
		return []domain.Task{}, total, nil
	}
	end := start + query.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

type memoryTokens struct{ s *MemoryStore }

func (r memoryTokens) Create(_ context.Context, token *domain.AccessToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.tokens[token.ID]; exists {
		return ErrDuplicate
	}
	token.CreatedAt = r.s.now()
	r.s.tokens[token.ID] = *token
	return nil
}

func (r memoryTokens) GetByID(_ context.Context, id string) (*domain.AccessToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	token, ok := r.s.tokens[lookupKey(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return &token, nil
}

func (r memoryTokens) Revoke(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id = lookupKey(id)
	token, ok := r.s.tokens[id]
	if !ok || token.RevokedAt != nil {
		return ErrNotFound
	}
	now := r.s.now()
	token.RevokedAt = &now
	r.s.tokens[id] = token
	return nil
}

type memoryHistory struct{ s *MemoryStore }

func (r memoryHistory) Create(_ context.Context, history *domain.TaskHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tasks[history.TaskID]; !ok {
		return ErrNotFound
	}
	history.CreatedAt = r.s.now()
	r.s.history[history.TaskID] = append(r.s.history[history.TaskID], *history)
	return nil
}

func (r memoryHistory) ListByTask(_ context.Context, taskID string) ([]domain.TaskHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	entries := r.s.history[lookupKey(taskID)]
	result := make([]domain.TaskHistory, len(entries))
	copy(result, entries)
	return result, nil
}
