package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/task-service/internal/domain"
)

// TaskRepository encapsulates task persistence.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, query TaskQuery) ([]domain.Task, int, error)
}

type taskRepository struct {
	db querier
}

// NewTaskRepository instantiates a Postgres-backed repository.
func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &taskRepository{db: pool}
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	const query = `
        INSERT INTO tasks (id, title, description, status, user_id)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.UserID,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
	return translateError(err)
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	id, ok := CanonicalID(task.ID)
	if !ok {
		return ErrNotFound
	}
	task.ID = id
	const query = `
        UPDATE tasks SET title=$1, description=$2, status=$3, user_id=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		task.Title,
		task.Description,
		task.Status,
		task.UserID,
		task.ID,
	).Scan(&task.UpdatedAt)
	return translateError(err)
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	id, ok := CanonicalID(id)
	if !ok {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id=$1`, id)
	if err != nil {
		return translateError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	id, ok := CanonicalID(id)
	if !ok {
		return nil, ErrNotFound
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE tasks.id=$1`
	var task domain.Task
	if err := scanTask(r.db.QueryRow(ctx, query, id), &task); err != nil {
		return nil, translateError(err)
	}
	return &task, nil
}

// List runs the page query and the count query concurrently against the pool.
// Inside a transaction the connection is shared, so they run one after another.
func (r *taskRepository) List(ctx context.Context, query TaskQuery) ([]domain.Task, int, error) {
	listSQL, countSQL, args := buildTaskListSQL(query)

	if _, inTx := r.db.(pgx.Tx); inTx {
		rows, err := r.db.Query(ctx, listSQL, args...)
		if err != nil {
			return nil, 0, translateError(err)
		}
		tasks, err := scanTasks(rows)
		rows.Close()
		if err != nil {
			return nil, 0, translateError(err)
		}
		var total int
		if err := r.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
			return nil, 0, translateError(err)
		}
		if tasks == nil {
			tasks = []domain.Task{}
		}
		return tasks, total, nil
	}

	var (
		tasks []domain.Task
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.db.Query(gctx, listSQL, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		tasks, err = scanTasks(rows)
		return err
	})
	g.Go(func() error {
		return r.db.QueryRow(gctx, countSQL, args...).Scan(&total)
	})
	if err := g.Wait(); err != nil {
		return nil, 0, translateError(err)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, total, nil
}

func scanTask(row pgx.Row, task *domain.Task) error {
	return row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.UserID,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
}

func scanTasks(rows pgx.Rows) ([]domain.Task, error) {
	var result []domain.Task
	for rows.Next() {
		var task domain.Task
		if err := scanTask(rows, &task); err != nil {
			return nil, err
		}
		result = append(result, task)
	}
	return result, rows.Err()
}
