package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/task-service/internal/domain"
)

// TaskHistoryRepository stores audit entries.
type TaskHistoryRepository interface {
	Create(ctx context.Context, history *domain.TaskHistory) error
	ListByTask(ctx context.Context, taskID string) ([]domain.TaskHistory, error)
}

type taskHistoryRepository struct {
	db querier
}

// NewTaskHistoryRepository builds repository.
func NewTaskHistoryRepository(pool *pgxpool.Pool) TaskHistoryRepository {
	return &taskHistoryRepository{db: pool}
}

func (r *taskHistoryRepository) Create(ctx context.Context, history *domain.TaskHistory) error {
	const query = `
        INSERT INTO task_history (id, task_id, changed_by, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at`
	err := r.db.QueryRow(ctx, query,
		history.ID,
		history.TaskID,
		history.ChangedBy,
		history.ChangeType,
		history.OldValue,
		history.NewValue,
	).Scan(&history.CreatedAt)
	return translateError(err)
}

func (r *taskHistoryRepository) ListByTask(ctx context.Context, taskID string) ([]domain.TaskHistory, error) {
	taskID, ok := CanonicalID(taskID)
	if !ok {
		return []domain.TaskHistory{}, nil
	}
	const query = `
        SELECT id, task_id, changed_by, change_type, old_value, new_value, created_at
        FROM task_history WHERE task_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, taskID)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	result := []domain.TaskHistory{}
	for rows.Next() {
		var history domain.TaskHistory
		if err := rows.Scan(
			&history.ID,
			&history.TaskID,
			&history.ChangedBy,
			&history.ChangeType,
			&history.OldValue,
			&history.NewValue,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
