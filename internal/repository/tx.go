package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TaskWriter is the set of repositories a task mutation writes through.
type TaskWriter struct {
	Tasks   TaskRepository
	History TaskHistoryRepository
}

// TxRunner runs fn atomically: if fn returns an error none of its writes persist.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(TaskWriter) error) error
}

type pgTxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner returns a TxRunner backed by Postgres transactions.
func NewTxRunner(pool *pgxpool.Pool) TxRunner {
	return &pgTxRunner{pool: pool}
}

func (r *pgTxRunner) WithinTx(ctx context.Context, fn func(TaskWriter) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(TaskWriter{
			Tasks:   &taskRepository{db: tx},
			History: &taskHistoryRepository{db: tx},
		})
	})
}
