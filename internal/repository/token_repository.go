package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/task-service/internal/domain"
)

// TokenRepository manages issued access token records.
type TokenRepository interface {
	Create(ctx context.Context, token *domain.AccessToken) error
	GetByID(ctx context.Context, id string) (*domain.AccessToken, error)
	Revoke(ctx context.Context, id string) error
}

type tokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository constructs repository.
func NewTokenRepository(pool *pgxpool.Pool) TokenRepository {
	return &tokenRepository{pool: pool}
}

func (r *tokenRepository) Create(ctx context.Context, token *domain.AccessToken) error {
	const query = `
        INSERT INTO access_tokens (id, user_id, expires_at)
        VALUES ($1,$2,$3)
        RETURNING created_at`
	err := r.pool.QueryRow(ctx, query,
		token.ID,
		token.UserID,
		token.ExpiresAt,
	).Scan(&token.CreatedAt)
	return translateError(err)
}

func (r *tokenRepository) GetByID(ctx context.Context, id string) (*domain.AccessToken, error) {
	id, ok := CanonicalID(id)
	if !ok {
		return nil, ErrNotFound
	}
	const query = `
        SELECT id, user_id, expires_at, revoked_at, created_at
        FROM access_tokens WHERE id=$1`
	var token domain.AccessToken
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&token.ID,
		&token.UserID,
		&token.ExpiresAt,
		&token.RevokedAt,
		&token.CreatedAt,
	); err != nil {
		return nil, translateError(err)
	}
	return &token, nil
}

func (r *tokenRepository) Revoke(ctx context.Context, id string) error {
	id, ok := CanonicalID(id)
	if !ok {
		return ErrNotFound
	}
	const query = `
        UPDATE access_tokens SET revoked_at=NOW()
        WHERE id=$1 AND revoked_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return translateError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
