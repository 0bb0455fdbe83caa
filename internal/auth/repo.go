package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facturia/facturia/internal/authz"
	"github.com/facturia/facturia/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*Account, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByUsername fetches an account by login name, case-insensitively.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*Account, error) {
	var acc Account
	var roleTag string
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, role, password_hash, is_active FROM users WHERE lower(username) = lower($1)`,
		username,
	).Scan(&acc.ID, &acc.Username, &roleTag, &acc.PasswordHash, &acc.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	acc.Role, _ = authz.ParseRole(roleTag)
	return &acc, nil
}

var _ Repository = (*PGRepository)(nil)
