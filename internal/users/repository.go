package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/facturia/facturia/internal/authz"
	"github.com/facturia/facturia/internal/platform/httpx"
	"github.com/facturia/facturia/internal/shared"
)

// ErrUserNotFound is returned when no user matches.
var ErrUserNotFound = fmt.Errorf("users: %w", httpx.ErrNotFound)

const uniqueViolation = "23505"

const userColumns = `id, username, email, name, role, is_active, password_hash, created_at, updated_at`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns all users.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser fetches a user by id.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetUserByUsername fetches a user by login name.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)`, username)
}

func (r *Repository) getOne(ctx context.Context, query string, arg any) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return user, nil
}

// CreateUser inserts a user and returns it with generated fields.
func (r *Repository) CreateUser(ctx context.Context, u User) (User, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO users (username, email, name, role, is_active, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING `+userColumns, u.Username, u.Email, u.Name, u.Role.String(), u.IsActive, u.PasswordHash)
	created, err := scanUser(row)
	if err != nil {
		return User{}, mapWriteError(err)
	}
	return created, nil
}

// UpdateUser persists every mutable field of u.
func (r *Repository) UpdateUser(ctx context.Context, u User) (User, error) {
	row := r.pool.QueryRow(ctx, `UPDATE users SET email = $2, name = $3, role = $4, is_active = $5, password_hash = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, u.ID, u.Email, u.Name, u.Role.String(), u.IsActive, u.PasswordHash)
	updated, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, mapWriteError(err)
	}
	return updated, nil
}

// DeleteUser removes a user by id.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// LookupActor implements shared.ActorLookup. Inactive accounts resolve to
// no actor at all.
func (r *Repository) LookupActor(ctx context.Context, id int64) (authz.Actor, error) {
	var roleTag string
	var active bool
	err := r.pool.QueryRow(ctx, `SELECT role, is_active FROM users WHERE id = $1`, id).Scan(&roleTag, &active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.Actor{}, shared.ErrNotFound
		}
		return authz.Actor{}, err
	}
	if !active {
		return authz.Actor{}, shared.ErrNotFound
	}
	role, _ := authz.ParseRole(roleTag)
	return authz.Actor{ID: id, Role: role}, nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	var roleTag string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Name, &roleTag, &u.IsActive, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	u.Role, _ = authz.ParseRole(roleTag)
	return u, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("users: %s already taken: %w", pgErr.ConstraintName, httpx.ErrDuplicate)
	}
	return err
}

var _ shared.ActorLookup = (*Repository)(nil)
