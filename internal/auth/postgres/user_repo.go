// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres provides the PostgreSQL implementation of the auth
// repository.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/holomush/identity/internal/auth"
)

// dbPool is the subset of pgxpool.Pool the repository needs. Declared as an
// interface so tests can substitute pgxmock.PgxPoolIface.
type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool dbPool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool dbPool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, email, password_hash, session_token_hash, reset_token_hash, created_at, updated_at`

// Create stores a new user and fills in the store-assigned ID.
// The unique index on email is the authority on collisions: a concurrent
// insert that wins the race surfaces here as auth.ErrUserExists, not as a
// generic failure.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, session_token_hash, reset_token_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		user.Email,
		user.PasswordHash,
		user.SessionTokenHash,
		user.ResetTokenHash,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err := row.Scan(&user.ID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_EXISTS").
				With("email", user.Email).
				Wrap(auth.ErrUserExists)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("email", user.Email).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)

	user, err := r.scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, email)

	user, err := r.scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	return user, nil
}

// GetBySessionTokenHash retrieves the user holding the session token hash.
func (r *UserRepository) GetBySessionTokenHash(ctx context.Context, tokenHash string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE session_token_hash = $1
	`, tokenHash)

	user, err := r.scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_SESSION_FAILED").
			With("operation", "get user by session token hash").
			Wrap(err)
	}
	return user, nil
}

// GetByResetTokenHash retrieves the user holding the reset token hash.
func (r *UserRepository) GetByResetTokenHash(ctx context.Context, tokenHash string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE reset_token_hash = $1
	`, tokenHash)

	user, err := r.scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_RESET_FAILED").
			With("operation", "get user by reset token hash").
			Wrap(err)
	}
	return user, nil
}

// SetSessionToken replaces the user's session token hash.
func (r *UserRepository) SetSessionToken(ctx context.Context, id int64, tokenHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET session_token_hash = $2, updated_at = $3
		WHERE id = $1
	`, id, tokenHash, time.Now())
	if err != nil {
		return oops.Code("USER_SET_SESSION_FAILED").
			With("operation", "set session token hash").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// ClearSessionToken removes the user's session token hash. The update
// touches the row whether or not a session was set, so clearing an absent
// session succeeds as long as the user exists.
func (r *UserRepository) ClearSessionToken(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET session_token_hash = NULL, updated_at = $2
		WHERE id = $1
	`, id, time.Now())
	if err != nil {
		return oops.Code("USER_CLEAR_SESSION_FAILED").
			With("operation", "clear session token hash").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// SetResetToken replaces the user's pending reset token hash.
func (r *UserRepository) SetResetToken(ctx context.Context, id int64, tokenHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET reset_token_hash = $2, updated_at = $3
		WHERE id = $1
	`, id, tokenHash, time.Now())
	if err != nil {
		return oops.Code("USER_SET_RESET_FAILED").
			With("operation", "set reset token hash").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePassword replaces the password hash and clears the pending reset
// token in one statement. Splitting this in two would open a window where
// the new password is set but the reset token is still replayable.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, reset_token_hash = NULL, updated_at = $3
		WHERE id = $1
	`, id, passwordHash, time.Now())
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *UserRepository) scanUser(row pgx.Row) (*auth.User, error) {
	var u auth.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.SessionTokenHash,
		&u.ResetTokenHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}

	return &u, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
