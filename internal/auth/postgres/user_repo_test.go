// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/identity/internal/auth"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *UserRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock, NewUserRepository(mock)
}

func userRows(u *auth.User) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "email", "password_hash", "session_token_hash", "reset_token_hash", "created_at", "updated_at",
	}).AddRow(u.ID, u.Email, u.PasswordHash, u.SessionTokenHash, u.ResetTokenHash, u.CreatedAt, u.UpdatedAt)
}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("stores user and fills in id", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		user, err := auth.NewUser("bob@holomush.org", "somehash")
		require.NoError(t, err)

		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(user.Email, user.PasswordHash, user.SessionTokenHash, user.ResetTokenHash, user.CreatedAt, user.UpdatedAt).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

		require.NoError(t, repo.Create(ctx, user))
		assert.Equal(t, int64(7), user.ID)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("unique violation maps to ErrUserExists", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		user, err := auth.NewUser("bob@holomush.org", "somehash")
		require.NoError(t, err)

		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(user.Email, user.PasswordHash, user.SessionTokenHash, user.ResetTokenHash, user.CreatedAt, user.UpdatedAt).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		err = repo.Create(ctx, user)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrUserExists)
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("other database errors are wrapped", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		user, err := auth.NewUser("bob@holomush.org", "somehash")
		require.NoError(t, err)

		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(user.Email, user.PasswordHash, user.SessionTokenHash, user.ResetTokenHash, user.CreatedAt, user.UpdatedAt).
			WillReturnError(errors.New("connection refused"))

		err = repo.Create(ctx, user)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrUserExists)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestUserRepository_GetByEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stored user", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		sessionHash := "sessionhash"
		stored := &auth.User{
			ID:               3,
			Email:            "bob@holomush.org",
			PasswordHash:     "somehash",
			SessionTokenHash: &sessionHash,
			CreatedAt:        time.Now().UTC(),
			UpdatedAt:        time.Now().UTC(),
		}

		mock.ExpectQuery(`SELECT (.+) FROM users`).
			WithArgs("bob@holomush.org").
			WillReturnRows(userRows(stored))

		user, err := repo.GetByEmail(ctx, "bob@holomush.org")
		require.NoError(t, err)
		assert.Equal(t, stored.ID, user.ID)
		assert.Equal(t, stored.Email, user.Email)
		require.NotNil(t, user.SessionTokenHash)
		assert.Equal(t, sessionHash, *user.SessionTokenHash)
		assert.Nil(t, user.ResetTokenHash)
	})

	t.Run("no rows maps to ErrNotFound", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectQuery(`SELECT (.+) FROM users`).
			WithArgs("nobody@holomush.org").
			WillReturnError(pgx.ErrNoRows)

		user, err := repo.GetByEmail(ctx, "nobody@holomush.org")
		require.Error(t, err)
		assert.Nil(t, user)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_GetBySessionTokenHash(t *testing.T) {
	ctx := context.Background()

	t.Run("returns holder of token hash", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		sessionHash := "sessionhash"
		stored := &auth.User{
			ID:               3,
			Email:            "bob@holomush.org",
			PasswordHash:     "somehash",
			SessionTokenHash: &sessionHash,
			CreatedAt:        time.Now().UTC(),
			UpdatedAt:        time.Now().UTC(),
		}

		mock.ExpectQuery(`SELECT (.+) FROM users`).
			WithArgs(sessionHash).
			WillReturnRows(userRows(stored))

		user, err := repo.GetBySessionTokenHash(ctx, sessionHash)
		require.NoError(t, err)
		assert.Equal(t, stored.ID, user.ID)
	})

	t.Run("unknown hash maps to ErrNotFound", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectQuery(`SELECT (.+) FROM users`).
			WithArgs("unknownhash").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetBySessionTokenHash(ctx, "unknownhash")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_SetSessionToken(t *testing.T) {
	ctx := context.Background()

	t.Run("updates one row", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectExec(`UPDATE users SET session_token_hash`).
			WithArgs(int64(3), "newhash", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.SetSessionToken(ctx, 3, "newhash"))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("zero rows maps to ErrNotFound", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectExec(`UPDATE users SET session_token_hash`).
			WithArgs(int64(99), "newhash", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.SetSessionToken(ctx, 99, "newhash")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_ClearSessionToken(t *testing.T) {
	ctx := context.Background()

	t.Run("clears session for existing user", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectExec(`UPDATE users SET session_token_hash = NULL`).
			WithArgs(int64(3), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.ClearSessionToken(ctx, 3))
	})

	t.Run("unknown user maps to ErrNotFound", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectExec(`UPDATE users SET session_token_hash = NULL`).
			WithArgs(int64(99), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.ClearSessionToken(ctx, 99)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_UpdatePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces hash and clears reset token in one statement", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectExec(`UPDATE users SET password_hash = \$2, reset_token_hash = NULL`).
			WithArgs(int64(3), "newhash", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.UpdatePassword(ctx, 3, "newhash"))
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
	})

	t.Run("unknown user maps to ErrNotFound", func(t *testing.T) {
		mock, repo := newMockRepo(t)

		mock.ExpectExec(`UPDATE users SET password_hash`).
			WithArgs(int64(99), "newhash", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdatePassword(ctx, 99, "newhash")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}
