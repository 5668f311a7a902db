// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package authtest provides test doubles for the auth package.
package authtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/holomush/identity/internal/auth"
)

// MemoryUserRepository is an in-memory auth.UserRepository with the same
// observable semantics as the PostgreSQL implementation: case-insensitive
// unique emails, atomic per-call updates, ErrNotFound / ErrUserExists
// sentinels. Safe for concurrent use.
type MemoryUserRepository struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*auth.User
}

// NewMemoryUserRepository creates an empty MemoryUserRepository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		nextID: 1,
		users:  make(map[int64]*auth.User),
	}
}

// Len returns the number of stored users.
func (r *MemoryUserRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// Create stores a new user and assigns its ID.
func (r *MemoryUserRepository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return auth.ErrUserExists
		}
	}

	user.ID = r.nextID
	r.nextID++

	clone := *user
	r.users[user.ID] = &clone
	return nil
}

// GetByID retrieves a user by ID.
func (r *MemoryUserRepository) GetByID(_ context.Context, id int64) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, auth.ErrNotFound
}

// GetBySessionTokenHash retrieves the user holding the session token hash.
func (r *MemoryUserRepository) GetBySessionTokenHash(_ context.Context, tokenHash string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.SessionTokenHash != nil && *u.SessionTokenHash == tokenHash {
			clone := *u
			return &clone, nil
		}
	}
	return nil, auth.ErrNotFound
}

// GetByResetTokenHash retrieves the user holding the reset token hash.
func (r *MemoryUserRepository) GetByResetTokenHash(_ context.Context, tokenHash string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash {
			clone := *u
			return &clone, nil
		}
	}
	return nil, auth.ErrNotFound
}

// SetSessionToken replaces the user's session token hash.
func (r *MemoryUserRepository) SetSessionToken(_ context.Context, id int64, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.SessionTokenHash = &tokenHash
	u.UpdatedAt = time.Now()
	return nil
}

// ClearSessionToken removes the user's session token hash.
func (r *MemoryUserRepository) ClearSessionToken(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.SessionTokenHash = nil
	u.UpdatedAt = time.Now()
	return nil
}

// SetResetToken replaces the user's pending reset token hash.
func (r *MemoryUserRepository) SetResetToken(_ context.Context, id int64, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.ResetTokenHash = &tokenHash
	u.UpdatedAt = time.Now()
	return nil
}

// UpdatePassword replaces the password hash and clears the reset token in
// one step, mirroring the single-statement PostgreSQL update.
func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.ResetTokenHash = nil
	u.UpdatedAt = time.Now()
	return nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*MemoryUserRepository)(nil)
