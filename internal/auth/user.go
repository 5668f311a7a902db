// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/samber/oops"
)

// MaxEmailLength caps stored email addresses.
const MaxEmailLength = 254

// emailRegex is a permissive shape check: one @, non-empty local part,
// a domain with at least one dot. Full RFC 5322 validation is not the
// service's job; the mail round-trip is.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// User represents one registered account.
type User struct {
	ID           int64
	Email        string
	PasswordHash string

	// SessionTokenHash holds the SHA-256 of the live session token, or nil
	// when the user has no active session. At most one session per user; a
	// new login overwrites the previous token.
	SessionTokenHash *string

	// ResetTokenHash holds the SHA-256 of the pending password reset token,
	// or nil when no reset is pending. Cleared in the same statement that
	// replaces the password hash, so a token is usable exactly once.
	ResetTokenHash *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasSession reports whether the user currently has a live session.
func (u *User) HasSession() bool {
	return u.SessionTokenHash != nil
}

// NewUser creates a validated User with no session and no pending reset.
// The ID is zero until the repository assigns one on Create.
func NewUser(email, passwordHash string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_EMPTY_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &User{
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ValidateEmail validates an email address against rules.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code("AUTH_INVALID_EMAIL").
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email address is malformed")
	}
	return nil
}

// UserRepository manages user persistence. Implementations must enforce
// email uniqueness and make each update atomic; the service layer holds no
// locks of its own.
type UserRepository interface {
	// Create stores a new user and fills in the store-assigned ID.
	// Returns ErrUserExists when the email is already taken, including when
	// a concurrent insert loses the race against the unique index.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetBySessionTokenHash retrieves the user whose live session token
	// hashes to the given value.
	GetBySessionTokenHash(ctx context.Context, tokenHash string) (*User, error)

	// GetByResetTokenHash retrieves the user whose pending reset token
	// hashes to the given value.
	GetByResetTokenHash(ctx context.Context, tokenHash string) (*User, error)

	// SetSessionToken replaces the user's session token hash, invalidating
	// any previous session.
	SetSessionToken(ctx context.Context, id int64, tokenHash string) error

	// ClearSessionToken removes the user's session token hash. Clearing an
	// already-absent session is a no-op success for an existing user.
	ClearSessionToken(ctx context.Context, id int64) error

	// SetResetToken replaces the user's pending reset token hash.
	SetResetToken(ctx context.Context, id int64, tokenHash string) error

	// UpdatePassword replaces the password hash AND clears the pending
	// reset token in a single statement. A partial apply would let a reset
	// token be replayed, so implementations must not split this in two.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}
