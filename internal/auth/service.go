// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// Service provides registration, credential validation, session and
// password reset operations.
type Service struct {
	users  UserRepository
	hasher PasswordHasher
	logger *slog.Logger
}

// NewService creates a new Service.
func NewService(users UserRepository, hasher PasswordHasher) (*Service, error) {
	return NewServiceWithLogger(users, hasher, slog.Default())
}

// NewServiceWithLogger creates a new Service with an explicit logger.
func NewServiceWithLogger(users UserRepository, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_NIL_DEPENDENCY").Errorf("logger is required")
	}
	return &Service{users: users, hasher: hasher, logger: logger}, nil
}

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Register creates a new user from an email and plaintext password.
// The password is hashed before it ever reaches the repository; the
// plaintext is never stored. Returns ErrUserExists (wrapped) when the
// email is already registered - including when a concurrent insert loses
// the race and the store's unique index reports the collision instead of
// the existence check.
func (s *Service) Register(ctx context.Context, email, password string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil, oops.Code("AUTH_USER_EXISTS").
			With("email", email).
			Wrap(ErrUserExists)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(email, passwordHash)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent Register for the same email can win between our
		// existence check and the insert; the unique index reports it.
		if errors.Is(err, ErrUserExists) {
			return nil, oops.Code("AUTH_USER_EXISTS").
				With("email", email).
				Wrap(ErrUserExists)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	return user, nil
}

// ValidLogin reports whether the email and password identify a registered
// user. It never returns an error: unknown email, wrong password, malformed
// input and store failures all collapse to false so the caller cannot be
// used as an account-enumeration oracle.
func (s *Service) ValidLogin(ctx context.Context, email, password string) bool {
	user, err := s.users.GetByEmail(ctx, email)

	// Verify against a dummy hash when the user is missing so the lookup
	// outcome doesn't show up as a timing difference.
	targetHash := dummyPasswordHash
	if err == nil {
		targetHash = user.PasswordHash
	} else if !errors.Is(err, ErrNotFound) {
		s.logger.Warn("login check store failure", "error", err)
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		return false
	}

	return err == nil && valid
}

// CreateSession issues a fresh session token for the user with the given
// email, overwriting any prior session - the old token is invalid the
// moment the new one is persisted. The caller is expected to have already
// validated credentials via ValidLogin; this operation does not re-check
// the password. Returns ErrNotFound (wrapped) for an unknown email.
func (s *Service) CreateSession(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code("AUTH_USER_NOT_FOUND").
				With("email", email).
				Wrap(ErrNotFound)
		}
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, tokenHash, err := GenerateToken()
	if err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	if err := s.users.SetSessionToken(ctx, user.ID, tokenHash); err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session token").
			With("user_id", user.ID).
			Wrap(err)
	}

	return token, nil
}

// UserFromSession returns the user owning the given session token, or
// (nil, false) when the token is empty, unknown, or the lookup fails.
// Like ValidLogin it never surfaces an error.
func (s *Service) UserFromSession(ctx context.Context, token string) (*User, bool) {
	if token == "" {
		return nil, false
	}

	user, err := s.users.GetBySessionTokenHash(ctx, HashToken(token))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("session lookup store failure", "error", err)
		}
		return nil, false
	}

	return user, true
}

// DestroySession clears the user's session token. Destroying an
// already-absent session is a no-op success; an unknown user id returns
// ErrNotFound (wrapped). In the normal flow the caller resolved the id via
// UserFromSession first, so the latter should not occur.
func (s *Service) DestroySession(ctx context.Context, userID int64) error {
	if err := s.users.ClearSessionToken(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_USER_NOT_FOUND").
				With("user_id", userID).
				Wrap(ErrNotFound)
		}
		return oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "clear session token").
			With("user_id", userID).
			Wrap(err)
	}
	return nil
}

// ResetToken issues a fresh password reset token for the user with the
// given email, overwriting any prior pending token. Returns ErrNotFound
// (wrapped) for an unknown email.
func (s *Service) ResetToken(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code("AUTH_USER_NOT_FOUND").
				With("email", email).
				Wrap(ErrNotFound)
		}
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, tokenHash, err := GenerateToken()
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	if err := s.users.SetResetToken(ctx, user.ID, tokenHash); err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "persist reset token").
			With("user_id", user.ID).
			Wrap(err)
	}

	return token, nil
}

// UpdatePassword consumes a reset token and replaces the user's password.
// Returns ErrInvalidToken (wrapped) when no user holds the token as their
// pending reset token. The hash replacement and the token clear happen in
// one repository call so the token cannot be replayed.
func (s *Service) UpdatePassword(ctx context.Context, resetToken, newPassword string) error {
	if resetToken == "" {
		return oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidToken)
	}
	if newPassword == "" {
		return ErrEmptyPassword
	}

	user, err := s.users.GetByResetTokenHash(ctx, HashToken(resetToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidToken)
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "get user by reset token").
			Wrap(err)
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash new password").
			Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "update password").
			With("user_id", user.ID).
			Wrap(err)
	}

	return nil
}
