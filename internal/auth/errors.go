// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = errors.New("not found")

// ErrUserExists is returned when registering an email that is already taken.
var ErrUserExists = errors.New("user already exists")

// ErrInvalidToken is returned when a reset token is not recognized as pending.
var ErrInvalidToken = errors.New("invalid reset token")
