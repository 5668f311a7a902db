// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth implements the account and session core of the identity
// service.
//
// # Domain Types
//
// User is the single domain type: one registered account with its password
// hash and at most one live session token and one pending reset token.
// Users should be created through NewUser, which validates the email and
// password hash before the record ever reaches a repository.
//
// # Service
//
// Service holds no state of its own; every operation reads and writes
// through a UserRepository. Lookup operations used for authentication
// decisions (ValidLogin, UserFromSession) deliberately collapse every
// failure into a negative result so callers cannot distinguish "no such
// user" from "wrong password" or a store error. Mutating operations
// surface typed failures (ErrUserExists, ErrNotFound, ErrInvalidToken)
// for the transport layer to map onto status codes.
package auth
