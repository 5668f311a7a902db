// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/samber/oops"
)

// TokenBytes is the entropy of session and reset tokens.
// 32 bytes = 64 hex chars.
const TokenBytes = 32

// GenerateToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error). The plaintext token goes
// to the client; only the hash is ever stored.
func GenerateToken() (token, hash string, err error) {
	tokenBytes := make([]byte, TokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("AUTH_TOKEN_GENERATE_FAILED").
			With("requested_bytes", TokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashToken(token), nil
}

// HashToken computes the SHA-256 hash of a token for at-rest storage and
// repository lookups.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
