// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package auth_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/identity/internal/auth"
)

var _ = Describe("Registration", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupUsers(ctx, env.pool)
	})

	It("creates a user with a store-assigned id", func() {
		user, err := env.Service.Register(ctx, "alice@example.com", "s3cret")
		Expect(err).NotTo(HaveOccurred())
		Expect(user.ID).To(BeNumerically(">", 0))
		Expect(user.Email).To(Equal("alice@example.com"))
		Expect(user.PasswordHash).NotTo(ContainSubstring("s3cret"))
	})

	It("rejects a duplicate email", func() {
		_, err := env.Service.Register(ctx, "alice@example.com", "s3cret")
		Expect(err).NotTo(HaveOccurred())

		_, err = env.Service.Register(ctx, "alice@example.com", "other")
		Expect(err).To(MatchError(auth.ErrUserExists))
	})

	It("rejects a duplicate email differing only in case", func() {
		_, err := env.Service.Register(ctx, "alice@example.com", "s3cret")
		Expect(err).NotTo(HaveOccurred())

		_, err = env.Service.Register(ctx, "Alice@Example.COM", "other")
		Expect(err).To(MatchError(auth.ErrUserExists))
	})
})

var _ = Describe("Login and sessions", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupUsers(ctx, env.pool)

		_, err := env.Service.Register(ctx, "alice@example.com", "s3cret")
		Expect(err).NotTo(HaveOccurred())
	})

	It("accepts valid credentials and rejects invalid ones", func() {
		Expect(env.Service.ValidLogin(ctx, "alice@example.com", "s3cret")).To(BeTrue())
		Expect(env.Service.ValidLogin(ctx, "alice@example.com", "wrong")).To(BeFalse())
		Expect(env.Service.ValidLogin(ctx, "ghost@example.com", "s3cret")).To(BeFalse())
	})

	It("round-trips a session token", func() {
		token, err := env.Service.CreateSession(ctx, "alice@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(token).NotTo(BeEmpty())

		user, ok := env.Service.UserFromSession(ctx, token)
		Expect(ok).To(BeTrue())
		Expect(user.Email).To(Equal("alice@example.com"))
	})

	It("invalidates the previous token on a second login", func() {
		first, err := env.Service.CreateSession(ctx, "alice@example.com")
		Expect(err).NotTo(HaveOccurred())

		second, err := env.Service.CreateSession(ctx, "alice@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(second).NotTo(Equal(first))

		_, ok := env.Service.UserFromSession(ctx, first)
		Expect(ok).To(BeFalse())

		_, ok = env.Service.UserFromSession(ctx, second)
		Expect(ok).To(BeTrue())
	})

	It("destroys a session", func() {
		token, err := env.Service.CreateSession(ctx, "alice@example.com")
		Expect(err).NotTo(HaveOccurred())

		user, ok := env.Service.UserFromSession(ctx, token)
		Expect(ok).To(BeTrue())

		Expect(env.Service.DestroySession(ctx, user.ID)).To(Succeed())

		_, ok = env.Service.UserFromSession(ctx, token)
		Expect(ok).To(BeFalse())
	})

	It("fails session creation for an unknown email", func() {
		_, err := env.Service.CreateSession(ctx, "ghost@example.com")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})
})

var _ = Describe("Password reset", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		cleanupUsers(ctx, env.pool)

		_, err := env.Service.Register(ctx, "alice@example.com", "s3cret")
		Expect(err).NotTo(HaveOccurred())
	})

	It("updates the password exactly once per token", func() {
		token, err := env.Service.ResetToken(ctx, "alice@example.com")
		Expect(err).NotTo(HaveOccurred())

		Expect(env.Service.UpdatePassword(ctx, token, "n3wpass")).To(Succeed())

		Expect(env.Service.ValidLogin(ctx, "alice@example.com", "s3cret")).To(BeFalse())
		Expect(env.Service.ValidLogin(ctx, "alice@example.com", "n3wpass")).To(BeTrue())

		// Token is single use
		err = env.Service.UpdatePassword(ctx, token, "again")
		Expect(err).To(MatchError(auth.ErrInvalidToken))
		Expect(env.Service.ValidLogin(ctx, "alice@example.com", "n3wpass")).To(BeTrue())
	})

	It("overwrites an outstanding token on a second request", func() {
		first, err := env.Service.ResetToken(ctx, "alice@example.com")
		Expect(err).NotTo(HaveOccurred())

		second, err := env.Service.ResetToken(ctx, "alice@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(second).NotTo(Equal(first))

		Expect(env.Service.UpdatePassword(ctx, first, "n3wpass")).To(MatchError(auth.ErrInvalidToken))
		Expect(env.Service.UpdatePassword(ctx, second, "n3wpass")).To(Succeed())
	})

	It("rejects an unrecognized token without changing state", func() {
		err := env.Service.UpdatePassword(ctx, "bogus", "n3wpass")
		Expect(err).To(MatchError(auth.ErrInvalidToken))

		Expect(env.Service.ValidLogin(ctx, "alice@example.com", "s3cret")).To(BeTrue())
	})

	It("fails token generation for an unknown email", func() {
		_, err := env.Service.ResetToken(ctx, "ghost@example.com")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})
})
