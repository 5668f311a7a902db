// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/holomush/identity/internal/auth"
	"github.com/holomush/identity/pkg/errutil"
)

// sessionCookieName is the cookie carrying the opaque session token.
const sessionCookieName = "session_id"

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client is gone
	json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Bienvenue"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")

	user, err := s.svc.Register(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"message": "email already registered",
			})
			return
		}
		errutil.LogError(slog.Default(), "registration failed", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": "invalid email or password",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"email":   user.Email,
		"message": "user created",
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")

	ok := s.svc.ValidLogin(r.Context(), email, password)
	if s.metrics != nil {
		s.metrics.RecordAuthAttempt(ok)
	}
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	token, err := s.svc.CreateSession(r.Context(), email)
	if err != nil {
		errutil.LogError(slog.Default(), "session creation failed", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{
		"email":   email,
		"message": "logged in",
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user, ok := s.sessionUser(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	if err := s.svc.DestroySession(r.Context(), user.ID); err != nil {
		errutil.LogError(slog.Default(), "session destruction failed", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	// Expire the cookie alongside the server-side token
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := s.sessionUser(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"email": user.Email})
}

func (s *Server) handleResetToken(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")

	token, err := s.svc.ResetToken(r.Context(), email)
	if err != nil {
		if !errors.Is(err, auth.ErrNotFound) {
			errutil.LogError(slog.Default(), "reset token generation failed", err)
		}
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"email":       email,
		"reset_token": token,
	})
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	resetToken := r.FormValue("reset_token")
	newPassword := r.FormValue("new_password")

	if err := s.svc.UpdatePassword(r.Context(), resetToken, newPassword); err != nil {
		if !errors.Is(err, auth.ErrInvalidToken) {
			errutil.LogError(slog.Default(), "password update failed", err)
		}
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"email":   email,
		"message": "Password updated",
	})
}

// sessionUser resolves the user behind the request's session cookie.
func (s *Server) sessionUser(r *http.Request) (*auth.User, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	return s.svc.UserFromSession(r.Context(), cookie.Value)
}
