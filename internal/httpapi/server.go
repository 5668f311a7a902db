// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package httpapi exposes the authentication service over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/oops"

	"github.com/holomush/identity/internal/auth"
	"github.com/holomush/identity/internal/observability"
)

// Server serves the authentication HTTP API.
type Server struct {
	addr       string
	svc        *auth.Service
	metrics    *observability.Metrics
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates an API server. metrics may be nil, in which case no
// request metrics are recorded.
func NewServer(addr string, svc *auth.Service, metrics *observability.Metrics) (*Server, error) {
	if svc == nil {
		return nil, oops.Errorf("auth service is required")
	}
	return &Server{
		addr:    addr,
		svc:     svc,
		metrics: metrics,
	}, nil
}

// Router builds the request router with all API routes and middleware.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.instrumentMiddleware)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/users", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/sessions", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/sessions", s.handleLogout).Methods(http.MethodDelete)
	r.HandleFunc("/profile", s.handleProfile).Methods(http.MethodGet)
	r.HandleFunc("/reset_password", s.handleResetToken).Methods(http.MethodPost)
	r.HandleFunc("/reset_password", s.handleUpdatePassword).Methods(http.MethodPut)

	return r
}

// Start begins serving the API. It returns an error channel that receives
// any error from the HTTP server after startup; the channel is closed on
// graceful stop.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}

	slog.Info("api server stopped")
	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
