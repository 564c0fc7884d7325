// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/noldarim/taskfeed/internal/backend"
	"github.com/noldarim/taskfeed/internal/config"
	"github.com/noldarim/taskfeed/internal/feed"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Backend is the REST collaborator the server proxies. *backend.Client
// implements it.
type Backend interface {
	feed.HistorySource
	ControlTask(ctx context.Context, agentID, taskID string, action backend.ControlAction) (*backend.TaskStatus, error)
	GetTaskStatus(ctx context.Context, agentID, taskID string) (*backend.TaskStatus, error)
}

// LiveFactory builds the live source for one mounted view.
type LiveFactory func(agentID, taskID string) feed.LiveSource

// Server is the REST + WebSocket view host.
type Server struct {
	httpServer *http.Server
	views      *ViewRegistry
}

// New creates and wires up the server. It does NOT start listening;
// call Run() for that.
func New(cfg *config.AppConfig, be Backend, newLive LiveFactory) *Server {
	views := NewViewRegistry(cfg.Server.MaxViews)
	storeOpts := []feed.Option{
		feed.WithPageSize(cfg.History.PageSize),
		feed.WithRefreshDelay(cfg.Stream.RefreshDelay),
	}
	handlers := NewHandlers(be, storeOpts)
	watch := HandleWatch(views, be, newLive, storeOpts, cfg.Server.AllowedOrigins)

	r := chi.NewRouter()

	// Logger sits outside Recovery so recovered panics are logged as 500s.
	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logger)
	r.Use(Recovery)
	r.Use(CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.RequestSize(maxBodyBytes))

	r.Get("/healthz", handlers.Health(views))

	r.Route("/api/v1/agents/{agentId}/tasks/{taskId}", func(r chi.Router) {
		r.Get("/events", handlers.GetEvents)
		r.Get("/watch", watch)

		// Task control proxy
		r.Get("/status", handlers.GetStatus)
		r.Post("/pause", handlers.Control(backend.ActionPause))
		r.Post("/resume", handlers.Control(backend.ActionResume))
		r.Post("/cancel", handlers.Control(backend.ActionCancel))
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Server.Address(),
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		views: views,
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Views returns the registry of mounted watch views.
func (s *Server) Views() *ViewRegistry {
	return s.views
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		getLog().Info().Str("addr", s.httpServer.Addr).Msg("View host listening")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully stops the HTTP server and unmounts every view.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.views.CloseAll()
	return err
}
