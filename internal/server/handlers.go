// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/noldarim/taskfeed/internal/backend"
	"github.com/noldarim/taskfeed/internal/feed"
	"github.com/noldarim/taskfeed/internal/taskevents"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	backend   Backend
	storeOpts []feed.Option
}

// NewHandlers creates the handler set.
func NewHandlers(be Backend, storeOpts []feed.Option) *Handlers {
	return &Handlers{backend: be, storeOpts: storeOpts}
}

// EventsResponse is the body of GET .../events.
type EventsResponse struct {
	State  feed.EventsState          `json:"state"`
	Events []taskevents.DisplayEvent `json:"events"`
	Stats  feed.EventStats           `json:"stats"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Context string `json:"context,omitempty"`
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		getLog().Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeBackendError maps a backend failure onto a response status. Client
// errors from the backend pass through; everything else is a 502.
func writeBackendError(w http.ResponseWriter, msg string, err error) {
	status := http.StatusBadGateway
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, backend.ErrMissingIDs):
		status = http.StatusBadRequest
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		status = apiErr.StatusCode
	}
	writeJSON(w, status, errorResponse{Error: msg, Context: err.Error()})
}

// queryList collects a repeatable, comma-separated query parameter.
func queryList(r *http.Request, key string) []string {
	var out []string
	for _, raw := range r.URL.Query()[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func filtersFromQuery(r *http.Request) feed.Filters {
	return feed.Filters{
		Search: r.URL.Query().Get("search"),
		Levels: lo.Map(queryList(r, "level"), func(s string, _ int) taskevents.Level {
			return taskevents.Level(strings.ToLower(s))
		}),
		Types: lo.Map(queryList(r, "type"), func(s string, _ int) taskevents.EventType {
			if t, ok := taskevents.ResolveType(s); ok {
				return t
			}
			return taskevents.EventType(s)
		}),
	}
}

// Health handles GET /healthz
func (h *Handlers) Health(views *ViewRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "views": views.Count()})
	}
}

// GetEvents handles GET /api/v1/agents/{agentId}/tasks/{taskId}/events. It
// loads one history page into a throwaway store and returns the state, the
// filtered projection and statistics.
func (h *Handlers) GetEvents(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	taskID := chi.URLParam(r, "taskId")

	opts := append([]feed.Option{}, h.storeOpts...)
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid page_size", Context: raw})
			return
		}
		opts = append(opts, feed.WithPageSize(n))
	}
	if et := r.URL.Query().Get("event_type"); et != "" {
		opts = append(opts, feed.WithEventTypeFilter(et))
	}

	store := feed.NewStore(agentID, taskID, h.backend, nil, opts...)
	defer store.Close()

	if err := store.LoadHistory(r.Context()); err != nil {
		writeBackendError(w, "Failed to load task events", err)
		return
	}

	filters := filtersFromQuery(r)
	store.UpdateFilters(feed.FilterPatch{Search: &filters.Search, Levels: &filters.Levels, Types: &filters.Types})

	writeJSON(w, http.StatusOK, EventsResponse{
		State:  store.Snapshot(),
		Events: store.Filtered(),
		Stats:  store.Stats(),
	})
}

// GetStatus handles GET /api/v1/agents/{agentId}/tasks/{taskId}/status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.backend.GetTaskStatus(r.Context(), chi.URLParam(r, "agentId"), chi.URLParam(r, "taskId"))
	if err != nil {
		writeBackendError(w, "Failed to get task status", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Control handles POST /api/v1/agents/{agentId}/tasks/{taskId}/{action}
func (h *Handlers) Control(action backend.ControlAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID := chi.URLParam(r, "agentId")
		taskID := chi.URLParam(r, "taskId")

		status, err := h.backend.ControlTask(r.Context(), agentID, taskID, action)
		if err != nil {
			writeBackendError(w, "Failed to "+string(action)+" task", err)
			return
		}
		requestLog(r.Context()).Info().
			Str("agent_id", agentID).
			Str("task_id", taskID).
			Str("action", string(action)).
			Msg("Task control forwarded")
		writeJSON(w, http.StatusOK, status)
	}
}
