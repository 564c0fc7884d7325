// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"errors"
	"fmt"
	"time"

	"github.com/noldarim/taskfeed/internal/taskevents"
)

// ErrMissingIDs is returned when an agent or task id is empty.
var ErrMissingIDs = errors.New("backend: agent id and task id are required")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

// HistoryQuery selects one page of task event history.
type HistoryQuery struct {
	Page      int
	PageSize  int
	EventType string
}

// EventPage is one page of the event history endpoint.
type EventPage struct {
	Events   []taskevents.RawHistoricalEvent `json:"events"`
	Page     int                             `json:"page"`
	PageSize int                             `json:"page_size"`
	Total    int                             `json:"total"`
	HasNext  bool                            `json:"has_next"`
}

// ControlAction is a task control verb.
type ControlAction string

const (
	ActionPause  ControlAction = "pause"
	ActionResume ControlAction = "resume"
	ActionCancel ControlAction = "cancel"
)

// ParseControlAction validates a user-supplied action name.
func ParseControlAction(s string) (ControlAction, error) {
	switch a := ControlAction(s); a {
	case ActionPause, ActionResume, ActionCancel:
		return a, nil
	default:
		return "", fmt.Errorf("unknown task action %q (want pause, resume or cancel)", s)
	}
}

// TaskStatus is the backend's view of one task.
type TaskStatus struct {
	TaskID    string     `json:"task_id" yaml:"task_id"`
	AgentID   string     `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
	Status    string     `json:"status" yaml:"status"`
	Message   string     `json:"message,omitempty" yaml:"message,omitempty"`
	Progress  *float64   `json:"progress,omitempty" yaml:"progress,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}
