// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server hosts task event views over REST and WebSocket. Each
// WebSocket connection mounts its own feed.Store and live subscription;
// state snapshots are pushed to the client after every store change.
package server

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/noldarim/taskfeed/internal/feed"
	"github.com/noldarim/taskfeed/internal/logger"
	"github.com/noldarim/taskfeed/internal/taskevents"

	"github.com/rs/zerolog"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetAPILogger()
		log = &l
	})
	return log
}

// Outgoing message types.
const (
	msgState = "state"
	msgError = "error"
)

// wsOutMessage is the envelope for server → client WebSocket messages.
type wsOutMessage struct {
	Type    string                    `json:"type"` // "state" or "error"
	ViewID  string                    `json:"view_id,omitempty"`
	State   *feed.EventsState         `json:"state,omitempty"`
	Events  []taskevents.DisplayEvent `json:"events,omitempty"` // filtered projection of State.Events
	Stats   *feed.EventStats          `json:"stats,omitempty"`
	Message string                    `json:"message,omitempty"`
}

func stateMessage(viewID string, store *feed.Store) ([]byte, error) {
	state := store.Snapshot()
	stats := store.Stats()
	return json.Marshal(wsOutMessage{
		Type:   msgState,
		ViewID: viewID,
		State:  &state,
		Events: feed.ApplyFilters(state.Events, state.Filters),
		Stats:  &stats,
	})
}

func errorMessage(viewID, text string) []byte {
	data, _ := json.Marshal(wsOutMessage{Type: msgError, ViewID: viewID, Message: text})
	return data
}

// publish pushes a state snapshot for the initial state and after every
// store change, until ctx is cancelled or the store is closed.
func (v *view) publish(ctx context.Context) {
	defer close(v.published)

	v.pushState()
	changes := v.store.Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			v.pushState()
		}
	}
}

// pushState marks the view's state as pending. Bursts of changes collapse
// into one write of the newest snapshot.
func (v *view) pushState() {
	select {
	case v.dirty <- struct{}{}:
	default:
	}
}
