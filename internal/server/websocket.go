// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/noldarim/taskfeed/internal/feed"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// WebSocket limits
	maxMessageSize = 4096
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	writeWait      = 10 * time.Second
	sendBuffer     = 64

	// DefaultMaxViews caps concurrently mounted views when none is configured.
	DefaultMaxViews = 1000
)

// Client → server commands.
const (
	cmdRefresh    = "refresh"
	cmdClear      = "clear"
	cmdConnect    = "connect"
	cmdDisconnect = "disconnect"
	cmdFilters    = "filters"
)

// newUpgrader creates a WebSocket upgrader that respects the configured allowed
// origins. When allowedOrigins is empty the upgrader accepts any origin
// (localhost development mode). When set, only those origins are permitted.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := originSet(allowedOrigins)

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			_, ok := allowed[r.Header.Get("Origin")]
			return ok
		},
	}
}

// originSet indexes the allowed origins for constant-time lookup.
func originSet(origins []string) map[string]struct{} {
	set := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		set[o] = struct{}{}
	}
	return set
}

// wsMessage is the envelope for client → server WebSocket messages.
type wsMessage struct {
	Type    string            `json:"type"`
	Filters *feed.FilterPatch `json:"filters,omitempty"` // only for "filters"
}

// view is one mounted task view: a WebSocket connection bound to its own
// store and live subscription. dirty holds at most one pending state push;
// writePump renders the newest snapshot when it drains it.
type view struct {
	id        string
	agentID   string
	taskID    string
	conn      *websocket.Conn
	store     *feed.Store
	send      chan []byte
	dirty     chan struct{}
	published chan struct{}
}

func (v *view) enqueue(data []byte) {
	select {
	case v.send <- data:
	default:
		// client too slow, skip; state is never sent through here
		getLog().Warn().Str("view_id", v.id).Msg("Dropping message for slow WebSocket client")
	}
}

// ViewRegistry tracks mounted views.
type ViewRegistry struct {
	mu    sync.RWMutex
	limit int
	views map[string]*view
}

// NewViewRegistry creates a registry that admits at most limit views.
func NewViewRegistry(limit int) *ViewRegistry {
	if limit <= 0 {
		limit = DefaultMaxViews
	}
	return &ViewRegistry{
		limit: limit,
		views: make(map[string]*view),
	}
}

func (r *ViewRegistry) add(v *view) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.views) >= r.limit {
		return false
	}
	r.views[v.id] = v
	return true
}

func (r *ViewRegistry) remove(v *view) {
	r.mu.Lock()
	delete(r.views, v.id)
	r.mu.Unlock()
}

// Count returns the number of mounted views.
func (r *ViewRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.views)
}

// IDs returns the mounted view IDs, sorted.
func (r *ViewRegistry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.views))
	for id := range r.views {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// CloseAll closes every view's connection. Each view unmounts itself once
// its read loop notices.
func (r *ViewRegistry) CloseAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.views {
		v.conn.Close()
	}
}

// HandleWatch upgrades the connection and mounts a view for the URL's
// (agent, task) pair. The view lives until the connection closes.
func HandleWatch(views *ViewRegistry, history feed.HistorySource, newLive LiveFactory, storeOpts []feed.Option, allowedOrigins []string) http.HandlerFunc {
	upgrader := newUpgrader(allowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		agentID := chi.URLParam(r, "agentId")
		taskID := chi.URLParam(r, "taskId")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			requestLog(r.Context()).Error().Err(err).Msg("WebSocket upgrade failed")
			return
		}

		v := &view{
			id:        uuid.New().String(),
			agentID:   agentID,
			taskID:    taskID,
			conn:      conn,
			send:      make(chan []byte, sendBuffer),
			dirty:     make(chan struct{}, 1),
			published: make(chan struct{}),
		}
		if !views.add(v) {
			requestLog(r.Context()).Warn().Int("limit", views.limit).Msg("View limit reached")
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many views"))
			conn.Close()
			return
		}

		var live feed.LiveSource
		if newLive != nil {
			live = newLive(agentID, taskID)
		}
		v.store = feed.NewStore(agentID, taskID, history, live, storeOpts...)
		v.store.AttachLive()

		requestLog(r.Context()).Info().
			Str("view_id", v.id).
			Str("agent_id", agentID).
			Str("task_id", taskID).
			Str("remote", r.RemoteAddr).
			Msg("View mounted")

		ctx, cancel := context.WithCancel(context.Background())
		go v.writePump()
		go v.publish(ctx)
		go func() {
			if err := v.store.LoadHistory(ctx); err != nil {
				getLog().Debug().Err(err).Str("view_id", v.id).Msg("Initial history load failed")
			}
		}()
		v.store.Connect()

		v.readPump(ctx, cancel, views)
	}
}

func (v *view) readPump(ctx context.Context, cancel context.CancelFunc, views *ViewRegistry) {
	defer func() {
		cancel()
		v.store.Close()
		<-v.published
		views.remove(v)
		close(v.send) // signals writePump to exit
		v.conn.Close()
		getLog().Info().Str("view_id", v.id).Msg("View unmounted")
	}()

	v.conn.SetReadLimit(maxMessageSize)
	v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		v.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := v.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				getLog().Error().Err(err).Str("view_id", v.id).Msg("WebSocket read error")
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			getLog().Warn().Err(err).Msg("Invalid WebSocket message")
			v.enqueue(errorMessage(v.id, "invalid message"))
			continue
		}
		v.handle(ctx, msg)
	}
}

func (v *view) handle(ctx context.Context, msg wsMessage) {
	getLog().Debug().Str("view_id", v.id).Str("command", msg.Type).Msg("View command")

	switch msg.Type {
	case cmdRefresh:
		go func() {
			if err := v.store.Refresh(ctx); err != nil {
				getLog().Debug().Err(err).Str("view_id", v.id).Msg("Refresh history load failed")
			}
		}()
	case cmdClear:
		v.store.ClearEvents()
	case cmdConnect:
		v.store.Connect()
	case cmdDisconnect:
		v.store.Disconnect()
	case cmdFilters:
		if msg.Filters == nil {
			v.enqueue(errorMessage(v.id, "filters command requires a filters object"))
			return
		}
		v.store.UpdateFilters(*msg.Filters)
	default:
		v.enqueue(errorMessage(v.id, "unknown command: "+msg.Type))
	}
}

func (v *view) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-v.send:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed by readPump, send close frame.
				v.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				getLog().Error().Err(err).Str("view_id", v.id).Msg("WebSocket write error")
				return
			}
		case <-v.dirty:
			data, err := stateMessage(v.id, v.store)
			if err != nil {
				getLog().Error().Err(err).Str("view_id", v.id).Msg("Failed to marshal view state")
				continue
			}
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				getLog().Error().Err(err).Str("view_id", v.id).Msg("WebSocket write error")
				return
			}
		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
