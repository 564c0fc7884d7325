// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package feed holds the ordered, deduplicated event collection for one
// (agent, task) pair and merges history with the live stream.
package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/noldarim/taskfeed/internal/backend"
	"github.com/noldarim/taskfeed/internal/logger"
	"github.com/noldarim/taskfeed/internal/stream"
	"github.com/noldarim/taskfeed/internal/taskevents"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetFeedLogger()
		log = &l
	})
	return log
}

const (
	DefaultPageSize     = 100
	DefaultRefreshDelay = 500 * time.Millisecond
)

// HistorySource serves paged event history. *backend.Client implements it.
type HistorySource interface {
	ListTaskEvents(ctx context.Context, agentID, taskID string, q backend.HistoryQuery) (*backend.EventPage, error)
}

// LiveSource is the live subscription the store drives. *stream.Client
// implements it.
type LiveSource interface {
	Connect()
	Disconnect()
	SetHandlers(h stream.Handlers)
}

// Option configures a Store.
type Option func(*Store)

// WithPageSize sets the history page size.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithEventTypeFilter restricts the history fetch to one event type.
func WithEventTypeFilter(eventType string) Option {
	return func(s *Store) {
		s.eventType = eventType
	}
}

// WithRefreshDelay sets the pause between disconnect and reconnect on Refresh.
func WithRefreshDelay(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.refreshDelay = d
		}
	}
}

// WithNormalizer sets the normalizer used for history and live events.
func WithNormalizer(n *taskevents.Normalizer) Option {
	return func(s *Store) {
		s.normalizer = n
	}
}

// WithClock sets the clock used for statistics.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store is the merge point for one (agent, task) pair. Events are unique by
// ID and kept sorted ascending by timestamp. A Store is discarded with Close
// when its view goes away; it is never reused for another pair.
type Store struct {
	agentID      string
	taskID       string
	history      HistorySource
	live         LiveSource
	normalizer   *taskevents.Normalizer
	pageSize     int
	eventType    string
	refreshDelay time.Duration
	now          func() time.Time

	mu             sync.Mutex
	state          EventsState
	historyLoaded  bool
	gen            uint64
	closed         bool
	reconnectTimer *time.Timer
	changes        chan struct{}
}

// NewStore creates a store. live may be nil for history-only views.
func NewStore(agentID, taskID string, history HistorySource, live LiveSource, opts ...Option) *Store {
	s := &Store{
		agentID:      agentID,
		taskID:       taskID,
		history:      history,
		live:         live,
		pageSize:     DefaultPageSize,
		refreshDelay: DefaultRefreshDelay,
		now:          time.Now,
		changes:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.normalizer == nil {
		s.normalizer = taskevents.NewNormalizer(taskevents.WithClock(s.now))
	}
	s.state = EventsState{
		Events:     []taskevents.DisplayEvent{},
		Pagination: Pagination{Page: 1, PageSize: s.pageSize},
	}
	return s
}

// AgentID returns the agent this store is bound to.
func (s *Store) AgentID() string { return s.agentID }

// TaskID returns the task this store is bound to.
func (s *Store) TaskID() string { return s.taskID }

// Changes delivers a coalesced signal after every state change. It is closed
// by Close.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

func (s *Store) notifyLocked() {
	if s.closed {
		return
	}
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Store) setErrorLocked(err error) {
	if err == nil {
		s.state.Error = nil
		return
	}
	msg := err.Error()
	s.state.Error = &msg
}

// LoadHistory fetches the first page of history once per pair. Further calls
// are no-ops until Refresh. A failure is recorded in the state error and
// leaves already merged events in place; it is also returned.
func (s *Store) LoadHistory(ctx context.Context) error {
	s.mu.Lock()
	if s.closed || s.historyLoaded || s.state.Loading {
		s.mu.Unlock()
		return nil
	}
	s.state.Loading = true
	gen := s.gen
	s.notifyLocked()
	s.mu.Unlock()

	getLog().Debug().
		Str("agent_id", s.agentID).
		Str("task_id", s.taskID).
		Int("page_size", s.pageSize).
		Msg("Fetching event history")

	page, err := s.history.ListTaskEvents(ctx, s.agentID, s.taskID, backend.HistoryQuery{
		Page:      1,
		PageSize:  s.pageSize,
		EventType: s.eventType,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.gen {
		getLog().Debug().Str("task_id", s.taskID).Msg("Discarding stale history result")
		return nil
	}

	s.state.Loading = false
	if err != nil {
		getLog().Warn().Err(err).Str("task_id", s.taskID).Msg("Failed to load event history")
		s.setErrorLocked(err)
		s.notifyLocked()
		return err
	}

	historical := lo.Map(page.Events, func(raw taskevents.RawHistoricalEvent, _ int) taskevents.DisplayEvent {
		return s.normalizer.Historical(raw)
	})
	// Live events that raced ahead of the fetch win over their history copy.
	s.state.Events = upsertAll(historical, s.state.Events)
	s.state.Error = nil
	s.state.Pagination = Pagination{
		Page:     page.Page,
		PageSize: page.PageSize,
		Total:    page.Total,
		HasNext:  page.HasNext,
	}
	if s.state.Pagination.Page == 0 {
		s.state.Pagination.Page = 1
	}
	if s.state.Pagination.PageSize == 0 {
		s.state.Pagination.PageSize = s.pageSize
	}
	s.historyLoaded = true
	s.notifyLocked()
	return nil
}

// AttachLive routes the live source's callbacks into the store.
func (s *Store) AttachLive() {
	if s.live == nil {
		return
	}
	s.live.SetHandlers(stream.Handlers{
		OnOpen: func() {
			s.update(func() {
				s.state.Connected = true
				s.state.Error = nil
			})
		},
		OnClose: func() {
			s.update(func() {
				s.state.Connected = false
			})
		},
		OnError: func(err error) {
			s.update(func() {
				s.state.Connected = false
				s.setErrorLocked(err)
			})
		},
		OnMessage: func(msg stream.Message) {
			s.Merge(s.normalizer.Live(taskevents.RawLiveEnvelope{Event: msg.Event, Data: msg.Data}))
		},
	})
}

func (s *Store) update(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	fn()
	s.notifyLocked()
}

// Merge upserts ev by ID and keeps the collection sorted by timestamp.
func (s *Store) Merge(ev taskevents.DisplayEvent) {
	s.update(func() {
		s.state.Events = upsert(s.state.Events, ev)
	})
}

// Connect opens the live subscription.
func (s *Store) Connect() {
	if s.live == nil {
		return
	}
	s.live.Connect()
}

// Disconnect closes the live subscription and marks the store disconnected.
// A reconnect still pending from Refresh is cancelled.
func (s *Store) Disconnect() {
	if s.live == nil {
		return
	}
	s.mu.Lock()
	s.stopTimerLocked()
	s.mu.Unlock()

	s.live.Disconnect()
	s.update(func() {
		s.state.Connected = false
	})
}

// Refresh drops all events, clears the error, reloads history and resubscribes
// the live source after the refresh delay.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	s.historyLoaded = false
	s.state.Loading = false
	s.state.Events = []taskevents.DisplayEvent{}
	s.state.Error = nil
	s.state.Connected = false
	s.stopTimerLocked()
	s.notifyLocked()
	s.mu.Unlock()

	getLog().Info().Str("agent_id", s.agentID).Str("task_id", s.taskID).Msg("Refreshing task events")

	if s.live != nil {
		s.live.Disconnect()

		s.mu.Lock()
		if !s.closed && gen == s.gen {
			var timer *time.Timer
			// Connect runs under mu so Close and Disconnect either cancel
			// the timer or follow the Connect and undo it.
			timer = time.AfterFunc(s.refreshDelay, func() {
				s.mu.Lock()
				defer s.mu.Unlock()
				if s.closed || gen != s.gen || s.reconnectTimer != timer {
					return
				}
				s.reconnectTimer = nil
				s.live.Connect()
			})
			s.reconnectTimer = timer
		}
		s.mu.Unlock()
	}

	return s.LoadHistory(ctx)
}

func (s *Store) stopTimerLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

// ClearEvents empties the collection and clears the error. The connection is
// left alone.
func (s *Store) ClearEvents() {
	s.update(func() {
		s.state.Events = []taskevents.DisplayEvent{}
		s.state.Error = nil
	})
}

// UpdateFilters merges p into the stored filters.
func (s *Store) UpdateFilters(p FilterPatch) {
	s.update(func() {
		s.state.Filters = p.Apply(s.state.Filters)
	})
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() EventsState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Filtered returns the events that pass the stored filters.
func (s *Store) Filtered() []taskevents.DisplayEvent {
	snap := s.Snapshot()
	return ApplyFilters(snap.Events, snap.Filters)
}

// Stats returns statistics over the full, unfiltered collection.
func (s *Store) Stats() EventStats {
	s.mu.Lock()
	events := s.state.Events
	s.mu.Unlock()
	return GetEventStats(events, s.now())
}

// HistoryLoaded reports whether the current history fetch has completed.
func (s *Store) HistoryLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyLoaded
}

// Close disconnects the live source and discards the store. Pending history
// results and reconnect timers are ignored afterwards. Close is idempotent.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	s.stopTimerLocked()
	close(s.changes)
	s.mu.Unlock()

	if s.live != nil {
		s.live.Disconnect()
	}
	getLog().Debug().Str("agent_id", s.agentID).Str("task_id", s.taskID).Msg("Store closed")
}

// upsert returns a new slice: events without ev.ID, plus ev, sorted by
// timestamp. Equal timestamps keep their relative order.
func upsert(events []taskevents.DisplayEvent, ev taskevents.DisplayEvent) []taskevents.DisplayEvent {
	out := lo.Reject(events, func(e taskevents.DisplayEvent, _ int) bool {
		return e.ID == ev.ID
	})
	out = append(out, ev)
	sortByTimestamp(out)
	return out
}

// upsertAll applies every event of overlay onto base in order.
func upsertAll(base, overlay []taskevents.DisplayEvent) []taskevents.DisplayEvent {
	byID := make(map[string]int, len(base)+len(overlay))
	out := make([]taskevents.DisplayEvent, 0, len(base)+len(overlay))
	for _, list := range [][]taskevents.DisplayEvent{base, overlay} {
		for _, ev := range list {
			if i, ok := byID[ev.ID]; ok {
				out[i] = ev
				continue
			}
			byID[ev.ID] = len(out)
			out = append(out, ev)
		}
	}
	sortByTimestamp(out)
	return out
}

func sortByTimestamp(events []taskevents.DisplayEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}
