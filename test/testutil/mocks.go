// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package testutil

import (
	"context"
	"sync"

	"github.com/noldarim/taskfeed/internal/backend"
	"github.com/noldarim/taskfeed/internal/stream"
)

// FakeHistory serves a canned page or error and counts fetches. Set Gate to
// hold each fetch until a value is sent on it.
type FakeHistory struct {
	mu      sync.Mutex
	Page    *backend.EventPage
	Err     error
	Gate    chan struct{}
	calls   int
	queries []backend.HistoryQuery
}

// ListTaskEvents implements the store's history source.
func (f *FakeHistory) ListTaskEvents(ctx context.Context, agentID, taskID string, q backend.HistoryQuery) (*backend.EventPage, error) {
	f.mu.Lock()
	f.calls++
	f.queries = append(f.queries, q)
	gate := f.Gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Page == nil {
		return SamplePage(nil), nil
	}
	return f.Page, nil
}

// Set replaces the canned answer.
func (f *FakeHistory) Set(page *backend.EventPage, err error) {
	f.mu.Lock()
	f.Page, f.Err = page, err
	f.mu.Unlock()
}

// Calls returns how many fetches were made.
func (f *FakeHistory) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Queries returns the queries received so far.
func (f *FakeHistory) Queries() []backend.HistoryQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.HistoryQuery(nil), f.queries...)
}

// RecordingLiveSource records Connect/Disconnect calls in order and lets tests
// fire the registered handlers directly.
type RecordingLiveSource struct {
	mu       sync.Mutex
	calls    []string
	handlers stream.Handlers
}

func (r *RecordingLiveSource) Connect() {
	r.mu.Lock()
	r.calls = append(r.calls, "connect")
	r.mu.Unlock()
}

func (r *RecordingLiveSource) Disconnect() {
	r.mu.Lock()
	r.calls = append(r.calls, "disconnect")
	r.mu.Unlock()
}

func (r *RecordingLiveSource) SetHandlers(h stream.Handlers) {
	r.mu.Lock()
	r.handlers = h
	r.mu.Unlock()
}

// Calls returns the recorded call sequence.
func (r *RecordingLiveSource) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Reset forgets recorded calls.
func (r *RecordingLiveSource) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

func (r *RecordingLiveSource) current() stream.Handlers {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handlers
}

// Open fires OnOpen.
func (r *RecordingLiveSource) Open() {
	if h := r.current(); h.OnOpen != nil {
		h.OnOpen()
	}
}

// Close fires OnClose.
func (r *RecordingLiveSource) Close() {
	if h := r.current(); h.OnClose != nil {
		h.OnClose()
	}
}

// Fail fires OnError.
func (r *RecordingLiveSource) Fail(err error) {
	if h := r.current(); h.OnError != nil {
		h.OnError(err)
	}
}

// Send fires OnMessage.
func (r *RecordingLiveSource) Send(event, data string) {
	if h := r.current(); h.OnMessage != nil {
		h.OnMessage(stream.Message{Event: event, Data: data})
	}
}
