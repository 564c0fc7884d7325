// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, frames string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, frames)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSSETransport_Target(t *testing.T) {
	tr := NewSSETransport("http://backend.local/api/", nil)

	target, err := tr.Target("agent 1", "task/2")
	require.NoError(t, err)
	assert.Equal(t, "http://backend.local/api/agents/agent%201/tasks/task%2F2/events/stream", target)

	_, err = tr.Target("", "task")
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestSSEConn_ParsesFrames(t *testing.T) {
	frames := strings.Join([]string{
		": keep-alive",
		"",
		"event: tool_call_started",
		"id: 7",
		`data: {"tool_name":"bash"}`,
		"",
		"data: line one",
		"data: line two",
		"",
		"retry: 1000",
		"event: ignored-without-data",
		"",
		"event:llm_call_completed",
		"data:{}",
		"",
		"",
	}, "\n")
	srv := sseServer(t, frames)

	tr := NewSSETransport(srv.URL, srv.Client())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := tr.Open(ctx, srv.URL)
	require.NoError(t, err)
	defer conn.Close()

	msg, err := conn.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, Message{Event: "tool_call_started", Data: `{"tool_name":"bash"}`, ID: "7"}, msg)

	msg, err = conn.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultEvent, msg.Event)
	assert.Equal(t, "line one\nline two", msg.Data)
	assert.Equal(t, "7", msg.ID, "last event id carries over")

	msg, err = conn.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "llm_call_completed", msg.Event)
	assert.Equal(t, "{}", msg.Data)
}

func TestSSEConn_EOF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: last\n\ndata: incomplete")
	}))
	defer srv.Close()

	conn, err := NewSSETransport(srv.URL, srv.Client()).Open(context.Background(), srv.URL)
	require.NoError(t, err)
	defer conn.Close()

	msg, err := conn.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "last", msg.Data)

	_, err = conn.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF, "an unterminated event is discarded at end of stream")
}

func TestSSETransport_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "task not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewSSETransport(srv.URL, srv.Client()).Open(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "task not found")
}

func TestClient_OverSSE(t *testing.T) {
	var (
		mu       sync.Mutex
		requests int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		n := requests
		mu.Unlock()

		assert.Equal(t, "/agents/a1/tasks/t1/events/stream", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "event: iteration_started\ndata: {\"iteration\":%d}\n\n", n)
		w.(http.Flusher).Flush()
		if n == 1 {
			return // drop the first connection
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	var (
		got []Message
		gmu sync.Mutex
	)
	c := New(NewSSETransport(srv.URL, srv.Client()), "a1", "t1", WithReconnectDelay(10*time.Millisecond))
	c.SetHandlers(Handlers{OnMessage: func(m Message) {
		gmu.Lock()
		got = append(got, m)
		gmu.Unlock()
	}})
	c.Connect()
	defer func() {
		c.Disconnect()
		c.Wait()
	}()

	assert.Eventually(t, func() bool {
		gmu.Lock()
		defer gmu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)

	gmu.Lock()
	defer gmu.Unlock()
	assert.Equal(t, `{"iteration":1}`, got[0].Data)
	assert.Equal(t, `{"iteration":2}`, got[1].Data)
	assert.Equal(t, "iteration_started", got[1].Event)
}
