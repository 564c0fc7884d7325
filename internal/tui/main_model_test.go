// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/noldarim/taskfeed/internal/feed"
	"github.com/noldarim/taskfeed/internal/taskevents"
	"github.com/noldarim/taskfeed/internal/tui/layout"
	"github.com/noldarim/taskfeed/test/testutil"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T) (WatchModel, *feed.Store, *testutil.FakeHistory, *testutil.RecordingLiveSource) {
	t.Helper()
	history := &testutil.FakeHistory{}
	history.Set(testutil.SamplePage(testutil.SampleHistory()), nil)
	live := &testutil.RecordingLiveSource{}

	store := feed.NewStore("agent-1", "task-1", history, live,
		feed.WithClock(testutil.FixedClock()),
		feed.WithRefreshDelay(0),
	)
	store.AttachLive()
	t.Cleanup(store.Close)

	return NewWatchModel(context.Background(), store), store, history, live
}

func update(t *testing.T, m WatchModel, msg tea.Msg) (WatchModel, tea.Cmd) {
	t.Helper()
	next, cmd := testutil.SendMessage(m, msg)
	wm, ok := next.(WatchModel)
	require.True(t, ok)
	return wm, cmd
}

func loaded(t *testing.T) (WatchModel, *feed.Store, *testutil.FakeHistory, *testutil.RecordingLiveSource) {
	t.Helper()
	m, store, history, live := newTestModel(t)
	done, ok := m.loadHistory().(historyDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)
	m, _ = update(t, m, storeChangedMsg{})
	return m, store, history, live
}

func TestWatchModel_Init(t *testing.T) {
	m, _, _, _ := newTestModel(t)
	assert.NotNil(t, m.Init())
	assert.Contains(t, m.View(), "No events yet")
	assert.Contains(t, m.View(), "agent-1 / task-1")
}

func TestWatchModel_RendersHistory(t *testing.T) {
	m, _, _, _ := loaded(t)

	view := m.View()
	assert.Contains(t, view, "Tool Call Failed")
	assert.Contains(t, view, "history 5")
	assert.Contains(t, view, "events 5")
	assert.Contains(t, view, "errors 1")
	assert.Contains(t, view, "○ offline")
}

func TestWatchModel_ConnectionIndicator(t *testing.T) {
	m, _, _, live := loaded(t)

	live.Open()
	m, _ = update(t, m, storeChangedMsg{})
	assert.Contains(t, m.View(), "● live")

	live.Fail(errors.New("stream dropped"))
	m, _ = update(t, m, storeChangedMsg{})
	assert.Contains(t, m.View(), "○ offline")
	assert.Contains(t, m.View(), "error: stream dropped")
}

func TestWatchModel_LiveEventAppears(t *testing.T) {
	m, _, _, live := loaded(t)

	live.Send("message", testutil.LivePayload("live-1", taskevents.ToolCallCompleted, testutil.BaseTime, map[string]any{"tool_name": "grep"}))
	m, cmd := update(t, m, storeChangedMsg{})

	assert.NotNil(t, cmd, "keeps waiting for changes")
	assert.Contains(t, m.View(), "Tool Call Completed: grep")
	assert.Contains(t, m.View(), "events 6")
}

func TestWatchModel_Keys(t *testing.T) {
	t.Run("e toggles errors only", func(t *testing.T) {
		m, store, _, _ := loaded(t)

		m, _ = update(t, m, testutil.KeyMsg('e'))
		assert.Equal(t, []taskevents.Level{taskevents.LevelError}, store.Snapshot().Filters.Levels)
		m, _ = update(t, m, storeChangedMsg{})
		assert.Contains(t, m.View(), "· errors only")
		assert.NotContains(t, m.View(), "history 1")

		m, _ = update(t, m, testutil.KeyMsg('e'))
		assert.Empty(t, store.Snapshot().Filters.Levels)
		m, _ = update(t, m, storeChangedMsg{})
		assert.Contains(t, m.View(), "history 1")
	})

	t.Run("c clears events", func(t *testing.T) {
		m, store, _, _ := loaded(t)

		m, _ = update(t, m, testutil.KeyMsg('c'))
		assert.Empty(t, store.Snapshot().Events)
		m, _ = update(t, m, storeChangedMsg{})
		assert.Contains(t, m.View(), "No events yet")
	})

	t.Run("r refreshes", func(t *testing.T) {
		m, _, history, live := loaded(t)
		live.Reset()

		_, cmd := update(t, m, testutil.KeyMsg('r'))
		require.NotNil(t, cmd)
		done, ok := cmd().(refreshDoneMsg)
		require.True(t, ok)
		assert.NoError(t, done.err)
		assert.Equal(t, 2, history.Calls())
		assert.Contains(t, live.Calls(), "disconnect")
	})

	t.Run("q quits", func(t *testing.T) {
		m, _, _, _ := loaded(t)

		m, cmd := update(t, m, testutil.KeyMsg('q'))
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
		assert.Empty(t, m.View())
	})
}

func TestWatchModel_HistoryError(t *testing.T) {
	m, _, history, _ := newTestModel(t)
	history.Set(nil, errors.New("backend unavailable"))

	done := m.loadHistory().(historyDoneMsg)
	assert.Error(t, done.err)

	m, _ = update(t, m, done)
	m, _ = update(t, m, storeChangedMsg{})
	assert.Contains(t, m.View(), "error: backend unavailable")
}

func TestWatchModel_WindowSize(t *testing.T) {
	m, _, _, _ := loaded(t)

	chrome := 40 - m.frame().BodyHeight(80, 40)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: chrome + 3})
	view := m.View()
	assert.Contains(t, view, "history 5")
	assert.Contains(t, view, "history 3")
	assert.NotContains(t, view, "history 2")
}

func TestWatchModel_TerminalTooSmall(t *testing.T) {
	m, _, _, _ := loaded(t)

	m, _ = update(t, m, tea.WindowSizeMsg{Width: layout.MinimumWidth - 1, Height: 20})
	view := m.View()
	assert.Contains(t, view, "Terminal too small")
	assert.NotContains(t, view, "history 5")
}

func TestWaitForChange_StoreClosed(t *testing.T) {
	m, store, _, _ := newTestModel(t)
	store.Close()

	msg := waitForChange(store.Changes())()
	assert.IsType(t, storeClosedMsg{}, msg)

	_, cmd := update(t, m, msg)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestWatchModel_LoadingSpinner(t *testing.T) {
	m, store, history, _ := newTestModel(t)
	history.Gate = make(chan struct{})

	done := make(chan tea.Msg, 1)
	go func() { done <- m.loadHistory() }()
	require.Eventually(t, func() bool { return store.Snapshot().Loading }, time.Second, 5*time.Millisecond)

	m, cmd := update(t, m, storeChangedMsg{})
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "loading")
	assert.Contains(t, m.View(), m.spinner.View())

	m, cmd = update(t, m, m.spinner.Tick())
	assert.NotNil(t, cmd, "spinner ticks while loading")

	history.Gate <- struct{}{}
	m, _ = update(t, m, <-done)
	m, _ = update(t, m, storeChangedMsg{})
	assert.NotContains(t, m.View(), "loading")

	_, cmd = update(t, m, m.spinner.Tick())
	assert.Nil(t, cmd, "spinner stops after loading")
}

func TestWatchModel_ScrollsFeed(t *testing.T) {
	m, _, _, live := loaded(t)
	chrome := 40 - m.frame().BodyHeight(80, 40)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: chrome + 3})
	require.NotContains(t, m.View(), "history 1")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyHome})
	view := m.View()
	assert.Contains(t, view, "history 1")
	assert.NotContains(t, view, "history 5")
	assert.Contains(t, view, "scrolled 0%")

	live.Send("message", testutil.LivePayload("live-1", taskevents.ToolCallCompleted,
		testutil.BaseTime.Add(time.Hour), map[string]any{"tool_name": "grep"}))
	m, _ = update(t, m, storeChangedMsg{})
	assert.Contains(t, m.View(), "history 1", "position kept while scrolled up")
	assert.NotContains(t, m.View(), "Tool Call Completed: grep")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnd})
	assert.Contains(t, m.View(), "Tool Call Completed: grep")
	assert.NotContains(t, m.View(), "scrolled")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Contains(t, m.View(), "scrolled")
}
