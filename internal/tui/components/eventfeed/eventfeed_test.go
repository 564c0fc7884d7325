// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package eventfeed

import (
	"strings"
	"testing"
	"time"

	"github.com/noldarim/taskfeed/internal/taskevents"
	"github.com/noldarim/taskfeed/test/testutil"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestView_Empty(t *testing.T) {
	assert.Contains(t, New().View(), "No events yet")
}

func sampleEvents(n int) []taskevents.DisplayEvent {
	var events []taskevents.DisplayEvent
	for i := 0; i < n; i++ {
		events = append(events, testutil.SampleEvent(
			string(rune('a'+i)), taskevents.ToolCallStarted, taskevents.LevelInfo, time.Duration(i)*time.Second))
	}
	return events
}

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "home":
		return tea.KeyMsg{Type: tea.KeyHome}
	case "end":
		return tea.KeyMsg{Type: tea.KeyEnd}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestView_FollowsNewest(t *testing.T) {
	view := New().SetSize(0, 2).SetEvents(sampleEvents(5)).View()
	lines := strings.Split(view, "\n")

	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "event d")
	assert.Contains(t, lines[1], "event e")
	assert.NotContains(t, view, "event a")
}

func TestUpdate_ScrollReachesOlderEvents(t *testing.T) {
	m := New().SetSize(0, 2).SetEvents(sampleEvents(5))
	require.True(t, m.Following())

	m, _ = m.Update(key("up"))
	assert.False(t, m.Following())
	assert.Contains(t, m.View(), "event c")
	assert.NotContains(t, m.View(), "event e")

	m, _ = m.Update(key("home"))
	assert.Contains(t, m.View(), "event a")
	assert.Contains(t, m.View(), "event b")
	assert.Equal(t, 0.0, m.ScrollPercent())

	m, _ = m.Update(key("end"))
	assert.True(t, m.Following())
	assert.Contains(t, m.View(), "event e")
	assert.Equal(t, 1.0, m.ScrollPercent())
}

func TestSetEvents_KeepsPositionWhileScrolledUp(t *testing.T) {
	m := New().SetSize(0, 2).SetEvents(sampleEvents(5))
	m, _ = m.Update(key("home"))

	m = m.SetEvents(sampleEvents(8))
	assert.False(t, m.Following())
	assert.Contains(t, m.View(), "event a")
	assert.NotContains(t, m.View(), "event h")

	m, _ = m.Update(key("G"))
	m = m.SetEvents(sampleEvents(9))
	assert.Contains(t, m.View(), "event i")
}

func TestUpdate_DownAtBottomResumesFollowing(t *testing.T) {
	m := New().SetSize(0, 2).SetEvents(sampleEvents(4))
	m, _ = m.Update(key("up"))
	require.False(t, m.Following())

	m, _ = m.Update(key("down"))
	assert.True(t, m.Following())

	m = m.SetEvents(sampleEvents(6))
	assert.Contains(t, m.View(), "event f")
}

func TestView_Content(t *testing.T) {
	ev := testutil.SampleEvent("x", taskevents.ToolCallFailed, taskevents.LevelError, 0)
	ev.Title = "Tool Call Failed"
	ev.Description = "Error:\nexit status 1"

	view := New().SetEvents([]taskevents.DisplayEvent{ev}).View()

	assert.Contains(t, view, "Tool Call Failed")
	assert.Contains(t, view, "Error: exit status 1")
	assert.Contains(t, view, "✗")
	assert.Contains(t, view, ev.Timestamp.Local().Format(timeFormat))
}

func TestView_DescriptionSameAsTitle(t *testing.T) {
	ev := testutil.SampleEvent("x", taskevents.WorkflowStarted, taskevents.LevelInfo, 0)
	ev.Title = "Workflow Started"
	ev.Description = "Workflow Started"

	view := New().SetEvents([]taskevents.DisplayEvent{ev}).View()
	assert.Equal(t, 1, strings.Count(view, "Workflow Started"))
}

func TestGlyph(t *testing.T) {
	tests := []struct {
		level taskevents.Level
		want  string
	}{
		{taskevents.LevelInfo, "▸"},
		{taskevents.LevelSuccess, "✓"},
		{taskevents.LevelWarning, "!"},
		{taskevents.LevelError, "✗"},
		{taskevents.Level("other"), "▸"},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			assert.Equal(t, tt.want, Glyph(tt.level))
		})
	}
}

func TestSetSize_IgnoresNonPositiveHeight(t *testing.T) {
	m := New().SetSize(40, 0)
	assert.Equal(t, defaultHeight, m.viewport.Height)
	assert.Equal(t, 40, m.viewport.Width)
}

func TestSetEvents_EmptyAfterClear(t *testing.T) {
	m := New().SetSize(0, 2).SetEvents(sampleEvents(5))
	m, _ = m.Update(key("home"))

	m = m.SetEvents(nil)
	assert.Contains(t, m.View(), "No events yet")
	assert.True(t, m.Following())
	assert.Equal(t, 0, m.Len())
}
