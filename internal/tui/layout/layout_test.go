// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package layout

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func testFrame(body string) Frame {
	return Frame{
		Title:       "taskfeed",
		Breadcrumbs: []string{"agent-1", "task-1"},
		Status:      []string{"● live"},
		Stats:       "events 3",
		Body:        body,
		Help:        []HelpItem{{Key: "q", Description: "quit"}},
	}
}

func TestFrame_RenderUnsized(t *testing.T) {
	out := testFrame("line one").Render(0, 0)

	assert.Contains(t, out, "taskfeed")
	assert.Contains(t, out, "agent-1 / task-1")
	assert.Contains(t, out, "● live")
	assert.Contains(t, out, "events 3")
	assert.Contains(t, out, "line one")
	assert.Contains(t, out, "quit")
}

func TestFrame_RenderFillsHeight(t *testing.T) {
	out := testFrame("only line").Render(60, 20)
	assert.Equal(t, 20, lipgloss.Height(out))
}

func TestFrame_RenderClipsBody(t *testing.T) {
	f := testFrame("")
	bodyHeight := f.BodyHeight(60, 12)

	lines := make([]string, bodyHeight+5)
	for i := range lines {
		lines[i] = "row"
	}
	lines[len(lines)-1] = "last row"
	f.Body = strings.Join(lines, "\n")

	out := f.Render(60, 12)
	assert.Equal(t, 12, lipgloss.Height(out))
	assert.NotContains(t, out, "last row")
}

func TestFrame_BodyHeight(t *testing.T) {
	f := testFrame("")
	assert.Equal(t, 1, f.BodyHeight(60, 2))
	assert.Equal(t, f.BodyHeight(60, 20)+10, f.BodyHeight(60, 30))
}

func TestFrame_TooSmall(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
	}{
		{"narrow", MinimumWidth - 1, 20},
		{"short", 80, MinimumHeight - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := testFrame("body").Render(tt.width, tt.height)
			assert.Contains(t, out, "Terminal too small")
			assert.NotContains(t, out, "body")
		})
	}
}
