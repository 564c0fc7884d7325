// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package eventfeed

import (
	"fmt"
	"strings"

	"github.com/noldarim/taskfeed/internal/taskevents"
	"github.com/noldarim/taskfeed/internal/tui/layout"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	timeFormat    = "15:04:05"
	defaultHeight = 10
)

var dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))

// Model is a scrollable feed of events, oldest first. It follows the newest
// event until the user scrolls up, and resumes following at the bottom.
type Model struct {
	events   []taskevents.DisplayEvent
	viewport viewport.Model
	width    int
	follow   bool
}

// New creates a new event feed model
func New() Model {
	vp := viewport.New(0, defaultHeight)
	vp.SetContent(dimStyle.Render("No events yet"))
	return Model{
		viewport: vp,
		follow:   true,
	}
}

// SetEvents sets the event list. Events are expected in timestamp order.
func (m Model) SetEvents(events []taskevents.DisplayEvent) Model {
	m.events = events
	m.refreshContent()
	return m
}

// SetSize sets the visible area. Lines are clipped to width; zero width
// disables clipping. Heights below 1 are ignored.
func (m Model) SetSize(width, height int) Model {
	m.width = width
	m.viewport.Width = width
	if height > 0 {
		m.viewport.Height = height
	}
	m.refreshContent()
	return m
}

// Len returns the number of events held, not the number shown.
func (m Model) Len() int {
	return len(m.events)
}

// Following reports whether the feed sticks to the newest event.
func (m Model) Following() bool {
	return m.follow
}

// ScrollPercent returns the scroll position between 0 and 1.
func (m Model) ScrollPercent() float64 {
	return m.viewport.ScrollPercent()
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Update scrolls the feed. home and end jump to the oldest and newest event;
// other scroll keys and the mouse wheel are handled by the viewport.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "home", "g":
			m.viewport.GotoTop()
			m.follow = m.viewport.AtBottom()
			return m, nil
		case "end", "G":
			m.viewport.GotoBottom()
			m.follow = true
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	m.follow = m.viewport.AtBottom()
	return m, cmd
}

// View renders the visible part of the feed
func (m Model) View() string {
	return m.viewport.View()
}

// refreshContent renders events into the viewport
func (m *Model) refreshContent() {
	if len(m.events) == 0 {
		m.viewport.SetContent(dimStyle.Render("No events yet"))
		m.viewport.GotoTop()
		m.follow = true
		return
	}

	line := lipgloss.NewStyle()
	if m.width > 0 {
		line = line.MaxWidth(m.width)
	}
	lines := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		lines = append(lines, line.Render(renderEvent(ev)))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func renderEvent(ev taskevents.DisplayEvent) string {
	style := layout.LevelStyle(ev.Level)
	ts := dimStyle.Render(ev.Timestamp.Local().Format(timeFormat))
	title := style.Bold(true).Render(ev.Title)

	detail := ""
	if desc := cleanString(ev.Description); desc != "" && desc != ev.Title {
		detail = " " + dimStyle.Render(desc)
	}
	return fmt.Sprintf("%s %s %s%s", ts, style.Render(Glyph(ev.Level)), title, detail)
}

// Glyph is the single-character marker for a severity.
func Glyph(level taskevents.Level) string {
	switch level {
	case taskevents.LevelSuccess:
		return "✓"
	case taskevents.LevelWarning:
		return "!"
	case taskevents.LevelError:
		return "✗"
	default:
		return "▸"
	}
}

func cleanString(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
