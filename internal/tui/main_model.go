// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"context"
	"fmt"

	"github.com/noldarim/taskfeed/internal/feed"
	"github.com/noldarim/taskfeed/internal/taskevents"
	"github.com/noldarim/taskfeed/internal/tui/components/eventfeed"
	"github.com/noldarim/taskfeed/internal/tui/layout"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// storeChangedMsg is sent whenever the store signals a change.
type storeChangedMsg struct{}

// storeClosedMsg is sent once the store's change channel is closed.
type storeClosedMsg struct{}

type historyDoneMsg struct{ err error }

type refreshDoneMsg struct{ err error }

// WatchModel is the terminal view of one task's event feed.
type WatchModel struct {
	ctx     context.Context
	store   *feed.Store
	feed    eventfeed.Model
	spinner spinner.Model

	state      feed.EventsState
	stats      feed.EventStats
	errorsOnly bool

	width, height int
	quitting      bool
}

// NewWatchModel creates a view bound to store. The caller owns the store's
// live connection and closes it after the program exits.
func NewWatchModel(ctx context.Context, store *feed.Store) WatchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = layout.WarningStyle

	m := WatchModel{
		ctx:     ctx,
		store:   store,
		feed:    eventfeed.New(),
		spinner: sp,
	}
	m.sync()
	return m
}

func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.loadHistory, waitForChange(m.store.Changes()))
}

func (m WatchModel) loadHistory() tea.Msg {
	return historyDoneMsg{err: m.store.LoadHistory(m.ctx)}
}

func (m WatchModel) refresh() tea.Msg {
	return refreshDoneMsg{err: m.store.Refresh(m.ctx)}
}

func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return storeClosedMsg{}
		}
		return storeChangedMsg{}
	}
}

// sync pulls the current snapshot from the store.
func (m *WatchModel) sync() {
	m.state = m.store.Snapshot()
	m.stats = m.store.Stats()
	m.feed = m.feed.SetEvents(feed.ApplyFilters(m.state.Events, m.state.Filters))
}

func (m *WatchModel) setSize(width, height int) {
	m.width = width
	m.height = height
	m.feed = m.feed.SetSize(width, m.frame().BodyHeight(width, height))
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		return m, nil

	case storeChangedMsg:
		wasLoading := m.state.Loading
		m.sync()
		cmds := []tea.Cmd{waitForChange(m.store.Changes())}
		if m.state.Loading && !wasLoading {
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		// Ticking stops once loading ends and restarts with the next load.
		if !m.state.Loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.feed, cmd = m.feed.Update(msg)
		return m, cmd

	case storeClosedMsg:
		return m, tea.Quit

	case historyDoneMsg:
		if msg.err != nil {
			getLog().Warn().Err(msg.err).Msg("History load failed")
		}
		return m, nil

	case refreshDoneMsg:
		if msg.err != nil {
			getLog().Warn().Err(msg.err).Msg("Refresh failed")
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m WatchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "r":
		return m, m.refresh
	case "c":
		m.store.ClearEvents()
	case "e":
		m.errorsOnly = !m.errorsOnly
		levels := []taskevents.Level{}
		if m.errorsOnly {
			levels = []taskevents.Level{taskevents.LevelError}
		}
		m.store.UpdateFilters(feed.FilterPatch{Levels: &levels})
	default:
		var cmd tea.Cmd
		m.feed, cmd = m.feed.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}
	return m.frame().Render(m.width, m.height)
}

func (m WatchModel) frame() layout.Frame {
	errorsLabel := "errors only"
	if m.errorsOnly {
		errorsLabel = "all levels"
	}
	return layout.Frame{
		Title:       "taskfeed",
		Breadcrumbs: []string{m.store.AgentID(), m.store.TaskID()},
		Status:      m.statusParts(),
		Stats:       m.statsLine(),
		Body:        m.feed.View(),
		Help: []layout.HelpItem{
			{Key: "r", Description: "refresh"},
			{Key: "c", Description: "clear"},
			{Key: "e", Description: errorsLabel},
			{Key: "↑/↓", Description: "scroll"},
			{Key: "q", Description: "quit"},
		},
	}
}

func (m WatchModel) statusParts() []string {
	status := layout.DisconnectedStyle.Render("○ offline")
	if m.state.Connected {
		status = layout.ConnectedStyle.Render("● live")
	}

	parts := []string{status}
	if m.state.Loading {
		parts = append(parts, m.spinner.View()+layout.WarningStyle.Render("loading"))
	}
	if m.state.Error != nil {
		parts = append(parts, layout.ErrorStyle.Render("error: "+*m.state.Error))
	}
	return parts
}

func (m WatchModel) statsLine() string {
	s := fmt.Sprintf("events %d · last hour %d · success %d · warnings %d · errors %d",
		m.stats.Total,
		m.stats.RecentCount,
		m.stats.ByLevel[taskevents.LevelSuccess],
		m.stats.ByLevel[taskevents.LevelWarning],
		m.stats.ByLevel[taskevents.LevelError],
	)
	if m.errorsOnly {
		s += " · errors only"
	}
	if !m.feed.Following() {
		s += fmt.Sprintf(" · scrolled %.0f%%", m.feed.ScrollPercent()*100)
	}
	return s
}
