// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tui is the terminal watch view for one task's event feed.
package tui

import (
	"context"
	"errors"
	"sync"

	"github.com/noldarim/taskfeed/internal/feed"
	"github.com/noldarim/taskfeed/internal/logger"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetTUILogger()
		log = &l
	})
	return log
}

// StartWatch mounts store, runs the watch view until the user quits, and
// unmounts the store on return.
func StartWatch(ctx context.Context, store *feed.Store, opts ...tea.ProgramOption) error {
	store.AttachLive()
	store.Connect()
	defer store.Close()

	getLog().Info().Str("agent_id", store.AgentID()).Str("task_id", store.TaskID()).Msg("Starting watch view")

	// Create the Bubble Tea program
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(NewWatchModel(ctx, store), opts...)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
