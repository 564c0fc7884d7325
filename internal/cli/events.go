// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/noldarim/taskfeed/internal/backend"
	"github.com/noldarim/taskfeed/internal/feed"
	"github.com/noldarim/taskfeed/internal/taskevents"

	"github.com/samber/lo"
)

type eventsOptions struct {
	commonOptions
	output    string
	search    string
	levels    listFlag
	types     listFlag
	eventType string
	pageSize  int
}

// eventsReport is what `events` prints in json and yaml output.
type eventsReport struct {
	AgentID string                    `json:"agent_id" yaml:"agent_id"`
	TaskID  string                    `json:"task_id" yaml:"task_id"`
	State   feed.EventsState          `json:"state" yaml:"state"`
	Events  []taskevents.DisplayEvent `json:"events" yaml:"events"`
	Stats   feed.EventStats           `json:"stats" yaml:"stats"`
}

func (a *app) eventsCommand(args []string) error {
	opts := &eventsOptions{}
	fs := a.newFlagSet("events")
	opts.register(fs)
	fs.StringVar(&opts.output, "output", outputText, "Output format: text, json or yaml")
	fs.StringVar(&opts.output, "o", outputText, "Output format (shorthand)")
	fs.StringVar(&opts.search, "search", "", "Only events whose title or description contains this text")
	fs.Var(&opts.levels, "level", "Only events of this level (repeatable: info, success, warning, error)")
	fs.Var(&opts.types, "type", "Only events of this type (repeatable, aliases accepted)")
	fs.StringVar(&opts.eventType, "event-type", "", "Ask the backend for this event type only")
	fs.IntVar(&opts.pageSize, "page-size", 0, "History page size (default from config)")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	agentID, taskID, err := taskArgs("events", positional)
	if err != nil {
		return err
	}
	if err := validateOutput(opts.output); err != nil {
		return err
	}

	cfg, closeLog, err := a.setup(&opts.commonOptions)
	if err != nil {
		return err
	}
	defer closeLog()

	pageSize := cfg.History.PageSize
	if opts.pageSize > 0 {
		pageSize = opts.pageSize
	}

	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Token, cfg.Backend.Timeout)
	store := feed.NewStore(agentID, taskID, client, nil,
		feed.WithPageSize(pageSize),
		feed.WithEventTypeFilter(opts.eventType),
	)
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.LoadHistory(ctx); err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}

	levels := lo.Map(opts.levels, func(s string, _ int) taskevents.Level {
		return taskevents.Level(strings.ToLower(s))
	})
	types := lo.Map(opts.types, func(s string, _ int) taskevents.EventType {
		if t, ok := taskevents.ResolveType(s); ok {
			return t
		}
		return taskevents.EventType(s)
	})
	store.UpdateFilters(feed.FilterPatch{Search: &opts.search, Levels: &levels, Types: &types})

	report := eventsReport{
		AgentID: agentID,
		TaskID:  taskID,
		State:   store.Snapshot(),
		Events:  store.Filtered(),
		Stats:   store.Stats(),
	}
	getLog().Debug().
		Str("agent_id", agentID).
		Str("task_id", taskID).
		Int("events", len(report.State.Events)).
		Int("shown", len(report.Events)).
		Msg("Loaded event history")

	return writeOutput(a.stdout, opts.output, report, report.writeText)
}

func (r eventsReport) writeText(w io.Writer) error {
	printHeader(w, fmt.Sprintf("EVENTS: %s / %s", r.AgentID, r.TaskID))

	p := r.State.Pagination
	fmt.Fprintf(w, "Loaded:      %d of %d (page %d, more: %s)\n", len(r.State.Events), p.Total, p.Page, yesNo(p.HasNext))
	fmt.Fprintf(w, "Shown:       %d\n", len(r.Events))
	if f := describeFilters(r.State.Filters); f != "" {
		fmt.Fprintf(w, "Filters:     %s\n", f)
	}
	fmt.Fprintln(w)

	if len(r.Events) == 0 {
		fmt.Fprintln(w, "No events.")
		fmt.Fprintln(w)
	} else {
		printSection(w, "TIMELINE:")
		for _, ev := range r.Events {
			fmt.Fprintf(w, "  %s  %-7s  %-26s %s\n",
				ev.Timestamp.UTC().Format(time.RFC3339),
				ev.Level,
				truncate(ev.Title, 26),
				truncate(ev.Description, 80))
		}
		fmt.Fprintln(w)
	}

	printSection(w, "STATS:")
	fmt.Fprintf(w, "  Total events:  %d\n", r.Stats.Total)
	fmt.Fprintf(w, "  Last hour:     %d\n", r.Stats.RecentCount)
	fmt.Fprintf(w, "  By level:      %s\n", formatCounts(r.Stats.ByLevel))
	fmt.Fprintf(w, "  By type:       %s\n", formatCounts(r.Stats.ByType))
	return nil
}

func describeFilters(f feed.Filters) string {
	var parts []string
	if f.Search != "" {
		parts = append(parts, fmt.Sprintf("search=%q", f.Search))
	}
	if len(f.Levels) > 0 {
		parts = append(parts, "level="+strings.Join(lo.Map(f.Levels, func(l taskevents.Level, _ int) string { return string(l) }), ","))
	}
	if len(f.Types) > 0 {
		parts = append(parts, "type="+strings.Join(lo.Map(f.Types, func(t taskevents.EventType, _ int) string { return string(t) }), ","))
	}
	return strings.Join(parts, " ")
}
