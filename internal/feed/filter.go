// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package feed

import (
	"strings"
	"time"

	"github.com/noldarim/taskfeed/internal/taskevents"
	"github.com/samber/lo"
)

// ApplyFilters projects events through f. Search is a case-insensitive
// substring match over title and description; empty level or type sets match
// everything. All criteria must hold.
func ApplyFilters(events []taskevents.DisplayEvent, f Filters) []taskevents.DisplayEvent {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	return lo.Filter(events, func(ev taskevents.DisplayEvent, _ int) bool {
		if search != "" &&
			!strings.Contains(strings.ToLower(ev.Title), search) &&
			!strings.Contains(strings.ToLower(ev.Description), search) {
			return false
		}
		if len(f.Levels) > 0 && !lo.Contains(f.Levels, ev.Level) {
			return false
		}
		if len(f.Types) > 0 && !lo.Contains(f.Types, ev.Type) {
			return false
		}
		return true
	})
}

// EventStats summarizes a collection.
type EventStats struct {
	Total       int                          `json:"total" yaml:"total"`
	ByType      map[taskevents.EventType]int `json:"by_type" yaml:"by_type"`
	ByLevel     map[taskevents.Level]int     `json:"by_level" yaml:"by_level"`
	RecentCount int                          `json:"recent_count" yaml:"recent_count"`
}

// RecentWindow is how far back RecentCount looks.
const RecentWindow = time.Hour

// GetEventStats counts events by type and level, and those within
// RecentWindow of now.
func GetEventStats(events []taskevents.DisplayEvent, now time.Time) EventStats {
	cutoff := now.Add(-RecentWindow)

	return EventStats{
		Total: len(events),
		ByType: lo.CountValuesBy(events, func(ev taskevents.DisplayEvent) taskevents.EventType {
			return ev.Type
		}),
		ByLevel: lo.CountValuesBy(events, func(ev taskevents.DisplayEvent) taskevents.Level {
			return ev.Level
		}),
		RecentCount: lo.CountBy(events, func(ev taskevents.DisplayEvent) bool {
			return !ev.Timestamp.Before(cutoff)
		}),
	}
}
