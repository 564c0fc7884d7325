// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package testutil

import (
	"testing"

	"github.com/noldarim/taskfeed/internal/taskevents"
	"github.com/stretchr/testify/assert"
)

// AssertSortedByTimestamp verifies events are non-decreasing by timestamp
func AssertSortedByTimestamp(t *testing.T, events []taskevents.DisplayEvent) {
	t.Helper()
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Timestamp.Before(events[i-1].Timestamp),
			"event %s (%s) sorts before %s (%s)",
			events[i].ID, events[i].Timestamp, events[i-1].ID, events[i-1].Timestamp)
	}
}

// AssertUniqueIDs verifies no id appears twice
func AssertUniqueIDs(t *testing.T, events []taskevents.DisplayEvent) {
	t.Helper()
	seen := make(map[string]bool, len(events))
	for _, ev := range events {
		assert.False(t, seen[ev.ID], "duplicate event id %s", ev.ID)
		seen[ev.ID] = true
	}
}

// EventIDs returns the ids in order
func EventIDs(events []taskevents.DisplayEvent) []string {
	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	return ids
}
