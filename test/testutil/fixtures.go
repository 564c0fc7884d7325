// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package testutil

import (
	"fmt"
	"time"

	"github.com/noldarim/taskfeed/internal/backend"
	"github.com/noldarim/taskfeed/internal/taskevents"
)

// Sample data creators for consistent testing

// BaseTime is the fixed clock used by fixtures.
var BaseTime = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// FixedClock returns a clock frozen at BaseTime.
func FixedClock() func() time.Time {
	return func() time.Time { return BaseTime }
}

// SampleEvent builds a DisplayEvent offset from BaseTime.
func SampleEvent(id string, t taskevents.EventType, level taskevents.Level, offset time.Duration) taskevents.DisplayEvent {
	return taskevents.DisplayEvent{
		ID:          id,
		Type:        t,
		Timestamp:   BaseTime.Add(offset),
		Title:       string(t),
		Description: fmt.Sprintf("%s event %s", t, id),
		Level:       level,
		Icon:        "info",
	}
}

// SampleHistory returns raw history records spaced one minute apart,
// starting ten minutes before BaseTime.
func SampleHistory() []taskevents.RawHistoricalEvent {
	types := []taskevents.EventType{
		taskevents.WorkflowStarted,
		taskevents.LLMCallStarted,
		taskevents.LLMCallCompleted,
		taskevents.ToolCallStarted,
		taskevents.ToolCallFailed,
	}
	out := make([]taskevents.RawHistoricalEvent, 0, len(types))
	for i, t := range types {
		out = append(out, taskevents.RawHistoricalEvent{
			ID:        fmt.Sprintf("hist-%d", i+1),
			EventType: string(t),
			Timestamp: BaseTime.Add(time.Duration(i-10) * time.Minute).Format(time.RFC3339Nano),
			Message:   fmt.Sprintf("history %d", i+1),
			Metadata:  map[string]any{"seq": i + 1},
		})
	}
	return out
}

// SamplePage wraps events as a single complete history page.
func SamplePage(events []taskevents.RawHistoricalEvent) *backend.EventPage {
	return &backend.EventPage{
		Events:   events,
		Page:     1,
		PageSize: 100,
		Total:    len(events),
		HasNext:  false,
	}
}

// LivePayload builds a live JSON payload with an explicit event id.
func LivePayload(eventID string, t taskevents.EventType, ts time.Time, data map[string]any) string {
	return fmt.Sprintf(`{"event_id":%q,"event_type":%q,"timestamp":%q,"data":%s}`,
		eventID, t, ts.Format(time.RFC3339Nano), mustJSON(data))
}
