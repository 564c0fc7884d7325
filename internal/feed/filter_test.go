// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package feed

import (
	"testing"
	"time"

	"github.com/noldarim/taskfeed/internal/taskevents"
	"github.com/noldarim/taskfeed/test/testutil"
	"github.com/stretchr/testify/assert"
)

func sampleCollection() []taskevents.DisplayEvent {
	return []taskevents.DisplayEvent{
		testutil.SampleEvent("1", taskevents.WorkflowCompleted, taskevents.LevelSuccess, -3*time.Hour),
		testutil.SampleEvent("2", taskevents.ToolCallCompleted, taskevents.LevelSuccess, -30*time.Minute),
		testutil.SampleEvent("3", taskevents.LLMCallCompleted, taskevents.LevelSuccess, -10*time.Minute),
		testutil.SampleEvent("4", taskevents.ToolCallFailed, taskevents.LevelError, -5*time.Minute),
		testutil.SampleEvent("5", taskevents.WorkflowFailed, taskevents.LevelError, 0),
	}
}

func TestGetEventStats(t *testing.T) {
	stats := GetEventStats(sampleCollection(), testutil.BaseTime)

	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 3, stats.ByLevel[taskevents.LevelSuccess])
	assert.Equal(t, 2, stats.ByLevel[taskevents.LevelError])
	assert.Zero(t, stats.ByLevel[taskevents.LevelWarning])
	assert.Equal(t, 1, stats.ByType[taskevents.ToolCallFailed])
	assert.Len(t, stats.ByType, 5)
	assert.Equal(t, 4, stats.RecentCount)
}

func TestGetEventStats_Empty(t *testing.T) {
	stats := GetEventStats(nil, testutil.BaseTime)
	assert.Equal(t, 0, stats.Total)
	assert.Empty(t, stats.ByLevel)
	assert.Empty(t, stats.ByType)
	assert.Equal(t, 0, stats.RecentCount)
}

func TestApplyFilters(t *testing.T) {
	events := sampleCollection()

	tests := []struct {
		name    string
		filters Filters
		want    []string
	}{
		{"no_filters", Filters{}, []string{"1", "2", "3", "4", "5"}},
		{"search_title_case_insensitive", Filters{Search: "  TOOLCALL "}, []string{"2", "4"}},
		{"search_description", Filters{Search: "event 3"}, []string{"3"}},
		{"levels", Filters{Levels: []taskevents.Level{taskevents.LevelError}}, []string{"4", "5"}},
		{"types", Filters{Types: []taskevents.EventType{taskevents.WorkflowCompleted, taskevents.WorkflowFailed}}, []string{"1", "5"}},
		{
			"conjunction",
			Filters{Search: "failed", Levels: []taskevents.Level{taskevents.LevelError}, Types: []taskevents.EventType{taskevents.ToolCallFailed}},
			[]string{"4"},
		},
		{"no_match", Filters{Search: "budget"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, testutil.EventIDs(ApplyFilters(events, tt.filters)))
		})
	}
}

func TestFilterPatch_Apply(t *testing.T) {
	base := Filters{Search: "x", Levels: []taskevents.Level{taskevents.LevelInfo}}

	empty := ""
	out := FilterPatch{Search: &empty}.Apply(base)
	assert.Equal(t, "", out.Search)
	assert.Equal(t, base.Levels, out.Levels)

	none := []taskevents.Level{}
	out = FilterPatch{Levels: &none}.Apply(base)
	assert.Equal(t, "x", out.Search)
	assert.Empty(t, out.Levels)
}
