// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package taskevents

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	return NewNormalizer(WithClock(func() time.Time { return fixedNow }))
}

func TestHistorical_KnownType(t *testing.T) {
	n := newTestNormalizer()

	ev := n.Historical(RawHistoricalEvent{
		ID:        "evt-1",
		EventType: "ToolCallFailed",
		Timestamp: "2026-03-14T10:00:00.123Z",
		Message:   "grep exited with status 2",
		Metadata:  map[string]any{"tool": "grep"},
	})

	assert.Equal(t, "evt-1", ev.ID)
	assert.Equal(t, ToolCallFailed, ev.Type)
	assert.Equal(t, "Tool Call Failed", ev.Title)
	assert.Equal(t, LevelError, ev.Level)
	assert.Equal(t, "alert-circle", ev.Icon)
	assert.Equal(t, "grep exited with status 2", ev.Description)
	assert.Equal(t, map[string]any{"tool": "grep"}, ev.Data)
	assert.Equal(t, time.Date(2026, 3, 14, 10, 0, 0, 123000000, time.UTC), ev.Timestamp)
}

func TestHistorical_AliasedType(t *testing.T) {
	ev := newTestNormalizer().Historical(RawHistoricalEvent{ID: "a", EventType: "tool_call_start"})

	assert.Equal(t, ToolCallStarted, ev.Type)
	assert.Equal(t, "Tool Call Started", ev.Title)
	assert.Equal(t, LevelInfo, ev.Level)
}

func TestHistorical_UnknownTypeFallsBack(t *testing.T) {
	ev := newTestNormalizer().Historical(RawHistoricalEvent{
		ID:        "u1",
		EventType: "memory_compacted",
		Timestamp: "yesterday",
		Message:   "compacted 12 turns",
	})

	assert.Equal(t, EventType("memory_compacted"), ev.Type)
	assert.Equal(t, "memory_compacted", ev.Title)
	assert.Equal(t, LevelInfo, ev.Level)
	assert.Equal(t, "compacted 12 turns", ev.Description)
	assert.Equal(t, fixedNow, ev.Timestamp, "unparseable timestamps fall back to now")
}

func TestLive_UnparsableStringPayload(t *testing.T) {
	var ev DisplayEvent
	require.NotPanics(t, func() {
		ev = newTestNormalizer().Live(RawLiveEnvelope{Event: "x", Data: "not json"})
	})

	assert.Equal(t, WorkflowStarted, ev.Type)
	assert.Equal(t, "not json", ev.Description)
	assert.Equal(t, "not json", ev.Data["message"])
	assert.Equal(t, fixedNow, ev.Timestamp)
	assert.NotEmpty(t, ev.ID)
}

func TestLive_DegradedPayloads(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name string
		data any
		want string
	}{
		{"nil", nil, "Workflow Started"},
		{"json_array", "[1,2,3]", "[1,2,3]"},
		{"json_string", `"hello"`, `"hello"`},
		{"bytes", []byte("{broken"), "{broken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := n.Live(RawLiveEnvelope{Event: "message", Data: tt.data})
			assert.Equal(t, WorkflowStarted, ev.Type)
			assert.Equal(t, tt.want, ev.Description)
		})
	}
}

func TestLive_AliasResolution(t *testing.T) {
	n := newTestNormalizer()
	payload := map[string]any{
		"event_type": "LLMCallCompleted",
		"data":       map[string]any{"task_id": "t1"},
	}

	a := n.Live(RawLiveEnvelope{Event: "llm_call_completed", Data: payload})
	b := n.Live(RawLiveEnvelope{Event: "llmcallcompleted", Data: payload})

	assert.Equal(t, LLMCallCompleted, a.Type)
	assert.Equal(t, LLMCallCompleted, b.Type)
}

func TestLive_TypeResolutionOrder(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name  string
		event string
		data  map[string]any
		want  EventType
	}{
		{
			name:  "original_event_type_wins",
			event: "workflow_started",
			data:  map[string]any{"original_event_type": "tool_call_failed", "event_type": "IterationStarted"},
			want:  ToolCallFailed,
		},
		{
			name:  "event_type_before_transport_name",
			event: "workflow_started",
			data:  map[string]any{"event_type": "Budget-Warning"},
			want:  BudgetWarning,
		},
		{
			name:  "transport_name_last",
			event: "HUMAN_APPROVAL_REQUESTED",
			data:  map[string]any{},
			want:  HumanApprovalRequested,
		},
		{
			name:  "unknown_names_skipped",
			event: "tool_call_end",
			data:  map[string]any{"event_type": "something_new"},
			want:  ToolCallCompleted,
		},
		{
			name:  "agent_runtime_spelling",
			event: "message",
			data:  map[string]any{"event_type": "llm_generation_start"},
			want:  LLMCallStarted,
		},
		{
			name:  "nothing_matches",
			event: "message",
			data:  map[string]any{"event_type": "?"},
			want:  WorkflowStarted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Live(RawLiveEnvelope{Event: tt.event, Data: tt.data}).Type)
		})
	}
}

func TestLive_StringPayloadIsParsed(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"event_id":   "e-42",
		"event_type": "IterationCompleted",
		"timestamp":  "2026-03-14T11:59:00Z",
		"data":       map[string]any{"iteration": 3},
	})
	require.NoError(t, err)

	ev := newTestNormalizer().Live(RawLiveEnvelope{Event: "message", Data: string(raw)})

	assert.Equal(t, "e-42", ev.ID)
	assert.Equal(t, IterationCompleted, ev.Type)
	assert.Equal(t, LevelSuccess, ev.Level)
	assert.Equal(t, "Iteration Completed 3", ev.Description)
	assert.Equal(t, time.Date(2026, 3, 14, 11, 59, 0, 0, time.UTC), ev.Timestamp)
}

func TestLive_OriginalTimestampPreferred(t *testing.T) {
	ev := newTestNormalizer().Live(RawLiveEnvelope{Event: "message", Data: map[string]any{
		"timestamp":          "2026-03-14T11:00:00Z",
		"original_timestamp": "2026-03-14T09:30:00Z",
	}})
	assert.Equal(t, time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), ev.Timestamp)
}

func TestLive_SynthesizedID(t *testing.T) {
	ev := newTestNormalizer().Live(RawLiveEnvelope{Event: "tool_call_started", Data: map[string]any{
		"data": map[string]any{"task_id": "t1", "tool_name": "bash"},
	}})

	assert.Equal(t, "t1-ToolCallStarted-"+itoa(fixedNow.UnixMilli()), ev.ID)
	assert.Equal(t, "Tool Call Started: bash", ev.Description)
}

func TestMergeFields_Precedence(t *testing.T) {
	payload := map[string]any{
		"event_type": "ToolCallStarted",
		"tool_name":  "top",
		"cost":       1.0,
		"only_top":   "t",
		"data": map[string]any{
			"tool_name": "data",
			"cost":      2.0,
			"only_data": "d",
		},
		"original_data": map[string]any{
			"tool_name": "original",
		},
	}

	merged := MergeFields(payload)

	assert.Equal(t, "original", merged["tool_name"], "original_data beats data and top level")
	assert.Equal(t, 2.0, merged["cost"], "data beats top level")
	assert.Equal(t, "t", merged["only_top"])
	assert.Equal(t, "d", merged["only_data"])
	assert.NotContains(t, merged, "data")
	assert.NotContains(t, merged, "original_data")
}

func TestMergeFields_NonObjectWrapperStays(t *testing.T) {
	merged := MergeFields(map[string]any{"data": "plain text"})
	assert.Equal(t, "plain text", merged["data"])
}

func TestLive_Descriptions(t *testing.T) {
	long := strings.Repeat("é", 150)

	tests := []struct {
		name   string
		event  string
		fields map[string]any
		want   string
	}{
		{
			name:   "task_complete_object_args",
			event:  "tool_call_started",
			fields: map[string]any{"tool_calls": []any{map[string]any{"name": "task_complete", "arguments": map[string]any{"summary": "done"}}}},
			want:   "Task completed: done",
		},
		{
			name:   "task_complete_string_args_result",
			event:  "tool_call_started",
			fields: map[string]any{"tool_calls": []any{map[string]any{"name": "task_complete", "arguments": `{"result":"42 files"}`}}},
			want:   "Task completed: 42 files",
		},
		{
			name:   "task_complete_no_summary",
			event:  "tool_call_started",
			fields: map[string]any{"tool_calls": []any{map[string]any{"name": "task_complete", "arguments": map[string]any{}}}},
			want:   "Task completed: Success",
		},
		{
			name:   "task_complete_bad_args",
			event:  "tool_call_started",
			fields: map[string]any{"tool_calls": []any{map[string]any{"name": "task_complete", "arguments": "{not json"}}},
			want:   "Task completed with task_complete",
		},
		{
			name:   "function_wrapped_tool_call",
			event:  "tool_call_started",
			fields: map[string]any{"tool_calls": []any{map[string]any{"function": map[string]any{"name": "read_file"}}}},
			want:   "Tool Call Started: read_file",
		},
		{
			name:   "tool_calls_beat_content",
			event:  "llm_call_completed",
			fields: map[string]any{"content": "hi", "tool_calls": []any{map[string]any{"name": "search"}}},
			want:   "LLM Call Completed: search",
		},
		{
			name:   "streaming_chunk",
			event:  "llm_call_started",
			fields: map[string]any{"content": "full", "chunk": "partial"},
			want:   "AI is responding: partial...",
		},
		{
			name:   "content_truncated_by_runes",
			event:  "llm_call_completed",
			fields: map[string]any{"content": long},
			want:   "AI responded: " + strings.Repeat("é", 100) + "...",
		},
		{
			name:   "short_content_still_ellipsized",
			event:  "llm_call_completed",
			fields: map[string]any{"content": "ok"},
			want:   "AI responded: ok...",
		},
		{
			name:   "error",
			event:  "workflow_failed",
			fields: map[string]any{"error": "context deadline exceeded"},
			want:   "Workflow Failed: context deadline exceeded",
		},
		{
			name:   "cost",
			event:  "budget_warning",
			fields: map[string]any{"cost": 0.12345},
			want:   "Budget Warning (Cost: $0.1235)",
		},
		{
			name:   "cost_as_string",
			event:  "budget_warning",
			fields: map[string]any{"cost": "1.5"},
			want:   "Budget Warning (Cost: $1.5000)",
		},
		{
			name:   "iteration",
			event:  "iteration_started",
			fields: map[string]any{"iteration": 7},
			want:   "Iteration Started 7",
		},
		{
			name:   "zero_iteration_is_absent",
			event:  "iteration_started",
			fields: map[string]any{"iteration": 0},
			want:   "Iteration Started",
		},
		{
			name:   "message",
			event:  "workflow_started",
			fields: map[string]any{"message": "booting agent"},
			want:   "booting agent",
		},
		{
			name:   "title_fallback",
			event:  "human_approval_received",
			fields: map[string]any{},
			want:   "Human Approval Received",
		},
	}

	n := newTestNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := n.Live(RawLiveEnvelope{Event: tt.event, Data: map[string]any{"data": tt.fields}})
			assert.Equal(t, tt.want, ev.Description)
		})
	}
}

func TestResolveType(t *testing.T) {
	for _, et := range AllEventTypes {
		got, ok := ResolveType(string(et))
		require.True(t, ok, "%s should resolve", et)
		assert.Equal(t, et, got)

		_, hasConfig := ConfigFor(et)
		assert.True(t, hasConfig, "%s needs a presentation entry", et)
	}

	for _, target := range aliases {
		_, ok := ConfigFor(target)
		assert.True(t, ok, "alias target %s needs a presentation entry", target)
	}

	_, ok := ResolveType("definitely-not-a-type")
	assert.False(t, ok)
}

func itoa(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
