// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package taskevents

import (
	"encoding/json"
	"fmt"
)

const (
	taskCompleteTool = "task_complete"
	previewRunes     = 100
)

// describeRule produces a description when it applies to the merged fields.
type describeRule func(title string, fields map[string]any) (string, bool)

// describeRules are evaluated in order; the first match wins.
var describeRules = []describeRule{
	describeTaskComplete,
	describeToolCalls,
	describeContent,
	describeToolName,
	describeError,
	describeCost,
	describeIteration,
	describeMessage,
}

// Describe builds the content-aware description for a live event. title is
// the type's configured title and is also the final fallback.
func Describe(title string, fields map[string]any) string {
	for _, rule := range describeRules {
		if desc, ok := rule(title, fields); ok {
			return desc
		}
	}
	return title
}

func firstToolCall(fields map[string]any) (toolCall, bool) {
	list, ok := fields["tool_calls"].([]any)
	if !ok || len(list) == 0 {
		return toolCall{}, false
	}
	var tc toolCall
	if err := weakDecode(list[0], &tc); err != nil {
		return toolCall{}, true
	}
	return tc, true
}

func describeTaskComplete(_ string, fields map[string]any) (string, bool) {
	tc, ok := firstToolCall(fields)
	if !ok || tc.toolName() != taskCompleteTool {
		return "", false
	}

	args, ok := taskCompleteArgs(tc.arguments())
	if !ok {
		return "Task completed with " + taskCompleteTool, true
	}
	for _, key := range []string{"summary", "result"} {
		if truthy(args[key]) {
			return "Task completed: " + stringify(args[key]), true
		}
	}
	return "Task completed: Success", true
}

// taskCompleteArgs accepts arguments as an object or a JSON-encoded object.
func taskCompleteArgs(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return v, true
	case string:
		var args map[string]any
		if err := json.Unmarshal([]byte(v), &args); err != nil || args == nil {
			return nil, false
		}
		return args, true
	default:
		return nil, false
	}
}

func describeToolCalls(title string, fields map[string]any) (string, bool) {
	tc, ok := firstToolCall(fields)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s: %s", title, tc.toolName()), true
}

func describeContent(_ string, fields map[string]any) (string, bool) {
	if !truthy(fields["content"]) {
		return "", false
	}
	if truthy(fields["chunk"]) {
		return "AI is responding: " + truncateRunes(stringify(fields["chunk"]), previewRunes) + "...", true
	}
	return "AI responded: " + truncateRunes(stringify(fields["content"]), previewRunes) + "...", true
}

func describeToolName(title string, fields map[string]any) (string, bool) {
	if !truthy(fields["tool_name"]) {
		return "", false
	}
	return fmt.Sprintf("%s: %s", title, stringify(fields["tool_name"])), true
}

func describeError(title string, fields map[string]any) (string, bool) {
	if !truthy(fields["error"]) {
		return "", false
	}
	return fmt.Sprintf("%s: %s", title, stringify(fields["error"])), true
}

func describeCost(title string, fields map[string]any) (string, bool) {
	if !truthy(fields["cost"]) {
		return "", false
	}
	var cost float64
	if err := weakDecode(fields["cost"], &cost); err != nil {
		return fmt.Sprintf("%s (Cost: $%s)", title, stringify(fields["cost"])), true
	}
	return fmt.Sprintf("%s (Cost: $%.4f)", title, cost), true
}

func describeIteration(title string, fields map[string]any) (string, bool) {
	if !truthy(fields["iteration"]) {
		return "", false
	}
	return fmt.Sprintf("%s %s", title, stringify(fields["iteration"])), true
}

func describeMessage(_ string, fields map[string]any) (string, bool) {
	if !truthy(fields["message"]) {
		return "", false
	}
	return stringify(fields["message"]), true
}

// truncateRunes keeps at most n runes of s.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
