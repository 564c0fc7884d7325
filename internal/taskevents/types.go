// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package taskevents converts historical and live workflow events into the
// single DisplayEvent shape consumed by the feed and its views.
package taskevents

import (
	"time"
)

// EventType is the canonical workflow event kind.
type EventType string

const (
	WorkflowStarted        EventType = "WorkflowStarted"
	WorkflowCompleted      EventType = "WorkflowCompleted"
	WorkflowFailed         EventType = "WorkflowFailed"
	WorkflowCancelled      EventType = "WorkflowCancelled"
	IterationStarted       EventType = "IterationStarted"
	IterationCompleted     EventType = "IterationCompleted"
	LLMCallStarted         EventType = "LLMCallStarted"
	LLMCallCompleted       EventType = "LLMCallCompleted"
	LLMCallFailed          EventType = "LLMCallFailed"
	ToolCallStarted        EventType = "ToolCallStarted"
	ToolCallCompleted      EventType = "ToolCallCompleted"
	ToolCallFailed         EventType = "ToolCallFailed"
	BudgetWarning          EventType = "BudgetWarning"
	BudgetExceeded         EventType = "BudgetExceeded"
	HumanApprovalRequested EventType = "HumanApprovalRequested"
	HumanApprovalReceived  EventType = "HumanApprovalReceived"
)

// AllEventTypes lists every canonical type in lifecycle order.
var AllEventTypes = []EventType{
	WorkflowStarted, WorkflowCompleted, WorkflowFailed, WorkflowCancelled,
	IterationStarted, IterationCompleted,
	LLMCallStarted, LLMCallCompleted, LLMCallFailed,
	ToolCallStarted, ToolCallCompleted, ToolCallFailed,
	BudgetWarning, BudgetExceeded,
	HumanApprovalRequested, HumanApprovalReceived,
}

// Level is the severity bucket a DisplayEvent is shown under.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// AllLevels lists the levels from least to most severe.
var AllLevels = []Level{LevelInfo, LevelSuccess, LevelWarning, LevelError}

// DisplayEvent is the canonical UI-ready event. Treat it as immutable: the
// feed replaces events by ID instead of mutating them.
type DisplayEvent struct {
	ID          string         `json:"id" yaml:"id"`
	Type        EventType      `json:"type" yaml:"type"`
	Timestamp   time.Time      `json:"timestamp" yaml:"timestamp"`
	Title       string         `json:"title" yaml:"title"`
	Description string         `json:"description" yaml:"description"`
	Level       Level          `json:"level" yaml:"level"`
	Data        map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
	Icon        string         `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// RawHistoricalEvent is one record of the backend's paged history endpoint.
type RawHistoricalEvent struct {
	ID        string         `json:"id"`
	EventType string         `json:"event_type"`
	Timestamp string         `json:"timestamp"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata"`
}

// RawLiveEnvelope is one message off the live stream. Data is whatever the
// transport delivered: a JSON string, raw bytes or an already decoded object.
type RawLiveEnvelope struct {
	Event string
	Data  any
}
