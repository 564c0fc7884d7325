// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package taskevents

import (
	"strings"
	"unicode"
)

// TypeConfig is the static presentation entry for an event type.
type TypeConfig struct {
	Title string
	Level Level
	Icon  string
}

const fallbackIcon = "info"

var typeConfigs = map[EventType]TypeConfig{
	WorkflowStarted:        {Title: "Workflow Started", Level: LevelInfo, Icon: "play"},
	WorkflowCompleted:      {Title: "Workflow Completed", Level: LevelSuccess, Icon: "check-circle"},
	WorkflowFailed:         {Title: "Workflow Failed", Level: LevelError, Icon: "x-circle"},
	WorkflowCancelled:      {Title: "Workflow Cancelled", Level: LevelWarning, Icon: "stop-circle"},
	IterationStarted:       {Title: "Iteration Started", Level: LevelInfo, Icon: "refresh-cw"},
	IterationCompleted:     {Title: "Iteration Completed", Level: LevelSuccess, Icon: "check"},
	LLMCallStarted:         {Title: "LLM Call Started", Level: LevelInfo, Icon: "brain"},
	LLMCallCompleted:       {Title: "LLM Call Completed", Level: LevelSuccess, Icon: "brain"},
	LLMCallFailed:          {Title: "LLM Call Failed", Level: LevelError, Icon: "alert-triangle"},
	ToolCallStarted:        {Title: "Tool Call Started", Level: LevelInfo, Icon: "wrench"},
	ToolCallCompleted:      {Title: "Tool Call Completed", Level: LevelSuccess, Icon: "wrench"},
	ToolCallFailed:         {Title: "Tool Call Failed", Level: LevelError, Icon: "alert-circle"},
	BudgetWarning:          {Title: "Budget Warning", Level: LevelWarning, Icon: "dollar-sign"},
	BudgetExceeded:         {Title: "Budget Exceeded", Level: LevelError, Icon: "alert-octagon"},
	HumanApprovalRequested: {Title: "Human Approval Requested", Level: LevelWarning, Icon: "hand"},
	HumanApprovalReceived:  {Title: "Human Approval Received", Level: LevelSuccess, Icon: "user-check"},
}

// aliases maps the letters-only lower-case spelling of a type name to its
// canonical type. New spellings go here, not into the resolver.
var aliases = map[string]EventType{
	// canonical names, compact form (also matches snake_case after normalizeKey)
	"workflowstarted":        WorkflowStarted,
	"workflowcompleted":      WorkflowCompleted,
	"workflowfailed":         WorkflowFailed,
	"workflowcancelled":      WorkflowCancelled,
	"iterationstarted":       IterationStarted,
	"iterationcompleted":     IterationCompleted,
	"llmcallstarted":         LLMCallStarted,
	"llmcallcompleted":       LLMCallCompleted,
	"llmcallfailed":          LLMCallFailed,
	"toolcallstarted":        ToolCallStarted,
	"toolcallcompleted":      ToolCallCompleted,
	"toolcallfailed":         ToolCallFailed,
	"budgetwarning":          BudgetWarning,
	"budgetexceeded":         BudgetExceeded,
	"humanapprovalrequested": HumanApprovalRequested,
	"humanapprovalreceived":  HumanApprovalReceived,

	// agent runtime spellings
	"agentstart":         WorkflowStarted,
	"agentend":           WorkflowCompleted,
	"agenterror":         WorkflowFailed,
	"contextcancelled":   WorkflowCancelled,
	"conversationturn":   IterationStarted,
	"llmgenerationstart": LLMCallStarted,
	"llmgenerationend":   LLMCallCompleted,
	"llmgenerationerror": LLMCallFailed,
	"toolcallstart":      ToolCallStarted,
	"toolcallend":        ToolCallCompleted,
	"toolcallerror":      ToolCallFailed,
	"tokenlimitexceeded": BudgetExceeded,

	// task lifecycle spellings
	"taskstarted":   WorkflowStarted,
	"taskcompleted": WorkflowCompleted,
	"taskfailed":    WorkflowFailed,
	"taskcancelled": WorkflowCancelled,
}

// ConfigFor returns the presentation entry for t.
func ConfigFor(t EventType) (TypeConfig, bool) {
	cfg, ok := typeConfigs[t]
	return cfg, ok
}

// ResolveType maps any known spelling of an event type onto its canonical
// value. Exact canonical names win over the alias table.
func ResolveType(name string) (EventType, bool) {
	if _, ok := typeConfigs[EventType(name)]; ok {
		return EventType(name), true
	}
	t, ok := aliases[normalizeKey(name)]
	return t, ok
}

// normalizeKey lower-cases name and drops everything that is not a letter.
func normalizeKey(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
