// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/noldarim/taskfeed/internal/backend"
)

type taskOptions struct {
	commonOptions
	output string
}

// taskCommand dispatches task subcommands
func (a *app) taskCommand(args []string) error {
	if len(args) == 0 {
		return a.taskUsage()
	}

	subcommand := args[0]
	subargs := args[1:]

	switch subcommand {
	case "status":
		return a.taskRun("task status", subargs, nil)
	case "help", "-h", "--help":
		return a.taskUsage()
	}

	action, err := backend.ParseControlAction(subcommand)
	if err != nil {
		fmt.Fprintf(a.stderr, "Unknown task subcommand: %s\n\n", subcommand)
		a.taskUsage()
		return err
	}
	return a.taskRun("task "+subcommand, subargs, &action)
}

func (a *app) taskUsage() error {
	fmt.Fprintf(a.stdout, `Usage: %s task <subcommand> <agent> <task> [flags]

Subcommands:
  pause     Pause a running task
  resume    Resume a paused task
  cancel    Cancel a task
  status    Show the task's current status
  help      Show this help message

Examples:
  %s task pause agent-7 task-42
  %s task status agent-7 task-42 --output json

`, appName, appName, appName)
	return nil
}

// taskRun executes one control action, or a status query when action is nil.
func (a *app) taskRun(name string, args []string, action *backend.ControlAction) error {
	opts := &taskOptions{}
	fs := a.newFlagSet(name)
	opts.register(fs)
	fs.StringVar(&opts.output, "output", outputText, "Output format: text, json or yaml")
	fs.StringVar(&opts.output, "o", outputText, "Output format (shorthand)")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	agentID, taskID, err := taskArgs(name, positional)
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

	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Token, cfg.Backend.Timeout)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Backend.Timeout)
	defer cancel()

	var status *backend.TaskStatus
	if action != nil {
		status, err = client.ControlTask(ctx, agentID, taskID, *action)
		if err != nil {
			return fmt.Errorf("failed to %s task: %w", *action, err)
		}
		getLog().Info().Str("agent_id", agentID).Str("task_id", taskID).Str("action", string(*action)).Msg("Task control sent")
	} else {
		status, err = client.GetTaskStatus(ctx, agentID, taskID)
		if err != nil {
			return fmt.Errorf("failed to get task status: %w", err)
		}
	}

	return writeOutput(a.stdout, opts.output, status, func(w io.Writer) error {
		return writeStatus(w, status)
	})
}

func writeStatus(w io.Writer, s *backend.TaskStatus) error {
	fmt.Fprintf(w, "Task:        %s\n", s.TaskID)
	if s.AgentID != "" {
		fmt.Fprintf(w, "Agent:       %s\n", s.AgentID)
	}
	fmt.Fprintf(w, "Status:      %s\n", formatStatus(s.Status))
	if s.Progress != nil {
		fmt.Fprintf(w, "Progress:    %.0f%%\n", *s.Progress*100)
	}
	if s.Message != "" {
		fmt.Fprintf(w, "Message:     %s\n", s.Message)
	}
	if s.UpdatedAt != nil {
		fmt.Fprintf(w, "Updated:     %s\n", s.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

func formatStatus(status string) string {
	if status == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(strings.ReplaceAll(status, "_", " "))
}
