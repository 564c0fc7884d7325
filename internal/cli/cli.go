// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the taskfeed command line: a terminal watch view,
// one-shot history dumps and task control.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/noldarim/taskfeed/internal/config"
	"github.com/noldarim/taskfeed/internal/feed"
	"github.com/noldarim/taskfeed/internal/logger"
	"github.com/noldarim/taskfeed/internal/tui"

	"github.com/rs/zerolog"
)

const (
	appName    = "taskfeed"
	appVersion = "0.1.0"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetCLILogger()
		log = &l
	})
	return log
}

// app carries the process seams: output streams, logging setup and the
// interactive view.
type app struct {
	stdout io.Writer
	stderr io.Writer

	initLogging func(cfg *config.LogConfig) (func(), error)
	watch       func(ctx context.Context, store *feed.Store) error
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		initLogging: func(cfg *config.LogConfig) (func(), error) {
			if err := logger.Initialize(cfg); err != nil {
				return nil, err
			}
			return func() { _ = logger.CloseGlobal() }, nil
		},
		watch: func(ctx context.Context, store *feed.Store) error {
			return tui.StartWatch(ctx, store)
		},
	}
}

// Execute runs the CLI application
func Execute() error {
	return newApp(os.Stdout, os.Stderr).run(os.Args[1:])
}

func (a *app) run(args []string) error {
	if len(args) == 0 {
		return a.printUsage()
	}

	command := args[0]
	args = args[1:]

	switch command {
	case "watch":
		return a.watchCommand(args)
	case "events":
		return a.eventsCommand(args)
	case "task":
		return a.taskCommand(args)
	case "version":
		fmt.Fprintf(a.stdout, "%s version %s\n", appName, appVersion)
		return nil
	case "help", "-h", "--help":
		return a.printUsage()
	default:
		fmt.Fprintf(a.stderr, "Unknown command: %s\n\n", command)
		a.printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func (a *app) printUsage() error {
	fmt.Fprintf(a.stdout, `%s - real-time task event feed

Usage:
  %s <command> [arguments]

Commands:
  watch <agent> <task>                    Live terminal view of a task's events
  events <agent> <task>                   Print one page of event history
  task pause|resume|cancel|status <agent> <task>
                                          Control a task or show its status
  version                                 Print version information
  help                                    Show this help message

Common flags:
  --config <path>     Config file (default: ./config.yaml, ~/.taskfeed/config.yaml)
  --base-url <url>    Backend API base URL
  --token <token>     Bearer token

Examples:
  %s watch agent-7 task-42
  %s events agent-7 task-42 --output json --level error
  %s events agent-7 task-42 --type ToolCallFailed --output yaml
  %s task pause agent-7 task-42

`, appName, appName, appName, appName, appName, appName)
	return nil
}

// commonOptions are the flags every backend-facing command accepts.
type commonOptions struct {
	configPath string
	baseURL    string
	token      string
}

func (o *commonOptions) register(fs *flag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "Path to config file")
	fs.StringVar(&o.baseURL, "base-url", "", "Backend API base URL (overrides config)")
	fs.StringVar(&o.token, "token", "", "Bearer token (overrides config)")
}

// setup loads configuration, applies flag overrides and starts logging. The
// returned func flushes the logger.
func (a *app) setup(o *commonOptions) (*config.AppConfig, func(), error) {
	cfg, err := config.NewConfig(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.baseURL != "" {
		cfg.Backend.BaseURL = strings.TrimRight(o.baseURL, "/")
	}
	if o.token != "" {
		cfg.Backend.Token = o.token
	}

	// Initialize logging (to file only for CLI, keep terminal clean)
	closeLog, err := a.initLogging(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, closeLog, nil
}

func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// parseArgs parses flags that may appear before, between or after
// positional arguments.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

// taskArgs extracts the (agent, task) pair.
func taskArgs(command string, positional []string) (string, string, error) {
	if len(positional) != 2 {
		return "", "", fmt.Errorf("%s requires <agent> <task>\n\nUsage:\n  %s %s <agent> <task>", command, appName, command)
	}
	return positional[0], positional[1], nil
}

// listFlag is a repeatable, comma-separated string flag.
type listFlag []string

func (l *listFlag) String() string {
	return strings.Join(*l, ",")
}

func (l *listFlag) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}
