// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/noldarim/taskfeed/internal/backend"
	"github.com/noldarim/taskfeed/internal/config"
	"github.com/noldarim/taskfeed/internal/feed"
	"github.com/noldarim/taskfeed/internal/stream"
)

type watchOptions struct {
	commonOptions
	transport string
	eventType string
}

func (a *app) watchCommand(args []string) error {
	opts := &watchOptions{}
	fs := a.newFlagSet("watch")
	opts.register(fs)
	fs.StringVar(&opts.transport, "transport", "", "Live transport: sse or nats (overrides config)")
	fs.StringVar(&opts.eventType, "event-type", "", "Ask the backend for this event type only")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	agentID, taskID, err := taskArgs("watch", positional)
	if err != nil {
		return err
	}
	if opts.transport != "" && opts.transport != config.TransportSSE && opts.transport != config.TransportNATS {
		return fmt.Errorf("unsupported transport %q (want sse or nats)", opts.transport)
	}

	cfg, closeLog, err := a.setup(&opts.commonOptions)
	if err != nil {
		return err
	}
	defer closeLog()
	if opts.transport != "" {
		cfg.Stream.Transport = opts.transport
	}

	transport, err := stream.NewTransport(cfg)
	if err != nil {
		return err
	}
	live := stream.ClientFactory(transport, cfg)(agentID, taskID)
	history := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Token, cfg.Backend.Timeout)

	store := feed.NewStore(agentID, taskID, history, live,
		feed.WithPageSize(cfg.History.PageSize),
		feed.WithRefreshDelay(cfg.Stream.RefreshDelay),
		feed.WithEventTypeFilter(opts.eventType),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	getLog().Info().
		Str("agent_id", agentID).
		Str("task_id", taskID).
		Str("transport", cfg.Stream.Transport).
		Msg("Watching task events")

	if err := a.watch(ctx, store); err != nil {
		return fmt.Errorf("watch view failed: %w", err)
	}
	return nil
}
