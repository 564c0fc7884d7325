// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/noldarim/taskfeed/internal/backend"
	"github.com/noldarim/taskfeed/internal/config"
	"github.com/noldarim/taskfeed/internal/feed"
	"github.com/noldarim/taskfeed/internal/logger"
	"github.com/noldarim/taskfeed/internal/server"
	"github.com/noldarim/taskfeed/internal/stream"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.CloseGlobal()

	mainLog := logger.GetLogger("main")
	mainLog.Info().
		Str("backend", cfg.Backend.BaseURL).
		Str("transport", cfg.Stream.Transport).
		Msg("Starting taskfeed view host")

	transport, err := stream.NewTransport(cfg)
	if err != nil {
		mainLog.Error().Err(err).Msg("Error creating stream transport")
		fmt.Fprintf(os.Stderr, "Error creating stream transport: %v\n", err)
		os.Exit(1)
	}
	newClient := stream.ClientFactory(transport, cfg)

	be := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Token, cfg.Backend.Timeout)
	srv := server.New(cfg, be, func(agentID, taskID string) feed.LiveSource {
		return newClient(agentID, taskID)
	})

	// Run until SIGINT/SIGTERM; Run shuts the server down when ctx ends.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		mainLog.Error().Err(err).Msg("Server error")
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}

	mainLog.Info().Msg("View host shut down")
}
