// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"fmt"

	"github.com/noldarim/taskfeed/internal/backend"
	"github.com/noldarim/taskfeed/internal/config"

	"github.com/nats-io/nats.go"
)

// NewTransport builds the live transport selected by cfg.Stream.Transport.
func NewTransport(cfg *config.AppConfig) (Transport, error) {
	switch cfg.Stream.Transport {
	case config.TransportSSE, "":
		return NewSSETransport(cfg.Backend.BaseURL, backend.StreamHTTPClient(cfg.Backend.Token)), nil
	case config.TransportNATS:
		var opts []nats.Option
		if cfg.Backend.Token != "" {
			opts = append(opts, nats.Token(cfg.Backend.Token))
		}
		return NewNATSTransport(cfg.Stream.NATSURL, cfg.Stream.NATSSubjectPrefix, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported stream transport: %s", cfg.Stream.Transport)
	}
}

// ClientFactory returns a constructor for per-view clients over transport.
func ClientFactory(transport Transport, cfg *config.AppConfig) func(agentID, taskID string) *Client {
	return func(agentID, taskID string) *Client {
		return New(transport, agentID, taskID, WithReconnectDelay(cfg.Stream.ReconnectDelay))
	}
}
