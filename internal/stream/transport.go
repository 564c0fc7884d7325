// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream keeps one live event subscription open for an (agent, task)
// pair and hands raw messages to registered handlers.
package stream

import (
	"context"
	"errors"
)

var (
	// ErrNoTarget is returned when a target is requested without both ids.
	ErrNoTarget = errors.New("stream: agent id and task id are required")

	// ErrUnexpectedStatus wraps a non-200 answer from an event-stream endpoint.
	ErrUnexpectedStatus = errors.New("stream: unexpected status")
)

// DefaultEvent is the event name used when the transport does not name one.
const DefaultEvent = "message"

// Message is one delivery from the transport. Data is left unparsed.
type Message struct {
	Event string
	Data  string
	ID    string
}

// Conn is an open subscription.
type Conn interface {
	// Next blocks until a message arrives, the stream ends (io.EOF) or ctx is
	// cancelled.
	Next(ctx context.Context) (Message, error)
	Close() error
}

// Transport opens subscriptions for an (agent, task) pair.
type Transport interface {
	// Target derives the address for the pair, or ErrNoTarget.
	Target(agentID, taskID string) (string, error)
	Open(ctx context.Context, target string) (Conn, error)
}
