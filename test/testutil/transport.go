// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/noldarim/taskfeed/internal/stream"
)

// PipeTransport is an in-memory stream.Transport. Every open connection reads
// from the same queue fed by Push.
type PipeTransport struct {
	msgs  chan stream.Message
	opens atomic.Int32

	mu      sync.Mutex
	targets []string
}

// NewPipeTransport creates a transport with a buffered queue.
func NewPipeTransport() *PipeTransport {
	return &PipeTransport{msgs: make(chan stream.Message, 64)}
}

func (p *PipeTransport) Target(agentID, taskID string) (string, error) {
	if agentID == "" || taskID == "" {
		return "", stream.ErrNoTarget
	}
	return "pipe://" + agentID + "/" + taskID, nil
}

func (p *PipeTransport) Open(ctx context.Context, target string) (stream.Conn, error) {
	p.opens.Add(1)
	p.mu.Lock()
	p.targets = append(p.targets, target)
	p.mu.Unlock()
	return &pipeConn{msgs: p.msgs}, nil
}

// Push queues one message for the open connection.
func (p *PipeTransport) Push(event, data string) {
	p.msgs <- stream.Message{Event: event, Data: data}
}

// Opens returns how many connections were opened.
func (p *PipeTransport) Opens() int {
	return int(p.opens.Load())
}

// Targets returns the targets opened so far.
func (p *PipeTransport) Targets() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.targets...)
}

type pipeConn struct {
	msgs chan stream.Message
}

func (c *pipeConn) Next(ctx context.Context) (stream.Message, error) {
	select {
	case <-ctx.Done():
		return stream.Message{}, ctx.Err()
	case m := <-c.msgs:
		return m, nil
	}
}

func (c *pipeConn) Close() error { return nil }
