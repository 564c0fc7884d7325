// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/noldarim/taskfeed/internal/logger"
	"github.com/rs/zerolog"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetStreamLogger()
		log = &l
	})
	return log
}

// DefaultReconnectDelay is the fixed backoff between connection attempts.
const DefaultReconnectDelay = 3 * time.Second

// Handlers receive connection lifecycle and message callbacks. Nil fields are
// skipped. Callbacks run on the client's goroutine and must not block for long
// or call Disconnect.
type Handlers struct {
	OnOpen    func()
	OnError   func(err error)
	OnClose   func()
	OnMessage func(msg Message)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithReconnectDelay sets the backoff between attempts.
func WithReconnectDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.reconnectDelay = d
		}
	}
}

// Client maintains at most one live subscription and reconnects on drops
// until Disconnect is called.
type Client struct {
	transport      Transport
	agentID        string
	taskID         string
	reconnectDelay time.Duration

	// dispatchMu is held while a callback runs.
	dispatchMu sync.Mutex

	mu        sync.Mutex
	handlers  Handlers
	cancel    context.CancelFunc
	done      chan struct{}
	gen       uint64
	connected bool
	lastErr   error
}

// New creates a client for one (agent, task) pair. Empty ids produce a client
// whose Connect is a no-op.
func New(transport Transport, agentID, taskID string, opts ...ClientOption) *Client {
	c := &Client{
		transport:      transport,
		agentID:        agentID,
		taskID:         taskID,
		reconnectDelay: DefaultReconnectDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetHandlers replaces the registered callbacks.
func (c *Client) SetHandlers(h Handlers) {
	c.mu.Lock()
	c.handlers = h
	c.mu.Unlock()
}

// Connect starts the subscription loop. It is a no-op while a loop is active
// or when the client has no target.
func (c *Client) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return
	}

	target, err := c.transport.Target(c.agentID, c.taskID)
	if err != nil {
		getLog().Debug().Err(err).Msg("No stream target, staying disconnected")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.gen++
	c.cancel = cancel
	c.done = make(chan struct{})

	getLog().Info().
		Str("agent_id", c.agentID).
		Str("task_id", c.taskID).
		Str("target", target).
		Msg("Connecting live stream")

	go c.run(ctx, c.gen, target, c.done)
}

// Disconnect closes the active subscription and stops reconnect attempts.
// It waits for a callback in progress; none fire for the closed subscription
// once it returns.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.gen++
	c.connected = false
	c.mu.Unlock()

	// Wait out a running callback.
	c.dispatchMu.Lock()
	c.dispatchMu.Unlock()

	if cancel != nil {
		cancel()
		getLog().Info().
			Str("agent_id", c.agentID).
			Str("task_id", c.taskID).
			Msg("Live stream disconnected")
	}
}

// Wait blocks until the loop started by the last Connect has exited.
func (c *Client) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Connected reports whether a subscription is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// LastError returns the most recent transport error, nil after a successful open.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Client) run(ctx context.Context, gen uint64, target string, done chan struct{}) {
	defer close(done)

	for {
		conn, err := c.transport.Open(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			getLog().Warn().Err(err).Str("target", target).Msg("Failed to open live stream")
			c.reportError(gen, err)
		} else {
			c.reportOpen(gen)
			err = c.pump(ctx, gen, conn)
			conn.Close()
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, io.EOF) {
				getLog().Warn().Err(err).Str("target", target).Msg("Live stream dropped")
				c.reportError(gen, err)
			} else {
				getLog().Info().Str("target", target).Msg("Live stream closed by server")
			}
			c.reportClose(gen)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
			getLog().Debug().Str("target", target).Msg("Reconnecting live stream")
		}
	}
}

func (c *Client) pump(ctx context.Context, gen uint64, conn Conn) error {
	for {
		msg, err := conn.Next(ctx)
		if err != nil {
			return err
		}
		ok := c.dispatch(gen, nil, func(h Handlers) {
			if h.OnMessage != nil {
				h.OnMessage(msg)
			}
		})
		if !ok {
			return context.Canceled
		}
	}
}

// dispatch applies update and runs fn with the handlers while gen is the
// active generation. It holds dispatchMu throughout, so Disconnect can wait
// for a callback already in progress.
func (c *Client) dispatch(gen uint64, update func(), fn func(Handlers)) bool {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}
	if update != nil {
		update()
	}
	h := c.handlers
	c.mu.Unlock()

	fn(h)
	return true
}

func (c *Client) reportOpen(gen uint64) {
	c.dispatch(gen, func() {
		c.connected = true
		c.lastErr = nil
	}, func(h Handlers) {
		if h.OnOpen != nil {
			h.OnOpen()
		}
	})
}

func (c *Client) reportError(gen uint64, err error) {
	c.dispatch(gen, func() {
		c.connected = false
		c.lastErr = err
	}, func(h Handlers) {
		if h.OnError != nil {
			h.OnError(err)
		}
	})
}

func (c *Client) reportClose(gen uint64) {
	c.dispatch(gen, func() {
		c.connected = false
	}, func(h Handlers) {
		if h.OnClose != nil {
			h.OnClose()
		}
	})
}
