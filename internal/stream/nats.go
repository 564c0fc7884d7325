// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// EventHeader names the NATS header carrying the event name.
const EventHeader = "Event"

// NATSTransport subscribes to {prefix}.{agentId}.{taskId}.events.> on a NATS
// server. The event name comes from the Event header, else the last subject
// token.
type NATSTransport struct {
	url    string
	prefix string
	opts   []nats.Option
}

// NewNATSTransport creates a NATS transport. Extra options are appended to
// the defaults.
func NewNATSTransport(url, subjectPrefix string, opts ...nats.Option) *NATSTransport {
	return &NATSTransport{
		url:    url,
		prefix: strings.Trim(subjectPrefix, "."),
		opts:   opts,
	}
}

// Target returns the wildcard subject for the pair.
func (t *NATSTransport) Target(agentID, taskID string) (string, error) {
	if agentID == "" || taskID == "" {
		return "", ErrNoTarget
	}
	tokens := []string{subjectToken(agentID), subjectToken(taskID), "events", ">"}
	if t.prefix != "" {
		tokens = append([]string{t.prefix}, tokens...)
	}
	return strings.Join(tokens, "."), nil
}

// subjectToken replaces characters NATS reserves in subject tokens.
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// Open connects and subscribes. NATS-level reconnects are left to the
// Client, so the connection gives up on the first drop.
func (t *NATSTransport) Open(ctx context.Context, target string) (Conn, error) {
	opts := append([]nats.Option{
		nats.Name("taskfeed"),
		nats.MaxReconnects(0),
		nats.Timeout(5 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				getLog().Warn().Err(err).Str("subject", target).Msg("NATS disconnected")
			}
		}),
	}, t.opts...)

	nc, err := nats.Connect(t.url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if err := ctx.Err(); err != nil {
		nc.Close()
		return nil, err
	}

	sub, err := nc.SubscribeSync(target)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", target, err)
	}

	getLog().Debug().Str("subject", target).Str("server", nc.ConnectedUrl()).Msg("Subscribed to NATS subject")
	return &natsConn{nc: nc, sub: sub}, nil
}

type natsConn struct {
	nc  *nats.Conn
	sub *nats.Subscription
}

func (c *natsConn) Next(ctx context.Context) (Message, error) {
	msg, err := c.sub.NextMsgWithContext(ctx)
	if err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
			return Message{}, io.EOF
		}
		return Message{}, err
	}
	return messageFromNATS(msg), nil
}

func (c *natsConn) Close() error {
	_ = c.sub.Unsubscribe()
	c.nc.Close()
	return nil
}

func messageFromNATS(msg *nats.Msg) Message {
	event := ""
	if msg.Header != nil {
		event = msg.Header.Get(EventHeader)
	}
	if event == "" {
		if i := strings.LastIndexByte(msg.Subject, '.'); i >= 0 {
			event = msg.Subject[i+1:]
		} else {
			event = msg.Subject
		}
	}
	if event == "" || event == "events" {
		event = DefaultEvent
	}

	id := ""
	if msg.Header != nil {
		id = msg.Header.Get(nats.MsgIdHdr)
	}
	return Message{Event: event, Data: string(msg.Data), ID: id}
}
