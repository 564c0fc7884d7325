// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxSSELine = 1024 * 1024

// SSETransport subscribes to the backend's server-sent event endpoint at
// {base}/agents/{agentId}/tasks/{taskId}/events/stream.
type SSETransport struct {
	baseURL string
	client  *http.Client
}

// NewSSETransport creates an SSE transport. The client should carry auth
// (see backend.TokenTransport) and must not set an overall Timeout, which
// would cut long-lived streams. A nil client uses http.DefaultClient.
func NewSSETransport(baseURL string, client *http.Client) *SSETransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &SSETransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Target returns the stream URL for the pair.
func (t *SSETransport) Target(agentID, taskID string) (string, error) {
	if agentID == "" || taskID == "" {
		return "", ErrNoTarget
	}
	return fmt.Sprintf("%s/agents/%s/tasks/%s/events/stream",
		t.baseURL, url.PathEscape(agentID), url.PathEscape(taskID)), nil
}

// Open issues the GET and returns once response headers arrive.
func (t *SSETransport) Open(ctx context.Context, target string) (Conn, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)
	return &sseConn{body: resp.Body, scanner: scanner}, nil
}

type sseConn struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	lastID  string
}

// Next reads lines until a blank line dispatches an event with data. Comment
// lines and retry fields are ignored; multi-line data is joined with "\n".
func (c *sseConn) Next(ctx context.Context) (Message, error) {
	var (
		event string
		data  []string
	)

	for c.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return Message{}, err
		}

		line := strings.TrimSuffix(c.scanner.Text(), "\r")
		if line == "" {
			if len(data) == 0 {
				event = ""
				continue
			}
			if event == "" {
				event = DefaultEvent
			}
			return Message{Event: event, Data: strings.Join(data, "\n"), ID: c.lastID}, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			event = value
		case "data":
			data = append(data, value)
		case "id":
			c.lastID = value
		}
	}

	if err := c.scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Message{}, ctxErr
		}
		return Message{}, fmt.Errorf("failed to read stream: %w", err)
	}
	return Message{}, io.EOF
}

func (c *sseConn) Close() error {
	return c.body.Close()
}
