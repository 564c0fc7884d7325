// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend is the REST client for task event history and task control.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/noldarim/taskfeed/internal/logger"
	"github.com/noldarim/taskfeed/internal/taskevents"
	"github.com/rs/zerolog"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetBackendLogger()
		log = &l
	})
	return log
}

const maxErrorBody = 4096

// Client talks to {base}/agents/{agentId}/tasks/{taskId}/...
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client, including its transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a backend client. The token, when set, is sent as a
// bearer token on every request.
func NewClient(baseURL, token string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: NewTokenTransport(token, nil),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) taskURL(agentID, taskID string, parts ...string) (string, error) {
	if agentID == "" || taskID == "" {
		return "", ErrMissingIDs
	}
	u := fmt.Sprintf("%s/agents/%s/tasks/%s", c.baseURL, url.PathEscape(agentID), url.PathEscape(taskID))
	for _, p := range parts {
		u += "/" + p
	}
	return u, nil
}

// ListTaskEvents fetches one page of event history.
func (c *Client) ListTaskEvents(ctx context.Context, agentID, taskID string, q HistoryQuery) (*EventPage, error) {
	u, err := c.taskURL(agentID, taskID, "events")
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if q.EventType != "" {
		params.Set("event_type", q.EventType)
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var page EventPage
	if err := c.do(ctx, http.MethodGet, u, &page); err != nil {
		return nil, fmt.Errorf("failed to list task events: %w", err)
	}
	if page.Events == nil {
		page.Events = []taskevents.RawHistoricalEvent{}
	}
	return &page, nil
}

// ControlTask sends pause, resume or cancel for a task.
func (c *Client) ControlTask(ctx context.Context, agentID, taskID string, action ControlAction) (*TaskStatus, error) {
	u, err := c.taskURL(agentID, taskID, string(action))
	if err != nil {
		return nil, err
	}

	var status TaskStatus
	if err := c.do(ctx, http.MethodPost, u, &status); err != nil {
		return nil, fmt.Errorf("failed to %s task: %w", action, err)
	}
	if status.TaskID == "" {
		status.TaskID = taskID
	}
	return &status, nil
}

// GetTaskStatus fetches the current task status.
func (c *Client) GetTaskStatus(ctx context.Context, agentID, taskID string) (*TaskStatus, error) {
	u, err := c.taskURL(agentID, taskID, "status")
	if err != nil {
		return nil, err
	}

	var status TaskStatus
	if err := c.do(ctx, http.MethodGet, u, &status); err != nil {
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}
	if status.TaskID == "" {
		status.TaskID = taskID
	}
	return &status, nil
}

// do performs the request and decodes a JSON body into out. An empty 2xx
// body leaves out untouched.
func (c *Client) do(ctx context.Context, method, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	getLog().Debug().
		Str("method", method).
		Str("url", u).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
