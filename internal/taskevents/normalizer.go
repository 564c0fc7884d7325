// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package taskevents

import (
	"fmt"
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
		l := logger.GetNormalizerLogger()
		log = &l
	})
	return log
}

// Normalizer converts raw events into DisplayEvents. It holds no state other
// than its clock and is safe for concurrent use.
type Normalizer struct {
	now func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the clock used for arrival times and synthesized IDs.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		n.now = now
	}
}

// NewNormalizer creates a Normalizer using time.Now unless overridden.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Historical converts one record of the history endpoint. Unknown types keep
// their raw name as both type and title at info level.
func (n *Normalizer) Historical(raw RawHistoricalEvent) DisplayEvent {
	ev := DisplayEvent{
		ID:          raw.ID,
		Type:        EventType(raw.EventType),
		Timestamp:   n.parseTimestamp(raw.Timestamp),
		Title:       raw.EventType,
		Description: raw.Message,
		Level:       LevelInfo,
		Data:        raw.Metadata,
		Icon:        fallbackIcon,
	}

	if t, ok := ResolveType(raw.EventType); ok {
		cfg := typeConfigs[t]
		ev.Type = t
		ev.Title = cfg.Title
		ev.Level = cfg.Level
		ev.Icon = cfg.Icon
	}
	return ev
}

// Live converts one live stream message. It never fails: malformed payloads
// degrade to a WorkflowStarted event that carries the raw text.
func (n *Normalizer) Live(env RawLiveEnvelope) DisplayEvent {
	arrival := n.now()

	payload, degraded := decodePayload(env.Data)
	if degraded {
		getLog().Debug().
			Str("event", env.Event).
			Msg("live payload is not a JSON object, using raw message")
	}

	fields := MergeFields(payload)

	eventType := n.resolveLiveType(env.Event, payload, fields)
	cfg := typeConfigs[eventType]

	title := cfg.Title
	if title == "" {
		title = string(eventType)
	}

	rawTS := firstString("original_timestamp", payload, fields)
	if rawTS == "" {
		rawTS = firstString("timestamp", payload, fields)
	}
	ts := n.parseTimestampAt(rawTS, arrival)

	id := firstString("event_id", payload, fields)
	if id == "" {
		var taskID string
		if truthy(fields["task_id"]) {
			taskID = stringify(fields["task_id"])
		}
		id = fmt.Sprintf("%s-%s-%d", taskID, eventType, arrival.UnixMilli())
	}

	return DisplayEvent{
		ID:          id,
		Type:        eventType,
		Timestamp:   ts,
		Title:       title,
		Description: Describe(title, fields),
		Level:       cfg.Level,
		Data:        fields,
		Icon:        cfg.Icon,
	}
}

// resolveLiveType tries original_event_type, then event_type, then the
// transport event name. The payload top level is consulted before the merged
// fields for each key.
func (n *Normalizer) resolveLiveType(transportEvent string, payload, fields map[string]any) EventType {
	candidates := []string{
		firstString("original_event_type", payload, fields),
		firstString("event_type", payload, fields),
		transportEvent,
	}
	for _, name := range candidates {
		if name == "" {
			continue
		}
		if t, ok := ResolveType(name); ok {
			return t
		}
	}

	getLog().Debug().
		Strs("candidates", candidates).
		Msg("unrecognized live event type, defaulting to WorkflowStarted")
	return WorkflowStarted
}

func (n *Normalizer) parseTimestamp(ts string) time.Time {
	return n.parseTimestampAt(ts, n.now())
}

func (n *Normalizer) parseTimestampAt(ts string, fallback time.Time) time.Time {
	if ts == "" {
		return fallback
	}
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t
	}
	return fallback
}
