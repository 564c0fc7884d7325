// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package feed

import (
	"github.com/noldarim/taskfeed/internal/taskevents"
)

// Pagination mirrors the bookkeeping of the last history fetch.
type Pagination struct {
	Page     int  `json:"page" yaml:"page"`
	PageSize int  `json:"page_size" yaml:"page_size"`
	Total    int  `json:"total" yaml:"total"`
	HasNext  bool `json:"has_next" yaml:"has_next"`
}

// Filters are read-time criteria for views. The store keeps them but never
// applies them to its own collection.
type Filters struct {
	Search string                 `json:"search" yaml:"search"`
	Levels []taskevents.Level     `json:"levels" yaml:"levels"`
	Types  []taskevents.EventType `json:"types" yaml:"types"`
}

// FilterPatch is a partial filter update. Nil fields leave the current value.
type FilterPatch struct {
	Search *string                 `json:"search,omitempty"`
	Levels *[]taskevents.Level     `json:"levels,omitempty"`
	Types  *[]taskevents.EventType `json:"types,omitempty"`
}

// EventsState is the externally observed snapshot of a Store.
type EventsState struct {
	Events     []taskevents.DisplayEvent `json:"events" yaml:"events"`
	Loading    bool                      `json:"loading" yaml:"loading"`
	Error      *string                   `json:"error" yaml:"error"`
	Connected  bool                      `json:"connected" yaml:"connected"`
	Filters    Filters                   `json:"filters" yaml:"filters"`
	Pagination Pagination                `json:"pagination" yaml:"pagination"`
}

func (s EventsState) clone() EventsState {
	out := s
	out.Events = append([]taskevents.DisplayEvent{}, s.Events...)
	out.Filters = s.Filters.clone()
	if s.Error != nil {
		msg := *s.Error
		out.Error = &msg
	}
	return out
}

func (f Filters) clone() Filters {
	return Filters{
		Search: f.Search,
		Levels: append([]taskevents.Level(nil), f.Levels...),
		Types:  append([]taskevents.EventType(nil), f.Types...),
	}
}

// Apply returns f with the patch's non-nil fields merged in.
func (p FilterPatch) Apply(f Filters) Filters {
	out := f.clone()
	if p.Search != nil {
		out.Search = *p.Search
	}
	if p.Levels != nil {
		out.Levels = append([]taskevents.Level(nil), (*p.Levels)...)
	}
	if p.Types != nil {
		out.Types = append([]taskevents.EventType(nil), (*p.Types)...)
	}
	return out
}
