// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"github.com/rs/zerolog"
)

// Static getters for the package names used as keys in log.levels.

// GetFeedLogger returns a logger for the task event store
func GetFeedLogger() zerolog.Logger {
	return GetLogger("feed")
}

// GetStreamLogger returns a logger for the live stream client and transports
func GetStreamLogger() zerolog.Logger {
	return GetLogger("stream")
}

// GetNormalizerLogger returns a logger for event normalization
func GetNormalizerLogger() zerolog.Logger {
	return GetLogger("normalizer")
}

// GetBackendLogger returns a logger for REST calls to the backend
func GetBackendLogger() zerolog.Logger {
	return GetLogger("backend")
}

// GetAPILogger returns a logger for the view host HTTP/WebSocket server
func GetAPILogger() zerolog.Logger {
	return GetLogger("api")
}

// GetTUILogger returns a logger for the terminal view
func GetTUILogger() zerolog.Logger {
	return GetLogger("tui")
}

// GetCLILogger returns a logger for command-line subcommands
func GetCLILogger() zerolog.Logger {
	return GetLogger("cli")
}
