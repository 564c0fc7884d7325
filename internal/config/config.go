// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Stream transport names accepted in stream.transport.
const (
	TransportSSE  = "sse"
	TransportNATS = "nats"
)

// AppConfig holds all application configuration.
// It is instantiated by NewConfig() and passed to components that need it (dependency injection).
type AppConfig struct {
	Log     LogConfig     `mapstructure:"log"`
	Backend BackendConfig `mapstructure:"backend"`
	Stream  StreamConfig  `mapstructure:"stream"`
	History HistoryConfig `mapstructure:"history"`
	Server  ServerConfig  `mapstructure:"server"`
}

// LogConfig holds comprehensive logging configuration
type LogConfig struct {
	Level    string            `mapstructure:"level"`
	Format   string            `mapstructure:"format"`
	Output   []LogOutputConfig `mapstructure:"output"`
	Levels   map[string]string `mapstructure:"levels"`
	Context  LogContextConfig  `mapstructure:"context"`
	Sampling LogSamplingConfig `mapstructure:"sampling"`
}

// LogOutputConfig defines where logs are written
type LogOutputConfig struct {
	Type    string          `mapstructure:"type"` // "file", "console"
	Enabled bool            `mapstructure:"enabled"`
	Path    string          `mapstructure:"path"`   // For file output
	Rotate  LogRotateConfig `mapstructure:"rotate"` // For file output
}

// LogRotateConfig defines log rotation settings
type LogRotateConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// LogContextConfig defines what context to include in logs
type LogContextConfig struct {
	IncludeCaller     bool   `mapstructure:"include_caller"`
	IncludeTimestamp  bool   `mapstructure:"include_timestamp"`
	IncludeStackTrace string `mapstructure:"include_stack_trace"`
}

// LogSamplingConfig defines log sampling settings
type LogSamplingConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Initial    uint32        `mapstructure:"initial"`
	Thereafter uint32        `mapstructure:"thereafter"`
	Tick       time.Duration `mapstructure:"tick"`
}

// BackendConfig describes the REST/SSE backend the feed talks to.
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"` // e.g. http://localhost:8000/api
	Token   string        `mapstructure:"token"`    // Bearer token injected into every request
	Timeout time.Duration `mapstructure:"timeout"`  // REST timeout; the live stream is not bounded by it
}

// StreamConfig holds live stream settings.
type StreamConfig struct {
	Transport         string        `mapstructure:"transport"`       // "sse" or "nats"
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"` // Fixed backoff between attempts
	RefreshDelay      time.Duration `mapstructure:"refresh_delay"`   // Pause between disconnect and reconnect on refresh
	NATSURL           string        `mapstructure:"nats_url"`
	NATSSubjectPrefix string        `mapstructure:"nats_subject_prefix"`
}

// HistoryConfig holds history fetch settings.
type HistoryConfig struct {
	PageSize int `mapstructure:"page_size"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"` // Empty = allow all (development); set for production
	MaxViews       int      `mapstructure:"max_views"`       // Concurrent mounted watch views
}

// NewConfig creates a new AppConfig by reading from a file, environment variables,
// and applying defaults.
func NewConfig(configPath string) (*AppConfig, error) {
	cfg := defaultConfig()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/taskfeed/")
		v.AddConfigPath("$HOME/.taskfeed")
	}

	v.SetEnvPrefix("TASKFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys must be known to viper for AutomaticEnv to reach them during Unmarshal.
	for _, key := range []string{
		"backend.base_url", "backend.token", "backend.timeout",
		"stream.transport", "stream.reconnect_delay", "stream.refresh_delay",
		"stream.nats_url", "stream.nats_subject_prefix",
		"history.page_size",
		"server.host", "server.port", "server.max_views",
		"log.level", "log.format",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	// Read the config file. It's okay if it doesn't exist.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.expandPaths()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in configuration without reading files or env.
func Default() *AppConfig {
	cfg := defaultConfig()
	return &cfg
}

// defaultConfig returns an AppConfig with default values.
// This is more type-safe than using viper.SetDefault().
func defaultConfig() AppConfig {
	return AppConfig{
		Log: LogConfig{
			Level:  "INFO",
			Format: "console",
			Output: []LogOutputConfig{
				{
					Type:    "file",
					Enabled: true,
					Path:    "./logs/taskfeed.log",
					Rotate: LogRotateConfig{
						MaxSizeMB:  100,
						MaxBackups: 7,
						MaxAgeDays: 30,
						Compress:   true,
					},
				},
				{
					Type:    "console",
					Enabled: false, // Disabled by default for the terminal view
				},
			},
			Levels: map[string]string{
				"feed":       "INFO",
				"stream":     "INFO",
				"normalizer": "WARN",
				"backend":    "INFO",
				"api":        "INFO",
				"tui":        "WARN",
			},
			Context: LogContextConfig{
				IncludeCaller:     true,
				IncludeTimestamp:  true,
				IncludeStackTrace: "ERROR",
			},
			Sampling: LogSamplingConfig{
				Enabled:    false,
				Initial:    100,
				Thereafter: 100,
				Tick:       time.Second,
			},
		},
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000/api",
			Timeout: 30 * time.Second,
		},
		Stream: StreamConfig{
			Transport:         TransportSSE,
			ReconnectDelay:    3 * time.Second,
			RefreshDelay:      500 * time.Millisecond,
			NATSURL:           "nats://localhost:4222",
			NATSSubjectPrefix: "agents",
		},
		History: HistoryConfig{
			PageSize: 100,
		},
		Server: ServerConfig{
			Host:     "127.0.0.1",
			Port:     8090,
			MaxViews: 100,
		},
	}
}

// expandPaths expands ~ and environment variables in path configuration values
func (c *AppConfig) expandPaths() {
	for i := range c.Log.Output {
		if c.Log.Output[i].Path != "" {
			c.Log.Output[i].Path = expandPath(c.Log.Output[i].Path)
		}
	}
}

// expandPath expands ~ to home directory and environment variables
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	return os.ExpandEnv(path)
}

// validate checks if the configuration is valid.
func (c *AppConfig) validate() error {
	validLogLevels := map[string]bool{
		"TRACE": true, "DEBUG": true, "INFO": true, "WARN": true, "ERROR": true, "FATAL": true, "PANIC": true,
	}
	if !validLogLevels[strings.ToUpper(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	if c.Backend.BaseURL == "" {
		return errors.New("backend.base_url is required")
	}
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL, got: %s", c.Backend.BaseURL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive, got: %s", c.Backend.Timeout)
	}

	switch c.Stream.Transport {
	case TransportSSE:
	case TransportNATS:
		if c.Stream.NATSURL == "" {
			return errors.New("stream.nats_url is required when stream.transport is nats")
		}
	default:
		return fmt.Errorf("stream.transport must be 'sse' or 'nats', got: %s", c.Stream.Transport)
	}

	if c.Stream.ReconnectDelay <= 0 {
		return fmt.Errorf("stream.reconnect_delay must be positive, got: %s", c.Stream.ReconnectDelay)
	}
	if c.Stream.RefreshDelay < 0 {
		return fmt.Errorf("stream.refresh_delay must not be negative, got: %s", c.Stream.RefreshDelay)
	}

	if c.History.PageSize <= 0 || c.History.PageSize > 1000 {
		return fmt.Errorf("history.page_size must be between 1 and 1000, got: %d", c.History.PageSize)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxViews <= 0 {
		return fmt.Errorf("server.max_views must be positive, got: %d", c.Server.MaxViews)
	}

	return nil
}

// Address returns host:port for the server listener.
func (sc *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", sc.Host, sc.Port)
}
