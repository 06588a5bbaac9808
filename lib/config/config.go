// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/embedder/lib/channelbuffers"
	"github.com/bureau-foundation/embedder/transport"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "EMBEDDER_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for embedder components.
type Config struct {
	// Environment identifies the deployment type (development, production).
	Environment Environment `yaml:"environment"`

	// Transport configures the framework connection.
	Transport TransportConfig `yaml:"transport"`

	// Channels configures the framework-side channel buffers.
	Channels ChannelsConfig `yaml:"channels"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`

	// Per-environment overrides, applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Transport *TransportConfig `yaml:"transport,omitempty"`
	Channels  *ChannelsConfig  `yaml:"channels,omitempty"`
	Logging   *LoggingConfig   `yaml:"logging,omitempty"`
}

// TransportConfig configures the framework connection.
type TransportConfig struct {
	// SocketPath is the framework endpoint: a Unix socket path,
	// unix:///path, or tcp://host:port.
	// Default: ${XDG_RUNTIME_DIR:-/tmp}/embedder-channel.sock
	SocketPath string `yaml:"socket_path"`

	// Compression applied to large payloads: none, lz4 or zstd.
	// Default: lz4
	Compression string `yaml:"compression"`

	// CompressionThreshold is the payload size in bytes at which
	// compression is attempted. Default: 4096
	CompressionThreshold int `yaml:"compression_threshold"`

	// MaxFrameSize bounds frame bodies in bytes. Default: 16 MiB
	MaxFrameSize int `yaml:"max_frame_size"`
}

// ChannelsConfig configures the framework-side channel buffers.
type ChannelsConfig struct {
	// DefaultBufferSize is how many undelivered messages each channel
	// holds until resized. Default: 1
	DefaultBufferSize int `yaml:"default_buffer_size"`

	// SilencedOverflow lists channels whose buffer overflow is not
	// logged.
	SilencedOverflow []string `yaml:"silenced_overflow"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error. Default: info
	Level string `yaml:"level"`

	// Format is auto, text or json. auto selects text on a terminal
	// and json otherwise. Default: auto
	Format string `yaml:"format"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
func Default() *Config {
	return &Config{
		Environment: Development,
		Transport: TransportConfig{
			SocketPath:           "${XDG_RUNTIME_DIR:-/tmp}/embedder-channel.sock",
			Compression:          "lz4",
			CompressionThreshold: transport.DefaultCompressionThreshold,
			MaxFrameSize:         transport.DefaultMaxFrameSize,
		},
		Channels: ChannelsConfig{
			DefaultBufferSize: channelbuffers.DefaultSize,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from the EMBEDDER_CONFIG environment
// variable. There is no fallback: if EMBEDDER_CONFIG is not set, this
// fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your embedder.yaml config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values; the only expansion performed is on
// the socket path, for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// Resolve returns the configuration a command should run with: the
// file at path when path is set, otherwise the file named by
// EMBEDDER_CONFIG when that is set, otherwise the defaults. Unlike
// Load, a missing EMBEDDER_CONFIG is not an error.
func Resolve(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	if os.Getenv(EnvironmentVariable) != "" {
		return Load()
	}
	cfg := Default()
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		// Production defaults: overflow is always reported and frames
		// are smaller.
		if overrides == nil {
			c.Channels.SilencedOverflow = nil
			if c.Transport.MaxFrameSize == transport.DefaultMaxFrameSize {
				c.Transport.MaxFrameSize = 4 * 1024 * 1024
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Transport != nil {
		if overrides.Transport.SocketPath != "" {
			c.Transport.SocketPath = overrides.Transport.SocketPath
		}
		if overrides.Transport.Compression != "" {
			c.Transport.Compression = overrides.Transport.Compression
		}
		if overrides.Transport.CompressionThreshold != 0 {
			c.Transport.CompressionThreshold = overrides.Transport.CompressionThreshold
		}
		if overrides.Transport.MaxFrameSize != 0 {
			c.Transport.MaxFrameSize = overrides.Transport.MaxFrameSize
		}
	}

	if overrides.Channels != nil {
		if overrides.Channels.DefaultBufferSize != 0 {
			c.Channels.DefaultBufferSize = overrides.Channels.DefaultBufferSize
		}
		// A list is always applied from overrides, so an override can
		// clear it.
		c.Channels.SilencedOverflow = overrides.Channels.SilencedOverflow
	}

	if overrides.Logging != nil {
		if overrides.Logging.Level != "" {
			c.Logging.Level = overrides.Logging.Level
		}
		if overrides.Logging.Format != "" {
			c.Logging.Format = overrides.Logging.Format
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Transport.SocketPath = expandVars(c.Transport.SocketPath, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Transport.SocketPath == "" {
		errs = append(errs, errors.New("transport.socket_path is required"))
	} else if _, err := transport.ParseAddress(c.Transport.SocketPath); err != nil {
		errs = append(errs, fmt.Errorf("transport.socket_path: %w", err))
	}

	if _, err := transport.ParseCompression(c.Transport.Compression); err != nil {
		errs = append(errs, fmt.Errorf("transport.compression: %w", err))
	}

	if c.Transport.CompressionThreshold < 0 {
		errs = append(errs, fmt.Errorf("transport.compression_threshold must not be negative, got %d", c.Transport.CompressionThreshold))
	}

	if c.Transport.MaxFrameSize < 1024 {
		errs = append(errs, fmt.Errorf("transport.max_frame_size must be at least 1024, got %d", c.Transport.MaxFrameSize))
	}

	if c.Channels.DefaultBufferSize < 0 {
		errs = append(errs, fmt.Errorf("channels.default_buffer_size must not be negative, got %d", c.Channels.DefaultBufferSize))
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	formats := []string{"auto", "text", "json"}
	if !slices.Contains(formats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", formats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// LogLevel parses Logging.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(c.Logging.Level))); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// Address returns the parsed transport endpoint.
func (c *Config) Address() (transport.Address, error) {
	return transport.ParseAddress(c.Transport.SocketPath)
}

// TransportOptions returns the transport options this configuration
// describes. Call Validate first; an invalid compression name selects
// no compression.
func (c *Config) TransportOptions(logger *slog.Logger) transport.Options {
	compression, _ := transport.ParseCompression(c.Transport.Compression)
	return transport.Options{
		Logger:               logger,
		Compression:          compression,
		CompressionThreshold: c.Transport.CompressionThreshold,
		MaxFrameSize:         c.Transport.MaxFrameSize,
	}
}

// BufferOptions returns the channel buffer options this configuration
// describes.
func (c *Config) BufferOptions(logger *slog.Logger) channelbuffers.Options {
	size := c.Channels.DefaultBufferSize
	if size == 0 {
		// Zero in the file means no buffering, not the package default.
		size = -1
	}
	return channelbuffers.Options{
		Logger:           logger,
		DefaultSize:      size,
		SilencedOverflow: slices.Clone(c.Channels.SilencedOverflow),
	}
}
