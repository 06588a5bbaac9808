// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/embedder/cmd/embedder-channel/cli"
	"github.com/bureau-foundation/embedder/lib/config"
	"github.com/bureau-foundation/embedder/lib/messenger"
	"github.com/bureau-foundation/embedder/transport"
)

// connectionFlags are the flags shared by every command that reaches
// a peer.
type connectionFlags struct {
	configPath string
	socket     string
	timeout    time.Duration
}

func (f *connectionFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.configPath, "config", "", "config file (default $"+config.EnvironmentVariable+")")
	flagSet.StringVarP(&f.socket, "socket", "s", "", "peer address, a socket path or unix:// or tcp:// URL (overrides transport.socket_path)")
	flagSet.DurationVar(&f.timeout, "timeout", 10*time.Second, "bound on connecting and on each request; 0 disables")
}

// setup resolves and validates the configuration and builds the
// logger it describes.
func (f *connectionFlags) setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Resolve(f.configPath)
	if err != nil {
		return nil, nil, err
	}
	if f.socket != "" {
		cfg.Transport.SocketPath = f.socket
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, nil, err
	}
	logger, err := cli.NewLogger(level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// requestContext bounds a single request by --timeout.
func (f *connectionFlags) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.timeout)
}

// session is a dialed connection with a messenger on top.
type session struct {
	conn      *transport.Conn
	messenger *messenger.Messenger
	logger    *slog.Logger
}

// dial connects to the configured peer.
func (f *connectionFlags) dial(ctx context.Context) (*session, error) {
	cfg, logger, err := f.setup()
	if err != nil {
		return nil, err
	}
	address, err := cfg.Address()
	if err != nil {
		return nil, err
	}
	dialer := &transport.Dialer{Timeout: f.timeout, Options: cfg.TransportOptions(logger)}
	conn, err := dialer.Dial(ctx, address)
	if err != nil {
		return nil, err
	}
	logger.Debug("connected", "address", address.String())
	return &session{
		conn:      conn,
		messenger: messenger.New(conn, messenger.Options{Logger: logger}),
		logger:    logger,
	}, nil
}

func (s *session) Close() {
	s.messenger.Shutdown()
	s.conn.Close()
}
