// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/embedder/cmd/embedder-channel/cli"
	"github.com/bureau-foundation/embedder/lib/channel"
	"github.com/bureau-foundation/embedder/lib/channelbuffers"
	"github.com/bureau-foundation/embedder/lib/clock"
	"github.com/bureau-foundation/embedder/lib/codec"
	"github.com/bureau-foundation/embedder/lib/config"
	"github.com/bureau-foundation/embedder/lib/messenger"
	"github.com/bureau-foundation/embedder/lib/value"
	"github.com/bureau-foundation/embedder/transport"
)

// Channel names the stub peer serves.
const (
	EchoChannel    = "embedder/echo"
	CounterChannel = "embedder/counter"
	MessageChannel = "embedder/message"
)

// stubOptions configures the channels of one served connection.
type stubOptions struct {
	methods  codec.MethodCodec
	messages codec.MessageCodec
	events   int
	interval time.Duration
	clock    clock.Clock
}

func serveCommand(stdout io.Writer) *cli.Command {
	var (
		connection connectionFlags
		codecName  string
		events     int
		interval   time.Duration
	)
	return &cli.Command{
		Name:    "serve",
		Summary: "Run a stub framework peer",
		Description: `Listen on the configured socket and serve every connection as a stub
framework peer:

  embedder/echo      method channel; "echo" returns its arguments,
                     "fail" answers an error with the arguments as
                     details, anything else is not implemented
  embedder/counter   event channel; each listen emits --events
                     integers counting from the listen argument (or 0),
                     then ends the stream
  embedder/message   basic message channel echoing every message

Channel buffers are attached, so messages sent to a channel before it
has a handler are held and answered by the control channel.

The bound address is printed once listening.`,
		Usage: "embedder-channel serve [--socket ADDRESS] [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("serve", pflag.ContinueOnError)
			connection.register(flagSet)
			flagSet.StringVar(&codecName, "codec", "standard", "codec for every served channel: standard or json")
			flagSet.IntVar(&events, "events", 3, "events emitted per listen on the counter channel")
			flagSet.DurationVar(&interval, "interval", 0, "delay between counter events")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			if events < 0 {
				return fmt.Errorf("--events must be non-negative, got %d", events)
			}
			methods, err := methodCodec(codecName)
			if err != nil {
				return err
			}
			messages, err := messageCodec(codecName)
			if err != nil {
				return err
			}
			cfg, logger, err := connection.setup()
			if err != nil {
				return err
			}
			address, err := cfg.Address()
			if err != nil {
				return err
			}
			listener, err := transport.Listen(address, cfg.TransportOptions(logger))
			if err != nil {
				return err
			}
			defer listener.Close()

			fmt.Fprintf(stdout, "listening on %s\n", listener.Address())

			options := stubOptions{
				methods:  methods,
				messages: messages,
				events:   events,
				interval: interval,
				clock:    clock.Real(),
			}
			return listener.Serve(ctx, func(ctx context.Context, conn *transport.Conn) {
				serveConn(ctx, conn, cfg, logger, options)
			})
		},
	}
}

// serveConn runs the stub channels on conn until the connection ends
// or ctx is done.
func serveConn(ctx context.Context, conn *transport.Conn, cfg *config.Config, logger *slog.Logger, options stubOptions) {
	m := messenger.New(conn, messenger.Options{Logger: logger})
	defer m.Shutdown()
	buffers := channelbuffers.Attach(m, cfg.BufferOptions(logger))
	defer buffers.Detach()

	echo := channel.NewMethodChannel(m, EchoChannel, options.methods)
	echo.SetMethodCallHandler(channel.MethodCallHandlerFunc(handleEcho))
	defer echo.Close()

	counter := newCounter(ctx, channel.NewEventChannel(m, CounterChannel, options.methods), options, logger)
	defer counter.close()

	message := channel.NewBasicMessageChannel(m, MessageChannel, options.messages)
	message.SetMessageHandler(channel.BasicMessageHandlerFunc(func(incoming *channel.BasicMessage) {
		if err := incoming.Respond(incoming.Message); err != nil {
			logger.Warn("echoing message failed", "channel", MessageChannel, "error", err)
		}
	}))
	defer message.Close()

	logger.Info("peer connected")
	select {
	case <-conn.Done():
		logger.Info("peer disconnected", "reason", conn.Err())
	case <-ctx.Done():
	}
}

func handleEcho(call *channel.MethodCall) {
	switch call.Name {
	case "echo":
		call.RespondSuccess(call.Args)
	case "fail":
		call.RespondError("failed", "failure requested", call.Args)
	default:
		call.Args.Unref()
		call.RespondNotImplemented()
	}
}

// counter emits a short integer stream for each listen.
type counter struct {
	events   *channel.EventChannel
	options  stubOptions
	logger   *slog.Logger
	parent   context.Context
	mu       sync.Mutex
	stop     context.CancelFunc
	finished chan struct{}
}

func newCounter(ctx context.Context, events *channel.EventChannel, options stubOptions, logger *slog.Logger) *counter {
	c := &counter{events: events, options: options, logger: logger, parent: ctx}
	events.SetStreamHandlers(c.listen, c.cancel, nil)
	return c
}

func (c *counter) listen(args *value.Value) *codec.ErrorResponse {
	defer args.Unref()
	start := int64(0)
	switch args.Type() {
	case value.TypeNull:
	case value.TypeInt:
		start = args.Int()
	default:
		return codec.NewErrorResponse("bad_args", "listen argument must be an integer or null", nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ctx, stop := context.WithCancel(c.parent)
	finished := make(chan struct{})
	c.stop, c.finished = stop, finished
	go c.emit(ctx, start, finished)
	return nil
}

func (c *counter) emit(ctx context.Context, start int64, finished chan struct{}) {
	defer close(finished)
	for i := range c.options.events {
		if c.options.interval > 0 {
			select {
			case <-c.options.clock.After(c.options.interval):
			case <-ctx.Done():
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		if err := c.events.Send(ctx, value.Int(start+int64(i))); err != nil {
			c.logger.Debug("counter stopped", "error", err)
			return
		}
	}
	if ctx.Err() == nil {
		c.events.SendEndOfStream(ctx)
	}
}

func (c *counter) cancel(args *value.Value) *codec.ErrorResponse {
	args.Unref()
	c.halt()
	return nil
}

// halt stops the running emitter, if any, and waits for it to exit.
func (c *counter) halt() {
	c.mu.Lock()
	stop, finished := c.stop, c.finished
	c.stop, c.finished = nil, nil
	c.mu.Unlock()
	if stop != nil {
		stop()
		<-finished
	}
}

func (c *counter) close() {
	c.events.Close()
	c.halt()
}
