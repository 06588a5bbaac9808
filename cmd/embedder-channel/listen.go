// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/embedder/cmd/embedder-channel/cli"
	"github.com/bureau-foundation/embedder/lib/channel"
	"github.com/bureau-foundation/embedder/lib/codec"
	"github.com/bureau-foundation/embedder/lib/messenger"
	"github.com/bureau-foundation/embedder/lib/value"
)

// cancelTimeout bounds the cancel request sent when listen stops
// early, which may run after the command's context is done.
const cancelTimeout = 2 * time.Second

func listenCommand(stdout io.Writer, stdin io.Reader) *cli.Command {
	var (
		connection  connectionFlags
		channelName string
		args        string
		argsFile    string
		count       int
		codecName   string
	)
	return &cli.Command{
		Name:    "listen",
		Summary: "Subscribe to an event channel and print its events",
		Description: `Subscribe to an event channel and print one line per event.

Success events print as JSON and error events as "error CODE: MESSAGE".
The command stops at end of stream, after --count events, or on
interrupt. When it stops before end of stream it cancels the
subscription.`,
		Usage: "embedder-channel listen --channel NAME [--count N] [--args JSON] [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("listen", pflag.ContinueOnError)
			connection.register(flagSet)
			flagSet.StringVar(&channelName, "channel", "", "event channel name (required)")
			flagSet.StringVar(&args, "args", "", "listen arguments as JSON (default null)")
			flagSet.StringVar(&argsFile, "args-file", "", "read the listen arguments from a JSON file (comments allowed; - for stdin)")
			flagSet.IntVarP(&count, "count", "n", 0, "stop after this many events (0: until end of stream)")
			flagSet.StringVar(&codecName, "codec", "standard", "method codec: standard or json")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Print the first two counter events",
				Command:     "embedder-channel listen --channel embedder/counter --count 2",
			},
		},
		Run: func(ctx context.Context, positional []string) error {
			if len(positional) > 0 {
				return fmt.Errorf("unexpected argument %q", positional[0])
			}
			if channelName == "" {
				return errors.New("--channel is required")
			}
			if count < 0 {
				return fmt.Errorf("--count must be non-negative, got %d", count)
			}
			methods, err := methodCodec(codecName)
			if err != nil {
				return err
			}
			arguments, err := readValue(args, argsFile, stdin)
			if err != nil {
				return err
			}
			defer arguments.Unref()

			peer, err := connection.dial(ctx)
			if err != nil {
				return err
			}
			defer peer.Close()

			return listen(ctx, peer, &connection, channelName, methods, arguments, count, stdout)
		},
	}
}

func listen(ctx context.Context, peer *session, connection *connectionFlags, channelName string,
	methods codec.MethodCodec, arguments *value.Value, count int, stdout io.Writer) error {
	done := make(chan struct{})
	defer close(done)

	events := make(chan codec.Response, 16)
	peer.messenger.SetMessageHandler(channelName, messenger.HandlerFunc(
		func(_ string, message []byte, handle *messenger.ResponseHandle) {
			event, err := methods.DecodeResponse(message)
			peer.messenger.SendResponse(handle, nil)
			if err != nil {
				peer.logger.Warn("undecodable event", "channel", channelName, "error", err)
				return
			}
			select {
			case events <- event:
			case <-done:
			}
		}))

	control := channel.NewMethodChannel(peer.messenger, channelName, methods)
	requestCtx, cancel := connection.requestContext(ctx)
	response, err := control.InvokeMethod(requestCtx, channel.EventMethodListen, arguments)
	cancel()
	if err != nil {
		return fmt.Errorf("listening on %q: %w", channelName, err)
	}
	if _, ok := response.(*codec.SuccessResponse); !ok {
		return reportResponse(stdout, response)
	}

	received := 0
	for count == 0 || received < count {
		select {
		case <-ctx.Done():
			return cancelStream(peer, control, channelName)
		case event := <-events:
			if _, end := event.(*codec.NotImplementedResponse); end {
				peer.logger.Debug("end of stream", "channel", channelName, "events", received)
				return nil
			}
			fmt.Fprintln(stdout, describeResponse(event))
			received++
		}
	}
	return cancelStream(peer, control, channelName)
}

func cancelStream(peer *session, control *channel.MethodChannel, channelName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	response, err := control.InvokeMethod(ctx, channel.EventMethodCancel, nil)
	if err != nil {
		peer.logger.Warn("cancelling stream failed", "channel", channelName, "error", err)
		return nil
	}
	if failure, ok := response.(*codec.ErrorResponse); ok {
		peer.logger.Debug("stream cancel rejected", "channel", channelName, "code", failure.Code, "message", failure.Message)
	}
	return nil
}
