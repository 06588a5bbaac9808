// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/embedder/cmd/embedder-channel/cli"
	"github.com/bureau-foundation/embedder/lib/channel"
	"github.com/bureau-foundation/embedder/lib/value"
)

func sendCommand(stdout io.Writer) *cli.Command {
	var (
		connection  connectionFlags
		channelName string
		message     string
		codecName   string
	)
	return &cli.Command{
		Name:    "send",
		Summary: "Send a basic message and print the reply",
		Description: `Send one message on a basic message channel and print the decoded reply.

With --codec string the message is sent as literal text; every other
codec takes the message as JSON. An empty reply prints null.`,
		Usage: "embedder-channel send --channel NAME [--message VALUE] [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("send", pflag.ContinueOnError)
			connection.register(flagSet)
			flagSet.StringVar(&channelName, "channel", "", "basic message channel name (required)")
			flagSet.StringVar(&message, "message", "", "message to send (default null)")
			flagSet.StringVar(&codecName, "codec", "standard", "message codec: standard, json, string or cbor")
			return flagSet
		},
		Run: func(ctx context.Context, positional []string) error {
			if len(positional) > 0 {
				return fmt.Errorf("unexpected argument %q", positional[0])
			}
			if channelName == "" {
				return errors.New("--channel is required")
			}
			messages, err := messageCodec(codecName)
			if err != nil {
				return err
			}
			var payload *value.Value
			if codecName == "string" {
				payload = value.String(message)
			} else if payload, err = parseValue(message); err != nil {
				return err
			}
			defer payload.Unref()

			peer, err := connection.dial(ctx)
			if err != nil {
				return err
			}
			defer peer.Close()

			requestCtx, cancel := connection.requestContext(ctx)
			defer cancel()
			basic := channel.NewBasicMessageChannel(peer.messenger, channelName, messages)
			reply, err := basic.Send(requestCtx, payload)
			if err != nil {
				return err
			}
			defer reply.Unref()
			fmt.Fprintln(stdout, formatValue(reply))
			return nil
		},
	}
}
