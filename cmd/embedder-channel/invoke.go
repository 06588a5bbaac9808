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
)

func invokeCommand(stdout io.Writer, stdin io.Reader) *cli.Command {
	var (
		connection  connectionFlags
		channelName string
		method      string
		args        string
		argsFile    string
		codecName   string
	)
	return &cli.Command{
		Name:    "invoke",
		Summary: "Invoke a method and print the response",
		Description: `Invoke a method on a method channel and print the response.

A success result is printed as JSON. An error response prints its code,
message and details and exits 2; a not-implemented response exits 3.`,
		Usage: "embedder-channel invoke --channel NAME --method NAME [--args JSON | --args-file FILE] [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("invoke", pflag.ContinueOnError)
			connection.register(flagSet)
			flagSet.StringVar(&channelName, "channel", "", "method channel name (required)")
			flagSet.StringVar(&method, "method", "", "method name (required)")
			flagSet.StringVar(&args, "args", "", "method arguments as JSON (default null)")
			flagSet.StringVar(&argsFile, "args-file", "", "read the arguments from a JSON file (comments allowed; - for stdin)")
			flagSet.StringVar(&codecName, "codec", "standard", "method codec: standard or json")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Echo a map through the stub peer",
				Command:     `embedder-channel invoke --channel embedder/echo --method echo --args '{"ids": [1, 2, 3]}'`,
			},
		},
		Run: func(ctx context.Context, positional []string) error {
			if len(positional) > 0 {
				return fmt.Errorf("unexpected argument %q", positional[0])
			}
			if channelName == "" || method == "" {
				return errors.New("--channel and --method are required")
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

			requestCtx, cancel := connection.requestContext(ctx)
			defer cancel()
			methodChannel := channel.NewMethodChannel(peer.messenger, channelName, methods)
			response, err := methodChannel.InvokeMethod(requestCtx, method, arguments)
			if err != nil {
				return err
			}
			return reportResponse(stdout, response)
		},
	}
}
