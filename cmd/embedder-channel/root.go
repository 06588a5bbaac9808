// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/embedder/cmd/embedder-channel/cli"
	"github.com/bureau-foundation/embedder/lib/version"
)

// root builds the command tree. Command output goes to stdout;
// commands that read payloads without a positional argument read
// stdin.
func root(stdout io.Writer, stdin io.Reader) *cli.Command {
	var showVersion bool
	command := &cli.Command{
		Name:    "embedder-channel",
		Summary: "Platform channel client and stub peer",
		Description: `embedder-channel talks to a platform channel peer over a unix or TCP
socket. It invokes methods, listens to event streams, sends basic
messages, and decodes standard codec payloads. "serve" runs a stub
framework peer with an echo method channel, a counter event channel
and channel buffers attached.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("embedder-channel", pflag.ContinueOnError)
			flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
			return flagSet
		},
		Subcommands: []*cli.Command{
			invokeCommand(stdout, stdin),
			listenCommand(stdout, stdin),
			sendCommand(stdout),
			decodeCommand(stdout, stdin),
			serveCommand(stdout),
			versionCommand(stdout),
		},
		Examples: []cli.Example{
			{
				Description: "Run a stub peer and call its echo method",
				Command: "embedder-channel serve --socket /tmp/demo.sock &\n" +
					"  embedder-channel invoke --socket /tmp/demo.sock --channel embedder/echo --method echo --args '{\"a\": [1, 2]}'",
			},
			{
				Description: "Decode a method call payload",
				Command:     "embedder-channel decode --kind call 07 04 65 63 68 6f 00",
			},
		},
	}
	command.Run = func(ctx context.Context, args []string) error {
		if !showVersion {
			command.PrintHelp(os.Stderr)
			return fmt.Errorf("subcommand required")
		}
		fmt.Fprintln(stdout, version.Info())
		return nil
	}
	return command
}

func versionCommand(stdout io.Writer) *cli.Command {
	var outputJSON bool
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Usage:   "embedder-channel version [--json]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("version", pflag.ContinueOnError)
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			if outputJSON {
				encoder := json.NewEncoder(stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(version.Current())
			}
			fmt.Fprintln(stdout, version.Full())
			return nil
		},
	}
}
