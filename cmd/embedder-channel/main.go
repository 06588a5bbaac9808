// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command embedder-channel talks to a platform channel peer over the
// embedder transport: it invokes methods, listens to event streams,
// sends basic messages, decodes standard codec payloads, and can serve
// a stub framework peer for development.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root(os.Stdout, os.Stdin).Execute(ctx, os.Args[1:]); err != nil {
		// Commands that already reported their outcome return an
		// ExitError; don't print a redundant "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			return coder.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
