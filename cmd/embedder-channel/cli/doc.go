// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind embedder-channel.
//
// A [Command] tree dispatches on the first positional argument, parses
// pflag flag sets lazily, and prints structured help. Unknown commands
// and flags produce an error with a "did you mean" suggestion when the
// input is within a few edits of a defined name.
//
// Commands signal a handled non-zero exit by returning an [ExitError];
// main exits with its code without printing anything further.
// [NewLogger] builds the slog logger commands write diagnostics with.
package cli
