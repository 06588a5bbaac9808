// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// Exit codes for outcomes a command reports on its own.
const (
	// ExitRemoteError means the peer answered with an error envelope.
	ExitRemoteError = 2

	// ExitNotImplemented means the peer had no handler for the call.
	ExitNotImplemented = 3
)

// ExitError signals a non-zero exit for an outcome the command has
// already reported. main exits with Code and prints nothing more.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the process exit code.
func (e *ExitError) ExitCode() int {
	return e.Code
}
