// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SocketDir creates a temporary directory suitable for Unix domain
// sockets. The directory is removed when the test completes.
func SocketDir(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "embedder-test-*")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(directory)
	})
	return directory
}

// SocketPath returns a socket path named name inside a fresh
// SocketDir.
func SocketPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(SocketDir(t), name)
}
