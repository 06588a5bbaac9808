// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for embedder packages.
//
// [RequireReceive], [RequireClosed] and [RequireNoReceive]
// encapsulate the timeout safety valve pattern
// (select with time.After fallback) so that individual tests do not
// need direct time.After calls. Channel traffic in this module is
// asynchronous by nature: handlers run on a run loop, replies complete
// on transport goroutines. Tests observe that traffic through Go
// channels and these helpers.
//
// [SocketDir] creates a temporary directory in /tmp suitable for Unix
// domain sockets. Unix domain sockets have a 108-byte path limit
// (sun_path in sockaddr_un), and t.TempDir() can exceed it.
//
// [RequireValue] compares value trees with [value.Equal] and prints
// both sides on mismatch.
//
// [UniqueChannel] generates monotonically numbered channel names for
// test disambiguation.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
