// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package runloop provides the serial task loop that stands in for a
// native UI thread.
//
// A [Loop] runs posted functions one at a time in the order they were
// posted. Everything a messenger does on behalf of application code
// (inbound dispatch, handler release, async send completion) is
// posted to one Loop, so handler code never has to synchronize with
// itself. Any goroutine may post; only the goroutine inside [Loop.Run]
// executes tasks.
//
// A panicking task is recovered and logged. The loop keeps running.
package runloop
