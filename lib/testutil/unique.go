// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueChannel returns a channel name of the form
// "test.embedder/prefix/N", so tests sharing a messenger never collide
// on a registration.
func UniqueChannel(prefix string) string {
	return fmt.Sprintf("test.embedder/%s/%d", prefix, uniqueCounter.Add(1))
}
