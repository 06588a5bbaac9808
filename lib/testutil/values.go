// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import "github.com/bureau-foundation/embedder/lib/value"

// RequireValue fails the test unless got equals want by [value.Equal].
func RequireValue(t interface {
	Helper()
	Fatalf(format string, args ...any)
}, got, want *value.Value, msgAndArgs ...any) {
	t.Helper()
	if got == nil || want == nil {
		if got != want {
			t.Fatalf("%s: got %v, want %v", formatMessage(msgAndArgs), got, want)
		}
		return
	}
	if !value.Equal(got, want) {
		t.Fatalf("%s: got %s, want %s", formatMessage(msgAndArgs), got, want)
	}
}
