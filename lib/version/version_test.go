// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"strings"
	"testing"
)

func withInjected(t *testing.T, commit, dirty string) {
	t.Helper()
	savedCommit, savedDirty := GitCommit, GitDirty
	GitCommit, GitDirty = commit, dirty
	t.Cleanup(func() { GitCommit, GitDirty = savedCommit, savedDirty })
}

func TestInjectedCommit(t *testing.T) {
	withInjected(t, "abc1234", "true")

	if got := Commit(); got != "abc1234" {
		t.Errorf("Commit() = %q, want abc1234", got)
	}
	info := Info()
	if !strings.Contains(info, "abc1234-dirty") || !strings.HasPrefix(info, Version) {
		t.Errorf("Info() = %q", info)
	}
	build := Current()
	if !build.Dirty || build.Commit != "abc1234" {
		t.Errorf("Current() = %+v", build)
	}
}

func TestFull(t *testing.T) {
	withInjected(t, "abc1234", "false")

	full := Full()
	for _, want := range []string{"abc1234,", runtime.Version(), runtime.GOOS + "/" + runtime.GOARCH} {
		if !strings.Contains(full, want) {
			t.Errorf("Full() = %q, missing %q", full, want)
		}
	}
	if strings.Contains(full, "-dirty") {
		t.Errorf("Full() = %q, clean build marked dirty", full)
	}
}

func TestShort(t *testing.T) {
	if Short() != Version {
		t.Errorf("Short() = %q, want %q", Short(), Version)
	}
}

func TestCommitFallbackIsShort(t *testing.T) {
	withInjected(t, "unknown", "false")

	if commit := Commit(); len(commit) > shortCommitLength && commit != "unknown" {
		t.Errorf("Commit() = %q, want at most %d characters", commit, shortCommitLength)
	}
}
