// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via, for example:
//
//	go build -ldflags "-X github.com/bureau-foundation/embedder/lib/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"
	Version   = "0.1.0-dev"
)

// shortCommitLength matches "git rev-parse --short".
const shortCommitLength = 7

// Build is the machine-readable form of the version information.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Dirty     bool   `json:"dirty"`
	BuildTime string `json:"build_time"`
	Go        string `json:"go"`
	Platform  string `json:"platform"`
}

// Current returns the version information of the running binary.
func Current() Build {
	commit, dirty := vcs()
	return Build{
		Version:   Version,
		Commit:    commit,
		Dirty:     dirty,
		BuildTime: BuildTime,
		Go:        runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Info returns a formatted version string for --version output.
func Info() string {
	build := Current()
	dirty := ""
	if build.Dirty {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", build.Version, build.Commit, dirty, build.BuildTime)
}

// Full returns Info plus the Go version and platform.
func Full() string {
	build := Current()
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s", Info(), build.Go, build.Platform)
}

// Short returns just the version number.
func Short() string {
	return Version
}

// Commit returns the git commit SHA.
func Commit() string {
	commit, _ := vcs()
	return commit
}

func vcs() (commit string, dirty bool) {
	if GitCommit != "unknown" {
		return GitCommit, GitDirty == "true"
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return GitCommit, GitDirty == "true"
	}
	commit = GitCommit
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			commit = setting.Value
			if len(commit) > shortCommitLength {
				commit = commit[:shortCommitLength]
			}
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return commit, dirty
}
