// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build version information for the embedder
// binaries.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit]: short git SHA of the build
//   - [GitDirty]: "true" if there were uncommitted changes
//   - [BuildTime]: UTC timestamp of the build
//   - [Version]: semantic version string, set manually for releases
//
// When GitCommit is not injected, [Commit] falls back to the VCS
// revision the Go toolchain stamps into the binary, so plain "go
// build" output still identifies its source.
package version
