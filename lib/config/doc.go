// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for embedder
// components.
//
// Configuration is loaded from a single file specified by either the
// EMBEDDER_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search. Commands that accept --config run on
// [Default] when neither is given.
//
// The configuration file supports environment-specific sections
// (development, production) that override base values when
// [Config].Environment matches. Production defaults are stricter:
// overflow warnings are never silenced and frames are capped at 4 MiB.
//
// Variable expansion is performed on the socket path after loading:
// ${HOME}, ${XDG_RUNTIME_DIR} and ${VAR:-default} patterns are
// expanded. No other environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Transport, Channels, Logging
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.TransportOptions] and [Config.BufferOptions] -- the
//     values other packages are configured with
package config
