// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package channelbuffers holds messages that arrive on channels with
// no handler yet, the framework side of the channel-buffers control
// protocol.
//
// [Attach] installs a [Buffers] as a messenger's unhandled fallback and
// registers a handler on [messenger.ControlChannel]. Each channel gets
// a bounded FIFO (one message by default). When a FIFO is full the
// oldest message is dropped and answered with the empty response, and
// a warning is logged unless overflow warnings are silenced for that
// channel. When a handler is registered for a channel its buffered
// messages are redelivered to it in arrival order.
//
// The control channel accepts two standard-codec method calls:
//
//	resize   [channel, size]      set the FIFO capacity; shrinking drops the oldest
//	overflow [channel, allowed]   true silences overflow warnings
package channelbuffers
