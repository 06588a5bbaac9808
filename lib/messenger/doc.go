// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messenger routes named binary messages between native code
// and the framework over a single engine connection.
//
// A [Messenger] holds one [Handler] per channel name. Inbound messages
// from the [Engine] are dispatched on the messenger's [runloop.Loop],
// in delivery order, to the handler registered for their channel.
// Each inbound message carries a one-shot [ResponseHandle]; the
// handler answers it with [Messenger.SendResponse], immediately or
// later and from any goroutine. A message for a channel with no
// handler is answered with the empty payload, which every method codec
// reads as not-implemented.
//
// Handlers that own resources implement [Releaser]. Release runs
// exactly once, when the registration ends: replaced by a new handler
// (before the new handler receives messages), cleared, abandoned by
// the framework ([Messenger.PlatformChannelClosed]) or dropped by
// [Messenger.Shutdown].
//
// [Messenger.SetMessageHandler] returns a [Registration] token.
// [Messenger.Unregister] with a stale token does nothing, so an owner
// that was already replaced cannot tear down its successor.
//
// Outbound, [Messenger.Send] blocks for the raw reply while
// [Messenger.SendAsync] delivers it to a callback on the loop. Both
// report transport failures ([ErrEngineNotRunning], [ErrShutdown],
// I/O errors, context cancellation) as Go errors, never as payloads.
//
// The reserved [ControlChannel] carries flow-control hints to the
// framework's per-channel buffers; see [Messenger.ResizeChannel].
package messenger
