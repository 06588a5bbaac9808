// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package channel layers typed protocols on a [messenger.Messenger].
//
// [MethodChannel] carries request/response method calls encoded with a
// [codec.MethodCodec]. [EventChannel] models a stream with the
// two-method listen/cancel protocol and pushes events as unsolicited
// envelopes on the same channel name. [BasicMessageChannel] sends
// single [codec.MessageCodec] values with an optional reply.
//
// Each channel owns at most one messenger registration for its name.
// When another channel registers the same name, or the framework
// abandons it, the earlier channel becomes closed: it stops receiving
// messages, rejects new handlers (releasing them at once), and its
// Close leaves the newer registration alone.
//
// Handlers run on the messenger's loop. A handler that owns resources
// implements [messenger.Releaser]; Release runs exactly once, when the
// handler is replaced, cleared, or its channel closes.
package channel
