// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries platform messages between an embedder and
// a framework over a stream connection.
//
// [Conn] wraps a net.Conn and implements [messenger.Engine]: outbound
// messages are written as frames in call order and each reply is
// matched to its send by id; inbound messages are handed to the
// [messenger.Receiver] with the id used to answer them. One Conn
// serves both directions, so the same type backs the embedder side
// and a framework peer.
//
// A frame is a one-byte kind, a four-byte big-endian body length, and
// a CBOR body (see [codec.Marshal]). Kinds are message, response,
// failure (the peer could not process a message) and closed (the peer
// abandoned a channel, see [Conn.CloseChannel]). Payloads at or above
// [Options.CompressionThreshold] are compressed with LZ4 or zstd when
// that makes them smaller.
//
// When the underlying connection fails or is closed, every send still
// waiting for its reply completes with [messenger.ErrEngineNotRunning],
// as does every later send.
//
// [Pipe] returns two connected Conns over net.Pipe for tests and
// in-process peers. [Listen] and [Dialer] take an [Address], a Unix
// socket path or a TCP endpoint; on Linux, a Unix [Listener] rejects
// peers running as a different user (SO_PEERCRED).
package transport
