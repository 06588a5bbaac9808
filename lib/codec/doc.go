// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec converts [value.Value] trees, method calls, and method
// response envelopes to and from the byte payloads carried on platform
// channels.
//
// Two interfaces split the work. A [MessageCodec] encodes a single
// Value. A [MethodCodec] encodes method calls (a name plus one
// argument Value) and response envelopes: success with a result,
// error with a code, optional message and optional details, or
// not-implemented, which is always the empty payload.
//
// Implementations:
//
//   - [StandardMessageCodec] and [StandardMethodCodec]: the standard
//     binary format, byte-compatible with every other implementation
//     of it. Each value is a one-byte type tag followed by a
//     tag-specific payload; integers and floats are little-endian,
//     sizes use a one/three/five byte variable-width encoding, and
//     numeric list payloads are aligned to their element width
//     relative to the start of the buffer. Applications plug their own
//     tags in with an [Extension].
//   - [JSONMessageCodec] and [JSONMethodCodec]: JSON text with map
//     order preserved. Method calls are {"method": ..., "args": ...};
//     envelopes are [result] and [code, message, details].
//   - [StringCodec]: a string Value as UTF-8.
//   - [BinaryCodec]: a uint8 list Value as raw bytes.
//   - [CBORMessageCodec]: RFC 8949 core deterministic CBOR, with typed
//     lists carried as RFC 8746 typed arrays.
//
// Decode failures are reported as [*Error] values whose kind is one of
// [ErrFailed], [ErrOutOfData], [ErrAdditionalData] or
// [ErrUnsupportedType]; match them with errors.Is. These are local
// failures and are never confused with an [*ErrorResponse], which is
// an application-level answer carried inside a well-formed envelope.
//
// The package also exports the CBOR encoding modes shared by the
// transport frame protocol ([Marshal], [Unmarshal], [NewEncoder],
// [NewDecoder]) so every frame encodes identically.
package codec
