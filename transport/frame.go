// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bureau-foundation/embedder/lib/codec"
)

// frameKind is the first byte of every frame.
type frameKind byte

const (
	// kindMessage carries a platform message that expects a response
	// or failure frame with the same id.
	kindMessage frameKind = 0x01

	// kindResponse answers the message with the same id.
	kindResponse frameKind = 0x02

	// kindFailure reports that the message with the same id could not
	// be processed. Error holds the reason.
	kindFailure frameKind = 0x03

	// kindClosed reports that the sender abandoned Channel.
	kindClosed frameKind = 0x04
)

func (k frameKind) String() string {
	switch k {
	case kindMessage:
		return "message"
	case kindResponse:
		return "response"
	case kindFailure:
		return "failure"
	case kindClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%#02x)", byte(k))
	}
}

// frameHeaderLength is 1 byte kind + 4 bytes body length.
const frameHeaderLength = 5

// DefaultMaxFrameSize bounds frame bodies and decompressed payloads
// when Options.MaxFrameSize is zero.
const DefaultMaxFrameSize = 16 * 1024 * 1024

// frameBody is the CBOR body shared by all frame kinds.
type frameBody struct {
	ID      uint64 `cbor:"id,omitempty"`
	Channel string `cbor:"channel,omitempty"`
	Payload []byte `cbor:"payload,omitempty"`

	// Compression and Size describe a compressed payload; Size is the
	// uncompressed length.
	Compression Compression `cbor:"compression,omitempty"`
	Size        int         `cbor:"size,omitempty"`

	Error string `cbor:"error,omitempty"`
}

// writeFrame writes one frame as a single Write so frames from
// concurrent writers cannot interleave (callers still serialize).
func writeFrame(w io.Writer, kind frameKind, body frameBody, maxSize int) error {
	encoded, err := codec.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s frame: %w", kind, err)
	}
	if len(encoded) > maxSize {
		return fmt.Errorf("%s frame body of %d bytes exceeds maximum %d", kind, len(encoded), maxSize)
	}
	frame := make([]byte, frameHeaderLength, frameHeaderLength+len(encoded))
	frame[0] = byte(kind)
	binary.BigEndian.PutUint32(frame[1:frameHeaderLength], uint32(len(encoded)))
	frame = append(frame, encoded...)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("writing %s frame: %w", kind, err)
	}
	return nil
}

// readFrame reads one frame. Bodies larger than maxSize are rejected
// before they are read.
func readFrame(r io.Reader, maxSize int) (frameKind, frameBody, error) {
	var header [frameHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, frameBody{}, fmt.Errorf("reading frame header: %w", err)
	}
	kind := frameKind(header[0])
	length := binary.BigEndian.Uint32(header[1:frameHeaderLength])
	if uint64(length) > uint64(maxSize) {
		return 0, frameBody{}, fmt.Errorf("%s frame body of %d bytes exceeds maximum %d", kind, length, maxSize)
	}
	encoded := make([]byte, length)
	if _, err := io.ReadFull(r, encoded); err != nil {
		return 0, frameBody{}, fmt.Errorf("reading %s frame body: %w", kind, err)
	}
	var body frameBody
	if err := codec.Unmarshal(encoded, &body); err != nil {
		return 0, frameBody{}, fmt.Errorf("decoding %s frame: %w", kind, err)
	}
	return kind, body, nil
}
