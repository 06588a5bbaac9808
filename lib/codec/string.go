// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"unicode/utf8"

	"github.com/bureau-foundation/embedder/lib/value"
)

// StringCodec encodes a string value as its UTF-8 bytes. Null encodes
// as the empty payload; the empty payload decodes as the empty string.
type StringCodec struct{}

func (StringCodec) EncodeMessage(message *value.Value) ([]byte, error) {
	if message == nil || message.Type() == value.TypeNull {
		return []byte{}, nil
	}
	if message.Type() != value.TypeString {
		return nil, errorf(ErrUnsupportedType, "string codec cannot encode %s", message.Type())
	}
	return []byte(message.RawString()), nil
}

func (StringCodec) DecodeMessage(data []byte) (*value.Value, error) {
	if !utf8.Valid(data) {
		return nil, errorf(ErrFailed, "payload is not valid UTF-8")
	}
	return value.String(string(data)), nil
}

// BinaryCodec passes a uint8 list value through as raw bytes. Null
// encodes as the empty payload.
type BinaryCodec struct{}

func (BinaryCodec) EncodeMessage(message *value.Value) ([]byte, error) {
	if message == nil || message.Type() == value.TypeNull {
		return []byte{}, nil
	}
	if message.Type() != value.TypeUint8List {
		return nil, errorf(ErrUnsupportedType, "binary codec cannot encode %s", message.Type())
	}
	return message.Uint8List(), nil
}

func (BinaryCodec) DecodeMessage(data []byte) (*value.Value, error) {
	return value.Uint8List(data), nil
}
