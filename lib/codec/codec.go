// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/embedder/lib/value"
)

// Error kinds. Every decode or encode failure returned by this package
// wraps exactly one of these.
var (
	// ErrFailed reports a malformed payload: an unknown type tag or a
	// record of the wrong shape.
	ErrFailed = errors.New("codec: failed")

	// ErrOutOfData reports a payload that ended before a complete
	// value was read, including an empty payload where a value is
	// required.
	ErrOutOfData = errors.New("codec: out of data")

	// ErrAdditionalData reports unconsumed bytes after a complete
	// record.
	ErrAdditionalData = errors.New("codec: additional data")

	// ErrUnsupportedType reports a Value the codec cannot represent,
	// such as a custom value with no extension to encode it.
	ErrUnsupportedType = errors.New("codec: unsupported type")
)

// MaxNestingDepth is the deepest nesting of lists, maps and extension
// values the decoders accept. Deeper payloads fail with ErrFailed
// instead of exhausting the goroutine stack.
const MaxNestingDepth = 1024

// Error is a codec failure with a kind and a human-readable detail.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Message
}

// Unwrap returns the error kind so errors.Is matches it.
func (e *Error) Unwrap() error { return e.Kind }

var errEmptyErrorCode = &Error{Kind: ErrFailed, Message: "error envelope has an empty code"}

func errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// MessageCodec encodes a single Value.
type MessageCodec interface {
	// EncodeMessage encodes message. A nil message encodes as null.
	EncodeMessage(message *value.Value) ([]byte, error)

	// DecodeMessage decodes a payload produced by EncodeMessage.
	DecodeMessage(data []byte) (*value.Value, error)
}

// MethodCodec encodes method calls and the envelopes that answer them.
type MethodCodec interface {
	// EncodeMethodCall encodes a call. Nil args encode as null.
	EncodeMethodCall(name string, args *value.Value) ([]byte, error)

	// DecodeMethodCall decodes a call into its name and argument.
	DecodeMethodCall(data []byte) (string, *value.Value, error)

	// EncodeSuccessEnvelope encodes a successful result. A nil result
	// encodes as null.
	EncodeSuccessEnvelope(result *value.Value) ([]byte, error)

	// EncodeErrorEnvelope encodes an error answer. An empty message
	// and nil details encode as null; an empty code fails with
	// ErrFailed.
	EncodeErrorEnvelope(code, message string, details *value.Value) ([]byte, error)

	// DecodeResponse decodes an envelope. An empty payload always
	// decodes as a not-implemented response.
	DecodeResponse(data []byte) (Response, error)
}

// EncodeResponse encodes any Response with methodCodec. A
// not-implemented response encodes as the empty payload.
func EncodeResponse(methodCodec MethodCodec, response Response) ([]byte, error) {
	switch typed := response.(type) {
	case *SuccessResponse:
		return methodCodec.EncodeSuccessEnvelope(typed.Result)
	case *ErrorResponse:
		return methodCodec.EncodeErrorEnvelope(typed.Code, typed.Message, typed.Details)
	case *NotImplementedResponse:
		return []byte{}, nil
	case nil:
		return nil, errorf(ErrFailed, "nil response")
	}
	return nil, errorf(ErrFailed, "unknown response type %T", response)
}
