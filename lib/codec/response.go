// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/embedder/lib/value"
)

// ErrNotImplemented is returned by ResponseResult for a
// not-implemented response: the remote side has no handler for the
// method (or the channel).
var ErrNotImplemented = errors.New("method not implemented")

// Response is the decoded outcome of a method call: exactly one of
// *SuccessResponse, *ErrorResponse or *NotImplementedResponse.
// Consumers type-switch on it.
type Response interface {
	isResponse()
}

// SuccessResponse carries the result of a call. Result is never nil
// after decoding; a null result is a null Value.
type SuccessResponse struct {
	Result *value.Value
}

// ErrorResponse is an application-level error answer. It is carried
// in a well-formed envelope and is therefore not a transport or codec
// failure. It implements error so ResponseResult can return it.
type ErrorResponse struct {
	// Code is a machine-readable error identifier. Never empty.
	Code string

	// Message is a human-readable description. Empty means absent and
	// is encoded as null.
	Message string

	// Details is an optional Value with further information.
	Details *value.Value
}

// NotImplementedResponse means the receiver has no implementation for
// the method. It is encoded as the empty payload.
type NotImplementedResponse struct{}

func (*SuccessResponse) isResponse()        {}
func (*ErrorResponse) isResponse()          {}
func (*NotImplementedResponse) isResponse() {}

// NewSuccessResponse returns a success response. It takes ownership of
// the caller's reference to result; nil means null.
func NewSuccessResponse(result *value.Value) *SuccessResponse {
	if result == nil {
		result = value.Null()
	}
	return &SuccessResponse{Result: result}
}

// NewErrorResponse returns an error response. It takes ownership of
// the caller's reference to details, which may be nil.
func NewErrorResponse(code, message string, details *value.Value) *ErrorResponse {
	return &ErrorResponse{Code: code, Message: message, Details: details}
}

// NewNotImplementedResponse returns a not-implemented response.
func NewNotImplementedResponse() *NotImplementedResponse {
	return &NotImplementedResponse{}
}

func (e *ErrorResponse) Error() string {
	text := "remote error " + e.Code
	if e.Message != "" {
		text += ": " + e.Message
	}
	if e.Details != nil && e.Details.Type() != value.TypeNull {
		text += fmt.Sprintf(" (details: %s)", e.Details)
	}
	return text
}

// ResponseResult returns the result of a success response, the
// *ErrorResponse itself as an error for an error response, and
// ErrNotImplemented for a not-implemented response.
func ResponseResult(response Response) (*value.Value, error) {
	switch typed := response.(type) {
	case *SuccessResponse:
		return typed.Result, nil
	case *ErrorResponse:
		return nil, typed
	case *NotImplementedResponse:
		return nil, ErrNotImplemented
	}
	return nil, fmt.Errorf("unknown response type %T", response)
}

// EqualResponse reports whether two responses are of the same kind
// with equal contents.
func EqualResponse(a, b Response) bool {
	switch typedA := a.(type) {
	case *SuccessResponse:
		typedB, ok := b.(*SuccessResponse)
		return ok && value.Equal(typedA.Result, typedB.Result)
	case *ErrorResponse:
		typedB, ok := b.(*ErrorResponse)
		return ok && typedA.Code == typedB.Code && typedA.Message == typedB.Message &&
			equalDetails(typedA.Details, typedB.Details)
	case *NotImplementedResponse:
		_, ok := b.(*NotImplementedResponse)
		return ok
	}
	return false
}

// equalDetails treats a nil Details and a null Value as the same,
// since both encode as null.
func equalDetails(a, b *value.Value) bool {
	if a == nil {
		a = value.Null()
	}
	if b == nil {
		b = value.Null()
	}
	return value.Equal(a, b)
}
