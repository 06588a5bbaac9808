// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"github.com/bureau-foundation/embedder/lib/value"
)

// Envelope markers of the standard method codec.
const (
	envelopeSuccess byte = 0
	envelopeError   byte = 1
)

// StandardMethodCodec encodes method calls and envelopes on top of a
// StandardMessageCodec.
//
// A call is the method name as a string value followed by the argument
// value. A success envelope is 0x00 followed by the result; an error
// envelope is 0x01 followed by the code string, the message (string or
// null) and the details value.
type StandardMethodCodec struct {
	messages *StandardMessageCodec
}

// NewStandardMethodCodec returns a method codec over messages. A nil
// messages uses a StandardMessageCodec with no extension.
func NewStandardMethodCodec(messages *StandardMessageCodec) *StandardMethodCodec {
	if messages == nil {
		messages = &StandardMessageCodec{}
	}
	return &StandardMethodCodec{messages: messages}
}

// MessageCodec returns the underlying message codec.
func (c *StandardMethodCodec) MessageCodec() *StandardMessageCodec { return c.messages }

func (c *StandardMethodCodec) EncodeMethodCall(name string, args *value.Value) ([]byte, error) {
	writer := c.messages.NewWriter()
	writer.WriteByte(TagString)
	if err := writer.WriteSize(len(name)); err != nil {
		return nil, err
	}
	writer.WriteBytes([]byte(name))
	if err := writer.WriteValue(args); err != nil {
		return nil, err
	}
	return writer.Bytes(), nil
}

func (c *StandardMethodCodec) DecodeMethodCall(data []byte) (string, *value.Value, error) {
	reader := c.messages.NewReader(data)
	name, err := reader.ReadValue()
	if err != nil {
		return "", nil, err
	}
	defer name.Unref()
	if name.Type() != value.TypeString {
		return "", nil, errorf(ErrFailed, "method name is %s, not string", name.Type())
	}
	args, err := reader.ReadValue()
	if err != nil {
		return "", nil, err
	}
	if err := reader.expectEnd("method call"); err != nil {
		args.Unref()
		return "", nil, err
	}
	return name.RawString(), args, nil
}

func (c *StandardMethodCodec) EncodeSuccessEnvelope(result *value.Value) ([]byte, error) {
	writer := c.messages.NewWriter()
	writer.WriteByte(envelopeSuccess)
	if err := writer.WriteValue(result); err != nil {
		return nil, err
	}
	return writer.Bytes(), nil
}

func (c *StandardMethodCodec) EncodeErrorEnvelope(code, message string, details *value.Value) ([]byte, error) {
	if code == "" {
		return nil, errEmptyErrorCode
	}
	writer := c.messages.NewWriter()
	writer.WriteByte(envelopeError)
	if err := writer.WriteValue(value.String(code)); err != nil {
		return nil, err
	}
	messageValue := value.Null()
	if message != "" {
		messageValue = value.String(message)
	}
	if err := writer.WriteValue(messageValue); err != nil {
		return nil, err
	}
	if err := writer.WriteValue(details); err != nil {
		return nil, err
	}
	return writer.Bytes(), nil
}

func (c *StandardMethodCodec) DecodeResponse(data []byte) (Response, error) {
	if len(data) == 0 {
		return NewNotImplementedResponse(), nil
	}
	reader := c.messages.NewReader(data)
	marker, _ := reader.ReadByte()
	switch marker {
	case envelopeSuccess:
		result, err := reader.ReadValue()
		if err != nil {
			return nil, err
		}
		if err := reader.expectEnd("success envelope"); err != nil {
			result.Unref()
			return nil, err
		}
		return NewSuccessResponse(result), nil

	case envelopeError:
		code, err := reader.ReadValue()
		if err != nil {
			return nil, err
		}
		defer code.Unref()
		if code.Type() != value.TypeString {
			return nil, errorf(ErrFailed, "error code is %s, not string", code.Type())
		}
		message, err := reader.ReadValue()
		if err != nil {
			return nil, err
		}
		defer message.Unref()
		var messageText string
		switch message.Type() {
		case value.TypeString:
			messageText = message.RawString()
		case value.TypeNull:
		default:
			return nil, errorf(ErrFailed, "error message is %s, not string or null", message.Type())
		}
		details, err := reader.ReadValue()
		if err != nil {
			return nil, err
		}
		if err := reader.expectEnd("error envelope"); err != nil {
			details.Unref()
			return nil, err
		}
		return NewErrorResponse(code.RawString(), messageText, details), nil
	}
	return nil, errorf(ErrFailed, "invalid envelope marker %#02x", marker)
}
