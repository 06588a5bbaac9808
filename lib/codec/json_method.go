// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"github.com/bureau-foundation/embedder/lib/value"
)

// JSONMethodCodec encodes method calls as {"method": name, "args":
// args}, success envelopes as [result] and error envelopes as [code,
// message, details].
type JSONMethodCodec struct{}

var jsonMessages JSONMessageCodec

func (JSONMethodCodec) EncodeMethodCall(name string, args *value.Value) ([]byte, error) {
	call := value.Map()
	defer call.Unref()
	call.SetStringTake("method", value.String(name))
	if args == nil {
		call.SetStringTake("args", value.Null())
	} else {
		call.SetString("args", args)
	}
	return jsonMessages.EncodeMessage(call)
}

func (JSONMethodCodec) DecodeMethodCall(data []byte) (string, *value.Value, error) {
	call, err := jsonMessages.DecodeMessage(data)
	if err != nil {
		return "", nil, err
	}
	defer call.Unref()
	if call.Type() != value.TypeMap {
		return "", nil, errorf(ErrFailed, "JSON method call is %s, not object", call.Type())
	}
	name := call.LookupString("method")
	if name == nil || name.Type() != value.TypeString {
		return "", nil, errorf(ErrFailed, "JSON method call has no string \"method\" member")
	}
	args := call.LookupString("args")
	if args == nil {
		return name.RawString(), value.Null(), nil
	}
	return name.RawString(), args.Ref(), nil
}

func (JSONMethodCodec) EncodeSuccessEnvelope(result *value.Value) ([]byte, error) {
	if result == nil {
		result = value.Null()
	} else {
		result.Ref()
	}
	envelope := value.List(result)
	defer envelope.Unref()
	return jsonMessages.EncodeMessage(envelope)
}

func (JSONMethodCodec) EncodeErrorEnvelope(code, message string, details *value.Value) ([]byte, error) {
	if code == "" {
		return nil, errEmptyErrorCode
	}
	messageValue := value.Null()
	if message != "" {
		messageValue = value.String(message)
	}
	if details == nil {
		details = value.Null()
	} else {
		details.Ref()
	}
	envelope := value.List(value.String(code), messageValue, details)
	defer envelope.Unref()
	return jsonMessages.EncodeMessage(envelope)
}

func (JSONMethodCodec) DecodeResponse(data []byte) (Response, error) {
	if len(data) == 0 {
		return NewNotImplementedResponse(), nil
	}
	envelope, err := jsonMessages.DecodeMessage(data)
	if err != nil {
		return nil, err
	}
	defer envelope.Unref()
	if envelope.Type() != value.TypeList {
		return nil, errorf(ErrFailed, "JSON envelope is %s, not array", envelope.Type())
	}

	switch envelope.Len() {
	case 1:
		return NewSuccessResponse(envelope.At(0).Ref()), nil
	case 3:
		code := envelope.At(0)
		if code.Type() != value.TypeString {
			return nil, errorf(ErrFailed, "JSON error code is %s, not string", code.Type())
		}
		var messageText string
		switch message := envelope.At(1); message.Type() {
		case value.TypeString:
			messageText = message.RawString()
		case value.TypeNull:
		default:
			return nil, errorf(ErrFailed, "JSON error message is %s, not string or null", message.Type())
		}
		return NewErrorResponse(code.RawString(), messageText, envelope.At(2).Ref()), nil
	}
	return nil, errorf(ErrFailed, "JSON envelope has %d elements, want 1 or 3", envelope.Len())
}
