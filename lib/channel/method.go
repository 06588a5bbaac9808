// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/embedder/lib/codec"
	"github.com/bureau-foundation/embedder/lib/messenger"
	"github.com/bureau-foundation/embedder/lib/value"
)

// MethodCallHandler receives inbound method calls. It runs on the
// messenger's loop and must answer every call exactly once, possibly
// after returning. A handler that also implements messenger.Releaser
// is released when it stops being the channel's handler.
type MethodCallHandler interface {
	HandleMethodCall(call *MethodCall)
}

// MethodCallHandlerFunc adapts a function to MethodCallHandler.
type MethodCallHandlerFunc func(call *MethodCall)

// HandleMethodCall calls f.
func (f MethodCallHandlerFunc) HandleMethodCall(call *MethodCall) { f(call) }

// MethodChannel sends and receives method calls on one channel name.
type MethodChannel struct {
	binding
	codec codec.MethodCodec
}

// NewMethodChannel returns a channel for name on m. A nil methodCodec
// selects the standard method codec. The channel receives nothing
// until SetMethodCallHandler installs a handler.
func NewMethodChannel(m *messenger.Messenger, name string, methodCodec codec.MethodCodec) *MethodChannel {
	if methodCodec == nil {
		methodCodec = codec.NewStandardMethodCodec(nil)
	}
	return &MethodChannel{
		binding: binding{messenger: m, name: name},
		codec:   methodCodec,
	}
}

// Name returns the channel name.
func (c *MethodChannel) Name() string { return c.name }

// Codec returns the channel's method codec.
func (c *MethodChannel) Codec() codec.MethodCodec { return c.codec }

// Closed reports whether the channel was closed, replaced by another
// channel on the same name, or abandoned by the framework.
func (c *MethodChannel) Closed() bool { return c.isClosed() }

// InvokeMethod calls method with args (nil means null) and waits for
// the decoded response. Transport failures are returned as errors and
// the reply is not decoded; an application error is an
// *codec.ErrorResponse value with a nil error.
func (c *MethodChannel) InvokeMethod(ctx context.Context, method string, args *value.Value) (codec.Response, error) {
	message, err := c.codec.EncodeMethodCall(method, args)
	if err != nil {
		return nil, fmt.Errorf("encoding call to %s on %q: %w", method, c.name, err)
	}
	reply, err := c.messenger.Send(ctx, c.name, message)
	if err != nil {
		return nil, err
	}
	return c.decodeReply(method, reply)
}

// InvokeMethodAsync is InvokeMethod with the outcome delivered to
// callback on the messenger's loop. The callback always runs.
func (c *MethodChannel) InvokeMethodAsync(ctx context.Context, method string, args *value.Value, callback func(codec.Response, error)) {
	message, err := c.codec.EncodeMethodCall(method, args)
	if err != nil {
		err = fmt.Errorf("encoding call to %s on %q: %w", method, c.name, err)
		if !c.messenger.Loop().Post(func() { callback(nil, err) }) {
			callback(nil, err)
		}
		return
	}
	c.messenger.SendAsync(ctx, c.name, message, func(reply []byte, err error) {
		if err != nil {
			callback(nil, err)
			return
		}
		callback(c.decodeReply(method, reply))
	})
}

func (c *MethodChannel) decodeReply(method string, reply []byte) (codec.Response, error) {
	response, err := c.codec.DecodeResponse(reply)
	if err != nil {
		return nil, fmt.Errorf("decoding reply to %s on %q: %w", method, c.name, err)
	}
	return response, nil
}

// SetMethodCallHandler installs handler, releasing the previous one
// first, or stops receiving calls when handler is nil. On a closed
// channel a non-nil handler is rejected with a warning and released
// immediately.
func (c *MethodChannel) SetMethodCallHandler(handler MethodCallHandler) {
	if handler == nil {
		c.install(nil, nil)
		return
	}
	dispatch := func(message []byte, handle *messenger.ResponseHandle) {
		c.dispatch(handler, message, handle)
	}
	if !c.install(dispatch, releaserFunc(handler)) {
		c.messenger.Logger().Warn("method call handler set on a closed channel", "channel", c.name)
	}
}

func (c *MethodChannel) dispatch(handler MethodCallHandler, message []byte, handle *messenger.ResponseHandle) {
	name, args, err := c.codec.DecodeMethodCall(message)
	if err != nil {
		c.messenger.Logger().Warn("undecodable method call", "channel", c.name, "error", err)
		c.messenger.SendResponse(handle, nil)
		return
	}
	handler.HandleMethodCall(&MethodCall{
		Name:    name,
		Args:    args,
		channel: c,
		handle:  handle,
	})
}

// Close stops the channel. The name's registration is cleared only if
// this channel still owns it.
func (c *MethodChannel) Close() { c.close() }

// MethodCall is one inbound call awaiting its response.
type MethodCall struct {
	Name string
	Args *value.Value

	channel *MethodChannel
	handle  *messenger.ResponseHandle
}

// Channel returns the channel name the call arrived on.
func (call *MethodCall) Channel() string { return call.channel.name }

// RespondSuccess answers the call with result (nil means null).
func (call *MethodCall) RespondSuccess(result *value.Value) error {
	return call.Respond(codec.NewSuccessResponse(result))
}

// RespondError answers the call with an application error.
func (call *MethodCall) RespondError(code, message string, details *value.Value) error {
	return call.Respond(codec.NewErrorResponse(code, message, details))
}

// RespondNotImplemented answers that the method is not implemented.
func (call *MethodCall) RespondNotImplemented() error {
	return call.Respond(codec.NewNotImplementedResponse())
}

// Respond answers the call. If response cannot be encoded the error is
// returned, nothing is sent, and the call stays open for another
// Respond.
func (call *MethodCall) Respond(response codec.Response) error {
	data, err := codec.EncodeResponse(call.channel.codec, response)
	if err != nil {
		return fmt.Errorf("encoding response to %s on %q: %w", call.Name, call.channel.name, err)
	}
	return call.channel.messenger.SendResponse(call.handle, data)
}
