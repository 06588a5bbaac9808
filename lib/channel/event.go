// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bureau-foundation/embedder/lib/codec"
	"github.com/bureau-foundation/embedder/lib/messenger"
	"github.com/bureau-foundation/embedder/lib/value"
)

// Event channel protocol method names.
const (
	EventMethodListen = "listen"
	EventMethodCancel = "cancel"
)

// EventErrorCode is the error code for event channel protocol
// failures: an unknown method, or cancel with no active stream.
const EventErrorCode = "error"

// ErrStreamClosed is returned when pushing to an event channel with no
// active listener, or after end-of-stream.
var ErrStreamClosed = errors.New("channel: event stream not active")

// StreamFunc handles a listen or cancel request and owns args.
// Returning nil accepts the request; returning an error response
// answers with that error.
type StreamFunc func(args *value.Value) *codec.ErrorResponse

// EventChannel implements the listen/cancel stream protocol on one
// channel name and pushes events to the active listener.
//
// The channel is Idle until a listen call is accepted, then Active
// until cancel (which always returns it to Idle). Events can be
// pushed only while Active, including from inside the listen handler.
type EventChannel struct {
	binding
	codec codec.MethodCodec

	streamMu sync.Mutex
	onListen StreamFunc
	onCancel StreamFunc
	release  func()
	active   bool
	ended    bool
}

// NewEventChannel returns an event channel for name on m and registers
// it immediately. A nil methodCodec selects the standard method codec.
func NewEventChannel(m *messenger.Messenger, name string, methodCodec codec.MethodCodec) *EventChannel {
	if methodCodec == nil {
		methodCodec = codec.NewStandardMethodCodec(nil)
	}
	c := &EventChannel{
		binding: binding{messenger: m, name: name},
		codec:   methodCodec,
	}
	c.install(c.dispatch, c.releaseHandlers)
	return c
}

// Name returns the channel name.
func (c *EventChannel) Name() string { return c.name }

// Closed reports whether the channel was closed, replaced by another
// channel on the same name, or abandoned by the framework.
func (c *EventChannel) Closed() bool { return c.isClosed() }

// Active reports whether a listener is attached.
func (c *EventChannel) Active() bool {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	return c.active
}

// SetStreamHandlers replaces both stream handlers at once, running the
// previous release function first. The Idle/Active state is
// unchanged. On a closed channel the handlers are rejected with a
// warning and release runs immediately.
func (c *EventChannel) SetStreamHandlers(onListen, onCancel StreamFunc, release func()) {
	if c.isClosed() {
		if onListen != nil || onCancel != nil {
			c.messenger.Logger().Warn("stream handlers set on a closed channel", "channel", c.name)
		}
		if release != nil {
			release()
		}
		return
	}
	c.streamMu.Lock()
	previous := c.release
	c.onListen, c.onCancel, c.release = nil, nil, nil
	c.streamMu.Unlock()

	if previous != nil {
		previous()
	}

	c.streamMu.Lock()
	c.onListen, c.onCancel, c.release = onListen, onCancel, release
	c.streamMu.Unlock()
}

// releaseHandlers runs when the channel's registration ends.
func (c *EventChannel) releaseHandlers() {
	c.streamMu.Lock()
	release := c.release
	c.onListen, c.onCancel, c.release = nil, nil, nil
	c.active = false
	c.streamMu.Unlock()
	if release != nil {
		release()
	}
}

func (c *EventChannel) dispatch(message []byte, handle *messenger.ResponseHandle) {
	method, args, err := c.codec.DecodeMethodCall(message)
	if err != nil {
		c.messenger.Logger().Warn("undecodable event channel request", "channel", c.name, "error", err)
		c.messenger.SendResponse(handle, nil)
		return
	}

	var response codec.Response
	switch method {
	case EventMethodListen:
		response = c.listen(args)
	case EventMethodCancel:
		response = c.cancel(args)
	default:
		response = codec.NewErrorResponse(EventErrorCode,
			fmt.Sprintf("unknown event channel request %q", method), nil)
	}
	c.respond(handle, response)
}

func (c *EventChannel) listen(args *value.Value) codec.Response {
	c.streamMu.Lock()
	wasActive := c.active
	onListen, onCancel := c.onListen, c.onCancel
	c.active = false
	c.streamMu.Unlock()

	if wasActive && onCancel != nil {
		if failure := onCancel(value.Null()); failure != nil {
			c.messenger.Logger().Warn("cancelling previous stream failed",
				"channel", c.name, "code", failure.Code, "message", failure.Message)
		}
	}

	// Active before the handler runs so it can push events.
	c.streamMu.Lock()
	c.active = true
	c.ended = false
	c.streamMu.Unlock()

	if onListen != nil {
		if failure := onListen(args); failure != nil {
			c.streamMu.Lock()
			c.active = false
			c.streamMu.Unlock()
			return failure
		}
	}
	return codec.NewSuccessResponse(nil)
}

func (c *EventChannel) cancel(args *value.Value) codec.Response {
	c.streamMu.Lock()
	wasActive := c.active
	onCancel := c.onCancel
	c.active = false
	c.ended = false
	c.streamMu.Unlock()

	if !wasActive {
		return codec.NewErrorResponse(EventErrorCode, "No active stream to cancel", nil)
	}
	if onCancel != nil {
		if failure := onCancel(args); failure != nil {
			return failure
		}
	}
	return codec.NewSuccessResponse(nil)
}

func (c *EventChannel) respond(handle *messenger.ResponseHandle, response codec.Response) {
	data, err := codec.EncodeResponse(c.codec, response)
	if err != nil {
		c.messenger.Logger().Warn("encoding event channel reply failed", "channel", c.name, "error", err)
		data = nil
	}
	c.messenger.SendResponse(handle, data)
}

// Send pushes event to the listener as a success envelope.
func (c *EventChannel) Send(ctx context.Context, event *value.Value) error {
	return c.push(ctx, false, func() ([]byte, error) {
		return c.codec.EncodeSuccessEnvelope(event)
	})
}

// SendError pushes an error event to the listener.
func (c *EventChannel) SendError(ctx context.Context, code, message string, details *value.Value) error {
	return c.push(ctx, false, func() ([]byte, error) {
		return c.codec.EncodeErrorEnvelope(code, message, details)
	})
}

// SendEndOfStream tells the listener the stream is complete. Further
// pushes fail with ErrStreamClosed until the next listen.
func (c *EventChannel) SendEndOfStream(ctx context.Context) error {
	return c.push(ctx, true, func() ([]byte, error) { return []byte{}, nil })
}

func (c *EventChannel) push(ctx context.Context, end bool, encode func() ([]byte, error)) error {
	c.streamMu.Lock()
	if !c.active || c.ended {
		c.streamMu.Unlock()
		return ErrStreamClosed
	}
	data, err := encode()
	if err != nil {
		c.streamMu.Unlock()
		return fmt.Errorf("encoding event on %q: %w", c.name, err)
	}
	if end {
		c.ended = true
	}
	// Sends are issued under streamMu so concurrent pushers cannot
	// reorder; the engine transmits in call order.
	c.messenger.SendAsync(ctx, c.name, data, func(_ []byte, err error) {
		if err != nil {
			c.messenger.Logger().Warn("event push failed", "channel", c.name, "error", err)
		}
	})
	c.streamMu.Unlock()
	return nil
}

// Close stops the channel. The name's registration is cleared only if
// this channel still owns it.
func (c *EventChannel) Close() { c.close() }
