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

// BasicMessageHandler receives inbound messages on a
// BasicMessageChannel. Every message must be answered exactly once.
type BasicMessageHandler interface {
	HandleBasicMessage(message *BasicMessage)
}

// BasicMessageHandlerFunc adapts a function to BasicMessageHandler.
type BasicMessageHandlerFunc func(message *BasicMessage)

// HandleBasicMessage calls f.
func (f BasicMessageHandlerFunc) HandleBasicMessage(message *BasicMessage) { f(message) }

// BasicMessageChannel exchanges single values encoded with a message
// codec.
type BasicMessageChannel struct {
	binding
	codec codec.MessageCodec
}

// NewBasicMessageChannel returns a channel for name on m. A nil
// messageCodec selects the standard message codec.
func NewBasicMessageChannel(m *messenger.Messenger, name string, messageCodec codec.MessageCodec) *BasicMessageChannel {
	if messageCodec == nil {
		messageCodec = codec.NewStandardMessageCodec(nil)
	}
	return &BasicMessageChannel{
		binding: binding{messenger: m, name: name},
		codec:   messageCodec,
	}
}

// Name returns the channel name.
func (c *BasicMessageChannel) Name() string { return c.name }

// Closed reports whether the channel was closed, replaced or
// abandoned.
func (c *BasicMessageChannel) Closed() bool { return c.isClosed() }

// Send transmits message (nil means null) and returns the decoded
// reply. An empty reply decodes as null.
func (c *BasicMessageChannel) Send(ctx context.Context, message *value.Value) (*value.Value, error) {
	data, err := c.codec.EncodeMessage(message)
	if err != nil {
		return nil, fmt.Errorf("encoding message on %q: %w", c.name, err)
	}
	reply, err := c.messenger.Send(ctx, c.name, data)
	if err != nil {
		return nil, err
	}
	if len(reply) == 0 {
		return value.Null(), nil
	}
	decoded, err := c.codec.DecodeMessage(reply)
	if err != nil {
		return nil, fmt.Errorf("decoding reply on %q: %w", c.name, err)
	}
	return decoded, nil
}

// SetMessageHandler installs handler, releasing the previous one
// first, or stops receiving when handler is nil. Closed channels
// reject and release non-nil handlers.
func (c *BasicMessageChannel) SetMessageHandler(handler BasicMessageHandler) {
	if handler == nil {
		c.install(nil, nil)
		return
	}
	dispatch := func(data []byte, handle *messenger.ResponseHandle) {
		message, err := c.codec.DecodeMessage(data)
		if err != nil {
			c.messenger.Logger().Warn("undecodable message", "channel", c.name, "error", err)
			c.messenger.SendResponse(handle, nil)
			return
		}
		handler.HandleBasicMessage(&BasicMessage{Message: message, channel: c, handle: handle})
	}
	if !c.install(dispatch, releaserFunc(handler)) {
		c.messenger.Logger().Warn("message handler set on a closed channel", "channel", c.name)
	}
}

// Close stops the channel. The name's registration is cleared only if
// this channel still owns it.
func (c *BasicMessageChannel) Close() { c.close() }

// BasicMessage is one inbound message awaiting its reply.
type BasicMessage struct {
	Message *value.Value

	channel *BasicMessageChannel
	handle  *messenger.ResponseHandle
}

// Respond answers the message with reply; nil sends the empty reply.
// An encoding failure is returned and nothing is sent.
func (m *BasicMessage) Respond(reply *value.Value) error {
	var data []byte
	if reply != nil {
		encoded, err := m.channel.codec.EncodeMessage(reply)
		if err != nil {
			return fmt.Errorf("encoding reply on %q: %w", m.channel.name, err)
		}
		data = encoded
	}
	return m.channel.messenger.SendResponse(m.handle, data)
}
