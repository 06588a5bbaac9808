// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channelbuffers

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/embedder/lib/codec"
	"github.com/bureau-foundation/embedder/lib/messenger"
	"github.com/bureau-foundation/embedder/lib/value"
)

// DefaultSize is the capacity of a channel's buffer until it is
// resized.
const DefaultSize = 1

// Options configures Buffers.
type Options struct {
	// Logger receives overflow warnings. Nil discards them.
	Logger *slog.Logger

	// DefaultSize is the capacity of new buffers. Zero selects
	// DefaultSize; negative values are treated as zero capacity.
	DefaultSize int

	// SilencedOverflow lists channels whose overflow is not logged.
	SilencedOverflow []string
}

// Buffers is the per-channel message store for one messenger.
type Buffers struct {
	messenger    *messenger.Messenger
	logger       *slog.Logger
	codec        codec.MethodCodec
	defaultSize  int
	registration messenger.Registration

	mu       sync.Mutex
	channels map[string]*buffer
}

type buffer struct {
	capacity int
	silenced bool
	held     []messenger.HeldMessage
}

// Attach creates Buffers for m, installs them as m's unhandled
// fallback, and registers the control channel handler.
func Attach(m *messenger.Messenger, options Options) *Buffers {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	size := options.DefaultSize
	if size == 0 {
		size = DefaultSize
	}
	b := &Buffers{
		messenger:   m,
		logger:      logger,
		codec:       codec.NewStandardMethodCodec(nil),
		defaultSize: max(size, 0),
		channels:    make(map[string]*buffer),
	}
	for _, channel := range options.SilencedOverflow {
		b.channel(channel).silenced = true
	}
	m.SetUnhandled(b)
	b.registration = m.SetMessageHandler(messenger.ControlChannel, messenger.HandlerFunc(b.handleControl))
	return b
}

// Detach removes the fallback and control handler. Held messages are
// answered with the empty response.
func (b *Buffers) Detach() {
	b.messenger.SetUnhandled(nil)
	b.messenger.Unregister(b.registration)

	b.mu.Lock()
	var dropped []messenger.HeldMessage
	for _, buf := range b.channels {
		dropped = append(dropped, buf.held...)
		buf.held = nil
	}
	b.mu.Unlock()
	for _, held := range dropped {
		b.messenger.SendResponse(held.Handle, nil)
	}
}

// channel returns the buffer for name, creating it. Callers hold b.mu
// or are still constructing b.
func (b *Buffers) channel(name string) *buffer {
	buf := b.channels[name]
	if buf == nil {
		buf = &buffer{capacity: b.defaultSize}
		b.channels[name] = buf
	}
	return buf
}

// HandleMessage implements messenger.Handler: the messenger calls it
// for messages on channels with no handler.
func (b *Buffers) HandleMessage(channel string, message []byte, handle *messenger.ResponseHandle) {
	b.mu.Lock()
	buf := b.channel(channel)
	buf.held = append(buf.held, messenger.HeldMessage{Message: message, Handle: handle})
	dropped := buf.trim()
	silenced := buf.silenced
	b.mu.Unlock()

	b.drop(channel, dropped, silenced)
}

// TakeHeld implements messenger.Holder: it removes and returns the
// messages held for channel, oldest first.
func (b *Buffers) TakeHeld(channel string) []messenger.HeldMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf := b.channels[channel]
	if buf == nil {
		return nil
	}
	held := buf.held
	buf.held = nil
	return held
}

// Drain asks the messenger to redeliver the messages held for channel,
// oldest first, to the handler registered for it. Registering a
// handler drains its channel without a call to Drain.
func (b *Buffers) Drain(channel string) {
	b.messenger.DeliverHeld(channel)
}

// Resize sets the capacity of channel's buffer, dropping the oldest
// messages when it shrinks below the number held.
func (b *Buffers) Resize(channel string, size int) {
	b.mu.Lock()
	buf := b.channel(channel)
	buf.capacity = max(size, 0)
	dropped := buf.trim()
	silenced := buf.silenced
	b.mu.Unlock()

	b.drop(channel, dropped, silenced)
}

// SetAllowOverflow silences (true) or restores (false) overflow
// warnings for channel.
func (b *Buffers) SetAllowOverflow(channel string, allowed bool) {
	b.mu.Lock()
	b.channel(channel).silenced = allowed
	b.mu.Unlock()
}

// Held returns the number of messages held for channel.
func (b *Buffers) Held(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if buf := b.channels[channel]; buf != nil {
		return len(buf.held)
	}
	return 0
}

// trim removes and returns the oldest messages beyond capacity.
func (buf *buffer) trim() []messenger.HeldMessage {
	excess := len(buf.held) - buf.capacity
	if excess <= 0 {
		return nil
	}
	dropped := make([]messenger.HeldMessage, excess)
	copy(dropped, buf.held[:excess])
	buf.held = append(buf.held[:0], buf.held[excess:]...)
	return dropped
}

func (b *Buffers) drop(channel string, dropped []messenger.HeldMessage, silenced bool) {
	if len(dropped) == 0 {
		return
	}
	if !silenced {
		b.logger.Warn("channel buffer overflowed, dropping oldest messages",
			"channel", channel,
			"dropped", len(dropped),
		)
	}
	for _, held := range dropped {
		b.messenger.SendResponse(held.Handle, nil)
	}
}

func (b *Buffers) handleControl(_ string, message []byte, handle *messenger.ResponseHandle) {
	b.messenger.SendResponse(handle, b.control(message))
}

// control executes one control call and returns the encoded envelope.
func (b *Buffers) control(message []byte) []byte {
	method, args, err := b.codec.DecodeMethodCall(message)
	if err != nil {
		return b.errorEnvelope(fmt.Sprintf("undecodable control call: %v", err))
	}
	defer args.Unref()

	switch method {
	case messenger.ControlMethodResize:
		channel, size, err := controlArgs(args, value.TypeInt)
		if err != nil {
			return b.errorEnvelope(err.Error())
		}
		b.Resize(channel, int(size.Int()))
	case messenger.ControlMethodOverflow:
		channel, allowed, err := controlArgs(args, value.TypeBool)
		if err != nil {
			return b.errorEnvelope(err.Error())
		}
		b.SetAllowOverflow(channel, allowed.Bool())
	default:
		return nil
	}

	envelope, err := b.codec.EncodeSuccessEnvelope(nil)
	if err != nil {
		b.logger.Error("encoding control reply failed", "error", err)
		return nil
	}
	return envelope
}

// controlArgs unpacks [channel, argument] with argument of type want.
func controlArgs(args *value.Value, want value.Type) (string, *value.Value, error) {
	if args.Type() != value.TypeList || args.Len() != 2 {
		return "", nil, fmt.Errorf("control arguments must be a two-element list, got %s", args)
	}
	name, argument := args.At(0), args.At(1)
	if name.Type() != value.TypeString {
		return "", nil, fmt.Errorf("control channel name must be a string, got %s", name)
	}
	if argument.Type() != want {
		return "", nil, fmt.Errorf("control argument for %q has the wrong type: %s", name.RawString(), argument)
	}
	return name.RawString(), argument, nil
}

func (b *Buffers) errorEnvelope(message string) []byte {
	envelope, err := b.codec.EncodeErrorEnvelope("error", message, nil)
	if err != nil {
		b.logger.Error("encoding control error failed", "error", err)
		return nil
	}
	return envelope
}
