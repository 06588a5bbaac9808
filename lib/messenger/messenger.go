// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messenger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/bureau-foundation/embedder/lib/runloop"
)

var (
	// ErrShutdown is returned for operations on a messenger after
	// Shutdown.
	ErrShutdown = errors.New("messenger: shut down")

	// ErrEngineNotRunning is returned when the engine connection is
	// gone. Engines report it for sends they cannot transmit and for
	// sends still waiting when the connection closes.
	ErrEngineNotRunning = errors.New("messenger: engine not running")

	// ErrAlreadyResponded is returned when a response handle is
	// answered a second time.
	ErrAlreadyResponded = errors.New("messenger: response already sent")

	// ErrForeignHandle is returned when a response handle was not
	// issued by the messenger it is passed to.
	ErrForeignHandle = errors.New("messenger: response handle not issued by this messenger")
)

// Engine is the connection to the framework.
type Engine interface {
	// SendPlatformMessage transmits message on channel. Messages are
	// transmitted in call order. complete is called exactly once, from
	// any goroutine, with the raw reply or a transport error; a
	// cancelled ctx completes with an error wrapping ctx.Err().
	SendPlatformMessage(ctx context.Context, channel string, message []byte, complete func(response []byte, err error))

	// RespondPlatformMessage answers the inbound message id.
	RespondPlatformMessage(id uint64, response []byte) error

	// SetReceiver installs the receiver for inbound traffic.
	SetReceiver(receiver Receiver)
}

// Receiver accepts inbound traffic from an Engine. Methods may be
// called from any goroutine.
type Receiver interface {
	// ReceivePlatformMessage delivers a message that must be answered
	// with RespondPlatformMessage(id, ...).
	ReceivePlatformMessage(channel string, message []byte, id uint64)

	// PlatformChannelClosed reports that the framework abandoned
	// channel.
	PlatformChannelClosed(channel string)
}

// Options configures a Messenger.
type Options struct {
	// Logger receives warnings about misuse and failed sends. Nil
	// discards them.
	Logger *slog.Logger

	// Loop runs dispatch and callbacks. When nil the messenger creates
	// its own loop, runs it, and stops it on Shutdown. A caller that
	// supplies a Loop is responsible for running it.
	Loop *runloop.Loop
}

// Messenger is the per-engine routing registry.
type Messenger struct {
	engine   Engine
	logger   *slog.Logger
	loop     *runloop.Loop
	ownsLoop bool

	mu         sync.Mutex
	handlers   map[string]*entry
	generation uint64
	unhandled  Handler
	shutdown   bool
}

type entry struct {
	handler    Handler
	generation uint64

	// active is false while the handler this entry replaced is being
	// released; messages arriving meanwhile are treated as unhandled.
	active bool
}

// New returns a messenger for engine and installs itself as the
// engine's receiver.
func New(engine Engine, options Options) *Messenger {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Messenger{
		engine:   engine,
		logger:   logger,
		loop:     options.Loop,
		handlers: make(map[string]*entry),
	}
	if m.loop == nil {
		m.loop = runloop.New(logger)
		m.ownsLoop = true
		go m.loop.Run(context.Background())
	}
	engine.SetReceiver(m)
	return m
}

// Loop returns the loop that runs dispatch and callbacks.
func (m *Messenger) Loop() *runloop.Loop { return m.loop }

// Logger returns the messenger's logger.
func (m *Messenger) Logger() *slog.Logger { return m.logger }

// SetMessageHandler installs handler for channel, or clears the
// channel when handler is nil. The previous handler, if any, is
// released before handler receives any message. After Shutdown a
// non-nil handler is released immediately and the zero Registration
// is returned.
func (m *Messenger) SetMessageHandler(channel string, handler Handler) Registration {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		if handler != nil {
			m.logger.Warn("handler registered after shutdown", "channel", channel)
			releaseHandler(handler)
		}
		return Registration{}
	}

	previous := m.handlers[channel]
	var installed *entry
	var registration Registration
	if handler == nil {
		delete(m.handlers, channel)
	} else {
		m.generation++
		installed = &entry{handler: handler, generation: m.generation, active: previous == nil}
		m.handlers[channel] = installed
		registration = Registration{channel: channel, generation: m.generation}
	}
	m.mu.Unlock()

	if previous != nil {
		releaseHandler(previous.handler)
		if installed != nil {
			m.mu.Lock()
			installed.active = true
			m.mu.Unlock()
		}
	}
	if installed != nil {
		m.notifyRegistered(channel)
	}
	return registration
}

// Unregister clears the channel of registration if registration is
// still the current one, releasing its handler, and reports whether it
// did.
func (m *Messenger) Unregister(registration Registration) bool {
	if !registration.Valid() {
		return false
	}
	m.mu.Lock()
	current := m.handlers[registration.channel]
	if current == nil || current.generation != registration.generation {
		m.mu.Unlock()
		return false
	}
	delete(m.handlers, registration.channel)
	m.mu.Unlock()

	releaseHandler(current.handler)
	return true
}

// Current reports whether registration is still installed.
func (m *Messenger) Current(registration Registration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.handlers[registration.channel]
	return registration.Valid() && current != nil && current.generation == registration.generation
}

// SetUnhandled installs a fallback for messages on channels with no
// handler. A nil fallback restores the default empty response. If
// fallback implements Holder, the messages it holds for a channel are
// delivered to the channel's handler as soon as one is registered.
func (m *Messenger) SetUnhandled(fallback Handler) {
	m.mu.Lock()
	m.unhandled = fallback
	m.mu.Unlock()
}

func (m *Messenger) notifyRegistered(channel string) {
	m.mu.Lock()
	_, ok := m.unhandled.(Holder)
	m.mu.Unlock()
	if ok {
		m.DeliverHeld(channel)
	}
}

// DeliverHeld schedules delivery, on the loop, of the messages the
// Holder fallback keeps for channel to the channel's handler. Nothing
// is delivered while the channel has no active handler.
func (m *Messenger) DeliverHeld(channel string) {
	m.loop.Post(func() { m.flushHeld(channel) })
}

// Send transmits message on channel and waits for the raw reply. A
// nil message is sent as the empty message.
func (m *Messenger) Send(ctx context.Context, channel string, message []byte) ([]byte, error) {
	type result struct {
		response []byte
		err      error
	}
	done := make(chan result, 1)
	m.send(ctx, channel, message, func(response []byte, err error) {
		done <- result{response, err}
	})
	outcome := <-done
	return outcome.response, outcome.err
}

// SendAsync transmits message on channel and calls callback on the
// loop with the raw reply or a transport error. The callback always
// runs, including when ctx is cancelled; if the loop has stopped it
// runs on the completing goroutine instead.
func (m *Messenger) SendAsync(ctx context.Context, channel string, message []byte, callback func(response []byte, err error)) {
	m.send(ctx, channel, message, func(response []byte, err error) {
		if !m.loop.Post(func() { callback(response, err) }) {
			callback(response, err)
		}
	})
}

func (m *Messenger) send(ctx context.Context, channel string, message []byte, complete func([]byte, error)) {
	m.mu.Lock()
	shutdown := m.shutdown
	m.mu.Unlock()
	if shutdown {
		complete(nil, fmt.Errorf("sending on channel %q: %w", channel, ErrShutdown))
		return
	}
	if message == nil {
		message = []byte{}
	}
	m.engine.SendPlatformMessage(ctx, channel, message, func(response []byte, err error) {
		if err != nil {
			complete(nil, fmt.Errorf("sending on channel %q: %w", channel, err))
			return
		}
		if response == nil {
			response = []byte{}
		}
		complete(response, nil)
	})
}

// SendResponse answers the message behind handle. A nil response is
// sent as the empty payload. Responding twice, or with a handle from
// another messenger, is rejected and logged.
func (m *Messenger) SendResponse(handle *ResponseHandle, response []byte) error {
	if handle == nil || handle.messenger != m {
		m.logger.Warn("response handle not issued by this messenger")
		return ErrForeignHandle
	}
	if !handle.responded.CompareAndSwap(false, true) {
		m.logger.Warn("message already responded to", "channel", handle.channel, "id", handle.id)
		return ErrAlreadyResponded
	}
	if response == nil {
		response = []byte{}
	}
	if err := m.engine.RespondPlatformMessage(handle.id, response); err != nil {
		m.logger.Warn("sending response failed", "channel", handle.channel, "id", handle.id, "error", err)
		return fmt.Errorf("responding on channel %q: %w", handle.channel, err)
	}
	return nil
}

// ReceivePlatformMessage implements Receiver. Dispatch happens on the
// loop.
func (m *Messenger) ReceivePlatformMessage(channel string, message []byte, id uint64) {
	handle := &ResponseHandle{messenger: m, id: id, channel: channel}
	if !m.loop.Post(func() { m.dispatch(channel, message, handle) }) {
		m.respondEmpty(handle)
	}
}

// Redeliver routes a message held by a fallback through the handler
// currently registered for channel, on the loop.
func (m *Messenger) Redeliver(channel string, message []byte, handle *ResponseHandle) {
	if !m.loop.Post(func() { m.dispatch(channel, message, handle) }) {
		m.respondEmpty(handle)
	}
}

// dispatch runs on the loop. Messages the fallback still holds for
// channel go first so the handler sees arrival order.
func (m *Messenger) dispatch(channel string, message []byte, handle *ResponseHandle) {
	m.flushHeld(channel)
	m.deliver(channel, message, handle)
}

// flushHeld delivers the Holder's messages for channel once the
// channel has an active handler.
func (m *Messenger) flushHeld(channel string) {
	m.mu.Lock()
	current := m.handlers[channel]
	holder, ok := m.unhandled.(Holder)
	m.mu.Unlock()
	if !ok || current == nil || !current.active {
		return
	}
	for _, held := range holder.TakeHeld(channel) {
		m.deliver(channel, held.Message, held.Handle)
	}
}

func (m *Messenger) deliver(channel string, message []byte, handle *ResponseHandle) {
	m.mu.Lock()
	var handler Handler
	if current := m.handlers[channel]; current != nil && current.active {
		handler = current.handler
	} else if !m.shutdown {
		handler = m.unhandled
	}
	m.mu.Unlock()

	if handler == nil {
		m.respondEmpty(handle)
		return
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			m.logger.Error("message handler panicked",
				"channel", channel,
				"panic", fmt.Sprint(recovered),
			)
			if !handle.Responded() {
				m.respondEmpty(handle)
			}
		}
	}()
	handler.HandleMessage(channel, message, handle)
}

func (m *Messenger) respondEmpty(handle *ResponseHandle) {
	if !handle.responded.CompareAndSwap(false, true) {
		return
	}
	if err := m.engine.RespondPlatformMessage(handle.id, []byte{}); err != nil {
		m.logger.Debug("empty response not delivered", "channel", handle.channel, "error", err)
	}
}

// PlatformChannelClosed implements Receiver: the channel's handler is
// released and cleared on the loop.
func (m *Messenger) PlatformChannelClosed(channel string) {
	closeChannel := func() {
		m.mu.Lock()
		current := m.handlers[channel]
		delete(m.handlers, channel)
		m.mu.Unlock()
		if current != nil {
			m.logger.Debug("channel closed by framework", "channel", channel)
			releaseHandler(current.handler)
		}
	}
	if !m.loop.Post(closeChannel) {
		closeChannel()
	}
}

// Shutdown releases every handler and rejects further sends. Inbound
// messages that still arrive are answered with the empty payload.
// Shutdown is idempotent.
func (m *Messenger) Shutdown() {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	m.shutdown = true
	handlers := m.handlers
	m.handlers = make(map[string]*entry)
	m.unhandled = nil
	m.mu.Unlock()

	channels := make([]string, 0, len(handlers))
	for channel := range handlers {
		channels = append(channels, channel)
	}
	slices.Sort(channels)
	for _, channel := range channels {
		releaseHandler(handlers[channel].handler)
	}
	if m.ownsLoop {
		m.loop.Stop()
	}
}
