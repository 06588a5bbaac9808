// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messenger

import (
	"sync/atomic"
)

// Handler receives the messages sent to one channel. HandleMessage
// runs on the messenger's loop and must answer handle exactly once,
// possibly after returning.
type Handler interface {
	HandleMessage(channel string, message []byte, handle *ResponseHandle)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(channel string, message []byte, handle *ResponseHandle)

// HandleMessage calls f.
func (f HandlerFunc) HandleMessage(channel string, message []byte, handle *ResponseHandle) {
	f(channel, message, handle)
}

// Releaser is implemented by handlers that own resources. Release is
// called once when the handler's registration ends.
type Releaser interface {
	Release()
}

// Holder is implemented by an unhandled-message fallback that keeps
// messages for channels with no handler. Once a channel has a handler
// the messenger takes the channel's held messages and delivers them,
// oldest first, before any later message on that channel.
type Holder interface {
	Handler
	TakeHeld(channel string) []HeldMessage
}

// HeldMessage is one message kept by a Holder, still awaiting its
// response.
type HeldMessage struct {
	Message []byte
	Handle  *ResponseHandle
}

// WithRelease returns a handler that delegates to handler and calls
// release when its registration ends.
func WithRelease(handler Handler, release func()) Handler {
	return &releasingHandler{Handler: handler, release: release}
}

type releasingHandler struct {
	Handler
	release func()
}

func (h *releasingHandler) Release() {
	if h.release != nil {
		h.release()
	}
}

func releaseHandler(handler Handler) {
	if releaser, ok := handler.(Releaser); ok {
		releaser.Release()
	}
}

// ResponseHandle correlates one inbound message with its reply.
type ResponseHandle struct {
	messenger *Messenger
	id        uint64
	channel   string
	responded atomic.Bool
}

// Channel returns the channel the message arrived on.
func (h *ResponseHandle) Channel() string { return h.channel }

// Responded reports whether a response has been sent.
func (h *ResponseHandle) Responded() bool { return h.responded.Load() }

// Registration identifies one installation of a handler. The zero
// Registration is not current for any channel.
type Registration struct {
	channel    string
	generation uint64
}

// Channel returns the registered channel name.
func (r Registration) Channel() string { return r.channel }

// Valid reports whether r came from a successful registration.
func (r Registration) Valid() bool { return r.generation != 0 }
