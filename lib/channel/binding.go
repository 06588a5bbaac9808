// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"sync"

	"github.com/bureau-foundation/embedder/lib/messenger"
)

// binding is one channel object's claim on a messenger channel name.
type binding struct {
	messenger *messenger.Messenger
	name      string

	mu           sync.Mutex
	current      *boundHandler
	registration messenger.Registration
	closed       bool
}

// boundHandler is the messenger-facing handler for one installation.
type boundHandler struct {
	binding  *binding
	dispatch func(message []byte, handle *messenger.ResponseHandle)
	release  func()

	// superseded is set (under binding.mu) when the owning channel
	// itself replaces or clears this installation, so its release does
	// not mark the channel closed.
	superseded bool
}

func (h *boundHandler) HandleMessage(_ string, message []byte, handle *messenger.ResponseHandle) {
	h.dispatch(message, handle)
}

// Release runs when the messenger drops this installation. Unless the
// owning channel did that itself, the channel is now closed.
func (h *boundHandler) Release() {
	b := h.binding
	b.mu.Lock()
	if !h.superseded {
		b.closed = true
	}
	if b.current == h {
		b.current = nil
		b.registration = messenger.Registration{}
	}
	b.mu.Unlock()
	if h.release != nil {
		h.release()
	}
}

// install registers dispatch for the channel name, or clears this
// channel's registration when dispatch is nil. release is run when the
// installation ends. It reports false, running release immediately,
// when the binding is closed.
func (b *binding) install(dispatch func([]byte, *messenger.ResponseHandle), release func()) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		if dispatch != nil && release != nil {
			release()
		}
		return false
	}
	if b.current != nil {
		b.current.superseded = true
	}

	if dispatch == nil {
		registration := b.registration
		b.current = nil
		b.registration = messenger.Registration{}
		b.mu.Unlock()
		b.messenger.Unregister(registration)
		return true
	}

	handler := &boundHandler{binding: b, dispatch: dispatch, release: release}
	b.current = handler
	b.mu.Unlock()

	registration := b.messenger.SetMessageHandler(b.name, handler)

	b.mu.Lock()
	if b.current == handler {
		b.registration = registration
	}
	b.mu.Unlock()
	return true
}

// close marks the binding closed and clears its registration if it is
// still the current one for the name.
func (b *binding) close() {
	b.mu.Lock()
	b.closed = true
	registration := b.registration
	if b.current != nil {
		b.current.superseded = true
	}
	b.current = nil
	b.registration = messenger.Registration{}
	b.mu.Unlock()
	b.messenger.Unregister(registration)
}

func (b *binding) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func releaserFunc(handler any) func() {
	releaser, ok := handler.(messenger.Releaser)
	if !ok {
		return nil
	}
	return releaser.Release
}
