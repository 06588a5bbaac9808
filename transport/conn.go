// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/bureau-foundation/embedder/lib/messenger"
)

// DefaultCompressionThreshold is the payload size at which
// compression is attempted when Options.CompressionThreshold is zero.
const DefaultCompressionThreshold = 4096

// ErrUnknownMessage is returned by RespondPlatformMessage for an id
// that is not awaiting a response.
var ErrUnknownMessage = errors.New("transport: no inbound message with that id awaits a response")

// Options configures a Conn.
type Options struct {
	// Logger receives connection lifecycle and protocol errors. Nil
	// discards them.
	Logger *slog.Logger

	// Compression is applied to outbound payloads of at least
	// CompressionThreshold bytes. Inbound frames name their own
	// compression, so peers need not agree.
	Compression Compression

	// CompressionThreshold defaults to DefaultCompressionThreshold.
	CompressionThreshold int

	// MaxFrameSize bounds frame bodies and decompressed payloads in
	// both directions. Defaults to DefaultMaxFrameSize.
	MaxFrameSize int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.CompressionThreshold <= 0 {
		o.CompressionThreshold = DefaultCompressionThreshold
	}
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = DefaultMaxFrameSize
	}
	return o
}

// Conn is a messenger.Engine over a stream connection.
type Conn struct {
	conn    net.Conn
	options Options
	logger  *slog.Logger

	// writeMu serializes frames so that sends hit the wire in call
	// order.
	writeMu sync.Mutex

	// deliverMu keeps inbound frames in arrival order while the early
	// queue drains into a newly set receiver.
	deliverMu sync.Mutex

	mu       sync.Mutex
	receiver messenger.Receiver
	// early holds inbound frames that arrived before SetReceiver.
	early   []inboundFrame
	pending map[uint64]*pendingSend
	// inbound holds ids of received messages not yet answered.
	inbound map[uint64]struct{}
	nextID  uint64
	closed  bool
	err     error

	done chan struct{}
}

type pendingSend struct {
	channel  string
	complete func([]byte, error)
	stop     func() bool
}

type inboundFrame struct {
	kind frameKind
	body frameBody
}

// NewConn starts serving conn. The Conn owns conn and closes it when
// the Conn closes.
func NewConn(conn net.Conn, options Options) *Conn {
	options = options.withDefaults()
	c := &Conn{
		conn:    conn,
		options: options,
		logger:  options.Logger,
		pending: make(map[uint64]*pendingSend),
		inbound: make(map[uint64]struct{}),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// SetReceiver implements messenger.Engine. Messages that arrived
// before the first receiver was set are delivered to it now, in
// order.
func (c *Conn) SetReceiver(receiver messenger.Receiver) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	c.mu.Lock()
	c.receiver = receiver
	early := c.early
	c.early = nil
	c.mu.Unlock()
	for _, frame := range early {
		c.deliver(receiver, frame.kind, frame.body)
	}
}

// SendPlatformMessage implements messenger.Engine.
func (c *Conn) SendPlatformMessage(ctx context.Context, channel string, message []byte, complete func([]byte, error)) {
	if err := ctx.Err(); err != nil {
		complete(nil, err)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		complete(nil, messenger.ErrEngineNotRunning)
		return
	}
	c.nextID++
	id := c.nextID
	pending := &pendingSend{channel: channel, complete: complete}
	// AfterFunc runs its callback on a new goroutine, so arming it
	// under mu is safe.
	pending.stop = context.AfterFunc(ctx, func() {
		if c.takePending(id) != nil {
			complete(nil, fmt.Errorf("waiting for reply on %q: %w", channel, context.Cause(ctx)))
		}
	})
	c.pending[id] = pending
	c.mu.Unlock()

	body, err := c.payloadBody(message)
	if err == nil {
		body.ID = id
		body.Channel = channel
		err = c.write(kindMessage, body)
	}
	if err != nil {
		if taken := c.takePending(id); taken != nil {
			taken.stop()
			complete(nil, err)
		}
	}
}

// RespondPlatformMessage implements messenger.Engine.
func (c *Conn) RespondPlatformMessage(id uint64, response []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return messenger.ErrEngineNotRunning
	}
	if _, ok := c.inbound[id]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("responding to message %d: %w", id, ErrUnknownMessage)
	}
	delete(c.inbound, id)
	c.mu.Unlock()

	body, err := c.payloadBody(response)
	if err != nil {
		c.fail(id, err)
		return err
	}
	body.ID = id
	if err := c.write(kindResponse, body); err != nil {
		// An oversized response still has to complete the peer's send.
		c.fail(id, err)
		return err
	}
	return nil
}

// CloseChannel tells the peer that channel was abandoned; its
// messenger releases the channel's handler.
func (c *Conn) CloseChannel(channel string) error {
	return c.write(kindClosed, frameBody{Channel: channel})
}

// Close closes the connection. Sends waiting for a reply complete with
// messenger.ErrEngineNotRunning.
func (c *Conn) Close() error {
	c.shutdown(net.ErrClosed)
	return nil
}

// Done is closed when the connection has shut down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err returns the reason the connection shut down, or nil while it is
// open.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Conn) payloadBody(payload []byte) (frameBody, error) {
	if len(payload) > c.options.MaxFrameSize {
		return frameBody{}, fmt.Errorf("payload of %d bytes exceeds maximum %d", len(payload), c.options.MaxFrameSize)
	}
	if c.options.Compression == CompressionNone || len(payload) < c.options.CompressionThreshold {
		return frameBody{Payload: payload}, nil
	}
	compressed, err := compress(payload, c.options.Compression)
	if errors.Is(err, errIncompressible) {
		return frameBody{Payload: payload}, nil
	}
	if err != nil {
		return frameBody{}, err
	}
	return frameBody{Payload: compressed, Compression: c.options.Compression, Size: len(payload)}, nil
}

func (c *Conn) write(kind frameKind, body frameBody) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return messenger.ErrEngineNotRunning
	default:
	}
	if err := writeFrame(c.conn, kind, body, c.options.MaxFrameSize); err != nil {
		return err
	}
	return nil
}

// fail sends a failure frame for inbound message id.
func (c *Conn) fail(id uint64, reason error) {
	if err := c.write(kindFailure, frameBody{ID: id, Error: reason.Error()}); err != nil {
		c.logger.Warn("sending failure frame failed", "id", id, "error", err)
	}
}

func (c *Conn) takePending(id uint64) *pendingSend {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := c.pending[id]
	delete(c.pending, id)
	return pending
}

func (c *Conn) readLoop() {
	for {
		kind, body, err := readFrame(c.conn, c.options.MaxFrameSize)
		if err != nil {
			c.shutdown(err)
			return
		}

		switch kind {
		case kindResponse, kindFailure:
			c.complete(kind, body)
		case kindMessage, kindClosed:
			c.deliverMu.Lock()
			c.mu.Lock()
			receiver := c.receiver
			if kind == kindMessage {
				c.inbound[body.ID] = struct{}{}
			}
			if receiver == nil {
				c.early = append(c.early, inboundFrame{kind: kind, body: body})
			}
			c.mu.Unlock()
			if receiver != nil {
				c.deliver(receiver, kind, body)
			}
			c.deliverMu.Unlock()
		default:
			c.logger.Warn("ignoring frame of unknown kind", "kind", kind)
		}
	}
}

func (c *Conn) deliver(receiver messenger.Receiver, kind frameKind, body frameBody) {
	if kind == kindClosed {
		receiver.PlatformChannelClosed(body.Channel)
		return
	}
	payload, err := decompress(body.Payload, body.Compression, c.payloadSize(body), c.options.MaxFrameSize)
	if err != nil {
		c.logger.Warn("dropping undecodable message", "channel", body.Channel, "id", body.ID, "error", err)
		c.mu.Lock()
		delete(c.inbound, body.ID)
		c.mu.Unlock()
		c.fail(body.ID, err)
		return
	}
	if payload == nil {
		payload = []byte{}
	}
	receiver.ReceivePlatformMessage(body.Channel, payload, body.ID)
}

func (c *Conn) payloadSize(body frameBody) int {
	if body.Compression == CompressionNone {
		return len(body.Payload)
	}
	return body.Size
}

func (c *Conn) complete(kind frameKind, body frameBody) {
	pending := c.takePending(body.ID)
	if pending == nil {
		// Cancelled sends leave their reply unclaimed.
		c.logger.Debug("reply for unknown send", "kind", kind, "id", body.ID)
		return
	}
	pending.stop()

	if kind == kindFailure {
		pending.complete(nil, fmt.Errorf("peer failed message on %q: %s", pending.channel, body.Error))
		return
	}
	payload, err := decompress(body.Payload, body.Compression, c.payloadSize(body), c.options.MaxFrameSize)
	if err != nil {
		pending.complete(nil, fmt.Errorf("reply on %q: %w", pending.channel, err))
		return
	}
	if payload == nil {
		payload = []byte{}
	}
	pending.complete(payload, nil)
}

// shutdown closes the connection once and fails every waiting send.
func (c *Conn) shutdown(reason error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.err = reason
	pending := c.pending
	c.pending = make(map[uint64]*pendingSend)
	c.early = nil
	c.mu.Unlock()

	close(c.done)
	c.conn.Close()
	if !errors.Is(reason, net.ErrClosed) {
		c.logger.Debug("transport connection closed", "error", reason)
	}
	for _, waiting := range pending {
		waiting.stop()
		waiting.complete(nil, fmt.Errorf("waiting for reply on %q: %w", waiting.channel, messenger.ErrEngineNotRunning))
	}
}
