// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrPeerRejected is returned when a Unix socket peer runs as a
// different user than this process.
var ErrPeerRejected = errors.New("transport: peer credentials rejected")

// Address is a parsed endpoint: a network ("unix" or "tcp") and the
// network-specific address.
type Address struct {
	Network string
	Address string
}

func (a Address) String() string {
	return a.Network + "://" + a.Address
}

// ParseAddress parses "unix:///run/embedder.sock", "tcp://host:port",
// or a bare filesystem path, which is treated as a Unix socket.
func ParseAddress(text string) (Address, error) {
	if text == "" {
		return Address{}, errors.New("empty transport address")
	}
	network, rest, found := strings.Cut(text, "://")
	if !found {
		return Address{Network: "unix", Address: text}, nil
	}
	switch network {
	case "unix", "tcp":
	default:
		return Address{}, fmt.Errorf("unsupported transport network %q in %q", network, text)
	}
	if rest == "" {
		return Address{}, fmt.Errorf("transport address %q has no %s address", text, network)
	}
	return Address{Network: network, Address: rest}, nil
}

// Listener accepts peer connections and wraps each in a Conn.
type Listener struct {
	listener net.Listener
	address  Address
	options  Options
	logger   *slog.Logger

	// activeConnections tracks handlers started by Serve so it returns
	// only after all of them complete.
	activeConnections sync.WaitGroup
}

// Listen opens a listener on address. For Unix sockets any stale
// socket file is removed first and the new socket is made accessible
// only to the current user.
func Listen(address Address, options Options) (*Listener, error) {
	options = options.withDefaults()
	if address.Network == "unix" {
		if err := os.Remove(address.Address); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing stale socket %s: %w", address.Address, err)
		}
	}
	listener, err := net.Listen(address.Network, address.Address)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", address, err)
	}
	if address.Network == "unix" {
		if err := os.Chmod(address.Address, 0o600); err != nil {
			listener.Close()
			return nil, fmt.Errorf("restricting socket %s: %w", address.Address, err)
		}
	} else {
		address.Address = listener.Addr().String()
	}
	return &Listener{
		listener: listener,
		address:  address,
		options:  options,
		logger:   options.Logger,
	}, nil
}

// Address returns the listening address. For TCP the port is the one
// actually bound.
func (l *Listener) Address() Address { return l.address }

// Accept waits for the next peer and returns its Conn. Unix socket
// peers running as another user are rejected with ErrPeerRejected.
func (l *Listener) Accept() (*Conn, error) {
	conn, err := l.listener.Accept()
	if err != nil {
		return nil, err
	}
	if l.address.Network == "unix" {
		if err := verifyPeer(conn); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return NewConn(conn, l.options), nil
}

// Serve accepts peers and calls handle for each on its own goroutine.
// It blocks until ctx is cancelled, then closes the listener, waits for
// active handlers and returns nil. The handler's Conn is closed when
// handle returns.
func (l *Listener) Serve(ctx context.Context, handle func(context.Context, *Conn)) error {
	defer l.Close()

	// Unblock Accept when the context is cancelled.
	stop := context.AfterFunc(ctx, func() { l.listener.Close() })
	defer stop()

	l.logger.Info("transport listening", "address", l.address.String())

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			if errors.Is(err, ErrPeerRejected) {
				l.logger.Warn("rejected peer", "error", err)
				continue
			}
			l.logger.Error("accept failed", "error", err)
			continue
		}

		l.activeConnections.Add(1)
		go func() {
			defer l.activeConnections.Done()
			defer conn.Close()
			handle(ctx, conn)
		}()
	}

	l.activeConnections.Wait()
	return nil
}

// Close stops accepting peers and removes a Unix socket file.
func (l *Listener) Close() error {
	err := l.listener.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	if l.address.Network == "unix" {
		os.Remove(l.address.Address)
	}
	return err
}

// Dialer connects to a Listener.
type Dialer struct {
	// Timeout bounds connection establishment. Zero means only the
	// context deadline applies.
	Timeout time.Duration

	Options Options
}

// Dial connects to address and returns the Conn.
func (d *Dialer) Dial(ctx context.Context, address Address) (*Conn, error) {
	conn, err := (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, address.Network, address.Address)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", address, err)
	}
	return NewConn(conn, d.Options), nil
}

// Pipe returns two Conns joined by an in-memory full-duplex pipe.
func Pipe(options Options) (*Conn, *Conn) {
	left, right := net.Pipe()
	return NewConn(left, options), NewConn(right, options)
}
