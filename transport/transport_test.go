// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bureau-foundation/embedder/lib/testutil"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		text    string
		want    Address
		wantErr bool
	}{
		{"/run/embedder.sock", Address{"unix", "/run/embedder.sock"}, false},
		{"unix:///run/embedder.sock", Address{"unix", "/run/embedder.sock"}, false},
		{"tcp://127.0.0.1:7000", Address{"tcp", "127.0.0.1:7000"}, false},
		{"", Address{}, true},
		{"udp://host:1", Address{}, true},
		{"tcp://", Address{}, true},
	}
	for _, test := range tests {
		got, err := ParseAddress(test.text)
		if (err != nil) != test.wantErr || got != test.want {
			t.Errorf("ParseAddress(%q) = %+v, %v", test.text, got, err)
		}
	}
}

// echoReceiver answers every message with its own payload.
type echoReceiver struct {
	conn *Conn
}

func (e *echoReceiver) ReceivePlatformMessage(_ string, message []byte, id uint64) {
	e.conn.RespondPlatformMessage(id, message)
}

func (e *echoReceiver) PlatformChannelClosed(string) {}

func serveEcho(t *testing.T, listener *Listener) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- listener.Serve(ctx, func(ctx context.Context, conn *Conn) {
			conn.SetReceiver(&echoReceiver{conn: conn})
			select {
			case <-ctx.Done():
			case <-conn.Done():
			}
		})
	}()
	return cancel, served
}

func TestListenerServesPeers(t *testing.T) {
	tests := []struct {
		name    string
		address func(t *testing.T) Address
	}{
		{"unix", func(t *testing.T) Address {
			return Address{Network: "unix", Address: testutil.SocketPath(t, "channel.sock")}
		}},
		{"tcp", func(t *testing.T) Address {
			return Address{Network: "tcp", Address: "127.0.0.1:0"}
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			listener, err := Listen(test.address(t), Options{})
			if err != nil {
				t.Fatalf("Listen: %v", err)
			}
			cancel, served := serveEcho(t, listener)

			dialer := &Dialer{Timeout: 5 * time.Second}
			conn, err := dialer.Dial(context.Background(), listener.Address())
			if err != nil {
				cancel()
				t.Fatalf("Dial: %v", err)
			}
			conn.SetReceiver(newRecorder())

			result := testutil.RequireReceive(t, send(context.Background(), conn, "test/echo", []byte("hello")), 5*time.Second, "echo")
			if result.err != nil || string(result.payload) != "hello" {
				t.Errorf("echo = %q, %v", result.payload, result.err)
			}

			cancel()
			if err := testutil.RequireReceive(t, served, 5*time.Second, "Serve return"); err != nil {
				t.Errorf("Serve: %v", err)
			}
			testutil.RequireClosed(t, conn.Done(), 5*time.Second, "client closed after server shutdown")
		})
	}
}

func TestListenReplacesStaleSocket(t *testing.T) {
	path := testutil.SocketPath(t, "stale.sock")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("creating stale file: %v", err)
	}
	listener, err := Listen(Address{Network: "unix", Address: path}, Options{})
	if err != nil {
		t.Fatalf("Listen over stale socket: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat socket: %v", err)
	}
	if info.Mode()&os.ModeSocket == 0 || info.Mode().Perm() != 0o600 {
		t.Errorf("socket mode = %v", info.Mode())
	}
	listener.Close()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Close left the socket file: %v", err)
	}
}
