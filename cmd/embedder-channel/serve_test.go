// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/embedder/cmd/embedder-channel/cli"
	"github.com/bureau-foundation/embedder/lib/config"
	"github.com/bureau-foundation/embedder/lib/testutil"
)

// stubPeer is a running "serve" command.
type stubPeer struct {
	socket string
	config string
}

func startStubPeer(t *testing.T, extra ...string) *stubPeer {
	t.Helper()
	peer := &stubPeer{
		socket: testutil.SocketPath(t, "peer.sock"),
		config: filepath.Join(t.TempDir(), "embedder.yaml"),
	}
	if err := os.WriteFile(peer.config, []byte("logging:\n  level: error\n  format: text\n"), 0600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		args := append([]string{"serve", "--config", peer.config, "--socket", peer.socket}, extra...)
		done <- root(io.Discard, nil).Execute(ctx, args)
	}()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, 5*time.Second, "serve did not exit"); err != nil {
			t.Errorf("serve: %v", err)
		}
	})

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(peer.socket); err == nil {
			return peer
		}
		select {
		case err := <-done:
			t.Fatalf("serve exited early: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("serve socket never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// run executes a client command against the peer.
func (p *stubPeer) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	args = append(args, "--config", p.config, "--socket", p.socket, "--timeout", "5s")
	return runCommand(t, "", args...)
}

func TestServeEcho(t *testing.T) {
	peer := startStubPeer(t)

	output, err := peer.run(t, "invoke", "--channel", EchoChannel, "--method", "echo",
		"--args", `{"b": [1, 2.5], "a": "x"}`)
	if err != nil {
		t.Fatalf("invoke echo: %v", err)
	}
	if want := `{"b":[1,2.5],"a":"x"}` + "\n"; output != want {
		t.Errorf("output = %q, want %q", output, want)
	}
}

func TestServeMethodOutcomes(t *testing.T) {
	peer := startStubPeer(t)

	tests := []struct {
		name     string
		method   string
		output   string
		exitCode int
	}{
		{"error response", "fail", "error failed: failure requested details=[1]\n", cli.ExitRemoteError},
		{"not implemented", "shrug", "not implemented\n", cli.ExitNotImplemented},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			output, err := peer.run(t, "invoke", "--channel", EchoChannel, "--method", test.method, "--args", "[1]")
			if output != test.output {
				t.Errorf("output = %q, want %q", output, test.output)
			}
			if got := exitCode(err); got != test.exitCode {
				t.Errorf("exit code = %d, want %d (err %v)", got, test.exitCode, err)
			}
		})
	}
}

func TestServeInvokeArgsFile(t *testing.T) {
	peer := startStubPeer(t)
	path := filepath.Join(t.TempDir(), "args.jsonc")
	if err := os.WriteFile(path, []byte("[\"from file\", /* note */ 3,]\n"), 0600); err != nil {
		t.Fatal(err)
	}

	output, err := peer.run(t, "invoke", "--channel", EchoChannel, "--method", "echo", "--args-file", path)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if want := "[\"from file\",3]\n"; output != want {
		t.Errorf("output = %q, want %q", output, want)
	}
}

func TestServeCounterStream(t *testing.T) {
	peer := startStubPeer(t, "--events", "3")

	output, err := peer.run(t, "listen", "--channel", CounterChannel)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if output != "0\n1\n2\n" {
		t.Errorf("full stream = %q, want %q", output, "0\n1\n2\n")
	}

	output, err = peer.run(t, "listen", "--channel", CounterChannel, "--args", "10", "--count", "2")
	if err != nil {
		t.Fatalf("listen --count: %v", err)
	}
	if output != "10\n11\n" {
		t.Errorf("counted stream = %q, want %q", output, "10\n11\n")
	}
}

func TestServeCounterRejectsBadArgs(t *testing.T) {
	peer := startStubPeer(t)

	output, err := peer.run(t, "listen", "--channel", CounterChannel, "--args", `"ten"`)
	if got := exitCode(err); got != cli.ExitRemoteError {
		t.Fatalf("exit code = %d, want %d (err %v)", got, cli.ExitRemoteError, err)
	}
	if want := "error bad_args: listen argument must be an integer or null\n"; output != want {
		t.Errorf("output = %q, want %q", output, want)
	}
}

func TestServeBasicMessage(t *testing.T) {
	peer := startStubPeer(t)

	output, err := peer.run(t, "send", "--channel", MessageChannel, "--message", `{"k": [true]}`)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if want := `{"k":[true]}` + "\n"; output != want {
		t.Errorf("output = %q, want %q", output, want)
	}
}

func TestServeJSONCodec(t *testing.T) {
	peer := startStubPeer(t, "--codec", "json")

	output, err := peer.run(t, "send", "--channel", MessageChannel, "--codec", "json", "--message", `[1, "two"]`)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if want := `[1,"two"]` + "\n"; output != want {
		t.Errorf("output = %q, want %q", output, want)
	}

	output, err = peer.run(t, "invoke", "--channel", EchoChannel, "--method", "echo", "--codec", "json", "--args", `{"n": null}`)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if want := `{"n":null}` + "\n"; output != want {
		t.Errorf("output = %q, want %q", output, want)
	}
}

func TestClientRequiresFlags(t *testing.T) {
	tests := [][]string{
		{"invoke", "--method", "echo"},
		{"invoke", "--channel", EchoChannel},
		{"listen"},
		{"send"},
		{"listen", "--channel", CounterChannel, "--count", "-1"},
	}
	for _, args := range tests {
		if _, err := runCommand(t, "", args...); err == nil {
			t.Errorf("%v succeeded without required flags", args)
		}
	}
}

func TestDialFailure(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	socket := filepath.Join(testutil.SocketDir(t), "absent.sock")
	_, err := runCommand(t, "", "invoke", "--socket", socket, "--channel", EchoChannel, "--method", "echo")
	if err == nil {
		t.Fatal("invoke against a missing socket succeeded")
	}
	if exitCode(err) != 1 {
		t.Errorf("exit code = %d, want 1", exitCode(err))
	}
}

func TestVersionCommand(t *testing.T) {
	output, err := runCommand(t, "", "--version")
	if err != nil || output == "" {
		t.Errorf("--version = %q, %v", output, err)
	}
	output, err = runCommand(t, "", "version", "--json")
	if err != nil {
		t.Fatalf("version --json: %v", err)
	}
	if output == "" || output[0] != '{' {
		t.Errorf("version --json = %q, want a JSON object", output)
	}
}
