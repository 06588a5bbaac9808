// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/embedder/lib/codec"
)

func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var output bytes.Buffer
	err := root(&output, strings.NewReader(stdin)).Execute(context.Background(), args)
	return output.String(), err
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"list", []string{"0c", "02", "03", "01", "00", "00", "00", "07", "01", "61"}, "[1, a]\n"},
		{"list as JSON", []string{"--json", "0c0203010000000701 61"}, "[1,\"a\"]\n"},
		{"typed list", []string{"09 02 00 00 01 00 00 00 02 00 00 00"}, "[1, 2]\n"},
		{"call", []string{"--kind", "call", "07 04 65 63 68 6f 00"}, "echo null\n"},
		{"success envelope", []string{"--kind", "response", "00 01"}, "success true\n"},
		{"error envelope", []string{"--kind", "response", "01 07 03 62 61 64 00 00"}, "error bad\n"},
		{"error envelope with details", []string{"--kind", "response", "01 07 03 62 61 64 07 02 6e 6f 03 05 00 00 00"}, "error bad: no details=5\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			output, err := runCommand(t, "", append([]string{"decode"}, test.args...)...)
			if err != nil {
				t.Fatalf("decode %v: %v", test.args, err)
			}
			if output != test.want {
				t.Errorf("output = %q, want %q", output, test.want)
			}
		})
	}
}

func TestDecodeFromStdin(t *testing.T) {
	output, err := runCommand(t, "03 2a 00 00 00\n", "decode")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if output != "42\n" {
		t.Errorf("output = %q, want %q", output, "42\n")
	}

	// The empty payload is a not-implemented response.
	output, err = runCommand(t, "", "decode", "--kind", "response")
	if err != nil {
		t.Fatalf("decode empty response: %v", err)
	}
	if output != "not implemented\n" {
		t.Errorf("output = %q, want %q", output, "not implemented\n")
	}
}

func TestDecodeFromFile(t *testing.T) {
	directory := t.TempDir()
	binaryPath := filepath.Join(directory, "payload.bin")
	if err := os.WriteFile(binaryPath, []byte{0x07, 0x02, 'h', 'i'}, 0600); err != nil {
		t.Fatal(err)
	}
	hexPath := filepath.Join(directory, "payload.hex")
	if err := os.WriteFile(hexPath, []byte("01\n"), 0600); err != nil {
		t.Fatal(err)
	}

	output, err := runCommand(t, "", "decode", "--raw", binaryPath)
	if err != nil || output != "hi\n" {
		t.Errorf("decode --raw file = %q, %v; want \"hi\\n\"", output, err)
	}
	output, err = runCommand(t, "", "decode", hexPath)
	if err != nil || output != "true\n" {
		t.Errorf("decode hex file = %q, %v; want \"true\\n\"", output, err)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		kind error
	}{
		{"additional data", []string{"01 00"}, codec.ErrAdditionalData},
		{"out of data", []string{"07 05 61"}, codec.ErrOutOfData},
		{"unknown tag", []string{"7f"}, codec.ErrFailed},
		{"bad hex", []string{"zz"}, nil},
		{"unknown kind", []string{"--kind", "envelope", "00"}, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := runCommand(t, "", append([]string{"decode"}, test.args...)...)
			if err == nil {
				t.Fatalf("decode %v succeeded", test.args)
			}
			if test.kind != nil && !errors.Is(err, test.kind) {
				t.Errorf("decode %v error = %v, want %v", test.args, err, test.kind)
			}
		})
	}
}
