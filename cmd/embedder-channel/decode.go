// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/embedder/cmd/embedder-channel/cli"
	"github.com/bureau-foundation/embedder/lib/codec"
	"github.com/bureau-foundation/embedder/lib/value"
)

func decodeCommand(stdout io.Writer, stdin io.Reader) *cli.Command {
	var (
		kind       string
		raw        bool
		outputJSON bool
	)
	return &cli.Command{
		Name:    "decode",
		Summary: "Decode a standard codec payload",
		Description: `Decode a payload in the standard binary format and print it.

The payload is read from the positional arguments as hex (whitespace
between digits is allowed), from a file named by the last argument, or
from stdin. File and stdin input is hex unless --raw is given.

--kind selects what the payload holds: a single value, a method call
(name and arguments), or a method response envelope. Values print in
the debug notation, which keeps typed lists and non-string map keys
visible; --json prints JSON instead where the value has a JSON form.`,
		Usage: "embedder-channel decode [--kind value|call|response] [--raw] [HEX... | FILE]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("decode", pflag.ContinueOnError)
			flagSet.StringVar(&kind, "kind", "value", "payload kind: value, call or response")
			flagSet.BoolVar(&raw, "raw", false, "file or stdin input is binary, not hex")
			flagSet.BoolVar(&outputJSON, "json", false, "print values as JSON")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Decode the list [1, \"a\"]",
				Command:     "embedder-channel decode 0c 02 03 01 00 00 00 07 01 61",
			},
			{
				Description: "Decode an error envelope",
				Command:     "embedder-channel decode --kind response 01 07 03 62 61 64 00 00",
			},
		},
		Run: func(ctx context.Context, args []string) error {
			data, err := readPayload(args, stdin, raw)
			if err != nil {
				return err
			}
			text, err := decodePayload(data, kind, outputJSON)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, text)
			return nil
		},
	}
}

// readPayload resolves the payload from a file named by the last
// argument, the arguments as hex, or stdin.
func readPayload(args []string, stdin io.Reader, raw bool) ([]byte, error) {
	if length := len(args); length == 1 {
		if info, err := os.Stat(args[0]); err == nil && !info.IsDir() {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", args[0], err)
			}
			if raw {
				return data, nil
			}
			return decodeHex(data)
		}
	}
	if len(args) > 0 {
		return decodeHex([]byte(strings.Join(args, " ")))
	}
	if stdin == nil {
		return nil, errors.New("no payload given")
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	if raw {
		return data, nil
	}
	return decodeHex(data)
}

// decodeHex strips whitespace and decodes hex digits. Empty input is
// the empty payload, which is meaningful for responses.
func decodeHex(data []byte) ([]byte, error) {
	cleaned := bytes.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, data)
	decoded := make([]byte, hex.DecodedLen(len(cleaned)))
	count, err := hex.Decode(decoded, cleaned)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return decoded[:count], nil
}

func decodePayload(data []byte, kind string, outputJSON bool) (string, error) {
	methods := codec.NewStandardMethodCodec(nil)
	switch kind {
	case "value":
		decoded, err := methods.MessageCodec().DecodeMessage(data)
		if err != nil {
			return "", err
		}
		defer decoded.Unref()
		if outputJSON {
			return formatValue(decoded), nil
		}
		return decoded.String(), nil
	case "call":
		name, args, err := methods.DecodeMethodCall(data)
		if err != nil {
			return "", err
		}
		defer args.Unref()
		if outputJSON {
			return name + " " + formatValue(args), nil
		}
		return name + " " + args.String(), nil
	case "response":
		response, err := methods.DecodeResponse(data)
		if err != nil {
			return "", err
		}
		if !outputJSON {
			return describeResponseDebug(response), nil
		}
		if success, ok := response.(*codec.SuccessResponse); ok {
			return "success " + formatValue(success.Result), nil
		}
		return describeResponse(response), nil
	}
	return "", fmt.Errorf("unknown payload kind %q (want value, call or response)", kind)
}

// describeResponseDebug is describeResponse with values in the debug
// notation.
func describeResponseDebug(response codec.Response) string {
	switch typed := response.(type) {
	case *codec.SuccessResponse:
		return "success " + typed.Result.String()
	case *codec.ErrorResponse:
		text := "error " + typed.Code
		if typed.Message != "" {
			text += ": " + typed.Message
		}
		if typed.Details != nil && typed.Details.Type() != value.TypeNull {
			text += " details=" + typed.Details.String()
		}
		return text
	}
	return describeResponse(response)
}
