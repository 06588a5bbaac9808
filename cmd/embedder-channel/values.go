// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/embedder/cmd/embedder-channel/cli"
	"github.com/bureau-foundation/embedder/lib/codec"
	"github.com/bureau-foundation/embedder/lib/value"
)

var jsonMessages codec.JSONMessageCodec

// parseValue parses JSON text into a Value. Empty text is null.
func parseValue(text string) (*value.Value, error) {
	if text == "" {
		return value.Null(), nil
	}
	parsed, err := jsonMessages.DecodeMessage([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("parsing JSON value: %w", err)
	}
	return parsed, nil
}

// readValue returns the Value given inline as JSON text or in a file.
// The file may carry comments and trailing commas; "-" reads stdin.
// Giving both is an error.
func readValue(inline, file string, stdin io.Reader) (*value.Value, error) {
	if file == "" {
		return parseValue(inline)
	}
	if inline != "" {
		return nil, errors.New("give the value inline or as a file, not both")
	}
	var data []byte
	var err error
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	parsed, err := jsonMessages.DecodeMessage(jsonc.ToJSON(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}
	return parsed, nil
}

// formatValue renders v as JSON when it has a JSON form and in the
// debug notation otherwise (non-string map keys, non-finite floats,
// custom values).
func formatValue(v *value.Value) string {
	if data, err := jsonMessages.EncodeMessage(v); err == nil {
		return string(data)
	}
	return v.String()
}

func methodCodec(name string) (codec.MethodCodec, error) {
	switch name {
	case "standard":
		return codec.NewStandardMethodCodec(nil), nil
	case "json":
		return codec.JSONMethodCodec{}, nil
	}
	return nil, fmt.Errorf("unknown method codec %q (want standard or json)", name)
}

func messageCodec(name string) (codec.MessageCodec, error) {
	switch name {
	case "standard":
		return codec.NewStandardMessageCodec(nil), nil
	case "json":
		return codec.JSONMessageCodec{}, nil
	case "string":
		return codec.StringCodec{}, nil
	case "cbor":
		return codec.CBORMessageCodec{}, nil
	}
	return nil, fmt.Errorf("unknown message codec %q (want standard, json, string or cbor)", name)
}

// describeResponse renders a decoded response on one line.
func describeResponse(response codec.Response) string {
	switch typed := response.(type) {
	case *codec.SuccessResponse:
		return formatValue(typed.Result)
	case *codec.ErrorResponse:
		text := "error " + typed.Code
		if typed.Message != "" {
			text += ": " + typed.Message
		}
		if typed.Details != nil && typed.Details.Type() != value.TypeNull {
			text += " details=" + formatValue(typed.Details)
		}
		return text
	case *codec.NotImplementedResponse:
		return "not implemented"
	}
	return fmt.Sprintf("unknown response %T", response)
}

// reportResponse prints response and maps it to the command's exit
// status.
func reportResponse(stdout io.Writer, response codec.Response) error {
	fmt.Fprintln(stdout, describeResponse(response))
	switch response.(type) {
	case *codec.ErrorResponse:
		return &cli.ExitError{Code: cli.ExitRemoteError}
	case *codec.NotImplementedResponse:
		return &cli.ExitError{Code: cli.ExitNotImplemented}
	}
	return nil
}
