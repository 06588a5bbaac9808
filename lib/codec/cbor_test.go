// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/bureau-foundation/embedder/lib/value"
)

// sampleFrame is shaped like a transport frame: a cbor-tagged struct
// with an omitempty field and a byte string payload.
type sampleFrame struct {
	Kind    string `cbor:"kind"`
	Channel string `cbor:"channel,omitempty"`
	ID      uint64 `cbor:"id"`
	Payload []byte `cbor:"payload,omitempty"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleFrame{
		Kind:    "message",
		Channel: "flutter/platform",
		ID:      42,
		Payload: []byte{0x07, 0x05, 'h', 'e', 'l', 'l', 'o', 0x00},
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleFrame
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Kind != original.Kind || decoded.Channel != original.Channel ||
		decoded.ID != original.ID || !bytes.Equal(decoded.Payload, original.Payload) {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	frame := sampleFrame{Kind: "response", ID: 7}

	first, err := Marshal(frame)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	second, err := Marshal(frame)
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestEncoderDecoderStreamRoundtrip(t *testing.T) {
	frames := []sampleFrame{
		{Kind: "message", Channel: "a", ID: 1},
		{Kind: "response", ID: 1, Payload: []byte{0}},
		{Kind: "closed", Channel: "b"},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, frame := range frames {
		if err := encoder.Encode(frame); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range frames {
		var got sampleFrame
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode frame %d: %v", i, err)
		}
		if got.Kind != want.Kind || got.Channel != want.Channel || got.ID != want.ID {
			t.Errorf("frame %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestOmitemptyRespected(t *testing.T) {
	withChannel, err := Marshal(sampleFrame{Kind: "message", Channel: "x"})
	if err != nil {
		t.Fatal(err)
	}
	withoutChannel, err := Marshal(sampleFrame{Kind: "message"})
	if err != nil {
		t.Fatal(err)
	}
	if len(withoutChannel) >= len(withChannel) {
		t.Errorf("omitempty not effective: without=%d bytes, with=%d bytes",
			len(withoutChannel), len(withChannel))
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var frame sampleFrame
	if err := Unmarshal([]byte{0xFF, 0xFE, 0xFD}, &frame); err == nil {
		t.Error("Unmarshal should reject invalid CBOR")
	}
}

func TestDiagnose(t *testing.T) {
	data, err := Marshal(map[string]any{"kind": "closed"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	notation, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(notation, `"kind"`) || !strings.Contains(notation, `"closed"`) {
		t.Errorf("notation %q missing expected strings", notation)
	}
}

func TestCBORMessageCodecRoundTrip(t *testing.T) {
	nested := value.Map()
	nested.SetStringTake("name", value.String("widget"))
	nested.SetStringTake("count", value.Int(-3))
	nested.SetTake(value.Int(7), value.Bool(true))

	tests := []struct {
		name  string
		value *value.Value
	}{
		{"null", value.Null()},
		{"true", value.Bool(true)},
		{"large int", value.Int(1 << 40)},
		{"negative int", value.Int(-9)},
		{"float", value.Float(2.5)},
		{"string", value.String("hello")},
		{"bytes", value.Uint8List([]byte{1, 2, 3})},
		{"int32 list", value.Int32List([]int32{-1, 2, 1 << 30})},
		{"int64 list", value.Int64List([]int64{-1 << 40})},
		{"float32 list", value.Float32List([]float32{0.5, -2})},
		{"float64 list", value.Float64List([]float64{3.25})},
		{"list", value.List(value.Int(1), value.String("two"), value.Null())},
		{"map", nested},
	}
	codec := CBORMessageCodec{}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			data, err := codec.EncodeMessage(test.value)
			if err != nil {
				t.Fatalf("EncodeMessage: %v", err)
			}
			decoded, err := codec.DecodeMessage(data)
			if err != nil {
				t.Fatalf("DecodeMessage(%x): %v", data, err)
			}
			if !value.Equal(decoded, test.value) {
				t.Errorf("round trip = %v, want %v", decoded, test.value)
			}
		})
	}
}

func TestCBORMessageCodecDeterministic(t *testing.T) {
	a := value.Map()
	a.SetStringTake("b", value.Int(2))
	a.SetStringTake("a", value.Int(1))
	b := value.Map()
	b.SetStringTake("a", value.Int(1))
	b.SetStringTake("b", value.Int(2))

	codec := CBORMessageCodec{}
	first, err := codec.EncodeMessage(a)
	if err != nil {
		t.Fatal(err)
	}
	second, err := codec.EncodeMessage(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("insertion order leaked into encoding: %x vs %x", first, second)
	}

	decoded, err := codec.DecodeMessage(first)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.KeyAt(0).RawString() != "a" {
		t.Errorf("decoded keys not in canonical order: %v", decoded)
	}
}

func TestCBORMessageCodecErrors(t *testing.T) {
	codec := CBORMessageCodec{}

	if _, err := codec.EncodeMessage(value.Custom(130, nil, nil)); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("custom value: error = %v, want ErrUnsupportedType", err)
	}

	listKey := value.Map()
	listKey.SetTake(value.List(), value.Int(1))
	if _, err := codec.EncodeMessage(listKey); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("list key: error = %v, want ErrUnsupportedType", err)
	}

	if _, err := codec.DecodeMessage(nil); !errors.Is(err, ErrOutOfData) {
		t.Errorf("empty payload: error = %v, want ErrOutOfData", err)
	}

	// 0x01 0x02: two complete items.
	if _, err := codec.DecodeMessage([]byte{0x01, 0x02}); !errors.Is(err, ErrAdditionalData) {
		t.Errorf("trailing item: error = %v, want ErrAdditionalData", err)
	}
}
