// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/bureau-foundation/embedder/lib/value"
)

func TestJSONMessageEncoding(t *testing.T) {
	ordered := value.Map()
	ordered.SetStringTake("z", value.Int(1))
	ordered.SetStringTake("a", value.List(value.Float(2), value.Null()))

	tests := []struct {
		name  string
		value *value.Value
		want  string
	}{
		{"null", nil, "null"},
		{"bool", value.Bool(false), "false"},
		{"int", value.Int(-12), "-12"},
		{"integral float", value.Float(3), "3.0"},
		{"fraction", value.Float(0.125), "0.125"},
		{"string escapes", value.String("<a \"b\">\n"), `"<a \"b\">\n"`},
		{"typed list", value.Int32List([]int32{1, 2}), "[1,2]"},
		{"float32 list", value.Float32List([]float32{0.5}), "[0.5]"},
		{"ordered map", ordered, `{"z":1,"a":[2.0,null]}`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			data, err := JSONMessageCodec{}.EncodeMessage(test.value)
			if err != nil {
				t.Fatalf("EncodeMessage: %v", err)
			}
			if string(data) != test.want {
				t.Errorf("encoding = %s, want %s", data, test.want)
			}
		})
	}
}

func TestJSONMessageDecodePreservesOrder(t *testing.T) {
	decoded, err := JSONMessageCodec{}.DecodeMessage([]byte(` {"z": 1, "a": [2.0, 1e3, true], "m": 9223372036854775808}`))
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if decoded.KeyAt(0).RawString() != "z" || decoded.KeyAt(1).RawString() != "a" {
		t.Errorf("member order lost: %v", decoded)
	}
	if decoded.ValueAt(0).Type() != value.TypeInt {
		t.Errorf("integral number decoded as %s", decoded.ValueAt(0).Type())
	}
	list := decoded.LookupString("a")
	if list.At(0).Type() != value.TypeFloat || list.At(1).Float() != 1000 {
		t.Errorf("floats decoded as %v", list)
	}
	if decoded.LookupString("m").Type() != value.TypeFloat {
		t.Error("integer beyond int64 should decode as float")
	}
}

func TestJSONMessageErrors(t *testing.T) {
	codec := JSONMessageCodec{}
	if _, err := codec.EncodeMessage(value.Float(math.NaN())); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("NaN: error = %v", err)
	}
	intKey := value.Map()
	intKey.SetTake(value.Int(1), value.Null())
	if _, err := codec.EncodeMessage(intKey); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("int key: error = %v", err)
	}
	if _, err := codec.EncodeMessage(value.Custom(200, nil, nil)); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("custom: error = %v", err)
	}
	if _, err := codec.DecodeMessage([]byte("")); !errors.Is(err, ErrOutOfData) {
		t.Errorf("empty: error = %v", err)
	}
	if _, err := codec.DecodeMessage([]byte("[1,")); !errors.Is(err, ErrOutOfData) {
		t.Errorf("truncated: error = %v", err)
	}
	if _, err := codec.DecodeMessage([]byte("1 2")); !errors.Is(err, ErrAdditionalData) {
		t.Errorf("trailing: error = %v", err)
	}
	if _, err := codec.DecodeMessage([]byte("{]")); !errors.Is(err, ErrFailed) {
		t.Errorf("malformed: error = %v", err)
	}
}

func TestJSONNestingLimit(t *testing.T) {
	codec := JSONMessageCodec{}
	nested := func(depth int) []byte {
		return []byte(strings.Repeat("[", depth) + strings.Repeat("]", depth))
	}

	decoded, err := codec.DecodeMessage(nested(MaxNestingDepth))
	if err != nil {
		t.Fatalf("DecodeMessage at the nesting limit: %v", err)
	}
	decoded.Unref()

	if _, err := codec.DecodeMessage(nested(MaxNestingDepth + 1)); !errors.Is(err, ErrFailed) {
		t.Errorf("one level past the limit: error = %v, want ErrFailed", err)
	}
	deepObjects := strings.Repeat(`{"a":`, MaxNestingDepth+1) + "1" + strings.Repeat("}", MaxNestingDepth+1)
	if _, err := codec.DecodeMessage([]byte(deepObjects)); !errors.Is(err, ErrFailed) {
		t.Errorf("deep objects: error = %v, want ErrFailed", err)
	}
}

func TestJSONMethodCodec(t *testing.T) {
	methods := JSONMethodCodec{}

	data, err := methods.EncodeMethodCall("resize", value.List(value.String("chan"), value.Int(3)))
	if err != nil {
		t.Fatalf("EncodeMethodCall: %v", err)
	}
	if want := `{"method":"resize","args":["chan",3]}`; string(data) != want {
		t.Errorf("call = %s, want %s", data, want)
	}
	name, args, err := methods.DecodeMethodCall(data)
	if err != nil || name != "resize" || args.Len() != 2 {
		t.Errorf("DecodeMethodCall = %q, %v, %v", name, args, err)
	}

	name, args, err = methods.DecodeMethodCall([]byte(`{"method":"ping"}`))
	if err != nil || name != "ping" || args.Type() != value.TypeNull {
		t.Errorf("call without args = %q, %v, %v", name, args, err)
	}
	if _, _, err := methods.DecodeMethodCall([]byte(`{"args":1}`)); !errors.Is(err, ErrFailed) {
		t.Errorf("call without method: error = %v", err)
	}

	success, err := methods.EncodeSuccessEnvelope(value.String("ok"))
	if err != nil || string(success) != `["ok"]` {
		t.Errorf("success envelope = %s, %v", success, err)
	}
	failure, err := methods.EncodeErrorEnvelope("bad", "", value.Int(1))
	if err != nil || string(failure) != `["bad",null,1]` {
		t.Errorf("error envelope = %s, %v", failure, err)
	}

	response, err := methods.DecodeResponse(failure)
	if err != nil {
		t.Fatal(err)
	}
	if !EqualResponse(response, NewErrorResponse("bad", "", value.Int(1))) {
		t.Errorf("decoded error envelope = %v", response)
	}
	response, err = methods.DecodeResponse(success)
	if err != nil || !EqualResponse(response, NewSuccessResponse(value.String("ok"))) {
		t.Errorf("decoded success envelope = %v, %v", response, err)
	}
	response, err = methods.DecodeResponse(nil)
	if _, ok := response.(*NotImplementedResponse); err != nil || !ok {
		t.Errorf("empty envelope = %v, %v", response, err)
	}
	if _, err := methods.DecodeResponse([]byte(`[1,2]`)); !errors.Is(err, ErrFailed) {
		t.Errorf("two element envelope: error = %v", err)
	}
}

func TestStringAndBinaryCodecs(t *testing.T) {
	data, err := StringCodec{}.EncodeMessage(value.String("héllo"))
	if err != nil || string(data) != "héllo" {
		t.Errorf("string encode = %q, %v", data, err)
	}
	decoded, err := StringCodec{}.DecodeMessage(data)
	if err != nil || decoded.RawString() != "héllo" {
		t.Errorf("string decode = %v, %v", decoded, err)
	}
	if _, err := (StringCodec{}).EncodeMessage(value.Int(1)); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("string codec with int: error = %v", err)
	}
	if _, err := (StringCodec{}).DecodeMessage([]byte{0xff}); !errors.Is(err, ErrFailed) {
		t.Errorf("invalid UTF-8: error = %v", err)
	}

	raw := []byte{0, 1, 254}
	data, err = BinaryCodec{}.EncodeMessage(value.Uint8List(raw))
	if err != nil || string(data) != string(raw) {
		t.Errorf("binary encode = %x, %v", data, err)
	}
	decoded, err = BinaryCodec{}.DecodeMessage(raw)
	if err != nil || !value.Equal(decoded, value.Uint8List(raw)) {
		t.Errorf("binary decode = %v, %v", decoded, err)
	}
	if _, err := (BinaryCodec{}).EncodeMessage(value.String("x")); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("binary codec with string: error = %v", err)
	}
}
