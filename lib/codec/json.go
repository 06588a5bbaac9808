// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/bureau-foundation/embedder/lib/value"
)

// JSONMessageCodec encodes values as UTF-8 JSON text.
//
// Typed lists encode as plain arrays and decode as generic lists. Maps
// must have string keys. Decoding preserves object member order.
// Integral JSON numbers decode as Int when they fit in 64 bits; all
// other numbers decode as Float. Floats always encode with a fraction
// or exponent so they decode back as Float. NaN and infinities have no
// JSON form and are rejected.
type JSONMessageCodec struct{}

func (JSONMessageCodec) EncodeMessage(message *value.Value) ([]byte, error) {
	var buffer bytes.Buffer
	if err := writeJSON(&buffer, message); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func (JSONMessageCodec) DecodeMessage(data []byte) (*value.Value, error) {
	decoder := newJSONDecoder(data)
	result, err := readJSON(decoder, 0)
	if err != nil {
		return nil, err
	}
	if err := expectJSONEnd(decoder); err != nil {
		result.Unref()
		return nil, err
	}
	return result, nil
}

func newJSONDecoder(data []byte) *json.Decoder {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	return decoder
}

func writeJSON(buffer *bytes.Buffer, v *value.Value) error {
	if v == nil {
		buffer.WriteString("null")
		return nil
	}
	switch v.Type() {
	case value.TypeNull:
		buffer.WriteString("null")
	case value.TypeBool:
		buffer.WriteString(strconv.FormatBool(v.Bool()))
	case value.TypeInt:
		buffer.WriteString(strconv.FormatInt(v.Int(), 10))
	case value.TypeFloat:
		return writeJSONFloat(buffer, v.Float(), 64)
	case value.TypeString:
		writeJSONString(buffer, v.RawString())
	case value.TypeUint8List:
		writeJSONArray(buffer, v.Uint8List(), func(x byte) error {
			buffer.WriteString(strconv.Itoa(int(x)))
			return nil
		})
	case value.TypeInt32List:
		writeJSONArray(buffer, v.Int32List(), func(x int32) error {
			buffer.WriteString(strconv.FormatInt(int64(x), 10))
			return nil
		})
	case value.TypeInt64List:
		writeJSONArray(buffer, v.Int64List(), func(x int64) error {
			buffer.WriteString(strconv.FormatInt(x, 10))
			return nil
		})
	case value.TypeFloat32List:
		return writeJSONArray(buffer, v.Float32List(), func(x float32) error {
			return writeJSONFloat(buffer, float64(x), 32)
		})
	case value.TypeFloat64List:
		return writeJSONArray(buffer, v.Float64List(), func(x float64) error {
			return writeJSONFloat(buffer, x, 64)
		})
	case value.TypeList:
		buffer.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				buffer.WriteByte(',')
			}
			if err := writeJSON(buffer, v.At(i)); err != nil {
				return err
			}
		}
		buffer.WriteByte(']')
	case value.TypeMap:
		buffer.WriteByte('{')
		for i := 0; i < v.Len(); i++ {
			key := v.KeyAt(i)
			if key.Type() != value.TypeString {
				return errorf(ErrUnsupportedType, "JSON object key is %s, not string", key.Type())
			}
			if i > 0 {
				buffer.WriteByte(',')
			}
			writeJSONString(buffer, key.RawString())
			buffer.WriteByte(':')
			if err := writeJSON(buffer, v.ValueAt(i)); err != nil {
				return err
			}
		}
		buffer.WriteByte('}')
	default:
		return errorf(ErrUnsupportedType, "%s value has no JSON form", v.Type())
	}
	return nil
}

func writeJSONArray[T any](buffer *bytes.Buffer, elements []T, write func(T) error) error {
	buffer.WriteByte('[')
	for i, element := range elements {
		if i > 0 {
			buffer.WriteByte(',')
		}
		if err := write(element); err != nil {
			return err
		}
	}
	buffer.WriteByte(']')
	return nil
}

func writeJSONFloat(buffer *bytes.Buffer, x float64, bits int) error {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return errorf(ErrUnsupportedType, "float %v has no JSON form", x)
	}
	text := strconv.FormatFloat(x, 'g', -1, bits)
	if !strings.ContainsAny(text, ".e") {
		text += ".0"
	}
	buffer.WriteString(text)
	return nil
}

func writeJSONString(buffer *bytes.Buffer, text string) {
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = encoder.Encode(text)
	// Encode appends a newline.
	buffer.Truncate(buffer.Len() - 1)
}

// readJSON reads one value whose arrays and objects sit depth levels
// below the top.
func readJSON(decoder *json.Decoder, depth int) (*value.Value, error) {
	token, err := decoder.Token()
	if err != nil {
		return nil, jsonError(err)
	}
	return readJSONToken(decoder, token, depth)
}

func readJSONToken(decoder *json.Decoder, token json.Token, depth int) (*value.Value, error) {
	if delim, ok := token.(json.Delim); ok && (delim == '[' || delim == '{') && depth >= MaxNestingDepth {
		return nil, errorf(ErrFailed, "JSON nested deeper than %d levels", MaxNestingDepth)
	}
	switch typed := token.(type) {
	case nil:
		return value.Null(), nil
	case bool:
		return value.Bool(typed), nil
	case string:
		return value.String(typed), nil
	case json.Number:
		return jsonNumber(typed)
	case json.Delim:
		switch typed {
		case '[':
			list := value.List()
			for decoder.More() {
				element, err := readJSON(decoder, depth+1)
				if err != nil {
					list.Unref()
					return nil, err
				}
				list.AppendTake(element)
			}
			if _, err := decoder.Token(); err != nil {
				list.Unref()
				return nil, jsonError(err)
			}
			return list, nil
		case '{':
			object := value.Map()
			for decoder.More() {
				keyToken, err := decoder.Token()
				if err != nil {
					object.Unref()
					return nil, jsonError(err)
				}
				key, ok := keyToken.(string)
				if !ok {
					object.Unref()
					return nil, errorf(ErrFailed, "JSON object key %v is not a string", keyToken)
				}
				element, err := readJSON(decoder, depth+1)
				if err != nil {
					object.Unref()
					return nil, err
				}
				object.SetStringTake(key, element)
			}
			if _, err := decoder.Token(); err != nil {
				object.Unref()
				return nil, jsonError(err)
			}
			return object, nil
		}
	}
	return nil, errorf(ErrFailed, "unexpected JSON token %v", token)
}

func jsonNumber(number json.Number) (*value.Value, error) {
	text := number.String()
	if !strings.ContainsAny(text, ".eE") {
		if x, err := strconv.ParseInt(text, 10, 64); err == nil {
			return value.Int(x), nil
		}
	}
	x, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, errorf(ErrFailed, "JSON number %s: %v", text, err)
	}
	return value.Float(x), nil
}

// expectJSONEnd reports trailing tokens after a complete value.
func expectJSONEnd(decoder *json.Decoder) error {
	token, err := decoder.Token()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return jsonError(err)
	}
	return errorf(ErrAdditionalData, "unexpected JSON token %v after value", token)
}

func jsonError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errorf(ErrOutOfData, "JSON text ended before a complete value")
	}
	return errorf(ErrFailed, "invalid JSON: %v", err)
}
