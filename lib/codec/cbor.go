// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"math/big"
	"reflect"
	"slices"

	"github.com/fxamacker/cbor/v2"

	"github.com/bureau-foundation/embedder/lib/value"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. Same logical data always
// produces identical bytes.
var encMode cbor.EncMode

// decMode decodes transport frames and other struct-shaped data.
// Unknown fields are silently ignored for forward compatibility.
var decMode cbor.DecMode

// valueDecMode decodes arbitrary CBOR into the generic Go tree that
// CBORMessageCodec converts to a Value. Maps keep CBOR's own key
// model (any key type) and unknown tags surface as cbor.Tag.
var valueDecMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Frames never use non-string map keys. any-typed targets get
		// map[string]any rather than CBOR's default
		// map[interface{}]interface{}; struct fields are unaffected.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}

	valueDecMode, err = cbor.DecOptions{
		DefaultMapType:  reflect.TypeOf(map[any]any(nil)),
		MaxNestedLevels: MaxNestingDepth,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR value decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encoder is a CBOR stream encoder. Type alias so consumers import
// only lib/codec, not fxamacker/cbor directly.
type Encoder = cbor.Encoder

// Decoder is a CBOR stream decoder. Type alias so consumers import
// only lib/codec, not fxamacker/cbor directly.
type Decoder = cbor.Decoder

// RawMessage is a raw encoded CBOR value. It can be used to delay
// CBOR decoding or pre-encode CBOR output.
type RawMessage = cbor.RawMessage

// NewEncoder returns a CBOR encoder that writes to w using the Core
// Deterministic Encoding configuration.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a CBOR decoder that reads from r using the
// standard decoding configuration.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for the
// entire contents of data.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}

// RFC 8746 typed array tags, little-endian variants.
const (
	cborTagUint8Array   = 64
	cborTagInt32Array   = 78
	cborTagInt64Array   = 79
	cborTagFloat32Array = 85
	cborTagFloat64Array = 86
)

// CBORMessageCodec encodes values as core deterministic CBOR.
//
// Uint8 lists are byte strings; other typed lists are RFC 8746 typed
// arrays so they decode back to the same type. Map keys must be null,
// bool, int, float or string, and come back in canonical (encoded
// byte) order rather than insertion order.
type CBORMessageCodec struct{}

func (CBORMessageCodec) EncodeMessage(message *value.Value) ([]byte, error) {
	tree, err := toCBORTree(message)
	if err != nil {
		return nil, err
	}
	data, err := encMode.Marshal(tree)
	if err != nil {
		return nil, errorf(ErrUnsupportedType, "CBOR encoding: %v", err)
	}
	return data, nil
}

func (CBORMessageCodec) DecodeMessage(data []byte) (*value.Value, error) {
	if len(data) == 0 {
		return nil, errorf(ErrOutOfData, "empty CBOR payload")
	}
	var tree any
	rest, err := valueDecMode.UnmarshalFirst(data, &tree)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, errorf(ErrOutOfData, "CBOR payload truncated")
		}
		return nil, errorf(ErrFailed, "CBOR decoding: %v", err)
	}
	if len(rest) != 0 {
		return nil, errorf(ErrAdditionalData, "%d unused bytes after CBOR item", len(rest))
	}
	return fromCBORTree(tree)
}

func toCBORTree(v *value.Value) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch v.Type() {
	case value.TypeNull:
		return nil, nil
	case value.TypeBool:
		return v.Bool(), nil
	case value.TypeInt:
		return v.Int(), nil
	case value.TypeFloat:
		return v.Float(), nil
	case value.TypeString:
		return v.RawString(), nil
	case value.TypeUint8List:
		return v.Uint8List(), nil
	case value.TypeInt32List:
		content := make([]byte, 0, 4*v.Len())
		for _, x := range v.Int32List() {
			content = binary.LittleEndian.AppendUint32(content, uint32(x))
		}
		return cbor.Tag{Number: cborTagInt32Array, Content: content}, nil
	case value.TypeInt64List:
		content := make([]byte, 0, 8*v.Len())
		for _, x := range v.Int64List() {
			content = binary.LittleEndian.AppendUint64(content, uint64(x))
		}
		return cbor.Tag{Number: cborTagInt64Array, Content: content}, nil
	case value.TypeFloat32List:
		content := make([]byte, 0, 4*v.Len())
		for _, x := range v.Float32List() {
			content = binary.LittleEndian.AppendUint32(content, math.Float32bits(x))
		}
		return cbor.Tag{Number: cborTagFloat32Array, Content: content}, nil
	case value.TypeFloat64List:
		content := make([]byte, 0, 8*v.Len())
		for _, x := range v.Float64List() {
			content = binary.LittleEndian.AppendUint64(content, math.Float64bits(x))
		}
		return cbor.Tag{Number: cborTagFloat64Array, Content: content}, nil
	case value.TypeList:
		elements := make([]any, v.Len())
		for i := range elements {
			element, err := toCBORTree(v.At(i))
			if err != nil {
				return nil, err
			}
			elements[i] = element
		}
		return elements, nil
	case value.TypeMap:
		entries := make(map[any]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			key := v.KeyAt(i)
			switch key.Type() {
			case value.TypeNull, value.TypeBool, value.TypeInt, value.TypeFloat, value.TypeString:
			default:
				return nil, errorf(ErrUnsupportedType, "CBOR map key of type %s", key.Type())
			}
			keyTree, _ := toCBORTree(key)
			element, err := toCBORTree(v.ValueAt(i))
			if err != nil {
				return nil, err
			}
			entries[keyTree] = element
		}
		return entries, nil
	}
	return nil, errorf(ErrUnsupportedType, "%s value has no CBOR form", v.Type())
}

func fromCBORTree(tree any) (*value.Value, error) {
	switch typed := tree.(type) {
	case nil:
		return value.Null(), nil
	case bool:
		return value.Bool(typed), nil
	case int64:
		return value.Int(typed), nil
	case uint64:
		if typed > math.MaxInt64 {
			return nil, errorf(ErrUnsupportedType, "CBOR integer %d overflows int64", typed)
		}
		return value.Int(int64(typed)), nil
	case big.Int:
		return fromCBORBigInt(&typed)
	case *big.Int:
		return fromCBORBigInt(typed)
	case float64:
		return value.Float(typed), nil
	case float32:
		return value.Float(float64(typed)), nil
	case string:
		return value.String(typed), nil
	case []byte:
		return value.Uint8List(typed), nil
	case cbor.ByteString:
		return value.Uint8List([]byte(typed)), nil
	case []any:
		list := value.List()
		for _, element := range typed {
			converted, err := fromCBORTree(element)
			if err != nil {
				list.Unref()
				return nil, err
			}
			list.AppendTake(converted)
		}
		return list, nil
	case map[any]any:
		return fromCBORMap(typed)
	case cbor.Tag:
		return fromCBORTag(typed)
	}
	return nil, errorf(ErrUnsupportedType, "CBOR item of Go type %T", tree)
}

func fromCBORBigInt(x *big.Int) (*value.Value, error) {
	if !x.IsInt64() {
		return nil, errorf(ErrUnsupportedType, "CBOR bignum %s overflows int64", x)
	}
	return value.Int(x.Int64()), nil
}

type cborEntry struct {
	sortKey []byte
	key     any
	element any
}

// fromCBORMap converts entries in the order of their encoded keys,
// which is the order core deterministic encoding writes them in.
func fromCBORMap(entries map[any]any) (*value.Value, error) {
	sorted := make([]cborEntry, 0, len(entries))
	for key, element := range entries {
		sortKey, err := encMode.Marshal(key)
		if err != nil {
			return nil, errorf(ErrUnsupportedType, "CBOR map key %v: %v", key, err)
		}
		sorted = append(sorted, cborEntry{sortKey: sortKey, key: key, element: element})
	}
	slices.SortFunc(sorted, func(a, b cborEntry) int { return bytes.Compare(a.sortKey, b.sortKey) })

	result := value.Map()
	for _, entry := range sorted {
		key, err := fromCBORTree(entry.key)
		if err != nil {
			result.Unref()
			return nil, err
		}
		element, err := fromCBORTree(entry.element)
		if err != nil {
			key.Unref()
			result.Unref()
			return nil, err
		}
		result.SetTake(key, element)
	}
	return result, nil
}

func fromCBORTag(tag cbor.Tag) (*value.Value, error) {
	content, ok := tag.Content.([]byte)
	if !ok {
		return nil, errorf(ErrUnsupportedType, "CBOR tag %d", tag.Number)
	}
	switch tag.Number {
	case cborTagUint8Array:
		return value.Uint8List(content), nil
	case cborTagInt32Array:
		elements, err := decodeTypedArray(content, 4, func(b []byte) int32 {
			return int32(binary.LittleEndian.Uint32(b))
		})
		if err != nil {
			return nil, err
		}
		return value.Int32List(elements), nil
	case cborTagInt64Array:
		elements, err := decodeTypedArray(content, 8, func(b []byte) int64 {
			return int64(binary.LittleEndian.Uint64(b))
		})
		if err != nil {
			return nil, err
		}
		return value.Int64List(elements), nil
	case cborTagFloat32Array:
		elements, err := decodeTypedArray(content, 4, func(b []byte) float32 {
			return math.Float32frombits(binary.LittleEndian.Uint32(b))
		})
		if err != nil {
			return nil, err
		}
		return value.Float32List(elements), nil
	case cborTagFloat64Array:
		elements, err := decodeTypedArray(content, 8, func(b []byte) float64 {
			return math.Float64frombits(binary.LittleEndian.Uint64(b))
		})
		if err != nil {
			return nil, err
		}
		return value.Float64List(elements), nil
	}
	return nil, errorf(ErrUnsupportedType, "CBOR tag %d", tag.Number)
}

func decodeTypedArray[T any](content []byte, width int, decode func([]byte) T) ([]T, error) {
	if len(content)%width != 0 {
		return nil, errorf(ErrFailed, "typed array of %d bytes is not a multiple of %d", len(content), width)
	}
	elements := make([]T, len(content)/width)
	for i := range elements {
		elements[i] = decode(content[i*width:])
	}
	return elements, nil
}
