// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"encoding/binary"
	"math"

	"github.com/bureau-foundation/embedder/lib/value"
)

// Standard type tags. These values are protocol constants shared with
// every other implementation of the standard codec (the framework side
// included); changing them breaks interoperability.
const (
	TagNull        byte = 0
	TagTrue        byte = 1
	TagFalse       byte = 2
	TagInt32       byte = 3
	TagInt64       byte = 4
	TagLargeInt    byte = 5 // legacy hex-string integer, never written
	TagFloat64     byte = 6
	TagString      byte = 7
	TagUint8List   byte = 8
	TagInt32List   byte = 9
	TagInt64List   byte = 10
	TagFloat64List byte = 11
	TagList        byte = 12
	TagMap         byte = 13
	TagFloat32List byte = 14

	// FirstExtensionTag is the lowest tag available to extensions.
	FirstExtensionTag byte = 128
)

// Size prefix escape markers: a first byte below sizeEscape16 is the
// size itself, sizeEscape16 is followed by a uint16, sizeEscape32 by a
// uint32.
const (
	sizeEscape16 = 254
	sizeEscape32 = 255
)

// Extension adds application-defined types to a StandardMessageCodec,
// typically to carry custom Values under tags at or above
// FirstExtensionTag.
type Extension interface {
	// WriteValue writes v (including its type tag) to w and reports
	// true, or reports false to fall back to the standard encoding.
	WriteValue(w *Writer, v *value.Value) (handled bool, err error)

	// ReadValueOfType reads the payload of a value whose tag (already
	// consumed) is not a standard tag.
	ReadValueOfType(r *Reader, tag byte) (*value.Value, error)
}

// StandardMessageCodec implements the standard binary message format.
// The zero value is ready to use and has no extension.
type StandardMessageCodec struct {
	extension Extension
}

// NewStandardMessageCodec returns a codec using extension for values
// the standard format does not cover. extension may be nil.
func NewStandardMessageCodec(extension Extension) *StandardMessageCodec {
	return &StandardMessageCodec{extension: extension}
}

// EncodeMessage encodes message in the standard format.
func (c *StandardMessageCodec) EncodeMessage(message *value.Value) ([]byte, error) {
	writer := c.NewWriter()
	if err := writer.WriteValue(message); err != nil {
		return nil, err
	}
	return writer.Bytes(), nil
}

// DecodeMessage decodes one value and rejects trailing bytes.
func (c *StandardMessageCodec) DecodeMessage(data []byte) (*value.Value, error) {
	reader := c.NewReader(data)
	result, err := reader.ReadValue()
	if err != nil {
		return nil, err
	}
	if err := reader.expectEnd("standard message"); err != nil {
		result.Unref()
		return nil, err
	}
	return result, nil
}

// NewWriter returns an empty Writer bound to c, so nested values are
// written with c's extension.
func (c *StandardMessageCodec) NewWriter() *Writer {
	return &Writer{codec: c}
}

// NewReader returns a Reader over data bound to c.
func (c *StandardMessageCodec) NewReader(data []byte) *Reader {
	return &Reader{codec: c, data: data}
}

// Writer accumulates a standard-format payload.
type Writer struct {
	codec  *StandardMessageCodec
	buffer []byte
}

// Bytes returns the encoded payload. Never nil.
func (w *Writer) Bytes() []byte {
	if w.buffer == nil {
		return []byte{}
	}
	return w.buffer
}

// WriteByte appends one byte. It never fails; the error result
// satisfies io.ByteWriter.
func (w *Writer) WriteByte(b byte) error {
	w.buffer = append(w.buffer, b)
	return nil
}

// WriteBytes appends raw bytes.
func (w *Writer) WriteBytes(data []byte) {
	w.buffer = append(w.buffer, data...)
}

// WriteSize appends a variable-width size prefix.
func (w *Writer) WriteSize(size int) error {
	switch {
	case size < 0 || uint64(size) > math.MaxUint32:
		return errorf(ErrUnsupportedType, "size %d out of range", size)
	case size < sizeEscape16:
		w.buffer = append(w.buffer, byte(size))
	case size <= math.MaxUint16:
		w.buffer = append(w.buffer, sizeEscape16)
		w.buffer = binary.LittleEndian.AppendUint16(w.buffer, uint16(size))
	default:
		w.buffer = append(w.buffer, sizeEscape32)
		w.buffer = binary.LittleEndian.AppendUint32(w.buffer, uint32(size))
	}
	return nil
}

// Align pads with zero bytes until the payload length is a multiple
// of alignment.
func (w *Writer) Align(alignment int) {
	for len(w.buffer)%alignment != 0 {
		w.buffer = append(w.buffer, 0)
	}
}

// WriteInt32 appends a little-endian int32.
func (w *Writer) WriteInt32(x int32) {
	w.buffer = binary.LittleEndian.AppendUint32(w.buffer, uint32(x))
}

// WriteInt64 appends a little-endian int64.
func (w *Writer) WriteInt64(x int64) {
	w.buffer = binary.LittleEndian.AppendUint64(w.buffer, uint64(x))
}

// WriteFloat32 appends a little-endian IEEE 754 float32.
func (w *Writer) WriteFloat32(x float32) {
	w.buffer = binary.LittleEndian.AppendUint32(w.buffer, math.Float32bits(x))
}

// WriteFloat64 appends a little-endian IEEE 754 float64.
func (w *Writer) WriteFloat64(x float64) {
	w.buffer = binary.LittleEndian.AppendUint64(w.buffer, math.Float64bits(x))
}

// WriteValue appends v with its type tag. A nil v is written as null.
func (w *Writer) WriteValue(v *value.Value) error {
	if v == nil {
		w.buffer = append(w.buffer, TagNull)
		return nil
	}
	if extension := w.extension(); extension != nil {
		handled, err := extension.WriteValue(w, v)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
	}

	switch v.Type() {
	case value.TypeNull:
		w.buffer = append(w.buffer, TagNull)
	case value.TypeBool:
		if v.Bool() {
			w.buffer = append(w.buffer, TagTrue)
		} else {
			w.buffer = append(w.buffer, TagFalse)
		}
	case value.TypeInt:
		x := v.Int()
		if x >= math.MinInt32 && x <= math.MaxInt32 {
			w.buffer = append(w.buffer, TagInt32)
			w.WriteInt32(int32(x))
		} else {
			w.buffer = append(w.buffer, TagInt64)
			w.WriteInt64(x)
		}
	case value.TypeFloat:
		w.buffer = append(w.buffer, TagFloat64)
		w.Align(8)
		w.WriteFloat64(v.Float())
	case value.TypeString:
		text := v.RawString()
		w.buffer = append(w.buffer, TagString)
		if err := w.WriteSize(len(text)); err != nil {
			return err
		}
		w.buffer = append(w.buffer, text...)
	case value.TypeUint8List:
		data := v.Uint8List()
		w.buffer = append(w.buffer, TagUint8List)
		if err := w.WriteSize(len(data)); err != nil {
			return err
		}
		w.buffer = append(w.buffer, data...)
	case value.TypeInt32List:
		data := v.Int32List()
		w.buffer = append(w.buffer, TagInt32List)
		if err := w.WriteSize(len(data)); err != nil {
			return err
		}
		w.Align(4)
		for _, x := range data {
			w.WriteInt32(x)
		}
	case value.TypeInt64List:
		data := v.Int64List()
		w.buffer = append(w.buffer, TagInt64List)
		if err := w.WriteSize(len(data)); err != nil {
			return err
		}
		w.Align(8)
		for _, x := range data {
			w.WriteInt64(x)
		}
	case value.TypeFloat32List:
		data := v.Float32List()
		w.buffer = append(w.buffer, TagFloat32List)
		if err := w.WriteSize(len(data)); err != nil {
			return err
		}
		w.Align(4)
		for _, x := range data {
			w.WriteFloat32(x)
		}
	case value.TypeFloat64List:
		data := v.Float64List()
		w.buffer = append(w.buffer, TagFloat64List)
		if err := w.WriteSize(len(data)); err != nil {
			return err
		}
		w.Align(8)
		for _, x := range data {
			w.WriteFloat64(x)
		}
	case value.TypeList:
		w.buffer = append(w.buffer, TagList)
		if err := w.WriteSize(v.Len()); err != nil {
			return err
		}
		for i := 0; i < v.Len(); i++ {
			if err := w.WriteValue(v.At(i)); err != nil {
				return err
			}
		}
	case value.TypeMap:
		w.buffer = append(w.buffer, TagMap)
		if err := w.WriteSize(v.Len()); err != nil {
			return err
		}
		for i := 0; i < v.Len(); i++ {
			if err := w.WriteValue(v.KeyAt(i)); err != nil {
				return err
			}
			if err := w.WriteValue(v.ValueAt(i)); err != nil {
				return err
			}
		}
	case value.TypeCustom:
		return errorf(ErrUnsupportedType, "custom value (tag %d) has no standard encoding", v.CustomType())
	default:
		return errorf(ErrUnsupportedType, "%s value", v.Type())
	}
	return nil
}

func (w *Writer) extension() Extension {
	if w.codec == nil {
		return nil
	}
	return w.codec.extension
}

// Reader consumes a standard-format payload.
type Reader struct {
	codec  *StandardMessageCodec
	data   []byte
	offset int
	depth  int
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.offset }

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.offset }

func (r *Reader) expectEnd(record string) error {
	if remaining := r.Remaining(); remaining != 0 {
		return errorf(ErrAdditionalData, "%d unused bytes after %s", remaining, record)
	}
	return nil
}

func (r *Reader) need(count int) error {
	if count < 0 || r.Remaining() < count {
		return errorf(ErrOutOfData, "need %d bytes at offset %d, have %d", count, r.offset, r.Remaining())
	}
	return nil
}

// ReadByte consumes one byte.
func (r *Reader) ReadByte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.data[r.offset]
	r.offset++
	return b, nil
}

// ReadBytes consumes count bytes and returns them without copying.
func (r *Reader) ReadBytes(count int) ([]byte, error) {
	if err := r.need(count); err != nil {
		return nil, err
	}
	data := r.data[r.offset : r.offset+count]
	r.offset += count
	return data, nil
}

// ReadSize consumes a variable-width size prefix.
func (r *Reader) ReadSize() (int, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	switch first {
	case sizeEscape16:
		data, err := r.ReadBytes(2)
		if err != nil {
			return 0, err
		}
		return int(binary.LittleEndian.Uint16(data)), nil
	case sizeEscape32:
		data, err := r.ReadBytes(4)
		if err != nil {
			return 0, err
		}
		return int(binary.LittleEndian.Uint32(data)), nil
	default:
		return int(first), nil
	}
}

// Align skips padding until the offset is a multiple of alignment.
func (r *Reader) Align(alignment int) error {
	padding := (alignment - r.offset%alignment) % alignment
	_, err := r.ReadBytes(padding)
	return err
}

// ReadInt32 consumes a little-endian int32.
func (r *Reader) ReadInt32() (int32, error) {
	data, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(data)), nil
}

// ReadInt64 consumes a little-endian int64.
func (r *Reader) ReadInt64() (int64, error) {
	data, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(data)), nil
}

// ReadFloat64 consumes a little-endian IEEE 754 float64.
func (r *Reader) ReadFloat64() (float64, error) {
	data, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(data)), nil
}

// ReadValue consumes one tagged value.
func (r *Reader) ReadValue() (*value.Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	return r.ReadValueOfType(tag)
}

// ReadValueOfType consumes the payload of a value whose tag has
// already been read. Tags outside the standard set go to the codec's
// extension.
func (r *Reader) ReadValueOfType(tag byte) (*value.Value, error) {
	switch tag {
	case TagNull:
		return value.Null(), nil
	case TagTrue:
		return value.Bool(true), nil
	case TagFalse:
		return value.Bool(false), nil
	case TagInt32:
		x, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		return value.Int(int64(x)), nil
	case TagInt64:
		x, err := r.ReadInt64()
		if err != nil {
			return nil, err
		}
		return value.Int(x), nil
	case TagFloat64:
		if err := r.Align(8); err != nil {
			return nil, err
		}
		x, err := r.ReadFloat64()
		if err != nil {
			return nil, err
		}
		return value.Float(x), nil
	case TagString:
		data, err := r.readSized(1, 1)
		if err != nil {
			return nil, err
		}
		return value.String(string(data)), nil
	case TagUint8List:
		data, err := r.readSized(1, 1)
		if err != nil {
			return nil, err
		}
		return value.Uint8List(data), nil
	case TagInt32List:
		data, err := r.readSized(4, 4)
		if err != nil {
			return nil, err
		}
		elements := make([]int32, len(data)/4)
		for i := range elements {
			elements[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
		}
		return value.Int32List(elements), nil
	case TagInt64List:
		data, err := r.readSized(8, 8)
		if err != nil {
			return nil, err
		}
		elements := make([]int64, len(data)/8)
		for i := range elements {
			elements[i] = int64(binary.LittleEndian.Uint64(data[i*8:]))
		}
		return value.Int64List(elements), nil
	case TagFloat32List:
		data, err := r.readSized(4, 4)
		if err != nil {
			return nil, err
		}
		elements := make([]float32, len(data)/4)
		for i := range elements {
			elements[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
		return value.Float32List(elements), nil
	case TagFloat64List:
		data, err := r.readSized(8, 8)
		if err != nil {
			return nil, err
		}
		elements := make([]float64, len(data)/8)
		for i := range elements {
			elements[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
		return value.Float64List(elements), nil
	case TagList:
		if err := r.enter(); err != nil {
			return nil, err
		}
		defer r.leave()
		return r.readList()
	case TagMap:
		if err := r.enter(); err != nil {
			return nil, err
		}
		defer r.leave()
		return r.readMap()
	case TagLargeInt:
		return nil, errorf(ErrUnsupportedType, "legacy large integer encoding (tag %d)", tag)
	}

	if r.codec != nil && r.codec.extension != nil {
		if err := r.enter(); err != nil {
			return nil, err
		}
		defer r.leave()
		return r.codec.extension.ReadValueOfType(r, tag)
	}
	return nil, errorf(ErrFailed, "unexpected standard codec type %#02x at offset %d", tag, r.offset-1)
}

// enter records one more level of nesting and fails once the payload
// nests deeper than MaxNestingDepth.
func (r *Reader) enter() error {
	if r.depth >= MaxNestingDepth {
		return errorf(ErrFailed, "values nested deeper than %d levels at offset %d", MaxNestingDepth, r.offset-1)
	}
	r.depth++
	return nil
}

func (r *Reader) leave() { r.depth-- }

// readSized reads a size prefix, aligns to alignment, and returns
// size*width payload bytes.
func (r *Reader) readSized(width, alignment int) ([]byte, error) {
	size, err := r.ReadSize()
	if err != nil {
		return nil, err
	}
	if alignment > 1 {
		if err := r.Align(alignment); err != nil {
			return nil, err
		}
	}
	if size > r.Remaining()/width {
		return nil, errorf(ErrOutOfData, "%d elements of %d bytes exceed the %d remaining", size, width, r.Remaining())
	}
	return r.ReadBytes(size * width)
}

func (r *Reader) readList() (*value.Value, error) {
	size, err := r.ReadSize()
	if err != nil {
		return nil, err
	}
	list := value.List()
	for i := 0; i < size; i++ {
		element, err := r.ReadValue()
		if err != nil {
			list.Unref()
			return nil, err
		}
		list.AppendTake(element)
	}
	return list, nil
}

func (r *Reader) readMap() (*value.Value, error) {
	size, err := r.ReadSize()
	if err != nil {
		return nil, err
	}
	result := value.Map()
	for i := 0; i < size; i++ {
		key, err := r.ReadValue()
		if err != nil {
			result.Unref()
			return nil, err
		}
		element, err := r.ReadValue()
		if err != nil {
			key.Unref()
			result.Unref()
			return nil, err
		}
		result.SetTake(key, element)
	}
	return result, nil
}
