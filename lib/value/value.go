// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"fmt"
	"slices"
	"sync/atomic"
)

// Type identifies the variant held by a Value.
type Type int

const (
	TypeNull Type = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeUint8List
	TypeInt32List
	TypeInt64List
	TypeFloat32List
	TypeFloat64List
	TypeList
	TypeMap
	TypeCustom
)

// String returns the lower-case variant name.
func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeUint8List:
		return "uint8_list"
	case TypeInt32List:
		return "int32_list"
	case TypeInt64List:
		return "int64_list"
	case TypeFloat32List:
		return "float32_list"
	case TypeFloat64List:
		return "float64_list"
	case TypeList:
		return "list"
	case TypeMap:
		return "map"
	case TypeCustom:
		return "custom"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Value is a reference-counted tagged union. The zero Value is not
// valid; use one of the constructors.
type Value struct {
	kind Type
	refs atomic.Int32

	// rep holds the variant payload:
	//   null           nil
	//   bool           bool
	//   int            int64
	//   float          float64
	//   string         string
	//   typed lists    []byte, []int32, []int64, []float32, []float64
	//   list           *repList
	//   map            *repMap
	//   custom         *repCustom
	rep any
}

type repList struct {
	values []*Value
}

type repMap struct {
	keys   []*Value
	values []*Value
}

type repCustom struct {
	tag     int
	payload any
	destroy func(any)
}

func newValue(kind Type, rep any) *Value {
	v := &Value{kind: kind, rep: rep}
	v.refs.Store(1)
	return v
}

// Null returns a new null Value.
func Null() *Value { return newValue(TypeNull, nil) }

// Bool returns a new bool Value.
func Bool(x bool) *Value { return newValue(TypeBool, x) }

// Int returns a new int Value.
func Int(x int64) *Value { return newValue(TypeInt, x) }

// Float returns a new float Value.
func Float(x float64) *Value { return newValue(TypeFloat, x) }

// String returns a new string Value.
func String(x string) *Value { return newValue(TypeString, x) }

// Uint8List returns a new uint8 list Value holding a copy of data.
func Uint8List(data []byte) *Value {
	return newValue(TypeUint8List, cloneOrEmpty(data))
}

// Int32List returns a new int32 list Value holding a copy of data.
func Int32List(data []int32) *Value {
	return newValue(TypeInt32List, cloneOrEmpty(data))
}

// Int64List returns a new int64 list Value holding a copy of data.
func Int64List(data []int64) *Value {
	return newValue(TypeInt64List, cloneOrEmpty(data))
}

// Float32List returns a new float32 list Value holding a copy of data.
func Float32List(data []float32) *Value {
	return newValue(TypeFloat32List, cloneOrEmpty(data))
}

// Float64List returns a new float64 list Value holding a copy of data.
func Float64List(data []float64) *Value {
	return newValue(TypeFloat64List, cloneOrEmpty(data))
}

func cloneOrEmpty[T any](data []T) []T {
	if data == nil {
		return []T{}
	}
	return slices.Clone(data)
}

// List returns a new list Value. It takes ownership of the reference
// held on each element.
func List(elements ...*Value) *Value {
	for _, element := range elements {
		mustBeValid(element, "List")
	}
	return newValue(TypeList, &repList{values: slices.Clone(elements)})
}

// Map returns a new, empty map Value.
func Map() *Value {
	return newValue(TypeMap, &repMap{})
}

// Custom returns a new custom Value. The tag identifies the payload
// to application codecs. If destroy is non-nil it is called with the
// payload when the last reference is dropped.
func Custom(tag int, payload any, destroy func(any)) *Value {
	return newValue(TypeCustom, &repCustom{tag: tag, payload: payload, destroy: destroy})
}

func mustBeValid(v *Value, operation string) {
	if v == nil {
		panic("value: nil *Value passed to " + operation)
	}
}

// Type returns the variant held by v.
func (v *Value) Type() Type { return v.kind }

// Ref adds a reference to v and returns it. Ref on a released Value
// panics and leaves it released.
func (v *Value) Ref() *Value {
	for {
		current := v.refs.Load()
		if current <= 0 {
			panic("value: Ref on a released Value")
		}
		if v.refs.CompareAndSwap(current, current+1) {
			return v
		}
	}
}

// Unref drops a reference to v. When the last reference is dropped,
// references to children are dropped and the custom destructor runs.
// Unref on a Value that was already released panics.
func (v *Value) Unref() {
	var remaining int32
	for {
		current := v.refs.Load()
		if current <= 0 {
			panic("value: Unref below zero")
		}
		remaining = current - 1
		if v.refs.CompareAndSwap(current, remaining) {
			break
		}
	}
	if remaining > 0 {
		return
	}
	switch rep := v.rep.(type) {
	case *repList:
		for _, element := range rep.values {
			element.Unref()
		}
		rep.values = nil
	case *repMap:
		for i := range rep.keys {
			rep.keys[i].Unref()
			rep.values[i].Unref()
		}
		rep.keys, rep.values = nil, nil
	case *repCustom:
		if rep.destroy != nil {
			rep.destroy(rep.payload)
		}
		rep.payload = nil
	}
}

// RefCount reports the current reference count. Intended for tests
// and leak diagnostics.
func (v *Value) RefCount() int { return int(v.refs.Load()) }

func (v *Value) checkType(operation string, allowed ...Type) {
	for _, kind := range allowed {
		if v.kind == kind {
			return
		}
	}
	panic(fmt.Sprintf("value: %s called on %s value", operation, v.kind))
}

// Bool returns the boolean held by a bool Value.
func (v *Value) Bool() bool {
	v.checkType("Bool", TypeBool)
	return v.rep.(bool)
}

// Int returns the integer held by an int Value.
func (v *Value) Int() int64 {
	v.checkType("Int", TypeInt)
	return v.rep.(int64)
}

// Float returns the number held by a float Value.
func (v *Value) Float() float64 {
	v.checkType("Float", TypeFloat)
	return v.rep.(float64)
}

// RawString returns the text held by a string Value. String renders
// any Value for debugging.
func (v *Value) RawString() string {
	v.checkType("RawString", TypeString)
	return v.rep.(string)
}

// Uint8List returns the elements of a uint8 list Value. The slice is
// shared with v and must not be modified.
func (v *Value) Uint8List() []byte {
	v.checkType("Uint8List", TypeUint8List)
	return v.rep.([]byte)
}

// Int32List returns the elements of an int32 list Value. The slice is
// shared with v and must not be modified.
func (v *Value) Int32List() []int32 {
	v.checkType("Int32List", TypeInt32List)
	return v.rep.([]int32)
}

// Int64List returns the elements of an int64 list Value. The slice is
// shared with v and must not be modified.
func (v *Value) Int64List() []int64 {
	v.checkType("Int64List", TypeInt64List)
	return v.rep.([]int64)
}

// Float32List returns the elements of a float32 list Value. The slice
// is shared with v and must not be modified.
func (v *Value) Float32List() []float32 {
	v.checkType("Float32List", TypeFloat32List)
	return v.rep.([]float32)
}

// Float64List returns the elements of a float64 list Value. The slice
// is shared with v and must not be modified.
func (v *Value) Float64List() []float64 {
	v.checkType("Float64List", TypeFloat64List)
	return v.rep.([]float64)
}

// CustomType returns the application tag of a custom Value.
func (v *Value) CustomType() int {
	v.checkType("CustomType", TypeCustom)
	return v.rep.(*repCustom).tag
}

// CustomPayload returns the payload of a custom Value.
func (v *Value) CustomPayload() any {
	v.checkType("CustomPayload", TypeCustom)
	return v.rep.(*repCustom).payload
}

// Len returns the number of elements in a typed list, list, or map.
func (v *Value) Len() int {
	switch rep := v.rep.(type) {
	case []byte:
		return len(rep)
	case []int32:
		return len(rep)
	case []int64:
		return len(rep)
	case []float32:
		return len(rep)
	case []float64:
		return len(rep)
	case *repList:
		return len(rep.values)
	case *repMap:
		return len(rep.keys)
	}
	panic(fmt.Sprintf("value: Len called on %s value", v.kind))
}

// At returns the i'th element of a list. The returned Value is
// borrowed: Ref it to keep it beyond the lifetime of v.
func (v *Value) At(i int) *Value {
	v.checkType("At", TypeList)
	return v.rep.(*repList).values[i]
}

// Append adds child to the end of a list, adding a reference to it.
func (v *Value) Append(child *Value) {
	mustBeValid(child, "Append")
	v.AppendTake(child.Ref())
}

// AppendTake adds child to the end of a list, taking ownership of the
// caller's reference.
func (v *Value) AppendTake(child *Value) {
	v.checkType("AppendTake", TypeList)
	mustBeValid(child, "AppendTake")
	rep := v.rep.(*repList)
	rep.values = append(rep.values, child)
}

// KeyAt returns the key of the i'th entry in a map, in insertion order.
func (v *Value) KeyAt(i int) *Value {
	v.checkType("KeyAt", TypeMap)
	return v.rep.(*repMap).keys[i]
}

// ValueAt returns the value of the i'th entry in a map, in insertion
// order.
func (v *Value) ValueAt(i int) *Value {
	v.checkType("ValueAt", TypeMap)
	return v.rep.(*repMap).values[i]
}

// Set stores val under key in a map, adding references to both. An
// existing entry with an equal key is replaced in place.
func (v *Value) Set(key, val *Value) {
	mustBeValid(key, "Set")
	mustBeValid(val, "Set")
	v.SetTake(key.Ref(), val.Ref())
}

// SetTake stores val under key in a map, taking ownership of the
// caller's references to both.
func (v *Value) SetTake(key, val *Value) {
	v.checkType("SetTake", TypeMap)
	mustBeValid(key, "SetTake")
	mustBeValid(val, "SetTake")
	rep := v.rep.(*repMap)
	if index := rep.index(key); index >= 0 {
		rep.keys[index].Unref()
		rep.values[index].Unref()
		rep.keys[index] = key
		rep.values[index] = val
		return
	}
	rep.keys = append(rep.keys, key)
	rep.values = append(rep.values, val)
}

// SetString stores val under a string key, adding a reference to val.
func (v *Value) SetString(key string, val *Value) {
	mustBeValid(val, "SetString")
	v.SetTake(String(key), val.Ref())
}

// SetStringTake stores val under a string key, taking ownership of
// the caller's reference to val.
func (v *Value) SetStringTake(key string, val *Value) {
	v.SetTake(String(key), val)
}

// Lookup returns the value stored under key in a map, or nil.
func (v *Value) Lookup(key *Value) *Value {
	v.checkType("Lookup", TypeMap)
	rep := v.rep.(*repMap)
	if index := rep.index(key); index >= 0 {
		return rep.values[index]
	}
	return nil
}

// LookupString returns the value stored under a string key, or nil.
func (v *Value) LookupString(key string) *Value {
	v.checkType("LookupString", TypeMap)
	rep := v.rep.(*repMap)
	for i, candidate := range rep.keys {
		if candidate.kind == TypeString && candidate.rep.(string) == key {
			return rep.values[i]
		}
	}
	return nil
}

func (m *repMap) index(key *Value) int {
	for i, candidate := range m.keys {
		if Equal(candidate, key) {
			return i
		}
	}
	return -1
}
