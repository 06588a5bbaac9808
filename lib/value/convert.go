// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrNotConvertible is returned by FromGo and ToGo for inputs with no
// counterpart on the other side.
var ErrNotConvertible = errors.New("value: not convertible")

// FromGo converts a plain Go value to a Value. Supported inputs: nil,
// bool, signed and unsigned integers (uint64 only when it fits in
// int64), float32, float64, string, []byte, []int32, []int64,
// []float32, []float64, []any, map[string]any, map[any]any, and *Value
// (which gains a reference). Map keys are inserted in sorted order for
// map[string]any so the result is deterministic.
func FromGo(x any) (*Value, error) {
	switch typed := x.(type) {
	case nil:
		return Null(), nil
	case *Value:
		if typed == nil {
			return Null(), nil
		}
		return typed.Ref(), nil
	case bool:
		return Bool(typed), nil
	case int:
		return Int(int64(typed)), nil
	case int8:
		return Int(int64(typed)), nil
	case int16:
		return Int(int64(typed)), nil
	case int32:
		return Int(int64(typed)), nil
	case int64:
		return Int(typed), nil
	case uint:
		return fromUnsigned(uint64(typed))
	case uint8:
		return Int(int64(typed)), nil
	case uint16:
		return Int(int64(typed)), nil
	case uint32:
		return Int(int64(typed)), nil
	case uint64:
		return fromUnsigned(typed)
	case float32:
		return Float(float64(typed)), nil
	case float64:
		return Float(typed), nil
	case string:
		return String(typed), nil
	case []byte:
		return Uint8List(typed), nil
	case []int32:
		return Int32List(typed), nil
	case []int64:
		return Int64List(typed), nil
	case []float32:
		return Float32List(typed), nil
	case []float64:
		return Float64List(typed), nil
	case []any:
		list := List()
		for i, element := range typed {
			child, err := FromGo(element)
			if err != nil {
				list.Unref()
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			list.AppendTake(child)
		}
		return list, nil
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		result := Map()
		for _, key := range keys {
			child, err := FromGo(typed[key])
			if err != nil {
				result.Unref()
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			result.SetStringTake(key, child)
		}
		return result, nil
	case map[any]any:
		result := Map()
		for key, element := range typed {
			keyValue, err := FromGo(key)
			if err != nil {
				result.Unref()
				return nil, fmt.Errorf("map key %v: %w", key, err)
			}
			child, err := FromGo(element)
			if err != nil {
				keyValue.Unref()
				result.Unref()
				return nil, fmt.Errorf("key %v: %w", key, err)
			}
			result.SetTake(keyValue, child)
		}
		return result, nil
	}
	return nil, fmt.Errorf("%w: Go type %T", ErrNotConvertible, x)
}

func fromUnsigned(x uint64) (*Value, error) {
	if x > math.MaxInt64 {
		return nil, fmt.Errorf("%w: %d overflows int64", ErrNotConvertible, x)
	}
	return Int(int64(x)), nil
}

// ToGo converts v to plain Go values: nil, bool, int64, float64,
// string, the typed list slices (copied), []any, and map[string]any
// when every key is a string. Maps with other key types produce
// map[any]any, which requires every key to be a scalar. Custom values
// are not convertible.
func ToGo(v *Value) (any, error) {
	switch rep := v.rep.(type) {
	case nil:
		return nil, nil
	case bool, int64, float64, string:
		return rep, nil
	case []byte:
		return cloneOrEmpty(rep), nil
	case []int32:
		return cloneOrEmpty(rep), nil
	case []int64:
		return cloneOrEmpty(rep), nil
	case []float32:
		return cloneOrEmpty(rep), nil
	case []float64:
		return cloneOrEmpty(rep), nil
	case *repList:
		result := make([]any, len(rep.values))
		for i, element := range rep.values {
			converted, err := ToGo(element)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			result[i] = converted
		}
		return result, nil
	case *repMap:
		return mapToGo(rep)
	case *repCustom:
		return nil, fmt.Errorf("%w: custom value (tag %d)", ErrNotConvertible, rep.tag)
	}
	return nil, fmt.Errorf("%w: %s value", ErrNotConvertible, v.kind)
}

func mapToGo(rep *repMap) (any, error) {
	stringKeys := true
	for _, key := range rep.keys {
		if key.kind != TypeString {
			stringKeys = false
			break
		}
	}
	if stringKeys {
		result := make(map[string]any, len(rep.keys))
		for i, key := range rep.keys {
			converted, err := ToGo(rep.values[i])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key.rep.(string), err)
			}
			result[key.rep.(string)] = converted
		}
		return result, nil
	}
	result := make(map[any]any, len(rep.keys))
	for i, key := range rep.keys {
		switch key.kind {
		case TypeNull, TypeBool, TypeInt, TypeFloat, TypeString:
		default:
			return nil, fmt.Errorf("%w: %s map key", ErrNotConvertible, key.kind)
		}
		converted, err := ToGo(rep.values[i])
		if err != nil {
			return nil, fmt.Errorf("key %v: %w", key, err)
		}
		result[key.rep] = converted
	}
	return result, nil
}
