// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"bytes"
	"slices"
)

// Equal reports whether a and b hold structurally equal values of the
// same variant. Map entries are compared independently of insertion
// order. Custom values are never equal. Two nil pointers are equal.
func Equal(a, b *Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.kind != b.kind {
		return false
	}
	switch arep := a.rep.(type) {
	case nil:
		return true
	case bool:
		return arep == b.rep.(bool)
	case int64:
		return arep == b.rep.(int64)
	case float64:
		return arep == b.rep.(float64)
	case string:
		return arep == b.rep.(string)
	case []byte:
		return bytes.Equal(arep, b.rep.([]byte))
	case []int32:
		return slices.Equal(arep, b.rep.([]int32))
	case []int64:
		return slices.Equal(arep, b.rep.([]int64))
	case []float32:
		return slices.Equal(arep, b.rep.([]float32))
	case []float64:
		return slices.Equal(arep, b.rep.([]float64))
	case *repList:
		return slices.EqualFunc(arep.values, b.rep.(*repList).values, Equal)
	case *repMap:
		return equalMap(arep, b.rep.(*repMap))
	case *repCustom:
		return false
	}
	return false
}

func equalMap(a, b *repMap) bool {
	if len(a.keys) != len(b.keys) {
		return false
	}
	for i, key := range a.keys {
		index := b.index(key)
		if index < 0 {
			return false
		}
		if !Equal(a.values[i], b.values[index]) {
			return false
		}
	}
	return true
}
