// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"errors"
	"math"
	"testing"
)

func TestConstructorsAndAccessors(t *testing.T) {
	if Null().Type() != TypeNull {
		t.Error("Null type mismatch")
	}
	if !Bool(true).Bool() || Bool(false).Bool() {
		t.Error("Bool round trip failed")
	}
	if Int(-42).Int() != -42 {
		t.Error("Int round trip failed")
	}
	if Float(1.5).Float() != 1.5 {
		t.Error("Float round trip failed")
	}
	if String("hello").RawString() != "hello" {
		t.Error("String round trip failed")
	}
	custom := Custom(128, "payload", nil)
	if custom.CustomType() != 128 || custom.CustomPayload() != "payload" {
		t.Errorf("custom = (%d, %v)", custom.CustomType(), custom.CustomPayload())
	}
}

func TestTypedListsCopyInput(t *testing.T) {
	data := []byte{1, 2, 3}
	list := Uint8List(data)
	data[0] = 99
	if list.Uint8List()[0] != 1 {
		t.Errorf("Uint8List shares caller storage: %v", list.Uint8List())
	}

	ints := []int32{1, 2}
	int32List := Int32List(ints)
	ints[1] = 7
	if int32List.Int32List()[1] != 2 {
		t.Errorf("Int32List shares caller storage: %v", int32List.Int32List())
	}

	if Float64List(nil).Len() != 0 {
		t.Error("nil input should produce an empty list")
	}
}

func TestAccessorOnWrongTypePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Int on a string value did not panic")
		}
	}()
	String("x").Int()
}

func TestListAppendAndAt(t *testing.T) {
	list := List(Int(1))
	list.AppendTake(String("two"))
	three := Float(3)
	list.Append(three)
	if list.Len() != 3 {
		t.Fatalf("Len = %d, want 3", list.Len())
	}
	if list.At(1).RawString() != "two" {
		t.Errorf("At(1) = %v", list.At(1))
	}
	if three.RefCount() != 2 {
		t.Errorf("Append should add a reference: count = %d", three.RefCount())
	}
}

func TestMapSetOverwritesInPlace(t *testing.T) {
	m := Map()
	m.SetStringTake("a", Int(1))
	m.SetStringTake("b", Int(2))
	m.SetStringTake("a", Int(3))

	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}
	if m.KeyAt(0).RawString() != "a" || m.ValueAt(0).Int() != 3 {
		t.Errorf("entry 0 = %v: %v, want a: 3", m.KeyAt(0), m.ValueAt(0))
	}
	if m.LookupString("b").Int() != 2 {
		t.Errorf("LookupString(b) = %v", m.LookupString("b"))
	}
	if m.Lookup(Int(5)) != nil {
		t.Error("Lookup of a missing key should return nil")
	}
	if got := m.Lookup(String("a")); got == nil || got.Int() != 3 {
		t.Errorf("Lookup(a) = %v", got)
	}
}

func TestUnrefReleasesChildrenAndCustomPayload(t *testing.T) {
	destroyed := 0
	custom := Custom(130, "resource", func(payload any) {
		if payload != "resource" {
			t.Errorf("destroy got payload %v", payload)
		}
		destroyed++
	})

	list := List(custom)
	shared := list.Ref()
	list.Unref()
	if destroyed != 0 {
		t.Fatal("custom destroyed while a reference remains")
	}
	shared.Unref()
	if destroyed != 1 {
		t.Fatalf("destroy called %d times, want 1", destroyed)
	}
}

func TestUnrefBelowZeroPanics(t *testing.T) {
	v := Int(1)
	v.Unref()
	defer func() {
		if recover() == nil {
			t.Fatal("second Unref did not panic")
		}
	}()
	v.Unref()
}

func TestRefOnReleasedValuePanics(t *testing.T) {
	v := String("gone")
	v.Unref()
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("Ref on a released value did not panic")
			}
		}()
		v.Ref()
	}()
	if v.RefCount() != 0 {
		t.Errorf("RefCount after failed Ref = %d, want 0", v.RefCount())
	}
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("Unref after failed Ref did not panic")
			}
		}()
		v.Unref()
	}()
	if v.RefCount() != 0 {
		t.Errorf("RefCount after failed Unref = %d, want 0", v.RefCount())
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name  string
		a, b  *Value
		equal bool
	}{
		{"null", Null(), Null(), true},
		{"bool", Bool(true), Bool(true), true},
		{"bool differs", Bool(true), Bool(false), false},
		{"int", Int(7), Int(7), true},
		{"int vs float", Int(1), Float(1), false},
		{"nan", Float(math.NaN()), Float(math.NaN()), false},
		{"string", String("a"), String("a"), true},
		{"uint8 list", Uint8List([]byte{1, 2}), Uint8List([]byte{1, 2}), true},
		{"int32 list differs", Int32List([]int32{1}), Int32List([]int32{2}), false},
		{"int64 list length", Int64List([]int64{1}), Int64List([]int64{1, 1}), false},
		{"float32 list", Float32List([]float32{0.5}), Float32List([]float32{0.5}), true},
		{"float64 list", Float64List([]float64{0.5}), Float64List([]float64{0.5}), true},
		{"list", List(Int(1), Int(2)), List(Int(1), Int(2)), true},
		{"list order", List(Int(1), Int(2)), List(Int(2), Int(1)), false},
		{"custom", Custom(1, nil, nil), Custom(1, nil, nil), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Equal(test.a, test.b); got != test.equal {
				t.Errorf("Equal(%v, %v) = %v, want %v", test.a, test.b, got, test.equal)
			}
		})
	}
}

func TestMapEqualityIgnoresOrder(t *testing.T) {
	a := Map()
	a.SetStringTake("x", Int(1))
	a.SetTake(Int(2), List(String("y")))

	b := Map()
	b.SetTake(Int(2), List(String("y")))
	b.SetStringTake("x", Int(1))

	if !Equal(a, b) {
		t.Errorf("maps with the same entries in different order should be equal: %v vs %v", a, b)
	}

	b.SetStringTake("x", Int(9))
	if Equal(a, b) {
		t.Error("maps with a differing value should not be equal")
	}

	c := Map()
	c.SetStringTake("x", Int(1))
	if Equal(a, c) {
		t.Error("maps of different length should not be equal")
	}
}

func TestCustomNeverEqualsItself(t *testing.T) {
	custom := Custom(5, nil, nil)
	if Equal(custom, custom) {
		t.Error("a custom value compared equal to itself")
	}
}

func TestString(t *testing.T) {
	m := Map()
	m.SetStringTake("key", List(Int(1), Float(2), Bool(false)))
	m.SetTake(Null(), Uint8List([]byte{0, 255}))

	tests := []struct {
		value *Value
		want  string
	}{
		{Null(), "null"},
		{Bool(true), "true"},
		{Int(-3), "-3"},
		{Float(1), "1.0"},
		{Float(-2), "-2.0"},
		{Float(math.Pi), "3.1415926535897931"},
		{Float(1e20), "1e+20"},
		{String("plain text"), "plain text"},
		{Int32List([]int32{1, -1}), "[1, -1]"},
		{Float32List([]float32{0.5}), "[0.5]"},
		{List(), "[]"},
		{m, "{key: [1, 2.0, false], null: [0, 255]}"},
		{Custom(42, nil, nil), "(custom 42)"},
	}
	for _, test := range tests {
		if got := test.value.String(); got != test.want {
			t.Errorf("String() = %q, want %q", got, test.want)
		}
	}
}

func TestFromGoAndToGo(t *testing.T) {
	input := map[string]any{
		"name":   "widget",
		"count":  3,
		"ratio":  0.25,
		"tags":   []any{"a", true, nil},
		"pixels": []byte{1, 2},
	}
	v, err := FromGo(input)
	if err != nil {
		t.Fatalf("FromGo: %v", err)
	}
	if v.Type() != TypeMap || v.Len() != 5 {
		t.Fatalf("FromGo produced %v", v)
	}
	if v.KeyAt(0).RawString() != "count" {
		t.Errorf("keys should be sorted, first = %v", v.KeyAt(0))
	}

	back, err := ToGo(v)
	if err != nil {
		t.Fatalf("ToGo: %v", err)
	}
	result, ok := back.(map[string]any)
	if !ok {
		t.Fatalf("ToGo returned %T", back)
	}
	if result["count"] != int64(3) || result["name"] != "widget" {
		t.Errorf("ToGo = %v", result)
	}
	tags := result["tags"].([]any)
	if len(tags) != 3 || tags[1] != true || tags[2] != nil {
		t.Errorf("tags = %v", tags)
	}
}

func TestConversionErrors(t *testing.T) {
	if _, err := FromGo(struct{}{}); !errors.Is(err, ErrNotConvertible) {
		t.Errorf("FromGo(struct) error = %v", err)
	}
	if _, err := FromGo(uint64(math.MaxUint64)); !errors.Is(err, ErrNotConvertible) {
		t.Errorf("FromGo(MaxUint64) error = %v", err)
	}
	if _, err := ToGo(List(Custom(1, nil, nil))); !errors.Is(err, ErrNotConvertible) {
		t.Errorf("ToGo(custom) error = %v", err)
	}
	m := Map()
	m.SetTake(List(), Int(1))
	if _, err := ToGo(m); !errors.Is(err, ErrNotConvertible) {
		t.Errorf("ToGo(list key) error = %v", err)
	}
}
