// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"strconv"
	"strings"
)

// String renders v for logs and debugging output. Strings are written
// raw (unquoted), floats always carry a fractional part or exponent,
// lists render as [a, b] and maps as {k: v}.
func (v *Value) String() string {
	if v == nil {
		return "<nil>"
	}
	var builder strings.Builder
	writeValue(&builder, v)
	return builder.String()
}

func writeValue(builder *strings.Builder, v *Value) {
	switch rep := v.rep.(type) {
	case nil:
		builder.WriteString("null")
	case bool:
		builder.WriteString(strconv.FormatBool(rep))
	case int64:
		builder.WriteString(strconv.FormatInt(rep, 10))
	case float64:
		writeFloat(builder, rep)
	case string:
		builder.WriteString(rep)
	case []byte:
		writeElements(builder, rep, func(x byte) { builder.WriteString(strconv.Itoa(int(x))) })
	case []int32:
		writeElements(builder, rep, func(x int32) { builder.WriteString(strconv.FormatInt(int64(x), 10)) })
	case []int64:
		writeElements(builder, rep, func(x int64) { builder.WriteString(strconv.FormatInt(x, 10)) })
	case []float32:
		writeElements(builder, rep, func(x float32) { writeFloat(builder, float64(x)) })
	case []float64:
		writeElements(builder, rep, func(x float64) { writeFloat(builder, x) })
	case *repList:
		writeElements(builder, rep.values, func(x *Value) { writeValue(builder, x) })
	case *repMap:
		builder.WriteByte('{')
		for i := range rep.keys {
			if i > 0 {
				builder.WriteString(", ")
			}
			writeValue(builder, rep.keys[i])
			builder.WriteString(": ")
			writeValue(builder, rep.values[i])
		}
		builder.WriteByte('}')
	case *repCustom:
		builder.WriteString("(custom ")
		builder.WriteString(strconv.Itoa(rep.tag))
		builder.WriteByte(')')
	}
}

func writeElements[T any](builder *strings.Builder, elements []T, write func(T)) {
	builder.WriteByte('[')
	for i, element := range elements {
		if i > 0 {
			builder.WriteString(", ")
		}
		write(element)
	}
	builder.WriteByte(']')
}

// writeFloat formats with 17 significant digits (enough to round-trip
// any float64) and appends ".0" when the result would otherwise read
// as an integer.
func writeFloat(builder *strings.Builder, x float64) {
	text := strconv.FormatFloat(x, 'g', 17, 64)
	builder.WriteString(text)
	if strings.Trim(text, "-0123456789") == "" {
		builder.WriteString(".0")
	}
}
