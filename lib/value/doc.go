// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package value provides the tagged-union payload type exchanged over
// platform channels.
//
// A [Value] is one of: null, bool, int (int64), float (float64),
// string, one of five typed lists (uint8, int32, int64, float32,
// float64), an ordered list of Values, an ordered map of Value keys to
// Values, or a custom value carrying an application-defined payload
// that no standard codec understands. Constructors exist for each
// variant; accessors panic when called on the wrong variant, the same
// way a reflect.Value does.
//
// # Ownership
//
// Values are reference counted. A constructor returns a Value with a
// count of one. [Value.Ref] adds a reference, [Value.Unref] drops one;
// when the count reaches zero the Value drops its references to its
// children (list elements, map keys and values) and runs the custom
// destructor, if any. Memory is reclaimed by the garbage collector as
// usual: the count exists so that custom payloads holding external
// resources are released at a well-defined point, and so that a Value
// shared between a channel and its caller has one unambiguous owner
// of that release.
//
// Container mutators come in two forms. [Value.Append] and [Value.Set]
// add a reference to their arguments (the caller keeps its own);
// [Value.AppendTake] and [Value.SetTake] consume the caller's
// reference. [List] and [Map] builders take ownership of the Values
// passed to them.
//
// The value graph is acyclic by construction: containers only ever
// hold Values created before them.
//
// # Equality
//
// [Equal] compares structurally. Maps compare independently of
// insertion order; lists do not. Custom values are never equal to
// anything, including themselves.
package value
