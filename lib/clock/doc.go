// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock lets code that waits on wall-clock time run against a
// fake clock in tests.
//
// Code that would call time.Now, time.After or time.Sleep takes a
// [Clock] instead. Production wiring passes [Real]. Tests pass a
// [FakeClock], whose time moves only when Advance is called:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go emitter.run(fake)
//	fake.WaitForTimers(1)    // the goroutine is now waiting
//	fake.Advance(time.Second) // release it
//
// WaitForTimers closes the gap between a goroutine starting to wait
// and the test moving time forward, so tests never sleep to
// synchronize.
package clock
