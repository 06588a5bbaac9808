// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/bureau-foundation/embedder/lib/channel"
	"github.com/bureau-foundation/embedder/lib/clock"
	"github.com/bureau-foundation/embedder/lib/codec"
	"github.com/bureau-foundation/embedder/lib/messenger"
	"github.com/bureau-foundation/embedder/lib/testutil"
	"github.com/bureau-foundation/embedder/lib/value"
	"github.com/bureau-foundation/embedder/transport"
)

func TestCounterIntervalUsesClock(t *testing.T) {
	frameworkConn, appConn := transport.Pipe(transport.Options{})
	framework := messenger.New(frameworkConn, messenger.Options{})
	app := messenger.New(appConn, messenger.Options{})

	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	methods := codec.NewStandardMethodCodec(nil)
	options := stubOptions{methods: methods, events: 2, interval: time.Second, clock: fake}
	ctx, cancel := context.WithCancel(context.Background())
	counter := newCounter(ctx, channel.NewEventChannel(framework, CounterChannel, methods), options, slog.New(slog.DiscardHandler))
	t.Cleanup(func() {
		counter.close()
		cancel()
		app.Shutdown()
		framework.Shutdown()
		frameworkConn.Close()
		appConn.Close()
	})

	events := make(chan codec.Response, 4)
	app.SetMessageHandler(CounterChannel, messenger.HandlerFunc(func(_ string, message []byte, handle *messenger.ResponseHandle) {
		event, err := methods.DecodeResponse(message)
		if err != nil {
			t.Errorf("undecodable event: %v", err)
		} else {
			events <- event
		}
		app.SendResponse(handle, nil)
	}))

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()
	response, err := channel.NewMethodChannel(app, CounterChannel, methods).InvokeMethod(callCtx, channel.EventMethodListen, value.Int(7))
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if _, ok := response.(*codec.SuccessResponse); !ok {
		t.Fatalf("listen response = %#v, want success", response)
	}

	for _, want := range []int64{7, 8} {
		fake.WaitForTimers(1)
		testutil.RequireNoReceive(t, events, 20*time.Millisecond, "event before the interval elapsed")
		fake.Advance(time.Second)
		event := testutil.RequireReceive(t, events, 5*time.Second, "event %d", want)
		success, ok := event.(*codec.SuccessResponse)
		if !ok {
			t.Fatalf("event = %#v, want success", event)
		}
		testutil.RequireValue(t, success.Result, value.Int(want), "event")
	}

	end := testutil.RequireReceive(t, events, 5*time.Second, "end of stream")
	if _, ok := end.(*codec.NotImplementedResponse); !ok {
		t.Errorf("final event = %#v, want end of stream", end)
	}
}
