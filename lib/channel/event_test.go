// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/embedder/lib/codec"
	"github.com/bureau-foundation/embedder/lib/messenger"
	"github.com/bureau-foundation/embedder/lib/testutil"
	"github.com/bureau-foundation/embedder/lib/value"
)

// listener subscribes to an event channel from the local side: it
// receives pushed events and invokes listen and cancel.
type listener struct {
	events  chan codec.Response
	control *MethodChannel
}

func newListener(t *testing.T, p *peers, name string) *listener {
	t.Helper()
	l := &listener{
		events:  make(chan codec.Response, 16),
		control: NewMethodChannel(p.local, name, nil),
	}
	methodCodec := codec.NewStandardMethodCodec(nil)
	p.local.SetMessageHandler(name, messenger.HandlerFunc(func(_ string, message []byte, handle *messenger.ResponseHandle) {
		event, err := methodCodec.DecodeResponse(message)
		if err != nil {
			t.Errorf("undecodable event: %v", err)
		} else {
			l.events <- event
		}
		p.local.SendResponse(handle, nil)
	}))
	return l
}

func TestEventChannelOrderedPushFromListen(t *testing.T) {
	p := newPeers(t)
	name := testutil.UniqueChannel("events")
	events := NewEventChannel(p.remote, name, nil)
	listenArgs := make(chan *value.Value, 1)
	events.SetStreamHandlers(func(args *value.Value) *codec.ErrorResponse {
		listenArgs <- args.Ref()
		for i := range 5 {
			if err := events.Send(context.Background(), value.Int(int64(i))); err != nil {
				t.Errorf("Send(%d) from listen: %v", i, err)
			}
		}
		return nil
	}, nil, nil)

	l := newListener(t, p, name)
	requireSuccess(t, invoke(t, l.control, EventMethodListen, value.String("filter")), value.Null())
	testutil.RequireValue(t, testutil.RequireReceive(t, listenArgs, time.Second, "listen args"), value.String("filter"))

	for i := range 5 {
		event := testutil.RequireReceive(t, l.events, 5*time.Second, "event %d", i)
		requireSuccess(t, event, value.Int(int64(i)))
	}
	if !events.Active() {
		t.Error("stream should be active after listen")
	}
}

func TestEventChannelErrorAndEndOfStream(t *testing.T) {
	p := newPeers(t)
	name := testutil.UniqueChannel("end")
	events := NewEventChannel(p.remote, name, nil)
	l := newListener(t, p, name)

	ctx := context.Background()
	if err := events.Send(ctx, value.Int(1)); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Send while idle = %v, want ErrStreamClosed", err)
	}

	requireSuccess(t, invoke(t, l.control, EventMethodListen, nil), value.Null())
	if err := events.SendError(ctx, "sensor", "offline", nil); err != nil {
		t.Fatalf("SendError: %v", err)
	}
	if err := events.SendEndOfStream(ctx); err != nil {
		t.Fatalf("SendEndOfStream: %v", err)
	}
	if err := events.Send(ctx, value.Int(2)); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Send after end of stream = %v, want ErrStreamClosed", err)
	}

	errorEvent := testutil.RequireReceive(t, l.events, 5*time.Second, "error event")
	if !codec.EqualResponse(errorEvent, codec.NewErrorResponse("sensor", "offline", nil)) {
		t.Errorf("error event = %#v", errorEvent)
	}
	end := testutil.RequireReceive(t, l.events, 5*time.Second, "end of stream")
	if _, ok := end.(*codec.NotImplementedResponse); !ok {
		t.Errorf("end of stream = %#v, want the empty payload", end)
	}

	// A new listen reopens the stream.
	requireSuccess(t, invoke(t, l.control, EventMethodListen, nil), value.Null())
	if err := events.Send(ctx, value.Int(3)); err != nil {
		t.Errorf("Send after relisten: %v", err)
	}
}

func TestEventChannelCancel(t *testing.T) {
	p := newPeers(t)
	name := testutil.UniqueChannel("cancel")
	events := NewEventChannel(p.remote, name, nil)
	cancelled := make(chan *value.Value, 2)
	events.SetStreamHandlers(nil, func(args *value.Value) *codec.ErrorResponse {
		cancelled <- args.Ref()
		return nil
	}, nil)
	l := newListener(t, p, name)

	idle := invoke(t, l.control, EventMethodCancel, nil)
	want := codec.NewErrorResponse(EventErrorCode, "No active stream to cancel", nil)
	if !codec.EqualResponse(idle, want) {
		t.Errorf("cancel while idle = %#v, want %#v", idle, want)
	}

	requireSuccess(t, invoke(t, l.control, EventMethodListen, nil), value.Null())
	requireSuccess(t, invoke(t, l.control, EventMethodCancel, value.Int(9)), value.Null())
	testutil.RequireValue(t, testutil.RequireReceive(t, cancelled, time.Second, "cancel args"), value.Int(9))
	if events.Active() {
		t.Error("stream should be idle after cancel")
	}
	if err := events.Send(context.Background(), value.Null()); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Send after cancel = %v, want ErrStreamClosed", err)
	}
}

func TestEventChannelListenWhileActiveCancelsFirst(t *testing.T) {
	p := newPeers(t)
	name := testutil.UniqueChannel("relisten")
	events := NewEventChannel(p.remote, name, nil)
	order := make(chan string, 4)
	events.SetStreamHandlers(func(*value.Value) *codec.ErrorResponse {
		order <- "listen"
		return nil
	}, func(*value.Value) *codec.ErrorResponse {
		order <- "cancel"
		return nil
	}, nil)
	l := newListener(t, p, name)

	invoke(t, l.control, EventMethodListen, nil)
	invoke(t, l.control, EventMethodListen, nil)
	for _, want := range []string{"listen", "cancel", "listen"} {
		if got := testutil.RequireReceive(t, order, time.Second, want); got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestEventChannelProtocolErrors(t *testing.T) {
	p := newPeers(t)
	name := testutil.UniqueChannel("protocol")
	events := NewEventChannel(p.remote, name, nil)
	events.SetStreamHandlers(func(*value.Value) *codec.ErrorResponse {
		return codec.NewErrorResponse("denied", "not allowed", nil)
	}, nil, nil)
	l := newListener(t, p, name)

	unknown := invoke(t, l.control, "subscribe", nil)
	failure, ok := unknown.(*codec.ErrorResponse)
	if !ok || failure.Code != EventErrorCode {
		t.Errorf("unknown method = %#v, want code %q", unknown, EventErrorCode)
	}

	denied := invoke(t, l.control, EventMethodListen, nil)
	if !codec.EqualResponse(denied, codec.NewErrorResponse("denied", "not allowed", nil)) {
		t.Errorf("rejected listen = %#v", denied)
	}
	if events.Active() {
		t.Error("a rejected listen must leave the stream idle")
	}
}

func TestEventChannelHandlerLifecycle(t *testing.T) {
	p := newPeers(t)
	name := testutil.UniqueChannel("lifecycle")
	events := NewEventChannel(p.remote, name, nil)

	var released []string
	events.SetStreamHandlers(nil, nil, func() { released = append(released, "first") })
	events.SetStreamHandlers(nil, nil, func() { released = append(released, "second") })
	if len(released) != 1 || released[0] != "first" {
		t.Fatalf("after replacement released = %v", released)
	}

	events.Close()
	if len(released) != 2 || released[1] != "second" {
		t.Fatalf("after Close released = %v", released)
	}
	if !events.Closed() {
		t.Error("Closed should report true after Close")
	}

	late := false
	events.SetStreamHandlers(func(*value.Value) *codec.ErrorResponse { return nil }, nil, func() { late = true })
	if !late {
		t.Error("handlers set on a closed channel should be released immediately")
	}

	clearedLate := false
	events.SetStreamHandlers(nil, nil, func() { clearedLate = true })
	if !clearedLate {
		t.Error("release passed with nil handlers on a closed channel should still run")
	}
}
