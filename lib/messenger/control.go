// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messenger

import (
	"context"

	"github.com/bureau-foundation/embedder/lib/codec"
	"github.com/bureau-foundation/embedder/lib/value"
)

// ControlChannel is the reserved channel carrying flow-control calls
// to the framework's channel buffers. Calls use the standard method
// codec.
const ControlChannel = "dev.flutter/channel-buffers"

// Control channel method names.
const (
	ControlMethodResize   = "resize"
	ControlMethodOverflow = "overflow"
)

// ResizeChannel asks the framework to hold up to size undelivered
// messages for channel. The call is fire-and-forget; failures are
// logged.
func (m *Messenger) ResizeChannel(ctx context.Context, channel string, size int) {
	m.sendControl(ctx, ControlMethodResize, value.List(value.String(channel), value.Int(int64(size))))
}

// SetWarnsOnChannelOverflow controls whether the framework logs a
// warning when channel's buffer overflows. The call is fire-and-forget;
// failures are logged.
func (m *Messenger) SetWarnsOnChannelOverflow(ctx context.Context, channel string, warns bool) {
	// The wire argument is "overflow allowed", the inverse of warns.
	m.sendControl(ctx, ControlMethodOverflow, value.List(value.String(channel), value.Bool(!warns)))
}

func (m *Messenger) sendControl(ctx context.Context, method string, args *value.Value) {
	defer args.Unref()
	message, err := codec.NewStandardMethodCodec(nil).EncodeMethodCall(method, args)
	if err != nil {
		m.logger.Error("encoding control call failed", "method", method, "error", err)
		return
	}
	m.SendAsync(ctx, ControlChannel, message, func(_ []byte, err error) {
		if err != nil {
			m.logger.Warn("control call failed", "method", method, "error", err)
		}
	})
}
