//go:build linux

// File: transport/tcp/callbacks.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// User-facing callback signatures. Every callback runs on the owning
// sub-loop's thread; different connections may fire concurrently on
// different loops, so shared state across connections needs its own
// synchronization.

package tcp

import (
	"time"

	"github.com/momentics/hioload-tcp/core/buffer"
)

// ConnectionCallback fires once when a connection reaches Connected and
// once more when it reaches Disconnected.
type ConnectionCallback func(c *Conn)

// MessageCallback fires when bytes arrive. The buffer is the
// connection's input buffer; consume what you can and leave the rest.
type MessageCallback func(c *Conn, buf *buffer.Buffer, receiveTime time.Time)

// WriteCompleteCallback fires when the output buffer drains to empty.
type WriteCompleteCallback func(c *Conn)

// HighWaterMarkCallback fires when the output buffer rises across the
// high-water mark, with the pending byte total.
type HighWaterMarkCallback func(c *Conn, pending int)

// CloseCallback is internal wiring: the server uses it to evict the
// connection from its registry.
type CloseCallback func(c *Conn)
