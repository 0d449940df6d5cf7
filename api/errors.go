// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values used across the hioload-tcp library.

package api

import "errors"

var (
	// ErrServerStarted names a configuration change made after
	// Server.Start. The Server setters return no error and do not check
	// for this; no function in this module returns the value.
	ErrServerStarted = errors.New("server already started")

	// ErrLoopStopped names work submitted to an event loop that has
	// already quit. RunInLoop and QueueInLoop return no error; no
	// function in this module returns the value.
	ErrLoopStopped = errors.New("event loop stopped")

	// ErrNotInLoop reports a thread-affinity violation: a loop-owned
	// object was touched from a foreign thread.
	ErrNotInLoop = errors.New("called outside the owning loop thread")

	// ErrConnDisconnected names a send on a connection that is no
	// longer in the connected state. Conn.Send logs and drops such data
	// without returning an error; no function in this module returns
	// the value.
	ErrConnDisconnected = errors.New("connection disconnected")

	// ErrNotSupported marks functionality unavailable on this platform.
	ErrNotSupported = errors.New("operation not supported")
)
